package odmetrics

import (
	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
)

// MatchingAlgorithm is for algorithm type for assigning detections to ground-truth boxes
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmGreedy walks detections in descending-confidence order, each one
	// taking the unmatched ground truth with maximum IoU. This is the standard
	// Pascal VOC / COCO matching rule
	MatchingAlgorithmGreedy MatchingAlgorithm = iota
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) to maximize
	// the total IoU of the per-image assignment
	MatchingAlgorithmHungarian
)

// groupKey addresses one (image, class) group. Matching never crosses groups.
type groupKey struct {
	ImageID string
	Label   string
}

// MatchRecord is the outcome for a single detection after matching.
type MatchRecord struct {
	ImageID    string
	Confidence float64
	// IoU against the selected ground-truth box (best unmatched candidate for
	// the greedy strategy), 0 when no candidate exists
	IoU float64
	// TP reports whether the detection was accepted as a true positive
	TP bool
}

// ClassMatch accumulates every detection outcome of one class across all
// images plus the total number of ground-truth boxes of that class. It is the
// sufficient statistic for every downstream metric.
type ClassMatch struct {
	Label string
	// Records ordered by descending confidence (ties keep input order)
	Records        []MatchRecord
	NumGroundTruth int
}

// PrecisionRecall derives the raw precision/recall curve over the
// confidence-ordered records. Returned slices are freshly allocated.
func (cm *ClassMatch) PrecisionRecall() (precision, recall []float64) {
	n := len(cm.Records)
	precision = make([]float64, n)
	recall = make([]float64, n)
	cumTP, cumFP := 0.0, 0.0
	for i, rec := range cm.Records {
		if rec.TP {
			cumTP++
		} else {
			cumFP++
		}
		precision[i] = cumTP / (cumTP + cumFP)
		if cm.NumGroundTruth > 0 {
			recall[i] = cumTP / float64(cm.NumGroundTruth)
		}
	}
	return precision, recall
}

// Counts returns the total number of true and false positives of the class.
func (cm *ClassMatch) Counts() (tp, fp int) {
	for _, rec := range cm.Records {
		if rec.TP {
			tp++
		} else {
			fp++
		}
	}
	return tp, fp
}

// Matcher decides which detections correctly localize which ground-truth boxes
// per (image, class) group under an IoU threshold. Within one group each
// ground-truth box is consumed by at most one detection.
type Matcher struct {
	IoUThreshold float64
	Algorithm    MatchingAlgorithm
}

// NewMatcher creates a new instance of Matcher with the given IoU threshold in (0;1].
func NewMatcher(iouThreshold float64, algorithm MatchingAlgorithm) (*Matcher, error) {
	if !(iouThreshold > 0.0 && iouThreshold <= 1.0) {
		return nil, errors.Errorf("IoU threshold must lie in (0;1], got %v", iouThreshold)
	}
	return &Matcher{
		IoUThreshold: iouThreshold,
		Algorithm:    algorithm,
	}, nil
}

// Match validates both collections once at this boundary and produces per-class
// match sequences keyed by class label. Inputs are never mutated. Classes that
// appear only in the detections are reported with NumGroundTruth = 0.
func (m *Matcher) Match(groundTruths, detections []BoundingBox) (map[string]*ClassMatch, error) {
	if err := validateBoxes(groundTruths, BBTypeGroundTruth); err != nil {
		return nil, errors.Wrap(err, "invalid ground-truth input")
	}
	if err := validateBoxes(detections, BBTypeDetected); err != nil {
		return nil, errors.Wrap(err, "invalid detections input")
	}
	return m.match(groundTruths, detections), nil
}

// match is the unvalidated core used by the evaluators after their own boundary checks.
func (m *Matcher) match(groundTruths, detections []BoundingBox) map[string]*ClassMatch {
	gtGroups := make(map[groupKey][]BoundingBox)
	gtPerClass := make(map[string]int)
	for _, gt := range groundTruths {
		gk := groupKey{ImageID: gt.ImageID, Label: gt.Label}
		gtGroups[gk] = append(gtGroups[gk], gt)
		gtPerClass[gt.Label]++
	}

	detsPerClass := make(map[string][]BoundingBox)
	for _, det := range detections {
		detsPerClass[det.Label] = append(detsPerClass[det.Label], det)
	}

	matches := make(map[string]*ClassMatch)
	for label, count := range gtPerClass {
		matches[label] = &ClassMatch{Label: label, NumGroundTruth: count}
	}
	for label, classDets := range detsPerClass {
		cm, ok := matches[label]
		if !ok {
			cm = &ClassMatch{Label: label}
			matches[label] = cm
		}
		sorted := sortByConfidence(classDets)
		switch m.Algorithm {
		case MatchingAlgorithmHungarian:
			cm.Records = m.matchHungarian(label, sorted, gtGroups)
		default:
			cm.Records = m.matchGreedy(label, sorted, gtGroups)
		}
	}
	return matches
}

// matchGreedy assigns confidence-sorted detections one by one, each taking the
// unmatched ground truth of its own image with maximum IoU.
func (m *Matcher) matchGreedy(label string, sortedDets []BoundingBox, gtGroups map[groupKey][]BoundingBox) []MatchRecord {
	// Prevent double assignment of ground-truth boxes
	taken := make(map[groupKey][]bool)
	records := make([]MatchRecord, 0, len(sortedDets))
	for _, det := range sortedDets {
		gk := groupKey{ImageID: det.ImageID, Label: label}
		gts := gtGroups[gk]
		if _, ok := taken[gk]; !ok && len(gts) > 0 {
			taken[gk] = make([]bool, len(gts))
		}
		bestIoU := 0.0
		bestIdx := -1
		for i, gt := range gts {
			if taken[gk][i] {
				continue
			}
			if value := IoU(det, gt); value > bestIoU {
				bestIoU = value
				bestIdx = i
			}
		}
		record := MatchRecord{
			ImageID:    det.ImageID,
			Confidence: det.Confidence,
			IoU:        bestIoU,
		}
		if bestIdx >= 0 && bestIoU >= m.IoUThreshold {
			record.TP = true
			taken[gk][bestIdx] = true
		}
		records = append(records, record)
	}
	return records
}

// matchHungarian builds a per-image IoU matrix and solves the optimal
// assignment, accepting only pairs whose IoU reaches the threshold. Records
// keep the descending-confidence order of sortedDets.
func (m *Matcher) matchHungarian(label string, sortedDets []BoundingBox, gtGroups map[groupKey][]BoundingBox) []MatchRecord {
	records := make([]MatchRecord, len(sortedDets))
	perImage := make(map[string][]int)
	for i, det := range sortedDets {
		records[i] = MatchRecord{ImageID: det.ImageID, Confidence: det.Confidence}
		perImage[det.ImageID] = append(perImage[det.ImageID], i)
	}
	for imageID, detIndices := range perImage {
		gts := gtGroups[groupKey{ImageID: imageID, Label: label}]
		if len(gts) == 0 {
			continue
		}
		// Pad to a square matrix; padding rows/columns carry 0.0 (lowest IoU)
		size := maxInt(len(detIndices), len(gts))
		matrix := make([][]float64, size)
		for r := 0; r < size; r++ {
			matrix[r] = make([]float64, size)
			if r >= len(detIndices) {
				continue
			}
			for c, gt := range gts {
				matrix[r][c] = IoU(sortedDets[detIndices[r]], gt)
			}
		}
		assignments := hungarian.SolveMax(matrix)
		for r, rowMap := range assignments {
			if r >= len(detIndices) || len(rowMap) == 0 {
				continue
			}
			// The inner map contains a single entry: {gtIndex: iou}
			var c int
			for gtIdx := range rowMap {
				c = gtIdx
				break
			}
			if c >= len(gts) {
				continue
			}
			if value := matrix[r][c]; value >= m.IoUThreshold {
				records[detIndices[r]].IoU = value
				records[detIndices[r]].TP = true
			}
		}
	}
	return records
}
