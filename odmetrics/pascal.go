package odmetrics

import (
	"gonum.org/v1/gonum/stat"
)

// InterpolationMethod is for interpolation scheme used to turn a precision-recall curve into AP
type InterpolationMethod uint16

const (
	// InterpolationContinuous integrates the full monotonic precision envelope
	// over the recall axis (Pascal VOC 2012 definition)
	InterpolationContinuous InterpolationMethod = iota
	// InterpolationElevenPoint samples the envelope at 11 equally spaced recall
	// levels {0, 0.1, ..., 1.0} (legacy Pascal VOC 2007 definition)
	InterpolationElevenPoint
)

// DefaultIoUThreshold is the Pascal VOC IoU threshold applied when the caller
// does not override it. Headless and GUI callers share this constant.
const DefaultIoUThreshold = 0.5

// PascalVOCOptions configures the Pascal VOC evaluation.
type PascalVOCOptions struct {
	// IoUThreshold must lie in (0;1]
	IoUThreshold float64
	// Interpolation selects the AP integration scheme
	Interpolation InterpolationMethod
	// Algorithm selects the detection-to-ground-truth assignment strategy
	Algorithm MatchingAlgorithm
}

// DefaultPascalVOCOptions creates options with IoU threshold 0.5, continuous
// interpolation and greedy matching.
func DefaultPascalVOCOptions() PascalVOCOptions {
	return PascalVOCOptions{
		IoUThreshold:  DefaultIoUThreshold,
		Interpolation: InterpolationContinuous,
		Algorithm:     MatchingAlgorithmGreedy,
	}
}

// ClassMetrics carries the Pascal VOC statistics of a single class. Precision
// and Recall are the raw curve arrays needed to plot a precision-recall chart.
type ClassMetrics struct {
	Label     string
	Precision []float64
	Recall    []float64
	AP        float64
	// TotalPositives is the number of ground-truth boxes of the class
	TotalPositives int
	TotalTP        int
	TotalFP        int
}

// PascalVOCResult is the full Pascal VOC summary. Classes without any
// ground-truth box are excluded from PerClass and from the mean.
type PascalVOCResult struct {
	MAP      float64
	PerClass map[string]*ClassMetrics
}

// EvaluatePascalVOC computes per-class AP and the overall mAP at a single IoU
// threshold. A class with ground truth but zero detections gets AP = 0; a class
// with detections but no ground truth is excluded rather than failed.
func EvaluatePascalVOC(groundTruths, detections []BoundingBox, opts PascalVOCOptions) (*PascalVOCResult, error) {
	matcher, err := NewMatcher(opts.IoUThreshold, opts.Algorithm)
	if err != nil {
		return nil, err
	}
	matches, err := matcher.Match(groundTruths, detections)
	if err != nil {
		return nil, err
	}
	result := &PascalVOCResult{PerClass: make(map[string]*ClassMetrics)}
	aps := make([]float64, 0, len(matches))
	for label, cm := range matches {
		if cm.NumGroundTruth == 0 {
			continue
		}
		metrics := newClassMetrics(cm, opts.Interpolation)
		result.PerClass[label] = metrics
		aps = append(aps, metrics.AP)
	}
	if len(aps) > 0 {
		result.MAP = stat.Mean(aps, nil)
	}
	return result, nil
}

func newClassMetrics(cm *ClassMatch, interpolation InterpolationMethod) *ClassMetrics {
	precision, recall := cm.PrecisionRecall()
	totalTP, totalFP := cm.Counts()
	metrics := &ClassMetrics{
		Label:          cm.Label,
		Precision:      precision,
		Recall:         recall,
		TotalPositives: cm.NumGroundTruth,
		TotalTP:        totalTP,
		TotalFP:        totalFP,
	}
	switch interpolation {
	case InterpolationElevenPoint:
		metrics.AP = elevenPointAP(precision, recall)
	default:
		metrics.AP = continuousAP(precision, recall)
	}
	return metrics
}

// continuousAP integrates the precision-recall curve after enforcing the
// monotonic non-increasing precision envelope.
func continuousAP(precision, recall []float64) float64 {
	mrec := make([]float64, 0, len(recall)+2)
	mrec = append(mrec, 0.0)
	mrec = append(mrec, recall...)
	mrec = append(mrec, 1.0)
	mpre := make([]float64, 0, len(precision)+2)
	mpre = append(mpre, 0.0)
	mpre = append(mpre, precision...)
	mpre = append(mpre, 0.0)
	// Each precision value becomes the maximum of itself and every precision at
	// equal-or-greater recall
	for i := len(mpre) - 2; i >= 0; i-- {
		mpre[i] = maxFloat64(mpre[i], mpre[i+1])
	}
	ap := 0.0
	for i := 1; i < len(mrec); i++ {
		if mrec[i] != mrec[i-1] {
			ap += (mrec[i] - mrec[i-1]) * mpre[i]
		}
	}
	return ap
}

// elevenPointAP averages the maximum precision achieved at recall >= level for
// the 11 levels {0, 0.1, ..., 1.0}.
func elevenPointAP(precision, recall []float64) float64 {
	sum := 0.0
	for level := 0; level <= 10; level++ {
		r := float64(level) / 10.0
		best := 0.0
		for i := range recall {
			if recall[i] >= r && precision[i] > best {
				best = precision[i]
			}
		}
		sum += best
	}
	return sum / 11.0
}
