package odmetrics

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// cocoIoUThresholds are the 10 IoU levels 0.50:0.05:0.95 of the COCO protocol.
var cocoIoUThresholds = []float64{0.50, 0.55, 0.60, 0.65, 0.70, 0.75, 0.80, 0.85, 0.90, 0.95}

// COCO object-size breakpoints (areas in square pixels)
const (
	smallAreaLimit  = 32.0 * 32.0
	mediumAreaLimit = 96.0 * 96.0
)

// cocoMaxDetections is the per-(image, class) detection cap used by every AP
// field and by AR100.
const cocoMaxDetections = 100

// sizeBucket restricts boxes by area before matching.
type sizeBucket uint16

const (
	bucketAll sizeBucket = iota
	bucketSmall
	bucketMedium
	bucketLarge
)

func (b sizeBucket) contains(area float64) bool {
	switch b {
	case bucketSmall:
		return area < smallAreaLimit
	case bucketMedium:
		return area >= smallAreaLimit && area < mediumAreaLimit
	case bucketLarge:
		return area >= mediumAreaLimit
	default:
		return true
	}
}

// COCOOptions configures the COCO evaluation.
type COCOOptions struct {
	// Metrics selects which summary fields to compute; unrequested fields are
	// never evaluated
	Metrics MetricSet
	// Algorithm selects the detection-to-ground-truth assignment strategy
	Algorithm MatchingAlgorithm
}

// DefaultCOCOOptions creates options computing the full 12-field summary with
// greedy matching.
func DefaultCOCOOptions() COCOOptions {
	return COCOOptions{Metrics: AllCOCOMetrics}
}

// cocoSetting is one summary field expressed as the (size bucket, detection
// cap, IoU thresholds) combination that produces it.
type cocoSetting struct {
	metric     Metric
	bucket     sizeBucket
	maxDets    int
	thresholds []float64
	isRecall   bool
}

func cocoSettings(set MetricSet) []cocoSetting {
	all := cocoIoUThresholds
	candidates := []cocoSetting{
		{metric: MetricAP, bucket: bucketAll, maxDets: cocoMaxDetections, thresholds: all},
		{metric: MetricAP50, bucket: bucketAll, maxDets: cocoMaxDetections, thresholds: all[0:1]},
		{metric: MetricAP75, bucket: bucketAll, maxDets: cocoMaxDetections, thresholds: all[5:6]},
		{metric: MetricAPSmall, bucket: bucketSmall, maxDets: cocoMaxDetections, thresholds: all},
		{metric: MetricAPMedium, bucket: bucketMedium, maxDets: cocoMaxDetections, thresholds: all},
		{metric: MetricAPLarge, bucket: bucketLarge, maxDets: cocoMaxDetections, thresholds: all},
		{metric: MetricAR1, bucket: bucketAll, maxDets: 1, thresholds: all, isRecall: true},
		{metric: MetricAR10, bucket: bucketAll, maxDets: 10, thresholds: all, isRecall: true},
		{metric: MetricAR100, bucket: bucketAll, maxDets: cocoMaxDetections, thresholds: all, isRecall: true},
		{metric: MetricARSmall, bucket: bucketSmall, maxDets: cocoMaxDetections, thresholds: all, isRecall: true},
		{metric: MetricARMedium, bucket: bucketMedium, maxDets: cocoMaxDetections, thresholds: all, isRecall: true},
		{metric: MetricARLarge, bucket: bucketLarge, maxDets: cocoMaxDetections, thresholds: all, isRecall: true},
	}
	settings := make([]cocoSetting, 0, len(candidates))
	for _, candidate := range candidates {
		if set.Has(candidate.metric) {
			settings = append(settings, candidate)
		}
	}
	return settings
}

// EvaluateCOCO computes the requested subset of the 12-field COCO summary:
// AP, AP50, AP75, APsmall, APmedium, APlarge, AR1, AR10, AR100, ARsmall,
// ARmedium, ARlarge. Fields whose restricted ground-truth set is empty report
// NaN. Requested fields are computed concurrently; inputs are immutable so no
// locking is needed beyond the final reduction.
func EvaluateCOCO(groundTruths, detections []BoundingBox, opts COCOOptions) (map[string]float64, error) {
	if err := validateBoxes(groundTruths, BBTypeGroundTruth); err != nil {
		return nil, errors.Wrap(err, "invalid ground-truth input")
	}
	if err := validateBoxes(detections, BBTypeDetected); err != nil {
		return nil, errors.Wrap(err, "invalid detections input")
	}
	settings := cocoSettings(opts.Metrics)
	values := make([]float64, len(settings))
	var wg sync.WaitGroup
	for i := range settings {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i] = evaluateCOCOSetting(groundTruths, detections, settings[i], opts.Algorithm)
		}(i)
	}
	wg.Wait()
	summary := make(map[string]float64, len(settings))
	for i, setting := range settings {
		summary[setting.metric.Key()] = values[i]
	}
	return summary, nil
}

// evaluateCOCOSetting restricts both collections to the setting's size bucket,
// caps detections per (image, class), then averages the per-class AP (101-point
// interpolation) or maximum recall over the setting's IoU thresholds.
func evaluateCOCOSetting(groundTruths, detections []BoundingBox, setting cocoSetting, algorithm MatchingAlgorithm) float64 {
	groundTruths = filterBucket(groundTruths, setting.bucket)
	detections = filterBucket(detections, setting.bucket)
	detections = topKPerGroup(detections, setting.maxDets)

	perClass := make(map[string][]float64)
	for _, threshold := range setting.thresholds {
		matcher := Matcher{IoUThreshold: threshold, Algorithm: algorithm}
		for label, cm := range matcher.match(groundTruths, detections) {
			if cm.NumGroundTruth == 0 {
				continue
			}
			value := 0.0
			if setting.isRecall {
				value = maxRecall(cm)
			} else {
				value = hundredOnePointAP(cm)
			}
			perClass[label] = append(perClass[label], value)
		}
	}
	if len(perClass) == 0 {
		// No class has ground truth in this bucket
		return math.NaN()
	}
	classMeans := make([]float64, 0, len(perClass))
	for _, values := range perClass {
		classMeans = append(classMeans, stat.Mean(values, nil))
	}
	return stat.Mean(classMeans, nil)
}

// hundredOnePointAP samples the precision envelope at the 101 recall levels
// {0, 0.01, ..., 1.00} and averages the samples.
func hundredOnePointAP(cm *ClassMatch) float64 {
	precision, recall := cm.PrecisionRecall()
	sum := 0.0
	for level := 0; level <= 100; level++ {
		r := float64(level) / 100.0
		best := 0.0
		for i := range recall {
			if recall[i] >= r && precision[i] > best {
				best = precision[i]
			}
		}
		sum += best
	}
	return sum / 101.0
}

// maxRecall is the recall achieved once detections run out (recall saturates
// when every ground truth of the class is matched).
func maxRecall(cm *ClassMatch) float64 {
	_, recall := cm.PrecisionRecall()
	if len(recall) == 0 {
		return 0.0
	}
	return floats.Max(recall)
}

func filterBucket(boxes []BoundingBox, bucket sizeBucket) []BoundingBox {
	if bucket == bucketAll {
		return boxes
	}
	out := make([]BoundingBox, 0, len(boxes))
	for _, bb := range boxes {
		if bucket.contains(bb.Area()) {
			out = append(out, bb)
		}
	}
	return out
}
