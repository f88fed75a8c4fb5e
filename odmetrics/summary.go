package odmetrics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Metric identifies one field of the evaluation summary.
type Metric uint16

const (
	// MetricAP is COCO AP averaged over the 10 IoU thresholds 0.50:0.05:0.95
	MetricAP Metric = 1 << iota
	// MetricAP50 is COCO AP at IoU threshold 0.50
	MetricAP50
	// MetricAP75 is COCO AP at IoU threshold 0.75
	MetricAP75
	// MetricAPSmall is COCO AP restricted to boxes with area < 32^2
	MetricAPSmall
	// MetricAPMedium is COCO AP restricted to boxes with 32^2 <= area < 96^2
	MetricAPMedium
	// MetricAPLarge is COCO AP restricted to boxes with area >= 96^2
	MetricAPLarge
	// MetricAR1 is COCO AR with at most 1 detection per (image, class)
	MetricAR1
	// MetricAR10 is COCO AR with at most 10 detections per (image, class)
	MetricAR10
	// MetricAR100 is COCO AR with at most 100 detections per (image, class)
	MetricAR100
	// MetricARSmall is COCO AR restricted to boxes with area < 32^2
	MetricARSmall
	// MetricARMedium is COCO AR restricted to boxes with 32^2 <= area < 96^2
	MetricARMedium
	// MetricARLarge is COCO AR restricted to boxes with area >= 96^2
	MetricARLarge
	// MetricPascalAP is the per-class Pascal VOC AP with its curve arrays
	MetricPascalAP
	// MetricPascalMAP is the Pascal VOC mAP
	MetricPascalMAP
)

// Key returns the summary-map key of the metric.
func (m Metric) Key() string {
	switch m {
	case MetricAP:
		return "AP"
	case MetricAP50:
		return "AP50"
	case MetricAP75:
		return "AP75"
	case MetricAPSmall:
		return "APsmall"
	case MetricAPMedium:
		return "APmedium"
	case MetricAPLarge:
		return "APlarge"
	case MetricAR1:
		return "AR1"
	case MetricAR10:
		return "AR10"
	case MetricAR100:
		return "AR100"
	case MetricARSmall:
		return "ARsmall"
	case MetricARMedium:
		return "ARmedium"
	case MetricARLarge:
		return "ARlarge"
	case MetricPascalAP:
		return "AP (Pascal)"
	case MetricPascalMAP:
		return "mAP (Pascal)"
	default:
		return "unknown"
	}
}

// MetricSet is a bitmask of requested metrics. Evaluators compute exactly the
// requested fields, nothing is computed and then thrown away.
type MetricSet uint16

const (
	// AllCOCOMetrics requests the full 12-field COCO summary
	AllCOCOMetrics MetricSet = MetricSet(MetricAP | MetricAP50 | MetricAP75 |
		MetricAPSmall | MetricAPMedium | MetricAPLarge |
		MetricAR1 | MetricAR10 | MetricAR100 |
		MetricARSmall | MetricARMedium | MetricARLarge)
	// AllPascalMetrics requests both Pascal VOC fields
	AllPascalMetrics MetricSet = MetricSet(MetricPascalAP | MetricPascalMAP)
	// AllMetrics requests everything
	AllMetrics MetricSet = AllCOCOMetrics | AllPascalMetrics
)

// Has reports whether the metric is requested.
func (s MetricSet) Has(m Metric) bool {
	return uint16(s)&uint16(m) != 0
}

// With returns the set with the metric added.
func (s MetricSet) With(m Metric) MetricSet {
	return s | MetricSet(m)
}

// Options configures a full evaluation run.
type Options struct {
	Metrics             MetricSet
	PascalIoUThreshold  float64
	PascalInterpolation InterpolationMethod
	Algorithm           MatchingAlgorithm
}

// DefaultOptions creates the defaults every caller starts from: all metrics
// selected, Pascal IoU threshold 0.5, continuous interpolation, greedy matching.
func DefaultOptions() Options {
	return Options{
		Metrics:             AllMetrics,
		PascalIoUThreshold:  DefaultIoUThreshold,
		PascalInterpolation: InterpolationContinuous,
		Algorithm:           MatchingAlgorithmGreedy,
	}
}

// PrecisionRecallCurve is the per-class payload consumed by external
// chart-plotting collaborators. The engine itself renders nothing.
type PrecisionRecallCurve struct {
	Label     string
	Precision []float64
	Recall    []float64
	AP        float64
}

// Report is the assembled output of one evaluation run.
type Report struct {
	ID        uuid.UUID
	CreatedAt time.Time
	// COCOMetrics holds exactly the requested COCO fields, nil when none were requested
	COCOMetrics map[string]float64
	// Pascal is nil when no Pascal field was requested; PerClass is nil when
	// only the mAP was requested
	Pascal *PascalVOCResult
}

// Evaluate runs the requested metric families over the two collections and
// assembles a report. Requesting no metrics yields an empty report, not an
// error; structural input problems are rejected before any computation.
func Evaluate(groundTruths, detections []BoundingBox, opts Options) (*Report, error) {
	report := &Report{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}
	if cocoSet := opts.Metrics & AllCOCOMetrics; cocoSet != 0 {
		summary, err := EvaluateCOCO(groundTruths, detections, COCOOptions{
			Metrics:   cocoSet,
			Algorithm: opts.Algorithm,
		})
		if err != nil {
			return nil, errors.Wrap(err, "COCO evaluation failed")
		}
		report.COCOMetrics = summary
	}
	if opts.Metrics&AllPascalMetrics != 0 {
		pascal, err := EvaluatePascalVOC(groundTruths, detections, PascalVOCOptions{
			IoUThreshold:  opts.PascalIoUThreshold,
			Interpolation: opts.PascalInterpolation,
			Algorithm:     opts.Algorithm,
		})
		if err != nil {
			return nil, errors.Wrap(err, "Pascal VOC evaluation failed")
		}
		if !opts.Metrics.Has(MetricPascalAP) {
			// The mAP is derived from the per-class APs anyway; only the
			// per-class payload is dropped from the report
			pascal.PerClass = nil
		}
		report.Pascal = pascal
	}
	return report, nil
}

// PrecisionRecallCurves extracts plot-ready curve arrays from the Pascal
// result, ordered by class label. Returns nil when per-class Pascal metrics
// were not requested.
func (r *Report) PrecisionRecallCurves() []PrecisionRecallCurve {
	if r.Pascal == nil || len(r.Pascal.PerClass) == 0 {
		return nil
	}
	labels := make([]string, 0, len(r.Pascal.PerClass))
	for label := range r.Pascal.PerClass {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	curves := make([]PrecisionRecallCurve, 0, len(labels))
	for _, label := range labels {
		metrics := r.Pascal.PerClass[label]
		curves = append(curves, PrecisionRecallCurve{
			Label:     label,
			Precision: metrics.Precision,
			Recall:    metrics.Recall,
			AP:        metrics.AP,
		})
	}
	return curves
}
