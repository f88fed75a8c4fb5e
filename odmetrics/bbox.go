package odmetrics

import (
	"math"

	"github.com/pkg/errors"
)

// BBType tells whether a bounding box is an annotated ground truth or a detector output.
type BBType uint16

const (
	// BBTypeGroundTruth marks a box coming from the annotated dataset
	BBTypeGroundTruth BBType = iota
	// BBTypeDetected marks a box produced by the evaluated detector
	BBTypeDetected
)

func (t BBType) String() string {
	switch t {
	case BBTypeGroundTruth:
		return "ground truth"
	case BBTypeDetected:
		return "detected"
	default:
		return "unknown"
	}
}

// BoundingBox is one axis-aligned box in absolute pixel coordinates:
// (X1, Y1) is the top-left corner, (X2, Y2) the bottom-right one.
// Values are treated as immutable once constructed: evaluators never modify
// them and re-tagging helpers always build new values.
type BoundingBox struct {
	// ImageID identifies the image the box belongs to. Opaque key, matching is never done across images
	ImageID string
	// Label is the category name. Uniqueness is per (ImageID, Label) group
	Label string
	// Type of the box (ground truth or detected)
	Type BBType
	X1   float64
	Y1   float64
	X2   float64
	Y2   float64
	// Confidence in [0;1] is meaningful only when Type is BBTypeDetected
	Confidence float64
}

// NewGroundTruthBox builds an annotated box in absolute (x1, y1, x2, y2) pixel coordinates.
func NewGroundTruthBox(imageID, label string, x1, y1, x2, y2 float64) (BoundingBox, error) {
	bb := BoundingBox{
		ImageID: imageID,
		Label:   label,
		Type:    BBTypeGroundTruth,
		X1:      x1,
		Y1:      y1,
		X2:      x2,
		Y2:      y2,
	}
	if err := bb.Validate(); err != nil {
		return BoundingBox{}, errors.Wrap(err, "invalid ground-truth box")
	}
	return bb, nil
}

// NewDetectedBox builds a detector-output box in absolute (x1, y1, x2, y2) pixel
// coordinates with the given confidence score.
func NewDetectedBox(imageID, label string, x1, y1, x2, y2, confidence float64) (BoundingBox, error) {
	bb := BoundingBox{
		ImageID:    imageID,
		Label:      label,
		Type:       BBTypeDetected,
		X1:         x1,
		Y1:         y1,
		X2:         x2,
		Y2:         y2,
		Confidence: confidence,
	}
	if err := bb.Validate(); err != nil {
		return BoundingBox{}, errors.Wrap(err, "invalid detected box")
	}
	return bb, nil
}

// Validate checks the structural invariants of the box. Zero-area boxes are
// legal input; inverted rectangles and non-finite values are not.
func (bb BoundingBox) Validate() error {
	for _, v := range [4]float64{bb.X1, bb.Y1, bb.X2, bb.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("box on image '%s' has non-finite coordinate %v", bb.ImageID, v)
		}
	}
	if bb.X2 < bb.X1 || bb.Y2 < bb.Y1 {
		return errors.Errorf("box on image '%s' is inverted: (%v, %v, %v, %v)", bb.ImageID, bb.X1, bb.Y1, bb.X2, bb.Y2)
	}
	if bb.ImageID == "" {
		return errors.New("box has empty image identifier")
	}
	if bb.Label == "" {
		return errors.Errorf("box on image '%s' has empty class label", bb.ImageID)
	}
	if bb.Type == BBTypeDetected {
		if math.IsNaN(bb.Confidence) || bb.Confidence < 0.0 || bb.Confidence > 1.0 {
			return errors.Errorf("box on image '%s' has confidence %v outside [0;1]", bb.ImageID, bb.Confidence)
		}
	}
	return nil
}

// AsGroundTruth returns a copy of boxes re-tagged as ground truth with
// confidences cleared. The input slice and its elements are left untouched, so
// batches shared between evaluation runs cannot be corrupted through aliasing.
func AsGroundTruth(boxes []BoundingBox) []BoundingBox {
	out := make([]BoundingBox, len(boxes))
	for i, bb := range boxes {
		bb.Type = BBTypeGroundTruth
		bb.Confidence = 0.0
		out[i] = bb
	}
	return out
}

// validateBoxes rejects malformed or wrongly tagged boxes before any computation starts.
func validateBoxes(boxes []BoundingBox, want BBType) error {
	for i, bb := range boxes {
		if bb.Type != want {
			return errors.Errorf("box #%d on image '%s' is tagged as %s, expected %s", i, bb.ImageID, bb.Type, want)
		}
		if err := bb.Validate(); err != nil {
			return errors.Wrapf(err, "box #%d", i)
		}
	}
	return nil
}
