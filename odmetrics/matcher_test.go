package odmetrics

import (
	"math"
	"testing"
)

func TestNewMatcher(t *testing.T) {
	matcher, err := NewMatcher(0.5, MatchingAlgorithmGreedy)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if matcher.IoUThreshold != 0.5 {
		t.Errorf("Expected IoUThreshold 0.5, got %v", matcher.IoUThreshold)
	}
	for _, threshold := range []float64{0.0, -0.5, 1.5} {
		if _, err := NewMatcher(threshold, MatchingAlgorithmGreedy); err == nil {
			t.Errorf("Threshold %v must be rejected", threshold)
		}
	}
	// 1.0 is inside the valid interval
	if _, err := NewMatcher(1.0, MatchingAlgorithmGreedy); err != nil {
		t.Errorf("Threshold 1.0 must be accepted: %v", err)
	}
}

func TestMatcherPerfectDetection(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	dets := []BoundingBox{detBox(t, "img1", "person", 0, 0, 10, 10, 0.9)}

	matches, err := matcher.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cm := matches["person"]
	if cm == nil {
		t.Fatal("Missing match results for class 'person'")
	}
	if cm.NumGroundTruth != 1 {
		t.Errorf("Expected 1 ground truth, got %d", cm.NumGroundTruth)
	}
	if len(cm.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(cm.Records))
	}
	record := cm.Records[0]
	if !record.TP {
		t.Error("Perfect detection must be a true positive")
	}
	if math.Abs(record.IoU-1.0) > eps {
		t.Errorf("Expected IoU 1.0, got %v", record.IoU)
	}
}

func TestMatcherDisjointDetection(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	dets := []BoundingBox{detBox(t, "img1", "person", 20, 20, 30, 30, 0.9)}

	matches, err := matcher.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	record := matches["person"].Records[0]
	if record.TP {
		t.Error("Disjoint detection must be a false positive")
	}
	if record.IoU != 0.0 {
		t.Errorf("Expected IoU 0.0, got %v", record.IoU)
	}
}

func TestMatcherNoDoubleAssignment(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	// Both detections exceed the threshold against the single ground truth
	dets := []BoundingBox{
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.9),
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.8),
	}

	matches, err := matcher.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	records := matches["person"].Records
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if !records[0].TP {
		t.Error("Highest-confidence detection must claim the ground truth")
	}
	if records[1].TP {
		t.Error("Second detection must be a false positive once the ground truth is claimed")
	}
}

func TestMatcherBothDetectionsMatchSeparateGroundTruths(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	gts := []BoundingBox{
		gtBox(t, "img1", "person", 0, 0, 10, 10),
		gtBox(t, "img1", "person", 2, 2, 12, 12),
	}
	dets := []BoundingBox{
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.9),
		detBox(t, "img1", "person", 2, 2, 12, 12, 0.8),
	}

	matches, err := matcher.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	tp, fp := matches["person"].Counts()
	if tp != 2 || fp != 0 {
		t.Errorf("Expected 2 TP / 0 FP, got %d TP / %d FP", tp, fp)
	}
}

func TestMatcherCrossImageForbidden(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	// Same coordinates but a different image: no match allowed
	dets := []BoundingBox{detBox(t, "img2", "person", 0, 0, 10, 10, 0.9)}

	matches, err := matcher.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record := matches["person"].Records[0]; record.TP {
		t.Error("Cross-image matching is forbidden")
	}
}

func TestMatcherRecordsOrderedByConfidence(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	dets := []BoundingBox{
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.3),
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.9),
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.6),
	}

	matches, err := matcher.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	records := matches["person"].Records
	expected := []float64{0.9, 0.6, 0.3}
	for i, confidence := range expected {
		if records[i].Confidence != confidence {
			t.Errorf("Position %d: expected confidence %v, got %v", i, confidence, records[i].Confidence)
		}
	}
	// Only the highest-confidence detection gets the single ground truth
	if !records[0].TP || records[1].TP || records[2].TP {
		t.Error("Only the highest-confidence detection must be a true positive")
	}
}

func TestMatcherDetectionOnlyClass(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	dets := []BoundingBox{detBox(t, "img1", "dog", 0, 0, 10, 10, 0.9)}

	matches, err := matcher.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cm := matches["dog"]
	if cm == nil {
		t.Fatal("Detection-only class must still be reported")
	}
	if cm.NumGroundTruth != 0 {
		t.Errorf("Expected 0 ground truths for class 'dog', got %d", cm.NumGroundTruth)
	}
	if cm.Records[0].TP {
		t.Error("Detection without any ground truth must be a false positive")
	}
}

func TestMatcherHungarianAgreesOnUnambiguousScenario(t *testing.T) {
	gts := []BoundingBox{
		gtBox(t, "img1", "person", 0, 0, 10, 10),
		gtBox(t, "img1", "person", 50, 50, 60, 60),
	}
	dets := []BoundingBox{
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.9),
		detBox(t, "img1", "person", 50, 50, 60, 60, 0.8),
	}
	for _, algorithm := range []MatchingAlgorithm{MatchingAlgorithmGreedy, MatchingAlgorithmHungarian} {
		matcher, _ := NewMatcher(0.5, algorithm)
		matches, err := matcher.Match(gts, dets)
		if err != nil {
			t.Fatalf("Algorithm %d: unexpected error: %v", algorithm, err)
		}
		tp, fp := matches["person"].Counts()
		if tp != 2 || fp != 0 {
			t.Errorf("Algorithm %d: expected 2 TP / 0 FP, got %d TP / %d FP", algorithm, tp, fp)
		}
	}
}

func TestMatcherHungarianFindsOptimalAssignment(t *testing.T) {
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	// The higher-confidence detection overlaps less than the lower-confidence one
	dets := []BoundingBox{
		detBox(t, "img1", "person", 0, 0, 10, 8, 0.9),
		detBox(t, "img1", "person", 0, 0, 10, 10, 0.8),
	}

	greedy, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	matches, err := greedy.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	records := matches["person"].Records
	if !records[0].TP || records[1].TP {
		t.Error("Greedy matching must let the higher-confidence detection claim the ground truth")
	}

	optimal, _ := NewMatcher(0.5, MatchingAlgorithmHungarian)
	matches, err = optimal.Match(gts, dets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	records = matches["person"].Records
	if records[0].TP || !records[1].TP {
		t.Error("Hungarian matching must pick the assignment with maximum total IoU")
	}
	if math.Abs(records[1].IoU-1.0) > eps {
		t.Errorf("Expected IoU 1.0 on the optimal pair, got %v", records[1].IoU)
	}
}

func TestMatcherRejectsMalformedInput(t *testing.T) {
	matcher, _ := NewMatcher(0.5, MatchingAlgorithmGreedy)
	bad := []BoundingBox{{ImageID: "img1", Label: "person", Type: BBTypeGroundTruth, X1: math.NaN()}}
	if _, err := matcher.Match(bad, nil); err == nil {
		t.Error("Non-finite coordinates must be rejected at the boundary")
	}
	gts := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	mistagged := []BoundingBox{gtBox(t, "img1", "person", 0, 0, 10, 10)}
	if _, err := matcher.Match(gts, mistagged); err == nil {
		t.Error("Ground-truth boxes in the detections slot must be rejected")
	}
}
