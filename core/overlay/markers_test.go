package overlay

import (
	"testing"

	"spitbox/model"
)

func TestDedupKeepsEarliestInBucket(t *testing.T) {
	comments := []model.Comment{
		{ID: 2, Timestamp: 10.3, Content: "later", CreatedAt: "2025-01-01T10:05:00"},
		{ID: 1, Timestamp: 10.1, Content: "first", CreatedAt: "2025-01-01T10:00:00"},
	}

	markers := BuildMarkers(comments, 60)
	if len(markers) != 1 {
		t.Fatalf("markers = %d, want 1 (10.1 and 10.3 share a 0.5s bucket)", len(markers))
	}
	if markers[0].CommentID != 1 {
		t.Fatalf("surviving marker = comment %d, want the earlier-created 1", markers[0].CommentID)
	}
}

func TestDistinctBucketsBothRender(t *testing.T) {
	comments := []model.Comment{
		{ID: 1, Timestamp: 10.1, CreatedAt: "2025-01-01T10:00:00"},
		{ID: 2, Timestamp: 10.6, CreatedAt: "2025-01-01T10:05:00"},
	}

	markers := BuildMarkers(comments, 60)
	if len(markers) != 2 {
		t.Fatalf("markers = %d, want 2 (10.1 and 10.6 round to different buckets)", len(markers))
	}
}

func TestPlacementAndAnchor(t *testing.T) {
	comments := []model.Comment{
		{ID: 1, Timestamp: 75, CreatedAt: "a"},
		{ID: 2, Timestamp: 25, CreatedAt: "b"},
		{ID: 3, Timestamp: 50, CreatedAt: "c"},
	}

	markers := BuildMarkers(comments, 100)
	byID := map[int64]Marker{}
	for _, m := range markers {
		byID[m.CommentID] = m
	}

	if m := byID[1]; m.Percent != 75 || m.Anchor != AnchorRight {
		t.Errorf("comment at 75/100s: percent=%v anchor=%s, want 75%% right-anchored", m.Percent, m.Anchor)
	}
	if m := byID[2]; m.Percent != 25 || m.Anchor != AnchorLeft {
		t.Errorf("comment at 25/100s: percent=%v anchor=%s, want 25%% left-anchored", m.Percent, m.Anchor)
	}
	// Exactly 50% still anchors left.
	if m := byID[3]; m.Anchor != AnchorLeft {
		t.Errorf("comment at 50%%: anchor=%s, want left", m.Anchor)
	}
}

func TestPlacementClampsOutOfRangeTimestamps(t *testing.T) {
	comments := []model.Comment{
		{ID: 1, Timestamp: 120, CreatedAt: "a"}, // past the end
	}
	markers := BuildMarkers(comments, 100)
	if len(markers) != 1 || markers[0].Percent != 100 {
		t.Fatalf("marker past end = %+v, want clamped to 100%%", markers)
	}
}

func TestBuildMarkersEmptyInputs(t *testing.T) {
	if got := BuildMarkers(nil, 100); got != nil {
		t.Errorf("no comments should yield no markers, got %v", got)
	}
	if got := BuildMarkers([]model.Comment{{ID: 1, Timestamp: 5}}, 0); got != nil {
		t.Errorf("zero duration should yield no markers, got %v", got)
	}
}

func TestVisibleMarkersProximity(t *testing.T) {
	markers := BuildMarkers([]model.Comment{
		{ID: 1, Timestamp: 10, CreatedAt: "a"},
		{ID: 2, Timestamp: 30, CreatedAt: "b"},
	}, 60)

	if v := VisibleMarkers(markers, 10.5); len(v) != 1 {
		t.Fatalf("position 10.5: visible = %v, want only comment 1", v)
	} else if _, ok := v[1]; !ok {
		t.Fatalf("position 10.5: visible = %v, want comment 1", v)
	}

	if v := VisibleMarkers(markers, 20); len(v) != 0 {
		t.Fatalf("position 20 is >1s from everything, visible = %v", v)
	}
}

func TestVisibleMarkersClosestWins(t *testing.T) {
	markers := BuildMarkers([]model.Comment{
		{ID: 1, Timestamp: 10.0, CreatedAt: "a"},
		{ID: 2, Timestamp: 11.2, CreatedAt: "b"},
	}, 60)

	// Both are within 1s of 10.7; only the closer (11.2) may show.
	v := VisibleMarkers(markers, 10.7)
	if len(v) != 1 {
		t.Fatalf("visible = %v, want exactly one", v)
	}
	if _, ok := v[2]; !ok {
		t.Fatalf("visible = %v, want the closest-in-time comment 2", v)
	}
}

func TestVisibleMarkersToleratesStaleInputs(t *testing.T) {
	// A position tick against an empty (not-yet-fetched) comment list must
	// not panic and renders nothing.
	if v := VisibleMarkers(nil, 12.3); len(v) != 0 {
		t.Fatalf("visible on nil markers = %v", v)
	}
}
