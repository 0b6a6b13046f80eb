// Package overlay projects time-stamped comments onto a waveform's
// horizontal axis. Everything here is a pure function of its inputs so the
// rendering layer can recompute visibility on every position tick without
// touching layout, and a tick arriving against a stale comment list is
// harmless.
package overlay

import (
	"math"
	"sort"

	"spitbox/model"
)

// bucketSize groups comments landing at nearly the same moment.
const bucketSize = 0.5

// proximityWindow is how close playback must be to a marker, in seconds,
// for its bubble to show. Visibility is proximity-driven rather than
// hover-driven: the overlay stays a pure function of playback position and
// needs no pointer model.
const proximityWindow = 1.0

// Anchor says which side a marker's text bubble attaches to, so bubbles
// near the end of the track do not overflow the container.
type Anchor string

const (
	AnchorLeft  Anchor = "left"
	AnchorRight Anchor = "right"
)

// Marker is one rendered comment position on the waveform.
type Marker struct {
	CommentID int64
	Timestamp float64
	Author    string
	Text      string
	Percent   float64 // horizontal position, 0-100
	Anchor    Anchor
}

// BuildMarkers computes marker layout for a comment list. Comments are
// grouped into half-second buckets and only the earliest-created comment
// in a bucket becomes a marker, suppressing clutter from near-simultaneous
// comments at the same moment. Call this only when comments or duration
// change, never per position tick.
func BuildMarkers(comments []model.Comment, duration float64) []Marker {
	if duration <= 0 || len(comments) == 0 {
		return nil
	}

	// Earliest-created comment wins its bucket. CreatedAt is an ISO-8601
	// string from the backend, so lexical order is creation order; the ID
	// breaks ties for same-instant rows.
	byBucket := make(map[int64]model.Comment)
	for _, c := range comments {
		b := bucket(c.Timestamp)
		cur, ok := byBucket[b]
		if !ok || earlier(c, cur) {
			byBucket[b] = c
		}
	}

	markers := make([]Marker, 0, len(byBucket))
	for _, c := range byBucket {
		pct := c.Timestamp / duration * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		anchor := AnchorLeft
		if pct > 50 {
			anchor = AnchorRight
		}
		markers = append(markers, Marker{
			CommentID: c.ID,
			Timestamp: c.Timestamp,
			Author:    c.Author,
			Text:      c.Content,
			Percent:   pct,
			Anchor:    anchor,
		})
	}

	sort.Slice(markers, func(i, j int) bool {
		return markers[i].Timestamp < markers[j].Timestamp
	})
	return markers
}

// bucket maps a timestamp to its half-second slot: 10.1 and 10.3 share a
// bucket, 10.6 starts the next one.
func bucket(timestamp float64) int64 {
	return int64(math.Floor(timestamp / bucketSize))
}

func earlier(a, b model.Comment) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

// VisibleMarkers returns the IDs of markers whose bubble should show at
// the given playback position: markers within the proximity window, with
// only the single closest-in-time marker qualifying when several do.
// Cheap enough to recompute every tick.
func VisibleMarkers(markers []Marker, position float64) map[int64]struct{} {
	bestIdx := -1
	bestDist := math.Inf(1)
	for i, m := range markers {
		d := math.Abs(m.Timestamp - position)
		if d <= proximityWindow && d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}

	visible := make(map[int64]struct{}, 1)
	if bestIdx >= 0 {
		visible[markers[bestIdx].CommentID] = struct{}{}
	}
	return visible
}
