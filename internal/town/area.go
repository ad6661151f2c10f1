package town

import (
	"slices"
)

// BoundingBox is an axis-aligned rectangle described by its center point and
// extent.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) span() (x1, x2, y1, y2 float64) {
	return b.X - b.Width/2, b.X + b.Width/2, b.Y - b.Height/2, b.Y + b.Height/2
}

// Overlaps reports whether two boxes share interior points. Boxes that only
// touch along an edge do not overlap.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	ax1, ax2, ay1, ay2 := b.span()
	bx1, bx2, by1, by2 := other.span()

	noOverlap := ax1 >= bx2 || bx1 >= ax2 || ay1 >= by2 || by1 >= ay2
	return !noOverlap
}

func (b BoundingBox) contains(x, y float64) bool {
	x1, x2, y1, y2 := b.span()
	return x > x1 && x < x2 && y > y1 && y < y2
}

// ConversationArea is a labeled rectangular region of a town whose occupant
// set is tracked and broadcast. The label is unique within the town.
type ConversationArea struct {
	Label       string      `json:"label"`
	Topic       string      `json:"topic"`
	BoundingBox BoundingBox `json:"bounding_box"`
	OccupantIDs []string    `json:"occupants_by_id"`
}

// snapshot copies the area so the result can be read and encoded without
// the town lock.
func (a *ConversationArea) snapshot() *ConversationArea {
	cp := *a
	cp.OccupantIDs = slices.Clone(a.OccupantIDs)
	return &cp
}

// areaIndex holds a town's active conversation areas. It is owned by a single
// Controller and is never accessed concurrently, so it carries no lock of its
// own.
type areaIndex struct {
	areas []*ConversationArea
}

func (ix *areaIndex) byLabel(label string) *ConversationArea {
	if label == "" {
		return nil
	}
	for _, a := range ix.areas {
		if a.Label == label {
			return a
		}
	}
	return nil
}

func (ix *areaIndex) overlapsAny(box BoundingBox) bool {
	for _, a := range ix.areas {
		if a.BoundingBox.Overlaps(box) {
			return true
		}
	}
	return false
}

func (ix *areaIndex) add(a *ConversationArea) {
	ix.areas = append(ix.areas, a)
}

// removeOccupant drops a participant from an area's occupant list. An area
// whose occupant list empties is removed from the index in the same step, so
// no caller ever observes a lingering zero-occupant area. Reports whether the
// area was destroyed.
func (ix *areaIndex) removeOccupant(a *ConversationArea, participantID string) bool {
	if i := slices.Index(a.OccupantIDs, participantID); i >= 0 {
		a.OccupantIDs = slices.Delete(a.OccupantIDs, i, i+1)
	}

	if len(a.OccupantIDs) > 0 {
		return false
	}
	if i := slices.Index(ix.areas, a); i >= 0 {
		ix.areas = slices.Delete(ix.areas, i, i+1)
	}
	return true
}
