package segmentation

import (
	"go.viam.com/fieldvision/vision/lut"
)

// NoSegment is the Previous or Next index of a segment at the end of its scan.
const NoSegment = -1

// Segment is a classified run that knows its neighbours along the scan it came from.
type Segment struct {
	lut.Segment
	Previous int
	Next     int
}

// HasNeighbours reports whether the segment is interior to its scan.
func (s Segment) HasNeighbours() bool {
	return s.Previous != NoSegment && s.Next != NoSegment
}

// SegmentSet stores every segment of one scan orientation for a frame. Segments holds them in
// insertion order and ByClass indexes them per class, also in insertion order.
type SegmentSet struct {
	Segments []Segment
	ByClass  map[lut.Class][]int
}

// NewSegmentSet creates an empty SegmentSet.
func NewSegmentSet() *SegmentSet {
	return &SegmentSet{
		Segments: make([]Segment, 0, 256),
		ByClass:  make(map[lut.Class][]int),
	}
}

// N gives the number of segments in the set.
func (ss *SegmentSet) N() int {
	return len(ss.Segments)
}

// Get returns the segment at index i.
func (ss *SegmentSet) Get(i int) Segment {
	return ss.Segments[i]
}

// Insert adds the segments of one scan, linking each to its neighbours in that scan. The indices
// of the new segments are returned.
func (ss *SegmentSet) Insert(scan []lut.Segment) []int {
	indices := make([]int, 0, len(scan))
	for i, s := range scan {
		index := len(ss.Segments)
		seg := Segment{Segment: s, Previous: NoSegment, Next: NoSegment}
		if i > 0 {
			seg.Previous = index - 1
			ss.Segments[index-1].Next = index
		}
		ss.Segments = append(ss.Segments, seg)
		ss.ByClass[s.Class] = append(ss.ByClass[s.Class], index)
		indices = append(indices, index)
	}
	return indices
}

// OfClass returns the segments of class c in insertion order.
func (ss *SegmentSet) OfClass(c lut.Class) []Segment {
	indices := ss.ByClass[c]
	out := make([]Segment, 0, len(indices))
	for _, i := range indices {
		out = append(out, ss.Segments[i])
	}
	return out
}

// Neighbours returns the segments before and after s in its scan; ok is false at scan ends.
func (ss *SegmentSet) Neighbours(s Segment) (previous, next Segment, ok bool) {
	if !s.HasNeighbours() {
		return Segment{}, Segment{}, false
	}
	return ss.Segments[s.Previous], ss.Segments[s.Next], true
}
