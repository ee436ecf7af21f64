package untangle

import "encoding/json"

// SegmentedText is the serialized form of one projection
type SegmentedText struct {
	OrderedSegments []string `json:"_ordered_segments"`
}

// PhysicalText returns the line projection of the inventory
func (r *Result) PhysicalText() SegmentedText {
	return SegmentedText{OrderedSegments: r.Physical}
}

// LogicalText returns the paragraph projection of the inventory
func (r *Result) LogicalText() SegmentedText {
	return SegmentedText{OrderedSegments: r.Logical}
}

// JSON encodes the projection with one segment per array element
func (t SegmentedText) JSON() ([]byte, error) {
	if t.OrderedSegments == nil {
		t.OrderedSegments = []string{}
	}
	return json.MarshalIndent(t, "", "  ")
}
