package queue

import "strconv"

// Item is a unit of work, or the sentinel telling a consumer to stop.
type Item struct {
	Value    int
	sentinel bool
}

// NewItem wraps a payload.
func NewItem(v int) Item {
	return Item{Value: v}
}

// Sentinel returns the "no more work" marker. It never equals a real item.
func Sentinel() Item {
	return Item{sentinel: true}
}

// IsSentinel reports whether i is the stop marker.
func (i Item) IsSentinel() bool {
	return i.sentinel
}

// String renders the payload; this is the dead-letter line format.
func (i Item) String() string {
	if i.sentinel {
		return "<sentinel>"
	}
	return strconv.Itoa(i.Value)
}
