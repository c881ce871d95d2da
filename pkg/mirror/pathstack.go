package mirror

import (
	"strings"
)

// Separator joins path segments in CurrentPath snapshots. Remote names never
// contain it, so segments and rendered paths round-trip cleanly.
const Separator = "/"

// PathStack is the ordered record of the destination-relative directory the
// traversal has entered. It must be mutated in lockstep with the actual
// directory enter/leave calls: the walker pushes only after a successful
// enter, and pops only around the matching leave.
type PathStack struct {
	segments []string
}

// NewPathStack returns an empty PathStack, positioned at the storage root.
func NewPathStack() *PathStack {
	return &PathStack{}
}

// Push appends segment to the stack. The segment must be a single valid path
// component.
func (s *PathStack) Push(segment string) {
	s.segments = append(s.segments, segment)
}

// Pop removes the most recently pushed segment. Popping an empty stack means
// the push/pop pairing with directory enter/leave has been broken, which is
// unrecoverable.
func (s *PathStack) Pop() {
	if len(s.segments) == 0 {
		panic("pathstack: pop of empty stack")
	}
	s.segments = s.segments[:len(s.segments)-1]
}

// CurrentPath returns a point-in-time snapshot of the entered directory as a
// relative path with a trailing separator, or "" at the storage root.
func (s *PathStack) CurrentPath() string {
	if len(s.segments) == 0 {
		return ""
	}
	return strings.Join(s.segments, Separator) + Separator
}

// Depth returns the number of entered directories. Diagnostic only.
func (s *PathStack) Depth() int {
	return len(s.segments)
}
