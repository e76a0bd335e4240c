package analysis

import "strings"

type segmentState int

const (
	stateOutside segmentState = iota
	stateInBlock
)

// segmenter partitions output into error blocks in a single forward pass.
type segmenter struct {
	registry *Registry
	state    segmentState
	current  ErrorRecord
	blocks   []ErrorRecord
}

// Segment splits output into error blocks using the default registry.
func Segment(output string) []ErrorRecord {
	return defaultRegistry.Segment(output)
}

// Segment splits output into error blocks. The result is never nil and is
// ordered by line number.
func (r *Registry) Segment(output string) []ErrorRecord {
	s := &segmenter{registry: r, blocks: []ErrorRecord{}}
	if output == "" {
		return s.blocks
	}
	for i, raw := range strings.Split(output, "\n") {
		s.feed(i+1, strings.TrimSuffix(raw, "\r"))
	}
	s.finalize()
	return s.blocks
}

// feed applies the transition rules to one line. The order of the checks is
// significant: a start line always opens a new block, even when indented.
func (s *segmenter) feed(lineNo int, raw string) {
	trimmed := strings.TrimSpace(raw)

	if s.registry.IsStart(trimmed) {
		s.finalize()
		s.current = ErrorRecord{
			Line:    lineNo,
			Message: trimmed,
			Context: []string{},
			Kind:    Classify(trimmed),
		}
		s.state = stateInBlock
		return
	}

	if s.state == stateOutside {
		return
	}

	if trimmed == "" || !indented(raw) {
		s.finalize()
		return
	}

	s.current.Context = append(s.current.Context, trimmed)
}

func (s *segmenter) finalize() {
	if s.state != stateInBlock {
		return
	}
	s.blocks = append(s.blocks, s.current)
	s.current = ErrorRecord{}
	s.state = stateOutside
}

func indented(raw string) bool {
	return strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")
}
