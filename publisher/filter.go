package publisher

import (
	"fmt"

	"github.com/gobwas/glob"
)

// GlobFilter selects streams using glob patterns
type GlobFilter struct {
	streamGlobs []glob.Glob
}

// NewGlobFilter creates a new glob-based filter
// Empty patterns match everything
func NewGlobFilter(patterns []string) (*GlobFilter, error) {
	filter := &GlobFilter{
		streamGlobs: make([]glob.Glob, 0, len(patterns)),
	}

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid stream pattern %q: %w", pattern, err)
		}
		filter.streamGlobs = append(filter.streamGlobs, g)
	}

	return filter, nil
}

// Match returns true if the stream matches any configured pattern
// If no patterns are configured, all streams match
func (f *GlobFilter) Match(stream string) bool {
	if len(f.streamGlobs) == 0 {
		return true
	}

	for _, g := range f.streamGlobs {
		if g.Match(stream) {
			return true
		}
	}

	return false
}
