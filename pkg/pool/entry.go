package pool

import (
	"slices"
	"strings"
	"time"
)

// Entry is a snapshot of one pooled audio file. Values handed out by the pool
// never alias its internal state.
type Entry struct {
	ID         string
	Path       string
	Name       string
	Extension  string
	Size       int64
	ModTime    time.Time
	IsExternal bool
	Tags       []string
	UsageCount int
	Analysis   *Analysis
	AddedAt    time.Time
}

// Analysis holds the derived properties of an entry. BPM 0 and an empty Key
// mean the analyzer could not produce an estimate.
type Analysis struct {
	BPM        float64
	Key        string
	Duration   time.Duration
	SampleRate int
	Channels   int
	AnalyzedAt time.Time
}

func (e Entry) clone() Entry {
	e.Tags = slices.Clone(e.Tags)
	if e.Analysis != nil {
		a := *e.Analysis
		e.Analysis = &a
	}
	return e
}

// HasTag compares case-insensitively.
func (e Entry) HasTag(tag string) bool {
	return tagIndex(e.Tags, tag) >= 0
}

func tagIndex(tags []string, tag string) int {
	return slices.IndexFunc(tags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

func (e Entry) matches(query string) bool {
	if strings.Contains(strings.ToLower(e.Name), query) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
