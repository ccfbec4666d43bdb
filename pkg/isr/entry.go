package isr

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status describes the lifecycle state of a cache entry.
type Status string

const (
	// StatusFresh means the entry is within its revalidation interval.
	StatusFresh Status = "fresh"

	// StatusStale means the interval has elapsed; the entry may still be
	// served during the stale-while-revalidate window.
	StatusStale Status = "stale"

	// StatusRevalidating means a background regeneration is in flight.
	StatusRevalidating Status = "revalidating"

	// StatusError means the last regeneration attempt failed.
	StatusError Status = "error"
)

// Meta holds the staleness and bookkeeping metadata of a cache entry.
type Meta struct {
	// Path is the canonical request path this entry was rendered for.
	Path string `json:"path"`

	// CreatedAt is when the entry was first rendered.
	CreatedAt time.Time `json:"createdAt"`

	// RevalidatedAt is when the entry was last successfully regenerated.
	RevalidatedAt time.Time `json:"revalidatedAt"`

	// RevalidateInterval is how long the entry stays fresh.
	RevalidateInterval time.Duration `json:"revalidateInterval"`

	// Tags are the invalidation labels attached to this entry.
	Tags []string `json:"tags,omitempty"`

	// Status is the entry's lifecycle state.
	Status Status `json:"status"`

	// RegenerationCount is how many times the entry has been regenerated.
	RegenerationCount int `json:"regenerationCount"`

	// ContentHash is the sha256 hex digest of the HTML, used for ETags.
	ContentHash string `json:"contentHash"`

	// ErrorMessage holds the last render error when Status is error.
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Entry is a cached rendered page. A path maps to at most one live Entry.
type Entry struct {
	// HTML is the rendered page body.
	HTML string `json:"html"`

	// Meta is the staleness and bookkeeping metadata.
	Meta Meta `json:"meta"`

	// Headers are extra response headers captured at render time.
	Headers map[string]string `json:"headers,omitempty"`
}

// Clone returns a deep copy of the entry. Adapters that share memory with
// callers (the in-memory adapter) clone on read and write so mutations on
// one side never leak to the other.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Meta.Tags != nil {
		clone.Meta.Tags = append([]string(nil), e.Meta.Tags...)
	}
	if e.Headers != nil {
		clone.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			clone.Headers[k] = v
		}
	}
	return &clone
}

// ContentHash returns the sha256 hex digest of html.
func ContentHash(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}
