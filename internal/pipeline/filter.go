package pipeline

import (
	"strings"
	"sync"

	"picktally/internal/types"
)

// ResultFilter decides whether a search result proceeds to fetching.
type ResultFilter interface {
	// Name returns the filter's identifier.
	Name() string

	// Keep reports whether the result should stay in the run.
	Keep(r types.SearchResult) bool
}

// DomainDenyFilter drops results whose domain contains any deny entry.
type DomainDenyFilter struct {
	Deny []string
}

func (f *DomainDenyFilter) Name() string { return "domain_deny" }

func (f *DomainDenyFilter) Keep(r types.SearchResult) bool {
	dom := r.Domain()
	for _, d := range f.Deny {
		if d != "" && strings.Contains(dom, strings.ToLower(d)) {
			return false
		}
	}
	return true
}

// DomainAllowFilter keeps only results whose domain contains an allow
// entry. An empty allow list keeps everything.
type DomainAllowFilter struct {
	Allow []string
}

func (f *DomainAllowFilter) Name() string { return "domain_allow" }

func (f *DomainAllowFilter) Keep(r types.SearchResult) bool {
	if len(f.Allow) == 0 {
		return true
	}
	dom := r.Domain()
	for _, a := range f.Allow {
		if a != "" && strings.Contains(dom, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// DedupFilter drops results whose URL was already seen in this run.
type DedupFilter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupFilter() *DedupFilter {
	return &DedupFilter{seen: make(map[string]struct{})}
}

func (f *DedupFilter) Name() string { return "dedup" }

func (f *DedupFilter) Keep(r types.SearchResult) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.seen[r.URL]; exists {
		return false
	}
	f.seen[r.URL] = struct{}{}
	return true
}
