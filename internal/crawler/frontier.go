package crawler

import "sync"

// Kind tells pages and images apart.
// Failures are tracked per kind because the same URL can be both a page and
// an image reference.
type Kind int

const (
	// KindPage is an HTML page that is parsed for further references.
	KindPage Kind = iota
	// KindImage is an image that is downloaded to the image directory.
	KindImage
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Frontier records which URLs have been claimed for processing and which
// have permanently failed during a run. It is the single authority on
// whether a URL has been scheduled.
//
// Both sets only ever grow. The raw sets are never exposed; every access
// goes through Admit, MarkFailed, Failed or Stats.
type Frontier struct {
	mu      sync.Mutex
	visited map[string]struct{}
	failed  map[Kind]map[string]struct{}
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		visited: make(map[string]struct{}),
		failed: map[Kind]map[string]struct{}{
			KindPage:  make(map[string]struct{}),
			KindImage: make(map[string]struct{}),
		},
	}
}

// Admit marks u as visited and returns true iff u was neither visited nor
// a failed page. Concurrent callers racing on the same URL get exactly one
// true.
func (f *Frontier) Admit(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[u]; ok {
		return false
	}
	if _, ok := f.failed[KindPage][u]; ok {
		return false
	}
	f.visited[u] = struct{}{}
	return true
}

// MarkFailed records that the retry budget of u is exhausted for kind.
// It is irreversible for the lifetime of the frontier. It returns true only
// for the call that recorded the failure; later calls for the same kind and
// URL return false.
func (f *Frontier) MarkFailed(kind Kind, u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.failed[kind]
	if !ok {
		set = make(map[string]struct{})
		f.failed[kind] = set
	}
	if _, ok := set[u]; ok {
		return false
	}
	set[u] = struct{}{}
	return true
}

// Failed reports whether u has already exhausted its retry budget as kind.
func (f *Frontier) Failed(kind Kind, u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.failed[kind][u]
	return ok
}

// FrontierStats is a snapshot of the frontier's set sizes.
type FrontierStats struct {
	Visited      int
	FailedPages  int
	FailedImages int
}

// Stats returns the current set sizes.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return FrontierStats{
		Visited:      len(f.visited),
		FailedPages:  len(f.failed[KindPage]),
		FailedImages: len(f.failed[KindImage]),
	}
}
