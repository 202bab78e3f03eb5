package blogsync

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunContext is the state shared by every document in one sync run: the
// set of upload keys already handled and the URL each one resolved to.
// Entries are only ever added.
type RunContext struct {
	ID        string
	DryRun    bool
	StartedAt time.Time

	mu       sync.Mutex
	uploaded map[UploadKey]string
	order    []UploadKey
}

// NewRunContext starts a run.
func NewRunContext(dryRun bool) *RunContext {
	return &RunContext{
		ID:        uuid.NewString(),
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		uploaded:  make(map[UploadKey]string),
	}
}

// Lookup returns the URL recorded for key in this run.
func (r *RunContext) Lookup(key UploadKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploaded[key]
	return u, ok
}

// Record marks key as handled with the given public URL.
func (r *RunContext) Record(key UploadKey, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.uploaded[key]; !ok {
		r.order = append(r.order, key)
	}
	r.uploaded[key] = url
}

// Keys returns the recorded keys in the order they were first recorded.
func (r *RunContext) Keys() []UploadKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]UploadKey(nil), r.order...)
}
