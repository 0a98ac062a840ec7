package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PreviewScheme prefixes every preview reference.
const PreviewScheme = "blob:"

// Blob is the payload behind a preview reference.
type Blob struct {
	Data []byte
	Type string
}

// Previews hands out transient, revocable references to in-memory blobs.
type Previews struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewPreviews creates an empty registry.
func NewPreviews() *Previews {
	return &Previews{blobs: make(map[string]Blob)}
}

// Create registers data and returns its reference.
func (p *Previews) Create(data []byte, mimeType string) string {
	ref := PreviewScheme + uuid.NewString()

	p.mu.Lock()
	p.blobs[ref] = Blob{Data: data, Type: mimeType}
	p.mu.Unlock()
	return ref
}

// Resolve returns the blob behind ref, if it has not been revoked.
func (p *Previews) Resolve(ref string) (Blob, bool) {
	if !strings.HasPrefix(ref, PreviewScheme) {
		return Blob{}, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.blobs[ref]
	return b, ok
}

// Revoke releases ref. Unknown references are ignored.
func (p *Previews) Revoke(ref string) {
	p.mu.Lock()
	delete(p.blobs, ref)
	p.mu.Unlock()
}

// RevokeAll releases every outstanding reference.
func (p *Previews) RevokeAll() {
	p.mu.Lock()
	p.blobs = make(map[string]Blob)
	p.mu.Unlock()
}

// Len returns the number of live references.
func (p *Previews) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.blobs)
}
