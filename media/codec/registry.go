package codec

import (
	"errors"
	"sort"
	"sync"
)

// ErrEncoderNotFound is returned when no encoder is registered for a type.
var ErrEncoderNotFound = errors.New("encoder not found")

// Registry maps MIME types to encoders.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]Encoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{encoders: make(map[string]Encoder)}
}

// DefaultRegistry returns a registry holding the JPEG, PNG and WebP encoders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&JPEGEncoder{})
	r.Register(&PNGEncoder{})
	r.Register(&WebPEncoder{})
	return r
}

// Register adds or replaces the encoder for enc.MIMEType().
func (r *Registry) Register(enc Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[enc.MIMEType()] = enc
}

// Get retrieves the encoder for mimeType.
func (r *Registry) Get(mimeType string) (Encoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enc, ok := r.encoders[mimeType]
	if !ok {
		return nil, ErrEncoderNotFound
	}
	return enc, nil
}

// List returns the registered encoders ordered by MIME type.
func (r *Registry) List() []Encoder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Encoder, 0, len(r.encoders))
	for _, enc := range r.encoders {
		out = append(out, enc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MIMEType() < out[j].MIMEType()
	})
	return out
}
