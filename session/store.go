// Package session holds the images and results of one working session in memory.
package session

import (
	"slices"
	"sync"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// Store is an insertion-ordered set of source images plus the results of the
// last compression batch. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	images   []SourceImage
	results  []CompressedResult
	previews *Previews
}

// NewStore creates an empty store backed by previews. A nil registry gets a
// private one.
func NewStore(previews *Previews) *Store {
	if previews == nil {
		previews = NewPreviews()
	}
	return &Store{previews: previews}
}

// Previews returns the registry holding result previews.
func (s *Store) Previews() *Previews {
	return s.previews
}

// Append adds img at the end. Ids must be unique.
func (s *Store) Append(img SourceImage) error {
	if img.ID == "" {
		return apperrors.NewInvalid("id", img.ID, "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(img.ID) >= 0 {
		return apperrors.NewInvalid("id", img.ID, "already present in session")
	}
	s.images = append(s.images, img)
	return nil
}

// Remove drops the image with id and releases its surface. It reports whether
// anything was removed; results of earlier batches are kept.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.images[idx].Surface = nil
	s.images = slices.Delete(s.images, idx, idx+1)
	return true
}

// Clear drops every image and result and revokes all preview references.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.images {
		s.images[i].Surface = nil
	}
	s.images = nil
	s.results = nil
	s.previews.RevokeAll()
}

// SetResults replaces the stored results. Previews of the replaced results are
// revoked and a fresh reference is minted for each new one.
func (s *Store) SetResults(results []CompressedResult) []CompressedResult {
	stored := make([]CompressedResult, len(results))
	for i, r := range results {
		r.PreviewRef = s.previews.Create(r.Data, r.Type)
		stored[i] = r
	}

	s.mu.Lock()
	old := s.results
	s.results = stored
	s.mu.Unlock()

	for _, r := range old {
		if r.PreviewRef != "" {
			s.previews.Revoke(r.PreviewRef)
		}
	}
	return slices.Clone(stored)
}

// Images returns a snapshot of the images in order.
func (s *Store) Images() []SourceImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.images)
}

// Results returns a snapshot of the last batch's results in order.
func (s *Store) Results() []CompressedResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.results)
}

// Image looks up one image.
func (s *Store) Image(id string) (SourceImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return SourceImage{}, false
	}
	return s.images[idx], true
}

// Result looks up one result.
func (s *Store) Result(id string) (CompressedResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.results {
		if r.ID == id {
			return r, true
		}
	}
	return CompressedResult{}, false
}

// Len returns the number of images.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.images, func(img SourceImage) bool {
		return img.ID == id
	})
}
