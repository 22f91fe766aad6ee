// Package memory provides an in-memory Store implementation for
// development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Harryguci/Car-Resource-Crawler/internal/crawler"
)

// Store keeps image resources in maps guarded by a RWMutex. URLs are
// unique across the whole catalog.
type Store struct {
	mu        sync.RWMutex
	resources map[string]crawler.ImageResource
	byURL     map[string]string
}

// New constructs a Store.
func New() *Store {
	return &Store{
		resources: make(map[string]crawler.ImageResource),
		byURL:     make(map[string]string),
	}
}

// CreateResource stores a new resource, enforcing URL uniqueness.
func (s *Store) CreateResource(_ context.Context, res crawler.ImageResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[res.URL]; exists {
		return crawler.ErrDuplicateURL
	}
	s.resources[res.ID] = res
	s.byURL[res.URL] = res.ID
	return nil
}

// UpdateResourceStatus applies one atomic status update. An empty errText
// clears the stored error message; a non-nil file sets the file metadata.
func (s *Store) UpdateResourceStatus(_ context.Context, id string, status crawler.DownloadStatus, errText string, file *crawler.FileInfo, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.resources[id]
	if !ok {
		return crawler.ErrNotFound
	}
	res.DownloadStatus = status
	res.ErrorMessage = errText
	if file != nil {
		res.FilePath = file.FilePath
		res.FileSize = file.FileSize
		res.Width = file.Width
		res.Height = file.Height
		res.Format = file.Format
	}
	res.UpdatedAt = at
	s.resources[id] = res
	return nil
}

// ExistsByURL reports whether a resource with the exact URL is stored.
func (s *Store) ExistsByURL(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.byURL[url]
	return exists, nil
}

// GetResource fetches a resource by ID.
func (s *Store) GetResource(_ context.Context, id string) (crawler.ImageResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources[id]
	if !ok {
		return crawler.ImageResource{}, crawler.ErrNotFound
	}
	return res, nil
}

// BulkCreateResources inserts resources best-effort, silently skipping
// entries whose URL is already present.
func (s *Store) BulkCreateResources(_ context.Context, list []crawler.ImageResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range list {
		if _, exists := s.byURL[res.URL]; exists {
			continue
		}
		s.resources[res.ID] = res
		s.byURL[res.URL] = res.ID
	}
	return nil
}

// List returns a copy of all stored resources, for inspection in tests and
// dev tooling.
func (s *Store) List() []crawler.ImageResource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.ImageResource, 0, len(s.resources))
	for _, res := range s.resources {
		out = append(out, res)
	}
	return out
}
