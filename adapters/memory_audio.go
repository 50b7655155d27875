package adapters

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAudioNotFound is returned when a clip ID resolves to nothing
var ErrAudioNotFound = errors.New("audio clip not found")

// AudioClip is one stored piece of synthesized speech
type AudioClip struct {
	ID        string
	Data      []byte
	MIMEType  string
	CreatedAt time.Time
}

// MemoryAudioStore is a production-ready in-memory implementation of
// AudioStore. Synthesized speech only needs to survive long enough for the
// browser to fetch and play it, so clips expire after a fixed TTL.
type MemoryAudioStore struct {
	mu       sync.RWMutex
	clips    map[string]*AudioClip // id -> clip mapping
	ttl      time.Duration
	basePath string
}

// NewMemoryAudioStore creates a new in-memory audio store. basePath is the
// URL prefix returned references are built from, e.g. "/audio".
func NewMemoryAudioStore(basePath string, ttl time.Duration) *MemoryAudioStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryAudioStore{
		clips:    make(map[string]*AudioClip),
		ttl:      ttl,
		basePath: basePath,
	}
}

// Put stores audio data and returns an opaque URL the client can play from
func (m *MemoryAudioStore) Put(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("audio data cannot be empty")
	}

	clip := &AudioClip{
		ID:        uuid.New().String(),
		Data:      data,
		MIMEType:  mimeType,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.clips[clip.ID] = clip
	m.mu.Unlock()

	return m.basePath + "/" + clip.ID, nil
}

// Get returns the clip for the given ID
func (m *MemoryAudioStore) Get(id string) (*AudioClip, error) {
	if id == "" {
		return nil, errors.New("clip ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	clip, exists := m.clips[id]
	if !exists {
		return nil, ErrAudioNotFound
	}

	// Return a copy to prevent external modifications
	clipCopy := *clip
	return &clipCopy, nil
}

// Len reports the number of stored clips
func (m *MemoryAudioStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clips)
}

// DeleteExpired removes clips older than the store's TTL and returns how
// many were dropped.
func (m *MemoryAudioStore) DeleteExpired() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, clip := range m.clips {
		if clip.CreatedAt.Before(cutoff) {
			delete(m.clips, id)
			removed++
		}
	}
	return removed
}
