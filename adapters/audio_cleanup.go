package adapters

import (
	"time"

	"go.uber.org/zap"
)

// AudioCleanupService handles background expiry of stored audio clips
type AudioCleanupService struct {
	store    *MemoryAudioStore
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewAudioCleanupService creates a new audio cleanup service
func NewAudioCleanupService(store *MemoryAudioStore, interval time.Duration, logger *zap.Logger) *AudioCleanupService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AudioCleanupService{
		store:    store,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *AudioCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Audio cleanup service started")
}

// Stop gracefully stops the cleanup service
func (s *AudioCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Audio cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *AudioCleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *AudioCleanupService) runCleanup() {
	removed := s.store.DeleteExpired()
	if removed > 0 {
		s.logger.Info("Expired audio clips removed",
			zap.Int("removed", removed),
			zap.Int("remaining", s.store.Len()))
	}
}
