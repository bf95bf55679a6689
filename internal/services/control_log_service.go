package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// ControlLogStore persists control log entries
type ControlLogStore interface {
	Create(log *models.ControlLog) error
	GetByCampaign(campaignID string, limit, offset int) ([]*models.ControlLog, error)
	CountByCampaign(campaignID string) (int64, error)
	DeleteOlderThan(days int) (int64, error)
}

// ControlLogService journals control commands. Record never blocks the
// caller: entries are queued and written by a single goroutine.
type ControlLogService struct {
	store ControlLogStore
	queue chan *models.ControlLog

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	cleanupStopChan chan struct{}
	cleanupWg       sync.WaitGroup
}

func NewControlLogService(store ControlLogStore, bufferSize int) *ControlLogService {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &ControlLogService{
		store: store,
		queue: make(chan *models.ControlLog, bufferSize),
	}
}

// Start starts the writer goroutine
func (s *ControlLogService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for entry := range s.queue {
			if err := s.store.Create(entry); err != nil {
				logrus.Errorf("Failed to save control log for campaign %s: %v", entry.CampaignID, err)
			}
		}
	}()
	logrus.Info("Control log writer started")
}

// Record queues an entry. Entries are dropped when the queue is full or the
// service is stopped.
func (s *ControlLogService) Record(entry *models.ControlLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	select {
	case s.queue <- entry:
	default:
		logrus.Warnf("Control log queue full, dropping %s/%s for campaign %s", entry.Action, entry.Outcome, entry.CampaignID)
	}
}

// Stop flushes queued entries and stops the writer
func (s *ControlLogService) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	logrus.Info("Control log writer stopped")
}

// ListByCampaign returns a page of a campaign's control logs and the total count
func (s *ControlLogService) ListByCampaign(campaignID string, limit, offset int) ([]*models.ControlLog, int64, error) {
	logs, err := s.store.GetByCampaign(campaignID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get control logs: %w", err)
	}
	total, err := s.store.CountByCampaign(campaignID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count control logs: %w", err)
	}
	return logs, total, nil
}

// StartCleanup starts a background goroutine to periodically delete old logs
func (s *ControlLogService) StartCleanup(interval time.Duration, retentionDays int) {
	if interval <= 0 || retentionDays <= 0 {
		logrus.Info("Control log cleanup disabled")
		return
	}
	s.cleanupStopChan = make(chan struct{})

	s.cleanupWg.Add(1)
	go func() {
		defer s.cleanupWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Run initial cleanup
		s.cleanupOldLogs(retentionDays)

		for {
			select {
			case <-ticker.C:
				s.cleanupOldLogs(retentionDays)
			case <-s.cleanupStopChan:
				return
			}
		}
	}()
	logrus.Infof("Control log cleanup started (interval: %v, retention: %d days)", interval, retentionDays)
}

// StopCleanup stops the cleanup goroutine
func (s *ControlLogService) StopCleanup() {
	if s.cleanupStopChan == nil {
		return
	}
	close(s.cleanupStopChan)
	s.cleanupWg.Wait()
	s.cleanupStopChan = nil
	logrus.Info("Control log cleanup stopped")
}

func (s *ControlLogService) cleanupOldLogs(retentionDays int) {
	deleted, err := s.store.DeleteOlderThan(retentionDays)
	if err != nil {
		logrus.Errorf("Failed to cleanup control logs: %v", err)
		return
	}
	if deleted > 0 {
		logrus.Infof("Deleted %d control logs older than %d days", deleted, retentionDays)
	}
}

// ToControlLogResponse converts a log entry for API output
func ToControlLogResponse(log *models.ControlLog) models.ControlLogResponse {
	return models.ControlLogResponse{
		ID:            log.ID,
		CampaignID:    log.CampaignID,
		CorrelationID: log.CorrelationID,
		Action:        log.Action,
		Outcome:       log.Outcome,
		FromStatus:    log.FromStatus,
		Message:       log.Message,
		BestEffort:    log.BestEffort,
		LatencyMs:     log.LatencyMs,
		CreatedAt:     log.CreatedAt.Format(time.RFC3339),
	}
}
