package campaignsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// InstanceLister is the device-listing collaborator
type InstanceLister interface {
	ListInstances(ctx context.Context) ([]models.Instance, error)
}

// HealthMonitorConfig holds the poll intervals
type HealthMonitorConfig struct {
	Interval     time.Duration // normal poll interval
	FastInterval time.Duration // used while a disconnection is suspected
}

const unknownConnected = -1

// HealthMonitor polls instance connectivity for one campaign and emits a
// HealthSample per poll. Crossing flags are edge-triggered.
type HealthMonitor struct {
	lister InstanceLister
	emit   func(HealthSample)
	cfg    HealthMonitorConfig
	task   *Task

	mu            sync.Mutex
	instanceIDs   []string
	lastConnected int
	fast          bool
}

// NewHealthMonitor creates a stopped monitor
func NewHealthMonitor(lister InstanceLister, emit func(HealthSample), cfg HealthMonitorConfig) *HealthMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.FastInterval <= 0 || cfg.FastInterval > cfg.Interval {
		cfg.FastInterval = cfg.Interval
	}
	return &HealthMonitor{
		lister:        lister,
		emit:          emit,
		cfg:           cfg,
		task:          NewTask("instance-health"),
		lastConnected: unknownConnected,
	}
}

// Start begins polling the given instances. It is a no-op when no instance is
// assigned; a running monitor only picks up the new instance list.
func (m *HealthMonitor) Start(ctx context.Context, instanceIDs []string) bool {
	if len(instanceIDs) == 0 {
		return false
	}
	if m.task.Running() {
		m.mu.Lock()
		m.instanceIDs = append([]string(nil), instanceIDs...)
		m.mu.Unlock()
		return false
	}

	m.mu.Lock()
	m.instanceIDs = append([]string(nil), instanceIDs...)
	m.lastConnected = unknownConnected
	m.fast = false
	m.mu.Unlock()

	return m.task.Start(ctx, m.cfg.Interval, m.tick)
}

// Stop cancels polling; a poll in flight is discarded
func (m *HealthMonitor) Stop() {
	m.task.Stop()
}

// Wait blocks until the poll loop has exited
func (m *HealthMonitor) Wait() {
	m.task.Wait()
}

// Running reports whether the monitor polls
func (m *HealthMonitor) Running() bool {
	return m.task.Running()
}

func (m *HealthMonitor) tick(ctx context.Context) {
	instances, err := m.lister.ListInstances(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logrus.Warnf("Instance health poll failed: %v", err)
		return
	}

	m.mu.Lock()
	// Stop does not wait for the loop, so a restart may already have reset
	// the crossing state this poll would overwrite
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	snapshot := SnapshotHealth(instances, m.instanceIDs, time.Now())
	sample := HealthSample{Snapshot: snapshot, Message: healthMessage(snapshot)}
	prev := m.lastConnected
	switch {
	case snapshot.ConnectedCount == 0 && prev != 0:
		// unknown counts as healthy, so starting with nothing connected is a crossing
		sample.AllDisconnected = true
	case snapshot.ConnectedCount > 0 && prev == 0:
		sample.Reconnected = true
	}
	m.lastConnected = snapshot.ConnectedCount

	suspected := snapshot.ConnectedCount < snapshot.TotalCount
	switchInterval := suspected != m.fast
	m.fast = suspected
	m.mu.Unlock()

	if switchInterval {
		if suspected {
			m.task.SetIntervalFor(ctx, m.cfg.FastInterval)
		} else {
			m.task.SetIntervalFor(ctx, m.cfg.Interval)
		}
	}

	// A stopped monitor must not emit a late sample
	if ctx.Err() != nil {
		return
	}
	if sample.AllDisconnected || sample.Reconnected {
		logrus.WithFields(logrus.Fields{
			"connected":        snapshot.ConnectedCount,
			"total":            snapshot.TotalCount,
			"all_disconnected": sample.AllDisconnected,
			"reconnected":      sample.Reconnected,
		}).Info("Instance connectivity changed")
	}
	m.emit(sample)
}

// SnapshotHealth counts, among instanceIDs, the instances reported connected.
// An assigned instance missing from the listing counts as disconnected.
func SnapshotHealth(instances []models.Instance, instanceIDs []string, at time.Time) models.HealthSnapshot {
	byID := make(map[string]models.Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}

	snapshot := models.HealthSnapshot{
		PerInstance: make(map[string]string, len(instanceIDs)),
		SampledAt:   at,
	}
	seen := make(map[string]struct{}, len(instanceIDs))
	for _, id := range instanceIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		snapshot.TotalCount++

		inst, ok := byID[id]
		if !ok {
			snapshot.PerInstance[id] = "missing"
			continue
		}
		snapshot.PerInstance[id] = inst.ConnectivityStatus
		if inst.IsConnected() {
			snapshot.ConnectedCount++
		}
	}
	return snapshot
}

func healthMessage(s models.HealthSnapshot) string {
	switch s.Connectivity() {
	case "none":
		if s.TotalCount == 0 {
			return ""
		}
		return fmt.Sprintf("All %d assigned instances are disconnected", s.TotalCount)
	case "partial":
		var down []string
		for id, status := range s.PerInstance {
			if status != models.ConnectivityConnected {
				down = append(down, id)
			}
		}
		sort.Strings(down)
		return fmt.Sprintf("%d of %d instances disconnected (%s)", s.TotalCount-s.ConnectedCount, s.TotalCount, strings.Join(down, ", "))
	default:
		return ""
	}
}
