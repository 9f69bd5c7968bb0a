package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/minigames/smartsync/internal/dispatcher"
	"github.com/minigames/smartsync/internal/registry"
	"github.com/minigames/smartsync/internal/replication"
)

// PointWriter receives status points. *influx.Manager implements it.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Participant string
	Registry    *registry.Registry
	Dispatcher  *dispatcher.Stats
	Replication *replication.Stats
	Points      PointWriter
	Logger      *slog.Logger
	// StatusFile is rewritten with the latest status when set.
	StatusFile string
	Interval   time.Duration
}

// Status is one snapshot of a participant's replication state.
type Status struct {
	Time         time.Time `json:"time"`
	Participant  string    `json:"participant"`
	Objects      int       `json:"objects"`
	StaleUpdates int64     `json:"staleUpdates"`
	Processed    int64     `json:"processed"`
	Failed       int64     `json:"failed"`
	Dropped      int64     `json:"dropped"`
	Ignored      int64     `json:"ignored"`
	Created      int64     `json:"created"`
	Updated      int64     `json:"updated"`
	Discarded    int64     `json:"discarded"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current status
func (s *Service) GetStatus() Status {
	st := Status{
		Time:        time.Now().UTC(),
		Participant: s.deps.Participant,
	}
	if s.deps.Registry != nil {
		st.Objects = s.deps.Registry.Len()
		st.StaleUpdates = s.deps.Registry.StaleUpdates()
	}
	if d := s.deps.Dispatcher; d != nil {
		st.Processed = d.Processed.Load()
		st.Failed = d.Failed.Load()
		st.Dropped = d.Dropped.Load()
		st.Ignored = d.Ignored.Load()
	}
	if r := s.deps.Replication; r != nil {
		st.Created = r.Created.Load()
		st.Updated = r.Updated.Load()
		st.Discarded = r.Dropped.Load()
	}
	return st
}

// Point converts a status to an InfluxDB point.
func (st Status) Point() *influxdb2_write.Point {
	return influxdb2_write.NewPoint("session_status",
		map[string]string{"participant": st.Participant},
		map[string]any{
			"objects":       st.Objects,
			"stale_updates": st.StaleUpdates,
			"processed":     st.Processed,
			"failed":        st.Failed,
			"dropped":       st.Dropped,
			"ignored":       st.Ignored,
			"created":       st.Created,
			"updated":       st.Updated,
			"discarded":     st.Discarded,
		},
		st.Time,
	)
}

// Report takes one status snapshot and sends it to every sink.
func (s *Service) Report() Status {
	st := s.GetStatus()
	logger := s.deps.Logger

	logger.Info("Session status",
		"objects", st.Objects,
		"processed", st.Processed,
		"failed", st.Failed,
		"created", st.Created,
		"updated", st.Updated,
		"stale", st.StaleUpdates,
	)

	if s.deps.Points != nil {
		if err := s.deps.Points.WritePoint(st.Point()); err != nil {
			logger.Error("Error writing status point", "error", err)
		}
	}

	if s.deps.StatusFile != "" {
		raw, err := json.MarshalIndent(st, "", "  ")
		if err == nil {
			err = os.WriteFile(s.deps.StatusFile, raw, 0644)
		}
		if err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				s.Report()
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the final report.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
