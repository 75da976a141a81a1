package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"rainlog/internal/calendar"
	"rainlog/internal/observability/metrics"
	rainfall "rainlog/internal/rainfall/domain"
)

// EncodeFunc writes observations as a spreadsheet.
type EncodeFunc func(w io.Writer, rows []rainfall.ObservationView) error

// SnapshotScheduler periodically writes an all-users export to a directory.
type SnapshotScheduler struct {
	service  *Service
	encode   EncodeFunc
	dir      string
	schedule string
	clock    clockwork.Clock
	logger   *log.Logger
}

// NewSnapshotScheduler constructs a scheduler. schedule is a five-field cron spec.
func NewSnapshotScheduler(service *Service, encode EncodeFunc, dir, schedule string, clock clockwork.Clock, logger *log.Logger) (*SnapshotScheduler, error) {
	if service == nil {
		return nil, errors.New("snapshot scheduler: nil service")
	}
	if encode == nil {
		return nil, errors.New("snapshot scheduler: nil encoder")
	}
	if dir == "" {
		return nil, errors.New("snapshot scheduler: empty dir")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("snapshot scheduler: schedule %q: %w", schedule, err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SnapshotScheduler{
		service:  service,
		encode:   encode,
		dir:      dir,
		schedule: schedule,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Start runs the cron loop until ctx is done.
func (s *SnapshotScheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.service.Location()))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Printf("snapshot run: err=%v", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.logger.Printf("snapshot scheduler: dir=%s schedule=%q", s.dir, s.schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunOnce writes one snapshot and returns its path.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) (string, error) {
	path, err := s.runOnce(ctx)
	if err != nil {
		metrics.IncSnapshot(metrics.ResultError)
		return "", err
	}
	metrics.IncSnapshot(metrics.ResultSuccess)
	return path, nil
}

func (s *SnapshotScheduler) runOnce(ctx context.Context) (string, error) {
	rows, err := s.service.ExportRows(ctx, ExportScope{All: true})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	today := calendar.FromGregorian(s.clock.Now(), s.service.Location())
	name := fmt.Sprintf("rainfall_records_%04d%02d%02d.xlsx", today.Year, today.Month, today.Day)
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := s.encode(tmp, rows); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	s.logger.Printf("snapshot written: path=%s rows=%d", path, len(rows))
	return path, nil
}
