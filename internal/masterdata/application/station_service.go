package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	masterdata "rainlog/internal/masterdata/domain"
)

// SeedResult reports what seeding did for one name.
type SeedResult struct {
	Station masterdata.Station
	Created bool
}

// ReferenceChecker reports whether any observation references a station.
type ReferenceChecker interface {
	HasStation(ctx context.Context, stationID int64) (bool, error)
}

// StationService manages the station registry.
type StationService struct {
	repo       masterdata.StationRepository
	references ReferenceChecker
	logger     *log.Logger
}

// ServiceOption configures a StationService.
type ServiceOption func(*StationService)

// WithReferenceChecker makes Delete refuse referenced stations before touching the repository.
func WithReferenceChecker(checker ReferenceChecker) ServiceOption {
	return func(s *StationService) {
		s.references = checker
	}
}

// NewStationService constructs a station service.
func NewStationService(repo masterdata.StationRepository, logger *log.Logger, opts ...ServiceOption) (*StationService, error) {
	if repo == nil {
		return nil, errors.New("station service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &StationService{repo: repo, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SeedDefaults creates every named station that does not exist yet and leaves
// existing ones unchanged. Running it twice has no further effect.
func (s *StationService) SeedDefaults(ctx context.Context, names []string) ([]SeedResult, error) {
	if len(names) == 0 {
		names = masterdata.DefaultStationNames
	}
	results := make([]SeedResult, 0, len(names))
	for _, name := range names {
		station, created, err := s.repo.EnsureByName(ctx, name)
		if err != nil {
			return results, err
		}
		if created {
			s.logger.Printf("stations seed: created id=%d name=%q", station.ID, station.Name)
		}
		results = append(results, SeedResult{Station: *station, Created: created})
	}
	return results, nil
}

// List returns all stations.
func (s *StationService) List(ctx context.Context) ([]masterdata.Station, error) {
	return s.repo.List(ctx)
}

// Get loads a station by id.
func (s *StationService) Get(ctx context.Context, id int64) (*masterdata.Station, error) {
	return s.repo.Get(ctx, id)
}

// Rename changes a station's display name.
func (s *StationService) Rename(ctx context.Context, id int64, name string) (*masterdata.Station, error) {
	station, err := s.repo.Rename(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("stations rename: id=%d name=%q", station.ID, station.Name)
	return station, nil
}

// Delete removes a station that has no observations.
func (s *StationService) Delete(ctx context.Context, id int64) error {
	if s.references != nil {
		inUse, err := s.references.HasStation(ctx, id)
		if err != nil {
			return fmt.Errorf("station %d references: %w", id, err)
		}
		if inUse {
			return masterdata.ErrStationInUse
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("stations delete: id=%d", id)
	return nil
}
