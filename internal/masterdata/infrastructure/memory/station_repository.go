package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	masterdata "rainlog/internal/masterdata/domain"
)

// StationRepository is an in-memory station store for tests and local runs.
type StationRepository struct {
	mu         sync.RWMutex
	nextID     int64
	stations   map[int64]masterdata.Station
	referenced func(stationID int64) bool
	now        func() time.Time
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithReferenceCheck makes Delete fail with ErrStationInUse when fn reports a reference.
func WithReferenceCheck(fn func(stationID int64) bool) StationOption {
	return func(r *StationRepository) {
		r.referenced = fn
	}
}

// NewStationRepository constructs an empty repository.
func NewStationRepository(opts ...StationOption) *StationRepository {
	repo := &StationRepository{
		stations: make(map[int64]masterdata.Station),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EnsureByName creates the station when absent.
func (r *StationRepository) EnsureByName(ctx context.Context, name string) (*masterdata.Station, bool, error) {
	_ = ctx
	name, err := masterdata.NormalizeName(name)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, station := range r.stations {
		if station.Name == name {
			out := station
			return &out, false, nil
		}
	}
	r.nextID++
	now := r.now()
	station := masterdata.Station{ID: r.nextID, Name: name, CreatedAt: now, UpdatedAt: now}
	r.stations[station.ID] = station
	return &station, true, nil
}

// Get loads a station by id.
func (r *StationRepository) Get(ctx context.Context, id int64) (*masterdata.Station, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	station, ok := r.stations[id]
	if !ok {
		return nil, masterdata.ErrNotFound
	}
	return &station, nil
}

// List returns all stations ordered by id.
func (r *StationRepository) List(ctx context.Context) ([]masterdata.Station, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]masterdata.Station, 0, len(r.stations))
	for _, station := range r.stations {
		out = append(out, station)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Rename changes a station name.
func (r *StationRepository) Rename(ctx context.Context, id int64, name string) (*masterdata.Station, error) {
	_ = ctx
	name, err := masterdata.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	station, ok := r.stations[id]
	if !ok {
		return nil, masterdata.ErrNotFound
	}
	for otherID, other := range r.stations {
		if otherID != id && other.Name == name {
			return nil, fmt.Errorf("%w: %q", masterdata.ErrDuplicateName, name)
		}
	}
	station.Name = name
	station.UpdatedAt = r.now()
	r.stations[id] = station
	return &station, nil
}

// Delete removes a station.
func (r *StationRepository) Delete(ctx context.Context, id int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stations[id]; !ok {
		return masterdata.ErrNotFound
	}
	if r.referenced != nil && r.referenced(id) {
		return masterdata.ErrStationInUse
	}
	delete(r.stations, id)
	return nil
}
