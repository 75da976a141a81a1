package memory

import (
	"context"
	"sort"
	"sync"

	rainfall "rainlog/internal/rainfall/domain"
)

// ObservationRepository is an in-memory repository for tests and local runs.
// User and station names for the joined view are registered with AddUser and
// AddStation.
type ObservationRepository struct {
	mu       sync.RWMutex
	nextID   int64
	data     map[int64]rainfall.Observation
	users    map[int64]string
	stations map[int64]string
}

// NewObservationRepository constructs an empty repository.
func NewObservationRepository() *ObservationRepository {
	return &ObservationRepository{
		data:     make(map[int64]rainfall.Observation),
		users:    make(map[int64]string),
		stations: make(map[int64]string),
	}
}

// AddUser registers a username for joined views.
func (r *ObservationRepository) AddUser(id int64, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = username
}

// AddStation registers a station name for joined views.
func (r *ObservationRepository) AddStation(id int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations[id] = name
}

// Create stores a copy of obs and assigns its id.
func (r *ObservationRepository) Create(ctx context.Context, obs *rainfall.Observation) error {
	_ = ctx
	if err := obs.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	obs.ID = r.nextID
	r.data[obs.ID] = *obs
	return nil
}

// Get loads an observation owned by userID.
func (r *ObservationRepository) Get(ctx context.Context, userID, id int64) (*rainfall.ObservationView, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	obs, ok := r.data[id]
	if !ok || obs.UserID != userID {
		return nil, rainfall.ErrNotFound
	}
	view := r.view(obs)
	return &view, nil
}

// Mutate applies fn to a copy and stores it only when fn and validation succeed.
func (r *ObservationRepository) Mutate(ctx context.Context, userID, id int64, fn func(*rainfall.Observation) error) (*rainfall.Observation, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.data[id]
	if !ok || current.UserID != userID {
		return nil, rainfall.ErrNotFound
	}
	next := current
	if err := fn(&next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.ID, next.UserID, next.CreatedAt = current.ID, current.UserID, current.CreatedAt
	r.data[id] = next
	return &next, nil
}

// Delete removes an observation owned by userID.
func (r *ObservationRepository) Delete(ctx context.Context, userID, id int64) (*rainfall.Observation, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	obs, ok := r.data[id]
	if !ok || obs.UserID != userID {
		return nil, rainfall.ErrNotFound
	}
	delete(r.data, id)
	return &obs, nil
}

// List returns matching observations ordered by timestamp then id.
func (r *ObservationRepository) List(ctx context.Context, query rainfall.Query) ([]rainfall.ObservationView, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rainfall.ObservationView, 0, len(r.data))
	for _, obs := range r.data {
		if query.Match(obs) {
			out = append(out, r.view(obs))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if query.Ascending {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.Timestamp.After(b.Timestamp)
		}
		if query.Ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	return out, nil
}

// HasStation reports whether any stored observation references the station.
func (r *ObservationRepository) HasStation(stationID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, obs := range r.data {
		if obs.StationID == stationID {
			return true
		}
	}
	return false
}

func (r *ObservationRepository) view(obs rainfall.Observation) rainfall.ObservationView {
	return rainfall.ObservationView{
		Observation: obs,
		Username:    r.users[obs.UserID],
		StationName: r.stations[obs.StationID],
	}
}
