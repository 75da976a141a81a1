package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	masterdata "rainlog/internal/masterdata/domain"
	"rainlog/internal/observability/metrics"
	rainfall "rainlog/internal/rainfall/domain"
)

// StationLookup resolves stations referenced by observations.
type StationLookup interface {
	Get(ctx context.Context, id int64) (*masterdata.Station, error)
	List(ctx context.Context) ([]masterdata.Station, error)
}

// Service implements observation use cases for a signed-in user.
type Service struct {
	repo      rainfall.Repository
	stations  StationLookup
	publisher rainfall.EventPublisher
	clock     clockwork.Clock
	loc       *time.Location
	logger    *log.Logger
}

// Option configures the service.
type Option func(*Service)

// WithPublisher sets the change event publisher.
func WithPublisher(publisher rainfall.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithClock overrides the clock used for creation and event times.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the wall-clock location for Jalali input and display.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService constructs the observation service.
func NewService(repo rainfall.Repository, stations StationLookup, logger *log.Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("rainfall service: nil repository")
	}
	if stations == nil {
		return nil, errors.New("rainfall service: nil station lookup")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		repo:     repo,
		stations: stations,
		clock:    clockwork.NewRealClock(),
		loc:      time.UTC,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Location returns the wall-clock location used for Jalali values.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Stations lists the station registry.
func (s *Service) Stations(ctx context.Context) ([]masterdata.Station, error) {
	return s.stations.List(ctx)
}

// Create records a new observation for userID.
func (s *Service) Create(ctx context.Context, userID int64, form rainfall.EntryForm) (*rainfall.Observation, error) {
	entry, err := s.parseEntry(ctx, form)
	if err != nil {
		metrics.IncObservationWrite("create", metrics.ResultInvalid)
		return nil, err
	}
	obs := &rainfall.Observation{UserID: userID, CreatedAt: s.clock.Now().UTC()}
	entry.Apply(obs)
	if err := s.repo.Create(ctx, obs); err != nil {
		metrics.IncObservationWrite("create", resultFor(err))
		return nil, err
	}
	metrics.IncObservationWrite("create", metrics.ResultSuccess)
	s.publish(ctx, rainfall.EventCreated, *obs)
	return obs, nil
}

// Get loads one of userID's observations.
func (s *Service) Get(ctx context.Context, userID, id int64) (*rainfall.ObservationView, error) {
	return s.repo.Get(ctx, userID, id)
}

// Update replaces station, time and depth of an observation from a full form.
func (s *Service) Update(ctx context.Context, userID, id int64, form rainfall.EntryForm) (*rainfall.Observation, error) {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	entry, err := s.parseEntry(ctx, form)
	if err != nil {
		metrics.IncObservationWrite("update", metrics.ResultInvalid)
		return nil, err
	}
	obs, err := s.repo.Mutate(ctx, userID, id, func(o *rainfall.Observation) error {
		entry.Apply(o)
		return nil
	})
	if err != nil {
		metrics.IncObservationWrite("update", resultFor(err))
		return nil, err
	}
	metrics.IncObservationWrite("update", metrics.ResultSuccess)
	s.publish(ctx, rainfall.EventUpdated, *obs)
	return obs, nil
}

// InlineUpdate patches a single field from free-form text. Ownership is
// checked before the field name, so a foreign record always reports
// ErrNotFound.
func (s *Service) InlineUpdate(ctx context.Context, userID, id int64, field, value string) (*rainfall.Observation, error) {
	obs, err := s.repo.Mutate(ctx, userID, id, func(o *rainfall.Observation) error {
		f, err := rainfall.ParseField(field)
		if err != nil {
			return err
		}
		return rainfall.ApplyPatch(o, f, value, s.loc)
	})
	label := field
	if _, perr := rainfall.ParseField(field); perr != nil {
		label = "unsupported"
	}
	if err != nil {
		metrics.IncInlineUpdate(label, resultFor(err))
		return nil, err
	}
	metrics.IncInlineUpdate(label, metrics.ResultSuccess)
	s.publish(ctx, rainfall.EventUpdated, *obs)
	return obs, nil
}

// Delete removes one of userID's observations.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	obs, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		metrics.IncObservationWrite("delete", resultFor(err))
		return err
	}
	metrics.IncObservationWrite("delete", metrics.ResultSuccess)
	s.publish(ctx, rainfall.EventDeleted, *obs)
	return nil
}

// Dashboard is the data behind the dashboard page.
type Dashboard struct {
	Filter   Filter
	Records  []rainfall.ObservationView
	Stations []masterdata.Station
}

// Dashboard lists userID's observations newest first, narrowed by the filter.
func (s *Service) Dashboard(ctx context.Context, userID int64, in FilterInput) (*Dashboard, error) {
	filter := ParseFilter(in, s.loc)
	records, err := s.repo.List(ctx, rainfall.Query{
		UserID:    userID,
		StationID: filter.StationID,
		From:      filter.From,
		To:        filter.To,
	})
	if err != nil {
		return nil, err
	}
	stations, err := s.stations.List(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Filter: filter, Records: records, Stations: stations}, nil
}

// ExportScope selects whose observations are exported. UserID is ignored when All is set.
type ExportScope struct {
	UserID int64
	All    bool
}

// ExportRows returns the observations in scope in ascending timestamp order.
func (s *Service) ExportRows(ctx context.Context, scope ExportScope) ([]rainfall.ObservationView, error) {
	query := rainfall.Query{Ascending: true}
	if !scope.All {
		if scope.UserID <= 0 {
			return nil, fmt.Errorf("%w: export without user", rainfall.ErrInvalidValue)
		}
		query.UserID = scope.UserID
	}
	return s.repo.List(ctx, query)
}

func (s *Service) parseEntry(ctx context.Context, form rainfall.EntryForm) (rainfall.Entry, error) {
	entry, err := rainfall.ParseEntry(form, s.loc)
	if err != nil {
		return rainfall.Entry{}, err
	}
	if _, err := s.stations.Get(ctx, entry.StationID); err != nil {
		if errors.Is(err, masterdata.ErrNotFound) {
			return rainfall.Entry{}, &rainfall.ValidationError{Fields: map[string]string{
				"station": fmt.Sprintf("ایستگاه %q وجود ندارد", form.Station),
			}}
		}
		return rainfall.Entry{}, err
	}
	return entry, nil
}

func (s *Service) publish(ctx context.Context, eventType rainfall.EventType, obs rainfall.Observation) {
	if s.publisher == nil {
		return
	}
	event := rainfall.NewObservationChanged(eventType, obs, s.clock.Now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.IncEventPublish(metrics.ResultError)
		s.logger.Printf("rainfall publish: type=%s id=%d err=%v", eventType, obs.ID, err)
		return
	}
	metrics.IncEventPublish(metrics.ResultSuccess)
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, rainfall.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, rainfall.ErrInvalidValue), errors.Is(err, rainfall.ErrUnsupportedField):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
