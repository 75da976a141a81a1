package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	masterdata "rainlog/internal/masterdata/domain"
	"rainlog/internal/masterdata/infrastructure/memory"
)

func newTestService(t *testing.T, opts ...memory.StationOption) *StationService {
	t.Helper()
	svc, err := NewStationService(memory.NewStationRepository(opts...), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return svc
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, err := svc.SeedDefaults(ctx, nil)
	require.NoError(t, err)
	require.Len(t, first, len(masterdata.DefaultStationNames))
	for i, res := range first {
		assert.True(t, res.Created)
		assert.Equal(t, masterdata.DefaultStationNames[i], res.Station.Name)
	}

	second, err := svc.SeedDefaults(ctx, nil)
	require.NoError(t, err)
	for i, res := range second {
		assert.False(t, res.Created)
		assert.Equal(t, first[i].Station.ID, res.Station.ID)
	}

	stations, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stations, 5)
	assert.Equal(t, "بستک", stations[0].Name)
}

func TestSeedDefaultsLeavesRenamedStationAlone(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.SeedDefaults(ctx, []string{"میناب"})
	require.NoError(t, err)
	_, err = svc.Rename(ctx, 1, "  میناب شمالی ")
	require.NoError(t, err)

	results, err := svc.SeedDefaults(ctx, []string{"میناب شمالی", "بستک"})
	require.NoError(t, err)
	assert.False(t, results[0].Created)
	assert.True(t, results[1].Created)
}

func TestRenameRejectsDuplicateAndEmpty(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SeedDefaults(ctx, []string{"بستک", "میناب"})
	require.NoError(t, err)

	_, err = svc.Rename(ctx, 2, "بستک")
	assert.ErrorIs(t, err, masterdata.ErrDuplicateName)

	_, err = svc.Rename(ctx, 2, "   ")
	assert.ErrorIs(t, err, masterdata.ErrInvalidName)

	_, err = svc.Rename(ctx, 42, "جدید")
	assert.ErrorIs(t, err, masterdata.ErrNotFound)
}

func TestDeleteRejectsReferencedStation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.WithReferenceCheck(func(id int64) bool { return id == 1 }))
	_, err := svc.SeedDefaults(ctx, []string{"بستک", "میناب"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 1), masterdata.ErrStationInUse)
	require.NoError(t, svc.Delete(ctx, 2))
	assert.ErrorIs(t, svc.Delete(ctx, 2), masterdata.ErrNotFound)
}

type stubReferences struct {
	used  map[int64]bool
	err   error
	calls int
}

func (s *stubReferences) HasStation(ctx context.Context, stationID int64) (bool, error) {
	s.calls++
	return s.used[stationID], s.err
}

func TestDeleteChecksReferencesFirst(t *testing.T) {
	ctx := context.Background()
	refs := &stubReferences{used: map[int64]bool{1: true}}
	svc, err := NewStationService(memory.NewStationRepository(), log.New(io.Discard, "", 0), WithReferenceChecker(refs))
	require.NoError(t, err)
	_, err = svc.SeedDefaults(ctx, []string{"بستک", "میناب"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 1), masterdata.ErrStationInUse)
	_, err = svc.Get(ctx, 1)
	require.NoError(t, err, "referenced station is kept")

	require.NoError(t, svc.Delete(ctx, 2))
	assert.Equal(t, 2, refs.calls)

	refs.err = errors.New("db down")
	err = svc.Delete(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, masterdata.ErrStationInUse)
	assert.Contains(t, err.Error(), "db down")
}
