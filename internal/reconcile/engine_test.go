package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/schema"
)

// fakeStore keeps the persisted set in memory and applies change sets the
// way the real store would, matched by identifier.
type fakeStore struct {
	registry *schema.Registry
	rows     []schema.Record
	loadErr  error
	applyErr error
	applies  []ChangeSet
}

func newFakeStore(reg *schema.Registry, rows ...schema.Record) *fakeStore {
	return &fakeStore{registry: reg, rows: rows}
}

func (s *fakeStore) LoadAll(_ context.Context) ([]schema.Record, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]schema.Record(nil), s.rows...), nil
}

func (s *fakeStore) Apply(_ context.Context, changes ChangeSet) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applies = append(s.applies, changes)
	s.rows = append(s.rows, changes.Inserts...)
	for _, upd := range changes.Updates {
		id := s.registry.Identifier(upd)
		for i, row := range s.rows {
			if s.registry.Identifier(row) == id {
				s.rows[i] = upd
			}
		}
	}
	return nil
}

func candidate(reg *schema.Registry, agency, city, state, duration string) schema.Record {
	rec := reg.NewRecord()
	rec[schema.FieldAgency] = agency
	rec[schema.FieldCity] = city
	rec[schema.FieldState] = state
	rec["duration_of_training"] = duration
	return rec
}

func TestRunInsertsEverythingIntoEmptyStore(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	store := newFakeStore(reg)
	engine := NewEngine(reg, store, zap.NewNop())

	candidates := []schema.Record{
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
		candidate(reg, "Globex", "San Diego", "CA", "8 weeks"),
	}

	result, err := engine.Run(context.Background(), candidates)
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 2}, result)
	require.Len(t, store.applies, 1)
	assert.Len(t, store.applies[0].Inserts, 2)
	assert.Empty(t, store.applies[0].Updates)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	store := newFakeStore(reg)
	engine := NewEngine(reg, store, zap.NewNop())

	candidates := []schema.Record{
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
		candidate(reg, "Globex", "San Diego", "CA", "8 weeks"),
	}

	first, err := engine.Run(context.Background(), candidates)
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 2}, first)

	second, err := engine.Run(context.Background(), candidates)
	require.NoError(t, err)
	assert.Equal(t, Result{Unchanged: 2}, second)
	assert.Len(t, store.applies, 1, "the second pass performs no writes")
}

func TestRunUpdatesDriftedRecordOnly(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	store := newFakeStore(reg,
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
		candidate(reg, "Globex", "San Diego", "CA", "8 weeks"),
	)
	engine := NewEngine(reg, store, zap.NewNop())

	result, err := engine.Run(context.Background(), []schema.Record{
		candidate(reg, "Acme", "Reston", "VA", "16 weeks"),
		candidate(reg, "Globex", "San Diego", "CA", "8 weeks"),
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1, Unchanged: 1}, result)

	require.Len(t, store.applies, 1)
	require.Len(t, store.applies[0].Updates, 1)
	assert.Equal(t, "16 weeks", store.applies[0].Updates[0]["duration_of_training"])
}

func TestRunMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	store := newFakeStore(reg, candidate(reg, " ACME ", "reston", "va", "12 weeks"))
	engine := NewEngine(reg, store, zap.NewNop())

	result, err := engine.Run(context.Background(), []schema.Record{
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Unchanged: 1}, result)
}

func TestRunToleratesDuplicateStoredIdentifiers(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	// Two stored rows with the same identity triple; the later one wins.
	store := newFakeStore(reg,
		candidate(reg, "Acme", "Reston", "VA", "8 weeks"),
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
	)
	engine := NewEngine(reg, store, zap.NewNop())

	result, err := engine.Run(context.Background(), []schema.Record{
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Unchanged: 1}, result)
}

func TestRunPropagatesLoadFailure(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	store := newFakeStore(reg)
	store.loadErr = ErrStore
	engine := NewEngine(reg, store, zap.NewNop())

	_, err := engine.Run(context.Background(), []schema.Record{
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
	})
	require.ErrorIs(t, err, ErrStore)
}

func TestRunPropagatesApplyFailure(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	store := newFakeStore(reg)
	store.applyErr = errors.Join(ErrStore, errors.New("connection reset"))
	engine := NewEngine(reg, store, zap.NewNop())

	_, err := engine.Run(context.Background(), []schema.Record{
		candidate(reg, "Acme", "Reston", "VA", "12 weeks"),
	})
	require.ErrorIs(t, err, ErrStore)
}
