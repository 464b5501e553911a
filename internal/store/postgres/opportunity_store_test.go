package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/reconcile"
	"github.com/skillsync/harvester/internal/schema"
)

func storedRecord(reg *schema.Registry, agency, city, state, duration string) schema.Record {
	rec := reg.NewRecord()
	rec[schema.FieldAgency] = agency
	rec[schema.FieldCity] = city
	rec[schema.FieldState] = state
	rec["duration_of_training"] = duration
	return rec
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *OpportunityStore, *schema.Registry) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	reg := schema.NewRegistry()
	store, err := NewWithPool(mock, "skillbridge_opportunities", reg, zap.NewNop())
	require.NoError(t, err)
	return mock, store, reg
}

func TestNewWithPoolRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "opportunities; DROP TABLE x", schema.NewRegistry(), zap.NewNop())
	require.Error(t, err)
}

func TestLoadAllMapsRowsOntoRecords(t *testing.T) {
	t.Parallel()

	mock, store, reg := newMockStore(t)
	cols := reg.DBColumns()

	stored := storedRecord(reg, "Acme", "Reston", "VA", "12 weeks")
	mock.ExpectQuery("SELECT .+ FROM skillbridge_opportunities").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(reg.OrderedValues(stored)...))

	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Acme", records[0][schema.FieldAgency])
	assert.Equal(t, "12 weeks", records[0]["duration_of_training"])
	assert.Nil(t, records[0][schema.FieldLatitude])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAllWrapsQueryFailure(t *testing.T) {
	t.Parallel()

	mock, store, _ := newMockStore(t)
	mock.ExpectQuery("SELECT .+ FROM skillbridge_opportunities").
		WillReturnError(errors.New("connection refused"))

	_, err := store.LoadAll(context.Background())
	require.ErrorIs(t, err, reconcile.ErrStore)
}

func TestApplyCommitsInsertsAndUpdates(t *testing.T) {
	t.Parallel()

	mock, store, reg := newMockStore(t)

	insert := storedRecord(reg, "Globex", "San Diego", "CA", "8 weeks")
	update := storedRecord(reg, "Acme", "Reston", "VA", "16 weeks")

	updateArgs := make([]any, 0, len(reg.DBColumns()))
	for _, name := range reg.NonIdentityColumns() {
		updateArgs = append(updateArgs, update[name])
	}
	updateArgs = append(updateArgs, "Acme", "Reston", "VA")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO skillbridge_opportunities").
		WithArgs(reg.OrderedValues(insert)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE skillbridge_opportunities SET").
		WithArgs(updateArgs...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.Apply(context.Background(), reconcile.ChangeSet{
		Inserts: []schema.Record{insert},
		Updates: []schema.Record{update},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackOnWriteFailure(t *testing.T) {
	t.Parallel()

	mock, store, reg := newMockStore(t)
	insert := storedRecord(reg, "Globex", "San Diego", "CA", "8 weeks")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO skillbridge_opportunities").
		WithArgs(reg.OrderedValues(insert)...).
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := store.Apply(context.Background(), reconcile.ChangeSet{
		Inserts: []schema.Record{insert},
	})
	require.ErrorIs(t, err, reconcile.ErrStore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyWrapsBeginFailure(t *testing.T) {
	t.Parallel()

	mock, store, reg := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many clients"))

	err := store.Apply(context.Background(), reconcile.ChangeSet{
		Inserts: []schema.Record{storedRecord(reg, "Acme", "Reston", "VA", "12 weeks")},
	})
	require.ErrorIs(t, err, reconcile.ErrStore)
}
