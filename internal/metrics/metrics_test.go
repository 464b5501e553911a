package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	require.NotPanics(t, Init)
}

func TestCountersRecordOutcomes(t *testing.T) {
	Init()

	IncPage()
	before := testutil.ToFloat64(harvestRowsTotal.WithLabelValues("extracted"))
	IncRow("extracted")
	IncRow("rejected")
	AddReconciled("inserted", 3)
	AddReconciled("unchanged", 0) // zero adds are skipped
	IncPass("committed")
	ObserveRunDuration(1.5)

	assert.Equal(t, before+1, testutil.ToFloat64(harvestRowsTotal.WithLabelValues("extracted")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(harvestPagesTotal), 1.0)
	assert.Equal(t, 3.0, testutil.ToFloat64(reconcileRecordsTotal.WithLabelValues("inserted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reconcileRecordsTotal.WithLabelValues("unchanged")))
}

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	// Collectors are package-level; helpers must not panic if a caller
	// forgets Init. The guards only matter before the sync.Once fires, so
	// this is exercised implicitly by the nil checks.
	require.NotPanics(t, func() {
		IncPage()
		IncRow("extracted")
		AddReconciled("updated", 1)
		IncPass("failed")
		ObserveRunDuration(0.1)
	})
}
