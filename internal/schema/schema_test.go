package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBColumnsExcludeSurrogateID(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	cols := reg.DBColumns()

	require.NotEmpty(t, cols)
	assert.NotContains(t, cols, "id")
	assert.Equal(t, FieldAgency, cols[0], "agency leads the column order")
	assert.Equal(t, FieldLongitude, cols[len(cols)-1])
}

func TestColumnIndicesUnique(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	seen := map[int]string{}
	for _, f := range reg.Fields() {
		if !f.CellBacked() {
			continue
		}
		require.GreaterOrEqual(t, f.Column, 0)
		prev, dup := seen[f.Column]
		require.Falsef(t, dup, "column %d claimed by both %s and %s", f.Column, prev, f.Name)
		seen[f.Column] = f.Name
	}
}

func TestNewRecordCarriesEveryField(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rec := reg.NewRecord()

	require.Len(t, rec, len(reg.Fields()))
	for _, f := range reg.Fields() {
		v, ok := rec[f.Name]
		require.Truef(t, ok, "field %s missing from fresh record", f.Name)
		assert.Nil(t, v)
	}
}

func TestOrderedValuesFollowColumnOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rec := reg.NewRecord()
	rec[FieldAgency] = "Acme Corp"
	rec[FieldCity] = "Reston"
	rec[FieldLatitude] = 38.9

	values := reg.OrderedValues(rec)
	cols := reg.DBColumns()
	require.Len(t, values, len(cols))
	assert.Equal(t, "Acme Corp", values[0])
	assert.Nil(t, values[1], "unset service stays nil")
	for i, name := range cols {
		if name == FieldLatitude {
			assert.Equal(t, 38.9, values[i])
		}
	}
}

func TestValidateNumericFields(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()

	cases := []struct {
		name    string
		mutate  func(Record)
		wantErr bool
	}{
		{name: "all unset", mutate: func(Record) {}},
		{name: "float latitude", mutate: func(r Record) { r[FieldLatitude] = 38.9 }},
		{name: "string latitude parses", mutate: func(r Record) { r[FieldLatitude] = " 38.9 " }},
		{name: "garbage latitude", mutate: func(r Record) { r[FieldLatitude] = "north-ish" }, wantErr: true},
		{name: "integer id", mutate: func(r Record) { r["id"] = 7 }},
		{name: "fractional id", mutate: func(r Record) { r["id"] = 7.5 }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := reg.NewRecord()
			tc.mutate(rec)
			err := reg.Validate(rec)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
