package harvest

import (
	"regexp"
	"strconv"

	"github.com/skillsync/harvester/internal/schema"
)

// coordPattern matches the map-pin call embedded in the first cell's markup:
// a ShowPin token followed by signed decimal latitude and longitude.
var coordPattern = regexp.MustCompile(`ShowPin\((-?\d+\.\d+),(-?\d+\.\d+),`)

// Extractor turns one rendered table row into a validated record.
type Extractor struct {
	registry *schema.Registry
}

// NewExtractor returns an extractor bound to the given schema registry.
func NewExtractor(registry *schema.Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract builds a record from the row's cells. Cell-backed fields whose
// index is beyond the row's cell count stay unset; a missing coordinate
// token leaves both coordinates unset. Only a semantic-type violation
// rejects the row.
func (e *Extractor) Extract(row TableRow) (schema.Record, *Rejection) {
	rec := e.registry.NewRecord()

	for _, f := range e.registry.Fields() {
		if !f.CellBacked() || f.Column >= len(row.Cells) {
			continue
		}
		rec[f.Name] = row.Cells[f.Column]
	}

	if lat, lon, ok := extractCoordinates(row.FirstCellHTML); ok {
		rec[schema.FieldLatitude] = lat
		rec[schema.FieldLongitude] = lon
	}

	if err := e.registry.Validate(rec); err != nil {
		return nil, &Rejection{Reason: err.Error()}
	}
	return rec, nil
}

// extractCoordinates parses the latitude/longitude pair out of the first
// cell's raw markup. Absence of the pattern is not an error.
func extractCoordinates(html string) (lat, lon float64, ok bool) {
	m := coordPattern.FindStringSubmatch(html)
	if m == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
