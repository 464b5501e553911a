package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier derives the cross-run matching key for a record from its
// identity fields. It is total: missing fields normalize to the empty
// string, so the result is deterministic for any input record.
func (r *Registry) Identifier(rec Record) string {
	parts := make([]string, 0, 3)
	for _, name := range r.IdentityColumns() {
		parts = append(parts, strings.ToLower(strings.TrimSpace(CanonicalString(rec[name]))))
	}
	return strings.Join(parts, identitySeparator)
}

// HasChanged reports whether candidate materially differs from existing on
// any non-identity column. Both sides are trimmed and canonically
// stringified first, so numeric formatting differences (1 vs 1.0) cannot
// produce spurious diffs.
func (r *Registry) HasChanged(candidate, existing Record) bool {
	for _, name := range r.NonIdentityColumns() {
		a := strings.TrimSpace(CanonicalString(candidate[name]))
		b := strings.TrimSpace(CanonicalString(existing[name]))
		if a != b {
			return true
		}
	}
	return false
}

// CanonicalString renders a field value in a format-stable way. Floats use
// the shortest representation that round-trips, so 1.0 and 1 read back from
// different sources compare equal.
func CanonicalString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		return strconv.FormatBool(n)
	case []byte:
		return string(n)
	default:
		return fmt.Sprint(v)
	}
}
