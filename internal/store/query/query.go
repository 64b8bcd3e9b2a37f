// Package query translates the fixed set of query shapes issued by the
// local store into in-memory operations over a loaded session set.
//
// It is used only by the document fallback backend; the SQLite backend
// executes real SQL. The package deliberately supports nothing beyond the
// shapes the store actually issues: equality filters on user id, status,
// sync flag and id, ordering by start time, and a result limit. Anything
// else returns ErrUnsupportedQuery rather than a silently wrong result.
package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aadityasamani/FlightMode/internal/schema"
)

// ErrUnsupportedQuery indicates a query shape the translator does not
// implement. This is a programming-contract violation by the store, not a
// runtime condition, so it fails loudly.
var ErrUnsupportedQuery = errors.New("unsupported query shape")

// Field identifies a filterable session column.
type Field int

const (
	// FieldUserID filters on Session.UserID.
	FieldUserID Field = iota
	// FieldStatus filters on Session.Status.
	FieldStatus
	// FieldSynced filters on Session.SyncedToRemote.
	FieldSynced
	// FieldID filters on Session.ID.
	FieldID
)

// String returns a human-readable name for error messages.
func (f Field) String() string {
	switch f {
	case FieldUserID:
		return "user_id"
	case FieldStatus:
		return "status"
	case FieldSynced:
		return "synced_to_remote"
	case FieldID:
		return "id"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Order identifies a supported result ordering.
type Order int

const (
	// OrderNone leaves results in insertion order.
	OrderNone Order = iota
	// OrderStartTimeAsc sorts by start time, oldest first.
	OrderStartTimeAsc
	// OrderStartTimeDesc sorts by start time, newest first.
	OrderStartTimeDesc
)

// Filter is one equality predicate. Multiple filters AND together.
type Filter struct {
	Field Field
	Value any
}

// ByUser matches sessions owned by the given user.
func ByUser(userID string) Filter { return Filter{Field: FieldUserID, Value: userID} }

// ByStatus matches sessions in the given status.
func ByStatus(s schema.Status) Filter { return Filter{Field: FieldStatus, Value: s} }

// BySynced matches sessions by their sync flag.
func BySynced(synced bool) Filter { return Filter{Field: FieldSynced, Value: synced} }

// ByID matches the session with the given local id.
func ByID(id int64) Filter { return Filter{Field: FieldID, Value: id} }

// Query is a typed descriptor for one store read: equality filters ANDed
// together, then ordering, then a limit. Limit <= 0 means no limit.
type Query struct {
	Filters []Filter
	Order   Order
	Limit   int
}

// Apply executes the query over the session set. Filters are applied
// first, then ordering, then the limit. The input slice is not modified.
func Apply(sessions []schema.Session, q Query) ([]schema.Session, error) {
	results := make([]schema.Session, 0, len(sessions))

	for _, s := range sessions {
		match, err := matches(&s, q.Filters)
		if err != nil {
			return nil, err
		}
		if match {
			results = append(results, s)
		}
	}

	switch q.Order {
	case OrderNone:
	case OrderStartTimeAsc:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].StartedAt().Before(results[j].StartedAt())
		})
	case OrderStartTimeDesc:
		sort.SliceStable(results, func(i, j int) bool {
			return results[j].StartedAt().Before(results[i].StartedAt())
		})
	default:
		return nil, fmt.Errorf("%w: order %d", ErrUnsupportedQuery, int(q.Order))
	}

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	return results, nil
}

// matches evaluates all filters against one session.
func matches(s *schema.Session, filters []Filter) (bool, error) {
	for _, f := range filters {
		ok, err := matchOne(s, f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matchOne evaluates a single filter. A value of the wrong type for the
// field is an unsupported shape, not a non-match.
func matchOne(s *schema.Session, f Filter) (bool, error) {
	switch f.Field {
	case FieldUserID:
		v, ok := f.Value.(string)
		if !ok {
			return false, typeErr(f)
		}
		return s.UserID == v, nil
	case FieldStatus:
		v, ok := f.Value.(schema.Status)
		if !ok {
			return false, typeErr(f)
		}
		return s.Status == v, nil
	case FieldSynced:
		v, ok := f.Value.(bool)
		if !ok {
			return false, typeErr(f)
		}
		return s.SyncedToRemote == v, nil
	case FieldID:
		v, ok := f.Value.(int64)
		if !ok {
			return false, typeErr(f)
		}
		return s.ID == v, nil
	default:
		return false, fmt.Errorf("%w: filter on %s", ErrUnsupportedQuery, f.Field)
	}
}

func typeErr(f Filter) error {
	return fmt.Errorf("%w: %s filter with %T value", ErrUnsupportedQuery, f.Field, f.Value)
}
