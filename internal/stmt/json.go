package stmt

import (
	"encoding/json"
	"time"

	"github.com/dreamware/nsdb/internal/predicate"
)

// SelectSQLStatement's Condition field is a predicate.Predicate interface,
// which encoding/json cannot marshal/unmarshal on its own (it has no
// concrete type to reconstruct from a bare JSON object). These two methods
// route Condition through predicate.Marshal/Unmarshal while everything
// else follows the default struct encoding, so the statement still
// round-trips across the forwarding surface (internal/read/forward.go,
// internal/write/forward.go) and the client package.

type selectWire struct {
	Namespace string
	Metric    string
	Fields    Projection
	Condition json.RawMessage
	GroupBy   string
	Order     *OrderBy
	Limit     *int
	Deadline  int64
}

// MarshalJSON implements json.Marshaler.
func (s SelectSQLStatement) MarshalJSON() ([]byte, error) {
	cond, err := predicate.Marshal(s.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(selectWire{
		Namespace: s.Namespace,
		Metric:    s.Metric,
		Fields:    s.Fields,
		Condition: cond,
		GroupBy:   s.GroupBy,
		Order:     s.Order,
		Limit:     s.Limit,
		Deadline:  int64(s.Deadline),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SelectSQLStatement) UnmarshalJSON(data []byte) error {
	var w selectWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	cond, err := predicate.Unmarshal(w.Condition)
	if err != nil {
		return err
	}
	*s = SelectSQLStatement{
		Namespace: w.Namespace,
		Metric:    w.Metric,
		Fields:    w.Fields,
		Condition: cond,
		GroupBy:   w.GroupBy,
		Order:     w.Order,
		Limit:     w.Limit,
		Deadline:  time.Duration(w.Deadline),
	}
	return nil
}

type deleteWire struct {
	Namespace string
	Metric    string
	Condition json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (s DeleteSQLStatement) MarshalJSON() ([]byte, error) {
	cond, err := predicate.Marshal(s.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(deleteWire{Namespace: s.Namespace, Metric: s.Metric, Condition: cond})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *DeleteSQLStatement) UnmarshalJSON(data []byte) error {
	var w deleteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	cond, err := predicate.Unmarshal(w.Condition)
	if err != nil {
		return err
	}
	*s = DeleteSQLStatement{Namespace: w.Namespace, Metric: w.Metric, Condition: cond}
	return nil
}
