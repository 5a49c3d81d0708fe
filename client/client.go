// Package client is the fluent client builder over the HTTP+JSON RPC
// surface (spec.md §6, SPEC_FULL.md D6): a thin wrapper over
// internal/rpcutil's PostJSON, built the way the teacher repo's own node
// client issues requests to the coordinator, generalised into a builder
// pattern for constructing a write or a SELECT before sending it.
package client

import (
	"context"
	"time"

	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/rpcutil"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/stmt"
)

// Client talks to one node's HTTP endpoint.
type Client struct {
	baseURL string
}

// New builds a Client against baseURL, e.g. "http://127.0.0.1:8080".
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

type writeRequest struct {
	DB        string        `json:"db"`
	Namespace string        `json:"namespace"`
	Metric    string        `json:"metric"`
	Record    scalar.Record `json:"record"`
}

type writeResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// WriteBuilder fluently constructs one Write call.
type WriteBuilder struct {
	c      *Client
	db     string
	ns     string
	metric string
	rec    scalar.Record
}

// Write starts building a write against db/namespace/metric.
func (c *Client) Write(db, namespace, metric string) *WriteBuilder {
	return &WriteBuilder{c: c, db: db, ns: namespace, metric: metric, rec: scalar.New(0, scalar.Int(0))}
}

// At sets the record's timestamp.
func (b *WriteBuilder) At(timestamp int64) *WriteBuilder {
	b.rec.Timestamp = timestamp
	return b
}

// Value sets the record's value field.
func (b *WriteBuilder) Value(v scalar.Value) *WriteBuilder {
	b.rec.Value = v
	return b
}

// Dimension attaches a dimension field.
func (b *WriteBuilder) Dimension(name string, v scalar.Value) *WriteBuilder {
	b.rec.Dimensions[name] = v
	return b
}

// Tag attaches a tag field.
func (b *WriteBuilder) Tag(name string, v scalar.Value) *WriteBuilder {
	b.rec.Tags[name] = v
	return b
}

// Send issues the write and reports whether it was admitted.
func (b *WriteBuilder) Send(ctx context.Context) error {
	var resp writeResponse
	if err := rpcutil.PostJSON(ctx, b.c.baseURL+"/write", writeRequest{
		DB: b.db, Namespace: b.ns, Metric: b.metric, Record: b.rec,
	}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return remoteError(resp.Error)
	}
	return nil
}

type executeSQLRequest struct {
	DB        string                   `json:"db"`
	Namespace string                   `json:"namespace"`
	Select    *stmt.SelectSQLStatement `json:"select,omitempty"`
	Delete    *stmt.DeleteSQLStatement `json:"delete,omitempty"`
	Drop      *stmt.DropSQLStatement   `json:"drop,omitempty"`
}

type sqlResponse struct {
	Records []scalar.Record `json:"records,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SelectBuilder fluently constructs one SELECT statement.
type SelectBuilder struct {
	c    *Client
	db   string
	ns   string
	stmt stmt.SelectSQLStatement
}

// Select starts building a SELECT against db/namespace/metric.
func (c *Client) Select(db, namespace, metric string) *SelectBuilder {
	return &SelectBuilder{c: c, db: db, ns: namespace, stmt: stmt.SelectSQLStatement{Metric: metric}}
}

// AllFields requests every declared field ('*').
func (b *SelectBuilder) AllFields() *SelectBuilder {
	b.stmt.Fields = stmt.Projection{AllFields: true}
	return b
}

// Field adds one projected, non-aggregated field.
func (b *SelectBuilder) Field(name string) *SelectBuilder {
	b.stmt.Fields.Fields = append(b.stmt.Fields.Fields, stmt.FieldSelection{Name: name})
	return b
}

// Aggregate adds one aggregated field, e.g. Aggregate("value", "sum").
func (b *SelectBuilder) Aggregate(name, fn string) *SelectBuilder {
	b.stmt.Fields.Fields = append(b.stmt.Fields.Fields, stmt.FieldSelection{Name: name, Aggregation: fn})
	return b
}

// Where sets the residual/time-range condition.
func (b *SelectBuilder) Where(cond predicate.Predicate) *SelectBuilder {
	b.stmt.Condition = cond
	return b
}

// GroupBy sets the group-by field.
func (b *SelectBuilder) GroupBy(field string) *SelectBuilder {
	b.stmt.GroupBy = field
	return b
}

// OrderBy sets the global sort key.
func (b *SelectBuilder) OrderBy(field string, descending bool) *SelectBuilder {
	b.stmt.Order = &stmt.OrderBy{Field: field, Descending: descending}
	return b
}

// Limit sets the row/group limit.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.stmt.Limit = &n
	return b
}

// Deadline sets the statement's own deadline, overriding the server's
// configured default.
func (b *SelectBuilder) Deadline(d time.Duration) *SelectBuilder {
	b.stmt.Deadline = d
	return b
}

// Send issues the SELECT and returns the merged records.
func (b *SelectBuilder) Send(ctx context.Context) ([]scalar.Record, error) {
	var resp sqlResponse
	if err := rpcutil.PostJSON(ctx, b.c.baseURL+"/execute-sql", executeSQLRequest{
		DB: b.db, Namespace: b.ns, Select: &b.stmt,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, remoteError(resp.Error)
	}
	return resp.Records, nil
}

// remoteError wraps an error message carried in a successful (2xx)
// response body. Non-2xx responses never reach it: rpcutil.PostJSON turns
// them into an error naming only the URL and the HTTP status code, and the
// response body is not decoded.
type remoteError string

func (e remoteError) Error() string { return string(e) }
