// Package write implements the write coordinator (spec.md §4.5, component
// C5): schema evolution, placement lookup, forwarding to the owning node,
// shard-index append and commit-log append, all on the path of a single
// MapInput call.
package write

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/nsdb/internal/commitlog"
	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/metadata"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
	"github.com/dreamware/nsdb/internal/shardcache"
	"github.com/dreamware/nsdb/internal/stmt"
)

// AddressResolver maps a node identifier to the base URL of its endpoint,
// so the coordinator can forward a command to the node that owns a shard
// without embedding network topology in metadata itself.
type AddressResolver func(nodeID string) string

// Coordinator is the per-namespace write coordinator. One instance is
// owned by the guardian for each (db, namespace) pair it hosts.
type Coordinator struct {
	NodeID               string
	DefaultShardInterval int64

	Schemas   *schema.Registry
	Locations *metadata.Registry
	Shards    *shardcache.Cache
	Log       commitlog.Log
	Resolve   AddressResolver

	Logger *logrus.Entry
}

// MapInput implements spec.md §4.5's MapInput algorithm.
func (c *Coordinator) MapInput(ctx context.Context, db, namespace, metric string, rec scalar.Record) error {
	candidate := schema.New(metric, rec)
	sch, err := c.Schemas.Update(metric, candidate)
	if err != nil {
		return err
	}

	loc, err := c.Locations.Locate(metric, rec.Timestamp, c.DefaultShardInterval)
	if err != nil {
		return err
	}

	if loc.NodeID != c.NodeID {
		return c.forwardInsert(ctx, loc.NodeID, namespace, metric, rec)
	}

	idx, err := c.Shards.Get(metric, loc.BinIndex)
	if err != nil {
		return err
	}

	token := idx.AcquireWriter()
	defer token.Release()

	if err := idx.Write(token, sch, rec); err != nil {
		return err
	}

	if _, err := c.Log.Append(shardcache.Key(metric, loc.BinIndex), metric, rec); err != nil {
		return err
	}

	if c.Logger != nil {
		c.Logger.WithFields(logrus.Fields{"metric": metric, "bin": loc.BinIndex}).Debug("write admitted")
	}
	return nil
}

// ExecuteInsert runs an InsertSQLStatement through the same path as
// MapInput; it exists so the endpoint's ExecuteSQL handler can treat
// inserts uniformly with the other statement categories.
func (c *Coordinator) ExecuteInsert(ctx context.Context, namespace string, ins stmt.InsertSQLStatement) error {
	return c.MapInput(ctx, "", namespace, ins.Metric, ins.Record)
}

// ExecuteDeleteStatement implements spec.md §4.5's ExecuteDeleteStatement:
// every location of the metric is visited, local shards are deleted
// against directly, remote shards are forwarded to their owning node.
func (c *Coordinator) ExecuteDeleteStatement(ctx context.Context, namespace string, del stmt.DeleteSQLStatement) error {
	sch, ok := c.Schemas.Get(del.Metric)
	if !ok {
		return &errs.MetricNotFound{Metric: del.Metric}
	}

	cond := del.Condition
	if cond == nil {
		cond = predicate.MatchAll{}
	}

	for _, loc := range c.Locations.LocationsFor(del.Metric) {
		if loc.NodeID != c.NodeID {
			if err := c.forwardDelete(ctx, loc.NodeID, namespace, del); err != nil {
				return err
			}
			continue
		}
		if err := c.deleteLocal(sch, loc, cond); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) deleteLocal(sch schema.Schema, loc metadata.Location, cond predicate.Predicate) error {
	idx, err := c.Shards.Get(loc.Metric, loc.BinIndex)
	if err != nil {
		return err
	}
	token := idx.AcquireWriter()
	defer token.Release()
	return idx.DeleteByQuery(token, sch, cond)
}

// DropMetric implements spec.md §4.5's DropMetric: the schema is removed
// (idempotent — a second call finds no schema and is a no-op) and every
// locally cached shard for the metric is closed and discarded.
func (c *Coordinator) DropMetric(ctx context.Context, namespace, metric string) error {
	if err := c.Schemas.Delete(metric); err != nil {
		if _, notFound := err.(*errs.MetricNotFound); !notFound {
			return err
		}
	}
	return c.Shards.DropMetric(metric)
}
