// Package cluster adapts hashicorp/memberlist into the "generic
// gossip-backed cluster view" spec.md §1 assumes as an external
// collaborator: a stable set of node identifiers (component D1) plus a
// pub/sub mediator for metadata fan-out (component D2, spec.md §4.4
// "Publication").
//
// One gossip substrate serves both needs: Members() exposes the sorted
// node-identifier set internal/metadata's placement ring selects into,
// and a memberlist.TransmitLimitedQueue broadcasts location/metric-info
// events to every node's Delegate, which forwards them into a Sink.
package cluster

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/hashicorp/memberlist"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/nsdb/internal/metadata"
)

// Sink receives metadata events gossiped in from other nodes. A
// *metadata.Registry satisfies this via its ApplyRemote{Location,MetricInfo}
// methods.
type Sink interface {
	ApplyRemoteLocation(metadata.Location)
	ApplyRemoteMetricInfo(metadata.MetricInfo)
}

// eventKind tags the payload of a gossiped message so the receiving
// Delegate knows which Sink method to call.
type eventKind string

const (
	eventLocation   eventKind = "location"
	eventMetricInfo eventKind = "metric_info"
)

type envelope struct {
	Kind eventKind       `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// Cluster is one node's view of the gossip-backed cluster.
type Cluster struct {
	log *logrus.Entry

	ml    *memberlist.Memberlist
	queue *memberlist.TransmitLimitedQueue

	mu   sync.RWMutex
	sink Sink
}

// Config bundles the gossip bind parameters a deployment needs to join a
// cluster (spec.md §6 expansion: "gossip bind address/port and seed
// peers").
type Config struct {
	NodeName  string
	BindAddr  string
	BindPort  int
	SeedPeers []string
	Log       *logrus.Entry
}

// Join starts memberlist gossip and attempts to contact cfg.SeedPeers. An
// empty SeedPeers list is valid: the node starts a single-member cluster
// of itself, which PutMetricInfo/Locate can already place against.
func Join(cfg Config) (*Cluster, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	c := &Cluster{log: log}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = cfg.NodeName
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.Delegate = (*delegate)(c)
	mlConfig.Events = (*eventDelegate)(c)
	mlConfig.LogOutput = log.WriterLevel(logrus.DebugLevel)

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, err
	}
	c.ml = ml
	c.queue = &memberlist.TransmitLimitedQueue{
		NumNodes:       func() int { return ml.NumMembers() },
		RetransmitMult: 3,
	}

	if len(cfg.SeedPeers) > 0 {
		if _, err := ml.Join(cfg.SeedPeers); err != nil {
			log.WithError(err).Warn("cluster: failed to join some seed peers")
		}
	}
	return c, nil
}

// SetSink registers the metadata registry that should receive gossiped
// events. Must be called once during namespace startup, before any writes
// land — there is no back-pressure if it is left nil; events are silently
// dropped until a sink is attached.
func (c *Cluster) SetSink(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Members returns the sorted set of node identifiers, the input
// internal/metadata's placement ring selects into.
func (c *Cluster) Members() []string {
	nodes := c.ml.Members()
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	sort.Strings(names)
	return names
}

// Leave gracefully departs the cluster, broadcasting a leave message
// before shutting down gossip.
func (c *Cluster) Leave() error {
	if err := c.ml.Leave(0); err != nil {
		return err
	}
	return c.ml.Shutdown()
}

// PublishLocation implements metadata.Publisher.
func (c *Cluster) PublishLocation(loc metadata.Location) {
	c.broadcast(eventLocation, loc)
}

// PublishMetricInfo implements metadata.Publisher.
func (c *Cluster) PublishMetricInfo(mi metadata.MetricInfo) {
	c.broadcast(eventMetricInfo, mi)
}

func (c *Cluster) broadcast(kind eventKind, body interface{}) {
	raw, err := json.Marshal(body)
	if err != nil {
		c.log.WithError(err).Error("cluster: failed to marshal broadcast payload")
		return
	}
	env := envelope{Kind: kind, Body: raw}
	payload, err := json.Marshal(env)
	if err != nil {
		c.log.WithError(err).Error("cluster: failed to marshal envelope")
		return
	}
	c.queue.QueueBroadcast(broadcastMessage(payload))
}

// broadcastMessage adapts a raw payload to memberlist.Broadcast.
type broadcastMessage []byte

func (m broadcastMessage) Invalidates(memberlist.Broadcast) bool { return false }
func (m broadcastMessage) Message() []byte                       { return m }
func (m broadcastMessage) Finished()                             {}

// delegate implements memberlist.Delegate by routing incoming gossip
// messages to the attached Sink.
type delegate Cluster

func (d *delegate) NodeMeta(limit int) []byte { return nil }

func (d *delegate) NotifyMsg(b []byte) {
	c := (*Cluster)(d)
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		c.log.WithError(err).Warn("cluster: dropping malformed gossip message")
		return
	}
	c.mu.RLock()
	sink := c.sink
	c.mu.RUnlock()
	if sink == nil {
		return
	}
	switch env.Kind {
	case eventLocation:
		var loc metadata.Location
		if err := json.Unmarshal(env.Body, &loc); err == nil {
			sink.ApplyRemoteLocation(loc)
		}
	case eventMetricInfo:
		var mi metadata.MetricInfo
		if err := json.Unmarshal(env.Body, &mi); err == nil {
			sink.ApplyRemoteMetricInfo(mi)
		}
	}
}

func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte {
	return (*Cluster)(d).queue.GetBroadcasts(overhead, limit)
}

func (d *delegate) LocalState(join bool) []byte         { return nil }
func (d *delegate) MergeRemoteState(buf []byte, j bool) {}

// eventDelegate logs membership churn; shard reassignment on node
// join/leave is out of scope (spec.md §4.3 "Higher replication factors
// are out of scope", and existing Locations retain their node_id across
// membership changes per §4.4).
type eventDelegate Cluster

func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	(*Cluster)(e).log.WithField("node", n.Name).Info("cluster: node joined")
}

func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	(*Cluster)(e).log.WithField("node", n.Name).Info("cluster: node left")
}

func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {}
