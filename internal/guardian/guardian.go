// Package guardian implements the per-node supervisor (spec.md §4.7,
// component C7): it owns one write coordinator, one read coordinator, one
// metadata registry and one schema registry per (db, namespace) it hosts,
// opens them lazily on first use, and republishes metadata events from the
// cluster gossip layer into each namespace's metadata registry.
package guardian

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/nsdb/internal/cluster"
	"github.com/dreamware/nsdb/internal/commitlog"
	"github.com/dreamware/nsdb/internal/config"
	"github.com/dreamware/nsdb/internal/metadata"
	"github.com/dreamware/nsdb/internal/read"
	"github.com/dreamware/nsdb/internal/schema"
	"github.com/dreamware/nsdb/internal/shardcache"
	"github.com/dreamware/nsdb/internal/write"
)

// Namespace bundles the actors a single (db, namespace) pair needs.
type Namespace struct {
	Schemas   *schema.Registry
	Locations *metadata.Registry
	Shards    *shardcache.Cache
	Write     *write.Coordinator
	Read      *read.Coordinator

	schemaStore *schema.Store
	metaStore   *metadata.Store
	commitLog   commitlog.Log
}

// Close releases every durable handle the namespace opened.
func (n *Namespace) Close() error {
	if err := n.Shards.Close(); err != nil {
		return err
	}
	if err := n.schemaStore.Close(); err != nil {
		return err
	}
	if err := n.metaStore.Close(); err != nil {
		return err
	}
	return n.commitLog.Close()
}

// Guardian is the per-node supervisor. It is also a cluster.Sink: remote
// location/metric-info events arriving over gossip are routed to the
// owning namespace's metadata registry.
type Guardian struct {
	nodeID  string
	cfg     config.Config
	cluster *cluster.Cluster
	resolve func(nodeID string) string
	logger  *logrus.Entry

	mu         sync.Mutex
	namespaces map[string]*Namespace
}

// New constructs a Guardian. resolve maps a node identifier to the base
// URL of its HTTP endpoint, used by coordinators to forward cross-node
// requests.
func New(cfg config.Config, cl *cluster.Cluster, resolve func(nodeID string) string, logger *logrus.Entry) *Guardian {
	g := &Guardian{
		nodeID:     cfg.NodeID,
		cfg:        cfg,
		cluster:    cl,
		resolve:    resolve,
		logger:     logger,
		namespaces: make(map[string]*Namespace),
	}
	if cl != nil {
		cl.SetSink(g)
	}
	return g
}

func namespaceKey(db, namespace string) string {
	return db + "/" + namespace
}

// Namespace returns the actors for (db, namespace), opening them on first
// access.
func (g *Guardian) Namespace(db, namespace string) (*Namespace, error) {
	key := namespaceKey(db, namespace)

	g.mu.Lock()
	defer g.mu.Unlock()

	if ns, ok := g.namespaces[key]; ok {
		return ns, nil
	}

	ns, err := g.openNamespace(db, namespace)
	if err != nil {
		return nil, err
	}
	g.namespaces[key] = ns
	return ns, nil
}

func (g *Guardian) openNamespace(db, namespace string) (*Namespace, error) {
	root := filepath.Join(g.cfg.Index.BasePath, db, namespace)

	schemaStore, err := schema.OpenStore(filepath.Join(root, "schema"))
	if err != nil {
		return nil, err
	}
	schemas, err := schema.NewRegistry(schemaStore)
	if err != nil {
		return nil, err
	}

	metaPath := filepath.Join(root, "metadata", "meta.db")
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return nil, err
	}
	metaStore, err := metadata.OpenStore(metaPath)
	if err != nil {
		return nil, err
	}
	locations, err := metadata.NewRegistry(metaStore, g.members, metadataPublisher{g.cluster})
	if err != nil {
		return nil, err
	}

	shards := shardcache.New(filepath.Join(root, "shards"))

	var log commitlog.Log
	if g.cfg.CommitLog.Enabled {
		if err := os.MkdirAll(filepath.Join(g.cfg.CommitLog.Path, db), 0o755); err != nil {
			return nil, err
		}
		log, err = commitlog.Open(filepath.Join(g.cfg.CommitLog.Path, db, namespace))
		if err != nil {
			return nil, err
		}
	} else {
		log = commitlog.Noop{}
	}

	writeC := &write.Coordinator{
		NodeID:               g.nodeID,
		DefaultShardInterval: g.cfg.Sharding.IntervalMillis,
		Schemas:              schemas,
		Locations:            locations,
		Shards:               shards,
		Log:                  log,
		Resolve:              write.AddressResolver(g.resolve),
		Logger:               g.logger,
	}
	readC := &read.Coordinator{
		NodeID:    g.nodeID,
		Schemas:   schemas,
		Locations: locations,
		Shards:    shards,
		Resolve:   read.AddressResolver(g.resolve),
		Parallelism: read.Parallelism{
			Initial: g.cfg.Read.ParallelismInitial,
			Lower:   g.cfg.Read.ParallelismLower,
			Upper:   g.cfg.Read.ParallelismUpper,
		},
		DefaultDeadline: g.cfg.Timeouts.ReadCoordinator,
		Logger:          g.logger,
	}

	return &Namespace{
		Schemas:     schemas,
		Locations:   locations,
		Shards:      shards,
		Write:       writeC,
		Read:        readC,
		schemaStore: schemaStore,
		metaStore:   metaStore,
		commitLog:   log,
	}, nil
}

func (g *Guardian) members() []string {
	if g.cluster == nil {
		return []string{g.nodeID}
	}
	return g.cluster.Members()
}

// ApplyRemoteLocation implements cluster.Sink, routing a gossiped location
// into every currently-open namespace's metadata registry. Namespaces are
// per-(db,namespace) but gossip is cluster-wide and the event carries no
// namespace, so no filtering happens: every open namespace records the
// location, and namespaces not yet open on this node never see it.
func (g *Guardian) ApplyRemoteLocation(loc metadata.Location) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ns := range g.namespaces {
		ns.Locations.ApplyRemoteLocation(loc)
	}
}

// ApplyRemoteMetricInfo implements cluster.Sink.
func (g *Guardian) ApplyRemoteMetricInfo(mi metadata.MetricInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ns := range g.namespaces {
		ns.Locations.ApplyRemoteMetricInfo(mi)
	}
}

// Close closes every namespace the guardian has opened.
func (g *Guardian) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for _, ns := range g.namespaces {
		if err := ns.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// metadataPublisher adapts *cluster.Cluster to metadata.Publisher.
type metadataPublisher struct {
	cluster *cluster.Cluster
}

func (p metadataPublisher) PublishLocation(loc metadata.Location) {
	if p.cluster != nil {
		p.cluster.PublishLocation(loc)
	}
}

func (p metadataPublisher) PublishMetricInfo(mi metadata.MetricInfo) {
	if p.cluster != nil {
		p.cluster.PublishMetricInfo(mi)
	}
}
