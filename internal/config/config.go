// Package config binds the node's configuration keys (spec.md §6) through
// github.com/spf13/viper, with defaults and environment-variable overrides
// the way the rest of the NSDb ambient stack is wired: no hand-rolled flag
// parsing or os.Getenv calls scattered through the core packages.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved node configuration.
type Config struct {
	NodeID    string
	Gossip    GossipConfig
	Index     IndexConfig
	Sharding  ShardingConfig
	Timeouts  TimeoutConfig
	Read      ReadConfig
	CommitLog CommitLogConfig
	HTTPAddr  string
	Peers     map[string]string
}

// GossipConfig configures the memberlist cluster view (D1/D2).
type GossipConfig struct {
	BindAddr  string
	BindPort  int
	SeedPeers []string
}

// IndexConfig configures where shard and schema bleve indices live on disk.
type IndexConfig struct {
	BasePath string
}

// ShardingConfig configures the default shard bin width for metrics that
// have not yet declared one.
type ShardingConfig struct {
	IntervalMillis int64
}

// TimeoutConfig configures the three coordinator-ask timeouts spec.md §6
// names.
type TimeoutConfig struct {
	WriteCoordinator    time.Duration
	ReadCoordinator     time.Duration
	MetadataCoordinator time.Duration
}

// ReadConfig configures the read coordinator's shard fan-out pool.
type ReadConfig struct {
	ParallelismInitial int
	ParallelismLower   int
	ParallelismUpper   int
}

// CommitLogConfig gates the write-ahead log.
type CommitLogConfig struct {
	Enabled bool
	Path    string
}

// Load builds a viper instance bound to NSDB_-prefixed environment
// variables and a config file optionally found at path, applying the
// defaults below for anything unset.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("nsdb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig() // config file is optional; defaults carry an absent/unreadable file
	}

	return Resolve(v), nil
}

// Resolve reads every configuration key out of an already-prepared viper
// instance. cmd/nsdb-node uses this directly against a viper instance
// whose keys are bound to cobra flags (flags take precedence over
// environment and config file, per spec.md §6), while Load above builds
// its own viper instance from environment variables, defaults and an
// optional config file.
func Resolve(v *viper.Viper) Config {
	return Config{
		NodeID: v.GetString("node.id"),
		Gossip: GossipConfig{
			BindAddr:  v.GetString("gossip.bind-addr"),
			BindPort:  v.GetInt("gossip.bind-port"),
			SeedPeers: v.GetStringSlice("gossip.seed-peers"),
		},
		Index: IndexConfig{
			BasePath: v.GetString("index.base-path"),
		},
		Sharding: ShardingConfig{
			IntervalMillis: v.GetInt64("sharding.interval"),
		},
		Timeouts: TimeoutConfig{
			WriteCoordinator:    v.GetDuration("write-coordinator.timeout"),
			ReadCoordinator:     v.GetDuration("read-coordinator.timeout"),
			MetadataCoordinator: v.GetDuration("metadata-coordinator.timeout"),
		},
		Read: ReadConfig{
			ParallelismInitial: v.GetInt("read.parallelism.initial"),
			ParallelismLower:   v.GetInt("read.parallelism.lower"),
			ParallelismUpper:   v.GetInt("read.parallelism.upper"),
		},
		CommitLog: CommitLogConfig{
			Enabled: v.GetBool("commit-log.enabled"),
			Path:    v.GetString("commit-log.path"),
		},
		HTTPAddr: v.GetString("http.addr"),
		Peers:    v.GetStringMapString("peers"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.id", "")
	v.SetDefault("gossip.bind-addr", "0.0.0.0")
	v.SetDefault("gossip.bind-port", 7946)
	v.SetDefault("gossip.seed-peers", []string{})
	v.SetDefault("index.base-path", "./data")
	v.SetDefault("sharding.interval", int64(3600000))
	v.SetDefault("write-coordinator.timeout", 5*time.Second)
	v.SetDefault("read-coordinator.timeout", 10*time.Second)
	v.SetDefault("metadata-coordinator.timeout", 5*time.Second)
	v.SetDefault("read.parallelism.initial", 4)
	v.SetDefault("read.parallelism.lower", 1)
	v.SetDefault("read.parallelism.upper", 16)
	v.SetDefault("commit-log.enabled", true)
	v.SetDefault("commit-log.path", "./data/commitlog")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("peers", map[string]string{})
}
