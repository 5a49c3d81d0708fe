// Package main implements the nsdb-node service: one node of the
// distributed time-series database, serving the external write/read RPC
// surface and the internal node-to-node forwarding surface over HTTP+JSON,
// joining the gossip-backed cluster view on startup, and shutting down
// gracefully on SIGINT/SIGTERM the way the teacher's own node and
// coordinator binaries do.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dreamware/nsdb/internal/cluster"
	"github.com/dreamware/nsdb/internal/config"
	"github.com/dreamware/nsdb/internal/endpoint"
	"github.com/dreamware/nsdb/internal/guardian"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "nsdb-node",
		Short: "Run one node of the distributed time-series database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, configFile)
		},
	}

	flags := cmd.Flags()
	flags.String("node-id", "", "unique identifier for this node")
	flags.String("http-addr", ":8080", "address the HTTP RPC surface listens on")
	flags.String("index-base-path", "./data", "base directory for bleve shard and schema indices")
	flags.Int64("sharding-interval", 3600000, "default shard bin width in milliseconds")
	flags.Duration("write-timeout", 5*time.Second, "write coordinator ask timeout")
	flags.Duration("read-timeout", 10*time.Second, "read coordinator ask timeout")
	flags.Duration("metadata-timeout", 5*time.Second, "metadata coordinator ask timeout")
	flags.Int("read-parallelism-initial", 4, "initial shard fan-out worker count")
	flags.Int("read-parallelism-lower", 1, "minimum shard fan-out worker count")
	flags.Int("read-parallelism-upper", 16, "maximum shard fan-out worker count")
	flags.Bool("commit-log-enabled", true, "enable the write-ahead commit log")
	flags.String("commit-log-path", "./data/commitlog", "base directory for the commit log")
	flags.String("gossip-bind-addr", "0.0.0.0", "memberlist gossip bind address")
	flags.Int("gossip-bind-port", 7946, "memberlist gossip bind port")
	flags.StringSlice("gossip-seed-peers", nil, "memberlist seed peer addresses")
	flags.StringToString("peers", nil, "node-id=http-base-url map for cross-node RPC forwarding")
	flags.StringVar(&configFile, "config", "", "path to a config file (yaml/json/toml)")

	bind(v, flags, map[string]string{
		"node-id":                  "node.id",
		"http-addr":                "http.addr",
		"index-base-path":          "index.base-path",
		"sharding-interval":        "sharding.interval",
		"write-timeout":            "write-coordinator.timeout",
		"read-timeout":             "read-coordinator.timeout",
		"metadata-timeout":         "metadata-coordinator.timeout",
		"read-parallelism-initial": "read.parallelism.initial",
		"read-parallelism-lower":   "read.parallelism.lower",
		"read-parallelism-upper":   "read.parallelism.upper",
		"commit-log-enabled":       "commit-log.enabled",
		"commit-log-path":          "commit-log.path",
		"gossip-bind-addr":         "gossip.bind-addr",
		"gossip-bind-port":         "gossip.bind-port",
		"gossip-seed-peers":        "gossip.seed-peers",
		"peers":                    "peers",
	})

	return cmd
}

// bind wires each cobra flag to the viper key it overrides, so flags take
// precedence over a config file or NSDB_-prefixed environment variables,
// per spec.md §6's configuration precedence.
func bind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func loadConfig(v *viper.Viper, configFile string) config.Config {
	v.SetEnvPrefix("nsdb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		_ = v.ReadInConfig() // config file is optional; flags/env/defaults carry an absent one
	}

	return config.Resolve(v)
}

func run(v *viper.Viper, configFile string) error {
	cfg := loadConfig(v, configFile)
	if cfg.NodeID == "" {
		return fmt.Errorf("node.id is required (set --node-id or NSDB_NODE_ID)")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	log := logger.WithField("node_id", cfg.NodeID)

	cl, err := cluster.Join(cluster.Config{
		NodeName:  cfg.NodeID,
		BindAddr:  cfg.Gossip.BindAddr,
		BindPort:  cfg.Gossip.BindPort,
		SeedPeers: cfg.Gossip.SeedPeers,
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("join cluster: %w", err)
	}
	defer func() {
		if err := cl.Leave(); err != nil {
			log.WithError(err).Warn("error leaving cluster")
		}
	}()

	resolve := func(nodeID string) string { return cfg.Peers[nodeID] }
	g := guardian.New(cfg, cl, resolve, log)
	defer func() {
		if err := g.Close(); err != nil {
			log.WithError(err).Warn("error closing guardian")
		}
	}()

	ep := endpoint.New(g, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           ep.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("nsdb-node listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}
	log.Info("nsdb-node stopped")
	return nil
}
