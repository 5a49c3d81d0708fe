package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestBindOverridesViperKeyFromFlagValue(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Set("node-id", "node-1"))

	v := viper.New()
	bind(v, cmd.Flags(), map[string]string{"node-id": "node.id"})
	require.Equal(t, "node-1", v.GetString("node.id"))
}

func TestLoadConfigAppliesFlagDefaultsWhenUnset(t *testing.T) {
	cmd := newRootCmd()
	flags := cmd.Flags()

	v := viper.New()
	bind(v, flags, map[string]string{
		"sharding-interval": "sharding.interval",
		"read-timeout":      "read-coordinator.timeout",
	})

	cfg := loadConfig(v, "")
	require.Equal(t, int64(3600000), cfg.Sharding.IntervalMillis)
}

func TestRunRejectsMissingNodeID(t *testing.T) {
	v := viper.New()
	err := run(v, "")
	require.Error(t, err)
}
