package cluster

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/metadata"
)

type fakeSink struct {
	locations []metadata.Location
	infos     []metadata.MetricInfo
}

func (f *fakeSink) ApplyRemoteLocation(l metadata.Location)     { f.locations = append(f.locations, l) }
func (f *fakeSink) ApplyRemoteMetricInfo(m metadata.MetricInfo) { f.infos = append(f.infos, m) }

func newTestCluster(t *testing.T) *Cluster {
	t.Helper()
	return &Cluster{log: logrus.NewEntry(logrus.New())}
}

func TestNotifyMsgRoutesLocationToSink(t *testing.T) {
	c := newTestCluster(t)
	sink := &fakeSink{}
	c.SetSink(sink)

	loc := metadata.Location{Metric: "people", NodeID: "node-1", LowerTS: 0, UpperTS: 10}
	body, err := json.Marshal(loc)
	require.NoError(t, err)
	env, err := json.Marshal(envelope{Kind: eventLocation, Body: body})
	require.NoError(t, err)

	d := (*delegate)(c)
	d.NotifyMsg(env)

	require.Len(t, sink.locations, 1)
	assert.Equal(t, "people", sink.locations[0].Metric)
}

func TestNotifyMsgRoutesMetricInfoToSink(t *testing.T) {
	c := newTestCluster(t)
	sink := &fakeSink{}
	c.SetSink(sink)

	mi := metadata.MetricInfo{Metric: "people", ShardIntervalMillis: 10}
	body, err := json.Marshal(mi)
	require.NoError(t, err)
	env, err := json.Marshal(envelope{Kind: eventMetricInfo, Body: body})
	require.NoError(t, err)

	d := (*delegate)(c)
	d.NotifyMsg(env)

	require.Len(t, sink.infos, 1)
	assert.Equal(t, int64(10), sink.infos[0].ShardIntervalMillis)
}

func TestNotifyMsgWithoutSinkDoesNotPanic(t *testing.T) {
	c := newTestCluster(t)
	d := (*delegate)(c)
	loc := metadata.Location{Metric: "people"}
	body, err := json.Marshal(loc)
	require.NoError(t, err)
	env, err := json.Marshal(envelope{Kind: eventLocation, Body: body})
	require.NoError(t, err)

	assert.NotPanics(t, func() { d.NotifyMsg(env) })
}

func TestNotifyMsgDropsMalformedPayload(t *testing.T) {
	c := newTestCluster(t)
	sink := &fakeSink{}
	c.SetSink(sink)
	d := (*delegate)(c)

	assert.NotPanics(t, func() { d.NotifyMsg([]byte("not json")) })
	assert.Empty(t, sink.locations)
}
