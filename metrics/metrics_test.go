package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Turns(t *testing.T) {
	c := NewCollector(nil)

	c.TurnStarted()
	c.TurnStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.turnsActive))

	c.TurnFinished("compare", "completed", time.Second)
	c.TurnFinished("group", "failed", time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.turnsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("compare", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("group", "failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.turnDuration))
}

func TestCollector_Tasks(t *testing.T) {
	c := NewCollector(nil)

	c.TaskFinished("model", "done", 10*time.Millisecond)
	c.TaskFinished("model", "error", 10*time.Millisecond)
	c.ChunkEmitted("model")
	c.ChunkEmitted("model")
	c.Tokens("openai", 12, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksTotal.WithLabelValues("model", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.chunksTotal.WithLabelValues("model")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.tokensTotal.WithLabelValues("openai", "prompt")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.tokensTotal))
}

func TestCollector_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.EventRejected("model_chunk")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "chatmesh_events_rejected_total")
	assert.Contains(t, names, "chatmesh_turns_active")
}

func TestCollector_NilIsNoOp(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.TurnStarted()
		c.TurnFinished("single", "completed", time.Second)
		c.TaskFinished("assistant", "done", time.Second)
		c.ChunkEmitted("assistant")
		c.Tokens("mock", 1, 1)
		c.Thinking(time.Second)
		c.EventRejected("x")
	})
}
