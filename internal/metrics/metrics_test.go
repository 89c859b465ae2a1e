package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	regOK.Store(false)
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg), "second Register should no-op")
}

func TestRecordStateTransitionIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	regOK.Store(false)
	require.NoError(t, Register(reg))
	RecordStateTransition("hello", "STARTING", "RUNNING")

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "taskmasterd_process_state_transitions_total" {
			continue
		}
		for _, m := range f.Metric {
			if m.GetCounter().GetValue() == 1 {
				found = true
			}
		}
	}
	require.True(t, found, "expected a state_transitions_total metric with value 1, families=%v", dumpNames(families))
}

func dumpNames(families []*dto.MetricFamily) []string {
	out := make([]string, len(families))
	for i, f := range families {
		out[i] = f.GetName()
	}
	return out
}
