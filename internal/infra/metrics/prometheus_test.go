package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg, "test")

	m.ObserveAssign("placed")
	m.ObserveAssign("placed")
	m.ObserveAssign("reserved")
	m.ObservePromotions(3)
	m.ObservePromotions(0)
	m.ObserveRebalance(20*time.Millisecond, nil)
	m.ObserveRebalance(time.Second, errors.New("x"))
	m.SetReserveSize("g1", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.assignments.WithLabelValues("placed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("reserved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.promotions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebalances.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.reserveSize.WithLabelValues("g1")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP test_rebalance_runs_total Rebalance runs by result.
# TYPE test_rebalance_runs_total counter
test_rebalance_runs_total{result="error"} 1
test_rebalance_runs_total{result="ok"} 1
`), "test_rebalance_runs_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(m.rebalanceD))
}
