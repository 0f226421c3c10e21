package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Formula(ResultRendered)
	c.Formula(ResultRendered)
	c.Formula(ResultError)
	c.Diagram(ResultDropped)
	c.DiagramDuration(20 * time.Millisecond)
	c.Activation("katex", ResultReady)
	c.ResourceLoad("script", ResultCached)
	c.Message(ResultUnchanged)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "formulas rendered", got: testutil.ToFloat64(c.formulas.WithLabelValues(ResultRendered)), want: 2},
		{name: "formulas error", got: testutil.ToFloat64(c.formulas.WithLabelValues(ResultError)), want: 1},
		{name: "diagrams dropped", got: testutil.ToFloat64(c.diagrams.WithLabelValues(ResultDropped)), want: 1},
		{name: "activations", got: testutil.ToFloat64(c.activations.WithLabelValues("katex", ResultReady)), want: 1},
		{name: "resource loads", got: testutil.ToFloat64(c.resourceLoads.WithLabelValues("script", ResultCached)), want: 1},
		{name: "messages", got: testutil.ToFloat64(c.messages.WithLabelValues(ResultUnchanged)), want: 1},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(c.diagramTime); n != 1 {
		t.Errorf("diagram histogram series = %d, want 1", n)
	}
}

func TestCollector_Nil(t *testing.T) {
	t.Parallel()

	var c *Collector
	// Must not panic.
	c.Formula(ResultRendered)
	c.Diagram(ResultRendered)
	c.DiagramDuration(time.Second)
	c.Activation("mermaid", ResultFailed)
	c.ResourceLoad("stylesheet", ResultLoaded)
	c.Message(ResultModified)
}

func TestNew_Unregistered(t *testing.T) {
	t.Parallel()

	// Two collectors without a registerer must not conflict.
	a := New(nil)
	b := New(nil)
	a.Formula(ResultSkipped)
	b.Formula(ResultSkipped)

	if got := testutil.ToFloat64(a.formulas.WithLabelValues(ResultSkipped)); got != 1 {
		t.Errorf("a skipped = %v, want 1", got)
	}
}
