package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriteText(t *testing.T) {
	c, registry := newTestCollector()
	c.SetInfo("v1.2.3", "direct")
	c.NodeLaunched(ModeGenerateWallet)
	c.RecordExit(intPtr(0), 2*time.Second)

	var buf bytes.Buffer
	if err := WriteText(&buf, registry, Namespace); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# TYPE node_harness_launches_total counter",
		`node_harness_launches_total{mode="generate_wallet"} 1`,
		`node_harness_exits_total{category="success"} 1`,
		`node_harness_info{strategy="direct",version="v1.2.3"} 1`,
		"node_harness_node_uptime_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestWriteText_PrefixFilter(t *testing.T) {
	c, registry := newTestCollector()
	c.NodeLaunched(ModeDaemon)

	var buf bytes.Buffer
	if err := WriteText(&buf, registry, "something_else"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

func TestTotals(t *testing.T) {
	c, registry := newTestCollector()
	c.NodeLaunched(ModeDaemon)
	c.NodeLaunched(ModeDumpConfig)
	c.RecordReadiness(time.Second)
	c.RecordReadiness(2 * time.Second)

	totals, err := Totals(registry)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}

	if got := totals["node_harness_launches_total"]; got != 2 {
		t.Errorf("launches total = %v, want 2", got)
	}
	if got := totals["node_harness_active_nodes"]; got != 2 {
		t.Errorf("active nodes = %v, want 2", got)
	}
	if got := totals["node_harness_readiness_seconds"]; got != 2 {
		t.Errorf("readiness samples = %v, want 2", got)
	}
}
