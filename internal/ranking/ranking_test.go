package ranking

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/pulse/internal/bus"
	"github.com/zulandar/pulse/internal/orchestrator"
)

func cred(v float64) *float64 { return &v }

// acmeSnapshot is the two-result scenario: one news result with two items
// (credibilities 0.8 and 0.6, one release), one github result with
// stars_delta=10, prs_merged=2, releases=1.
func acmeSnapshot() *orchestrator.Snapshot {
	return &orchestrator.Snapshot{
		GeneratedAt: "2026-08-30T00:00:00Z",
		Count:       2,
		Results: []bus.Message{
			{
				From: orchestrator.AgentNews, To: bus.ManagerID, Type: bus.TypeResult,
				Topic: "Acme-7d",
				Items: []bus.ResultItem{
					{Title: "a", Credibility: cred(0.8), Signals: bus.Signals{Release: true}},
					{Title: "b", Credibility: cred(0.6)},
				},
			},
			{
				From: orchestrator.AgentGitHub, To: bus.ManagerID, Type: bus.TypeResult,
				Topic: "Acme-7d",
				Items: []bus.ResultItem{
					{Repo: "acme/sample", StarsDelta: 10, PRsMerged: 2, Releases: 1},
				},
			},
		},
	}
}

// --- Rescale laws ---

func TestRescale_MidpointOnIdenticalValues(t *testing.T) {
	for _, v := range []float64{0, 1, 14, -3.5, 1e6} {
		got := Rescale([]float64{v, v, v})
		for i, s := range got {
			if s != 50.0 {
				t.Errorf("Rescale(all %v)[%d] = %v, want 50.0", v, i, s)
			}
		}
	}
}

func TestRescale_BoundaryLaw(t *testing.T) {
	got := Rescale([]float64{3, 9, 6})
	if got[0] != 0.0 {
		t.Errorf("min rescaled to %v, want 0.0", got[0])
	}
	if got[1] != 100.0 {
		t.Errorf("max rescaled to %v, want 100.0", got[1])
	}
	if got[2] != 50.0 {
		t.Errorf("mid rescaled to %v, want 50.0", got[2])
	}
}

func TestRescale_Empty(t *testing.T) {
	if got := Rescale(nil); got != nil {
		t.Errorf("Rescale(nil) = %v, want nil", got)
	}
}

func TestRescale_SingleElement(t *testing.T) {
	got := Rescale([]float64{42})
	if len(got) != 1 || got[0] != 50.0 {
		t.Errorf("Rescale([42]) = %v, want [50.0]", got)
	}
}

// --- Topic parsing ---

func TestPlatformFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"Acme-7d", "Acme"},
		{"OpenAI-30d", "OpenAI"},
		{"noseparator", "Unknown"},
		{"", "Unknown"},
		{"a-b-c", "a"},
	}
	for _, tt := range tests {
		if got := PlatformFromTopic(tt.topic); got != tt.want {
			t.Errorf("PlatformFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

// --- Compute ---

func TestCompute_SingleEntityScenario(t *testing.T) {
	out := Compute(acmeSnapshot(), DefaultWeights, map[string]float64{}, "2026-08-30T00:00:00Z")
	if len(out.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(out.Items))
	}
	item := out.Items[0]
	if item.Platform != "Acme" {
		t.Errorf("platform = %q, want Acme", item.Platform)
	}
	// Single entity: every signal is degenerate, so each rescales to the
	// midpoint and the composite is exactly 50.00 regardless of magnitude.
	if item.Score != 50.00 {
		t.Errorf("score = %v, want 50.00", item.Score)
	}
	b := item.Breakdown
	if b.Interest != 50.0 || b.Community != 50.0 || b.Updates != 50.0 {
		t.Errorf("breakdown = %+v, want all 50.0", b)
	}
	if item.Delta7d != 0 {
		t.Errorf("delta = %v, want 0 on first run", item.Delta7d)
	}
	if item.Delta30d != nil {
		t.Errorf("delta_30d = %v, want null", *item.Delta30d)
	}
}

func TestCompute_DefaultCredibility(t *testing.T) {
	snap := &orchestrator.Snapshot{
		Results: []bus.Message{
			{
				From: orchestrator.AgentNews, Topic: "Acme-7d", Type: bus.TypeResult,
				Items: []bus.ResultItem{{Title: "no credibility"}},
			},
			{
				From: orchestrator.AgentNews, Topic: "Globex-7d", Type: bus.TypeResult,
				Items: []bus.ResultItem{{Title: "x", Credibility: cred(1.4)}},
			},
		},
	}
	out := Compute(snap, DefaultWeights, map[string]float64{}, "now")
	// Acme interest raw = 1 * 0.7 * 10 = 7, Globex = 1 * 1.4 * 10 = 14.
	// Acme is the min (interest 0), Globex the max (interest 100).
	byName := map[string]Item{}
	for _, it := range out.Items {
		byName[it.Platform] = it
	}
	if byName["Acme"].Breakdown.Interest != 0.0 {
		t.Errorf("Acme interest = %v, want 0.0", byName["Acme"].Breakdown.Interest)
	}
	if byName["Globex"].Breakdown.Interest != 100.0 {
		t.Errorf("Globex interest = %v, want 100.0", byName["Globex"].Breakdown.Interest)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	snap := acmeSnapshot()
	a := Compute(snap, DefaultWeights, map[string]float64{}, "now")
	b := Compute(snap, DefaultWeights, map[string]float64{}, "now")
	if len(a.Items) != len(b.Items) {
		t.Fatalf("item counts differ: %d vs %d", len(a.Items), len(b.Items))
	}
	for i := range a.Items {
		if a.Items[i] != b.Items[i] {
			t.Errorf("items[%d] differ: %+v vs %+v", i, a.Items[i], b.Items[i])
		}
	}
}

func TestCompute_SortsByScoreDescending(t *testing.T) {
	snap := &orchestrator.Snapshot{
		Results: []bus.Message{
			{
				From: orchestrator.AgentGitHub, Topic: "Low-7d", Type: bus.TypeResult,
				Items: []bus.ResultItem{{StarsDelta: 1}},
			},
			{
				From: orchestrator.AgentGitHub, Topic: "High-7d", Type: bus.TypeResult,
				Items: []bus.ResultItem{{StarsDelta: 100}},
			},
		},
	}
	out := Compute(snap, DefaultWeights, map[string]float64{}, "now")
	if out.Items[0].Platform != "High" {
		t.Errorf("first = %q, want High", out.Items[0].Platform)
	}
	if out.Items[1].Platform != "Low" {
		t.Errorf("second = %q, want Low", out.Items[1].Platform)
	}
}

func TestCompute_TiesKeepGroupingOrder(t *testing.T) {
	// Two entities with identical tallies: every signal degenerates to 50,
	// scores tie, and the first-seen order must hold.
	snap := &orchestrator.Snapshot{
		Results: []bus.Message{
			{
				From: orchestrator.AgentGitHub, Topic: "Beta-7d", Type: bus.TypeResult,
				Items: []bus.ResultItem{{StarsDelta: 5}},
			},
			{
				From: orchestrator.AgentGitHub, Topic: "Alpha-7d", Type: bus.TypeResult,
				Items: []bus.ResultItem{{StarsDelta: 5}},
			},
		},
	}
	out := Compute(snap, DefaultWeights, map[string]float64{}, "now")
	if out.Items[0].Platform != "Beta" || out.Items[1].Platform != "Alpha" {
		t.Errorf("tie order = [%s, %s], want [Beta, Alpha]",
			out.Items[0].Platform, out.Items[1].Platform)
	}
}

func TestCompute_UnknownTopicBucket(t *testing.T) {
	snap := &orchestrator.Snapshot{
		Results: []bus.Message{
			{
				From: orchestrator.AgentNews, Topic: "odd", Type: bus.TypeResult,
				Items: []bus.ResultItem{{Title: "x"}},
			},
		},
	}
	out := Compute(snap, DefaultWeights, map[string]float64{}, "now")
	if len(out.Items) != 1 || out.Items[0].Platform != UnknownPlatform {
		t.Errorf("items = %+v, want single Unknown entry", out.Items)
	}
}

func TestCompute_DeltaAgainstPrevious(t *testing.T) {
	out := Compute(acmeSnapshot(), DefaultWeights, map[string]float64{"Acme": 40.0}, "now")
	if out.Items[0].Delta7d != 10.0 {
		t.Errorf("delta = %v, want 10.0", out.Items[0].Delta7d)
	}
}

// --- Engine.Run ---

func testEngine(t *testing.T, snap *orchestrator.Snapshot) *Engine {
	t.Helper()
	dataDir := t.TempDir()
	store, err := bus.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	o, err := orchestrator.New(store, dataDir)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if snap != nil {
		for i := range snap.Results {
			if _, err := store.Publish(bus.Outbox, &snap.Results[i]); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
		if _, err := o.Drain(io.Discard); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
	e, err := New(dataDir, DefaultWeights)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestRun_MissingSnapshotIsFatal(t *testing.T) {
	e, err := New(t.TempDir(), DefaultWeights)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = e.Run(io.Discard)
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
	if !strings.Contains(err.Error(), "snapshot not found") {
		t.Errorf("error = %q", err)
	}
}

func TestRun_SecondRunHasZeroDelta(t *testing.T) {
	e := testEngine(t, acmeSnapshot())

	first, err := e.Run(io.Discard)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Items[0].Delta7d != 0 {
		t.Errorf("first run delta = %v, want 0", first.Items[0].Delta7d)
	}

	second, err := e.Run(io.Discard)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, item := range second.Items {
		if item.Delta7d != 0.00 {
			t.Errorf("%s second-run delta = %v, want 0.00", item.Platform, item.Delta7d)
		}
	}
}

func TestRun_RotatesPreviousOutput(t *testing.T) {
	e := testEngine(t, acmeSnapshot())

	if _, err := e.Run(io.Discard); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(e.HistoryPath()); !os.IsNotExist(err) {
		t.Error("history file exists after first run")
	}

	if _, err := e.Run(io.Discard); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if _, err := os.Stat(e.HistoryPath()); err != nil {
		t.Errorf("history file missing after second run: %v", err)
	}
}

func TestRun_UnparsablePreviousOutputIsIgnored(t *testing.T) {
	e := testEngine(t, acmeSnapshot())
	if err := os.WriteFile(e.OutputPath(), []byte("{corrupt"), 0o644); err != nil {
		t.Fatalf("write corrupt output: %v", err)
	}

	out, err := e.Run(io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Items[0].Delta7d != 0 {
		t.Errorf("delta = %v, want 0 with no usable history", out.Items[0].Delta7d)
	}
}

func TestRun_HistoryFallbackWhenOutputAbsent(t *testing.T) {
	e := testEngine(t, acmeSnapshot())

	// Only the history slot has a prior record.
	prev := `{"generated_at":"x","items":[{"platform":"Acme","score":30.0}]}`
	if err := os.WriteFile(e.HistoryPath(), []byte(prev), 0o644); err != nil {
		t.Fatalf("write history: %v", err)
	}

	out, err := e.Run(io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Items[0].Delta7d != 20.0 {
		t.Errorf("delta = %v, want 20.0 (50 - 30)", out.Items[0].Delta7d)
	}
}

func TestRun_WritesSortedOutputFile(t *testing.T) {
	e := testEngine(t, acmeSnapshot())
	if _, err := e.Run(io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(e.OutputPath()), OutputFile))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), `"platform": "Acme"`) {
		t.Errorf("output missing Acme entry:\n%s", data)
	}
}
