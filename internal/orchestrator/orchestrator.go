// Package orchestrator publishes collect tasks to agents and drains their
// results into an immutable snapshot.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zulandar/pulse/internal/bus"
)

// Well-known collector agent identities.
const (
	AgentNews   = "news"
	AgentGitHub = "github"
)

// SnapshotFile is the snapshot's file name under the data directory.
const SnapshotFile = "snapshots.json"

// Snapshot is a point-in-time consolidation of every result drained from the
// outbox. It is immutable once written and superseded wholesale by the next
// run.
type Snapshot struct {
	GeneratedAt string        `json:"generated_at"`
	Count       int           `json:"count"`
	Results     []bus.Message `json:"results"`
}

// Orchestrator fans collect tasks out to agents and consolidates results.
type Orchestrator struct {
	store   bus.Store
	dataDir string
}

// New returns an Orchestrator writing snapshots under dataDir.
func New(store bus.Store, dataDir string) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("orchestrator: store is required")
	}
	if dataDir == "" {
		return nil, fmt.Errorf("orchestrator: dataDir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("orchestrator: create %s: %w", dataDir, err)
	}
	return &Orchestrator{store: store, dataDir: dataDir}, nil
}

// SnapshotPath returns the path the next Drain will write to.
func (o *Orchestrator) SnapshotPath() string {
	return filepath.Join(o.dataDir, SnapshotFile)
}

// PublishTasks publishes one collect task per platform to each collector
// agent. Both tasks for a platform share topic and thread
// ("<platform>-<window>") so results can be correlated back to the request.
// Returns the number of tasks published.
func (o *Orchestrator) PublishTasks(platforms []string, window string, minCredibility float64, out io.Writer) (int, error) {
	if len(platforms) == 0 {
		return 0, fmt.Errorf("orchestrator: platforms are required")
	}
	if window == "" {
		return 0, fmt.Errorf("orchestrator: window is required")
	}
	if out == nil {
		out = io.Discard
	}

	published := 0
	for _, platform := range platforms {
		topic := platform + "-" + window

		tasks := []bus.Message{
			{
				From: bus.ManagerID, To: AgentNews, Type: bus.TypeCollect,
				Topic: topic, Thread: topic,
				Payload: &bus.CollectPayload{
					Platform: platform, Window: window, MinCredibility: minCredibility,
				},
			},
			{
				From: bus.ManagerID, To: AgentGitHub, Type: bus.TypeCollect,
				Topic: topic, Thread: topic,
				Payload: &bus.CollectPayload{Platform: platform, Window: window},
			},
		}
		for i := range tasks {
			if _, err := o.store.Publish(bus.Inbox, &tasks[i]); err != nil {
				return published, fmt.Errorf("orchestrator: publish task for %s: %w", platform, err)
			}
			published++
		}
	}
	fmt.Fprintf(out, "Published collect tasks for %d platforms\n", len(platforms))
	return published, nil
}

// Drain consumes every outbox result addressed to the manager (deleting as
// it goes) and writes them as one snapshot. Results published to the outbox
// while the drain is running may land in this snapshot or the next; the bus
// is built for request/response cycles, not streaming.
func (o *Orchestrator) Drain(out io.Writer) (*Snapshot, error) {
	if out == nil {
		out = io.Discard
	}

	results, err := o.store.Consume(bus.Outbox, bus.ManagerID, bus.ConsumeOpts{})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: drain outbox: %w", err)
	}

	snap := &Snapshot{
		GeneratedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Count:       len(results),
		Results:     results,
	}
	if err := writeJSON(o.SnapshotPath(), snap); err != nil {
		return nil, fmt.Errorf("orchestrator: write snapshot: %w", err)
	}
	fmt.Fprintf(out, "Snapshot written to %s (items: %d)\n", o.SnapshotPath(), len(results))
	return snap, nil
}

// LoadSnapshot reads a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read snapshot %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("orchestrator: parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// writeJSON writes v to path via a temp file and rename, so readers never
// observe a partial snapshot.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snap-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
