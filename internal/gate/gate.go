// Package gate routes peer-to-peer messages that require manager approval.
package gate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zulandar/pulse/internal/bus"
)

// Gate consumes the whole inbox, clears the approval flag on peer-to-peer
// messages that require it, and re-publishes everything. Forwarded message
// IDs are recorded in a processed-set file so a replayed run skips messages
// it already forwarded instead of treating them as new.
type Gate struct {
	store     bus.Store
	statePath string
}

// Result reports what one gate pass did.
type Result struct {
	Forwarded int
	Kept      int
}

// New returns a Gate persisting its processed set at statePath.
func New(store bus.Store, statePath string) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("gate: store is required")
	}
	if statePath == "" {
		return nil, fmt.Errorf("gate: statePath is required")
	}
	return &Gate{store: store, statePath: statePath}, nil
}

// Run performs one gate pass over the inbox. Messages keep their IDs across
// the re-publish, so the pass is neutral on record count and idempotent on a
// quiescent mailbox.
func (g *Gate) Run(out io.Writer) (Result, error) {
	if out == nil {
		out = io.Discard
	}

	processed, err := g.loadProcessed()
	if err != nil {
		return Result{}, err
	}

	msgs, err := g.store.Consume(bus.Inbox, bus.Wildcard, bus.ConsumeOpts{})
	if err != nil {
		return Result{}, fmt.Errorf("gate: consume inbox: %w", err)
	}

	var res Result
	for i := range msgs {
		m := msgs[i]
		if m.P2P && m.RequiresApproval && !processed[m.ID] {
			m.RequiresApproval = false
			processed[m.ID] = true
			res.Forwarded++
		} else {
			res.Kept++
		}
		if _, err := g.store.Publish(bus.Inbox, &m); err != nil {
			return res, fmt.Errorf("gate: republish %s: %w", m.ID, err)
		}
	}

	if err := g.saveProcessed(processed); err != nil {
		return res, err
	}
	fmt.Fprintf(out, "Gate pass: forwarded=%d, kept=%d\n", res.Forwarded, res.Kept)
	return res, nil
}

// loadProcessed reads the processed-set file. A missing or unparsable file
// means an empty set.
func (g *Gate) loadProcessed() (map[string]bool, error) {
	set := make(map[string]bool)
	data, err := os.ReadFile(g.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("gate: read state %s: %w", g.statePath, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return set, nil
	}
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (g *Gate) saveProcessed(set map[string]bool) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("gate: marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(g.statePath), 0o755); err != nil {
		return fmt.Errorf("gate: write state: %w", err)
	}
	if err := os.WriteFile(g.statePath, data, 0o644); err != nil {
		return fmt.Errorf("gate: write state: %w", err)
	}
	return nil
}
