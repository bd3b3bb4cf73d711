// Package agent runs collectors against the bus: consume tasks, collect,
// publish results.
package agent

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/pulse/internal/bus"
)

// Collector produces result items for one collect task. Implementations do
// the actual network work; the bus contract lives here.
type Collector interface {
	// ID is the agent identity tasks are addressed to.
	ID() string
	// Collect gathers result items for the task's platform and window.
	Collect(ctx context.Context, task bus.Message) ([]bus.ResultItem, error)
}

// Run performs one agent pass: consume every collect task addressed to the
// collector, gather items, and publish one result per task to the manager,
// echoing the task's topic and thread. A failing task is logged and skipped;
// the pass continues. Returns the number of results published.
func Run(ctx context.Context, store bus.Store, c Collector, out io.Writer) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("agent: store is required")
	}
	if c == nil {
		return 0, fmt.Errorf("agent: collector is required")
	}
	if out == nil {
		out = io.Discard
	}

	tasks, err := store.Consume(bus.Inbox, c.ID(), bus.ConsumeOpts{})
	if err != nil {
		return 0, fmt.Errorf("agent: consume tasks for %s: %w", c.ID(), err)
	}

	published := 0
	for _, task := range tasks {
		if task.Type != bus.TypeCollect {
			continue
		}
		items, err := c.Collect(ctx, task)
		if err != nil {
			log.Printf("agent %s: collect %s failed: %v", c.ID(), task.Topic, err)
			continue
		}
		if len(items) == 0 {
			continue
		}

		result := bus.Message{
			From: c.ID(), To: bus.ManagerID, Type: bus.TypeResult,
			Status: "ok", Topic: task.Topic, Thread: task.Thread,
			Items: items,
		}
		if _, err := store.Publish(bus.Outbox, &result); err != nil {
			return published, fmt.Errorf("agent: publish result for %s: %w", task.Topic, err)
		}
		published++
	}
	fmt.Fprintf(out, "Agent %s: %d tasks, %d results\n", c.ID(), len(tasks), published)
	return published, nil
}

// parseWindow converts a window like "7d" or "24h" into a duration.
// Unparsable windows fall back to 7 days.
func parseWindow(window string) time.Duration {
	const fallback = 7 * 24 * time.Hour
	if len(window) < 2 {
		return fallback
	}
	n, err := strconv.Atoi(window[:len(window)-1])
	if err != nil || n <= 0 {
		return fallback
	}
	switch strings.ToLower(window[len(window)-1:]) {
	case "d":
		return time.Duration(n) * 24 * time.Hour
	case "h":
		return time.Duration(n) * time.Hour
	default:
		return fallback
	}
}
