// Package notify delivers ranking digests to chat channels after a run.
package notify

import (
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/pulse/internal/config"
	"github.com/zulandar/pulse/internal/ranking"
)

// Notifier posts a digest to one destination.
type Notifier interface {
	Name() string
	Send(text string) error
}

// FromConfig builds a notifier per configured destination. Destinations
// without a token are silently skipped.
func FromConfig(cfg config.NotifyConfig) []Notifier {
	var notifiers []Notifier
	if cfg.Slack.Token != "" && cfg.Slack.Channel != "" {
		notifiers = append(notifiers, NewSlack(cfg.Slack.Token, cfg.Slack.Channel))
	}
	if cfg.Discord.Token != "" && cfg.Discord.ChannelID != "" {
		n, err := NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			log.Printf("notify: discord setup failed: %v", err)
		} else {
			notifiers = append(notifiers, n)
		}
	}
	return notifiers
}

// Broadcast sends text to every notifier. Best-effort: failures are logged,
// not returned, so a dead webhook never fails the pipeline.
func Broadcast(notifiers []Notifier, text string) {
	for _, n := range notifiers {
		if err := n.Send(text); err != nil {
			log.Printf("notify: %s send failed: %v", n.Name(), err)
		}
	}
}

// FormatDigest renders the top entries of a ranking run as a compact text
// digest.
func FormatDigest(out *ranking.Output, top int) string {
	if out == nil || len(out.Items) == 0 {
		return ""
	}
	if top <= 0 || top > len(out.Items) {
		top = len(out.Items)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Platform rankings (%s)\n", out.GeneratedAt)
	for i, item := range out.Items[:top] {
		arrow := "→"
		switch {
		case item.Delta7d > 0:
			arrow = "↑"
		case item.Delta7d < 0:
			arrow = "↓"
		}
		fmt.Fprintf(&b, "%d. %s %.2f (%s%+.2f)\n", i+1, item.Platform, item.Score, arrow, item.Delta7d)
	}
	return strings.TrimRight(b.String(), "\n")
}
