// Package ranking folds snapshot results into weighted per-platform scores.
package ranking

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zulandar/pulse/internal/orchestrator"
)

// Output and history file names under the data directory.
const (
	OutputFile  = "platform_rankings.json"
	HistoryFile = "platform_rankings.prev.json"
)

// defaultCredibility is assumed for news items that carry no credibility.
const defaultCredibility = 0.7

// UnknownPlatform is the bucket for results whose topic has no platform prefix.
const UnknownPlatform = "Unknown"

// Weights blend the three normalized sub-scores into the composite.
type Weights struct {
	Interest  float64
	Community float64
	Updates   float64
}

// DefaultWeights is the fixed production blend.
var DefaultWeights = Weights{Interest: 0.40, Community: 0.35, Updates: 0.25}

// Breakdown holds the normalized sub-scores for one platform.
type Breakdown struct {
	Interest  float64 `json:"interest"`
	Community float64 `json:"community"`
	Updates   float64 `json:"updates"`
}

// Item is one platform's ranking record.
type Item struct {
	Platform    string    `json:"platform"`
	Score       float64   `json:"score"`
	Delta7d     float64   `json:"delta_7d"`
	Delta30d    *float64  `json:"delta_30d"`
	Breakdown   Breakdown `json:"breakdown"`
	LastUpdated string    `json:"last_updated"`
}

// Output is a complete ranking run, sorted by score descending.
type Output struct {
	GeneratedAt string `json:"generated_at"`
	Items       []Item `json:"items"`
}

// tally accumulates raw signal counts for one platform.
type tally struct {
	newsCount   int
	credSum     float64
	newsRelease int
	starsDelta  int
	prsMerged   int
	ghReleases  int
}

// Engine computes rankings from the snapshot in its data directory.
type Engine struct {
	dataDir string
	weights Weights
}

// New returns an Engine reading and writing under dataDir.
func New(dataDir string, w Weights) (*Engine, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("ranking: dataDir is required")
	}
	if w == (Weights{}) {
		w = DefaultWeights
	}
	return &Engine{dataDir: dataDir, weights: w}, nil
}

// OutputPath returns the ranking output file path.
func (e *Engine) OutputPath() string { return filepath.Join(e.dataDir, OutputFile) }

// HistoryPath returns the rotated previous-output file path.
func (e *Engine) HistoryPath() string { return filepath.Join(e.dataDir, HistoryFile) }

// Run loads the current snapshot, computes rankings, rotates the previous
// output into the history slot, and writes the new output. A missing
// snapshot is fatal; a missing or unparsable previous output just means no
// delta history.
func (e *Engine) Run(out io.Writer) (*Output, error) {
	if out == nil {
		out = io.Discard
	}

	snapPath := filepath.Join(e.dataDir, orchestrator.SnapshotFile)
	if _, err := os.Stat(snapPath); err != nil {
		return nil, fmt.Errorf("ranking: snapshot not found at %s (run orchestrate first)", snapPath)
	}
	snap, err := orchestrator.LoadSnapshot(snapPath)
	if err != nil {
		return nil, err
	}

	prev := loadPreviousScores(e.OutputPath(), e.HistoryPath())
	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	output := Compute(snap, e.weights, prev, now)

	// Rotate the previous output before overwriting, one generation deep.
	if _, err := os.Stat(e.OutputPath()); err == nil {
		if err := os.Rename(e.OutputPath(), e.HistoryPath()); err != nil {
			return nil, fmt.Errorf("ranking: rotate previous output: %w", err)
		}
	}

	if err := writeJSON(e.OutputPath(), output); err != nil {
		return nil, fmt.Errorf("ranking: write output: %w", err)
	}
	fmt.Fprintf(out, "Rankings written to %s (platforms: %d)\n", e.OutputPath(), len(output.Items))
	return output, nil
}

// Compute is the pure ranking function: tally, rescale, blend, delta, sort.
func Compute(snap *orchestrator.Snapshot, w Weights, prev map[string]float64, now string) *Output {
	platforms, tallies := tallySnapshot(snap)

	rawInterest := make([]float64, len(platforms))
	rawCommunity := make([]float64, len(platforms))
	rawUpdates := make([]float64, len(platforms))
	for i, p := range platforms {
		t := tallies[p]
		avgCred := defaultCredibility
		if t.newsCount > 0 {
			avgCred = t.credSum / float64(t.newsCount)
		}
		rawInterest[i] = float64(t.newsCount) * avgCred * 10.0
		rawCommunity[i] = float64(t.starsDelta + t.prsMerged*2 + t.ghReleases*5)
		rawUpdates[i] = float64(t.newsRelease*4 + t.ghReleases*6)
	}

	scInterest := Rescale(rawInterest)
	scCommunity := Rescale(rawCommunity)
	scUpdates := Rescale(rawUpdates)

	items := make([]Item, 0, len(platforms))
	for i, p := range platforms {
		score := scInterest[i]*w.Interest + scCommunity[i]*w.Community + scUpdates[i]*w.Updates
		delta := 0.0
		if prevScore, ok := prev[p]; ok {
			delta = round2(score - prevScore)
		}
		items = append(items, Item{
			Platform: p,
			Score:    round2(score),
			Delta7d:  delta,
			Breakdown: Breakdown{
				Interest:  round2(scInterest[i]),
				Community: round2(scCommunity[i]),
				Updates:   round2(scUpdates[i]),
			},
			LastUpdated: now,
		})
	}

	// Stable sort keeps grouping order for equal scores.
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })

	return &Output{GeneratedAt: now, Items: items}
}

// Rescale maps raw values to [0,100] by min-max normalization. When every
// value is identical there is no discriminating information, so every
// platform gets exactly the midpoint 50.0.
func Rescale(vals []float64) []float64 {
	if len(vals) == 0 {
		return nil
	}
	mn, mx := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	out := make([]float64, len(vals))
	if mx == mn {
		for i := range out {
			out[i] = 50.0
		}
		return out
	}
	for i, v := range vals {
		out[i] = (v - mn) * 100.0 / (mx - mn)
	}
	return out
}

// tallySnapshot groups result items by platform, preserving first-seen order.
func tallySnapshot(snap *orchestrator.Snapshot) ([]string, map[string]*tally) {
	var platforms []string
	tallies := make(map[string]*tally)

	for _, r := range snap.Results {
		p := PlatformFromTopic(r.Topic)
		t, ok := tallies[p]
		if !ok {
			t = &tally{}
			tallies[p] = t
			platforms = append(platforms, p)
		}
		switch r.From {
		case orchestrator.AgentNews:
			for _, item := range r.Items {
				t.newsCount++
				if item.Credibility != nil {
					t.credSum += *item.Credibility
				} else {
					t.credSum += defaultCredibility
				}
				if item.Signals.Release {
					t.newsRelease++
				}
			}
		case orchestrator.AgentGitHub:
			for _, item := range r.Items {
				t.starsDelta += item.StarsDelta
				t.prsMerged += item.PRsMerged
				t.ghReleases += item.Releases
			}
		}
	}
	return platforms, tallies
}

// PlatformFromTopic extracts the platform name from a topic's prefix before
// the first separator. Topics without a separator map to the unknown bucket.
func PlatformFromTopic(topic string) string {
	for i := 0; i < len(topic); i++ {
		if topic[i] == '-' {
			return topic[:i]
		}
	}
	return UnknownPlatform
}

// loadPreviousScores reads the previous output (or the history fallback) and
// returns platform -> score. Missing or unparsable files yield an empty map.
func loadPreviousScores(outputPath, historyPath string) map[string]float64 {
	for _, path := range []string{outputPath, historyPath} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var prev Output
		if err := json.Unmarshal(data, &prev); err != nil {
			continue
		}
		scores := make(map[string]float64, len(prev.Items))
		for _, item := range prev.Items {
			scores[item.Platform] = item.Score
		}
		return scores
	}
	return map[string]float64{}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// writeJSON writes v to path via temp file and rename.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rank-*")
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
