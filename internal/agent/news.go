package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/zulandar/pulse/internal/bus"
	"github.com/zulandar/pulse/internal/config"
)

const (
	// hnBaseURL is the Hacker News Firebase API root.
	hnBaseURL = "https://hacker-news.firebaseio.com/v0"
	// arxivFeedURL lists recent cs.AI submissions.
	arxivFeedURL = "http://export.arxiv.org/api/query?search_query=cat:cs.AI&sortBy=submittedDate&sortOrder=descending&max_results=50"

	// perDomainCap limits how many items one source domain contributes.
	perDomainCap = 3
	// perFeedLimit bounds items taken from a single feed.
	perFeedLimit = 40
	// hnTopLimit bounds how many top stories are fetched.
	hnTopLimit = 40
)

// NewsCollector gathers platform news from RSS feeds and the Hacker News
// API. With nothing configured it emits a sample item, keeping the rest of
// the pipeline runnable offline.
type NewsCollector struct {
	feeds      []string
	minCred    float64
	hackerNews bool
	arxiv      bool

	parser *gofeed.Parser
	client *http.Client
	hnBase string
	now    func() time.Time
}

// NewNews builds a news collector from configuration.
func NewNews(cfg config.NewsConfig) *NewsCollector {
	return &NewsCollector{
		feeds:      cfg.Feeds,
		minCred:    cfg.MinCredibility,
		hackerNews: cfg.HackerNews,
		arxiv:      cfg.Arxiv,
		parser:     gofeed.NewParser(),
		client:     &http.Client{Timeout: 12 * time.Second},
		hnBase:     hnBaseURL,
		now:        time.Now,
	}
}

// ID returns the agent identity.
func (c *NewsCollector) ID() string { return "news" }

// Collect gathers news items mentioning the task's platform. The task
// payload's min_credibility overrides the configured floor when set.
func (c *NewsCollector) Collect(ctx context.Context, task bus.Message) ([]bus.ResultItem, error) {
	platform := ""
	minCred := c.minCred
	if task.Payload != nil {
		platform = task.Payload.Platform
		if task.Payload.MinCredibility > 0 {
			minCred = task.Payload.MinCredibility
		}
	}

	if len(c.feeds) == 0 && !c.hackerNews && !c.arxiv {
		return c.sampleItems(task), nil
	}

	var raw []newsItem
	for _, feed := range c.feeds {
		items, err := c.fetchFeed(ctx, feed)
		if err != nil {
			log.Printf("news: feed %s: %v", feed, err)
			continue
		}
		raw = append(raw, items...)
	}
	if c.hackerNews {
		items, err := c.fetchHackerNews(ctx)
		if err != nil {
			log.Printf("news: hacker news: %v", err)
		}
		raw = append(raw, items...)
	}
	if c.arxiv {
		items, err := c.fetchFeed(ctx, arxivFeedURL)
		if err != nil {
			log.Printf("news: arxiv: %v", err)
		}
		raw = append(raw, items...)
	}

	raw = dedupe(raw)
	raw = capPerDomain(raw, perDomainCap)
	scoreByRecency(raw, c.now())

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].score > raw[j].score })

	var out []bus.ResultItem
	for _, it := range raw {
		if platform != "" && !mentions(it, platform) {
			continue
		}
		credibility := sourceCredibility(it.source)
		if credibility < minCred {
			continue
		}
		cred := credibility
		out = append(out, bus.ResultItem{
			Title:       it.title,
			URL:         it.url,
			Summary:     it.summary,
			Credibility: &cred,
			Signals:     bus.Signals{Release: isReleaseSignal(it.title)},
		})
	}
	return out, nil
}

// sampleItems is the offline placeholder, one item echoing the task topic.
func (c *NewsCollector) sampleItems(task bus.Message) []bus.ResultItem {
	cred := 0.85
	return []bus.ResultItem{{
		Title:       fmt.Sprintf("Sample news for %s", task.Topic),
		URL:         "https://example.com",
		Summary:     "sample summary",
		Credibility: &cred,
		Signals:     bus.Signals{Release: true},
	}}
}

// newsItem is the intermediate shape before conversion to bus.ResultItem.
type newsItem struct {
	title   string
	url     string
	summary string
	source  string
	ts      time.Time
	score   float64
}

func (c *NewsCollector) fetchFeed(ctx context.Context, feedURL string) ([]newsItem, error) {
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}
	var out []newsItem
	for i, entry := range feed.Items {
		if i >= perFeedLimit {
			break
		}
		link := entry.Link
		if link == "" && entry.GUID != "" {
			link = entry.GUID
		}
		title := strings.TrimSpace(entry.Title)
		if link == "" && title == "" {
			continue
		}
		ts := c.now()
		if entry.PublishedParsed != nil {
			ts = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			ts = *entry.UpdatedParsed
		}
		out = append(out, newsItem{
			title:   title,
			url:     link,
			summary: strings.TrimSpace(entry.Description),
			source:  domainOf(link),
			ts:      ts,
		})
	}
	return out, nil
}

// hnStory matches the Hacker News item API response fields we use.
type hnStory struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  int64  `json:"time"`
	Score int    `json:"score"`
}

func (c *NewsCollector) fetchHackerNews(ctx context.Context) ([]newsItem, error) {
	var ids []int
	if err := c.getJSON(ctx, c.hnBase+"/topstories.json", &ids); err != nil {
		return nil, err
	}
	if len(ids) > hnTopLimit {
		ids = ids[:hnTopLimit]
	}

	var out []newsItem
	for _, id := range ids {
		var story hnStory
		if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.hnBase, id), &story); err != nil {
			log.Printf("news: hn item %d: %v", id, err)
			continue
		}
		if story.URL == "" {
			continue
		}
		out = append(out, newsItem{
			title:  story.Title,
			url:    story.URL,
			source: domainOf(story.URL),
			ts:     time.Unix(story.Time, 0).UTC(),
			score:  float64(story.Score),
		})
	}
	return out, nil
}

func (c *NewsCollector) getJSON(ctx context.Context, rawURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// dedupe drops items sharing a normalized URL (or title when URL-less).
func dedupe(items []newsItem) []newsItem {
	seen := make(map[string]bool)
	var out []newsItem
	for _, it := range items {
		key := it.url
		if key == "" {
			key = it.title
		}
		key = strings.TrimPrefix(strings.TrimPrefix(key, "https://"), "http://")
		key = strings.TrimPrefix(key, "www.")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

// capPerDomain keeps at most n items per source domain.
func capPerDomain(items []newsItem, n int) []newsItem {
	counts := make(map[string]int)
	var out []newsItem
	for _, it := range items {
		counts[it.source]++
		if counts[it.source] <= n {
			out = append(out, it)
		}
	}
	return out
}

// scoreByRecency blends source trust, feed score, and a 48-hour exponential
// age decay into each item's sort score.
func scoreByRecency(items []newsItem, now time.Time) {
	for i := range items {
		trust := trustMultiplier(items[i].source)
		ageHours := math.Max(1, now.Sub(items[i].ts).Hours())
		recency := 100 * math.Exp(-ageHours/48)
		items[i].score = trust * (items[i].score*0.6 + recency)
	}
}

// officialSources are first-party vendor domains.
var officialSources = []string{"openai", "deepmind", "google", "anthropic", "microsoft", "meta", "arxiv"}

// pressSources are established tech press domains.
var pressSources = []string{"techcrunch", "verge", "venturebeat", "ft", "semafor"}

func trustMultiplier(source string) float64 {
	s := strings.ToLower(source)
	for _, o := range officialSources {
		if strings.Contains(s, o) {
			return 1.3
		}
	}
	for _, p := range pressSources {
		if strings.Contains(s, p) {
			return 1.1
		}
	}
	return 1.0
}

// sourceCredibility maps a source domain to a credibility estimate.
func sourceCredibility(source string) float64 {
	switch trustMultiplier(source) {
	case 1.3:
		return 0.9
	case 1.1:
		return 0.75
	default:
		return 0.6
	}
}

// mentions reports whether the item's title or summary names the platform.
func mentions(it newsItem, platform string) bool {
	p := strings.ToLower(platform)
	return strings.Contains(strings.ToLower(it.title), p) ||
		strings.Contains(strings.ToLower(it.summary), p)
}

// releaseWords flag a title as a release announcement.
var releaseWords = []string{"release", "launch", "announc", "introduc", "unveil", "ships"}

func isReleaseSignal(title string) bool {
	t := strings.ToLower(title)
	for _, w := range releaseWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
