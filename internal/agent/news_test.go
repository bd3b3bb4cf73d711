package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/zulandar/pulse/internal/bus"
	"github.com/zulandar/pulse/internal/config"
)

func collectTask(platform, minCred string) bus.Message {
	task := bus.Message{
		From: bus.ManagerID, To: "news", Type: bus.TypeCollect,
		Topic: platform + "-7d", Thread: platform + "-7d",
		Payload: &bus.CollectPayload{Platform: platform, Window: "7d"},
	}
	if minCred != "" {
		fmt.Sscanf(minCred, "%f", &task.Payload.MinCredibility)
	}
	return task
}

func TestNews_SampleModeWithoutSources(t *testing.T) {
	c := NewNews(config.NewsConfig{MinCredibility: 0.6})
	items, err := c.Collect(context.Background(), collectTask("Acme", ""))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 sample", len(items))
	}
	if items[0].Title != "Sample news for Acme-7d" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].Credibility == nil || *items[0].Credibility != 0.85 {
		t.Errorf("credibility = %v, want 0.85", items[0].Credibility)
	}
	if !items[0].Signals.Release {
		t.Error("sample item should carry a release signal")
	}
}

func testFeedXML(items string) string {
	return `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>` + items + `</channel></rss>`
}

func feedItem(title, link, pub string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>`,
		title, link, pub)
}

func TestNews_CollectFromFeed(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	pub := now.Add(-2 * time.Hour).Format(time.RFC1123Z)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testFeedXML(
			feedItem("Acme launches new model", "https://openai.example.com/post", pub)+
				feedItem("Unrelated story", "https://blog.example.com/other", pub),
		))
	}))
	defer srv.Close()

	c := &NewsCollector{
		feeds:   []string{srv.URL},
		minCred: 0.5,
		parser:  gofeed.NewParser(),
		client:  srv.Client(),
		now:     func() time.Time { return now },
	}

	items, err := c.Collect(context.Background(), collectTask("Acme", ""))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 (platform filter)", len(items))
	}
	if items[0].Title != "Acme launches new model" {
		t.Errorf("title = %q", items[0].Title)
	}
	if !items[0].Signals.Release {
		t.Error("launch title should flag a release signal")
	}
	// openai.example.com matches an official source, credibility 0.9.
	if items[0].Credibility == nil || *items[0].Credibility != 0.9 {
		t.Errorf("credibility = %v, want 0.9", items[0].Credibility)
	}
}

func TestNews_MinCredibilityFilters(t *testing.T) {
	now := time.Now()
	pub := now.Add(-time.Hour).Format(time.RFC1123Z)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testFeedXML(
			feedItem("Acme story", "https://randomblog.example.com/a", pub),
		))
	}))
	defer srv.Close()

	c := &NewsCollector{
		feeds:   []string{srv.URL},
		minCred: 0.7, // unknown domains score 0.6
		parser:  gofeed.NewParser(),
		client:  srv.Client(),
		now:     func() time.Time { return now },
	}

	items, err := c.Collect(context.Background(), collectTask("Acme", ""))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0 (below credibility floor)", len(items))
	}
}

func TestNews_UnreachableFeedIsSkipped(t *testing.T) {
	c := &NewsCollector{
		feeds:   []string{"http://127.0.0.1:1/feed.xml"},
		minCred: 0.5,
		parser:  gofeed.NewParser(),
		client:  &http.Client{Timeout: time.Second},
		now:     time.Now,
	}
	items, err := c.Collect(context.Background(), collectTask("Acme", ""))
	if err != nil {
		t.Fatalf("collect should not fail on a dead feed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestNews_HackerNews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[1,2]")
	})
	mux.HandleFunc("/item/1.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"title":"Acme announces release","url":"https://acme.example.com/x","time":%d,"score":120}`,
			time.Now().Unix())
	})
	mux.HandleFunc("/item/2.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"Ask HN: no url","time":0,"score":5}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &NewsCollector{
		hackerNews: true,
		minCred:    0.5,
		parser:     gofeed.NewParser(),
		client:     srv.Client(),
		hnBase:     srv.URL,
		now:        time.Now,
	}

	items, err := c.Collect(context.Background(), collectTask("Acme", ""))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 (url-less story skipped)", len(items))
	}
	if !items[0].Signals.Release {
		t.Error("announce title should flag a release signal")
	}
}

func TestDedupe(t *testing.T) {
	items := dedupe([]newsItem{
		{title: "a", url: "https://www.example.com/x"},
		{title: "b", url: "http://example.com/x"},
		{title: "c", url: "https://example.com/y"},
	})
	if len(items) != 2 {
		t.Errorf("deduped = %d items, want 2", len(items))
	}
}

func TestCapPerDomain(t *testing.T) {
	var in []newsItem
	for i := 0; i < 5; i++ {
		in = append(in, newsItem{source: "same.com", url: fmt.Sprintf("u%d", i)})
	}
	out := capPerDomain(in, 3)
	if len(out) != 3 {
		t.Errorf("capped = %d items, want 3", len(out))
	}
}

func TestTrustMultiplier(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"openai.com", 1.3},
		{"deepmind.google", 1.3},
		{"techcrunch.com", 1.1},
		{"randomblog.net", 1.0},
	}
	for _, tt := range tests {
		if got := trustMultiplier(tt.source); got != tt.want {
			t.Errorf("trustMultiplier(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}
