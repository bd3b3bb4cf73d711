package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/zulandar/pulse/internal/bus"
)

// githubSearch abstracts the go-github search service methods we use,
// enabling test fakes.
type githubSearch interface {
	Repositories(ctx context.Context, query string, opts *github.SearchOptions) (*github.RepositoriesSearchResult, *github.Response, error)
	Issues(ctx context.Context, query string, opts *github.SearchOptions) (*github.IssuesSearchResult, *github.Response, error)
}

// githubRepos abstracts the go-github repositories service methods we use.
type githubRepos interface {
	ListReleases(ctx context.Context, owner, repo string, opts *github.ListOptions) ([]*github.RepositoryRelease, *github.Response, error)
}

// GitHubCollector gathers repository activity signals per platform. Without
// a token it emits fixed sample values, keeping the pipeline runnable
// offline.
type GitHubCollector struct {
	search githubSearch
	repos  githubRepos
	orgs   map[string]string
	now    func() time.Time
}

// NewGitHub builds a repository collector. An empty token selects sample
// mode. Orgs maps platform names to GitHub organizations; unmapped platforms
// fall back to the lowercased platform name.
func NewGitHub(token string, orgs map[string]string) *GitHubCollector {
	c := &GitHubCollector{orgs: orgs, now: time.Now}
	if token == "" {
		return c
	}
	httpClient := oauth2.NewClient(context.Background(),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(httpClient)
	c.search = client.Search
	c.repos = client.Repositories
	return c
}

// ID returns the agent identity.
func (c *GitHubCollector) ID() string { return "github" }

// Collect returns one item summarizing the platform's most-starred
// repository: star count, merged PRs across the org in the window, and
// releases in the window.
func (c *GitHubCollector) Collect(ctx context.Context, task bus.Message) ([]bus.ResultItem, error) {
	platform := "unknown"
	window := "7d"
	if task.Payload != nil {
		if task.Payload.Platform != "" {
			platform = task.Payload.Platform
		}
		if task.Payload.Window != "" {
			window = task.Payload.Window
		}
	}
	org := c.orgs[platform]
	if org == "" {
		org = strings.ToLower(platform)
	}

	if c.search == nil {
		return c.sampleItems(org), nil
	}

	since := c.now().Add(-parseWindow(window))

	repo, err := c.topRepo(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("agent: top repo for %s: %w", org, err)
	}

	prsMerged, err := c.mergedPRs(ctx, org, since)
	if err != nil {
		return nil, fmt.Errorf("agent: merged PRs for %s: %w", org, err)
	}

	releases, err := c.recentReleases(ctx, repo, since)
	if err != nil {
		return nil, fmt.Errorf("agent: releases for %s: %w", repo.GetFullName(), err)
	}

	return []bus.ResultItem{{
		Repo: repo.GetFullName(),
		// Star delta needs a prior observation; until one exists the
		// current star count stands in, matching the rescale's relative use.
		StarsDelta: repo.GetStargazersCount(),
		PRsMerged:  prsMerged,
		Releases:   releases,
	}}, nil
}

// sampleItems is the offline placeholder with fixed signal values.
func (c *GitHubCollector) sampleItems(org string) []bus.ResultItem {
	return []bus.ResultItem{{
		Repo:       org + "/sample-repo",
		StarsDelta: 42,
		PRsMerged:  7,
		Releases:   1,
	}}
}

func (c *GitHubCollector) topRepo(ctx context.Context, org string) (*github.Repository, error) {
	result, _, err := c.search.Repositories(ctx, "org:"+org, &github.SearchOptions{
		Sort: "stars", Order: "desc",
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(result.Repositories) == 0 {
		return nil, fmt.Errorf("no repositories found")
	}
	return result.Repositories[0], nil
}

func (c *GitHubCollector) mergedPRs(ctx context.Context, org string, since time.Time) (int, error) {
	query := fmt.Sprintf("org:%s is:pr is:merged merged:>=%s", org, since.Format("2006-01-02"))
	result, _, err := c.search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, err
	}
	return result.GetTotal(), nil
}

func (c *GitHubCollector) recentReleases(ctx context.Context, repo *github.Repository, since time.Time) (int, error) {
	releases, _, err := c.repos.ListReleases(ctx, repo.GetOwner().GetLogin(), repo.GetName(),
		&github.ListOptions{PerPage: 20})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range releases {
		if r.GetPublishedAt().After(since) {
			n++
		}
	}
	return n, nil
}
