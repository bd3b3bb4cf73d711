package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/zulandar/pulse/internal/bus"
)

type fakeSearch struct {
	repoQuery  string
	issueQuery string
	repo       *github.Repository
	total      int
	err        error
}

func (f *fakeSearch) Repositories(_ context.Context, query string, _ *github.SearchOptions) (*github.RepositoriesSearchResult, *github.Response, error) {
	f.repoQuery = query
	if f.err != nil {
		return nil, nil, f.err
	}
	var repos []*github.Repository
	if f.repo != nil {
		repos = append(repos, f.repo)
	}
	return &github.RepositoriesSearchResult{Repositories: repos}, nil, nil
}

func (f *fakeSearch) Issues(_ context.Context, query string, _ *github.SearchOptions) (*github.IssuesSearchResult, *github.Response, error) {
	f.issueQuery = query
	return &github.IssuesSearchResult{Total: &f.total}, nil, nil
}

type fakeRepos struct {
	releases []*github.RepositoryRelease
	err      error
}

func (f *fakeRepos) ListReleases(_ context.Context, _, _ string, _ *github.ListOptions) ([]*github.RepositoryRelease, *github.Response, error) {
	return f.releases, nil, f.err
}

func ghRepo(owner, name string, stars int) *github.Repository {
	full := owner + "/" + name
	return &github.Repository{
		Owner:           &github.User{Login: &owner},
		Name:            &name,
		FullName:        &full,
		StargazersCount: &stars,
	}
}

func ghRelease(published time.Time) *github.RepositoryRelease {
	return &github.RepositoryRelease{PublishedAt: &github.Timestamp{Time: published}}
}

func ghTask(platform string) bus.Message {
	return bus.Message{
		From: bus.ManagerID, To: "github", Type: bus.TypeCollect,
		Topic: platform + "-7d", Thread: platform + "-7d",
		Payload: &bus.CollectPayload{Platform: platform, Window: "7d"},
	}
}

func TestGitHub_SampleModeWithoutToken(t *testing.T) {
	c := NewGitHub("", nil)
	items, err := c.Collect(context.Background(), ghTask("Acme"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	it := items[0]
	if it.Repo != "acme/sample-repo" {
		t.Errorf("repo = %q", it.Repo)
	}
	if it.StarsDelta != 42 || it.PRsMerged != 7 || it.Releases != 1 {
		t.Errorf("sample signals = %+v", it)
	}
}

func TestGitHub_OrgMappingOverride(t *testing.T) {
	c := NewGitHub("", map[string]string{"Acme": "acme-ai"})
	items, err := c.Collect(context.Background(), ghTask("Acme"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if items[0].Repo != "acme-ai/sample-repo" {
		t.Errorf("repo = %q, want acme-ai/sample-repo", items[0].Repo)
	}
}

func TestGitHub_CollectWithAPI(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	search := &fakeSearch{repo: ghRepo("acme", "flagship", 1234), total: 9}
	repos := &fakeRepos{releases: []*github.RepositoryRelease{
		ghRelease(now.Add(-24 * time.Hour)),      // inside the window
		ghRelease(now.Add(-30 * 24 * time.Hour)), // outside
	}}
	c := &GitHubCollector{
		search: search,
		repos:  repos,
		orgs:   map[string]string{"Acme": "acme"},
		now:    func() time.Time { return now },
	}

	items, err := c.Collect(context.Background(), ghTask("Acme"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	it := items[0]
	if it.Repo != "acme/flagship" {
		t.Errorf("repo = %q", it.Repo)
	}
	if it.StarsDelta != 1234 {
		t.Errorf("stars = %d, want 1234", it.StarsDelta)
	}
	if it.PRsMerged != 9 {
		t.Errorf("prs merged = %d, want 9", it.PRsMerged)
	}
	if it.Releases != 1 {
		t.Errorf("releases = %d, want 1 (window filter)", it.Releases)
	}

	if search.repoQuery != "org:acme" {
		t.Errorf("repo query = %q", search.repoQuery)
	}
	wantIssues := "org:acme is:pr is:merged merged:>=2026-08-23"
	if search.issueQuery != wantIssues {
		t.Errorf("issue query = %q, want %q", search.issueQuery, wantIssues)
	}
}

func TestGitHub_NoRepositories(t *testing.T) {
	c := &GitHubCollector{
		search: &fakeSearch{},
		repos:  &fakeRepos{},
		now:    time.Now,
	}
	_, err := c.Collect(context.Background(), ghTask("Ghost"))
	if err == nil {
		t.Fatal("expected error when the org has no repositories")
	}
}

func TestGitHub_SearchError(t *testing.T) {
	c := &GitHubCollector{
		search: &fakeSearch{err: errors.New("rate limited")},
		repos:  &fakeRepos{},
		now:    time.Now,
	}
	_, err := c.Collect(context.Background(), ghTask("Acme"))
	if err == nil {
		t.Fatal("expected error from search failure")
	}
}
