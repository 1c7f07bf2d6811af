package providers

import (
	"context"
	"fmt"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/semver"
)

// Injectable API base for tests
var githubAPIBase = "https://api.github.com/repos"

type GitHubProvider struct {
	token string
}

type githubRelease struct {
	Name       string `json:"name"`
	ZipballURL string `json:"zipball_url"`
	Body       string `json:"body"`
}

type githubTag struct {
	Name       string `json:"name"`
	ZipballURL string `json:"zipball_url"`
}

type githubCommit struct {
	Commit struct {
		Committer struct {
			Date string `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

func NewGitHubProvider(creds Credentials) Provider {
	return &GitHubProvider{token: creds.Token}
}

func (p *GitHubProvider) Host() string {
	return GitHubHost
}

func (p *GitHubProvider) repoURL(loc Locator) string {
	return fmt.Sprintf("%s/%s/%s", githubAPIBase, loc.Owner, loc.Repo)
}

func (p *GitHubProvider) get(ctx context.Context, f Fetcher, url string, v any) error {
	return fetchJSON(ctx, f, url, v,
		http_client.Header("Accept", "application/vnd.github+json"),
		http_client.BearerToken(p.token),
	)
}

// DownloadOptions authorizes zipball downloads from the API host, which
// answer 404 for private repositories without the token.
func (p *GitHubProvider) DownloadOptions(downloadURL string) []http_client.RequestOption {
	if p.token == "" || !onHost(downloadURL, githubAPIBase) {
		return nil
	}
	return []http_client.RequestOption{http_client.BearerToken(p.token)}
}

func (p *GitHubProvider) latestRelease(ctx context.Context, f Fetcher, loc Locator) (*githubRelease, error) {
	var release githubRelease
	if err := p.get(ctx, f, p.repoURL(loc)+"/releases/latest", &release); err != nil {
		return nil, err
	}
	return &release, nil
}

func (p *GitHubProvider) latestTag(ctx context.Context, f Fetcher, loc Locator) (*githubTag, error) {
	var tags []githubTag
	if err := p.get(ctx, f, p.repoURL(loc)+"/tags", &tags); err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return &githubTag{}, nil
	}
	return &tags[0], nil
}

func (p *GitHubProvider) LatestVersion(ctx context.Context, f Fetcher, loc Locator) Lookup {
	switch loc.Mode {
	case ModeReleases:
		release, err := p.latestRelease(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		return Found(semver.TrimVersion(release.Name))
	case ModeTags:
		tag, err := p.latestTag(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		return Found(semver.TrimVersion(tag.Name))
	case ModeBranchCommits:
		if loc.Branch == "" {
			return Missing()
		}
		var commit githubCommit
		if err := p.get(ctx, f, p.repoURL(loc)+"/commits/"+loc.Branch, &commit); err != nil {
			return Failed(err)
		}
		if commit.Commit.Committer.Date == "" {
			return Missing()
		}
		return Found(semver.DateToVersion(commit.Commit.Committer.Date))
	default:
		return Failed(fmt.Errorf("%w: %s is not served by %s", ErrInvalidMode, loc.Mode, GitHubHost))
	}
}

func (p *GitHubProvider) DownloadLocation(ctx context.Context, f Fetcher, loc Locator) Lookup {
	switch loc.Mode {
	case ModeReleases:
		release, err := p.latestRelease(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		return Found(release.ZipballURL)
	case ModeTags:
		tag, err := p.latestTag(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		return Found(tag.ZipballURL)
	case ModeBranchCommits:
		if loc.Branch == "" {
			return Missing()
		}
		return Found(p.repoURL(loc) + "/zipball/" + loc.Branch)
	default:
		return Failed(fmt.Errorf("%w: %s is not served by %s", ErrInvalidMode, loc.Mode, GitHubHost))
	}
}

// ReleaseNotes returns the markdown body of the latest release. Only
// releases mode has notes.
func (p *GitHubProvider) ReleaseNotes(ctx context.Context, f Fetcher, loc Locator) Lookup {
	if loc.Mode != ModeReleases {
		return Missing()
	}
	release, err := p.latestRelease(ctx, f, loc)
	if err != nil {
		return Failed(err)
	}
	return Found(release.Body)
}
