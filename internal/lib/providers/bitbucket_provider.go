package providers

import (
	"context"
	"fmt"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/semver"
)

// Injectable endpoints for tests
var bitbucketAPIBase = "https://api.bitbucket.org/2.0/repositories"
var bitbucketDownloadBase = "https://bitbucket.org"

const bitbucketShortHash = 12

type BitbucketProvider struct {
	username string
	password string
}

type bitbucketTags struct {
	Values []struct {
		Name   string `json:"name"`
		Target struct {
			Hash string `json:"hash"`
		} `json:"target"`
	} `json:"values"`
}

type bitbucketCommits struct {
	Values []struct {
		Hash string `json:"hash"`
		Date string `json:"date"`
	} `json:"values"`
}

func NewBitbucketProvider(creds Credentials) Provider {
	return &BitbucketProvider{username: creds.Username, password: creds.Password}
}

func (p *BitbucketProvider) Host() string {
	return BitbucketHost
}

func (p *BitbucketProvider) repoURL(loc Locator) string {
	return fmt.Sprintf("%s/%s/%s", bitbucketAPIBase, loc.Owner, loc.Repo)
}

func (p *BitbucketProvider) archiveURL(loc Locator, hash string) string {
	return fmt.Sprintf("%s/%s/%s/get/%s.zip", bitbucketDownloadBase, loc.Owner, loc.Repo, hash)
}

func (p *BitbucketProvider) get(ctx context.Context, f Fetcher, url string, v any) error {
	return fetchJSON(ctx, f, url, v, http_client.BasicAuth(p.username, p.password))
}

func (p *BitbucketProvider) DownloadOptions(downloadURL string) []http_client.RequestOption {
	if p.username == "" || !onHost(downloadURL, bitbucketDownloadBase, bitbucketAPIBase) {
		return nil
	}
	return []http_client.RequestOption{http_client.BasicAuth(p.username, p.password)}
}

func (p *BitbucketProvider) tags(ctx context.Context, f Fetcher, loc Locator) (*bitbucketTags, error) {
	var tags bitbucketTags
	if err := p.get(ctx, f, p.repoURL(loc)+"/refs/tags", &tags); err != nil {
		return nil, err
	}
	return &tags, nil
}

func (p *BitbucketProvider) commits(ctx context.Context, f Fetcher, loc Locator) (*bitbucketCommits, error) {
	var commits bitbucketCommits
	if err := p.get(ctx, f, p.repoURL(loc)+"/commits/"+loc.Branch, &commits); err != nil {
		return nil, err
	}
	return &commits, nil
}

func (p *BitbucketProvider) LatestVersion(ctx context.Context, f Fetcher, loc Locator) Lookup {
	switch loc.Mode {
	case ModeBitbucketRefs:
		tags, err := p.tags(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		if len(tags.Values) == 0 {
			return Missing()
		}
		return Found(semver.TrimVersion(tags.Values[0].Name))
	case ModeBitbucketCommits:
		if loc.Branch == "" {
			return Missing()
		}
		commits, err := p.commits(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		if len(commits.Values) == 0 || commits.Values[0].Date == "" {
			return Missing()
		}
		return Found(semver.DateToVersion(commits.Values[0].Date))
	default:
		return Failed(fmt.Errorf("%w: %s is not served by %s", ErrInvalidMode, loc.Mode, BitbucketHost))
	}
}

func (p *BitbucketProvider) DownloadLocation(ctx context.Context, f Fetcher, loc Locator) Lookup {
	switch loc.Mode {
	case ModeBitbucketRefs:
		tags, err := p.tags(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		if len(tags.Values) == 0 || tags.Values[0].Target.Hash == "" {
			return Missing()
		}
		return Found(p.archiveURL(loc, tags.Values[0].Target.Hash))
	case ModeBitbucketCommits:
		if loc.Branch == "" {
			return Missing()
		}
		commits, err := p.commits(ctx, f, loc)
		if err != nil {
			return Failed(err)
		}
		if len(commits.Values) == 0 || commits.Values[0].Hash == "" {
			return Missing()
		}
		hash := commits.Values[0].Hash
		if len(hash) > bitbucketShortHash {
			hash = hash[:bitbucketShortHash]
		}
		return Found(p.archiveURL(loc, hash))
	default:
		return Failed(fmt.Errorf("%w: %s is not served by %s", ErrInvalidMode, loc.Mode, BitbucketHost))
	}
}
