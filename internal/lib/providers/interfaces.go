package providers

import (
	"context"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
)

// Fetcher performs cached GET requests for one resolution pass.
// *http_client.Cache implements it.
type Fetcher interface {
	Get(ctx context.Context, url string, opts ...http_client.RequestOption) (*http_client.Response, error)
}

// Provider resolves the latest version and archive location of a
// repository on one hosting service.
type Provider interface {
	Host() string
	LatestVersion(ctx context.Context, f Fetcher, loc Locator) Lookup
	DownloadLocation(ctx context.Context, f Fetcher, loc Locator) Lookup
}

// ReleaseNoter is implemented by providers that can return the notes of
// the release LatestVersion resolved to.
type ReleaseNoter interface {
	ReleaseNotes(ctx context.Context, f Fetcher, loc Locator) Lookup
}

// DownloadAuthorizer is implemented by providers whose package archives
// need the same credentials as their API. DownloadOptions returns nothing
// for URLs outside the provider's own hosts.
type DownloadAuthorizer interface {
	DownloadOptions(downloadURL string) []http_client.RequestOption
}

// MockProvider is a mock implementation for testing
type MockProvider struct {
	HostName             string
	LatestVersionFunc    func(ctx context.Context, f Fetcher, loc Locator) Lookup
	DownloadLocationFunc func(ctx context.Context, f Fetcher, loc Locator) Lookup
	ReleaseNotesFunc     func(ctx context.Context, f Fetcher, loc Locator) Lookup
	DownloadOptionsFunc  func(downloadURL string) []http_client.RequestOption
}

func (m *MockProvider) Host() string {
	return m.HostName
}

func (m *MockProvider) LatestVersion(ctx context.Context, f Fetcher, loc Locator) Lookup {
	if m.LatestVersionFunc != nil {
		return m.LatestVersionFunc(ctx, f, loc)
	}
	return Missing()
}

func (m *MockProvider) DownloadLocation(ctx context.Context, f Fetcher, loc Locator) Lookup {
	if m.DownloadLocationFunc != nil {
		return m.DownloadLocationFunc(ctx, f, loc)
	}
	return Missing()
}

func (m *MockProvider) ReleaseNotes(ctx context.Context, f Fetcher, loc Locator) Lookup {
	if m.ReleaseNotesFunc != nil {
		return m.ReleaseNotesFunc(ctx, f, loc)
	}
	return Missing()
}

func (m *MockProvider) DownloadOptions(downloadURL string) []http_client.RequestOption {
	if m.DownloadOptionsFunc != nil {
		return m.DownloadOptionsFunc(downloadURL)
	}
	return nil
}
