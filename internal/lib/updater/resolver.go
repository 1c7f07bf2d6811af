package updater

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/plugin_parser"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/providers"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/semver"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/stager"
)

var Logger = log.NewLogger()

const verifyUserAgent = "Mozilla/5.0"

var (
	ErrUnknownComponent = plugin_parser.ErrUnknownComponent
	ErrNoUpdateURI      = errors.New("missing or invalid Update URI")
	ErrNoPackage        = errors.New("no package available")
)

// PackageStager materializes and installs packages.
type PackageStager interface {
	Stage(ctx context.Context, url, slug, version string, opts ...stager.StageOption) (*stager.CachedPackage, error)
	Replace(ctx context.Context, pkg stager.CachedPackage, activeDir string) error
}

// Resolver checks one component at a time for a newer version and stages
// it when found.
type Resolver struct {
	client *http_client.Client
	stager PackageStager
	creds  map[string]providers.Credentials
}

type ResolverOption func(*Resolver)

// WithCredentials sets API credentials per provider host.
func WithCredentials(creds map[string]providers.Credentials) ResolverOption {
	return func(r *Resolver) {
		r.creds = creds
	}
}

func NewResolver(client *http_client.Client, st PackageStager, opts ...ResolverOption) *Resolver {
	r := &Resolver{client: client, stager: st}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs one resolution pass for c. Only a missing or unparsable
// Update URI is returned as an error; every later failure is logged and
// reported through the descriptor's Outcome with no package.
func (r *Resolver) Resolve(ctx context.Context, c plugin_parser.Component) (UpdateDescriptor, error) {
	current := c.Version
	if current == "" {
		current = "0"
	}
	d := UpdateDescriptor{ID: c.ID, Slug: c.Slug, CurrentVersion: current, Outcome: OutcomeUpToDate}

	if !validURL(c.UpdateURI) {
		return d, fmt.Errorf("%s: %w", c.ID, ErrNoUpdateURI)
	}
	provider, loc, err := providers.ForDescriptor(c.UpdateURI, r.creds)
	if err != nil {
		return d, fmt.Errorf("%s: %w", c.ID, err)
	}

	// One cache per pass, dropped when Resolve returns.
	cache := http_client.NewCache(r.client)
	logger := Logger.With("id", c.ID, "slug", c.Slug, "host", provider.Host())

	latest := provider.LatestVersion(ctx, cache, loc)
	switch latest.Status {
	case providers.StatusFailed:
		logger.Warn("Could not determine latest version", "err", latest.Err)
		return failed(d, "latest version lookup failed: %v", latest.Err), nil
	case providers.StatusMissing:
		logger.Debug("No version published")
		return d, nil
	}

	d.NewVersion = semver.TrimVersion(latest.Value)
	if ok, _ := providers.CheckIfUpdateIsAvailable(current, d.NewVersion); !ok {
		logger.Debug("Up to date", "version", current, "latest", d.NewVersion)
		return d, nil
	}

	location := provider.DownloadLocation(ctx, cache, loc)
	if location.Status == providers.StatusFailed {
		logger.Warn("Could not determine package location", "err", location.Err)
		return failed(d, "package location lookup failed: %v", location.Err), nil
	}
	if !location.OK() || !validURL(location.Value) {
		logger.Warn("No valid package location", "url", location.Value)
		d.Outcome = OutcomeUnverified
		d.Reason = "no valid package location"
		return d, nil
	}

	var auth []http_client.RequestOption
	if authorizer, ok := provider.(providers.DownloadAuthorizer); ok {
		auth = authorizer.DownloadOptions(location.Value)
	}

	if !r.zipVerify(ctx, location.Value, auth...) {
		logger.Warn("Package is not a zip archive", "url", location.Value)
		d.Outcome = OutcomeUnverified
		d.Reason = "remote package is not a zip archive"
		return d, nil
	}

	pkg, err := r.stager.Stage(ctx, location.Value, c.Slug, d.NewVersion,
		stager.WithMainFile(mainFile(c)),
		stager.WithDownloadOptions(auth...),
	)
	if err != nil {
		logger.Error("Could not stage package", "url", location.Value, "err", err)
		return failed(d, "%v", err), nil
	}

	if noter, ok := provider.(providers.ReleaseNoter); ok {
		if notes := noter.ReleaseNotes(ctx, cache, loc); notes.OK() {
			d.ReleaseNotes = notes.Value
		}
	}

	d.Package = pkg
	d.Outcome = OutcomeAvailable
	logger.Info("Update available", "version", current, "new_version", d.NewVersion, "package", pkg.URL)
	return d, nil
}

// zipVerify sends a HEAD request to url and accepts it when the final response declares
// an application/zip body.
func (r *Resolver) zipVerify(ctx context.Context, url string, opts ...http_client.RequestOption) bool {
	opts = append([]http_client.RequestOption{http_client.Header("User-Agent", verifyUserAgent)}, opts...)
	resp, err := r.client.Head(ctx, url, opts...)
	if err != nil {
		Logger.Debug("Package HEAD request failed", "url", url, "err", err)
		return false
	}
	_ = resp.Body.Close()
	if !http_client.IsSuccess(resp.StatusCode) {
		return false
	}
	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	return strings.HasPrefix(contentType, "application/zip")
}

// mainFile is the base name of the component's main file when it lives in
// a plugin folder, and empty for single-file components.
func mainFile(c plugin_parser.Component) string {
	dir, file := path.Split(filepath.ToSlash(c.ID))
	if dir == "" || file == "" {
		return ""
	}
	return file
}

func failed(d UpdateDescriptor, format string, args ...any) UpdateDescriptor {
	d.Outcome = OutcomeFailed
	d.Reason = fmt.Sprintf(format, args...)
	return d
}

func validURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
