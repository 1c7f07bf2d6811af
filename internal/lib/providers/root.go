package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/semver"
)

const (
	GitHubHost    = "api.github.com"
	BitbucketHost = "api.bitbucket.org"
)

var Logger = log.NewLogger()

// Credentials authenticate API requests to one host. Empty fields mean
// anonymous access.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Factory builds a Provider for a host.
type Factory func(creds Credentials) Provider

type registration struct {
	grammar Grammar
	factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = defaultRegistry()
)

func defaultRegistry() map[string]registration {
	return map[string]registration{
		GitHubHost:    {grammar: githubGrammar, factory: NewGitHubProvider},
		BitbucketHost: {grammar: bitbucketGrammar, factory: NewBitbucketProvider},
	}
}

// Register adds a provider for a new host, or replaces an existing one.
func Register(g Grammar, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[g.Host] = registration{grammar: g, factory: f}
}

// SetProviderFactory swaps the factory of an already registered host,
// keeping its grammar. It is meant for tests.
func SetProviderFactory(host string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if r, ok := registry[host]; ok {
		r.factory = f
		registry[host] = r
	}
}

// ResetProviderFactories restores the built-in providers.
func ResetProviderFactories() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = defaultRegistry()
}

// Hosts returns the registered hosts, sorted.
func Hosts() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedHosts()
}

// Grammars returns the descriptor grammars of all registered hosts.
func Grammars() []Grammar {
	registryMu.RLock()
	defer registryMu.RUnlock()
	grammars := make([]Grammar, 0, len(registry))
	for _, host := range sortedHosts() {
		grammars = append(grammars, registry[host].grammar)
	}
	return grammars
}

func sortedHosts() []string {
	hosts := make([]string, 0, len(registry))
	for host := range registry {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// New returns the provider registered for host.
func New(host string, creds Credentials) (Provider, bool) {
	registryMu.RLock()
	r, ok := registry[host]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.factory(creds), true
}

// ForDescriptor parses a descriptor and returns the provider that serves it.
func ForDescriptor(descriptor string, creds map[string]Credentials) (Provider, Locator, error) {
	loc, err := ParseSource(descriptor)
	if err != nil {
		return nil, Locator{}, err
	}
	p, ok := New(loc.Host, creds[loc.Host])
	if !ok {
		return nil, Locator{}, &ParseError{Descriptor: descriptor, Err: ErrUnsupportedHost}
	}
	return p, loc, nil
}

// CheckIfUpdateIsAvailable checks if an update is available for a given package
// and returns a boolean indicating if an update is available and the latest version number
func CheckIfUpdateIsAvailable(localVersion string, remoteVersion string) (bool, string) {
	if semver.IsGreater(localVersion, remoteVersion) {
		return true, remoteVersion
	}
	return false, ""
}

func fetchJSON(ctx context.Context, f Fetcher, url string, v any, opts ...http_client.RequestOption) error {
	Logger.Debug("Fetching provider API", "url", url)
	resp, err := f.Get(ctx, url, opts...)
	if err != nil {
		return err
	}
	if !http_client.IsSuccess(resp.StatusCode) {
		return &http_client.StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
