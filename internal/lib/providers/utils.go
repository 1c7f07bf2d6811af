package providers

import (
	"net/url"
	"sort"
	"strings"
)

// ProviderHealthStatus describes one registered provider and whether
// requests to it will be authenticated.
type ProviderHealthStatus struct {
	Provider      string   `json:"provider"`
	Modes         []string `json:"modes"`
	Authenticated bool     `json:"authenticated"`
	Description   string   `json:"description"`
}

var providerDescriptions = map[string]string{
	GitHubHost:    "GitHub REST API (releases, tags, branch commits)",
	BitbucketHost: "Bitbucket Cloud 2.0 API (tag refs, branch commits)",
}

// CheckAllProvidersHealth reports every registered provider together with
// whether credentials were configured for it.
func CheckAllProvidersHealth(creds map[string]Credentials) []ProviderHealthStatus {
	var statuses []ProviderHealthStatus
	for _, g := range Grammars() {
		modes := make([]string, 0, len(g.Modes))
		for name := range g.Modes {
			modes = append(modes, name)
		}
		sort.Strings(modes)

		c := creds[g.Host]
		description := providerDescriptions[g.Host]
		if description == "" {
			description = "Custom provider"
		}
		statuses = append(statuses, ProviderHealthStatus{
			Provider:      g.Host,
			Modes:         modes,
			Authenticated: c.Token != "" || c.Username != "",
			Description:   description,
		})
	}
	return statuses
}

// onHost reports whether raw points at the host of one of bases.
func onHost(raw string, bases ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, base := range bases {
		b, err := url.Parse(base)
		if err == nil && strings.EqualFold(u.Host, b.Host) {
			return true
		}
	}
	return false
}
