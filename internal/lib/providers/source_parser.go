package providers

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which endpoint a provider reads the latest version from.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeReleases
	ModeTags
	ModeBranchCommits
	ModeBitbucketRefs
	ModeBitbucketCommits
)

func (m Mode) String() string {
	switch m {
	case ModeReleases:
		return "releases"
	case ModeTags:
		return "tags"
	case ModeBranchCommits, ModeBitbucketCommits:
		return "commits"
	case ModeBitbucketRefs:
		return "refs"
	default:
		return "unknown"
	}
}

// Locator is a parsed update source.
type Locator struct {
	Host   string `json:"host"`
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Mode   Mode   `json:"mode"`
	Branch string `json:"branch,omitempty"`
}

var (
	ErrMissingOwner        = errors.New("could not determine repository owner")
	ErrMissingRepo         = errors.New("could not determine repository name")
	ErrInvalidMode         = errors.New("invalid update mode")
	ErrUnsupportedHost     = errors.New("unsupported update host")
	ErrMalformedDescriptor = errors.New("malformed update descriptor")
)

// ParseError reports why a descriptor could not be turned into a Locator.
type ParseError struct {
	Descriptor string
	Err        error
	Detail     string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %q: %s", e.Err, e.Descriptor, e.Detail)
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Descriptor)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Grammar describes the descriptor URL shape of one provider:
// {Prefix}{owner}/{repo}/{mode}[/{branch}].
type Grammar struct {
	Host   string
	Prefix string
	Modes  map[string]Mode
}

var githubGrammar = Grammar{
	Host:   GitHubHost,
	Prefix: "https://api.github.com/repos/",
	Modes: map[string]Mode{
		"releases": ModeReleases,
		"tags":     ModeTags,
		"commits":  ModeBranchCommits,
	},
}

var bitbucketGrammar = Grammar{
	Host:   BitbucketHost,
	Prefix: "https://api.bitbucket.org/2.0/repositories/",
	Modes: map[string]Mode{
		"commits": ModeBitbucketCommits,
		"refs":    ModeBitbucketRefs,
	},
}

// Parse matches a descriptor against this grammar. The descriptor must
// already carry the grammar's prefix.
func (g Grammar) Parse(descriptor string) (Locator, error) {
	normalized := strings.ToLower(strings.TrimSpace(descriptor))
	if !strings.HasPrefix(normalized, g.Prefix) {
		return Locator{}, &ParseError{Descriptor: descriptor, Err: ErrUnsupportedHost}
	}

	rest := strings.TrimSuffix(strings.TrimPrefix(normalized, g.Prefix), "/")
	parts := strings.Split(rest, "/")
	if len(parts) > 4 {
		return Locator{}, &ParseError{Descriptor: descriptor, Err: ErrMalformedDescriptor, Detail: "too many path segments"}
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}

	loc := Locator{
		Host:   g.Host,
		Owner:  strings.TrimSpace(parts[0]),
		Repo:   strings.TrimSpace(parts[1]),
		Branch: strings.TrimSpace(parts[3]),
	}
	if loc.Owner == "" {
		return Locator{}, &ParseError{Descriptor: descriptor, Err: ErrMissingOwner}
	}
	if loc.Repo == "" {
		return Locator{}, &ParseError{Descriptor: descriptor, Err: ErrMissingRepo}
	}
	mode, ok := g.Modes[strings.TrimSpace(parts[2])]
	if !ok {
		return Locator{}, &ParseError{Descriptor: descriptor, Err: ErrInvalidMode, Detail: fmt.Sprintf("type %q was invalid", parts[2])}
	}
	loc.Mode = mode
	return loc, nil
}

// ParseSource parses a descriptor with the grammar of whichever
// registered provider its prefix belongs to.
func ParseSource(descriptor string) (Locator, error) {
	normalized := strings.ToLower(strings.TrimSpace(descriptor))
	for _, g := range Grammars() {
		if strings.HasPrefix(normalized, g.Prefix) {
			return g.Parse(descriptor)
		}
	}
	return Locator{}, &ParseError{Descriptor: descriptor, Err: ErrUnsupportedHost}
}
