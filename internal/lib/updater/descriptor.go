package updater

import "github.com/midweste/wp-git-plugin-repository/internal/lib/stager"

// Outcome summarizes how a resolution ended.
type Outcome string

const (
	// OutcomeAvailable means a newer version was found and staged.
	OutcomeAvailable Outcome = "available"
	// OutcomeUpToDate means no newer version was found.
	OutcomeUpToDate Outcome = "up-to-date"
	// OutcomeUnverified means a newer version exists but its archive was
	// not offered, e.g. because the content type was not a zip.
	OutcomeUnverified Outcome = "unverified"
	// OutcomeFailed means a lookup or staging step failed.
	OutcomeFailed Outcome = "failed"
)

// UpdateDescriptor is the answer to an update check for one component.
// Package is only set when Outcome is OutcomeAvailable.
type UpdateDescriptor struct {
	ID             string                `json:"id" yaml:"id" toml:"id"`
	Slug           string                `json:"slug" yaml:"slug" toml:"slug"`
	CurrentVersion string                `json:"version" yaml:"version" toml:"version"`
	NewVersion     string                `json:"new_version" yaml:"new_version" toml:"new_version"`
	Package        *stager.CachedPackage `json:"package,omitempty" yaml:"package,omitempty" toml:"package,omitempty"`
	ReleaseNotes   string                `json:"release_notes,omitempty" yaml:"release_notes,omitempty" toml:"release_notes,omitempty"`
	Outcome        Outcome               `json:"outcome" yaml:"outcome" toml:"outcome"`
	Reason         string                `json:"reason,omitempty" yaml:"reason,omitempty" toml:"reason,omitempty"`
}

// PackageURL returns the public URL of the staged archive, or "".
func (d UpdateDescriptor) PackageURL() string {
	if d.Package == nil {
		return ""
	}
	return d.Package.URL
}

// HasUpdate reports whether a staged package is on offer.
func (d UpdateDescriptor) HasUpdate() bool {
	return d.Outcome == OutcomeAvailable && d.Package != nil
}
