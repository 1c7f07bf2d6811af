package updater

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/plugin_parser"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/providers"
)

// Service exposes the entry points a host calls: a per-component update
// check and an in-place update.
type Service struct {
	source   plugin_parser.Source
	resolver *Resolver
	stager   PackageStager
}

func NewService(source plugin_parser.Source, resolver *Resolver, st PackageStager) *Service {
	return &Service{source: source, resolver: resolver, stager: st}
}

func (s *Service) Components() ([]plugin_parser.Component, error) {
	return s.source.List()
}

func (s *Service) Component(id string) (plugin_parser.Component, error) {
	return s.source.Get(id)
}

// Handles reports whether c names an Update URI served by a registered
// provider.
func Handles(c plugin_parser.Component) bool {
	u, err := url.Parse(strings.ToLower(strings.TrimSpace(c.UpdateURI)))
	if err != nil || u.Host == "" {
		return false
	}
	for _, host := range providers.Hosts() {
		if host == u.Host {
			return true
		}
	}
	return false
}

// CheckForUpdate returns a fresh descriptor for c, or current unchanged
// when c is not handled by any provider or the check failed.
func (s *Service) CheckForUpdate(ctx context.Context, current *UpdateDescriptor, c plugin_parser.Component, id string) *UpdateDescriptor {
	if !Handles(c) {
		return current
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.Slug == "" {
		c.Slug = plugin_parser.SlugFromID(id)
	}

	d, err := s.resolver.Resolve(ctx, c)
	if err != nil {
		Logger.Warn("Update check failed", "id", id, "err", err)
		return current
	}
	if d.Outcome == OutcomeFailed {
		return current
	}
	return &d
}

// Check resolves the components with the given ids, in order.
func (s *Service) Check(ctx context.Context, ids []string) ([]UpdateDescriptor, error) {
	var out []UpdateDescriptor
	for _, id := range ids {
		c, err := s.source.Get(id)
		if err != nil {
			return out, err
		}
		d, err := s.resolver.Resolve(ctx, c)
		if err != nil {
			d.Outcome = OutcomeFailed
			d.Reason = err.Error()
		}
		out = append(out, d)
	}
	return out, nil
}

// CheckAll resolves every component whose Update URI is handled by a
// registered provider. Components are checked one after another.
func (s *Service) CheckAll(ctx context.Context) ([]UpdateDescriptor, error) {
	components, err := s.source.List()
	if err != nil {
		return nil, err
	}
	var out []UpdateDescriptor
	for _, c := range components {
		if !Handles(c) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		d, err := s.resolver.Resolve(ctx, c)
		if err != nil {
			Logger.Warn("Update check failed", "id", c.ID, "err", err)
			d.Outcome = OutcomeFailed
			d.Reason = err.Error()
		}
		out = append(out, d)
	}
	return out, nil
}

// ActiveDir is the directory an in-place update of c overwrites: the
// must-use plugins directory, the plugins directory for single-file
// plugins, or the plugin's own folder.
func (s *Service) ActiveDir(c plugin_parser.Component) string {
	if c.Type == plugin_parser.TypeMuPlugin {
		return s.source.MuPluginsDir()
	}
	if !strings.Contains(filepath.ToSlash(c.ID), "/") {
		return s.source.PluginsDir()
	}
	return filepath.Join(s.source.PluginsDir(), c.Slug)
}

// ApplyInPlace resolves the component and overwrites its active directory
// with the staged package, rolling back on a copy failure.
func (s *Service) ApplyInPlace(ctx context.Context, id string) (UpdateDescriptor, error) {
	c, err := s.source.Get(id)
	if err != nil {
		return UpdateDescriptor{ID: id}, fmt.Errorf("could not update %s: %w", id, err)
	}

	d, err := s.resolver.Resolve(ctx, c)
	if err != nil {
		return d, fmt.Errorf("could not update %s: %w", id, err)
	}
	if !d.HasUpdate() {
		reason := d.Reason
		if reason == "" {
			reason = string(d.Outcome)
		}
		return d, fmt.Errorf("could not update %s: %w (%s)", id, ErrNoPackage, reason)
	}

	if err := s.stager.Replace(ctx, *d.Package, s.ActiveDir(c)); err != nil {
		return d, fmt.Errorf("could not update %s: %w", id, err)
	}
	return d, nil
}
