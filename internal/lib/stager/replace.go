package stager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/files"
)

// Replace overwrites activeDir with the contents of a staged package.
// activeDir is first copied to a sibling ".bak" directory; if copying the
// new files fails the backup is put back and a *ReplacementError is
// returned. Only directories and files with an extension are copied. The
// backup and the scratch folder are removed in every case.
func (s *Stager) Replace(ctx context.Context, pkg CachedPackage, activeDir string) error {
	if !validName(pkg.Slug) || !validName(pkg.Version) || !validName(pkg.mainFile()) {
		return fmt.Errorf("%w: %q %q", ErrInvalidSlug, pkg.Slug, pkg.Version)
	}
	if info, statErr := s.fs.Stat(pkg.Path); statErr != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyDownload, pkg.Path)
	}

	unlock := s.locks.lock(pkg.Slug)
	defer unlock()

	activeDir = filepath.Clean(activeDir)
	scratch := filepath.Join(s.cacheDir, pkg.Slug)
	backup := activeDir + ".bak"

	if err := s.fs.RemoveAll(scratch); err != nil {
		return err
	}
	defer func() {
		if rmErr := s.fs.RemoveAll(scratch); rmErr != nil {
			Logger.Warn("Could not remove scratch folder", "path", scratch, "err", rmErr)
		}
	}()

	if err := files.Unzip(s.fs, pkg.Path, scratch); err != nil {
		return err
	}
	root, err := files.FirstSubdir(s.fs, scratch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoRootFolder, err)
	}
	if err := RewriteManifest(s.fs, filepath.Join(root, pkg.mainFile()), pkg.Version); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.RemoveAll(backup); err != nil {
		return err
	}
	defer func() {
		if rmErr := s.fs.RemoveAll(backup); rmErr != nil {
			Logger.Warn("Could not remove backup folder", "path", backup, "err", rmErr)
		}
	}()
	if err := s.fs.MkdirAll(activeDir, 0755); err != nil {
		return err
	}
	if err := files.CopyRecursive(s.fs, activeDir, backup, nil); err != nil {
		return fmt.Errorf("could not back up %s: %w", activeDir, err)
	}

	if copyErr := files.CopyRecursive(s.fs, root, activeDir, files.HasExtension); copyErr != nil {
		Logger.Error("Copy failed, restoring backup", "slug", pkg.Slug, "dir", activeDir, "err", copyErr)
		return &ReplacementError{Cause: copyErr, RestoreErr: s.restore(backup, activeDir)}
	}

	Logger.Info("Replaced active directory", "slug", pkg.Slug, "version", pkg.Version, "dir", activeDir)
	return nil
}

// restore puts the backup contents back in place of activeDir.
func (s *Stager) restore(backup, activeDir string) error {
	if err := s.fs.RemoveAll(activeDir); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(activeDir, 0755); err != nil {
		return err
	}
	return files.CopyRecursive(s.fs, backup, activeDir, nil)
}
