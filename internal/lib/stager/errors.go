package stager

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSlug     = errors.New("invalid slug or version")
	ErrEmptyDownload   = errors.New("downloaded package is empty")
	ErrNoRootFolder    = errors.New("package has no root folder")
	ErrManifestMissing = errors.New("manifest file not found")
	ErrManifestHeader  = errors.New("manifest has neither a Version nor a Plugin Name header")
	ErrEmptyArchive    = errors.New("repackaged archive contains no files")
)

// ReplacementError reports a failed in-place copy. The active directory
// has been restored from its backup unless RestoreErr is set.
type ReplacementError struct {
	Cause      error
	RestoreErr error
}

func (e *ReplacementError) Error() string {
	if e.RestoreErr != nil {
		return fmt.Sprintf("could not copy files. %s (restore failed: %s)", e.Cause, e.RestoreErr)
	}
	return fmt.Sprintf("could not copy files. %s", e.Cause)
}

func (e *ReplacementError) Unwrap() error {
	return e.Cause
}
