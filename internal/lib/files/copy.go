package files

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyFilter decides whether a regular file is copied. Directories are
// always walked.
type CopyFilter func(path string, info os.FileInfo) bool

// HasExtension accepts files whose name carries an extension.
func HasExtension(path string, info os.FileInfo) bool {
	return filepath.Ext(info.Name()) != ""
}

// CopyFile copies src to dst with the given permissions, truncating dst.
func CopyFile(fs afero.Fs, src, dst string, mode os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// CopyRecursive copies the tree at src over dst, creating directories as
// needed. A nil filter copies every file.
func CopyRecursive(fs afero.Fs, src, dst string, filter CopyFilter) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return fs.MkdirAll(target, 0755)
		}
		if filter != nil && !filter(path, info) {
			return nil
		}
		mode := info.Mode().Perm()
		if mode == 0 {
			mode = 0644
		}
		return CopyFile(fs, path, target, mode)
	})
}
