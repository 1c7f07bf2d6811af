package files

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Unzip extracts the archive at src into dest.
func Unzip(fs afero.Fs, src, dest string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	r, err := zip.NewReader(in, info.Size())
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", src, err)
	}

	if err := fs.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	// Closure to address file descriptors issue with all the deferred .Close() methods
	extractAndWriteFile := func(f *zip.File) error {
		path := filepath.Join(dest, f.Name)

		// Check for ZipSlip (Directory traversal)
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path: %s", path)
		}

		if f.FileInfo().IsDir() {
			if err := fs.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", path, err)
			}
			return nil
		}

		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()

		mode := f.Mode().Perm()
		if mode == 0 {
			mode = 0644
		}
		out, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		defer func() { _ = out.Close() }()

		_, err = io.Copy(out, rc)
		return err
	}

	for _, f := range r.File {
		if err := extractAndWriteFile(f); err != nil {
			return err
		}
	}
	return nil
}

// Zip archives the tree at srcDir into dest, storing every entry under
// root instead of the base name of srcDir. It returns the number of
// regular files written. The archive is built in a temporary file next to
// dest and renamed into place once complete, so dest is either absent or
// a finished archive.
func Zip(fs afero.Fs, srcDir, dest, root string) (written int, err error) {
	if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	out, err := afero.TempFile(fs, filepath.Dir(dest), "."+filepath.Base(dest)+"-*.tmp")
	if err != nil {
		return 0, err
	}
	tmpPath := out.Name()
	closed := false
	defer func() {
		if !closed {
			_ = out.Close()
		}
		if err != nil {
			written = 0
			_ = fs.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(out)
	err = afero.Walk(fs, srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := root
		if rel != "." {
			name = root + "/" + filepath.ToSlash(rel)
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		if info.IsDir() {
			header.Name = name + "/"
			header.Method = zip.Store
			_, err = zw.CreateHeader(header)
			return err
		}
		header.Name = name
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		in, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = in.Close() }()
		if _, err := io.Copy(w, in); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return 0, err
	}
	if err = zw.Close(); err != nil {
		return 0, err
	}
	closed = true
	if err = out.Close(); err != nil {
		return 0, err
	}
	if err = fs.Rename(tmpPath, dest); err != nil {
		return 0, err
	}
	return written, nil
}
