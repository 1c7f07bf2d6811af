package files

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeZip builds an archive from name->content pairs; names ending in
// "/" become directory entries.
func writeZip(t *testing.T, fs afero.Fs, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0644))
}

func readZip(t *testing.T, fs afero.Fs, path string) map[string]string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestUnzip(t *testing.T) {
	t.Run("extracts files and directories", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeZip(t, fs, "/tmp/pkg.zip", map[string]string{
			"owner-repo-1a2b3c/":                "",
			"owner-repo-1a2b3c/hello.php":       "<?php",
			"owner-repo-1a2b3c/inc/":            "",
			"owner-repo-1a2b3c/inc/helpers.php": "<?php // helpers",
		})

		require.NoError(t, Unzip(fs, "/tmp/pkg.zip", "/cache/hello"))

		data, err := afero.ReadFile(fs, "/cache/hello/owner-repo-1a2b3c/inc/helpers.php")
		require.NoError(t, err)
		assert.Equal(t, "<?php // helpers", string(data))
		isDir, _ := afero.IsDir(fs, "/cache/hello/owner-repo-1a2b3c/inc")
		assert.True(t, isDir)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeZip(t, fs, "/tmp/evil.zip", map[string]string{"../../etc/passwd": "root"})

		err := Unzip(fs, "/tmp/evil.zip", "/cache/evil")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "illegal file path")
	})

	t.Run("not an archive", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/tmp/page.zip", []byte("<html>"), 0644))
		assert.Error(t, Unzip(fs, "/tmp/page.zip", "/cache/x"))
	})

	t.Run("missing source", func(t *testing.T) {
		assert.Error(t, Unzip(afero.NewMemMapFs(), "/nope.zip", "/cache/x"))
	})
}

func TestZip(t *testing.T) {
	t.Run("renames the root folder", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/cache/hello/owner-hello-9f8e7d/hello.php", []byte("<?php"), 0644))
		require.NoError(t, afero.WriteFile(fs, "/cache/hello/owner-hello-9f8e7d/inc/a.php", []byte("a"), 0644))

		n, err := Zip(fs, "/cache/hello/owner-hello-9f8e7d", "/cache/hello-1.1.0.zip", "hello")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		entries := readZip(t, fs, "/cache/hello-1.1.0.zip")
		assert.Equal(t, map[string]string{
			"hello/":          "",
			"hello/hello.php": "<?php",
			"hello/inc/":      "",
			"hello/inc/a.php": "a",
		}, entries)
	})

	t.Run("empty tree writes no files", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/cache/empty/root", 0755))
		n, err := Zip(fs, "/cache/empty/root", "/cache/empty-1.0.0.zip", "empty")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("missing source removes the archive", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		_, err := Zip(fs, "/cache/none", "/cache/none-1.0.0.zip", "none")
		assert.Error(t, err)
		assert.False(t, FileExists(fs, "/cache/none-1.0.0.zip"))
	})

	t.Run("failed write leaves neither archive nor temp file", func(t *testing.T) {
		mem := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(mem, "/cache/hello/root/hello.php", []byte("<?php"), 0644))
		require.NoError(t, afero.WriteFile(mem, "/cache/hello/root/z.php", []byte("z"), 0644))
		fs := &openFailFs{Fs: mem, path: "/cache/hello/root/z.php"}

		n, err := Zip(fs, "/cache/hello/root", "/cache/hello-1.1.0.zip", "hello")
		require.Error(t, err)
		assert.Equal(t, 0, n)
		assert.False(t, FileExists(mem, "/cache/hello-1.1.0.zip"))
		assert.Empty(t, tempArchives(t, mem, "/cache"))
	})

	t.Run("failed rebuild keeps the previous archive", func(t *testing.T) {
		mem := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(mem, "/cache/hello-1.1.0.zip", []byte("complete"), 0644))
		require.NoError(t, afero.WriteFile(mem, "/cache/hello/root/hello.php", []byte("<?php"), 0644))
		fs := &openFailFs{Fs: mem, path: "/cache/hello/root/hello.php"}

		_, err := Zip(fs, "/cache/hello/root", "/cache/hello-1.1.0.zip", "hello")
		require.Error(t, err)
		data, err := afero.ReadFile(mem, "/cache/hello-1.1.0.zip")
		require.NoError(t, err)
		assert.Equal(t, "complete", string(data))
	})

	t.Run("success leaves no temp file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/cache/hello/root/hello.php", []byte("<?php"), 0644))
		_, err := Zip(fs, "/cache/hello/root", "/cache/hello-1.1.0.zip", "hello")
		require.NoError(t, err)
		assert.Empty(t, tempArchives(t, fs, "/cache"))
	})
}

// openFailFs fails opening one path, as a disk error mid-archive would.
type openFailFs struct {
	afero.Fs
	path string
}

func (f *openFailFs) Open(name string) (afero.File, error) {
	if name == f.path {
		return nil, errors.New("input/output error")
	}
	return f.Fs.Open(name)
}

func tempArchives(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	matches, err := afero.Glob(fs, dir+"/.*.tmp")
	require.NoError(t, err)
	return matches
}
