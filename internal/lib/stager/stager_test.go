package stager

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
)

const helloMain = "<?php\n/**\n * Plugin Name: Hello\n * Version: 1.0.0\n */\n"

func buildZip(t *testing.T, entries map[string]string) []byte {
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
	return buf.Bytes()
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

type archiveServer struct {
	*httptest.Server
	downloads int32
}

func newArchiveServer(t *testing.T, routes map[string][]byte) *archiveServer {
	t.Helper()
	s := &archiveServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.downloads, 1)
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestStager(fs afero.Fs, opts ...Option) *Stager {
	opts = append([]Option{
		WithFs(fs),
		WithClient(http_client.NewClient(http_client.WithRetries(0))),
	}, opts...)
	return New("/cache", "https://example.test/packages/", opts...)
}

func assertNoScratch(t *testing.T, fs afero.Fs, slug string) {
	t.Helper()
	exists, err := afero.Exists(fs, "/cache/"+slug)
	require.NoError(t, err)
	assert.False(t, exists, "scratch folder must be removed")

	leftovers, err := afero.Glob(fs, "/cache/.*.download")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temporary download must be removed")

	partial, err := afero.Glob(fs, "/cache/.*.tmp")
	require.NoError(t, err)
	assert.Empty(t, partial, "temporary archive must be removed")
}

func TestStage(t *testing.T) {
	srv := newArchiveServer(t, map[string][]byte{
		"/hello.zip": buildZip(t, map[string]string{
			"midweste-hello-4f2a9c1/hello.php":      helloMain,
			"midweste-hello-4f2a9c1/inc/extra.php":  "<?php // extra",
			"midweste-hello-4f2a9c1/assets/app.css": "body{}",
		}),
	})
	fs := afero.NewMemMapFs()
	s := newTestStager(fs)

	pkg, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/packages/hello-1.1.0.zip", pkg.URL)
	assert.Equal(t, "/cache/hello-1.1.0.zip", pkg.Path)
	assert.Equal(t, srv.URL+"/hello.zip", pkg.SourceURL)
	assert.False(t, pkg.Cached)
	assert.Greater(t, pkg.Size, int64(0))

	entries := readZip(t, fs, pkg.Path)
	assert.Equal(t, "<?php\n/**\n * Plugin Name: Hello\n * Version: 1.1.0\n */\n", entries["hello/hello.php"])
	assert.Equal(t, "<?php // extra", entries["hello/inc/extra.php"])
	assert.Contains(t, entries, "hello/assets/app.css")
	for name := range entries {
		assert.NotContains(t, name, "midweste-hello-4f2a9c1")
	}
	assertNoScratch(t, fs, "hello")

	again, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, pkg.URL, again.URL)
	assert.True(t, again.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.downloads))
}

func TestStageConcurrentSameSlug(t *testing.T) {
	srv := newArchiveServer(t, map[string][]byte{
		"/hello.zip": buildZip(t, map[string]string{"root-abc/hello.php": helloMain}),
	})
	fs := afero.NewMemMapFs()
	s := newTestStager(fs)

	var wg sync.WaitGroup
	urls := make([]string, 8)
	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pkg, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "2.0.0")
			if err == nil {
				urls[i] = pkg.URL
			}
		}(i)
	}
	wg.Wait()

	for _, u := range urls {
		assert.Equal(t, "https://example.test/packages/hello-2.0.0.zip", u)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.downloads))
}

func TestStageFailures(t *testing.T) {
	srv := newArchiveServer(t, map[string][]byte{
		"/empty.zip":    {},
		"/flat.zip":     buildZip(t, map[string]string{"hello.php": helloMain}),
		"/nomain.zip":   buildZip(t, map[string]string{"root-abc/other.php": helloMain}),
		"/noheader.zip": buildZip(t, map[string]string{"root-abc/hello.php": "<?php echo 1;"}),
	})

	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty download", "/empty.zip", ErrEmptyDownload},
		{"no root folder", "/flat.zip", ErrNoRootFolder},
		{"manifest missing", "/nomain.zip", ErrManifestMissing},
		{"manifest without headers", "/noheader.zip", ErrManifestHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := newTestStager(fs)

			pkg, err := s.Stage(context.Background(), srv.URL+tt.path, "hello", "1.1.0")
			assert.Nil(t, pkg)
			assert.ErrorIs(t, err, tt.want)

			exists, _ := afero.Exists(fs, "/cache/hello-1.1.0.zip")
			assert.False(t, exists)
			assertNoScratch(t, fs, "hello")
		})
	}

	t.Run("http error", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		_, err := newTestStager(fs).Stage(context.Background(), srv.URL+"/missing.zip", "hello", "1.1.0")
		var statusErr *http_client.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	})

	t.Run("invalid slug", func(t *testing.T) {
		s := newTestStager(afero.NewMemMapFs())
		for _, slug := range []string{"", "../etc", "a/b"} {
			_, err := s.Stage(context.Background(), srv.URL+"/flat.zip", slug, "1.0.0")
			assert.ErrorIs(t, err, ErrInvalidSlug, slug)
		}
	})
}

type recordingRecorder struct {
	records []CachedPackage
}

func (r *recordingRecorder) Record(ctx context.Context, pkg CachedPackage) error {
	r.records = append(r.records, pkg)
	return nil
}

type failingPublisher struct {
	calls int
	body  []byte
}

func (p *failingPublisher) Publish(ctx context.Context, pkg CachedPackage, body io.ReadSeeker) error {
	p.calls++
	p.body, _ = io.ReadAll(body)
	return errors.New("bucket unavailable")
}

func TestStageRecordsAndPublishes(t *testing.T) {
	srv := newArchiveServer(t, map[string][]byte{
		"/hello.zip": buildZip(t, map[string]string{"root-abc/hello.php": helloMain}),
	})
	fs := afero.NewMemMapFs()
	recorder := &recordingRecorder{}
	publisher := &failingPublisher{}
	s := newTestStager(fs, WithRecorder(recorder), WithPublisher(publisher))

	pkg, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0")
	require.NoError(t, err, "mirror failures do not fail staging")

	_, err = s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0")
	require.NoError(t, err)

	require.Len(t, recorder.records, 1, "cache hits are not recorded again")
	assert.Equal(t, "hello", recorder.records[0].Slug)
	assert.Equal(t, 1, publisher.calls)

	data, err := afero.ReadFile(fs, pkg.Path)
	require.NoError(t, err)
	assert.Equal(t, data, publisher.body)
}

func TestStageNamedMainFile(t *testing.T) {
	srv := newArchiveServer(t, map[string][]byte{
		"/hello.zip": buildZip(t, map[string]string{"midweste-hello-4f2a9c1/hello-main.php": helloMain}),
	})

	t.Run("defaults to slug.php", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		_, err := newTestStager(fs).Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0")
		assert.ErrorIs(t, err, ErrManifestMissing)
		assertNoScratch(t, fs, "hello")
	})

	t.Run("rewrites the named file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s := newTestStager(fs)
		pkg, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0", WithMainFile("hello-main.php"))
		require.NoError(t, err)
		assert.Equal(t, "hello-main.php", pkg.MainFile)
		assert.Contains(t, readZip(t, fs, pkg.Path)["hello/hello-main.php"], " * Version: 1.1.0\n")

		cached, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0", WithMainFile("hello-main.php"))
		require.NoError(t, err)
		assert.True(t, cached.Cached)
		assert.Equal(t, "hello-main.php", cached.MainFile)
	})

	t.Run("rejects paths", func(t *testing.T) {
		_, err := newTestStager(afero.NewMemMapFs()).Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0", WithMainFile("../wp-config.php"))
		assert.ErrorIs(t, err, ErrInvalidSlug)
	})
}

func TestStageDownloadOptions(t *testing.T) {
	archive := buildZip(t, map[string]string{"root-abc/hello.php": helloMain})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	s := newTestStager(fs)
	_, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0")
	require.Error(t, err)

	pkg, err := s.Stage(context.Background(), srv.URL+"/hello.zip", "hello", "1.1.0",
		WithDownloadOptions(http_client.BearerToken("secret")))
	require.NoError(t, err)
	assert.Contains(t, readZip(t, fs, pkg.Path)["hello/hello.php"], "Version: 1.1.0")
	assertNoScratch(t, fs, "hello")
}

func TestLookup(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestStager(fs)

	_, ok := s.Lookup("hello", "1.0.0")
	assert.False(t, ok)

	require.NoError(t, afero.WriteFile(fs, "/cache/hello-1.0.0.zip", []byte("PK"), 0644))
	pkg, ok := s.Lookup("hello", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "https://example.test/packages/hello-1.0.0.zip", pkg.URL)
	assert.True(t, pkg.Cached)
}
