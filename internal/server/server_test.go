package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/plugin_parser"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/stager"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/updater"
)

type MockUpdater struct {
	ComponentsFunc     func() ([]plugin_parser.Component, error)
	ComponentFunc      func(id string) (plugin_parser.Component, error)
	CheckForUpdateFunc func(ctx context.Context, current *updater.UpdateDescriptor, c plugin_parser.Component, id string) *updater.UpdateDescriptor
	ApplyInPlaceFunc   func(ctx context.Context, id string) (updater.UpdateDescriptor, error)
}

func (m *MockUpdater) Components() ([]plugin_parser.Component, error) {
	if m.ComponentsFunc != nil {
		return m.ComponentsFunc()
	}
	return nil, nil
}

func (m *MockUpdater) Component(id string) (plugin_parser.Component, error) {
	if m.ComponentFunc != nil {
		return m.ComponentFunc(id)
	}
	return plugin_parser.Component{}, updater.ErrUnknownComponent
}

func (m *MockUpdater) CheckForUpdate(ctx context.Context, current *updater.UpdateDescriptor, c plugin_parser.Component, id string) *updater.UpdateDescriptor {
	if m.CheckForUpdateFunc != nil {
		return m.CheckForUpdateFunc(ctx, current, c, id)
	}
	return current
}

func (m *MockUpdater) ApplyInPlace(ctx context.Context, id string) (updater.UpdateDescriptor, error) {
	if m.ApplyInPlaceFunc != nil {
		return m.ApplyInPlaceFunc(ctx, id)
	}
	return updater.UpdateDescriptor{}, errors.New("not implemented")
}

func newTestServer(t *testing.T, u Updater) *httptest.Server {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cache/hello-1.1.0.zip", []byte("PK\x03\x04archive"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/cache/notes.txt", []byte("secret"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/outside.zip", []byte("PK"), 0644))

	srv := httptest.NewServer(New(u, fs, "/cache").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestPackages(t *testing.T) {
	srv := newTestServer(t, &MockUpdater{})

	resp, body := get(t, srv.URL+"/packages/hello-1.1.0.zip")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Equal(t, "PK\x03\x04archive", body)

	resp, _ = get(t, srv.URL+"/packages/missing-1.0.0.zip")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/packages/notes.txt")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/packages/..%2Foutside.zip")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestComponents(t *testing.T) {
	srv := newTestServer(t, &MockUpdater{
		ComponentsFunc: func() ([]plugin_parser.Component, error) {
			return []plugin_parser.Component{{ID: "hello/hello.php", Slug: "hello", Type: plugin_parser.TypePlugin, Version: "1.0.0"}}, nil
		},
	})

	resp, body := get(t, srv.URL+"/api/components")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []plugin_parser.Component
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Slug)

	empty := newTestServer(t, &MockUpdater{})
	_, body = get(t, empty.URL+"/api/components")
	assert.Equal(t, "[]", strings.TrimSpace(body))
}

func TestCheck(t *testing.T) {
	u := &MockUpdater{
		ComponentFunc: func(id string) (plugin_parser.Component, error) {
			if id != "hello/hello.php" {
				return plugin_parser.Component{}, fmt.Errorf("%s: %w", id, updater.ErrUnknownComponent)
			}
			return plugin_parser.Component{ID: id, Slug: "hello", Version: "1.0.0"}, nil
		},
		CheckForUpdateFunc: func(ctx context.Context, current *updater.UpdateDescriptor, c plugin_parser.Component, id string) *updater.UpdateDescriptor {
			assert.Nil(t, current)
			return &updater.UpdateDescriptor{
				ID: id, Slug: c.Slug, CurrentVersion: c.Version, NewVersion: "1.1.0",
				Outcome: updater.OutcomeAvailable,
				Package: &stager.CachedPackage{Slug: "hello", Version: "1.1.0", URL: "https://example.test/packages/hello-1.1.0.zip"},
			}
		},
	}
	srv := newTestServer(t, u)

	resp, body := get(t, srv.URL+"/api/check/hello/hello.php")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d updater.UpdateDescriptor
	require.NoError(t, json.Unmarshal([]byte(body), &d))
	assert.Equal(t, "1.1.0", d.NewVersion)
	assert.Equal(t, "https://example.test/packages/hello-1.1.0.zip", d.PackageURL())

	resp, _ = get(t, srv.URL+"/api/check/nope/nope.php")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	u.CheckForUpdateFunc = nil
	resp, _ = get(t, srv.URL+"/api/check/hello/hello.php")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestApply(t *testing.T) {
	u := &MockUpdater{
		ApplyInPlaceFunc: func(ctx context.Context, id string) (updater.UpdateDescriptor, error) {
			if id == "broken/broken.php" {
				return updater.UpdateDescriptor{}, fmt.Errorf("could not update %s: %w", id, errors.New("could not copy files. disk full"))
			}
			return updater.UpdateDescriptor{ID: id, NewVersion: "1.1.0", Outcome: updater.OutcomeAvailable}, nil
		},
	}
	srv := newTestServer(t, u)

	resp, err := http.Post(srv.URL+"/api/apply/hello/hello.php", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/apply/broken/broken.php", "application/json", nil)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "could not update broken/broken.php: could not copy files. disk full", strings.TrimSpace(string(body)))

	resp, _ = get(t, srv.URL+"/api/apply/hello/hello.php")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&MockUpdater{}, afero.NewMemMapFs(), "/cache").Run(ctx, "127.0.0.1:0")
	}()
	cancel()
	assert.NoError(t, <-done)
}
