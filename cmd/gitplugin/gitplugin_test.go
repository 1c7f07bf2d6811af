package gitplugin

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/midweste/wp-git-plugin-repository/internal/config"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/files"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/providers"
)

const helloMain = "<?php\n/**\n * Plugin Name: Hello\n * Version: 1.0.0\n * Update URI: https://api.github.com/repos/acme/hello/releases\n */\n"

type testEnv struct {
	fs       afero.Fs
	settings config.Settings
	archive  *httptest.Server
}

func helloArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("acme-hello-abc123/hello.php")
	require.NoError(t, err)
	_, err = w.Write([]byte(helloMain))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// setupTestEnv installs an in-memory WordPress tree, a zip server, and
// settings pointing at both. Every package variable it swaps is restored.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/wp/plugins/hello/hello.php", []byte(helloMain), 0644))
	require.NoError(t, afero.WriteFile(fs, "/wp/plugins/plain/plain.php", []byte("<?php\n/* Plugin Name: Plain */"), 0644))
	files.SetFileSystem(fs)

	archive := helloArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		if r.Method == http.MethodGet {
			_, _ = w.Write(archive)
		}
	}))

	env := &testEnv{
		fs: fs,
		settings: config.Settings{
			PluginsDir:   "/wp/plugins",
			MuPluginsDir: "/wp/mu-plugins",
			CacheDir:     "/cache",
			CacheURL:     "https://updates.example.com/packages",
			IndexPath:    filepath.Join(t.TempDir(), "index.db"),
		},
		archive: srv,
	}

	prevLoad := loadSettingsFn
	prevTerminal := isTerminalFn
	prevConfirm := confirmFn
	loadSettingsFn = func(opts ...config.Option) (config.Settings, error) { return env.settings, nil }
	isTerminalFn = func() bool { return false }
	confirmFn = func(string) (bool, error) { return false, nil }

	t.Cleanup(func() {
		srv.Close()
		loadSettingsFn = prevLoad
		isTerminalFn = prevTerminal
		confirmFn = prevConfirm
		files.ResetDependencies()
		providers.ResetProviderFactories()
		resetFlags(rootCmd)
		cfg.Flags = config.ConfigFlags{Color: config.ColorModeAuto, Output: config.OutputModeText}
	})
	return env
}

// withLatest makes the GitHub provider report version with the archive
// server as its download location.
func (e *testEnv) withLatest(version string) {
	providers.SetProviderFactory(providers.GitHubHost, providers.MockFactory(&providers.MockProvider{
		HostName: providers.GitHubHost,
		LatestVersionFunc: func(ctx context.Context, f providers.Fetcher, loc providers.Locator) providers.Lookup {
			return providers.Found(version)
		},
		DownloadLocationFunc: func(ctx context.Context, f providers.Fetcher, loc providers.Locator) providers.Lookup {
			return providers.Found(e.archive.URL + "/zipball/" + version)
		},
	}))
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}
