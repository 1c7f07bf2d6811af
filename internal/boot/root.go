package boot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/midweste/wp-git-plugin-repository/internal/config"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/files"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/package_index"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/plugin_parser"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/publisher"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/stager"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/updater"
)

var Logger = log.NewLogger()

// App holds everything a command needs, wired from Settings.
type App struct {
	Settings  config.Settings
	Fs        afero.Fs
	Source    *plugin_parser.Parser
	Stager    *stager.Stager
	Resolver  *updater.Resolver
	Service   *updater.Service
	Index     *package_index.Index   // nil when index.path is empty
	Publisher *publisher.S3Publisher // nil when the S3 mirror is off
}

// Start wires the application. The package index is opened on the real
// filesystem because sqlite does not go through afero.
func Start(ctx context.Context, settings config.Settings) (*App, error) {
	fs := files.FileSystem()
	app := &App{Settings: settings, Fs: fs}

	files.EnsureDirExists(fs, settings.CacheDir)

	opts := []stager.Option{
		stager.WithFs(fs),
		stager.WithClient(settings.DownloadClient()),
	}
	if settings.IndexPath != "" {
		files.EnsureDirExists(afero.NewOsFs(), filepath.Dir(settings.IndexPath))
		index, err := package_index.Open(ctx, settings.IndexPath)
		if err != nil {
			return nil, err
		}
		app.Index = index
		opts = append(opts, stager.WithRecorder(index))
	}
	if settings.S3Enabled() {
		app.Publisher = publisher.NewS3Publisher(settings.S3)
		opts = append(opts, stager.WithPublisher(app.Publisher))
		Logger.Debug("Mirroring staged packages", "bucket", settings.S3.Bucket)
	}

	app.Source = plugin_parser.NewWithFs(fs, settings.PluginsDir, settings.MuPluginsDir)
	app.Stager = stager.New(settings.CacheDir, settings.CacheURL, opts...)
	app.Resolver = updater.NewResolver(settings.APIClient(), app.Stager, updater.WithCredentials(settings.Credentials()))
	app.Service = updater.NewService(app.Source, app.Resolver, app.Stager)
	return app, nil
}

// Close releases the package index, if open.
func (a *App) Close() error {
	if a == nil || a.Index == nil {
		return nil
	}
	if err := a.Index.Close(); err != nil {
		return fmt.Errorf("close package index: %w", err)
	}
	return nil
}

// RequireIndex returns the package index or an error naming the missing key.
func (a *App) RequireIndex() (*package_index.Index, error) {
	if a.Index == nil {
		return nil, errors.New("package index disabled: set " + config.KeyIndexPath)
	}
	return a.Index, nil
}
