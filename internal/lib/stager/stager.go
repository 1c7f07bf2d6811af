package stager

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/files"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
)

var Logger = log.NewLogger()

// CachedPackage is a repackaged archive in the cache directory.
type CachedPackage struct {
	Slug      string `json:"slug" yaml:"slug" toml:"slug"`
	Version   string `json:"version" yaml:"version" toml:"version"`
	Path      string `json:"path" yaml:"path" toml:"path"`
	URL       string `json:"url" yaml:"url" toml:"url"`
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty" toml:"source_url,omitempty"`
	// MainFile is the header file inside the archive root, {slug}.php when empty.
	MainFile string    `json:"main_file,omitempty" yaml:"main_file,omitempty" toml:"main_file,omitempty"`
	Size     int64     `json:"size" yaml:"size" toml:"size"`
	StagedAt time.Time `json:"staged_at" yaml:"staged_at" toml:"staged_at"`
	// Cached is set when the archive already existed and nothing was downloaded.
	Cached bool `json:"cached" yaml:"cached" toml:"cached"`
}

func (p CachedPackage) mainFile() string {
	if p.MainFile != "" {
		return p.MainFile
	}
	return p.Slug + ".php"
}

// Recorder keeps a record of newly staged packages.
type Recorder interface {
	Record(ctx context.Context, pkg CachedPackage) error
}

// Publisher copies newly staged archives somewhere else.
type Publisher interface {
	Publish(ctx context.Context, pkg CachedPackage, body io.ReadSeeker) error
}

// Stager downloads provider archives and repackages them under a stable
// name in the cache directory.
type Stager struct {
	fs        afero.Fs
	cacheDir  string
	cacheURL  string
	client    *http_client.Client
	recorder  Recorder
	publisher Publisher
	locks     slugLocks
	now       func() time.Time
}

// Option configures a Stager.
type Option func(*Stager)

func WithFs(fs afero.Fs) Option {
	return func(s *Stager) {
		s.fs = fs
	}
}

// WithClient sets the client used for package downloads.
func WithClient(client *http_client.Client) Option {
	return func(s *Stager) {
		s.client = client
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Stager) {
		s.recorder = r
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Stager) {
		s.publisher = p
	}
}

func New(cacheDir, cacheURL string, opts ...Option) *Stager {
	s := &Stager{
		fs:       files.FileSystem(),
		cacheDir: filepath.Clean(cacheDir),
		cacheURL: strings.TrimRight(cacheURL, "/"),
		client:   http_client.NewClient(http_client.WithTimeout(http_client.DefaultDownloadTimeout)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stager) CacheDir() string {
	return s.cacheDir
}

func (s *Stager) Fs() afero.Fs {
	return s.fs
}

type stageRequest struct {
	mainFile string
	download []http_client.RequestOption
}

// StageOption adjusts a single Stage call.
type StageOption func(*stageRequest)

// WithMainFile names the plugin main file whose Version header is rewritten.
func WithMainFile(name string) StageOption {
	return func(r *stageRequest) {
		r.mainFile = name
	}
}

// WithDownloadOptions adds request options, such as credentials, to the
// archive download.
func WithDownloadOptions(opts ...http_client.RequestOption) StageOption {
	return func(r *stageRequest) {
		r.download = append(r.download, opts...)
	}
}

// ArchiveName is the file name of the staged archive for slug and version.
func ArchiveName(slug, version string) string {
	return slug + "-" + version + ".zip"
}

func validName(name string) bool {
	return name != "" && name != "." && !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// Lookup returns the staged package for slug and version if it exists.
func (s *Stager) Lookup(slug, version string) (*CachedPackage, bool) {
	if !validName(slug) || !validName(version) {
		return nil, false
	}
	name := ArchiveName(slug, version)
	path := filepath.Join(s.cacheDir, name)
	info, err := s.fs.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return &CachedPackage{
		Slug:     slug,
		Version:  version,
		Path:     path,
		URL:      s.cacheURL + "/" + name,
		Size:     info.Size(),
		StagedAt: info.ModTime(),
		Cached:   true,
	}, true
}

// Stage makes url available as {cacheDir}/{slug}-{version}.zip with the
// archive root renamed to slug and the main file's Version header set to
// version. An existing archive is returned without any network access.
// Calls for the same slug are serialized.
func (s *Stager) Stage(ctx context.Context, url, slug, version string, opts ...StageOption) (*CachedPackage, error) {
	if !validName(slug) || !validName(version) {
		return nil, fmt.Errorf("%w: %q %q", ErrInvalidSlug, slug, version)
	}
	req := stageRequest{}
	for _, opt := range opts {
		opt(&req)
	}
	if req.mainFile != "" && !validName(req.mainFile) {
		return nil, fmt.Errorf("%w: main file %q", ErrInvalidSlug, req.mainFile)
	}

	unlock := s.locks.lock(slug)
	defer unlock()

	if pkg, ok := s.Lookup(slug, version); ok {
		Logger.Debug("Serving staged package from cache", "slug", slug, "version", version)
		pkg.MainFile = req.mainFile
		return pkg, nil
	}

	pkg, err := s.stage(ctx, url, slug, version, req)
	if err != nil {
		return nil, fmt.Errorf("could not proxy remote zipfile: %w", err)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, *pkg); err != nil {
			Logger.Warn("Could not record staged package", "slug", slug, "version", version, "err", err)
		}
	}
	if s.publisher != nil {
		s.publish(ctx, *pkg)
	}
	return pkg, nil
}

func (s *Stager) stage(ctx context.Context, url, slug, version string, req stageRequest) (*CachedPackage, error) {
	if err := s.fs.MkdirAll(s.cacheDir, 0755); err != nil {
		return nil, err
	}

	tmp, err := afero.TempFile(s.fs, s.cacheDir, "."+slug+"-*.download")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = s.fs.Remove(tmpPath) }()

	n, err := files.Download(ctx, s.fs, s.client, url, tmpPath, req.download...)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyDownload
	}

	scratch := filepath.Join(s.cacheDir, slug)
	if err := s.fs.RemoveAll(scratch); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.fs.RemoveAll(scratch); err != nil {
			Logger.Warn("Could not remove scratch folder", "path", scratch, "err", err)
		}
	}()

	if err := files.Unzip(s.fs, tmpPath, scratch); err != nil {
		return nil, err
	}
	root, err := files.FirstSubdir(s.fs, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRootFolder, err)
	}
	pkg := CachedPackage{Slug: slug, Version: version, MainFile: req.mainFile}
	if err := RewriteManifest(s.fs, filepath.Join(root, pkg.mainFile()), version); err != nil {
		return nil, err
	}

	name := ArchiveName(slug, version)
	zipPath := filepath.Join(s.cacheDir, name)
	written, err := files.Zip(s.fs, root, zipPath, slug)
	if err != nil {
		return nil, err
	}
	if written == 0 {
		_ = s.fs.Remove(zipPath)
		return nil, ErrEmptyArchive
	}

	var size int64
	if info, err := s.fs.Stat(zipPath); err == nil {
		size = info.Size()
	}
	Logger.Info("Staged package", "slug", slug, "version", version, "path", zipPath, "files", written)
	pkg.Path = zipPath
	pkg.URL = s.cacheURL + "/" + name
	pkg.SourceURL = url
	pkg.Size = size
	pkg.StagedAt = s.now().UTC()
	return &pkg, nil
}

func (s *Stager) publish(ctx context.Context, pkg CachedPackage) {
	f, err := s.fs.Open(pkg.Path)
	if err != nil {
		Logger.Warn("Could not open staged package for mirroring", "path", pkg.Path, "err", err)
		return
	}
	defer func() { _ = f.Close() }()
	if err := s.publisher.Publish(ctx, pkg, f); err != nil {
		Logger.Warn("Could not mirror staged package", "slug", pkg.Slug, "version", pkg.Version, "err", err)
	}
}
