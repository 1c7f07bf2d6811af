package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/files"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/providers"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/publisher"
)

const (
	KeyPluginsDir   = "plugins.dir"
	KeyMuPluginsDir = "muplugins.dir"

	KeyCacheDir = "cache.dir"
	KeyCacheURL = "cache.url"

	KeyHTTPTimeout         = "http.timeout"
	KeyHTTPDownloadTimeout = "http.download_timeout"
	KeyHTTPRetries         = "http.retries"
	KeyHTTPBackoff         = "http.backoff"

	KeyGitHubToken          = "github.token"
	KeyBitbucketUsername    = "bitbucket.username"
	KeyBitbucketAppPassword = "bitbucket.app_password"

	KeyIndexPath    = "index.path"
	KeyServerListen = "server.listen"

	KeyS3Endpoint  = "s3.endpoint"
	KeyS3Bucket    = "s3.bucket"
	KeyS3AccessKey = "s3.access_key"
	KeyS3SecretKey = "s3.secret_key"
	KeyS3Region    = "s3.region"
	KeyS3Prefix    = "s3.prefix"
)

const (
	envPrefix = "GITPLUGIN"

	DefaultServerListen = "127.0.0.1:8080"
	DefaultHTTPRetries  = 3
	DefaultHTTPBackoff  = 2 * time.Second
)

var (
	ErrMissingCacheDir = errors.New("cache.dir is required")
	ErrMissingCacheURL = errors.New("cache.url is required")
	ErrPartialS3       = errors.New("s3 settings must be all set or all empty")
)

// Settings is the resolved runtime configuration.
type Settings struct {
	PluginsDir   string
	MuPluginsDir string

	CacheDir string
	CacheURL string

	HTTPTimeout         time.Duration
	HTTPDownloadTimeout time.Duration
	HTTPRetries         int
	HTTPBackoff         time.Duration

	GitHubToken          string
	BitbucketUsername    string
	BitbucketAppPassword string

	IndexPath    string
	ServerListen string

	S3 publisher.S3Config
}

type loadSettings struct {
	configFile string
	dotenvPath string
	overrides  map[string]any
}

// Option configures Load. Useful for tests to override paths.
type Option func(*loadSettings)

// WithConfigFile reads settings from path (YAML or TOML, by extension).
func WithConfigFile(path string) Option {
	return func(s *loadSettings) {
		s.configFile = path
	}
}

// WithDotenv loads environment variables from path before reading the
// environment. Defaults to ".env" in the working directory.
func WithDotenv(path string) Option {
	return func(s *loadSettings) {
		s.dotenvPath = path
	}
}

// WithOverrides injects values typically coming from CLI flags.
func WithOverrides(overrides map[string]any) Option {
	return func(s *loadSettings) {
		s.overrides = overrides
	}
}

// Load resolves Settings using the precedence:
// defaults < config file < environment variables < overrides.
func Load(opts ...Option) (Settings, error) {
	ls := loadSettings{dotenvPath: ".env"}
	for _, opt := range opts {
		opt(&ls)
	}

	if ls.dotenvPath != "" {
		if err := godotenv.Load(ls.dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", ls.dotenvPath, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, ls.configFile); err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}
	for k, val := range ls.overrides {
		v.Set(k, val)
	}

	s := Settings{
		PluginsDir:           v.GetString(KeyPluginsDir),
		MuPluginsDir:         v.GetString(KeyMuPluginsDir),
		CacheDir:             strings.TrimSpace(v.GetString(KeyCacheDir)),
		CacheURL:             strings.TrimRight(strings.TrimSpace(v.GetString(KeyCacheURL)), "/"),
		HTTPTimeout:          v.GetDuration(KeyHTTPTimeout),
		HTTPDownloadTimeout:  v.GetDuration(KeyHTTPDownloadTimeout),
		HTTPRetries:          v.GetInt(KeyHTTPRetries),
		HTTPBackoff:          v.GetDuration(KeyHTTPBackoff),
		GitHubToken:          v.GetString(KeyGitHubToken),
		BitbucketUsername:    v.GetString(KeyBitbucketUsername),
		BitbucketAppPassword: v.GetString(KeyBitbucketAppPassword),
		IndexPath:            v.GetString(KeyIndexPath),
		ServerListen:         v.GetString(KeyServerListen),
		S3: publisher.S3Config{
			Endpoint:  v.GetString(KeyS3Endpoint),
			Bucket:    v.GetString(KeyS3Bucket),
			AccessKey: v.GetString(KeyS3AccessKey),
			SecretKey: v.GetString(KeyS3SecretKey),
			Region:    v.GetString(KeyS3Region),
			Prefix:    v.GetString(KeyS3Prefix),
		},
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks required keys and that the S3 mirror is either fully
// configured or not at all. Region and prefix are optional.
func (s Settings) Validate() error {
	if s.CacheDir == "" {
		return ErrMissingCacheDir
	}
	if s.CacheURL == "" {
		return ErrMissingCacheURL
	}
	required := []string{s.S3.Endpoint, s.S3.Bucket, s.S3.AccessKey, s.S3.SecretKey}
	set := 0
	for _, v := range required {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set != 0 && set != len(required) {
		return ErrPartialS3
	}
	return nil
}

// S3Enabled reports whether staged archives are mirrored to object storage.
func (s Settings) S3Enabled() bool {
	return s.S3.Bucket != ""
}

// Credentials returns provider API credentials keyed by host.
func (s Settings) Credentials() map[string]providers.Credentials {
	return map[string]providers.Credentials{
		providers.GitHubHost:    {Token: s.GitHubToken},
		providers.BitbucketHost: {Username: s.BitbucketUsername, Password: s.BitbucketAppPassword},
	}
}

// APIClient returns the client used for provider API calls and HEAD checks.
func (s Settings) APIClient() *http_client.Client {
	return http_client.NewClient(
		http_client.WithTimeout(s.HTTPTimeout),
		http_client.WithRetries(s.HTTPRetries),
		http_client.WithBackoff(s.HTTPBackoff),
	)
}

// DownloadClient returns the client used to fetch package archives.
func (s Settings) DownloadClient() *http_client.Client {
	return http_client.NewClient(
		http_client.WithTimeout(s.HTTPDownloadTimeout),
		http_client.WithRetries(s.HTTPRetries),
		http_client.WithBackoff(s.HTTPBackoff),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPluginsDir, "wp-content/plugins")
	v.SetDefault(KeyMuPluginsDir, "wp-content/mu-plugins")
	v.SetDefault(KeyCacheDir, files.GetCachePath())
	v.SetDefault(KeyCacheURL, "http://"+DefaultServerListen+"/packages")
	v.SetDefault(KeyHTTPTimeout, http_client.DefaultTimeout)
	v.SetDefault(KeyHTTPDownloadTimeout, http_client.DefaultDownloadTimeout)
	v.SetDefault(KeyHTTPRetries, DefaultHTTPRetries)
	v.SetDefault(KeyHTTPBackoff, DefaultHTTPBackoff)
	v.SetDefault(KeyIndexPath, filepath.Join(files.GetAppDataPath(), "index.db"))
	v.SetDefault(KeyServerListen, DefaultServerListen)
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyS3Prefix, "plugins")
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		v.SetConfigType("toml")
	case ".yaml", ".yml", "":
		v.SetConfigType("yaml")
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
