package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/http_client"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
)

var Logger = log.NewLogger()

// Default filesystem, can be replaced for testing
var defaultFs afero.Fs = afero.NewOsFs()

// SetFileSystem sets the filesystem returned by FileSystem
func SetFileSystem(fs afero.Fs) {
	defaultFs = fs
}

// ResetDependencies restores the OS filesystem
func ResetDependencies() {
	defaultFs = afero.NewOsFs()
}

// FileSystem returns the process-wide filesystem.
func FileSystem() afero.Fs {
	return defaultFs
}

// Download streams url into dest and returns the number of bytes written.
// A non-2xx response is an error and leaves no file behind.
func Download(ctx context.Context, fs afero.Fs, client *http_client.Client, url string, dest string, opts ...http_client.RequestOption) (int64, error) {
	resp, err := client.Get(ctx, url, opts...)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			Logger.Warn("Failed to close response body", "url", url, "err", closeErr)
		}
	}()
	if !http_client.IsSuccess(resp.StatusCode) {
		return 0, &http_client.StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	out, err := fs.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = fs.Remove(dest)
		return 0, err
	}
	return n, nil
}

func FileExists(fs afero.Fs, path string) bool {
	if path == "" {
		return false
	}
	_, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil
}

func EnsureDirExists(fs afero.Fs, path string) string {
	if _, err := fs.Stat(path); os.IsNotExist(err) {
		if err := fs.MkdirAll(path, 0755); err != nil {
			Logger.Warn("Failed to create directory", "path", path, "err", err)
		}
	}
	return path
}

// FirstSubdir returns the path of the alphabetically first directory
// directly inside dir.
func FirstSubdir(fs afero.Fs, dir string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no directory found in %s", dir)
}

// GetCachePath returns the default directory for staged packages
// e.g. /home/user/.cache/gitplugin/packages
func GetCachePath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return filepath.Join(cacheDir, "gitplugin", "packages")
}

// GetAppDataPath returns the default directory for the package index
// e.g. /home/user/.config/gitplugin
func GetAppDataPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	return filepath.Join(configDir, "gitplugin")
}
