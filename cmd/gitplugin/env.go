package gitplugin

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/config"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/providers"
)

type envReport struct {
	PluginsDir   string                           `json:"plugins_dir" yaml:"plugins_dir" toml:"plugins_dir"`
	MuPluginsDir string                           `json:"muplugins_dir" yaml:"muplugins_dir" toml:"muplugins_dir"`
	CacheDir     string                           `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	CacheURL     string                           `json:"cache_url" yaml:"cache_url" toml:"cache_url"`
	IndexPath    string                           `json:"index_path" yaml:"index_path" toml:"index_path"`
	S3Bucket     string                           `json:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty" toml:"s3_bucket,omitempty"`
	Providers    []providers.ProviderHealthStatus `json:"providers" yaml:"providers" toml:"providers"`
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the resolved settings and supported providers",
	Long: `Show the resolved settings and every supported Update URI provider, with
whether API credentials are configured for it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettingsFn(config.WithConfigFile(cfg.Flags.ConfigFile))
		if err != nil {
			return err
		}

		report := envReport{
			PluginsDir:   settings.PluginsDir,
			MuPluginsDir: settings.MuPluginsDir,
			CacheDir:     settings.CacheDir,
			CacheURL:     settings.CacheURL,
			IndexPath:    settings.IndexPath,
			S3Bucket:     settings.S3.Bucket,
			Providers:    providers.CheckAllProvidersHealth(settings.Credentials()),
		}

		out := cmd.OutOrStdout()
		if ShouldUseStructuredOutput() {
			return writeStructured(out, GetOutputMode(), "env", report)
		}

		_, _ = fmt.Fprintf(out, "plugins dir:    %s\n", report.PluginsDir)
		_, _ = fmt.Fprintf(out, "mu-plugins dir: %s\n", report.MuPluginsDir)
		_, _ = fmt.Fprintf(out, "cache dir:      %s\n", report.CacheDir)
		_, _ = fmt.Fprintf(out, "cache url:      %s\n", report.CacheURL)
		_, _ = fmt.Fprintf(out, "index:          %s\n", valueOr(report.IndexPath, "disabled"))
		_, _ = fmt.Fprintf(out, "s3 mirror:      %s\n", valueOr(report.S3Bucket, "disabled"))
		_, _ = fmt.Fprintln(out)
		for _, p := range report.Providers {
			displayProvider(cmd, p)
		}
		return nil
	},
}

func displayProvider(cmd *cobra.Command, p providers.ProviderHealthStatus) {
	out := cmd.OutOrStdout()
	auth := "anonymous"
	marker := IconAlert()
	if p.Authenticated {
		auth = "authenticated"
		marker = IconCheck()
	}
	_, _ = fmt.Fprintf(out, "%s %s: %s\n", marker, p.Provider, auth)
	_, _ = fmt.Fprintf(out, "   %s\n", p.Description)
	_, _ = fmt.Fprintf(out, "   modes: %s\n", strings.Join(p.Modes, ", "))
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
