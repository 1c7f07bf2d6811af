package gitplugin

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/boot"
	"github.com/midweste/wp-git-plugin-repository/internal/config"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/version"
)

var cfg = config.NewConfig(config.Config{
	Flags: config.ConfigFlags{
		Color:  config.ColorModeAuto,
		Output: config.OutputModeText,
	},
})

var rootCmd = &cobra.Command{
	Use:   "gitplugin",
	Short: "Serve WordPress plugin updates from GitHub and Bitbucket",
	Long: `gitplugin resolves the latest version of WordPress plugins whose Update URI
points at a GitHub or Bitbucket repository, stages a rewritten zip archive in a
local cache, and installs it in place.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.Flags.Version {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.VERSION)
			return
		}
		_ = cmd.Help()
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		osExit(1)
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.PersistentFlags().BoolVar(&cfg.Flags.Version, "version", false, "version")
	rootCmd.PersistentFlags().StringVar(&cfg.Flags.ConfigFile, "config", "", "config file (YAML or TOML)")
	rootCmd.PersistentFlags().Var(&cfg.Flags.Color, "color", "color output: auto, always, never")
	rootCmd.PersistentFlags().Var(&cfg.Flags.Output, "output", "output format: text, json, yaml, toml")
	SetColorConfigFunc(func() config.ConfigFlags { return cfg.Flags })
}

// loadApp resolves settings and wires the application. Callers must Close
// the returned App.
func loadApp(ctx context.Context) (*boot.App, error) {
	settings, err := loadSettingsFn(config.WithConfigFile(cfg.Flags.ConfigFile))
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings
	return bootStartFn(ctx, settings)
}

// osExit is a variable to allow overriding in tests
var osExit = os.Exit

// indirections for testability
var (
	loadSettingsFn = config.Load
	bootStartFn    = boot.Start
)
