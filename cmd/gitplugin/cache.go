package gitplugin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/stager"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the package cache",
}

var cacheListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List staged packages",
	Long: `List staged packages recorded in the package index, newest first.
With --remote, list the archives mirrored to the S3 bucket instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		out := cmd.OutOrStdout()
		if remote {
			if app.Publisher == nil {
				return fmt.Errorf("s3 mirror is not configured")
			}
			keys, err := app.Publisher.List(cmd.Context())
			if err != nil {
				return err
			}
			if ShouldUseStructuredOutput() {
				if keys == nil {
					keys = []string{}
				}
				return writeStructured(out, GetOutputMode(), "keys", keys)
			}
			for _, key := range keys {
				_, _ = fmt.Fprintln(out, key)
			}
			return nil
		}

		index, err := app.RequireIndex()
		if err != nil {
			return err
		}
		packages, err := index.List(cmd.Context())
		if err != nil {
			return err
		}
		if ShouldUseStructuredOutput() {
			if packages == nil {
				packages = []stager.CachedPackage{}
			}
			return writeStructured(out, GetOutputMode(), "packages", packages)
		}
		if len(packages) == 0 {
			_, _ = fmt.Fprintln(out, "No staged packages")
			return nil
		}
		for _, pkg := range packages {
			_, _ = fmt.Fprintf(out, "%s %s %s\n", pkg.Slug, Version(pkg.Version), Muted(pkg.StagedAt.Format("2006-01-02 15:04:05")))
			_, _ = fmt.Fprintf(out, "    %s\n", Muted(pkg.URL))
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheListCmd.Flags().Bool("remote", false, "list archives in the S3 mirror")
}
