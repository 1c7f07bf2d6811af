package gitplugin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/stager"
)

var stageCmd = &cobra.Command{
	Use:   "stage <url> <slug> <version>",
	Short: "Download a zip archive and stage it in the package cache",
	Long: `Download the zip archive at url, rewrite the Version header of the main file
(<slug>.php unless --main is given) to version, and store the result in the
package cache. An archive already staged for the same slug and version is reused.

Examples:
  gitplugin stage https://api.github.com/repos/acme/hello/zipball/v1.2.0 hello 1.2.0
  gitplugin stage --main hello-main.php https://bitbucket.org/acme/hello/get/4f2a9c1e7b3d.zip hello 1.2.0`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		mainFile, _ := cmd.Flags().GetString("main")

		var pkg *stager.CachedPackage
		var stageErr error
		action := func() {
			pkg, stageErr = app.Stager.Stage(cmd.Context(), args[0], args[1], args[2], stager.WithMainFile(mainFile))
		}
		if err := runWithSpinner("Staging "+args[1]+"...", action); err != nil {
			return err
		}
		if stageErr != nil {
			return stageErr
		}

		out := cmd.OutOrStdout()
		if ShouldUseStructuredOutput() {
			return writeStructured(out, GetOutputMode(), "package", pkg)
		}
		state := "staged"
		if pkg.Cached {
			state = "already staged"
		}
		_, _ = fmt.Fprintf(out, "%s %s %s %s\n", IconCheck(), pkg.Slug, Version(pkg.Version), state)
		_, _ = fmt.Fprintf(out, "    %s\n", Muted(pkg.URL))
		return nil
	},
}

func init() {
	stageCmd.Flags().String("main", "", "main plugin file inside the archive root")
}
