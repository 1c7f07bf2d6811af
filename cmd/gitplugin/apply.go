package gitplugin

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/updater"
)

var applyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Update a component in place",
	Long: `Resolve the latest version of a component, stage it, and overwrite the
component's directory with the staged files. The previous files are restored
if copying fails.

Examples:
  gitplugin apply hello/hello.php
  gitplugin apply loader.php --yes`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: componentIDCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		yes, _ := cmd.Flags().GetBool("yes")

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		c, err := app.Service.Component(id)
		if err != nil {
			return fmt.Errorf("could not update %s: %w", id, err)
		}
		if !yes {
			ok, err := confirmFn(fmt.Sprintf("Overwrite %s in %s?", c.ID, app.Service.ActiveDir(c)))
			if err != nil {
				return err
			}
			if !ok {
				log.Info("Update cancelled", "id", id)
				return nil
			}
		}

		var d updater.UpdateDescriptor
		var applyErr error
		action := func() {
			d, applyErr = app.Service.ApplyInPlace(cmd.Context(), id)
		}
		if err := runWithSpinner("Updating "+id+"...", action); err != nil {
			return err
		}
		if applyErr != nil {
			return applyErr
		}

		out := cmd.OutOrStdout()
		if ShouldUseStructuredOutput() {
			return writeStructured(out, GetOutputMode(), "component", d)
		}
		_, _ = fmt.Fprintf(out, "%s %s updated %s -> %s\n", IconCheck(), d.ID, Version(d.CurrentVersion), Version(d.NewVersion))
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

// confirmFn asks for a yes/no answer. Swapped in tests.
var confirmFn = func(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Update").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}
