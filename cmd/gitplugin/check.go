package gitplugin

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/updater"
)

var checkCmd = &cobra.Command{
	Use:   "check [id...]",
	Short: "Check components for updates and stage new packages",
	Long: `Check installed plugins and must-use plugins for a newer version on their
Update URI provider. A newer version is downloaded, its manifest rewritten, and
the archive staged in the package cache.

Examples:
  gitplugin check --all
  gitplugin check hello/hello.php
  gitplugin check hello/hello.php --notes
  gitplugin check --all --output json`,
	ValidArgsFunction: componentIDCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		notes, _ := cmd.Flags().GetBool("notes")
		if !all && len(args) == 0 {
			return fmt.Errorf("provide component ids or use --all")
		}

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		var descriptors []updater.UpdateDescriptor
		var checkErr error
		action := func() {
			if all {
				descriptors, checkErr = app.Service.CheckAll(cmd.Context())
			} else {
				descriptors, checkErr = app.Service.Check(cmd.Context(), args)
			}
		}
		if err := runWithSpinner("Checking for updates...", action); err != nil {
			return err
		}
		if checkErr != nil {
			return checkErr
		}

		out := cmd.OutOrStdout()
		if ShouldUseStructuredOutput() {
			if descriptors == nil {
				descriptors = []updater.UpdateDescriptor{}
			}
			return writeStructured(out, GetOutputMode(), "components", descriptors)
		}
		if len(descriptors) == 0 {
			_, _ = fmt.Fprintln(out, "No components with a GitHub or Bitbucket Update URI found")
			return nil
		}
		for _, d := range descriptors {
			printDescriptor(out, d)
			if notes && d.ReleaseNotes != "" {
				renderMarkdown(out, d.ReleaseNotes)
			}
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("all", false, "check every component with a supported Update URI")
	checkCmd.Flags().Bool("notes", false, "show release notes")
}

func printDescriptor(w io.Writer, d updater.UpdateDescriptor) {
	switch d.Outcome {
	case updater.OutcomeAvailable:
		_, _ = fmt.Fprintf(w, "%s %s %s -> %s\n", IconOutcome(d.Outcome), d.ID, Version(d.CurrentVersion), Version(d.NewVersion))
		_, _ = fmt.Fprintf(w, "    %s\n", Muted(d.PackageURL()))
	case updater.OutcomeUpToDate:
		_, _ = fmt.Fprintf(w, "%s %s %s is up to date\n", IconOutcome(d.Outcome), d.ID, Version(d.CurrentVersion))
	default:
		_, _ = fmt.Fprintf(w, "%s %s %s: %s\n", IconOutcome(d.Outcome), d.ID, d.Outcome, d.Reason)
	}
}

// runWithSpinner shows a spinner on a terminal and runs action directly
// otherwise.
func runWithSpinner(title string, action func()) error {
	if !isTerminalFn() || ShouldUseStructuredOutput() {
		action()
		return nil
	}
	return spinner.New().Title(title).Action(action).Run()
}

// renderMarkdown renders markdown content using glamour
func renderMarkdown(w io.Writer, markdown string) {
	width := 80
	if tw, _, err := term.GetSize(os.Stdout.Fd()); err == nil && tw > 0 {
		width = tw
	}

	style := "notty"
	if shouldUseColors() {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Debug("Could not create markdown renderer", "err", err)
		_, _ = fmt.Fprintln(w, markdown)
		return
	}
	rendered, err := r.Render(markdown)
	if err != nil {
		_, _ = fmt.Fprintln(w, markdown)
		return
	}
	_, _ = fmt.Fprint(w, rendered)
}
