package gitplugin

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/config"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/plugin_parser"
)

// newSourceFn is an indirection for tests.
var newSourceFn = func() (plugin_parser.Source, error) {
	settings, err := loadSettingsFn(config.WithConfigFile(cfg.Flags.ConfigFile))
	if err != nil {
		return nil, err
	}
	return plugin_parser.New(settings.PluginsDir, settings.MuPluginsDir), nil
}

// componentIDCompletion provides shell completion for installed component IDs.
func componentIDCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	source, err := newSourceFn()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	components, err := source.List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	completions := make([]string, 0, len(components))
	for _, c := range components {
		if toComplete == "" || strings.HasPrefix(c.ID, toComplete) {
			completions = append(completions, c.ID+"\t"+c.Name)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
