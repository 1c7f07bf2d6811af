package gitplugin

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/midweste/wp-git-plugin-repository/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve staged packages and the update API over HTTP",
	Long: `Serve the package cache under /packages/ and the update API:

  GET  /api/components
  GET  /api/check/{id}
  POST /api/apply/{id}

cache.url should point at the /packages/ prefix of this server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		if listen == "" {
			listen = app.Settings.ServerListen
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		log.Info("Serving packages", "addr", listen, "cache", app.Settings.CacheDir, "url", app.Settings.CacheURL)
		srv := server.New(app.Service, app.Fs, app.Settings.CacheDir)
		if err := srv.Run(ctx, listen); err != nil {
			return err
		}
		log.Info("Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default server.listen)")
}
