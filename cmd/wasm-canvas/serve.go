package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/internal/static"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the page shell and module binary over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := static.NewServer(static.Config{
				Host:      a.cfg.Server.Host,
				Port:      a.cfg.Server.Port,
				AssetRoot: a.cfg.Server.AssetRoot,
			}, a.logger)

			if err := srv.ListenAndServe(cmd.Context()); err != nil {
				a.logger.Error("Static server failed", zap.Error(err))
				return err
			}
			a.logger.Info("Server shutdown complete")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "Interface to listen on (default all)")
	flags.Int("port", 8080, "TCP port to listen on (env PORT)")
	flags.String("assets", "./public", "Directory served as the site root")
	a.bind(flags, map[string]string{
		"server.host":       "host",
		"server.port":       "port",
		"server.asset_root": "assets",
	})
	return cmd
}
