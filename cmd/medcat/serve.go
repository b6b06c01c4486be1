package main

import (
	"github.com/pbaille/medcat/internal/api"
	"github.com/spf13/cobra"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			g, err := a.groupManager()
			if err != nil {
				return err
			}
			srv := api.New(api.Core{Catalog: s, Hierarchy: a.hier, Groups: g}, addr, a.logger)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (default from server.addr)")
	return cmd
}
