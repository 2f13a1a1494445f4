package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ipodsync/core/internal/statusapi"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run the local read-only status/metrics HTTP server in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.StatusAPIAddr
		if addr == "" {
			addr = ":8314"
		}
		auth := statusapi.BasicAuth{
			User:         cfg.StatusAPIBasicAuthUser,
			PasswordHash: cfg.StatusAPIBasicAuthHash,
		}
		server := statusapi.New(addr, auth)
		fmt.Fprintf(cmd.OutOrStdout(), "ipodsync: status server listening on %s\n", addr)
		return server.Run()
	},
}
