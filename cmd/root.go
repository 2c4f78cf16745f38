package cmd

import (
	"fmt"
	"os"

	"github.com/dce-cluster/dce/cmd/entity"
	"github.com/dce-cluster/dce/cmd/lease"
	"github.com/dce-cluster/dce/cmd/serve"
	"github.com/dce-cluster/dce/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dce",
		Short: "distributed clustered entity coordinator",
		Long: fmt.Sprintf(`dCE (v%s)

A coordinator for clustered entities written in Go: consistent
create/retrieve/destroy lifecycle operations and maintenance
leases across competing clients, backed by a distributed
read/write lock service.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCE",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCE v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(entity.EntityCommands)
	RootCmd.AddCommand(lease.LeaseCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
