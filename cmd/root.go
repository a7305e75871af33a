package cmd

import (
	"fmt"
	"os"

	"github.com/feaforge/lrdb/cmd/db"
	"github.com/feaforge/lrdb/cmd/query"
	"github.com/feaforge/lrdb/cmd/serve"
	"github.com/feaforge/lrdb/cmd/sync"
	"github.com/feaforge/lrdb/cmd/user"
	"github.com/feaforge/lrdb/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lrdb",
		Short: "versioned columnar load-results database",
		Long: fmt.Sprintf(`lrdb (v%s)

A versioned, checksummed columnar database for load results, with
batch-level restore points, integrity checking, a declarative query
engine and prefix-based replication.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lrdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lrdb v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(db.DatabaseCommands)
	RootCmd.AddCommand(query.QueryCommands)
	RootCmd.AddCommand(sync.SyncCmd)
	RootCmd.AddCommand(user.UserCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary, bson)"))
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
