package sync

import (
	"context"
	"fmt"

	cmdUtil "github.com/feaforge/lrdb/cmd/util"
	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/replica"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/feaforge/lrdb/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// SyncCmd synchronizes a local follower database with a source
	SyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Synchronize a follower database with a source",
		Long:  `Synchronize a local follower database with a source database. The follower must be a prefix of the source; missing batches are transferred and committed one by one, so an interrupted sync can simply be run again. The source is either another local directory (--source-path) or a database on a remote server (--db together with the connection flags).`,
		RunE:  runSync,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "path"
	SyncCmd.PersistentFlags().StringP(key, "p", ".", cmdUtil.WrapString("Path of the follower database directory"))

	key = "source-path"
	SyncCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path of a local source database directory"))

	key = "db"
	SyncCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Name of the source database on a remote server (requires the connection flags)"))

	cmdUtil.SetupRPCClientFlags(SyncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	follower, err := database.Open(viper.GetString("path"), nil)
	if err != nil {
		return err
	}
	defer follower.Close()

	src, cleanup, err := getSource()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := replica.Sync(context.Background(), follower, src, sessions.CapAdmin, nil)
	if err != nil {
		return err
	}

	if report.Transferred == 0 {
		fmt.Printf("up to date (%d batches)\n", report.FollowerBatches)
		return nil
	}
	fmt.Printf("transferred %d batches (%d rows), follower now at %d of %d batches\n",
		report.Transferred, report.TransferredRows, report.FollowerBatches, report.SourceBatches)
	return nil
}

// getSource builds the sync source for the configured target and returns
// a cleanup function that must be deferred by the caller.
func getSource() (replica.Source, func(), error) {
	sourcePath := viper.GetString("source-path")
	dbName := viper.GetString("db")

	switch {
	case sourcePath != "" && dbName != "":
		return nil, nil, fmt.Errorf("--source-path and --db are mutually exclusive")

	case sourcePath != "":
		db, err := database.Open(sourcePath, nil)
		if err != nil {
			return nil, nil, err
		}
		return replica.LocalSource{DB: db}, func() { _ = db.Close() }, nil

	case dbName != "":
		c, err := cmdUtil.GetClient()
		if err != nil {
			return nil, nil, err
		}
		return client.RemoteSource{Client: c, Database: dbName}, func() { _ = c.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("either --source-path or --db must be set")
	}
}
