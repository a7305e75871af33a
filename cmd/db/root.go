package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cmdUtil "github.com/feaforge/lrdb/cmd/util"
	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// DatabaseCommands groups the local database operations
	DatabaseCommands = &cobra.Command{
		Use:   "db",
		Short: "Local database operations",
		Long:  `Operate directly on a database directory: create, inspect, ingest, restore, verify, remove and manage attachments. All commands take the database directory via --path.`,
	}

	createCmd = &cobra.Command{
		Use:   "create <schema.json>",
		Short: "Create a new database from a schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read schema file: %w", err)
			}
			var sch schema.Schema
			if err := json.Unmarshal(data, &sch); err != nil {
				return fmt.Errorf("decode schema file: %w", err)
			}

			db, err := database.Create(viper.GetString("path"), sch, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Printf("created database at %s (schema v%d, columns: %s)\n",
				db.Path(), sch.Version, strings.Join(sch.ColumnNames(), ", "))
			return nil
		},
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print a summary of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			info, err := db.Info()
			if err != nil {
				return err
			}
			fmt.Println(info.String())
			return nil
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Verify the integrity of all batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := db.Check(context.Background())
			if err != nil {
				return err
			}

			if report.OK() {
				fmt.Printf("ok: %d batches verified\n", report.Batches)
				return nil
			}
			for _, c := range report.Corrupted {
				fmt.Printf("corrupted: batch %q (seq %d): want %s, got %s\n", c.Name, c.Sequence, c.Want, c.Got)
			}
			for _, m := range report.Missing {
				fmt.Printf("missing: batch %q (seq %d): %s\n", m.Batch, m.Sequence, m.Path)
			}
			return fmt.Errorf("integrity check failed: %d corrupted, %d missing",
				len(report.Corrupted), len(report.Missing))
		},
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest <batch> <rows.csv>",
		Short: "Ingest a CSV file as a new batch",
		Long:  `Ingest a CSV file as a new immutable batch. The CSV header must match the schema column names in order. The batch name doubles as the restore point name.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open csv file: %w", err)
			}
			defer f.Close()

			rows, err := newCSVRowReader(f, db.Schema())
			if err != nil {
				return err
			}

			rec, err := db.Ingest(context.Background(), args[0], rows, sessions.CapAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("committed batch %q (seq %d, %d rows, checksum %s)\n",
				rec.Name, rec.Sequence, rec.Rows, rec.Checksum)
			return nil
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore <checkpoint>",
		Short: "Roll the database back to a restore point",
		Long:  `Roll the database back to the state it had right after the named batch was committed. All batches committed later are discarded from the catalog.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Restore(args[0], sessions.CapAdmin); err != nil {
				return err
			}
			fmt.Printf("restored to checkpoint %q\n", args[0])
			return nil
		},
	}

	rmCmd = &cobra.Command{
		Use:   "rm",
		Short: "Remove a database and all its data",
		Long:  `Remove the database directory at --path and everything in it. With --db, ask a remote lrdb server to remove one of its served databases instead (requires admin access and the connection flags).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			if dbName := viper.GetString("db"); dbName != "" {
				c, err := cmdUtil.GetClient()
				if err != nil {
					return err
				}
				defer c.Close()

				if err := c.RemoveDatabase(dbName); err != nil {
					return err
				}
				fmt.Printf("removed database %q\n", dbName)
				return nil
			}

			// Open first so we never delete a directory that is not a
			// database.
			db, err := openDatabase()
			if err != nil {
				return err
			}
			path := db.Path()
			if err := db.Close(); err != nil {
				return err
			}
			if err := os.RemoveAll(path); err != nil {
				return err
			}
			fmt.Printf("removed database at %s\n", path)
			return nil
		},
	}

	attachCmd = &cobra.Command{
		Use:   "attach",
		Short: "Manage attachments (input decks, solver logs, ...)",
	}

	attachAddCmd = &cobra.Command{
		Use:   "add <file>",
		Short: "Store a file as an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			name := filepath.Base(args[0])
			if err := db.PutAttachment(context.Background(), name, f, sessions.CapAdmin); err != nil {
				return err
			}
			fmt.Printf("stored attachment %q\n", name)
			return nil
		},
	}

	attachListCmd = &cobra.Command{
		Use:   "list",
		Short: "List attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := db.ListAttachments()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	attachGetCmd = &cobra.Command{
		Use:   "get <name>",
		Short: "Write an attachment to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			r, err := db.OpenAttachment(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			_, err = io.Copy(os.Stdout, r)
			return err
		},
	}

	attachRmCmd = &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RemoveAttachment(context.Background(), args[0], sessions.CapAdmin); err != nil {
				return err
			}
			fmt.Printf("removed attachment %q\n", args[0])
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	DatabaseCommands.PersistentFlags().StringP("path", "p", ".", cmdUtil.WrapString("Path of the database directory"))

	rmCmd.Flags().String("db", "", cmdUtil.WrapString("Name of a remote database to remove (requires the connection flags)"))
	cmdUtil.SetupRPCClientFlags(rmCmd)

	attachCmd.AddCommand(attachAddCmd)
	attachCmd.AddCommand(attachListCmd)
	attachCmd.AddCommand(attachGetCmd)
	attachCmd.AddCommand(attachRmCmd)

	DatabaseCommands.AddCommand(createCmd)
	DatabaseCommands.AddCommand(infoCmd)
	DatabaseCommands.AddCommand(checkCmd)
	DatabaseCommands.AddCommand(ingestCmd)
	DatabaseCommands.AddCommand(restoreCmd)
	DatabaseCommands.AddCommand(rmCmd)
	DatabaseCommands.AddCommand(attachCmd)
}

// openDatabase opens the database named by the --path flag.
func openDatabase() (*database.Database, error) {
	return database.Open(viper.GetString("path"), nil)
}
