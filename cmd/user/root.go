package user

import (
	"fmt"
	"strings"

	cmdUtil "github.com/feaforge/lrdb/cmd/util"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// UserCommands groups the user management operations
	UserCommands = &cobra.Command{
		Use:   "user",
		Short: "Manage the user registry of a server",
		Long:  `Manage the user registry file a server authenticates against. The commands operate directly on the file; a running server picks up changes on restart.`,
	}

	addCmd = &cobra.Command{
		Use:   "add <name>",
		Short: "Create or replace a user",
		Long:  `Create or replace a user in the registry file. Grants are given as db=capability pairs (e.g. --grant results=read --grant results=write); admins have full access to every database.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}

			grants := make(map[string]string)
			for _, g := range viper.GetStringSlice("grant") {
				db, capability, ok := strings.Cut(g, "=")
				if !ok {
					return fmt.Errorf("invalid grant %q (expected db=read|write|admin)", g)
				}
				if sessions.ParseCapability(capability) == sessions.CapNone {
					return fmt.Errorf("invalid capability %q in grant %q", capability, g)
				}
				grants[db] = capability
			}

			password := viper.GetString("user-password")
			if password == "" {
				return fmt.Errorf("user-password is required (set --user-password or LRDB_USER_PASSWORD)")
			}

			if err := store.AddUser(args[0], password, viper.GetBool("admin"), grants); err != nil {
				return err
			}
			fmt.Printf("stored user %q (admin: %v, grants: %d)\n", args[0], viper.GetBool("admin"), len(grants))
			return nil
		},
	}

	rmCmd = &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}

			if err := store.RemoveUser(args[0]); err != nil {
				return err
			}
			fmt.Printf("removed user %q\n", args[0])
			return nil
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "users-file"
	UserCommands.PersistentFlags().String(key, "users.json", cmdUtil.WrapString("Path of the user registry file"))

	key = "user-password"
	addCmd.Flags().String(key, "", cmdUtil.WrapString("Password of the new user"))

	key = "admin"
	addCmd.Flags().Bool(key, false, cmdUtil.WrapString("Whether the new user is an admin"))

	key = "grant"
	addCmd.Flags().StringSlice(key, nil, cmdUtil.WrapString("Database grant as db=read|write|admin (repeatable)"))

	UserCommands.AddCommand(addCmd)
	UserCommands.AddCommand(rmCmd)
}

// openStore opens the registry named by the --users-file flag. The file
// must already exist; it is bootstrapped by the server on first start.
func openStore() (*sessions.Store, error) {
	return sessions.Open(viper.GetString("users-file"), "", "")
}
