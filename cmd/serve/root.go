package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/feaforge/lrdb/cmd/util"
	"github.com/feaforge/lrdb/rpc/common"
	"github.com/feaforge/lrdb/rpc/server"
	"github.com/feaforge/lrdb/rpc/transport"
	"github.com/feaforge/lrdb/rpc/transport/tcp"
	"github.com/feaforge/lrdb/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the lrdb server",
		Long:    `Start the lrdb server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is LRDB_<flag> (e.g. LRDB_DATA_DIR=/var/lib/lrdb)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir is the directory holding the served databases, one subdirectory per database"))

	key = "users-file"
	ServeCmd.PersistentFlags().String(key, "users.json", cmdUtil.WrapString("Path of the user registry file"))

	key = "admin-user"
	ServeCmd.PersistentFlags().String(key, "admin", cmdUtil.WrapString("Admin user name used to bootstrap the user registry if it does not exist yet"))

	key = "admin-password"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Admin password used to bootstrap the user registry if it does not exist yet"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:5432", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:5432, /tmp/lrdb.sock, ...)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which Prometheus metrics are served under /metrics (empty = disabled)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 30, cmdUtil.WrapString("Timeout in seconds for reads and writes on a connection"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("Maximum number of concurrent request workers per connection"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("Per-request read buffer size (in KB)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.UsersFile = viper.GetString("users-file")
	serveCmdConfig.AdminUser = viper.GetString("admin-user")
	serveCmdConfig.AdminPassword = viper.GetString("admin-password")
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:          viper.GetString("endpoint"),
		TCPNoDelay:        viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec:   viper.GetInt("tcp-keepalive"),
		MaxWorkersPerConn: viper.GetInt("workers-per-conn"),
		BufferSize:        viper.GetInt("buffer-size") * 1024,
	}

	if serveCmdConfig.AdminPassword == "" {
		return fmt.Errorf("admin-password is required (set --admin-password or LRDB_ADMIN_PASSWORD)")
	}

	return nil
}

// run starts the lrdb server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch strings.ToLower(viper.GetString("transport")) {
	case "tcp":
		t = tcp.NewTCPServerTransport(*serveCmdConfig)
	case "unix":
		t = unix.NewUnixServerTransport(*serveCmdConfig)
	default:
		return fmt.Errorf("invalid transport %s (must be tcp or unix)", viper.GetString("transport"))
	}

	serv, err := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)
	if err != nil {
		return err
	}

	return serv.Serve()
}
