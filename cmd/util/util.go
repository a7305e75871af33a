package util

import (
	"fmt"
	"strings"

	"github.com/feaforge/lrdb/rpc/client"
	"github.com/feaforge/lrdb/rpc/common"
	"github.com/feaforge/lrdb/rpc/serializer"
	"github.com/feaforge/lrdb/rpc/transport"
	"github.com/feaforge/lrdb/rpc/transport/tcp"
	"github.com/feaforge/lrdb/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int64(key, 30, WrapString("The timeout in seconds of the client"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "localhost:5432", WrapString("The address of the lrdb server. Multiple endpoints can be specified as a comma-separated list"))

	key = "conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "user"
	cmd.PersistentFlags().String(key, "", WrapString("The user name for authentication"))

	key = "password"
	cmd.PersistentFlags().String(key, "", WrapString("The password for authentication"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("lrdb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Serializer:    viper.GetString("serializer"),
		TimeoutSecond: viper.GetInt64("timeout"),
		Transport: common.ClientTransportConfig{
			Endpoints:              strings.Split(viper.GetString("endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("conn-per-endpoint"),
			RetryCount:             viper.GetInt("retries"),
			TCPNoDelay:             viper.GetBool("tcp-nodelay"),
			WriteBufferSize:        viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:         viper.GetInt("read-buffer") * 1024,
		},
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.ByName(viper.GetString("serializer"))
}

// GetClientTransport creates a client transport based on configuration
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (must be tcp or unix)", viper.GetString("transport"))
	}
}

// GetClient creates a connected, authenticated client from the
// configuration
func GetClient() (client.IClient, error) {
	t, err := GetClientTransport()
	if err != nil {
		return nil, err
	}

	c, err := client.NewClient(*GetClientConfig(), t)
	if err != nil {
		return nil, err
	}

	if user := viper.GetString("user"); user != "" {
		if err := c.Login(user, viper.GetString("password")); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
