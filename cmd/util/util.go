// Package util provides the shared flag, environment and client wiring for
// the CLI command groups.
package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tycoon-kv/tycoon/rpc/common"
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

// SetupClientFlags adds the common connection flags to a command group
func SetupClientFlags(cmd *cobra.Command) {
	key := "host"
	cmd.PersistentFlags().String(key, "127.0.0.1", WrapString("Host of the server"))

	key = "port"
	cmd.PersistentFlags().Int(key, 1978, WrapString("Port of the server"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Receive timeout in seconds, 0 disables"))

	key = "serializer"
	cmd.PersistentFlags().String(key, "text", WrapString("Value serializer: raw, text, json, msgpack, gob or table"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY on new sockets"))

	key = "no-pool"
	cmd.PersistentFlags().Bool(key, false, WrapString("Disable socket pooling and keep one persistent socket per caller"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level: debug, info, warn or error"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("tycoon")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's local and inherited flags into viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		Host:          viper.GetString("host"),
		Port:          viper.GetInt("port"),
		TimeoutSecond: viper.GetInt("timeout"),
		TCPNoDelay:    viper.GetBool("tcp-nodelay"),
		Pooling:       !viper.GetBool("no-pool"),
		DefaultDB:     uint16(viper.GetInt("db")),
		Serializer:    viper.GetString("serializer"),
	}

	common.InitLoggers(viper.GetString("log-level"))

	return conf
}
