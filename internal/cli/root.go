// Package cli implements the devmon command line interface. The serve
// command runs the supervisor; every other command talks to a running
// supervisor over its HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessland/devmon/internal/config"
	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/daemon"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath           string
	apiAddr              string
	apiAddrExplicitlySet bool
	verbose              bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "devmon",
	Short: "A background supervisor for development servers",
	Long: `devmon keeps development servers running in the background and
collects browser console logs alongside them. It supports:
  - Starting and stopping dev servers that survive supervisor restarts
  - Bounded in-memory capture of server output
  - Browser console log ingestion over HTTP, grouped by port and project
  - A tool invocation API for editor and agent integrations`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("addr") {
			apiAddrExplicitlySet = true
		}
		// Client commands discover the API address from the running
		// supervisor unless --addr was given.
		if cmd.Name() != "serve" && cmd.Name() != "version" && !apiAddrExplicitlySet {
			apiAddr = discoverAPIAddress()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devmon version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", constants.DefaultAPIAddress, "API address for client commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.SetVersionTemplate("devmon version {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

// loadAPIAddrFromConfig attempts to read the API address from the config
// file. Returns empty string if the config doesn't exist or can't be read.
func loadAPIAddrFromConfig() string {
	cfg, err := config.Load(configPath)
	if err != nil {
		return ""
	}

	host := cfg.API.Host
	if host == "" {
		host = constants.DefaultAPIHost
	}
	port := cfg.API.Port
	if port == 0 {
		port = constants.DefaultAPIPort
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// discoverAPIAddress resolves the supervisor address in priority order:
// runtime state file of a running instance, then the config file, then the
// compiled-in default.
func discoverAPIAddress() string {
	if state, err := daemon.LoadState(""); err == nil {
		return fmt.Sprintf("http://%s:%d", state.Host, state.Port)
	}
	if addr := loadAPIAddrFromConfig(); addr != "" {
		return addr
	}
	return constants.DefaultAPIAddress
}
