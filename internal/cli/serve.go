package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessland/devmon/internal/api"
	"github.com/tessland/devmon/internal/config"
	"github.com/tessland/devmon/internal/console"
	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/daemon"
	"github.com/tessland/devmon/internal/registry"
	"github.com/tessland/devmon/internal/state"
	"github.com/tessland/devmon/internal/tools"
	"github.com/tessland/devmon/internal/tui"
)

var (
	serveDetach bool
	servePort   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor",
	Long: `Run the supervisor in the foreground, or detached with --detach.
Dev servers started under a previous supervisor are reattached from the
saved state file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(false)
	},
}

func init() {
	serveCmd.Flags().BoolVarP(&serveDetach, "detach", "d", false, "Run in background (daemon mode)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "API port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// devmonDir returns the devmon config directory path (~/.devmon)
func devmonDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devmon"
	}
	return filepath.Join(home, ".devmon")
}

// tokenPath returns the path to the auth token file
func tokenPath() string {
	return filepath.Join(devmonDir(), "token")
}

// generateToken generates a cryptographically secure random token
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// saveToken saves the token with owner-only permissions
func saveToken(token string) error {
	if err := os.MkdirAll(devmonDir(), 0700); err != nil {
		return fmt.Errorf("creating devmon directory: %w", err)
	}
	if err := os.WriteFile(tokenPath(), []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// loadToken loads the token from ~/.devmon/token
func loadToken() (string, error) {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// isLocalhost checks if the host is a localhost address
func isLocalhost(host string) bool {
	return host == "" || host == "127.0.0.1" || host == "localhost" || host == "::1"
}

// isAuthRequired determines if authentication should be enabled. Explicit
// config wins; otherwise auth is required unless binding to localhost only.
func isAuthRequired(cfg *config.Config) bool {
	if cfg.API.Auth != nil {
		return *cfg.API.Auth
	}
	return !isLocalhost(cfg.API.Host)
}

func runServe(useTUI bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}

	// Detach before acquiring the PID lock; the child takes it.
	if serveDetach && !daemon.IsDaemonChild() {
		return daemon.Daemonize()
	}

	var logFile *os.File
	if daemon.IsDaemonChild() {
		logFile, err = daemon.SetupLogging("")
		if err != nil {
			return fmt.Errorf("setting up daemon logging: %w", err)
		}
		defer logFile.Close()
	}

	// One supervisor per user. Two supervisors sharing a state file would
	// clobber each other's persisted servers.
	if err := daemon.EnsureRuntimeDir(""); err != nil {
		return err
	}
	if err := daemon.CleanupStaleFiles(""); err != nil && err != daemon.ErrAlreadyRunning {
		fmt.Fprintf(os.Stderr, "warning: cleaning stale runtime files: %v\n", err)
	}
	pidFile := daemon.NewPIDFile(daemon.PIDPath(""))
	if err := pidFile.Create(); err != nil {
		if err == daemon.ErrPIDFileLocked {
			return daemon.ErrAlreadyRunning
		}
		return err
	}
	defer pidFile.Release()

	// Build the registry and reattach servers from the previous run.
	store := state.NewStore(cfg.StateFile)
	regConfig := registry.DefaultConfig()
	if cfg.Registry.BufferLines > 0 {
		regConfig.BufferLines = cfg.Registry.BufferLines
	}
	if cfg.Registry.ChunkLimit > 0 {
		regConfig.ChunkLimit = cfg.Registry.ChunkLimit
	}
	regConfig.ConfirmWindow = cfg.Registry.ConfirmWindowDuration()
	regConfig.GracePeriod = cfg.Registry.GracePeriodDuration()
	reg := registry.New(nil, store, regConfig)
	if recovered := reg.Restore(); recovered > 0 {
		fmt.Printf("Recovered %d server(s) from %s\n", recovered, reg.StatePath())
	}

	logs := console.NewStore(console.StoreConfig{
		GroupCap:  cfg.Console.GroupCap,
		GlobalCap: cfg.Console.GlobalCap,
	})

	configDir := filepath.Dir(configPath)
	if configDir == "." {
		if absPath, err := filepath.Abs(configPath); err == nil {
			configDir = filepath.Dir(absPath)
		}
	}
	dispatcher := tools.NewDispatcher(reg, logs, cfg.EnvFile, configDir)

	shutdownCh := make(chan struct{})
	shutdownFn := func() {
		close(shutdownCh)
	}

	authEnabled := isAuthRequired(cfg)
	var token string
	if authEnabled {
		token, err = generateToken()
		if err != nil {
			return fmt.Errorf("generating auth token: %w", err)
		}
		if err := saveToken(token); err != nil {
			return fmt.Errorf("saving auth token: %w", err)
		}
	} else if !isLocalhost(cfg.API.Host) && cfg.API.Auth != nil && !*cfg.API.Auth {
		fmt.Fprintf(os.Stderr, "WARNING: Auth disabled while binding to all interfaces (%s)\n", cfg.API.Host)
		fmt.Fprintf(os.Stderr, "         Any network client can control this supervisor.\n")
	}

	handlers := api.NewHandlers(reg, logs, dispatcher, Version, shutdownFn)
	apiServer := api.NewServer(api.ServerConfig{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		AuthEnabled: authEnabled,
		Token:       token,
	}, handlers)

	runtimeState := &daemon.RuntimeState{
		PID:        os.Getpid(),
		Port:       cfg.API.Port,
		Host:       cfg.API.Host,
		StartedAt:  time.Now().UTC(),
		ConfigFile: configPath,
	}
	if err := runtimeState.Write(""); err != nil {
		fmt.Fprintf(os.Stderr, "warning: writing runtime state: %v\n", err)
	}
	defer daemon.RemoveState("")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if isLocalhost(cfg.API.Host) {
		fmt.Printf("API server: http://%s (local only, auth %s)\n", apiServer.Addr(), authLabel(authEnabled))
	} else {
		fmt.Printf("API server: http://%s (network accessible, auth %s)\n", apiServer.Addr(), authLabel(authEnabled))
	}
	if authEnabled {
		fmt.Printf("Auth token saved to: %s\n", tokenPath())
	}
	fmt.Printf("State file: %s\n", reg.StatePath())

	go func() {
		if err := apiServer.Start(); err != nil {
			if !strings.Contains(err.Error(), "Server closed") {
				fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			}
		}
	}()

	if useTUI {
		// The dashboard blocks until quit; ctrl+c quits it too.
		if err := tui.Run(localSource{reg: reg}); err != nil {
			fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		}
	} else {
		select {
		case sig := <-sigCh:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
		case <-shutdownCh:
			fmt.Println("\nShutdown requested via API...")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer shutdownCancel()
	apiServer.Shutdown(shutdownCtx)

	// Signals active servers and persists final state. Anything still
	// alive is reattached by the next supervisor.
	reg.Shutdown()

	fmt.Println("Shutdown complete")
	return nil
}

func authLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
