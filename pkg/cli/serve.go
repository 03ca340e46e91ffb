package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/httpmock/httpmock/pkg/config"
	"github.com/httpmock/httpmock/pkg/engine"
	"github.com/httpmock/httpmock/pkg/logging"
)

var (
	servePort         int
	serveExpose       bool
	serveHistoryLimit int
	serveMockDir      string
	serveHTTPS        bool
	serveCACertFile   string
	serveCAKeyFile    string
	serveLogLevel     string
	serveLogFormat    string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Start the mock server.

By default, the server binds 127.0.0.1 on the port named by HTTPMOCK_PORT
(5000 when unset). Port 0 asks the OS for a free port. Test suites connect
with connect() or connect_from_env() and configure stubs over the
control-plane API under /__httpmock__/.`,
	Example: `  # Start with defaults
  httpmock serve

  # Start on a fixed port, reachable from other machines
  httpmock serve --port 5000 --expose

  # Serve static stubs from disk
  httpmock serve --mock-dir ./stubs/

  # Enable HTTPS with a custom CA
  httpmock serve --https --ca-cert ca.pem --ca-key ca.key`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.PortFromEnv(), "Port to listen on (0 = OS-assigned)")
	serveCmd.Flags().BoolVar(&serveExpose, "expose", false, "Bind 0.0.0.0 instead of 127.0.0.1")
	serveCmd.Flags().IntVar(&serveHistoryLimit, "history-limit", 100, "Maximum request history entries")
	serveCmd.Flags().StringVar(&serveMockDir, "mock-dir", "", "Directory of static stub files loaded at start")
	serveCmd.Flags().BoolVar(&serveHTTPS, "https", false, "Accept TLS connections on the same port")
	serveCmd.Flags().StringVar(&serveCACertFile, "ca-cert", "", "Path to the CA certificate used to sign minted certificates (PEM)")
	serveCmd.Flags().StringVar(&serveCAKeyFile, "ca-key", "", "Path to the CA private key (PEM)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "Log format (text, json)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveHTTPS && (serveCACertFile == "" || serveCAKeyFile == "") {
		return fmt.Errorf("--https requires both --ca-cert and --ca-key")
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(serveLogLevel),
		Format: logging.ParseFormat(serveLogFormat),
	})

	cfg := &config.ServerConfig{
		Port:          servePort,
		Expose:        serveExpose,
		HistoryLimit:  serveHistoryLimit,
		StaticMockDir: serveMockDir,
	}
	if serveHTTPS {
		cfg.TLS = &config.TLSConfig{
			Enabled:    true,
			CACertFile: serveCACertFile,
			CAKeyFile:  serveCAKeyFile,
		}
	}

	server := engine.NewServer(cfg, engine.WithLogger(log))
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start mock server: %w", err)
	}

	fmt.Printf("Mock server running on http://%s\n", server.Addr())
	if serveHTTPS {
		fmt.Printf("TLS enabled on the same port (https://%s)\n", server.Addr())
	}
	fmt.Println("Press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
