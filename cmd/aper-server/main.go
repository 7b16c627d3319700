package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamsocket/aper/engine/server"
	"github.com/jamsocket/aper/pkg/log"
	"github.com/jamsocket/aper/pkg/metrics"
	"github.com/jamsocket/aper/pkg/persist"
	"github.com/jamsocket/aper/pkg/tasklist"
	"github.com/jamsocket/aper/transport/duplex"
	"github.com/jamsocket/aper/transport/grpchealth"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aper-server",
	Short: "Aper server - authoritative state synchronization",
	Long: `Aper server hosts the authoritative store for a shared task list
and synchronizes it to every connected client over a duplex connection.

Clients apply their own edits optimistically; the server is the single
source of truth and every client converges to it.`,
	Version: Version,
	RunE:    runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Aper server version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("config", "", "YAML config file (flags override file values)")
	rootCmd.Flags().String("listen-addr", ":7480", "Sync listen address")
	rootCmd.Flags().String("health-addr", ":9090", "HTTP health/metrics listen address")
	rootCmd.Flags().String("grpc-health-addr", ":7481", "gRPC health listen address")
	rootCmd.Flags().String("data-dir", "./data", "Directory for the persisted snapshot database")
	rootCmd.Flags().Duration("snapshot-interval", 30*time.Second, "How often to persist the authoritative snapshot")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// Config mirrors the serve flags for file-based deployment.
type Config struct {
	ListenAddr       string        `yaml:"listenAddr"`
	HealthAddr       string        `yaml:"healthAddr"`
	GRPCHealthAddr   string        `yaml:"grpcHealthAddr"`
	DataDir          string        `yaml:"dataDir"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

func loadConfig(cmd *cobra.Command) (Config, error) {
	cfg := Config{
		ListenAddr:       ":7480",
		HealthAddr:       ":9090",
		GRPCHealthAddr:   ":7481",
		DataDir:          "./data",
		SnapshotInterval: 30 * time.Second,
	}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Explicit flags override the file.
	if cmd.Flags().Changed("listen-addr") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen-addr")
	}
	if cmd.Flags().Changed("health-addr") {
		cfg.HealthAddr, _ = cmd.Flags().GetString("health-addr")
	}
	if cmd.Flags().Changed("grpc-health-addr") {
		cfg.GRPCHealthAddr, _ = cmd.Flags().GetString("grpc-health-addr")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("snapshot-interval") {
		cfg.SnapshotInterval, _ = cmd.Flags().GetDuration("snapshot-interval")
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.WithComponent("aper-server")

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := persist.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	version, leaves, err := db.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	engine := server.NewFrom(tasklist.Apply, tasklist.Decode, version, leaves)
	engine.SetLogger(log.WithComponent("server-engine"))
	logger.Info().Uint64("version", version).Int("leaves", len(leaves)).Msg("store loaded")

	srv := duplex.NewServer(engine)
	srv.SetLogger(log.WithComponent("duplex"))

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	healthSrv := grpchealth.New()
	grpcLn, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCHealthAddr, err)
	}
	go func() {
		if err := healthSrv.Serve(grpcLn); err != nil {
			logger.Error().Err(err).Msg("grpc health server stopped")
		}
	}()

	go func() {
		if err := serveHTTP(cfg.HealthAddr, srv); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health http server stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	healthSrv.SetServing(true)
	logger.Info().Str("addr", cfg.ListenAddr).Msg("serving")

	saveSnapshot := func() {
		w := srv.Welcome()
		if err := db.SaveSnapshot(w.Version, w.Snapshot); err != nil {
			logger.Error().Err(err).Msg("failed to persist snapshot")
			return
		}
		logger.Debug().Uint64("version", w.Version).Msg("snapshot persisted")
	}

	ticker := time.NewTicker(cfg.SnapshotInterval)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			saveSnapshot()
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			healthSrv.SetServing(false)
			saveSnapshot()
			srv.Close()
			healthSrv.Stop()
			return nil
		case err := <-errCh:
			healthSrv.SetServing(false)
			saveSnapshot()
			return err
		}
	}
}

// serveHTTP exposes /health, /ready, and /metrics the way an operator
// expects from a long-running daemon.
func serveHTTP(addr string, srv *duplex.Server) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now(),
			"version":   Version,
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ready",
			"timestamp":     time.Now(),
			"store_version": srv.Version(),
		})
	})
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return httpServer.ListenAndServe()
}
