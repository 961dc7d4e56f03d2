package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/cactux/cactux/internal/api"
	"github.com/cactux/cactux/internal/chat"
	"github.com/cactux/cactux/internal/config"
	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/ollama"
	"github.com/cactux/cactux/internal/proxy"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "cactux.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func serverURL(addr string) string {
	return "http://" + addr
}

// isHealthy reports whether a server answers /health on addr.
func isHealthy(addr string) bool {
	c := &apiClient{
		baseURL:    serverURL(addr),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	resp, err := c.get(context.Background(), "/health")
	if err != nil {
		return false
	}
	var health struct {
		Status string `json:"status"`
	}
	return decodeJSON(resp, &health) == nil && health.Status == "ok"
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.NewWithFormat(cfg.Log.Format, cfg.Log.Level)
	log.Info().Str("version", version).Msg("starting cactux")

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if isHealthy(cfg.Server.Addr) {
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on %s", cfg.Server.Addr)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := newBackends(cfg, log)
	defer b.Close()

	store, err := b.chatStore(ctx)
	if err != nil {
		return err
	}
	llm := proxy.NewClient(cfg.Model.OpenRouterAPIKey, cfg.Model.BaseURL)
	reg, err := b.registry(ctx, llm)
	if err != nil {
		return err
	}

	orch := chat.NewOrchestrator(store, llm, reg,
		chat.NewTitleGenerator(llm, cfg.Model.TitleModel, log),
		chat.Config{
			Model:      cfg.Model.ChatModel,
			MaxSteps:   cfg.Model.MaxSteps,
			ChunkDelay: cfg.Model.ChunkDelay,
		}, log)

	handler := api.NewHandler(api.Deps{
		Chat:           orch,
		History:        store,
		Token:          cfg.Server.APIToken,
		MaxBodyBytes:   int64(cfg.Server.MaxBodyBytes),
		RequestTimeout: cfg.Server.RequestTimeout,
		Log:            log,
	})
	if cfg.Server.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	if cfg.Server.APIToken == "" {
		log.Warn().Msg("no API token configured, chat endpoints are open")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Bool("h2c", cfg.Server.H2C).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg := config.LoadDefaults()

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("cactux is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("stopping cactux (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to cactux (PID %d)", pid)
	return nil
}

func showStatus() error {
	// Status never needs secrets, so missing keys must not hide it.
	cfg := config.LoadDefaults()

	if isHealthy(cfg.Server.Addr) {
		if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
			printStatus("Server", "running on %s (PID %d)", cfg.Server.Addr, pid)
		} else {
			printStatus("Server", "running on %s", cfg.Server.Addr)
		}
	} else {
		printStatus("Server", "stopped")
	}

	printStatus("Chat model", "%s", cfg.Model.ChatModel)
	printStatus("Storage", "%s", cfg.Storage.Driver)
	printStatus("Vectors", "%s", cfg.Vector.Backend)

	switch cfg.Embedding.Provider {
	case config.ProviderOllama:
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ollama.New(cfg.Embedding.OllamaBaseURL).IsRunning(ctx) {
			printStatus("Embeddings", "ollama %s at %s", cfg.Embedding.OllamaModel, cfg.Embedding.OllamaBaseURL)
		} else {
			printStatus("Embeddings", "ollama not running at %s", cfg.Embedding.OllamaBaseURL)
		}
	default:
		printStatus("Embeddings", "%s %s", cfg.Embedding.Provider, cfg.Embedding.Model)
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
