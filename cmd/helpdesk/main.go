package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"helpdesk/internal/app"
	"helpdesk/internal/config"
	"helpdesk/internal/domain"
	"helpdesk/internal/httpapi"
	"helpdesk/internal/logging"
	"helpdesk/internal/service"
	"helpdesk/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		k       int
		quiet   bool
		useTUI  bool
		serve   bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/helpdesk/config.yaml if not provided)")
	flag.IntVar(&k, "k", 0, "Maximum number of sources to cite (default from config)")
	flag.BoolVar(&quiet, "quiet", false, "Do not print the sources block")
	flag.BoolVar(&useTUI, "tui", false, "Open the interactive terminal UI")
	flag.BoolVar(&serve, "serve", false, "Serve the HTTP API")
	flag.Parse()
	question := strings.Join(flag.Args(), " ")
	if !useTUI && !serve && strings.TrimSpace(question) == "" {
		fmt.Println("Usage: helpdesk [--config=config.yaml] [--k=2] [--quiet] question...")
		fmt.Println("       helpdesk --tui | --serve")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if k > 0 {
		cfg.Retrieval.K = k
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observer domain.Observer
	if !useTUI && !serve {
		observer = service.NewWriterObserver(os.Stdout)
	}
	deps, err := app.NewDependencies(ctx, cfg, logger, observer)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer deps.Close()

	switch {
	case serve:
		err = runServer(ctx, cfg.Server, deps, logger)
	case useTUI:
		_, err = tea.NewProgram(tui.New(deps.HelpDesk, cfg.Retrieval.K), tea.WithAltScreen()).Run()
	default:
		_, err = deps.HelpDesk.Answer(ctx, question, service.WithVerbose(!quiet))
		if quiet {
			fmt.Println()
		}
	}
	if err != nil {
		_ = deps.Close()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, sc config.ServerConfig, deps *app.Dependencies, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           httpapi.NewRouter(deps.HelpDesk, logger, time.Duration(sc.TimeoutSecs)*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("help desk listening", zap.String("addr", sc.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
