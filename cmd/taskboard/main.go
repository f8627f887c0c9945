// taskboard is a terminal client for the task board service. It keeps a
// local copy of the board in sync with the server through REST calls and
// the websocket push channel.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/app"
	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/store"
	appsync "github.com/nhle/taskboard/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, logLevel, apiURL, socketURL, metricsListen string

	flagSet := pflag.NewFlagSet("taskboard", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.StringVar(&apiURL, "api-url", "", "REST base URL, overrides server.api_url")
	flagSet.StringVar(&socketURL, "socket-url", "", "websocket URL, overrides server.socket_url")
	flagSet.StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	_, saveErr := model.EnsureConfig(configPath, cfg)
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if apiURL != "" {
		cfg.Server.APIURL = apiURL
	}
	if socketURL != "" {
		cfg.Server.SocketURL = socketURL
	}
	if metricsListen != "" {
		cfg.Metrics.Listen = metricsListen
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if saveErr != nil {
		log.Warn("writing default config failed", zap.String("path", configPath), zap.Error(saveErr))
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	var vault session.Vault
	if v, err := credential.Open(); err != nil {
		log.Warn("keyring unavailable, sessions will not survive restarts", zap.Error(err))
	} else {
		vault = v
	}

	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.Server.APIURL,
		Timeout:    cfg.RequestTimeout(),
		MaxRetries: cfg.Server.MaxRetries,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	transport, err := realtime.NewWSTransport(realtime.WSConfig{
		URL:          cfg.Server.SocketURL,
		Jar:          client.Jar(),
		Reconnect:    cfg.Realtime.Reconnect,
		ReconnectMax: cfg.ReconnectMax(),
		Logger:       log,
	})
	if err != nil {
		return err
	}
	manager := realtime.NewManager(transport, log)
	rooms := realtime.NewRooms(manager, log)
	rooms.Attach(manager)

	updates := appsync.NewUpdates()
	manager.On(realtime.EventConnect, func(json.RawMessage) { updates.Notify() })
	manager.On(realtime.EventDisconnect, func(json.RawMessage) { updates.Notify() })

	tasks := appsync.NewCoordinator(client, rooms, st, updates, log)
	tasks.Attach(manager)
	feed := appsync.NewFeed(client, updates, log)
	feed.Attach(manager)
	projects := appsync.NewProjectCatalog(client, appsync.DefaultPageSize, updates, log)
	poller := appsync.NewFeedPoller(feed, cfg.PollInterval(), log)

	svc := session.NewService(client, manager, st, vault, log)
	svc.OnLogout(func(error) { rooms.Reset() })
	client.OnSessionExpired(svc.Expire)

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	root := app.New(app.Deps{
		Session:   svc,
		Tasks:     tasks,
		Feed:      feed,
		Poller:    poller,
		Projects:  projects,
		Users:     client,
		Logs:      client,
		Details:   client,
		Updates:   updates,
		Connected: manager.Connected,
		Logger:    log,
	})

	log.Info("starting taskboard",
		zap.String("api_url", cfg.Server.APIURL),
		zap.String("socket_url", cfg.Server.SocketURL),
	)
	program := tea.NewProgram(root, tea.WithAltScreen())
	_, err = program.Run()

	if err := manager.Disconnect(); err != nil {
		log.Warn("closing push channel", zap.Error(err))
	}
	return err
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics listener starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener failed", zap.Error(err))
		}
	}()
	return srv
}
