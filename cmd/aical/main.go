package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aical/internal/config"
	"aical/internal/logging"
	"aical/internal/remind"
	"aical/internal/store"
	"aical/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	flags := parseFlags()
	log := logging.New("aical", flags.debug)
	log.Info().Str("version", "0.1.0").Msg("aical starting")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		log.Error().Err(err).Str("config_path", flags.configPath).Msg("failed to load config")
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	log.Info().
		Str("listen", conf.Listen).
		Str("timezone", conf.Timezone).
		Str("db_path", conf.DBPath).
		Int("horizon_days", conf.HorizonDays).
		Str("reminder_cron", conf.ReminderCron).
		Msg("effective config")

	st, err := store.Open(conf.DBPath)
	if err != nil {
		log.Error().Err(err).Str("db_path", conf.DBPath).Msg("failed to open event store")
		os.Exit(1)
	}
	defer st.Close()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("signal received, shutting down")
		cancel()
	}()

	checker := &remind.Checker{
		Events:   st,
		Seen:     remind.NewMemorySeenStore(time.Duration(conf.ReminderExpiryHours) * time.Hour),
		Notifier: &remind.LogNotifier{Log: log},
		Log:      log,
		Horizon:  time.Duration(conf.HorizonDays) * 24 * time.Hour,
	}
	scheduler, err := remind.NewScheduler(conf.ReminderCron, checker, log)
	if err != nil {
		log.Error().Err(err).Str("cron", conf.ReminderCron).Msg("failed to build reminder scheduler")
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := web.NewServer(conf, st, log)
	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", "http://"+conf.Listen).Msg("starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			os.Exit(1)
		}
	}

	log.Info().Msg("aical exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/aical/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Verbose logging with console output")

	flag.Parse()

	return cfg
}
