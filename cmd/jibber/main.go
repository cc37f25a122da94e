package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"jibber/internal/assistant"
	"jibber/internal/chat"
	"jibber/internal/config"
	"jibber/internal/media"
	"jibber/internal/notify"
	"jibber/internal/persist"
	"jibber/internal/reply"
	"jibber/internal/web"
)

var rootCmd = &cobra.Command{
	Use:   "jibber",
	Short: "Single-user messenger demo with simulated contacts",
	RunE:  runServe,
}

var (
	flagConfig       string
	flagAddr         string
	flagDataPath     string
	flagAssistantURL string
	flagNoSeed       bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "path to YAML config file")
	flags.StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides config)")
	flags.StringVar(&flagDataPath, "data-path", "", "directory to persist state via PebbleDB (overrides config)")
	flags.StringVar(&flagAssistantURL, "assistant-url", "", "text-generation service base URL (overrides config)")
	flags.BoolVar(&flagNoSeed, "no-seed", false, "start with an empty chat list instead of demo contacts")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute jibber command")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagDataPath != "" {
		cfg.DataPath = flagDataPath
	}
	if flagAssistantURL != "" {
		cfg.Assistant.URL = flagAssistantURL
	}
	if flagNoSeed {
		cfg.Seed = false
	}

	db, err := persist.Open(cfg.DataPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.DataPath).Msg("[jibber] open store failed; running in memory only")
		db = nil
	}

	store := chat.NewStore(db)
	if snap := db.LoadSnapshot(); snap != nil {
		store.Restore(snap)
		log.Info().Int("chats", len(snap.Chats)).Msg("[jibber] state restored")
	} else {
		if err := store.SetTheme(cfg.Theme); err != nil {
			return err
		}
		if cfg.Seed {
			store.Seed()
			log.Info().Msg("[jibber] seeded demo contacts")
		}
	}

	var gen reply.Generator
	if cfg.Assistant.URL != "" {
		gen = assistant.NewClient(cfg.Assistant.URL, cfg.Assistant.Model, cfg.Assistant.Timeout.Std())
		log.Info().Str("url", cfg.Assistant.URL).Str("model", cfg.Assistant.Model).Msg("[jibber] assistant enabled")
	}
	sim := reply.NewSimulator(store, gen)

	presenter := notify.NewPresenter(store, db, cfg.Notify.Cap, cfg.Notify.TTL.Std())
	srv := web.NewServer(store, sim, presenter, media.NewStore(db))

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Info().Str("addr", cfg.Addr).Msg("[jibber] serving")
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[jibber] http stopped")
			stop()
		}
	}()

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("[jibber] http server shutdown error")
		}
	}()

	<-ctx.Done()
	srv.CloseConns()
	sim.Wait()
	if err := db.Close(); err != nil {
		log.Warn().Err(err).Msg("[jibber] store close error")
	}
	log.Info().Msg("[jibber] shutdown complete")
	return nil
}
