package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/JLpython-py/anti-ghostping-bot/bot"
	"github.com/JLpython-py/anti-ghostping-bot/config"
	"github.com/JLpython-py/anti-ghostping-bot/metrics"
	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

func main() {
	envFile := pflag.String("env-file", ".env", "optional dotenv file loaded before the environment")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

func newLogger(level, format string, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	w := out
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func run(cfg *config.Config, log zerolog.Logger) error {
	store, err := prefs.Open(prefs.Config{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL}, log)
	if err != nil {
		return fmt.Errorf("open preference store: %w", err)
	}
	defer store.Close()

	m := metrics.New()
	srv := newHTTPServer(cfg.Port, m)
	startHTTPServer(srv, log)
	defer stopHTTPServer(srv, log)

	sess, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	sess.Identify.Intents = bot.Intents
	sess.State.MaxMessageCount = cfg.MessageCache

	b := bot.New(sess, sess.State, store, bot.Options{
		Prefix:        cfg.Prefix,
		DialogTimeout: cfg.DialogTimeout,
		Log:           log,
		Metrics:       m,
	})
	b.Register(sess)

	if err := sess.Open(); err != nil {
		return fmt.Errorf("open gateway connection: %w", err)
	}
	log.Info().Str("prefix", cfg.Prefix).Str("store", cfg.DBDriver).Msg("Bot is now online!")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	b.Shutdown()
	if err := sess.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close gateway connection")
	}
	return nil
}
