// Package bot routes discord gateway events to ghost ping detection, alert
// delivery and the configuration dialog.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/JLpython-py/anti-ghostping-bot/detect"
	"github.com/JLpython-py/anti-ghostping-bot/dialog"
	"github.com/JLpython-py/anti-ghostping-bot/metrics"
	"github.com/JLpython-py/anti-ghostping-bot/notify"
	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

const (
	embedColor  = 0xFF0000
	promptColor = 0x0000FF

	// Intents needs GuildMembers for mention name resolution and
	// MessageContent for the deleted message body.
	Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	storeTimeout = 10 * time.Second
)

type Options struct {
	Prefix        string
	DialogTimeout time.Duration
	Log           zerolog.Logger
	Metrics       *metrics.Metrics
}

type Bot struct {
	prefix   string
	store    prefs.Store
	platform *platform
	detector *detect.Detector
	notifier *notify.Dispatcher
	dialogs  *dialog.Manager
	log      zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// New wires the components. state is the session's state cache; it must
// keep messages for deleted messages to carry their content.
func New(sess Session, state *discordgo.State, store prefs.Store, opts Options) *Bot {
	log := opts.Log.With().Str("component", "bot").Logger()
	p := &platform{sess: sess, state: state}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		prefix:   opts.Prefix,
		store:    store,
		platform: p,
		detector: detect.New(store, p, opts.Log, opts.Metrics),
		notifier: notify.New(store, p, opts.Log, opts.Metrics),
		dialogs: dialog.NewManager(store, p, p, dialog.Options{
			Timeout: opts.DialogTimeout,
			Log:     opts.Log,
			Metrics: opts.Metrics,
		}),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
}

// Register adds the gateway handlers to s.
func (b *Bot) Register(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, e *discordgo.Ready) {
		b.safe("ready", func() { b.onReady(e) })
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildCreate) {
		b.safe("guild_create", func() { b.onGuildCreate(e) })
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildDelete) {
		b.safe("guild_delete", func() { b.onGuildDelete(e) })
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.MessageCreate) {
		b.safe("message_create", func() { b.onMessageCreate(e) })
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.MessageDelete) {
		b.safe("message_delete", func() { b.onMessageDelete(e) })
	})
}

// Shutdown cancels live dialogs and waits for their prompts to be removed.
func (b *Bot) Shutdown() {
	b.cancel()
	b.dialogs.Shutdown()
}

// safe runs an event handler, turning a panic into an error log.
func (b *Bot) safe(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", event).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
		}
	}()
	fn()
}

func (b *Bot) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, storeTimeout)
}
