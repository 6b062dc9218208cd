// Package dialog runs the interactive, turn-based configuration dialog that
// lets a guild administrator change ghost ping preferences.
//
// A dialog is a session bound to one guild, one initiating user and one
// channel. At most one session is live per guild; starting another cancels
// the pending one, which deletes its prompts before the new menu is posted.
package dialog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JLpython-py/anti-ghostping-bot/metrics"
	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

// DefaultTimeout bounds every wait for a reply.
const DefaultTimeout = 30 * time.Second

var (
	ErrTimeout      = errors.New("dialog timed out waiting for a reply")
	ErrUnauthorized = errors.New("administrator permission required")
	ErrSuperseded   = errors.New("dialog superseded by a newer one")
	ErrShutdown     = errors.New("dialog manager shut down")

	// errEnded marks a dialog the user closed with an unrecognised token or
	// a declined confirmation.
	errEnded = errors.New("dialog ended by user")
)

// State is a configuration dialog state.
type State int

const (
	Idle State = iota
	AwaitingTopic
	AwaitingMentionValue
	AwaitingChannelMention
	AwaitingDefaultConfirm
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingTopic:
		return "awaiting_topic"
	case AwaitingMentionValue:
		return "awaiting_mention_value"
	case AwaitingChannelMention:
		return "awaiting_channel_mention"
	case AwaitingDefaultConfirm:
		return "awaiting_default_confirm"
	}
	return "unknown"
}

// Outcome describes how a dialog ended.
type Outcome string

const (
	Completed Outcome = "completed" // defaults reset confirmed
	Ended     Outcome = "ended"     // closed by the user
	TimedOut  Outcome = "timeout"
	Cancelled Outcome = "cancelled" // superseded or shut down
	Rejected  Outcome = "rejected"  // initiator lacks permission
	Failed    Outcome = "failed"
)

// Request identifies the command that opened a dialog.
type Request struct {
	GuildID   string
	ChannelID string
	UserID    string
	MessageID string
}

// Input is a chat message offered to a live dialog.
type Input struct {
	MessageID       string
	GuildID         string
	ChannelID       string
	AuthorID        string
	Content         string
	ChannelMentions []string
}

type Field struct {
	Name  string
	Value string
}

// Prompt is a message the dialog posts and later deletes.
type Prompt struct {
	Title       string
	Description string
	Fields      []Field
	Footer      string
}

// Messenger posts and removes dialog messages.
type Messenger interface {
	SendPrompt(channelID string, p Prompt) (messageID string, err error)
	SendText(channelID, text string) error
	Delete(channelID, messageID string) error
	// ChannelName returns "" when the channel is unknown.
	ChannelName(guildID, channelID string) string
}

// Authorizer decides who may change preferences.
type Authorizer interface {
	IsAdmin(guildID, channelID, userID string) bool
}

// Preferences is the part of the preference store a dialog reads and writes.
type Preferences interface {
	prefs.Reader
	prefs.Writer
}

type Options struct {
	Timeout time.Duration
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// Manager owns the live sessions, keyed by guild.
type Manager struct {
	store   Preferences
	msgr    Messenger
	auth    Authorizer
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

func NewManager(store Preferences, msgr Messenger, auth Authorizer, opts Options) *Manager {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		store:    store,
		msgr:     msgr,
		auth:     auth,
		timeout:  timeout,
		log:      opts.Log.With().Str("component", "dialog").Logger(),
		metrics:  opts.Metrics,
		sessions: make(map[string]*session),
	}
}

// Run opens a dialog for req and blocks until it ends. Normal endings
// (timeout, user exit, supersede) return a nil error.
func (m *Manager) Run(ctx context.Context, req Request) (Outcome, error) {
	log := m.log.With().Str("guild_id", req.GuildID).Str("user_id", req.UserID).Logger()

	if !m.auth.IsAdmin(req.GuildID, req.ChannelID, req.UserID) {
		if err := m.msgr.SendText(req.ChannelID, "You need the Administrator permission to configure the bot."); err != nil {
			log.Warn().Err(err).Msg("failed to send permission notice")
		}
		m.metrics.Dialog(string(Rejected))
		return Rejected, ErrUnauthorized
	}

	s, prev, err := m.begin(ctx, req, log)
	if err != nil {
		return Cancelled, err
	}
	defer m.end(s)

	if prev != nil {
		log.Debug().Msg("superseding pending configuration dialog")
		select {
		case <-prev.done:
		case <-s.ctx.Done():
			return m.finish(s, context.Cause(s.ctx))
		}
	}
	return m.finish(s, s.run())
}

func (m *Manager) begin(parent context.Context, req Request, log zerolog.Logger) (*session, *session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrShutdown
	}

	ctx, cancel := context.WithCancelCause(parent)
	s := &session{
		m:      m,
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan Input, 16),
		done:   make(chan struct{}),
		log:    log,
	}
	prev := m.sessions[req.GuildID]
	if prev != nil {
		prev.cancel(ErrSuperseded)
	}
	m.sessions[req.GuildID] = s
	m.wg.Add(1)
	return s, prev, nil
}

func (m *Manager) end(s *session) {
	m.mu.Lock()
	if m.sessions[s.req.GuildID] == s {
		delete(m.sessions, s.req.GuildID)
	}
	m.mu.Unlock()

	s.cancel(nil)
	close(s.done)
	m.wg.Done()
}

func (m *Manager) finish(s *session, err error) (Outcome, error) {
	var o Outcome
	switch {
	case err == nil:
		o = Completed
	case errors.Is(err, errEnded):
		o, err = Ended, nil
	case errors.Is(err, ErrTimeout):
		o, err = TimedOut, nil
	case errors.Is(err, ErrSuperseded), errors.Is(err, ErrShutdown), errors.Is(err, context.Canceled):
		o, err = Cancelled, nil
	default:
		o = Failed
	}
	m.metrics.Dialog(string(o))
	if err != nil {
		s.log.Error().Err(err).Msg("configuration dialog failed")
	} else {
		s.log.Debug().Str("outcome", string(o)).Msg("configuration dialog closed")
	}
	return o, err
}

// Feed offers a received message to the guild's live dialog. It reports
// whether the message was taken.
func (m *Manager) Feed(in Input) bool {
	m.mu.Lock()
	s := m.sessions[in.GuildID]
	m.mu.Unlock()
	if s == nil || in.AuthorID != s.req.UserID || in.ChannelID != s.req.ChannelID {
		return false
	}
	select {
	case s.inbox <- in:
		return true
	case <-s.ctx.Done():
		return false
	default:
		s.log.Warn().Str("message_id", in.MessageID).Msg("dialog inbox full, reply dropped")
		return false
	}
}

// Active returns the state of the guild's live dialog.
func (m *Manager) Active(guildID string) (State, bool) {
	m.mu.Lock()
	s := m.sessions[guildID]
	m.mu.Unlock()
	if s == nil {
		return Idle, false
	}
	return s.State(), true
}

// Shutdown cancels every live dialog and waits for their prompts to be
// cleaned up. Later calls to Run fail with ErrShutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	for _, s := range m.sessions {
		s.cancel(ErrShutdown)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
