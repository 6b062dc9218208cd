package dialog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

// session is one live configuration dialog.
type session struct {
	m      *Manager
	req    Request
	ctx    context.Context
	cancel context.CancelCauseFunc
	inbox  chan Input
	done   chan struct{}
	log    zerolog.Logger

	mu      sync.Mutex
	state   State
	prompts []string
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *session) run() error {
	defer s.cleanup()

	if _, err := s.prompt(menu()); err != nil {
		return err
	}
	for {
		s.setState(AwaitingTopic)
		in, err := s.await(nil)
		if err != nil {
			return err
		}
		s.discard(in)

		topic := strings.ToLower(strings.TrimSpace(in.Content))
		if c, ok := prefs.ParseCategory(topic); ok {
			if err := s.configureMention(c); err != nil {
				return err
			}
			continue
		}
		switch topic {
		case "channel":
			if err := s.configureChannel(); err != nil {
				return err
			}
		case "defaults":
			return s.configureDefaults()
		default:
			return errEnded
		}
	}
}

func (s *session) configureMention(c prefs.Category) error {
	s.setState(AwaitingMentionValue)
	p, err := s.m.store.Get(s.ctx, s.req.GuildID)
	if err != nil {
		return err
	}
	id, err := s.prompt(Prompt{
		Title: fmt.Sprintf("Configure `%s`", c),
		Fields: []Field{
			{Name: "Current Configuration", Value: fmt.Sprintf("`%s`=%s", c, prefs.OnOff(p.Enabled(c)))},
			{Name: "Configure Setting", Value: "ON/OFF"},
		},
	})
	if err != nil {
		return err
	}

	in, err := s.await(func(in Input) bool {
		_, ok := parseOnOff(in.Content)
		return ok
	})
	if err != nil {
		return err
	}
	on, _ := parseOnOff(in.Content)
	s.discard(in)
	if err := s.commit(func(ctx context.Context) error {
		return s.m.store.SetMentionFlag(ctx, s.req.GuildID, c, on)
	}); err != nil {
		return err
	}
	s.dismiss(id)
	s.say(fmt.Sprintf("`%s` configured to %s", c, prefs.OnOff(on)))
	return nil
}

func (s *session) configureChannel() error {
	s.setState(AwaitingChannelMention)
	p, err := s.m.store.Get(s.ctx, s.req.GuildID)
	if err != nil {
		return err
	}
	current := "NOT SET"
	if p.ChannelID != "" {
		if name := s.m.msgr.ChannelName(s.req.GuildID, p.ChannelID); name != "" {
			current = "#" + name
		}
	}
	id, err := s.prompt(Prompt{
		Title: "Configure `channel`",
		Fields: []Field{
			{Name: "Current Configuration", Value: "`channel`=" + current},
			{Name: "Configure Setting", Value: "Mention a channel"},
		},
	})
	if err != nil {
		return err
	}

	in, err := s.await(func(in Input) bool { return len(in.ChannelMentions) == 1 })
	if err != nil {
		return err
	}
	channelID := in.ChannelMentions[0]
	s.discard(in)
	if err := s.commit(func(ctx context.Context) error {
		return s.m.store.SetChannel(ctx, s.req.GuildID, channelID)
	}); err != nil {
		return err
	}
	s.dismiss(id)
	s.say(fmt.Sprintf("`channel` configured to <#%s>", channelID))
	return nil
}

func (s *session) configureDefaults() error {
	s.setState(AwaitingDefaultConfirm)
	if _, err := s.prompt(Prompt{
		Title:       ":x: Set Guild Preferences to Default :x:",
		Description: "Are you sure you want to revert bot preferences to defaults?",
		Footer:      "(y/n)",
	}); err != nil {
		return err
	}

	in, err := s.await(nil)
	if err != nil {
		return err
	}
	s.discard(in)
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(in.Content)), "y") {
		return errEnded
	}
	if err := s.commit(func(ctx context.Context) error {
		return s.m.store.ResetToDefaults(ctx, s.req.GuildID)
	}); err != nil {
		return err
	}
	s.say("Bot preferences reverted to defaults")
	return nil
}

// await blocks until the initiator sends a reply accepted by accept, the
// reply timeout elapses or the session is cancelled. Replies from users who
// are no longer administrators are ignored. A nil accept takes any reply.
func (s *session) await(accept func(Input) bool) (Input, error) {
	timer := time.NewTimer(s.m.timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return Input{}, context.Cause(s.ctx)
		case <-timer.C:
			return Input{}, ErrTimeout
		case in := <-s.inbox:
			if !s.m.auth.IsAdmin(in.GuildID, in.ChannelID, in.AuthorID) {
				s.log.Debug().Str("message_id", in.MessageID).Msg("reply from non-administrator ignored")
				continue
			}
			if accept == nil || accept(in) {
				return in, nil
			}
			s.log.Debug().Str("message_id", in.MessageID).Str("state", s.State().String()).Msg("reply does not qualify, still waiting")
		}
	}
}

// commit applies a preference write unless the session was cancelled.
func (s *session) commit(write func(ctx context.Context) error) error {
	if err := s.ctx.Err(); err != nil {
		return context.Cause(s.ctx)
	}
	if err := write(s.ctx); err != nil {
		return fmt.Errorf("commit preferences for guild %s: %w", s.req.GuildID, err)
	}
	return nil
}

func (s *session) prompt(p Prompt) (string, error) {
	id, err := s.m.msgr.SendPrompt(s.req.ChannelID, p)
	if err != nil {
		return "", fmt.Errorf("send prompt %q: %w", p.Title, err)
	}
	s.mu.Lock()
	s.prompts = append(s.prompts, id)
	s.mu.Unlock()
	return id, nil
}

// dismiss deletes a prompt the dialog no longer needs.
func (s *session) dismiss(id string) {
	s.mu.Lock()
	for i, p := range s.prompts {
		if p == id {
			s.prompts = append(s.prompts[:i], s.prompts[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.delete(id)
}

// discard deletes a user's reply.
func (s *session) discard(in Input) {
	if in.MessageID != "" {
		s.delete(in.MessageID)
	}
}

func (s *session) delete(id string) {
	if err := s.m.msgr.Delete(s.req.ChannelID, id); err != nil {
		s.log.Debug().Err(err).Str("message_id", id).Msg("failed to delete dialog message")
	}
}

func (s *session) say(text string) {
	if err := s.m.msgr.SendText(s.req.ChannelID, text); err != nil {
		s.log.Warn().Err(err).Msg("failed to send confirmation")
	}
}

// cleanup deletes every prompt still posted, however the dialog ended.
func (s *session) cleanup() {
	s.mu.Lock()
	prompts := s.prompts
	s.prompts = nil
	s.state = Idle
	s.mu.Unlock()

	for _, id := range prompts {
		s.delete(id)
	}
}

func menu() Prompt {
	return Prompt{
		Title:       "Bot Preference Configuration",
		Description: "Type a setting name to change it.",
		Fields: []Field{
			{Name: "everyone", Value: "Detect @everyone and @here mentions (ON/OFF)"},
			{Name: "roles", Value: "Detect role mentions (ON/OFF)"},
			{Name: "members", Value: "Detect member mentions (ON/OFF)"},
			{Name: "channel", Value: "Channel that receives ghost ping alerts"},
			{Name: "defaults", Value: "Revert every setting to its default"},
		},
		Footer: "Type 'quit' to quit",
	}
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON":
		return true, true
	case "OFF":
		return false, true
	}
	return false, false
}
