package prefs

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryStore keeps preferences in process memory.
// Records are stored by value so a reader can never observe a half-applied write.
type MemoryStore struct {
	mu     sync.RWMutex
	guilds map[string]GuildPreferences
	log    zerolog.Logger
}

func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{guilds: make(map[string]GuildPreferences), log: log}
}

func (s *MemoryStore) Get(_ context.Context, guildID string) (GuildPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.guilds[guildID]; ok {
		return p, nil
	}
	return Defaults(guildID), nil
}

func (s *MemoryStore) CreateDefaults(_ context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guilds[guildID]; !ok {
		s.guilds[guildID] = Defaults(guildID)
	}
	return nil
}

func (s *MemoryStore) SetMentionFlag(_ context.Context, guildID string, c Category, on bool) error {
	if _, ok := c.column(); !ok {
		return ErrUnknownCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.guilds[guildID]
	if !ok {
		s.log.Warn().Str("guild_id", guildID).Str("category", string(c)).Msg("set mention flag for unknown guild ignored")
		return nil
	}
	s.guilds[guildID] = p.With(c, on)
	return nil
}

func (s *MemoryStore) SetChannel(_ context.Context, guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.guilds[guildID]
	if !ok {
		s.log.Warn().Str("guild_id", guildID).Msg("set channel for unknown guild ignored")
		return nil
	}
	p.ChannelID = channelID
	s.guilds[guildID] = p
	return nil
}

func (s *MemoryStore) ResetToDefaults(_ context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds[guildID] = Defaults(guildID)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guilds, guildID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
