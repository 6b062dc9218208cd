// Package prefs owns the per-guild ghost ping preferences.
//
// A guild without a stored record behaves exactly as if it had the default
// record; callers never see a "missing" error.
package prefs

import (
	"context"
	"strings"
)

// Default mention flags applied to new or unknown guilds.
const (
	DefaultEveryone = true
	DefaultRoles    = true
	DefaultMembers  = false
)

// Category is a monitored mention category.
type Category string

const (
	Everyone Category = "everyone"
	Roles    Category = "roles"
	Members  Category = "members"
)

// Categories lists every category in menu order.
var Categories = []Category{Everyone, Roles, Members}

// ParseCategory maps user input (any case) to a Category.
func ParseCategory(in string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(in))); c {
	case Everyone, Roles, Members:
		return c, true
	default:
		return "", false
	}
}

// column returns the storage column for c. Only known categories have one.
func (c Category) column() (string, bool) {
	switch c {
	case Everyone, Roles, Members:
		return string(c), true
	}
	return "", false
}

// GuildPreferences is a snapshot of one guild's settings.
// ChannelID is empty when no notification channel is configured.
type GuildPreferences struct {
	GuildID   string
	Everyone  bool
	Roles     bool
	Members   bool
	ChannelID string
}

// Defaults returns the default record for a guild.
func Defaults(guildID string) GuildPreferences {
	return GuildPreferences{
		GuildID:  guildID,
		Everyone: DefaultEveryone,
		Roles:    DefaultRoles,
		Members:  DefaultMembers,
	}
}

// Enabled reports whether detection for c is on.
func (p GuildPreferences) Enabled(c Category) bool {
	switch c {
	case Everyone:
		return p.Everyone
	case Roles:
		return p.Roles
	case Members:
		return p.Members
	}
	return false
}

// With returns a copy of p with c set to on.
func (p GuildPreferences) With(c Category, on bool) GuildPreferences {
	switch c {
	case Everyone:
		p.Everyone = on
	case Roles:
		p.Roles = on
	case Members:
		p.Members = on
	}
	return p
}

// OnOff renders a flag the way the bot prints it.
func OnOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// Reader fetches a fresh snapshot for a guild.
type Reader interface {
	Get(ctx context.Context, guildID string) (GuildPreferences, error)
}

// Writer applies single-field mutations.
type Writer interface {
	SetMentionFlag(ctx context.Context, guildID string, c Category, on bool) error
	SetChannel(ctx context.Context, guildID, channelID string) error
	ResetToDefaults(ctx context.Context, guildID string) error
}

// Store is the full preference store used by the guild lifecycle hooks.
type Store interface {
	Reader
	Writer
	CreateDefaults(ctx context.Context, guildID string) error
	Delete(ctx context.Context, guildID string) error
	Close() error
}
