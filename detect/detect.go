// Package detect classifies deleted messages as ghost pings.
package detect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/JLpython-py/anti-ghostping-bot/metrics"
	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

// Flag labels, in the order they are checked.
const (
	LabelRoles   = "Roles Mentioned"
	LabelMembers = "Members Mentioned"
	LabelOther   = "Other Groups Mentioned"
)

// Message is a deleted message as seen at delete time.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	ChannelName string

	AuthorID   string
	AuthorName string
	AuthorBot  bool

	Content         string
	MemberMentions  []string // raw user ids
	RoleMentions    []string // raw role ids
	MentionEveryone bool

	DeletedAt time.Time
}

// Flag is one detected mention category.
type Flag struct {
	Label string
	Value string
}

// Result is the ordered set of flags for a message. Empty means no ghost ping.
type Result []Flag

func (r Result) Empty() bool { return len(r) == 0 }

// Value returns the value recorded for label.
func (r Result) Value(label string) (string, bool) {
	for _, f := range r {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

// Registry resolves ids against the platform's live member and role state.
type Registry interface {
	SelfID() string
	RoleName(guildID, roleID string) (string, error)
	MemberName(guildID, userID string) (string, error)
}

type Detector struct {
	store   prefs.Reader
	reg     Registry
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(store prefs.Reader, reg Registry, log zerolog.Logger, m *metrics.Metrics) *Detector {
	return &Detector{
		store:   store,
		reg:     reg,
		log:     log.With().Str("component", "detect").Logger(),
		metrics: m,
	}
}

// Classify checks msg against the guild's current preferences.
// It makes a single store read and never retries.
func (d *Detector) Classify(ctx context.Context, msg Message) (Result, error) {
	if msg.AuthorBot || (msg.AuthorID != "" && msg.AuthorID == d.reg.SelfID()) {
		return nil, nil
	}

	p, err := d.store.Get(ctx, msg.GuildID)
	if err != nil {
		return nil, fmt.Errorf("classify message %s: %w", msg.ID, err)
	}

	var res Result
	if p.Roles && len(msg.RoleMentions) > 0 {
		if names := d.resolve(msg, msg.RoleMentions, d.reg.RoleName); names != "" {
			res = append(res, Flag{Label: LabelRoles, Value: names})
			d.metrics.Detection(string(prefs.Roles))
		}
	}
	if p.Members && len(msg.MemberMentions) > 0 {
		if names := d.resolve(msg, msg.MemberMentions, d.reg.MemberName); names != "" {
			res = append(res, Flag{Label: LabelMembers, Value: names})
			d.metrics.Detection(string(prefs.Members))
		}
	}
	if p.Everyone && msg.MentionEveryone {
		res = append(res, Flag{Label: LabelOther, Value: "everyone"})
		d.metrics.Detection(string(prefs.Everyone))
	}
	return res, nil
}

// resolve maps ids to display names, skipping ids that no longer exist.
func (d *Detector) resolve(msg Message, ids []string, lookup func(guildID, id string) (string, error)) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, err := lookup(msg.GuildID, id)
		if err != nil || name == "" {
			d.log.Debug().Err(err).Str("guild_id", msg.GuildID).Str("id", id).Msg("mention not resolvable, skipped")
			continue
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
