package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

const selfID = "bot"

type fakeRegistry struct {
	roles   map[string]string
	members map[string]string
}

func (r fakeRegistry) SelfID() string { return selfID }

func (r fakeRegistry) RoleName(_, id string) (string, error) {
	if n, ok := r.roles[id]; ok {
		return n, nil
	}
	return "", errors.New("unknown role")
}

func (r fakeRegistry) MemberName(_, id string) (string, error) {
	if n, ok := r.members[id]; ok {
		return n, nil
	}
	return "", errors.New("unknown member")
}

var registry = fakeRegistry{
	roles:   map[string]string{"r1": "Mods", "r2": "Raiders"},
	members: map[string]string{"u1": "alice", "u2": "bob"},
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (prefs.GuildPreferences, error) {
	return prefs.GuildPreferences{}, errors.New("disk on fire")
}

func newStore(t *testing.T, p prefs.GuildPreferences) *prefs.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := prefs.NewMemoryStore(zerolog.Nop())
	require.NoError(t, s.CreateDefaults(ctx, p.GuildID))
	for _, c := range prefs.Categories {
		require.NoError(t, s.SetMentionFlag(ctx, p.GuildID, c, p.Enabled(c)))
	}
	return s
}

func TestClassifyFlagIffEnabledAndMentioned(t *testing.T) {
	for mask := 0; mask < 8; mask++ {
		p := prefs.GuildPreferences{
			GuildID:  "g",
			Everyone: mask&1 != 0,
			Roles:    mask&2 != 0,
			Members:  mask&4 != 0,
		}
		d := New(newStore(t, p), registry, zerolog.Nop(), nil)

		for signals := 0; signals < 8; signals++ {
			msg := Message{ID: "m", GuildID: "g", AuthorID: "u9", MentionEveryone: signals&1 != 0}
			if signals&2 != 0 {
				msg.RoleMentions = []string{"r1"}
			}
			if signals&4 != 0 {
				msg.MemberMentions = []string{"u1"}
			}

			res, err := d.Classify(context.Background(), msg)
			require.NoError(t, err)

			_, gotOther := res.Value(LabelOther)
			_, gotRoles := res.Value(LabelRoles)
			_, gotMembers := res.Value(LabelMembers)
			assert.Equal(t, p.Everyone && msg.MentionEveryone, gotOther, "mask=%d signals=%d", mask, signals)
			assert.Equal(t, p.Roles && len(msg.RoleMentions) > 0, gotRoles, "mask=%d signals=%d", mask, signals)
			assert.Equal(t, p.Members && len(msg.MemberMentions) > 0, gotMembers, "mask=%d signals=%d", mask, signals)
		}
	}
}

func TestClassifySelfAuthoredIsEmpty(t *testing.T) {
	all := prefs.GuildPreferences{GuildID: "g", Everyone: true, Roles: true, Members: true}
	d := New(newStore(t, all), registry, zerolog.Nop(), nil)
	msg := Message{
		GuildID: "g", AuthorID: selfID, MentionEveryone: true,
		RoleMentions: []string{"r1"}, MemberMentions: []string{"u1"},
	}

	res, err := d.Classify(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, res.Empty())

	msg.AuthorID = "other-bot"
	msg.AuthorBot = true
	res, err = d.Classify(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestClassifyOrderAndJoin(t *testing.T) {
	all := prefs.GuildPreferences{GuildID: "g", Everyone: true, Roles: true, Members: true}
	d := New(newStore(t, all), registry, zerolog.Nop(), nil)

	res, err := d.Classify(context.Background(), Message{
		GuildID: "g", AuthorID: "u9", MentionEveryone: true,
		RoleMentions: []string{"r1", "r2"}, MemberMentions: []string{"u2", "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{
		{Label: LabelRoles, Value: "Mods, Raiders"},
		{Label: LabelMembers, Value: "bob, alice"},
		{Label: LabelOther, Value: "everyone"},
	}, res)
}

func TestClassifySkipsUnresolvableIDs(t *testing.T) {
	all := prefs.GuildPreferences{GuildID: "g", Everyone: true, Roles: true, Members: true}
	d := New(newStore(t, all), registry, zerolog.Nop(), nil)

	res, err := d.Classify(context.Background(), Message{
		GuildID: "g", AuthorID: "u9",
		RoleMentions:   []string{"deleted-role", "r2"},
		MemberMentions: []string{"gone"},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{{Label: LabelRoles, Value: "Raiders"}}, res)
}

// A category whose ids all fail to resolve is not flagged, even when enabled.
func TestClassifyDropsCategoryWhenNothingResolves(t *testing.T) {
	all := prefs.GuildPreferences{GuildID: "g", Everyone: true, Roles: true, Members: true}
	d := New(newStore(t, all), registry, zerolog.Nop(), nil)

	res, err := d.Classify(context.Background(), Message{
		GuildID: "g", AuthorID: "u9",
		RoleMentions:   []string{"deleted-role"},
		MemberMentions: []string{"gone", "also-gone"},
	})
	require.NoError(t, err)
	assert.True(t, res.Empty())

	res, err = d.Classify(context.Background(), Message{
		GuildID: "g", AuthorID: "u9",
		RoleMentions:    []string{"deleted-role"},
		MentionEveryone: true,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{{Label: LabelOther, Value: "everyone"}}, res)
}

// Everyone on, roles and members off, role + broadcast mention.
func TestClassifyBroadcastOnly(t *testing.T) {
	p := prefs.GuildPreferences{GuildID: "g", Everyone: true}
	d := New(newStore(t, p), registry, zerolog.Nop(), nil)

	res, err := d.Classify(context.Background(), Message{
		GuildID: "g", AuthorID: "u9", RoleMentions: []string{"r1"}, MentionEveryone: true,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{{Label: LabelOther, Value: "everyone"}}, res)
}

// No record, member mentions only, defaults keep members off.
func TestClassifyMissingRecordUsesDefaults(t *testing.T) {
	d := New(prefs.NewMemoryStore(zerolog.Nop()), registry, zerolog.Nop(), nil)

	res, err := d.Classify(context.Background(), Message{
		GuildID: "unknown", AuthorID: "u9", MemberMentions: []string{"u1", "u2"},
	})
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestClassifyStoreError(t *testing.T) {
	d := New(failingStore{}, registry, zerolog.Nop(), nil)
	_, err := d.Classify(context.Background(), Message{GuildID: "g", AuthorID: "u9", MentionEveryone: true})
	assert.Error(t, err)
}
