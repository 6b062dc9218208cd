package prefs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns one fresh store per backend that runs without a server.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := Open(Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "db", "prefs.sqlite")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	mem, err := Open(Config{Driver: "memory"}, zerolog.Nop())
	require.NoError(t, err)

	return map[string]Store{"memory": mem, "sqlite": sqlite}
}

func TestGetUnknownGuildReturnsDefaults(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p, err := s.Get(context.Background(), "404")
			require.NoError(t, err)
			assert.Equal(t, Defaults("404"), p)
		})
	}
}

func TestCreateDefaultsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateDefaults(ctx, "g1"))
			require.NoError(t, s.SetMentionFlag(ctx, "g1", Members, true))
			require.NoError(t, s.SetChannel(ctx, "g1", "c9"))

			// A replayed join must not overwrite the existing record.
			require.NoError(t, s.CreateDefaults(ctx, "g1"))

			p, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.True(t, p.Members)
			assert.Equal(t, "c9", p.ChannelID)
		})
	}
}

func TestResetToDefaults(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateDefaults(ctx, "g1"))
			require.NoError(t, s.SetMentionFlag(ctx, "g1", Everyone, false))
			require.NoError(t, s.SetMentionFlag(ctx, "g1", Roles, false))
			require.NoError(t, s.SetMentionFlag(ctx, "g1", Members, true))
			require.NoError(t, s.SetChannel(ctx, "g1", "c1"))

			require.NoError(t, s.ResetToDefaults(ctx, "g1"))

			p, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, GuildPreferences{GuildID: "g1", Everyone: true, Roles: true, Members: false}, p)
		})
	}
}

func TestSetMentionFlagIsolation(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateDefaults(ctx, "a"))
			require.NoError(t, s.CreateDefaults(ctx, "b"))

			require.NoError(t, s.SetMentionFlag(ctx, "a", Roles, false))

			a, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.False(t, a.Roles)
			assert.True(t, a.Everyone)

			b, err := s.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, Defaults("b"), b)
		})
	}
}

func TestWritesForUnknownGuildAreNoops(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetMentionFlag(ctx, "ghost", Members, true))
			require.NoError(t, s.SetChannel(ctx, "ghost", "c1"))

			p, err := s.Get(ctx, "ghost")
			require.NoError(t, err)
			assert.Equal(t, Defaults("ghost"), p)
		})
	}
}

func TestSetChannelClears(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateDefaults(ctx, "g"))
			require.NoError(t, s.SetChannel(ctx, "g", "c1"))
			require.NoError(t, s.SetChannel(ctx, "g", ""))

			p, err := s.Get(ctx, "g")
			require.NoError(t, err)
			assert.Empty(t, p.ChannelID)
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateDefaults(ctx, "g"))
			require.NoError(t, s.SetMentionFlag(ctx, "g", Everyone, false))
			require.NoError(t, s.Delete(ctx, "g"))

			p, err := s.Get(ctx, "g")
			require.NoError(t, err)
			assert.Equal(t, Defaults("g"), p)

			// Writes after removal are ignored until the guild joins again.
			require.NoError(t, s.SetMentionFlag(ctx, "g", Everyone, false))
			p, err = s.Get(ctx, "g")
			require.NoError(t, err)
			assert.True(t, p.Everyone)
		})
	}
}

func TestUnknownCategory(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.SetMentionFlag(context.Background(), "g", Category("channels"), true)
			assert.ErrorIs(t, err, ErrUnknownCategory)
		})
	}
}

func TestConcurrentGuildsDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const guilds = 8
			var wg sync.WaitGroup
			for i := 0; i < guilds; i++ {
				id := fmt.Sprintf("g%d", i)
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.CreateDefaults(ctx, id))
					for j := 0; j < 10; j++ {
						assert.NoError(t, s.SetMentionFlag(ctx, id, Members, j%2 == 0))
						_, err := s.Get(ctx, id)
						assert.NoError(t, err)
					}
					// Last write (j=9) turned members off; finish with a channel.
					assert.NoError(t, s.SetChannel(ctx, id, "c-"+id))
				}()
			}
			wg.Wait()

			for i := 0; i < guilds; i++ {
				id := fmt.Sprintf("g%d", i)
				p, err := s.Get(ctx, id)
				require.NoError(t, err)
				assert.False(t, p.Members)
				assert.Equal(t, "c-"+id, p.ChannelID)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"everyone", Everyone, true},
		{"ROLES", Roles, true},
		{" Members ", Members, true},
		{"channel", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWithAndEnabled(t *testing.T) {
	p := Defaults("g")
	for _, c := range Categories {
		assert.False(t, p.With(c, false).Enabled(c))
		assert.True(t, p.With(c, true).Enabled(c))
	}
	assert.False(t, p.Enabled(Category("nope")))
	assert.Equal(t, "ON", OnOff(true))
	assert.Equal(t, "OFF", OnOff(false))
}

func TestGuildLocksReleaseEntries(t *testing.T) {
	g := newGuildLocks()
	unlock := g.lock("a")
	unlock()
	assert.Empty(t, g.locks)
}
