package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JLpython-py/anti-ghostping-bot/detect"
	"github.com/JLpython-py/anti-ghostping-bot/metrics"
	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

type sent struct {
	channelID string
	alert     Alert
}

type fakeSink struct {
	channels map[string]bool
	sent     []sent
	err      error
}

func (f *fakeSink) ChannelExists(_, channelID string) bool { return f.channels[channelID] }

func (f *fakeSink) Send(channelID string, a Alert) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{channelID: channelID, alert: a})
	return nil
}

var deletedAt = time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)

func message() detect.Message {
	return detect.Message{
		ID: "m1", GuildID: "g", ChannelID: "general", ChannelName: "general",
		AuthorID: "u1", AuthorName: "alice", Content: "@everyone gotcha",
		MentionEveryone: true, DeletedAt: deletedAt,
	}
}

var result = detect.Result{
	{Label: detect.LabelRoles, Value: "Mods"},
	{Label: detect.LabelOther, Value: "everyone"},
}

func TestBuildAlertFieldOrder(t *testing.T) {
	a := BuildAlert(message(), result)

	names := make([]string, 0, len(a.Fields))
	for _, f := range a.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Member", "Message", "Channel", detect.LabelRoles, detect.LabelOther}, names)
	assert.Equal(t, "alice", a.Fields[0].Value)
	assert.Equal(t, "@everyone gotcha", a.Fields[1].Value)
	assert.Equal(t, "Detect At: 03/04/21 05:06:07", a.Footer)
	assert.Equal(t, AlertTitle, a.Title)
}

func TestBuildAlertEmptyContentAndTruncation(t *testing.T) {
	msg := message()
	msg.Content = ""
	assert.Equal(t, "(no text)", BuildAlert(msg, result).Fields[1].Value)

	msg.Content = strings.Repeat("x", 5000)
	v := BuildAlert(msg, result).Fields[1].Value
	assert.Len(t, []rune(v), maxFieldValue)
}

func TestSendFallsBackToDeletionChannel(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore(zerolog.Nop())
	require.NoError(t, store.CreateDefaults(ctx, "g"))
	require.NoError(t, store.SetChannel(ctx, "g", "deleted-channel"))

	sink := &fakeSink{channels: map[string]bool{"general": true}}
	d := New(store, sink, zerolog.Nop(), nil)

	require.NoError(t, d.Send(ctx, message(), result))
	require.Len(t, sink.sent, 1)
	assert.Equal(t, "general", sink.sent[0].channelID)
}

func TestSendUsesConfiguredChannel(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore(zerolog.Nop())
	require.NoError(t, store.CreateDefaults(ctx, "g"))
	require.NoError(t, store.SetChannel(ctx, "g", "alerts"))

	sink := &fakeSink{channels: map[string]bool{"general": true, "alerts": true}}
	d := New(store, sink, zerolog.Nop(), nil)

	require.NoError(t, d.Send(ctx, message(), result))
	require.Len(t, sink.sent, 1)
	assert.Equal(t, "alerts", sink.sent[0].channelID)
}

func TestSendEmptyResultSendsNothing(t *testing.T) {
	sink := &fakeSink{}
	d := New(prefs.NewMemoryStore(zerolog.Nop()), sink, zerolog.Nop(), nil)

	require.NoError(t, d.Send(context.Background(), message(), nil))
	assert.Empty(t, sink.sent)
}

func TestSendDeliveryFailureIsSwallowed(t *testing.T) {
	m := metrics.New()
	sink := &fakeSink{err: errors.New("missing permissions")}
	d := New(prefs.NewMemoryStore(zerolog.Nop()), sink, zerolog.Nop(), m)

	assert.NoError(t, d.Send(context.Background(), message(), result))
	assert.Empty(t, sink.sent)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (prefs.GuildPreferences, error) {
	return prefs.GuildPreferences{}, errors.New("connection reset")
}

func TestSendStoreErrorIsReturned(t *testing.T) {
	sink := &fakeSink{channels: map[string]bool{"general": true}}
	d := New(brokenStore{}, sink, zerolog.Nop(), nil)

	assert.Error(t, d.Send(context.Background(), message(), result))
	assert.Empty(t, sink.sent)
}
