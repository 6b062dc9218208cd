// Package notify delivers ghost ping alerts to a guild channel.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JLpython-py/anti-ghostping-bot/detect"
	"github.com/JLpython-py/anti-ghostping-bot/metrics"
	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

const (
	AlertTitle = "Ghost Ping Detected :no_entry_sign: :ghost:"
	AlertColor = 0x0000FF

	// MM/DD/YY HH:MM:SS
	footerLayout = "01/02/06 15:04:05"

	// Discord rejects embed field values longer than this.
	maxFieldValue = 1024
)

// Field is a labelled alert line.
type Field struct {
	Name  string
	Value string
}

// Alert is a rendered notification.
type Alert struct {
	Title  string
	Color  int
	Fields []Field
	Footer string
}

// Sink is the channel-send primitive of the chat platform.
type Sink interface {
	ChannelExists(guildID, channelID string) bool
	Send(channelID string, a Alert) error
}

type Dispatcher struct {
	store   prefs.Reader
	sink    Sink
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(store prefs.Reader, sink Sink, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:   store,
		sink:    sink,
		log:     log.With().Str("component", "notify").Logger(),
		metrics: m,
	}
}

// Destination returns the configured notification channel when it still
// exists in the guild, otherwise the channel the message was deleted from.
func (d *Dispatcher) Destination(ctx context.Context, msg detect.Message) (string, error) {
	p, err := d.store.Get(ctx, msg.GuildID)
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	if p.ChannelID != "" && d.sink.ChannelExists(msg.GuildID, p.ChannelID) {
		return p.ChannelID, nil
	}
	return msg.ChannelID, nil
}

// Send delivers one alert for res. An empty result sends nothing.
// Delivery failures are logged and dropped; they are never retried.
func (d *Dispatcher) Send(ctx context.Context, msg detect.Message, res detect.Result) error {
	if res.Empty() {
		return nil
	}
	dest, err := d.Destination(ctx, msg)
	if err != nil {
		return err
	}
	if err := d.sink.Send(dest, BuildAlert(msg, res)); err != nil {
		d.metrics.Alert("failed")
		d.log.Error().Err(err).
			Str("guild_id", msg.GuildID).
			Str("channel_id", dest).
			Str("message_id", msg.ID).
			Msg("failed to deliver ghost ping alert")
		return nil
	}
	d.metrics.Alert("sent")
	d.log.Info().
		Str("guild_id", msg.GuildID).
		Str("channel_id", dest).
		Str("author_id", msg.AuthorID).
		Int("flags", len(res)).
		Msg("ghost ping alert sent")
	return nil
}

// BuildAlert renders msg and res in field order: Member, Message, Channel,
// then the detection flags.
func BuildAlert(msg detect.Message, res detect.Result) Alert {
	content := msg.Content
	if content == "" {
		content = "(no text)"
	}
	channel := msg.ChannelName
	if channel == "" {
		channel = "<#" + msg.ChannelID + ">"
	}

	fields := make([]Field, 0, 3+len(res))
	fields = append(fields,
		Field{Name: "Member", Value: truncate(msg.AuthorName)},
		Field{Name: "Message", Value: truncate(content)},
		Field{Name: "Channel", Value: truncate(channel)},
	)
	for _, f := range res {
		fields = append(fields, Field{Name: f.Label, Value: truncate(f.Value)})
	}
	return Alert{
		Title:  AlertTitle,
		Color:  AlertColor,
		Fields: fields,
		Footer: "Detect At: " + msg.DeletedAt.Format(footerLayout),
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxFieldValue {
		return s
	}
	return string(r[:maxFieldValue-1]) + "…"
}
