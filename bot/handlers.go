package bot

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/JLpython-py/anti-ghostping-bot/detect"
	"github.com/JLpython-py/anti-ghostping-bot/dialog"
)

func (b *Bot) onReady(e *discordgo.Ready) {
	ev := b.log.Info().Int("guilds", len(e.Guilds))
	if e.User != nil {
		ev = ev.Str("user", e.User.Username)
	}
	ev.Msg("connected to gateway")
	b.setPresence()
}

// onGuildCreate fires for every guild on connect and for new joins. Default
// preferences are inserted either way; only guilds joined after startup get
// the welcome message.
func (b *Bot) onGuildCreate(e *discordgo.GuildCreate) {
	if e.Guild == nil || e.Unavailable {
		return
	}
	ctx, cancel := b.storeCtx()
	defer cancel()
	if err := b.store.CreateDefaults(ctx, e.ID); err != nil {
		b.log.Error().Err(err).Str("guild_id", e.ID).Msg("failed to create default preferences")
	}
	if e.JoinedAt.Before(b.started) {
		return
	}
	b.log.Info().Str("guild_id", e.ID).Str("guild", e.Name).Msg("joined guild")
	if err := b.platform.sendDM(e.OwnerID, joinEmbed(e.Guild, b.prefix)); err != nil {
		b.log.Warn().Err(err).Str("guild_id", e.ID).Msg("failed to send welcome message")
	}
}

// onGuildDelete removes a guild's preferences when the bot leaves it.
// Outages arrive as Unavailable and are ignored.
func (b *Bot) onGuildDelete(e *discordgo.GuildDelete) {
	if e.Guild == nil || e.Unavailable {
		return
	}
	ctx, cancel := b.storeCtx()
	defer cancel()
	if err := b.store.Delete(ctx, e.ID); err != nil {
		b.log.Error().Err(err).Str("guild_id", e.ID).Msg("failed to delete preferences")
	}
	b.log.Info().Str("guild_id", e.ID).Msg("removed from guild")

	if e.BeforeDelete == nil || e.BeforeDelete.OwnerID == "" {
		return
	}
	if err := b.platform.sendDM(e.BeforeDelete.OwnerID, removeEmbed(e.BeforeDelete)); err != nil {
		b.log.Warn().Err(err).Str("guild_id", e.ID).Msg("failed to send farewell message")
	}
}

// onMessageDelete checks a deleted message for ghost pings. Only messages
// still in the state cache can be inspected.
func (b *Bot) onMessageDelete(e *discordgo.MessageDelete) {
	deletedAt := time.Now()
	m := e.BeforeDelete
	if m == nil {
		b.log.Debug().Str("message_id", e.ID).Msg("deleted message not cached, skipped")
		return
	}
	guildID := e.GuildID
	if guildID == "" {
		guildID = m.GuildID
	}
	if guildID == "" || m.Author == nil {
		return
	}

	msg := b.deletedMessage(guildID, m, deletedAt)
	ctx, cancel := b.storeCtx()
	defer cancel()

	res, err := b.detector.Classify(ctx, msg)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Str("message_id", m.ID).Msg("failed to classify deleted message")
		return
	}
	if err := b.notifier.Send(ctx, msg, res); err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Str("message_id", m.ID).Msg("failed to dispatch alert")
	}
}

func (b *Bot) deletedMessage(guildID string, m *discordgo.Message, deletedAt time.Time) detect.Message {
	msg := detect.Message{
		ID:              m.ID,
		GuildID:         guildID,
		ChannelID:       m.ChannelID,
		ChannelName:     b.platform.ChannelName(guildID, m.ChannelID),
		AuthorID:        m.Author.ID,
		AuthorName:      m.Author.Username,
		AuthorBot:       m.Author.Bot,
		Content:         m.Content,
		RoleMentions:    m.MentionRoles,
		MentionEveryone: m.MentionEveryone,
		DeletedAt:       deletedAt,
	}
	if name, err := b.platform.MemberName(guildID, m.Author.ID); err == nil {
		msg.AuthorName = name
	}
	for _, u := range m.Mentions {
		msg.MemberMentions = append(msg.MemberMentions, u.ID)
	}
	return msg
}

func (b *Bot) onMessageCreate(e *discordgo.MessageCreate) {
	if e.Author == nil || e.Author.Bot || e.GuildID == "" {
		return
	}
	if cmd, args, ok := b.parseCommand(e.Content); ok {
		if b.runCommand(e.Message, cmd, args) {
			return
		}
	}
	b.dialogs.Feed(dialog.Input{
		MessageID:       e.ID,
		GuildID:         e.GuildID,
		ChannelID:       e.ChannelID,
		AuthorID:        e.Author.ID,
		Content:         e.Content,
		ChannelMentions: channelMentions(e.Content),
	})
}

// parseCommand splits "<prefix>name args..." into a lower-cased name and
// its arguments.
func (b *Bot) parseCommand(content string) (string, []string, bool) {
	if b.prefix == "" || !strings.HasPrefix(content, b.prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
