package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/JLpython-py/anti-ghostping-bot/dialog"
	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

const notAdminText = "You need the Administrator permission to configure the bot."

var channelMentionRE = regexp.MustCompile(`<#(\d+)>`)

// channelMentions returns the channel ids mentioned in content, in order.
func channelMentions(content string) []string {
	var ids []string
	for _, m := range channelMentionRE.FindAllStringSubmatch(content, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

// runCommand handles a prefixed command. It reports false for names it does
// not know, so the message can still reach a live dialog.
func (b *Bot) runCommand(m *discordgo.Message, cmd string, args []string) bool {
	switch cmd {
	case "configure", "config", "c":
		b.configure(m, args)
	case "preferences", "prefs", "p":
		b.showPreferences(m)
	case "help":
		b.help(m)
	default:
		return false
	}
	return true
}

// configure applies "configure <everyone|roles|members> <ON|OFF>" and
// "configure channel #channel" directly and opens the interactive dialog
// for anything else.
func (b *Bot) configure(m *discordgo.Message, args []string) {
	log := b.log.With().Str("guild_id", m.GuildID).Str("user_id", m.Author.ID).Logger()

	if len(args) > 0 && b.configureOneShot(m, args) {
		return
	}

	outcome, err := b.dialogs.Run(b.ctx, dialog.Request{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		MessageID: m.ID,
	})
	switch {
	case errors.Is(err, dialog.ErrUnauthorized):
		log.Debug().Msg("configure rejected, not an administrator")
	case err != nil:
		log.Error().Err(err).Str("outcome", string(outcome)).Msg("configuration dialog failed")
	}
}

func (b *Bot) configureOneShot(m *discordgo.Message, args []string) bool {
	setting := strings.ToLower(args[0])
	c, isMention := prefs.ParseCategory(setting)

	var write func(context.Context) error
	var confirm string
	switch {
	case isMention && len(args) > 1 && isOnOff(args[1]):
		on := strings.EqualFold(args[1], "on")
		write = func(ctx context.Context) error { return b.store.SetMentionFlag(ctx, m.GuildID, c, on) }
		confirm = fmt.Sprintf("`%s` configured to %s", c, prefs.OnOff(on))
	case setting == "channel":
		ids := channelMentions(strings.Join(args[1:], " "))
		if len(ids) == 0 {
			return false
		}
		channelID := ids[0]
		write = func(ctx context.Context) error { return b.store.SetChannel(ctx, m.GuildID, channelID) }
		confirm = fmt.Sprintf("`channel` configured to <#%s>", channelID)
	default:
		return false
	}

	if !b.platform.IsAdmin(m.GuildID, m.ChannelID, m.Author.ID) {
		b.reply(m.ChannelID, notAdminText)
		return true
	}
	ctx, cancel := b.storeCtx()
	defer cancel()
	if err := write(ctx); err != nil {
		b.log.Error().Err(err).Str("guild_id", m.GuildID).Msg("failed to update preferences")
		b.reply(m.ChannelID, "Failed to update preferences, please try again later.")
		return true
	}
	b.reply(m.ChannelID, confirm)
	return true
}

func isOnOff(s string) bool {
	return strings.EqualFold(s, "on") || strings.EqualFold(s, "off")
}

func (b *Bot) showPreferences(m *discordgo.Message) {
	ctx, cancel := b.storeCtx()
	defer cancel()
	p, err := b.store.Get(ctx, m.GuildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", m.GuildID).Msg("failed to read preferences")
		b.reply(m.ChannelID, "Failed to read preferences, please try again later.")
		return
	}

	title := "Preferences"
	if g, err := b.platform.state.Guild(m.GuildID); err == nil {
		title = "Preferences for " + g.Name
	}
	if _, err := b.platform.sess.ChannelMessageSendEmbed(m.ChannelID, preferencesEmbed(title, p, b.channelLabel(p))); err != nil {
		b.log.Warn().Err(err).Str("guild_id", m.GuildID).Msg("failed to send preferences")
	}
}

func (b *Bot) channelLabel(p prefs.GuildPreferences) string {
	if p.ChannelID == "" {
		return "NOT SET"
	}
	if name := b.platform.ChannelName(p.GuildID, p.ChannelID); name != "" {
		return "#" + name
	}
	return "<#" + p.ChannelID + ">"
}

func (b *Bot) help(m *discordgo.Message) {
	if _, err := b.platform.sess.ChannelMessageSendEmbed(m.ChannelID, helpEmbed(b.prefix)); err != nil {
		b.log.Warn().Err(err).Msg("failed to send help")
	}
}

func (b *Bot) reply(channelID, text string) {
	if err := b.platform.SendText(channelID, text); err != nil {
		b.log.Warn().Err(err).Str("channel_id", channelID).Msg("failed to send reply")
	}
}
