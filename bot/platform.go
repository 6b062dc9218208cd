package bot

import (
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/JLpython-py/anti-ghostping-bot/dialog"
	"github.com/JLpython-py/anti-ghostping-bot/notify"
)

// Session is the subset of *discordgo.Session the bot calls.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

var errNotFound = errors.New("not found")

// platform adapts the discord session and state cache to the detect,
// notify and dialog interfaces.
type platform struct {
	sess  Session
	state *discordgo.State
}

func (p *platform) SelfID() string {
	if p.state == nil || p.state.User == nil {
		return ""
	}
	return p.state.User.ID
}

// RoleName resolves through the state cache only; roles arrive with the guild.
func (p *platform) RoleName(guildID, roleID string) (string, error) {
	r, err := p.state.Role(guildID, roleID)
	if err != nil {
		return "", err
	}
	return r.Name, nil
}

// MemberName resolves through the state cache only, so classifying a
// message never hits the REST API. Members are cached by the GuildMembers
// intent.
func (p *platform) MemberName(guildID, userID string) (string, error) {
	m, err := p.state.Member(guildID, userID)
	if err != nil {
		return "", err
	}
	if m.User == nil {
		return "", errNotFound
	}
	return m.DisplayName(), nil
}

// ChannelName returns "" for channels that are gone or belong to another guild.
func (p *platform) ChannelName(guildID, channelID string) string {
	ch, err := p.state.Channel(channelID)
	if err != nil || ch.GuildID != guildID {
		return ""
	}
	return ch.Name
}

func (p *platform) ChannelExists(guildID, channelID string) bool {
	return p.ChannelName(guildID, channelID) != ""
}

func (p *platform) Send(channelID string, a notify.Alert) error {
	fields := make([]*discordgo.MessageEmbedField, 0, len(a.Fields))
	for _, f := range a.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	_, err := p.sess.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:  a.Title,
		Color:  a.Color,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{Text: a.Footer},
	})
	return err
}

func (p *platform) SendPrompt(channelID string, pr dialog.Prompt) (string, error) {
	embed := &discordgo.MessageEmbed{
		Title:       pr.Title,
		Description: pr.Description,
		Color:       promptColor,
	}
	for _, f := range pr.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	if pr.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: pr.Footer}
	}
	msg, err := p.sess.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (p *platform) SendText(channelID, text string) error {
	_, err := p.sess.ChannelMessageSend(channelID, text)
	return err
}

func (p *platform) Delete(channelID, messageID string) error {
	return p.sess.ChannelMessageDelete(channelID, messageID)
}

// IsAdmin reports whether the user holds the Administrator permission in
// the channel. Guild owners always do.
func (p *platform) IsAdmin(guildID, channelID, userID string) bool {
	if g, err := p.state.Guild(guildID); err == nil && g.OwnerID == userID {
		return true
	}
	perms, err := p.sess.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// sendDM opens a direct message channel with the user and posts embed.
func (p *platform) sendDM(userID string, embed *discordgo.MessageEmbed) error {
	ch, err := p.sess.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = p.sess.ChannelMessageSendEmbed(ch.ID, embed)
	return err
}
