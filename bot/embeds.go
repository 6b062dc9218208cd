package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/JLpython-py/anti-ghostping-bot/prefs"
)

func joinEmbed(g *discordgo.Guild, prefix string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Thank you for choosing the Anti-GhostPing bot!",
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Added to Guild", Value: fmt.Sprintf("%s (%s)", g.Name, g.ID)},
			{Name: "Defaults", Value: "Detecting `everyone` and `roles` mentions. Alerts go to the channel the message was deleted in."},
			{Name: "Configure", Value: fmt.Sprintf("Run `%sconfigure` in your server to change what is detected and where alerts go.", prefix)},
			{Name: "Help", Value: fmt.Sprintf("`%shelp` lists every command.", prefix)},
		},
	}
}

func removeEmbed(g *discordgo.Guild) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "We are sorry to see you go!",
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Removed from Guild", Value: fmt.Sprintf("%s (%s)", g.Name, g.ID)},
			{Name: "Preferences", Value: "The bot preferences for this guild have been deleted."},
		},
	}
}

func preferencesEmbed(title string, p prefs.GuildPreferences, channel string) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(prefs.Categories)+1)
	for _, c := range prefs.Categories {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   string(c),
			Value:  prefs.OnOff(p.Enabled(c)),
			Inline: true,
		})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "channel", Value: channel, Inline: true})
	return &discordgo.MessageEmbed{Title: title, Color: embedColor, Fields: fields}
}

func helpEmbed(prefix string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Help",
		Description: "Available commands",
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: prefix + "configure", Value: "Open the interactive configuration menu (administrators only)\nAliases: `config`, `c`"},
			{Name: prefix + "configure <everyone|roles|members> <ON|OFF>", Value: "Turn detection of one mention type on or off"},
			{Name: prefix + "configure channel #channel", Value: "Send ghost ping alerts to a channel"},
			{Name: prefix + "preferences", Value: "Show this guild's preferences\nAliases: `prefs`, `p`"},
			{Name: prefix + "help", Value: "Shows this message"},
		},
	}
}
