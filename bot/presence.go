package bot

import "github.com/bwmarrin/discordgo"

// setPresence shows the command prefix as the bot's activity:
// "Ghost Ping Hunting | @.".
func (b *Bot) setPresence() {
	if err := b.platform.sess.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{
			{
				Name: "Ghost Ping Hunting | " + b.prefix,
				Type: discordgo.ActivityTypeGame,
			},
		},
	}); err != nil {
		b.log.Warn().Err(err).Msg("failed to set rich presence")
	}
}
