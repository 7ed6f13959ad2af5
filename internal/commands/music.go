package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"loopmuse/internal/bot"
	"loopmuse/internal/boterr"
)

const (
	defaultHistoryCount = 10
	msgMissingVolume    = "❌ Please provide a volume level between 0 and 100."
)

// Build returns the bot's slash commands bound to c
func Build(c *bot.Controller) []*Command {
	return []*Command{
		{
			Name:        "setchannel",
			Description: "Set the voice channel for the bot to join",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "channel_id",
					Description: "The ID of the voice channel",
					Required:    true,
				},
			},
			Run: func(_ context.Context, opts Options) (string, error) {
				return c.SetChannel(opts.String("channel_id"))
			},
		},
		{
			Name:        "join",
			Description: "Make the bot join the configured voice channel",
			Defer:       true,
			Run: func(ctx context.Context, _ Options) (string, error) {
				return c.Join(ctx)
			},
		},
		{
			Name:        "leave",
			Description: "Make the bot leave the voice channel",
			Run: func(context.Context, Options) (string, error) {
				return c.Leave()
			},
		},
		{
			Name:        "volume",
			Description: "Set the bot's volume (0-100)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "volume",
					Description: "Volume level (0-100)",
					Required:    true,
				},
			},
			Run: func(_ context.Context, opts Options) (string, error) {
				level, ok := opts.Int("volume")
				if !ok {
					return "", boterr.NewValidationError("volume option missing", msgMissingVolume)
				}
				return c.Volume(level)
			},
		},
		{
			Name:        "pause",
			Description: "Pause the current track",
			Run: func(context.Context, Options) (string, error) {
				return c.Pause()
			},
		},
		{
			Name:        "resume",
			Description: "Resume the paused track",
			Run: func(context.Context, Options) (string, error) {
				return c.Resume()
			},
		},
		{
			Name:        "skip",
			Description: "Skip to the next track in the playlist",
			Run: func(context.Context, Options) (string, error) {
				return c.Skip()
			},
		},
		{
			Name:        "nowplaying",
			Description: "Show the track that is playing",
			Run: func(context.Context, Options) (string, error) {
				return c.NowPlaying()
			},
		},
		{
			Name:        "history",
			Description: "Show recently played tracks",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many tracks to show",
					MinValue:    floatPtr(1),
					MaxValue:    50,
				},
			},
			Run: func(_ context.Context, opts Options) (string, error) {
				count, ok := opts.Int("count")
				if !ok {
					count = defaultHistoryCount
				}
				return c.History(count)
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
