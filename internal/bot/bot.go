package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/ruesquiz/internal/daily"
	"github.com/susu3304/ruesquiz/internal/logger"
)

// leaderboardSize is how many rows fit comfortably in one Discord message.
const leaderboardSize = 10

// LeaderboardSource is the part of daily.Service the bot needs.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, date string, limit int) (*daily.Leaderboard, error)
}

type Bot struct {
	session *discordgo.Session
	boards  LeaderboardSource
}

func New(token string, boards LeaderboardSource) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session: session,
		boards:  boards,
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	logger.Success("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	logger.Info("%s is connected!", event.User.Username)

	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			logger.Error("Failed to register commands for guild %s: %v", guild.ID, err)
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	if err := b.registerGuildCommands(event.ID); err != nil {
		logger.Error("Failed to register commands for guild %s: %v", event.ID, err)
	}
}

func (b *Bot) registerGuildCommands(guildID string) error {
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, commandDefinitions())
	if err != nil {
		return err
	}
	logger.Debug("Registered application commands for guild %s", guildID)
	return nil
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "daily",
			Description: "Défi quotidien des rues de Marseille",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "leaderboard",
					Description: "Affiche le classement du jour",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "date",
							Description: "Date au format AAAA-MM-JJ (par défaut aujourd'hui)",
							Required:    false,
						},
					},
				},
			},
		},
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "daily" || len(data.Options) == 0 {
		return
	}

	sub := data.Options[0]
	switch sub.Name {
	case "leaderboard":
		var date string
		for _, opt := range sub.Options {
			if opt.Name == "date" {
				date = strings.TrimSpace(opt.StringValue())
			}
		}
		b.respond(s, i, b.leaderboardMessage(date))
	}
}

func (b *Bot) leaderboardMessage(date string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	board, err := b.boards.Leaderboard(ctx, date, leaderboardSize)
	if err != nil {
		if date != "" {
			if _, perr := daily.ParseDateKey(date); perr != nil {
				return "Date invalide, utilisez le format AAAA-MM-JJ."
			}
		}
		logger.Error("Failed to load leaderboard for discord: %v", err)
		return "Impossible de charger le classement."
	}
	return FormatLeaderboard(board)
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
	if err != nil {
		logger.Error("Failed to respond to interaction: %v", err)
	}
}
