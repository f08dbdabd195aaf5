// Package discord wraps the Discord session: reminder delivery with a
// dismiss button, slash command handling, and the guild snapshot sync.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"remindbot/internal/clock"
	appLog "remindbot/internal/log"
	"remindbot/internal/message"
	"remindbot/internal/model"
)

// EventStore is the slice of the store the interaction handlers need.
type EventStore interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	MentionsForEvent(ctx context.Context, eventID int64) (model.Mentions, error)
	CreateEvent(ctx context.Context, ev model.Event, userIDs, roleIDs []string) (int64, error)
	DeleteEvent(ctx context.Context, id int64) (model.Event, error)
	UserExists(ctx context.Context, id string) (bool, error)
	RoleExists(ctx context.Context, id string) (bool, error)
	ChannelExists(ctx context.Context, id string) (bool, error)
	UpsertUsers(ctx context.Context, users []model.User) error
	UpsertRoles(ctx context.Context, roles []model.Role) error
	UpsertChannels(ctx context.Context, channels []model.Channel) error
}

// Bot owns the Discord session and its handlers.
type Bot struct {
	session  *discordgo.Session
	store    EventStore
	codec    *clock.Codec
	composer *message.Composer

	guildID string
	// channelID is the default destination for events added via the
	// slash command.
	channelID string
}

// New builds a Bot around a fresh session. Open must be called before
// the bot can receive interactions.
func New(token string, store EventStore, codec *clock.Codec, composer *message.Composer, guildID, channelID string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}

	b := &Bot{
		session:  session,
		store:    store,
		codec:    codec,
		composer: composer,

		guildID:   guildID,
		channelID: channelID,
	}
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Open connects the session and registers the guild slash commands.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	if err := b.registerCommands(); err != nil {
		return err
	}
	appLog.Info("discord session opened", "guild_id", b.guildID)
	return nil
}

// Close shuts the session down.
func (b *Bot) Close() error {
	return b.session.Close()
}

// PostWithDismissButton posts content to a channel together with a
// danger-style delete button whose custom id the interaction handler
// maps back to a delete-by-id action.
func (b *Bot) PostWithDismissButton(channelID, content, customID string) error {
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "削除する",
						Style:    discordgo.DangerButton,
						CustomID: customID,
						Emoji:    &discordgo.ComponentEmoji{Name: "🗑"},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("post to channel %s: %w", channelID, err)
	}
	return nil
}

// registerCommands creates the guild slash commands. Registration is
// idempotent on the Discord side, so this runs on every startup.
func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "events",
			Description: "displays all scheduled events",
		},
		{
			Name:        "add",
			Description: "add an event",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "name of the event",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date",
					Description: "date of the event (YYYY-MM-DDTHH:mm or MM-DDTHH:mm)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionMentionable,
					Name:        "mention",
					Description: "role or user to mention",
					Required:    false,
				},
			},
		},
	}

	appID := b.session.State.User.ID
	for _, cmd := range commands {
		if _, err := b.session.ApplicationCommandCreate(appID, b.guildID, cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
	}
	return nil
}

// ValidateChannel checks that the configured notify channel is known to
// the guild snapshot. Called after SyncGuild at startup.
func (b *Bot) ValidateChannel(ctx context.Context) error {
	ok, err := b.store.ChannelExists(ctx, b.channelID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("notify channel %s is not a channel of guild %s", b.channelID, b.guildID)
	}
	return nil
}

// SyncGuild refreshes the users/roles/channels snapshot tables from the
// guild so mentionable resolution and the admin UI can label IDs.
func (b *Bot) SyncGuild(ctx context.Context) error {
	members, err := b.session.GuildMembers(b.guildID, "", 1000)
	if err != nil {
		return fmt.Errorf("guild members: %w", err)
	}
	users := make([]model.User, 0, len(members))
	for _, m := range members {
		if m.User == nil {
			continue
		}
		users = append(users, model.User{ID: m.User.ID, Name: m.User.Username})
	}
	if err := b.store.UpsertUsers(ctx, users); err != nil {
		return err
	}

	guildRoles, err := b.session.GuildRoles(b.guildID)
	if err != nil {
		return fmt.Errorf("guild roles: %w", err)
	}
	roles := make([]model.Role, 0, len(guildRoles))
	for _, r := range guildRoles {
		roles = append(roles, model.Role{ID: r.ID, Name: r.Name})
	}
	if err := b.store.UpsertRoles(ctx, roles); err != nil {
		return err
	}

	guildChannels, err := b.session.GuildChannels(b.guildID)
	if err != nil {
		return fmt.Errorf("guild channels: %w", err)
	}
	channels := make([]model.Channel, 0, len(guildChannels))
	for _, c := range guildChannels {
		channels = append(channels, model.Channel{ID: c.ID, Name: c.Name})
	}
	if err := b.store.UpsertChannels(ctx, channels); err != nil {
		return err
	}

	appLog.Info("guild snapshot synced",
		"users", len(users), "roles", len(roles), "channels", len(channels))
	return nil
}
