package discord

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"remindbot/internal/clock"
	appLog "remindbot/internal/log"
	"remindbot/internal/model"
	"remindbot/internal/store"
)

// dismissPrefix is the custom id prefix of delete buttons. The suffix is
// the event id.
const dismissPrefix = "delete-"

// ParseDismissCustomID extracts the event id from a dismiss button
// custom id. Reports false for foreign custom ids.
func ParseDismissCustomID(customID string) (int64, bool) {
	rest, found := strings.CutPrefix(customID, dismissPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.onCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.onComponent(ctx, s, i)
	}
}

func (b *Bot) onCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "events":
		b.onEventsCommand(ctx, s, i)
	case "add":
		b.onAddCommand(ctx, s, i, data)
	default:
		b.respondEphemeral(s, i, "Invalid command")
	}
}

// onEventsCommand answers with the chronological event listing.
func (b *Bot) onEventsCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	events, err := b.store.ListEvents(ctx)
	if err != nil {
		appLog.Error("events command: listing failed", err)
		b.respondEphemeral(s, i, "Failed to load events")
		return
	}
	if len(events) == 0 {
		b.respondEphemeral(s, i, "No events registered")
		return
	}

	mentions := make(map[int64]model.Mentions, len(events))
	for _, ev := range events {
		m, err := b.store.MentionsForEvent(ctx, ev.ID)
		if err != nil {
			appLog.Error("events command: mentions load failed", err, "id", ev.ID)
			continue
		}
		mentions[ev.ID] = m
	}

	b.respondEphemeral(s, i, b.composer.EventListing(events, mentions))
}

// onAddCommand validates the date and registers a new normal-policy
// event in the default notify channel.
func (b *Bot) onAddCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	var name, dateText, mentionID string
	for _, opt := range data.Options {
		switch opt.Name {
		case "name":
			name = opt.StringValue()
		case "date":
			dateText = opt.StringValue()
		case "mention":
			mentionID, _ = opt.Value.(string)
		}
	}
	if name == "" || dateText == "" {
		b.respondEphemeral(s, i, "Invalid command")
		return
	}

	date, err := b.codec.Parse(dateText, time.Now())
	if err != nil {
		if errors.Is(err, clock.ErrInvalidFormat) {
			b.respondEphemeral(s, i, "Invalid date format")
			return
		}
		appLog.Error("add command: date parse failed", err)
		b.respondEphemeral(s, i, "Invalid date format")
		return
	}

	userIDs, roleIDs, err := b.resolveMention(ctx, data, mentionID)
	if err != nil {
		appLog.Error("add command: mention resolution failed", err, "mention_id", mentionID)
		b.respondEphemeral(s, i, "Unknown mention target")
		return
	}

	_, err = b.store.CreateEvent(ctx, model.Event{
		Title:     name,
		Date:      date,
		Policy:    model.NotifyNormal,
		ChannelID: b.channelID,
	}, userIDs, roleIDs)
	if err != nil {
		appLog.Error("add command: create failed", err)
		b.respondEphemeral(s, i, "Failed to add event")
		return
	}

	b.respondEphemeral(s, i, "Event added: "+b.codec.Format(date)+": "+name)
}

// resolveMention classifies a mentionable option value as role or user.
// The interaction's resolved maps are authoritative; the guild snapshot
// tables serve as fallback when the payload omits them.
func (b *Bot) resolveMention(ctx context.Context, data discordgo.ApplicationCommandInteractionData, mentionID string) (userIDs, roleIDs []string, err error) {
	if mentionID == "" {
		return nil, nil, nil
	}

	if data.Resolved != nil {
		if _, ok := data.Resolved.Roles[mentionID]; ok {
			return nil, []string{mentionID}, nil
		}
		if _, ok := data.Resolved.Users[mentionID]; ok {
			return []string{mentionID}, nil, nil
		}
	}

	if ok, rerr := b.store.RoleExists(ctx, mentionID); rerr != nil {
		return nil, nil, rerr
	} else if ok {
		return nil, []string{mentionID}, nil
	}
	if ok, uerr := b.store.UserExists(ctx, mentionID); uerr != nil {
		return nil, nil, uerr
	} else if ok {
		return []string{mentionID}, nil, nil
	}
	return nil, nil, errors.New("mention id matches neither a role nor a user")
}

// onComponent handles dismiss button presses.
func (b *Bot) onComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	id, ok := ParseDismissCustomID(data.CustomID)
	if !ok {
		return
	}

	deleted, err := b.store.DeleteEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.respondEphemeral(s, i, "Event not found")
			return
		}
		appLog.Error("dismiss button: delete failed", err, "id", id)
		b.respondEphemeral(s, i, "Failed to delete event")
		return
	}

	b.respondEphemeral(s, i, "Event deleted: "+deleted.Title+" on "+b.codec.Format(deleted.Date))
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		appLog.Error("interaction respond failed", err)
	}
}
