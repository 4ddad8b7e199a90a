// Package discord adapts a Discord gateway session to the platform.Client
// capability set.
package discord

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"optinbot/internal/platform"
)

// reactionPageSize is the Discord API maximum for one reactions page.
const reactionPageSize = 100

type Config struct {
	Token string
	// Intents defaults to guild messages + reactions when zero.
	Intents discordgo.Intent
}

// Client wraps a discordgo session behind platform.Client.
type Client struct {
	session *discordgo.Session
	log     zerolog.Logger
	selfID  string
}

// Connect opens the gateway session and resolves the bot's own user id.
func Connect(cfg Config, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	intents := cfg.Intents
	if intents == 0 {
		intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions
	}
	s.Identify.Intents = intents
	// Let the engine see throttling as a typed error instead of the
	// session silently sleeping through it.
	s.ShouldRetryOnRateLimit = false

	if err := s.Open(); err != nil {
		return nil, mapErr(err)
	}
	self, err := s.User("@me")
	if err != nil {
		_ = s.Close()
		return nil, mapErr(err)
	}
	log.Info().Str("bot_user", self.Username).Str("bot_id", self.ID).Msg("discord session opened")
	return &Client{session: s, log: log, selfID: self.ID}, nil
}

func (c *Client) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	return c.session.Close()
}

// BotUserID returns the id of the account this session authenticates as.
func (c *Client) BotUserID() string { return c.selfID }

func (c *Client) ReactingUsers(ctx context.Context, channelID, messageID, emoji string) ([]platform.Reactor, error) {
	var out []platform.Reactor
	after := ""
	for {
		users, err := c.session.MessageReactions(channelID, messageID, emoji,
			reactionPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, mapErr(err)
		}
		for _, u := range users {
			out = append(out, platform.Reactor{
				UserID:   u.ID,
				Username: displayName(u),
				IsBot:    u.Bot || u.ID == c.selfID,
			})
		}
		if len(users) < reactionPageSize {
			return out, nil
		}
		after = users[len(users)-1].ID
	}
}

func (c *Client) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	msg, err := c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr(err)
	}
	return msg.ID, nil
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// mapErr folds discordgo failures into the typed platform error set.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return errors.Join(platform.ErrRateLimited, errors.New("retry after "+rl.RetryAfter.String()))
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			return errors.Join(platform.ErrNotFound, err)
		case http.StatusTooManyRequests:
			return errors.Join(platform.ErrRateLimited, err)
		}
		return errors.Join(platform.ErrUnavailable, err)
	}
	return errors.Join(platform.ErrUnavailable, err)
}
