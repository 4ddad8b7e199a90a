package platform

// Package platform defines the narrow chat-platform capability set the
// reminder engine consumes. The concrete client lives in a subpackage and
// is injected; the engine never touches platform globals.

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the channel or message does not exist, or the
	// account lacks access to it.
	ErrNotFound = errors.New("platform: not found")
	// ErrUnavailable means the platform could not be reached.
	ErrUnavailable = errors.New("platform: unavailable")
	// ErrRateLimited means the platform is throttling us; recoverable
	// with backoff.
	ErrRateLimited = errors.New("platform: rate limited")
)

// Reactor is one user who placed a reaction on a message.
type Reactor struct {
	UserID   string
	Username string
	// IsBot marks automated accounts, including our own. Bot reactions
	// are never counted as opt-ins.
	IsBot bool
}

// Client is the collaborator handle injected into the engine.
type Client interface {
	// ReactingUsers lists the users who placed the exact emoji reaction
	// on the message. An emoji with zero reactions yields an empty slice,
	// not an error.
	ReactingUsers(ctx context.Context, channelID, messageID, emoji string) ([]Reactor, error)

	// SendMessage posts text to a channel and returns the new message id.
	SendMessage(ctx context.Context, channelID, text string) (string, error)
}
