// Package commands turns chat messages into key lifecycle calls. It is the
// only path the chat front-end has into the service.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"keygate/internal/license"
)

// Issuer is the subset of license.Lifecycle the dispatcher needs.
type Issuer interface {
	Generate(ctx context.Context, count, durationDays int) ([]string, error)
	Activate(ctx context.Context, keyID, ownerID string) (license.LicenseKey, error)
}

// Lookup is the read side of the registry.
type Lookup interface {
	FindByOwner(ownerID string) (license.LicenseKey, bool)
	Stats() license.Stats
}

// Command is one chat message from UserID.
type Command struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Reply is sent back to the chat. Private replies go only to the caller.
type Reply struct {
	Text    string `json:"text"`
	Private bool   `json:"private"`
}

// Dispatcher routes commands.
type Dispatcher struct {
	Issuer    Issuer
	Lookup    Lookup
	IsAdmin   func(userID string) bool
	PublicURL string
}

// Handle parses and runs a command. Usage and lifecycle failures come back
// as replies; only unexpected errors are returned.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) (Reply, error) {
	fields := strings.Fields(cmd.Text)
	if len(fields) == 0 {
		return private("Send `help` for a list of commands."), nil
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "!"))
	args := fields[1:]

	switch name {
	case "help":
		return private(helpText), nil
	case "generate":
		return d.generate(ctx, cmd.UserID, args)
	case "redeem", "activate":
		return d.redeem(ctx, cmd.UserID, args)
	case "script", "getscript":
		return d.script(cmd.UserID), nil
	case "stats":
		s := d.Lookup.Stats()
		return Reply{Text: fmt.Sprintf("Total keys: %d\nActive keys: %d", s.Total, s.Activated)}, nil
	}
	return private(fmt.Sprintf("Unknown command %q. Send `help` for a list of commands.", name)), nil
}

const helpText = "Commands:\n" +
	"`redeem <key>` activate a key for your account\n" +
	"`script` get your loader script\n" +
	"`stats` key statistics\n" +
	"`generate <count> <days>` create keys (admins only)"

func (d *Dispatcher) generate(ctx context.Context, userID string, args []string) (Reply, error) {
	if d.IsAdmin == nil || !d.IsAdmin(userID) {
		return private("❌ Only administrators can generate keys."), nil
	}
	if len(args) != 2 {
		return private("Usage: `generate <count> <days>`"), nil
	}
	count, err1 := strconv.Atoi(args[0])
	durationDays, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return private("Usage: `generate <count> <days>`"), nil
	}

	ids, err := d.Issuer.Generate(ctx, count, durationDays)
	if err != nil {
		if reply, ok := errorReply(err); ok {
			return reply, nil
		}
		return Reply{}, err
	}
	return private(fmt.Sprintf("✅ Generated %d key(s) for %d day(s):\n```\n%s\n```", len(ids), durationDays, strings.Join(ids, "\n"))), nil
}

func (d *Dispatcher) redeem(ctx context.Context, userID string, args []string) (Reply, error) {
	if len(args) != 1 {
		return private("Usage: `redeem <key>`"), nil
	}
	key, err := d.Issuer.Activate(ctx, args[0], userID)
	if err != nil {
		if reply, ok := errorReply(err); ok {
			return reply, nil
		}
		return Reply{}, err
	}
	return private(fmt.Sprintf("✅ Key activated! Valid until %s.\nSend `script` to get your loader.", key.ExpiresAt.Format("2006-01-02"))), nil
}

func (d *Dispatcher) script(userID string) Reply {
	key, ok := d.Lookup.FindByOwner(userID)
	if !ok {
		return private("❌ You have no activated keys!")
	}
	return private(LoaderSnippet(key.ID, d.PublicURL))
}

// LoaderSnippet is the script a user pastes to load the payload with key.
func LoaderSnippet(keyID, publicURL string) string {
	return fmt.Sprintf("getgenv().Key = %q\nloadstring(game:HttpGet(%q, true))()", keyID, publicURL+"/auth")
}

func errorReply(err error) (Reply, bool) {
	var lerr *license.Error
	if !errors.As(err, &lerr) {
		return Reply{}, false
	}
	var msg string
	switch lerr {
	case license.ErrNotFound, license.ErrInvalidKey:
		msg = "❌ Invalid key!"
	case license.ErrAlreadyActivated:
		msg = "❌ This key has already been activated!"
	case license.ErrOwnerAlreadyBound:
		msg = "❌ You already have an active key!"
	case license.ErrInvalidCount:
		msg = "❌ Count is out of range."
	case license.ErrInvalidDuration:
		msg = "❌ Duration must be at least one day."
	default:
		msg = "❌ " + lerr.Message
	}
	return private(msg), true
}

func private(text string) Reply {
	return Reply{Text: text, Private: true}
}
