package howlhouse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// CommandHandler runs a chat command. A returned error is wrapped in a
// CommandError and funneled to on_error.
type CommandHandler func(ctx context.Context, inv *Invocation) error

// Command declares a chat command: its canonical name, aliases,
// cooldown window, parameter specs, and handler.
type Command struct {
	Name     string
	Aliases  []string
	Cooldown time.Duration
	Params   []Param
	Handler  CommandHandler
}

// Invocation is one command execution: the triggering message, its
// author, and the converted arguments in declaration order.
type Invocation struct {
	Client  *Client
	Command string
	Message *Message
	Author  User
	Args    []Arg
}

// commandTable holds registered commands and the cooldown ledger.
// Names and aliases share one case-insensitive namespace; registration
// rejects any collision, so lookup can never be ambiguous.
type commandTable struct {
	mu      sync.RWMutex
	byName  map[string]*Command
	byAlias map[string]string // alias -> canonical name

	cdMu      sync.Mutex
	cooldowns map[string]time.Time // command+user -> last invocation
	now       func() time.Time
}

func newCommandTable() *commandTable {
	return &commandTable{
		byName:    make(map[string]*Command),
		byAlias:   make(map[string]string),
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// RegisterCommand registers a command. The name and every alias must
// be unused across all existing names and aliases; on collision it
// fails with ErrCommandAlreadyDefined and leaves prior registrations
// intact.
func (c *Client) RegisterCommand(cmd Command) error {
	return c.commands.register(cmd)
}

// MustRegisterCommand is RegisterCommand that panics on error, for
// setup-time registration where a collision is a programming mistake.
func (c *Client) MustRegisterCommand(cmd Command) {
	if err := c.commands.register(cmd); err != nil {
		panic(err)
	}
}

func (t *commandTable) register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command with empty name")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}

	name := strings.ToLower(cmd.Name)
	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		aliases = append(aliases, strings.ToLower(a))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Validate everything before touching the table so a rejected
	// registration has no partial effect.
	for _, candidate := range append([]string{name}, aliases...) {
		if _, taken := t.byName[candidate]; taken {
			return fmt.Errorf("%w: %q", ErrCommandAlreadyDefined, candidate)
		}
		if _, taken := t.byAlias[candidate]; taken {
			return fmt.Errorf("%w: %q", ErrCommandAlreadyDefined, candidate)
		}
	}
	seen := map[string]struct{}{name: {}}
	for _, a := range aliases {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: %q", ErrCommandAlreadyDefined, a)
		}
		seen[a] = struct{}{}
	}

	stored := cmd
	stored.Name = name
	stored.Aliases = aliases
	t.byName[name] = &stored
	for _, a := range aliases {
		t.byAlias[a] = name
	}
	return nil
}

// lookup resolves a case-insensitive token against names first, then
// aliases.
func (t *commandTable) lookup(token string) *Command {
	key := strings.ToLower(token)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if cmd, ok := t.byName[key]; ok {
		return cmd
	}
	if canonical, ok := t.byAlias[key]; ok {
		return t.byName[canonical]
	}
	return nil
}

// reserveCooldown atomically checks and records an invocation for the
// (command, user) key. When the key is still cooling down it reports
// the remaining window. The returned rollback undoes the record if
// argument conversion later fails, so a rejected invocation does not
// burn the user's window.
func (t *commandTable) reserveCooldown(command, userID string, window time.Duration) (time.Duration, func(), bool) {
	key := command + "\x00" + userID
	now := t.now()

	t.cdMu.Lock()
	defer t.cdMu.Unlock()

	prev, had := t.cooldowns[key]
	if had {
		if elapsed := now.Sub(prev); elapsed < window {
			return window - elapsed, nil, false
		}
	}
	t.cooldowns[key] = now
	rollback := func() {
		t.cdMu.Lock()
		defer t.cdMu.Unlock()
		if had {
			t.cooldowns[key] = prev
		} else {
			delete(t.cooldowns, key)
		}
	}
	return 0, rollback, true
}

// routeMessage is the command pipeline for one inbound chat message:
// prefix check, name resolution, cooldown, argument conversion, and
// handler invocation. Failures are funneled to on_error; a message
// matching no prefix is simply ignored.
func (c *Client) routeMessage(ctx context.Context, msg *Message) {
	content := msg.Content
	for _, prefix := range c.opts.prefixes {
		if !strings.HasPrefix(content, prefix) || len(content) <= len(prefix) {
			continue
		}
		rest := content[len(prefix):]
		if rest[0] == ' ' {
			// The prefix must be immediately followed by the command token.
			continue
		}

		if err := c.invokeCommand(ctx, msg, strings.Fields(rest)); err != nil {
			c.reportError(ctx, EventMessage, err)
		}
		return
	}
}

func (c *Client) invokeCommand(ctx context.Context, msg *Message, tokens []string) error {
	name := strings.ToLower(tokens[0])
	def := c.commands.lookup(name)
	if def == nil {
		return &CommandError{Command: name, Err: fmt.Errorf("%w: %q", ErrCommandNotFound, name)}
	}

	var rollback func()
	if def.Cooldown > 0 {
		remaining, rb, ok := c.commands.reserveCooldown(def.Name, msg.Author.ID, def.Cooldown)
		if !ok {
			c.emit(ctx, &Event{
				Name: EventCooldownTrigger,
				Cooldown: &CooldownTrigger{
					Command:   def.Name,
					Remaining: remaining,
					Message:   msg,
				},
			})
			return nil
		}
		rollback = rb
	}

	args, err := c.convertArgs(def, tokens[1:])
	if err != nil {
		if rollback != nil {
			rollback()
		}
		return &CommandError{Command: def.Name, Err: err}
	}

	inv := &Invocation{
		Client:  c,
		Command: def.Name,
		Message: msg,
		Author:  msg.Author,
		Args:    args,
	}

	defer func() {
		if r := recover(); r != nil {
			c.reportError(ctx, EventMessage, &CommandError{
				Command: def.Name,
				Err:     fmt.Errorf("handler panicked: %v", r),
			})
		}
	}()
	if err := def.Handler(ctx, inv); err != nil {
		return &CommandError{Command: def.Name, Err: err}
	}
	return nil
}
