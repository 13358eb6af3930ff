package howlhouse

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func chatMessage(author User, content string) *Message {
	return &Message{ID: "m1", Author: author, Content: content}
}

func TestRoutePrefixRules(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	invoked := make(chan string, 4)
	c.MustRegisterCommand(Command{
		Name: "ping",
		Handler: func(ctx context.Context, inv *Invocation) error {
			invoked <- inv.Message.Content
			return nil
		},
	})
	errs := collect(c, EventError)

	author := User{ID: "u1", Username: "alpha"}
	// No prefix, bare prefix, and prefix followed by a space are all
	// silently ignored.
	c.routeMessage(ctx, chatMessage(author, "ping"))
	c.routeMessage(ctx, chatMessage(author, "!"))
	c.routeMessage(ctx, chatMessage(author, "! ping"))
	select {
	case got := <-invoked:
		t.Fatalf("handler ran for %q", got)
	default:
	}
	mustNoEvent(t, errs)

	c.routeMessage(ctx, chatMessage(author, "!ping"))
	select {
	case <-invoked:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestRouteMultiplePrefixes(t *testing.T) {
	c, _ := newTestClient(t)
	c.opts.prefixes = []string{"!", "?"}

	invoked := make(chan struct{}, 2)
	c.MustRegisterCommand(Command{
		Name: "ping",
		Handler: func(ctx context.Context, inv *Invocation) error {
			invoked <- struct{}{}
			return nil
		},
	})

	author := User{ID: "u1"}
	c.routeMessage(context.Background(), chatMessage(author, "?ping"))
	select {
	case <-invoked:
	case <-time.After(2 * time.Second):
		t.Fatal("alternate prefix not honored")
	}
}

func TestUnknownCommandFunnelsToError(t *testing.T) {
	c, _ := newTestClient(t)
	errs := collect(c, EventError)

	c.routeMessage(context.Background(), chatMessage(User{ID: "u1"}, "!nope"))

	ev := mustEvent(t, errs)
	var cmdErr *CommandError
	if !errors.As(ev.Err, &cmdErr) {
		t.Fatalf("error = %v, want CommandError", ev.Err)
	}
	if cmdErr.Command != "nope" || !errors.Is(ev.Err, ErrCommandNotFound) {
		t.Fatalf("error = %v", ev.Err)
	}
}

func TestAliasNameCollisionScenario(t *testing.T) {
	c, _ := newTestClient(t)

	got := make(chan Invocation, 1)
	c.MustRegisterCommand(Command{
		Name:    "foo",
		Aliases: []string{"bar"},
		Params:  []Param{{Name: "arg", Type: ParamString}},
		Handler: func(ctx context.Context, inv *Invocation) error {
			got <- *inv
			return nil
		},
	})

	// "bar" is taken as an alias now, in both roles.
	if err := c.RegisterCommand(Command{
		Name:    "bar",
		Handler: func(ctx context.Context, inv *Invocation) error { return nil },
	}); !errors.Is(err, ErrCommandAlreadyDefined) {
		t.Fatalf("name collision = %v, want ErrCommandAlreadyDefined", err)
	}
	if err := c.RegisterCommand(Command{
		Name:    "baz",
		Aliases: []string{"FOO"},
		Handler: func(ctx context.Context, inv *Invocation) error { return nil },
	}); !errors.Is(err, ErrCommandAlreadyDefined) {
		t.Fatalf("alias collision = %v, want ErrCommandAlreadyDefined", err)
	}
	// The rejected registration left nothing behind.
	if c.commands.lookup("baz") != nil {
		t.Fatal("rejected registration leaked into the table")
	}

	// "!foo bar": the second "bar" is an argument, not the alias.
	c.routeMessage(context.Background(), chatMessage(User{ID: "u1"}, "!foo bar"))
	select {
	case inv := <-got:
		if inv.Command != "foo" {
			t.Fatalf("command = %q, want foo", inv.Command)
		}
		if len(inv.Args) != 1 || inv.Args[0].Str != "bar" {
			t.Fatalf("args = %+v, want one string %q", inv.Args, "bar")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	// The alias still resolves to the canonical command.
	c.routeMessage(context.Background(), chatMessage(User{ID: "u1"}, "!BAR baz"))
	select {
	case inv := <-got:
		if inv.Command != "foo" || inv.Args[0].Str != "baz" {
			t.Fatalf("alias invocation = %+v", inv)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alias handler never ran")
	}
}

func TestRegisterRejectsDuplicateAliasWithin(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.RegisterCommand(Command{
		Name:    "foo",
		Aliases: []string{"bar", "bar"},
		Handler: func(ctx context.Context, inv *Invocation) error { return nil },
	})
	if !errors.Is(err, ErrCommandAlreadyDefined) {
		t.Fatalf("duplicate alias = %v, want ErrCommandAlreadyDefined", err)
	}
	if c.commands.lookup("foo") != nil {
		t.Fatal("rejected registration left the name behind")
	}
}

func TestCooldownExactlyOnce(t *testing.T) {
	c, _ := newTestClient(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.commands.now = func() time.Time { return now }

	invoked := make(chan string, 8)
	c.MustRegisterCommand(Command{
		Name:     "roll",
		Cooldown: 10 * time.Second,
		Handler: func(ctx context.Context, inv *Invocation) error {
			invoked <- inv.Author.ID
			return nil
		},
	})
	cooled := collect(c, EventCooldownTrigger)

	ctx := context.Background()
	alice := User{ID: "u1", Username: "alice"}
	bob := User{ID: "u2", Username: "bob"}

	c.routeMessage(ctx, chatMessage(alice, "!roll"))
	c.routeMessage(ctx, chatMessage(alice, "!roll"))
	if got := <-invoked; got != "u1" {
		t.Fatalf("handler ran for %q", got)
	}
	ev := mustEvent(t, cooled)
	if ev.Cooldown == nil || ev.Cooldown.Command != "roll" || ev.Cooldown.Remaining <= 0 {
		t.Fatalf("cooldown event = %+v", ev.Cooldown)
	}
	select {
	case got := <-invoked:
		t.Fatalf("handler ran again for %q during cooldown", got)
	default:
	}

	// Cooldowns are per user.
	c.routeMessage(ctx, chatMessage(bob, "!roll"))
	if got := <-invoked; got != "u2" {
		t.Fatalf("handler ran for %q, want u2", got)
	}

	// The window is measured from the last accepted invocation.
	now = now.Add(11 * time.Second)
	c.routeMessage(ctx, chatMessage(alice, "!roll"))
	if got := <-invoked; got != "u1" {
		t.Fatalf("handler ran for %q after window expiry", got)
	}
}

func TestCooldownNotBurnedByConversionFailure(t *testing.T) {
	c, _ := newTestClient(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.commands.now = func() time.Time { return now }

	invoked := make(chan struct{}, 2)
	c.MustRegisterCommand(Command{
		Name:     "bet",
		Cooldown: time.Minute,
		Params:   []Param{{Name: "amount", Type: ParamInt}},
		Handler: func(ctx context.Context, inv *Invocation) error {
			invoked <- struct{}{}
			return nil
		},
	})
	errs := collect(c, EventError)
	cooled := collect(c, EventCooldownTrigger)

	ctx := context.Background()
	author := User{ID: "u1"}

	c.routeMessage(ctx, chatMessage(author, "!bet lots"))
	ev := mustEvent(t, errs)
	if !errors.Is(ev.Err, ErrNotEnoughArguments) {
		t.Fatalf("error = %v, want ErrNotEnoughArguments", ev.Err)
	}

	// The failed invocation must not have started the window.
	c.routeMessage(ctx, chatMessage(author, "!bet 5"))
	select {
	case <-invoked:
	case <-time.After(2 * time.Second):
		t.Fatal("valid invocation blocked by a rolled-back cooldown")
	}
	mustNoEvent(t, cooled)
}

func TestHandlerErrorWrappedAsCommandError(t *testing.T) {
	c, _ := newTestClient(t)
	cause := fmt.Errorf("backend unavailable")
	c.MustRegisterCommand(Command{
		Name: "fail",
		Handler: func(ctx context.Context, inv *Invocation) error {
			return cause
		},
	})
	errs := collect(c, EventError)

	c.routeMessage(context.Background(), chatMessage(User{ID: "u1"}, "!fail"))

	ev := mustEvent(t, errs)
	var cmdErr *CommandError
	if !errors.As(ev.Err, &cmdErr) || cmdErr.Command != "fail" {
		t.Fatalf("error = %v", ev.Err)
	}
	if !errors.Is(ev.Err, cause) {
		t.Fatalf("error %v does not wrap the handler error", ev.Err)
	}
}

func TestHandlerPanicFunnelsToError(t *testing.T) {
	c, _ := newTestClient(t)
	c.MustRegisterCommand(Command{
		Name: "boom",
		Handler: func(ctx context.Context, inv *Invocation) error {
			panic("kaput")
		},
	})
	errs := collect(c, EventError)

	c.routeMessage(context.Background(), chatMessage(User{ID: "u1"}, "!boom"))

	ev := mustEvent(t, errs)
	var cmdErr *CommandError
	if !errors.As(ev.Err, &cmdErr) || cmdErr.Command != "boom" {
		t.Fatalf("error = %v", ev.Err)
	}
}

func TestMustRegisterCommandPanicsOnCollision(t *testing.T) {
	c, _ := newTestClient(t)
	c.MustRegisterCommand(Command{
		Name:    "foo",
		Handler: func(ctx context.Context, inv *Invocation) error { return nil },
	})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	c.MustRegisterCommand(Command{
		Name:    "foo",
		Handler: func(ctx context.Context, inv *Invocation) error { return nil },
	})
}
