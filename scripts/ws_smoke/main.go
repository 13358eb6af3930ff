// Command ws_smoke connects to the service with real credentials,
// optionally joins a room and sends one message, and prints everything
// it receives. Handy for checking tokens and connectivity.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	howlhouse "github.com/howlhouse/howlhouse-go"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	url := flag.String("url", howlhouse.DefaultURL, "websocket address")
	token := flag.String("token", os.Getenv("HOWLBOT_ACCESS_TOKEN"), "access token")
	refresh := flag.String("refresh", os.Getenv("HOWLBOT_REFRESH_TOKEN"), "refresh token")
	room := flag.String("room", "", "room ID to join after connecting")
	text := flag.String("text", "", "message to send after joining")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" || *refresh == "" {
		return fmt.Errorf("both -token and -refresh are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := howlhouse.New(*token, *refresh, howlhouse.WithURL(*url))

	client.RegisterEvent(howlhouse.EventReady, func(ctx context.Context, ev *howlhouse.Event) error {
		log.Printf("ready as %s", ev.User.Username)
		if *room != "" {
			return client.JoinRoom(*room)
		}
		return client.GetTopPublicRooms(0)
	})
	client.RegisterEvent(howlhouse.EventRoomsFetch, func(ctx context.Context, ev *howlhouse.Event) error {
		for _, r := range ev.Rooms {
			log.Printf("room %s  %q (%d inside)", r.ID, r.Name, r.Count)
		}
		return nil
	})
	client.RegisterEvent(howlhouse.EventRoomJoin, func(ctx context.Context, ev *howlhouse.Event) error {
		log.Printf("joined %q (speaker=%v)", ev.Room.Name, ev.AsSpeaker)
		if *text != "" {
			return client.Send(*text)
		}
		return nil
	})
	client.RegisterEvent(howlhouse.EventMessage, func(ctx context.Context, ev *howlhouse.Event) error {
		log.Printf("<%s> %s", ev.Message.Author.Username, ev.Message.Content)
		return nil
	})
	client.RegisterEvent(howlhouse.EventError, func(ctx context.Context, ev *howlhouse.Event) error {
		log.Printf("error: %v", ev.Err)
		return nil
	})

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
