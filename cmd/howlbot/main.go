// Command howlbot runs a small example bot: it logs every chat message
// it sees to a local SQLite database and answers a few commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	howlhouse "github.com/howlhouse/howlhouse-go"
	"github.com/howlhouse/howlhouse-go/internal/config"
	"github.com/howlhouse/howlhouse-go/internal/log"
	"github.com/howlhouse/howlhouse-go/internal/store"
	"github.com/howlhouse/howlhouse-go/internal/store/sqlite"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "howlbot",
		Short: "Example HowlHouse chat bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	bootLog := log.New("info")

	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	logger := log.New(cfg.LogLevel)

	if cfg.AccessToken == "" || cfg.RefreshToken == "" {
		return fmt.Errorf("access_token and refresh_token must be set in %s", path)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	opts := []howlhouse.Option{
		howlhouse.WithPrefixes(cfg.Prefix...),
		howlhouse.WithMuted(cfg.Muted),
		howlhouse.WithHeartbeatInterval(cfg.HeartbeatInterval),
		howlhouse.WithRoomsRefreshInterval(cfg.RoomsRefreshInterval),
		howlhouse.WithLogger(logger),
	}
	if cfg.URL != "" {
		opts = append(opts, howlhouse.WithURL(cfg.URL))
	}
	if cfg.Room != "" {
		opts = append(opts, howlhouse.WithRoom(cfg.Room))
	}

	client := howlhouse.New(cfg.AccessToken, cfg.RefreshToken, opts...)
	registerEvents(client, st, logger)
	if err := registerCommands(client, st); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("starting howlbot")
	if err := client.Run(ctx); err != nil {
		return fmt.Errorf("client exited: %w", err)
	}
	logger.Info().Msg("howlbot stopped")
	return nil
}

func registerEvents(client *howlhouse.Client, st store.Store, logger *zerolog.Logger) {
	client.RegisterEvent(howlhouse.EventReady, func(ctx context.Context, ev *howlhouse.Event) error {
		logger.Info().Str("username", ev.User.Username).Msg("logged in")
		return nil
	})

	client.RegisterEvent(howlhouse.EventRoomJoin, func(ctx context.Context, ev *howlhouse.Event) error {
		if ev.Room != nil {
			logger.Info().Str("room", ev.Room.Name).Bool("as_speaker", ev.AsSpeaker).Msg("joined room")
		}
		return nil
	})

	client.RegisterEvent(howlhouse.EventMessage, func(ctx context.Context, ev *howlhouse.Event) error {
		msg := ev.Message
		roomID := ""
		if room := client.Cache().Room(); room != nil {
			roomID = room.ID
		}
		_, err := st.LogMessage(ctx, store.MessageRecord{
			RoomID:   roomID,
			UserID:   msg.Author.ID,
			Username: msg.Author.Username,
			Content:  msg.Content,
			SentAt:   msg.SentAt,
		})
		return err
	})

	client.RegisterEvent(howlhouse.EventCooldownTrigger, func(ctx context.Context, ev *howlhouse.Event) error {
		cd := ev.Cooldown
		return client.Send(fmt.Sprintf("%s, `%s` is on cooldown for another %s.",
			cd.Message.Author.Mention(), cd.Command, cd.Remaining.Round(time.Second)))
	})

	client.RegisterEvent(howlhouse.EventError, func(ctx context.Context, ev *howlhouse.Event) error {
		logger.Warn().Err(ev.Err).Msg("client error")
		return nil
	})
}

func registerCommands(client *howlhouse.Client, st store.Store) error {
	commands := []howlhouse.Command{
		{
			Name:     "ping",
			Aliases:  []string{"pong"},
			Cooldown: 5 * time.Second,
			Handler: func(ctx context.Context, inv *howlhouse.Invocation) error {
				return client.Send(fmt.Sprintf("pong, %s!", inv.Author.Mention()))
			},
		},
		{
			Name: "echo",
			Params: []howlhouse.Param{
				{Name: "text", Type: howlhouse.ParamString, Rest: true},
			},
			Handler: func(ctx context.Context, inv *howlhouse.Invocation) error {
				return client.Send(inv.Args[0].Str)
			},
		},
		{
			Name:    "seen",
			Aliases: []string{"lastseen"},
			Params: []howlhouse.Param{
				{Name: "who", Type: howlhouse.ParamString},
			},
			Handler: func(ctx context.Context, inv *howlhouse.Invocation) error {
				who := inv.Args[0].Str
				seen, ok, err := st.LastSeen(ctx, who)
				if err != nil {
					return err
				}
				if !ok {
					return client.Send(fmt.Sprintf("I have never seen %s speak.", who))
				}
				return client.Send(fmt.Sprintf("%s last spoke at %s.", who, seen.Format(time.RFC822)))
			},
		},
		{
			Name: "rooms",
			Handler: func(ctx context.Context, inv *howlhouse.Invocation) error {
				rooms := client.Cache().Rooms()
				return client.Send(fmt.Sprintf("I know about %d public rooms.", len(rooms)))
			},
		},
	}

	for _, cmd := range commands {
		if err := client.RegisterCommand(cmd); err != nil {
			return err
		}
	}
	return nil
}
