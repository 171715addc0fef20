package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhvanip/nagarseva/internal/alerts"
	"github.com/dhvanip/nagarseva/internal/bot"
	botdiscord "github.com/dhvanip/nagarseva/internal/bot/discord"
	"github.com/dhvanip/nagarseva/internal/broadcast"
	"github.com/dhvanip/nagarseva/internal/classify"
	"github.com/dhvanip/nagarseva/internal/config"
	"github.com/dhvanip/nagarseva/internal/dashboard"
	"github.com/dhvanip/nagarseva/internal/db"
	"github.com/dhvanip/nagarseva/internal/geocode"
	"github.com/dhvanip/nagarseva/internal/intake"
	"github.com/dhvanip/nagarseva/internal/media"
	"github.com/dhvanip/nagarseva/internal/repo"
	"github.com/dhvanip/nagarseva/internal/session"
	"github.com/dhvanip/nagarseva/internal/transcribe"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the intake bot and the operations dashboard",
		Long:  "Connects the citizen messaging transport, processes complaints, and serves the dashboard API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to NagarSeva config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for %s from %s\n", cfg.City, configPath)

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	repository := repo.New(gormDB)

	mediaStore, err := media.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxSizeMB)
	if err != nil {
		return err
	}

	sessions := session.NewStore(time.Duration(cfg.Bot.SessionTTLMin) * time.Minute)
	hub := broadcast.NewHub(time.Duration(cfg.Dashboard.PingIntervalSec) * time.Second)

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	orch, err := intake.New(intake.Opts{
		Sessions:           sessions,
		Repo:               repository,
		Media:              mediaStore,
		Hub:                hub,
		Geocoder:           createGeocoder(cfg),
		Transcriber:        createTranscriber(cfg),
		Alerts:             createNotifier(cfg),
		Wards:              classify.NewWardResolver(classify.RandomFallback(cfg.Wards.Count)),
		WardOfficer:        cfg.WardOfficer,
		MaxPhotosPerReport: cfg.Bot.MaxPhotosPerReport,
		MinAlertSeverity:   cfg.Alerts.MinSeverity,
		GeocodeTimeout:     time.Duration(cfg.Geocode.TimeoutSec) * time.Second,
		VoiceTimeout:       time.Duration(cfg.Voice.TimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}

	dash, err := dashboard.New(dashboard.Opts{
		Repo:       repository,
		Sessions:   sessions,
		Hub:        hub,
		JWTSecret:  cfg.Dashboard.JWTSecret,
		TokenTTL:   time.Duration(cfg.Dashboard.TokenTTLHours) * time.Hour,
		Port:       cfg.Dashboard.Port,
		UploadsDir: mediaStore.Root(),
		Out:        out,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(out, "Shutting down...")
		cancel()
	}()

	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()
	hub.Publish(broadcast.Event{
		Type: broadcast.TypeBotStatus,
		Data: map[string]string{"status": "connected", "transport": cfg.Bot.Transport},
	})
	fmt.Fprintf(out, "Bot transport %q connected\n", cfg.Bot.Transport)

	sweeper, err := startSweeps(cfg, sessions, mediaStore)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dash.Start(ctx) })
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		err := orch.Run(ctx, adapter)
		hub.Publish(broadcast.Event{
			Type: broadcast.TypeBotStatus,
			Data: map[string]string{"status": "disconnected", "transport": cfg.Bot.Transport},
		})
		return err
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// startSweeps schedules the expired-session sweep and the staged-media sweep.
func startSweeps(cfg *config.Config, sessions *session.Store, mediaStore *media.Store) (*cron.Cron, error) {
	c := cron.New()

	sweepSpec := fmt.Sprintf("@every %dm", cfg.Bot.SweepIntervalMin)
	if _, err := c.AddFunc(sweepSpec, func() {
		if n := sessions.SweepExpired(); n > 0 {
			log.Printf("serve: swept %d expired sessions", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule session sweep: %w", err)
	}

	tempTTL := time.Duration(cfg.Uploads.TempTTLMin) * time.Minute
	if _, err := c.AddFunc(cfg.Uploads.SweepCron, func() {
		n, err := mediaStore.SweepTemp(tempTTL)
		if err != nil {
			log.Printf("serve: temp media sweep: %v", err)
			return
		}
		if n > 0 {
			log.Printf("serve: swept %d staged media files", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule media sweep: %w", err)
	}

	c.Start()
	return c, nil
}

// createAdapter builds the citizen messaging transport from the config.
func createAdapter(cfg *config.Config) (bot.Adapter, error) {
	switch cfg.Bot.Transport {
	case "discord":
		return botdiscord.New(botdiscord.AdapterOpts{BotToken: cfg.Bot.Token})
	case "mock":
		return bot.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("bot: unsupported transport %q", cfg.Bot.Transport)
	}
}

func createGeocoder(cfg *config.Config) geocode.Geocoder {
	if cfg.Geocode.APIKey == "" {
		return nil
	}
	return geocode.NewClient(cfg.Geocode.Endpoint, cfg.Geocode.APIKey,
		time.Duration(cfg.Geocode.TimeoutSec)*time.Second)
}

func createTranscriber(cfg *config.Config) transcribe.Transcriber {
	if cfg.Voice.APIKey == "" {
		return nil
	}
	return transcribe.NewClient(cfg.Voice.Endpoint, cfg.Voice.APIKey,
		time.Duration(cfg.Voice.TimeoutSec)*time.Second)
}

func createNotifier(cfg *config.Config) alerts.Notifier {
	if cfg.Alerts.SlackToken == "" {
		return alerts.Noop{}
	}
	n, err := alerts.NewSlack(alerts.SlackOpts{
		Token:   cfg.Alerts.SlackToken,
		Channel: cfg.Alerts.SlackChannel,
	})
	if err != nil {
		log.Printf("serve: slack alerts disabled: %v", err)
		return alerts.Noop{}
	}
	return n
}
