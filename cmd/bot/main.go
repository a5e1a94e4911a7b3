package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/announce"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/cleanup"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/config"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/discord"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/events"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/health"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/messages"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/openai"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/poll"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/reminder"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/scheduler"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/storage"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/telegram"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/vote"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// gcInterval is how often Badger GC and event retention run
const gcInterval = 10 * time.Minute

// transport is a chat platform connection
type transport interface {
	notify.Notifier
	Run(ctx context.Context) error
}

func main() {
	log := logger.Global
	log.Info("Starting schedule bot...")

	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	// Initialize storage
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Error("Failed to initialize storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	eventStore := events.New(store, clock)

	// Badger GC plus event retention on the same cadence
	store.StartGCRoutine(ctx, gcInterval, func() {
		removed, err := eventStore.Prune(ctx, clock.Now().Add(-cfg.EventRetention))
		if err != nil {
			log.Error("Failed to prune old events: %v", err)
			return
		}
		if removed > 0 {
			log.Info("Pruned %d event(s) older than %s", removed, cfg.EventRetention)
		}
	})

	// Optional flavour text
	var generator messages.Generator
	if cfg.OpenAIAPIKey != "" {
		generator = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase, cfg.OpenAIModel)
	}

	// Chat platform
	var (
		platform transport
		bind     func(commands *announce.Service, reactions *vote.Reconciler)
		ready    func(context.Context) error
	)
	switch cfg.Platform {
	case config.PlatformTelegram:
		renderer := messages.New(messages.Options{Generator: generator})
		bot, err := telegram.New(cfg.BotToken, poll.New(store, clock), renderer, cfg.CommandChannel)
		if err != nil {
			log.Error("Failed to initialize Telegram bot: %v", err)
			os.Exit(1)
		}
		platform = bot
		bind = func(c *announce.Service, r *vote.Reconciler) { bot.SetHandlers(c, r) }
	default:
		bot, err := discord.New(discord.Config{
			Token:          cfg.DiscordToken,
			CommandChannel: cfg.CommandChannel,
			MentionRole:    cfg.MentionRole,
			Generator:      generator,
		})
		if err != nil {
			log.Error("Failed to initialize Discord bot: %v", err)
			os.Exit(1)
		}
		platform = bot
		bind = func(c *announce.Service, r *vote.Reconciler) { bot.SetHandlers(c, r) }
		ready = bot.Ping
	}

	notifier := notify.NewResilient(platform, notify.DefaultPolicy, clock)

	// Reminder engine
	cleanupQueue := cleanup.New(store, notifier, clock)
	if n, err := cleanupQueue.Restore(ctx); err != nil {
		log.Error("Failed to restore cleanup jobs: %v", err)
	} else if n > 0 {
		log.Info("Re-armed %d cleanup job(s)", n)
	}
	dispatcher := reminder.NewDispatcher(eventStore, notifier, cleanupQueue, clock, cfg.CleanupDelay)
	sched := scheduler.New(eventStore, dispatcher, clock, cfg.TickInterval)

	// Inbound surfaces
	reconciler := vote.NewReconciler(notifier, cfg.EventsChannel)
	announcer := announce.New(eventStore, notifier, clock, cfg.EventsChannel)
	bind(announcer, reconciler)

	checks := []health.Check{{
		Name: "notifier",
		Check: func(context.Context) error {
			if notifier.State() == gobreaker.StateOpen {
				return errors.New("notifier circuit breaker is open")
			}
			return nil
		},
	}}
	if ready != nil {
		checks = append(checks, health.Check{Name: "gateway", Check: ready})
	}
	healthServer := health.New(strconv.Itoa(cfg.Port), clock, checks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(sched.Run(gctx))
	})
	g.Go(func() error {
		return platform.Run(gctx)
	})
	g.Go(func() error {
		return healthServer.Run(gctx)
	})

	log.Info("Bot is now running. Press CTRL-C to exit.")
	if err := g.Wait(); err != nil {
		log.Error("Shutting down after error: %v", err)
	}

	reconciler.Wait()
	cleanupQueue.Stop()
	log.Info("Shutdown complete")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
