package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/latoulicious/lofi-bot/internal/api"
	"github.com/latoulicious/lofi-bot/internal/commands"
	"github.com/latoulicious/lofi-bot/internal/config"
	"github.com/latoulicious/lofi-bot/internal/handlers"
	"github.com/latoulicious/lofi-bot/internal/presence"
	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/common"
	"github.com/latoulicious/lofi-bot/pkg/cron"
	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging())
	logging.NewStdLogAdapter(logger.With(logging.String("component", "discordgo"))).SetAsStdLogger()
	logger.Info("Starting lofi-bot", logging.String("version", version))

	// Database
	db, err := database.NewDatabaseManager(cfg.Database(), logger)
	if err != nil {
		logger.Fatal("Invalid database configuration", logging.Error(err))
	}
	if err := db.Connect(); err != nil {
		logger.Fatal("Failed to connect to database", logging.Error(err))
	}

	stations := services.NewStationService(db.Stations(), logger)
	if err := stations.Seed(context.Background()); err != nil {
		logger.Fatal("Failed to seed stations", logging.Error(err))
	}
	profiles := services.NewProfileService(db.Profiles(), db.Guilds(), db.GuildStats(), logger)

	// Create a new Discord session using the provided token
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal("Failed to create Discord session", logging.Error(err))
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	// Audio session manager
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipelineCfg := cfg.Pipeline()
	roster := common.NewStateRoster(dg.State)
	ffmpeg := common.NewResolvingPipelineFactory(
		common.NewYouTubeResolver(logger),
		common.NewFFmpegPipelineFactory(pipelineCfg.FFmpeg, pipelineCfg.Opus, logger),
	)
	audio, err := pipeline.NewManager(pipelineCfg, pipeline.NewStore(), pipeline.Dependencies{
		Gateway:   common.NewDiscordGateway(dg, logger),
		Players:   common.NewFramePlayerFactory(logger),
		Resources: common.NewOpusResourceFactory(pipelineCfg.Opus),
		Pipelines: ffmpeg,
		Roster:    roster,
	}, logger, pipeline.NewMetrics(registry))
	if err != nil {
		logger.Fatal("Failed to create audio manager", logging.Error(err))
	}

	// Presence
	presenceManager := presence.NewPresenceManager(dg, audio, presence.StateGuildCounter(dg.State), logger)
	refreshPresence := func() {
		if err := presenceManager.Refresh(); err != nil {
			logger.Warn("Failed to refresh presence", logging.Error(err))
		}
	}

	health := services.NewHealthService(services.NewSessionProbe(dg), db, audio)

	// Commands and handlers
	commandRegistry := commands.NewRegistry(commands.Dependencies{
		Audio:           audio,
		Voice:           roster,
		Stations:        stations,
		Profiles:        profiles,
		Health:          health,
		SessionsChanged: refreshPresence,
		Prefix:          cfg.CommandPrefix,
		Logger:          logger,
	})
	messageHandler := handlers.NewMessageHandler(commandRegistry, profiles, handlers.MessageHandlerConfig{
		Prefix:      cfg.CommandPrefix,
		AdminRoleID: cfg.AdminRoleID,
	}, logger)

	dg.AddHandler(handlers.ReadyHandler(presenceManager, logger))
	dg.AddHandler(messageHandler.Handle)
	dg.AddHandler(handlers.VoiceStateHandler(audio))

	// Scheduled jobs
	scheduler := cron.NewScheduler(logger)
	rewarder := services.NewListeningRewarder(audio, roster, services.NewStateGuildDirectory(dg.State), profiles,
		announceLevelUp(dg, commandRegistry.View(), logger), logger)

	if err := scheduler.AddJob("listening_xp", cfg.XPSchedule, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := rewarder.Reward(ctx)
		return err
	}); err != nil {
		logger.Fatal("Failed to schedule listening XP", logging.Error(err))
	}
	if err := scheduler.AddJob("presence", cfg.PresenceSchedule, presenceManager.Refresh); err != nil {
		logger.Fatal("Failed to schedule presence refresh", logging.Error(err))
	}
	if cfg.BackupSchedule != "" {
		if err := scheduler.AddJob("database_backup", cfg.BackupSchedule, backupJob(db, cfg.BackupDir)); err != nil {
			logger.Fatal("Failed to schedule database backup", logging.Error(err))
		}
	}

	// Open a websocket connection to Discord and begin listening.
	if err := dg.Open(); err != nil {
		logger.Fatal("Failed to open Discord session", logging.Error(err))
	}
	scheduler.Start()

	// Dashboard API
	var server *api.Server
	if cfg.APIEnabled {
		gin.SetMode(gin.ReleaseMode)
		router := api.SetupRouter(api.NewAPI(api.Dependencies{
			Version:         version,
			Audio:           audio,
			Stations:        stations,
			Profiles:        profiles,
			Health:          health,
			SessionsChanged: refreshPresence,
			Logger:          logger,
		}), api.RouterConfig{APIKey: cfg.APIKey, Gatherer: registry, Logger: logger})

		server = api.NewServer(cfg.APIPort, router, logger)
		if err := server.Start(); err != nil {
			logger.Error("API server not started", logging.Error(err))
			server = nil
		}
	}

	logger.Info("Bot is running. Press CTRL-C to exit.")
	// Wait here until CTRL-C or other term signal is received.
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	sig := <-sc
	logger.Info("Shutting down", logging.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("API server shutdown failed", logging.Error(err))
		}
	}
	scheduler.Stop()
	audio.CleanupAll()
	if err := dg.Close(); err != nil {
		logger.Warn("Failed to close Discord session", logging.Error(err))
	}
	if err := db.Close(); err != nil {
		logger.Warn("Failed to close database", logging.Error(err))
	}
	logger.Info("Shutdown complete")
}

// announceLevelUp posts listening level-ups to the guild's system channel.
func announceLevelUp(dg *discordgo.Session, view *commands.View, logger logging.Logger) services.LevelUpFunc {
	return func(guildID string, listener common.Listener, level int) {
		guild, err := dg.State.Guild(guildID)
		if err != nil || guild.SystemChannelID == "" {
			return
		}
		msg := view.LevelUp("<@"+listener.UserID+">", level)
		if _, err := dg.ChannelMessageSend(guild.SystemChannelID, msg); err != nil {
			logger.Warn("Failed to announce level up",
				logging.String("guild_id", guildID),
				logging.String("user_id", listener.UserID),
				logging.Error(err))
		}
	}
}

func backupJob(db database.DatabaseManager, dir string) func() error {
	return func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create backup dir: %w", err)
		}
		name := fmt.Sprintf("lofi-%s.db", time.Now().UTC().Format("20060102-150405"))
		return db.Backup(filepath.Join(dir, name))
	}
}
