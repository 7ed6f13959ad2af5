package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"loopmuse/config"
	"loopmuse/internal/bot"
	"loopmuse/internal/commands"
	"loopmuse/internal/history"
	"loopmuse/internal/playlist"
	"loopmuse/internal/resolver"
	"loopmuse/internal/scheduler"
	"loopmuse/internal/services/audio"
	"loopmuse/internal/services/voice"
	"loopmuse/internal/state"
	"loopmuse/pkg/dependency"
	"loopmuse/pkg/logger"
	"loopmuse/pkg/metrics"
)

// Application represents the main application
type Application struct {
	config    *config.Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	discord   *discordgo.Session
	store     *state.Store
	voice     *voice.Manager
	audio     *audio.Manager
	history   *history.Manager
	scheduler *scheduler.Scheduler
	router    *commands.Router
	syncOnce  sync.Once
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// Version information (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if errors.Is(err, config.ErrMissingToken) {
		fmt.Println("ERROR: No Discord token found. Please set the DISCORD_TOKEN environment variable.")
		fmt.Println("You can get your token from: https://discord.com/developers/applications")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewLogger(logger.LoggerConfig{
		Level:            cfg.Logging.Level,
		OutputFile:       cfg.Logging.OutputFile,
		MaxFileSize:      cfg.Logging.MaxFileSize,
		MaxBackups:       cfg.Logging.MaxBackups,
		MaxAge:           cfg.Logging.MaxAge,
		EnableConsole:    cfg.Logging.EnableConsole,
		EnableFile:       cfg.Logging.EnableFile,
		EnableJSON:       cfg.Logging.EnableJSON,
		EnableStackTrace: cfg.Logging.EnableStackTrace,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger.LogStartup(Version, BuildTime, GitCommit)
	appLogger.LogConfiguration(map[string]interface{}{
		"bot_token":         cfg.GetRedactedToken(),
		"youtube_token":     cfg.GetRedactedAPIKey(),
		"spotify_client_id": cfg.GetRedactedSpotifyID(),
		"playlist_id":       cfg.Spotify.PlaylistID,
		"search_mode":       cfg.Resolver.SearchMode,
		"interval":          cfg.Playback.Interval.String(),
		"features":          cfg.Features,
	})
	for _, warning := range cfg.Warnings() {
		appLogger.Warn(warning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Features.EnableDependencyCheck {
		if err := checkDependencies(ctx, cfg, appLogger); err != nil {
			appLogger.Fatal("Dependency check failed", err)
		}
	}

	var metricsInstance *metrics.Metrics
	if cfg.Features.EnableMetrics {
		metricsInstance = metrics.NewMetrics()
		appLogger.Info("Metrics collection enabled")
	}

	app := &Application{
		config:  cfg,
		logger:  appLogger,
		metrics: metricsInstance,
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := app.initialize(); err != nil {
		appLogger.Fatal("Failed to initialize application", err)
	}

	if err := app.start(); err != nil {
		appLogger.Fatal("Failed to start application", err)
	}

	app.waitForShutdown()

	if err := app.shutdown(); err != nil {
		appLogger.Error("Error during shutdown", err)
	}
}

// initialize builds every component and wires them together
func (app *Application) initialize() error {
	cfg := app.config

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	app.discord = session

	res, err := resolver.FromConfig(app.ctx, cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create stream resolver: %w", err)
	}

	var source playlist.Source
	if cfg.SpotifyEnabled() {
		source = playlist.NewSpotify(app.ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.PageSize)
	}

	app.store = state.New(cfg.Playback.DefaultVolume)
	loader := playlist.NewLoader(source, res, app.store, playlist.Options{
		PlaylistID:  cfg.Spotify.PlaylistID,
		Concurrency: cfg.Playback.LoaderConcurrency,
		RateLimit:   cfg.Playback.LoaderRate,
		RateBurst:   cfg.Playback.LoaderBurst,
	}, app.logger, app.metrics)

	app.voice = voice.NewManager(voice.NewDiscordGateway(session), app.store, cfg.Audio.ConnectTimeout, app.logger, app.metrics)
	app.audio = audio.NewManager(audio.Config{
		Bitrate:          cfg.Audio.Bitrate,
		FrameRate:        cfg.Audio.FrameRate,
		FrameDuration:    cfg.Audio.FrameDuration,
		CompressionLevel: cfg.Audio.CompressionLevel,
		PacketLoss:       cfg.Audio.PacketLoss,
		BufferedFrames:   cfg.Audio.BufferedFrames,
		EnableVBR:        cfg.Audio.EnableVBR,
	}, app.voice, app.logger)

	app.history = history.NewManager(cfg.Playback.HistorySize)

	app.scheduler = scheduler.New(cfg.Playback.Interval, scheduler.Deps{
		Conn:     app.voice,
		Player:   app.audio,
		Loader:   loader,
		Resolver: res,
		Store:    app.store,
		History:  app.history,
		Events:   app.audio.Subscribe(),
		Log:      app.logger,
		Metrics:  app.metrics,
	})

	controller := bot.NewController(app.voice, app.audio, app.scheduler, app.store, app.history, app.logger)
	app.router = commands.NewRouter(app.ctx, app.logger, app.metrics)
	app.router.Register(commands.Build(controller)...)

	app.setupDiscordHandlers()

	app.logger.Info("Application initialized successfully")
	return nil
}

// start opens the gateway and starts the background loops
func (app *Application) start() error {
	if err := app.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.scheduler.Run(app.ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error("Playback scheduler stopped", err)
		}
	}()

	if app.metrics != nil {
		collector := metrics.NewMonitoringCollector(app.metrics, 30*time.Second)
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			collector.Start(app.ctx)
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.startHousekeeping()
	}()

	app.logger.Info("Application started successfully")
	return nil
}

// setupDiscordHandlers sets up Discord event handlers
func (app *Application) setupDiscordHandlers() {
	app.discord.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		app.logger.Info("Discord bot ready", logger.Fields{
			"username":    r.User.Username,
			"bot_id":      r.User.ID,
			"guild_count": len(r.Guilds),
		})

		err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
			Activities: []*discordgo.Activity{
				{
					Name: app.config.Discord.Status,
					Type: discordgo.ActivityTypeGame,
				},
			},
			Status: "online",
		})
		if err != nil {
			app.logger.Warn("Failed to set bot status", logger.Fields{"error": err.Error()})
		}

		app.syncOnce.Do(func() {
			if err := app.router.Sync(s, app.config.Discord.GuildID); err != nil {
				app.logger.Error("Failed to sync commands", err)
			}
		})

		app.metrics.RecordDiscordEvent("ready")
	})

	app.discord.AddHandler(app.router.Handle)

	app.discord.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		app.metrics.RecordDiscordEvent("voice_state_update")
	})

	app.discord.AddHandler(func(s *discordgo.Session, e *discordgo.Disconnect) {
		app.logger.Warn("Discord disconnected", logger.Fields{"event": "disconnect"})
		app.metrics.RecordDiscordEvent("disconnect")
	})
}

// startHousekeeping logs memory usage and playback state periodically and
// expires old history entries
func (app *Application) startHousekeeping() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.logger.LogMemoryUsage()
			if maxAge := app.config.Playback.HistoryMaxAge; maxAge > 0 {
				if removed := app.history.Cleanup(maxAge); removed > 0 {
					app.logger.Debug("Expired history entries", logger.Fields{"removed": removed})
				}
			}
			snap := app.store.Snapshot()
			app.metrics.RecordQueueSize(snap.QueueLen)
			app.logger.Debug("Playback state", logger.Fields{
				"channel_id": snap.ChannelID,
				"queue_len":  snap.QueueLen,
				"cursor":     snap.Cursor,
				"volume":     snap.Volume,
				"connected":  app.voice.Connected(),
			})
		}
	}
}

// waitForShutdown waits for shutdown signal
func (app *Application) waitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	app.logger.Info("Shutdown signal received")
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() error {
	app.logger.Info("Starting graceful shutdown")

	app.cancel()
	app.wg.Wait()

	if err := app.audio.Shutdown(); err != nil {
		app.logger.Error("Failed to shutdown audio manager", err)
	}
	app.voice.Shutdown()

	if err := app.discord.Close(); err != nil {
		app.logger.Error("Failed to close Discord session", err)
	}

	if app.metrics != nil {
		app.logger.LogPerformanceMetrics(app.metrics.GetMetricsSummary().Metrics)
	}

	app.logger.LogShutdown("Signal received", true)
	return app.logger.Close()
}

// checkDependencies checks the external programs the bot runs
func checkDependencies(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) error {
	appLogger.Info("Checking system dependencies")

	deps := dependency.GetSystemDependencies()
	// With the native extractor enabled and a search provider that does not
	// go through yt-dlp, YouTube tracks still play without it.
	for i := range deps {
		if deps[i].Command != "yt-dlp" {
			continue
		}
		if cfg.Resolver.Executable != "" {
			deps[i].Command = cfg.Resolver.Executable
		}
		if cfg.Resolver.EnableFallback && cfg.Resolver.SearchMode != config.SearchModeYTSearch {
			deps[i].Required = false
		}
	}

	checker := dependency.NewChecker(10*time.Second, nil)
	report := dependency.ValidateEnvironment(ctx, checker, deps)

	appLogger.Info("Dependency check completed", logger.Fields{
		"severity":           report.Severity,
		"required_missing":   len(report.RequiredMissing),
		"optional_missing":   len(report.OptionalMissing),
		"recommended_action": report.RecommendedAction,
	})

	if codecs, err := checker.CheckFFmpegCodecs(ctx, "libopus"); err == nil && !codecs["libopus"] {
		appLogger.Warn("FFmpeg was built without libopus")
	}

	if !report.IsHealthy() {
		fmt.Println(report.GenerateReport())
		return fmt.Errorf("required dependencies are missing: %v", report.RequiredMissing)
	}

	return nil
}
