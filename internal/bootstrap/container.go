package bootstrap

import (
	"context"
	"time"

	"ai-salescoach-be/internal/config"
	"ai-salescoach-be/internal/controller"
	"ai-salescoach-be/internal/handler"
	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/relay"
	"ai-salescoach-be/internal/repository/implementation"
	"ai-salescoach-be/internal/repository/memory"
	"ai-salescoach-be/internal/repository/redisstore"
	"ai-salescoach-be/internal/service"
	coachEvents "ai-salescoach-be/pkg/coach/events"
	"ai-salescoach-be/pkg/elevenlabs"

	pktNats "ai-salescoach-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger  logger.ILogger
	Tracker *relay.Tracker

	// Controllers & Handlers
	VoiceRelayHandler *handler.VoiceRelayHandler
	VoiceController   controller.IVoiceController

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	relayLogger := logger.NewIsolatedLogger(cfg.App.RelayLogFilePath)

	c := &Container{
		Logger:  sysLogger,
		Tracker: relay.NewTracker(),
	}
	c.closers = append(c.closers, func() { _ = relayLogger.Sync() }, func() { _ = sysLogger.Sync() })

	// 2. Infrastructure
	// NATS
	var bus coachEvents.Bus
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher, session events disabled", map[string]interface{}{"error": err.Error()})
	} else {
		bus = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	// Redis
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb = redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to Redis, cluster session registry disabled", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		rdb = nil
	} else {
		client := rdb
		c.closers = append(c.closers, func() { _ = client.Close() })
	}
	cancel()

	// 3. Repositories
	coachRepo := implementation.NewCoachRepository(db)
	summaryRepo := implementation.NewActivitySummaryRepository(db)
	coachCache := memory.NewCoachAgentCache(cfg.Cache.CoachTTL)
	sessionRegistry := redisstore.NewActiveSessionRegistry(rdb, redisstore.DefaultSessionTTL)

	// 4. Services
	eventPublisher := coachEvents.NewNatsPublisher(bus, sysLogger)

	upstream := elevenlabs.NewClient(
		cfg.Voice.ElevenLabsAPIKey,
		elevenlabs.WithSignedURLEndpoint(cfg.Voice.SignedURLEndpoint),
		elevenlabs.WithHandshakeTimeout(cfg.Voice.HandshakeTimeout),
		elevenlabs.WithReadLimit(cfg.Voice.MaxFrameBytes),
	)

	voiceSessionService := service.NewVoiceSessionService(
		coachRepo,
		coachCache,
		upstream,
		cfg.Voice,
		cfg.Auth.JWTSecret,
		sysLogger,
	)
	toolDispatchService := service.NewToolDispatchService(cfg.Tools, relayLogger)
	activityService := service.NewActivityService(summaryRepo, eventPublisher, relayLogger)
	lifecycleService := service.NewSessionLifecycleService(
		sessionRegistry,
		c.Tracker,
		eventPublisher,
		cfg.App.InstanceID,
		relayLogger,
	)
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	go lifecycleService.RunHeartbeat(heartbeatCtx, redisstore.DefaultHeartbeatInterval)
	c.closers = append(c.closers, stopHeartbeat)

	// 5. Handlers & Controllers
	c.VoiceRelayHandler = handler.NewVoiceRelayHandler(
		voiceSessionService,
		toolDispatchService,
		activityService,
		lifecycleService,
		c.Tracker,
		relay.Config{
			InitiationDelay:  cfg.Voice.InitiationDelay,
			WriteTimeout:     cfg.Activity.WriteTimeout,
			MaxFrameBytes:    cfg.Voice.MaxFrameBytes,
			FlushInterval:    cfg.Activity.FlushInterval,
			FlushTimeout:     cfg.Activity.WriteTimeout,
			ObserverTimeout:  cfg.Activity.WriteTimeout,
			ToolTimeout:      cfg.Tools.Timeout,
			MaxToolsInFlight: cfg.Tools.MaxInFlight,
		},
		relayLogger,
	)
	c.VoiceController = controller.NewVoiceController(activityService, lifecycleService)

	return c
}

// Close releases infrastructure clients in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
