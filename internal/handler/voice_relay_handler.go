package handler

import (
	"context"
	"errors"
	"strings"

	"ai-salescoach-be/internal/dto"
	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/pkg/serverutils"
	"ai-salescoach-be/internal/relay"
	"ai-salescoach-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type VoiceRelayHandler struct {
	service   service.IVoiceSessionService
	tools     relay.ToolDispatcher
	activity  relay.ActivitySink
	lifecycle relay.Observer
	tracker   *relay.Tracker
	cfg       relay.Config
	logger    logger.ILogger
}

func NewVoiceRelayHandler(
	service service.IVoiceSessionService,
	tools relay.ToolDispatcher,
	activity relay.ActivitySink,
	lifecycle relay.Observer,
	tracker *relay.Tracker,
	cfg relay.Config,
	log logger.ILogger,
) *VoiceRelayHandler {
	return &VoiceRelayHandler{
		service:   service,
		tools:     tools,
		activity:  activity,
		lifecycle: lifecycle,
		tracker:   tracker,
		cfg:       cfg,
		logger:    log,
	}
}

// ServeRelay validates and resolves the request before upgrading, so every
// failure up to the signed URL is a plain HTTP error.
func (h *VoiceRelayHandler) ServeRelay(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return serverutils.NewInvalidRequest("Expected a websocket upgrade request")
	}
	if h.tracker.Draining() {
		return serverutils.NewShuttingDown()
	}

	coachID := c.Query("coachId")
	if coachID == "" {
		coachID = c.Query("coach_id")
	}
	req := &dto.VoiceSessionRequest{
		CoachID: coachID,
		VoiceID: strings.TrimSpace(c.Query("voiceId")),
		Token:   serverutils.BearerToken(c),
	}

	plan, err := h.service.Prepare(c.UserContext(), req)
	if err != nil {
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.serve(conn, plan)
	})(c)
}

func (h *VoiceRelayHandler) serve(conn *websocket.Conn, plan *dto.VoiceSessionPlan) {
	session := relay.NewSession(relay.Params{
		ID:             plan.SessionID,
		CoachReference: plan.CoachReference,
		AgentID:        plan.AgentID,
		VoiceID:        plan.VoiceID,
		CallerID:       plan.CallerID,
		Client:         conn,
		Tools:          h.tools,
		Sink:           h.activity,
		Observer:       h.lifecycle,
		Logger:         h.logger,
		Config:         h.cfg,
	})

	unregister := h.tracker.Register(session.ID(), session.Cancel)
	defer unregister()

	err := session.Run(context.Background(), func(ctx context.Context) (relay.Conn, error) {
		return h.service.Open(ctx, plan)
	})
	switch {
	case err == nil, errors.Is(err, relay.ErrClientClosed), errors.Is(err, relay.ErrSessionClosed):
	default:
		h.logger.Warn("VoiceRelayHandler", "Session ended with error", map[string]interface{}{
			"session_id": session.ID(),
			"error":      err.Error(),
		})
	}
}

func (h *VoiceRelayHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/voice/relay", h.ServeRelay)
}
