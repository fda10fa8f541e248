package service

import (
	"context"
	"strings"

	"ai-salescoach-be/internal/config"
	"ai-salescoach-be/internal/dto"
	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/pkg/serverutils"
	"ai-salescoach-be/internal/relay"
	"ai-salescoach-be/internal/repository/contract"
	"ai-salescoach-be/internal/repository/memory"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ai-salescoach-be/internal/service")

// VoiceUpstream is the conversational-voice vendor (pkg/elevenlabs.Client).
type VoiceUpstream interface {
	GetSignedURL(ctx context.Context, agentID string) (string, error)
	Connect(ctx context.Context, signedURL string) (*websocket.Conn, error)
}

type IVoiceSessionService interface {
	// Prepare validates and resolves a relay request. Errors are *serverutils.AppError.
	Prepare(ctx context.Context, req *dto.VoiceSessionRequest) (*dto.VoiceSessionPlan, error)
	// Open dials the upstream conversation for a prepared plan.
	Open(ctx context.Context, plan *dto.VoiceSessionPlan) (relay.Conn, error)
}

type voiceSessionService struct {
	coaches   contract.CoachRepository
	cache     *memory.CoachAgentCache
	upstream  VoiceUpstream
	voiceCfg  config.VoiceConfig
	jwtSecret string
	logger    logger.ILogger
}

func NewVoiceSessionService(
	coaches contract.CoachRepository,
	cache *memory.CoachAgentCache,
	upstream VoiceUpstream,
	voiceCfg config.VoiceConfig,
	jwtSecret string,
	logger logger.ILogger,
) IVoiceSessionService {
	return &voiceSessionService{
		coaches:   coaches,
		cache:     cache,
		upstream:  upstream,
		voiceCfg:  voiceCfg,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func (s *voiceSessionService) Prepare(ctx context.Context, req *dto.VoiceSessionRequest) (*dto.VoiceSessionPlan, error) {
	ctx, span := tracer.Start(ctx, "VoiceSessionService.Prepare")
	defer span.End()

	req.CoachID = strings.TrimSpace(req.CoachID)
	if err := serverutils.ValidateRequest(req); err != nil {
		if serverutils.FailedField(err) == "CoachID" {
			return nil, serverutils.NewMissingCoachReference()
		}
		return nil, serverutils.NewInvalidRequest(serverutils.ValidationMessage(err))
	}
	span.SetAttributes(attribute.String("coach.reference", req.CoachID))

	binding, err := s.resolveAgent(ctx, req.CoachID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "coach resolution failed")
		return nil, err
	}

	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = binding.VoiceID
	}
	if voiceID == "" {
		voiceID = s.voiceCfg.DefaultVoiceID
	}

	plan := &dto.VoiceSessionPlan{
		SessionID:      uuid.NewString(),
		CoachReference: req.CoachID,
		AgentID:        binding.AgentID,
		VoiceID:        voiceID,
		CallerID:       s.resolveCaller(req.Token),
	}
	span.SetAttributes(
		attribute.String("voice.agent_id", plan.AgentID),
		attribute.String("voice.session_id", plan.SessionID),
		attribute.Bool("voice.anonymous", plan.Anonymous()),
	)

	signedURL, err := s.upstream.GetSignedURL(ctx, plan.AgentID)
	if err != nil {
		s.logger.Error("VoiceSession", "Signed URL request failed", map[string]interface{}{
			"agent_id": plan.AgentID,
			"error":    err.Error(),
			"trace_id": trace.SpanFromContext(ctx).SpanContext().TraceID().String(),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "signed url request failed")
		return nil, serverutils.NewUpstreamUnavailable(err)
	}
	plan.SignedURL = signedURL

	return plan, nil
}

// resolveAgent maps a coach reference to an upstream agent. References that
// already carry the native prefix are used as is.
func (s *voiceSessionService) resolveAgent(ctx context.Context, ref string) (memory.CoachBinding, error) {
	if s.voiceCfg.AgentIDPrefix != "" && strings.HasPrefix(ref, s.voiceCfg.AgentIDPrefix) {
		return memory.CoachBinding{AgentID: ref}, nil
	}

	if binding, ok := s.cache.Get(ref); ok {
		return binding, nil
	}

	ctx, span := tracer.Start(ctx, "CoachRepository.FindByReference")
	defer span.End()

	coach, err := s.coaches.FindByReference(ctx, ref)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("VoiceSession", "Coach lookup failed", map[string]interface{}{"coach_ref": ref, "error": err.Error()})
		return memory.CoachBinding{}, serverutils.NewInternal(err)
	}
	if !coach.HasAgent() {
		s.logger.Info("VoiceSession", "Coach not found", map[string]interface{}{"coach_ref": ref})
		return memory.CoachBinding{}, serverutils.NewCoachNotFound(ref)
	}

	binding := memory.CoachBinding{AgentID: coach.AgentId, VoiceID: coach.VoiceId}
	s.cache.Save(ref, binding)
	return binding, nil
}

// resolveCaller never fails: a bad token only makes the session anonymous.
func (s *voiceSessionService) resolveCaller(token string) *uuid.UUID {
	if token == "" {
		return nil
	}
	userID, err := serverutils.ParseIdentity(token, s.jwtSecret)
	if err != nil {
		s.logger.Warn("VoiceSession", "Token rejected, continuing anonymously", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return &userID
}

func (s *voiceSessionService) Open(ctx context.Context, plan *dto.VoiceSessionPlan) (relay.Conn, error) {
	ctx, span := tracer.Start(ctx, "VoiceSessionService.Open")
	defer span.End()
	span.SetAttributes(attribute.String("voice.session_id", plan.SessionID))

	conn, err := s.upstream.Connect(ctx, plan.SignedURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream dial failed")
		return nil, err
	}
	return conn, nil
}
