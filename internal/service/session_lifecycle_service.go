package service

import (
	"context"
	"sync"
	"time"

	"ai-salescoach-be/internal/dto"
	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/pkg/serverutils"
	"ai-salescoach-be/internal/relay"
	"ai-salescoach-be/internal/repository/redisstore"
	coachEvents "ai-salescoach-be/pkg/coach/events"
)

// SessionRegistry is the cluster-wide view of live sessions (redisstore.ActiveSessionRegistry).
type SessionRegistry interface {
	Register(ctx context.Context, meta redisstore.SessionMeta) error
	Unregister(ctx context.Context, sessionID string) error
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, sessionID string) (*redisstore.SessionMeta, error)
}

// LocalSessions reports sessions running on this instance (relay.Tracker).
type LocalSessions interface {
	Count() int
}

type ISessionLifecycleService interface {
	relay.Observer
	ActiveSessions(ctx context.Context) (*dto.ActiveSessionsResponse, error)
	LocateSession(ctx context.Context, sessionID string) (*dto.SessionLocationResponse, error)
	// RunHeartbeat re-registers this instance's sessions every interval until ctx is done.
	RunHeartbeat(ctx context.Context, interval time.Duration)
}

type sessionLifecycleService struct {
	registry   SessionRegistry
	local      LocalSessions
	events     coachEvents.Publisher
	instanceID string
	logger     logger.ILogger
	now        func() time.Time

	mu   sync.Mutex
	live map[string]redisstore.SessionMeta
}

func NewSessionLifecycleService(
	registry SessionRegistry,
	local LocalSessions,
	events coachEvents.Publisher,
	instanceID string,
	logger logger.ILogger,
) ISessionLifecycleService {
	return &sessionLifecycleService{
		registry:   registry,
		local:      local,
		events:     events,
		instanceID: instanceID,
		logger:     logger,
		now:        time.Now,
		live:       make(map[string]redisstore.SessionMeta),
	}
}

func (s *sessionLifecycleService) SessionStarted(ctx context.Context, info relay.SessionInfo) {
	if s.registry != nil {
		meta := redisstore.SessionMeta{
			SessionID:  info.ID,
			AgentID:    info.AgentID,
			UserID:     info.UserID(),
			InstanceID: s.instanceID,
			StartedAt:  info.StartedAt,
		}
		s.mu.Lock()
		s.live[info.ID] = meta
		s.mu.Unlock()

		if err := s.registry.Register(ctx, meta); err != nil {
			s.logger.Warn("SessionLifecycle", "Failed to register session", map[string]interface{}{
				"session_id": info.ID,
				"error":      err.Error(),
			})
		}
	}

	if s.events != nil {
		s.events.PublishSessionStarted(ctx, coachEvents.SessionStarted{
			SessionID:  info.ID,
			AgentID:    info.AgentID,
			VoiceID:    info.VoiceID,
			UserID:     info.UserID(),
			InstanceID: s.instanceID,
		})
	}
}

func (s *sessionLifecycleService) SessionEnded(ctx context.Context, info relay.SessionInfo, reason string) {
	s.mu.Lock()
	delete(s.live, info.ID)
	s.mu.Unlock()

	if s.registry != nil {
		if err := s.registry.Unregister(ctx, info.ID); err != nil {
			s.logger.Warn("SessionLifecycle", "Failed to unregister session", map[string]interface{}{
				"session_id": info.ID,
				"error":      err.Error(),
			})
		}
	}

	if s.events != nil {
		s.events.PublishSessionEnded(ctx, coachEvents.SessionEnded{
			SessionID: info.ID,
			AgentID:   info.AgentID,
			UserID:    info.UserID(),
			Reason:    reason,
			Duration:  s.now().Sub(info.StartedAt),
		})
	}
}

func (s *sessionLifecycleService) ActiveSessions(ctx context.Context) (*dto.ActiveSessionsResponse, error) {
	res := &dto.ActiveSessionsResponse{InstanceId: s.instanceID}
	if s.local != nil {
		res.Local = s.local.Count()
	}
	res.Cluster = int64(res.Local)

	if s.registry != nil {
		count, err := s.registry.Count(ctx)
		if err != nil {
			s.logger.Warn("SessionLifecycle", "Cluster count unavailable", map[string]interface{}{"error": err.Error()})
			return res, nil
		}
		if count > res.Cluster {
			res.Cluster = count
		}
	}
	return res, nil
}

func (s *sessionLifecycleService) LocateSession(ctx context.Context, sessionID string) (*dto.SessionLocationResponse, error) {
	if s.registry == nil {
		return nil, serverutils.NewNotFound("Session not found")
	}

	meta, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, serverutils.NewInternal(err)
	}
	if meta == nil {
		return nil, serverutils.NewNotFound("Session not found")
	}

	return &dto.SessionLocationResponse{
		SessionId:  meta.SessionID,
		AgentId:    meta.AgentID,
		InstanceId: meta.InstanceID,
		Local:      meta.InstanceID == s.instanceID,
		StartedAt:  meta.StartedAt,
	}, nil
}

func (s *sessionLifecycleService) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if s.registry == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshLive(ctx)
		}
	}
}

func (s *sessionLifecycleService) refreshLive(ctx context.Context) {
	s.mu.Lock()
	metas := make([]redisstore.SessionMeta, 0, len(s.live))
	for _, meta := range s.live {
		metas = append(metas, meta)
	}
	s.mu.Unlock()

	for _, meta := range metas {
		if err := s.registry.Register(ctx, meta); err != nil {
			s.logger.Warn("SessionLifecycle", "Heartbeat failed", map[string]interface{}{
				"session_id": meta.SessionID,
				"error":      err.Error(),
			})
		}
	}
}
