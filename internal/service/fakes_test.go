package service

import (
	"context"
	"sync"

	"ai-salescoach-be/internal/entity"
	"ai-salescoach-be/internal/repository/redisstore"
	"ai-salescoach-be/internal/repository/specification"
	coachEvents "ai-salescoach-be/pkg/coach/events"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

type fakeCoachRepository struct {
	mu      sync.Mutex
	coaches map[string]*entity.Coach
	err     error
	lookups int
}

func (r *fakeCoachRepository) Create(ctx context.Context, coach *entity.Coach) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coaches == nil {
		r.coaches = map[string]*entity.Coach{}
	}
	r.coaches[coach.Slug] = coach
	return nil
}

func (r *fakeCoachRepository) FindByReference(ctx context.Context, ref string) (*entity.Coach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.err != nil {
		return nil, r.err
	}
	return r.coaches[ref], nil
}

func (r *fakeCoachRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Coach, error) {
	return nil, nil
}

func (r *fakeCoachRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Coach, error) {
	return nil, nil
}

func (r *fakeCoachRepository) lookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

type fakeUpstream struct {
	signedURL  string
	signErr    error
	dialErr    error
	signedFor  []string
	dialedWith []string
}

func (u *fakeUpstream) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	u.signedFor = append(u.signedFor, agentID)
	if u.signErr != nil {
		return "", u.signErr
	}
	return u.signedURL, nil
}

func (u *fakeUpstream) Connect(ctx context.Context, signedURL string) (*websocket.Conn, error) {
	u.dialedWith = append(u.dialedWith, signedURL)
	return nil, u.dialErr
}

type fakeSummaryRepository struct {
	mu      sync.Mutex
	rows    map[string]*entity.CoachActivitySummary
	upserts int
	err     error
	order   []string
}

func summaryKey(userId uuid.UUID, agentId string) string {
	return userId.String() + "/" + agentId
}

func (r *fakeSummaryRepository) Upsert(ctx context.Context, summary *entity.CoachActivitySummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.rows == nil {
		r.rows = map[string]*entity.CoachActivitySummary{}
	}
	key := summaryKey(summary.UserId, summary.AgentId)
	if _, ok := r.rows[key]; !ok {
		r.order = append(r.order, key)
	}
	copied := *summary
	r.rows[key] = &copied
	r.upserts++
	return nil
}

func (r *fakeSummaryRepository) FindByUserAndAgent(ctx context.Context, userId uuid.UUID, agentId string) (*entity.CoachActivitySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.rows[summaryKey(userId, agentId)], nil
}

func (r *fakeSummaryRepository) FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.CoachActivitySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*entity.CoachActivitySummary
	for _, key := range r.order {
		if row := r.rows[key]; row.UserId == userId {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeEventPublisher struct {
	mu      sync.Mutex
	started []coachEvents.SessionStarted
	ended   []coachEvents.SessionEnded
	flushed []coachEvents.ActivityFlushed
}

func (p *fakeEventPublisher) PublishSessionStarted(ctx context.Context, e coachEvents.SessionStarted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, e)
}

func (p *fakeEventPublisher) PublishSessionEnded(ctx context.Context, e coachEvents.SessionEnded) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, e)
}

func (p *fakeEventPublisher) PublishActivityFlushed(ctx context.Context, e coachEvents.ActivityFlushed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed = append(p.flushed, e)
}

type fakeRegistry struct {
	mu           sync.Mutex
	registered   map[string]redisstore.SessionMeta
	registers    int
	unregistered []string
	count        int64
	err          error
}

func (r *fakeRegistry) Register(ctx context.Context, meta redisstore.SessionMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registers++
	if r.err != nil {
		return r.err
	}
	if r.registered == nil {
		r.registered = map[string]redisstore.SessionMeta{}
	}
	r.registered[meta.SessionID] = meta
	return nil
}

func (r *fakeRegistry) Unregister(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, sessionID)
	delete(r.registered, sessionID)
	return r.err
}

func (r *fakeRegistry) Count(ctx context.Context) (int64, error) {
	return r.count, r.err
}

func (r *fakeRegistry) Get(ctx context.Context, sessionID string) (*redisstore.SessionMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	meta, ok := r.registered[sessionID]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (r *fakeRegistry) registerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registers
}

type fixedLocal int

func (f fixedLocal) Count() int { return int(f) }
