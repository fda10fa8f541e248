package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/pkg/serverutils"
	"ai-salescoach-be/internal/relay"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveActivityUpsertsAndPublishes(t *testing.T) {
	repo := &fakeSummaryRepository{}
	events := &fakeEventPublisher{}
	svc := NewActivityService(repo, events, logger.NewNopLogger())

	user := uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record := relay.ActivityRecord{
		UserID:    user,
		AgentID:   "agent_closer",
		SessionID: "s1",
		Summary:   "User: hello\nCoach: hi",
		Topics:    []string{"hello"},
		Insights:  []string{"hi"},
		Entries:   2,
		UpdatedAt: now,
	}
	require.NoError(t, svc.SaveActivity(context.Background(), record))

	record.Summary = "User: bye"
	record.Topics = []string{"bye"}
	require.NoError(t, svc.SaveActivity(context.Background(), record))

	got, err := svc.GetSummary(context.Background(), user, "agent_closer")
	require.NoError(t, err)
	assert.Equal(t, "User: bye", got.Summary)
	assert.Equal(t, []string{"bye"}, got.RecentTopics)
	assert.Equal(t, "s1", got.LastSessionId)
	assert.Equal(t, now, got.UpdatedAt)
	assert.Equal(t, 2, repo.upserts)

	require.Len(t, events.flushed, 2)
	assert.Equal(t, user.String(), events.flushed[0].UserID)
	assert.Equal(t, 2, events.flushed[0].Entries)
}

func TestSaveActivityWrapsRepositoryError(t *testing.T) {
	events := &fakeEventPublisher{}
	svc := NewActivityService(&fakeSummaryRepository{err: errors.New("disk full")}, events, logger.NewNopLogger())

	err := svc.SaveActivity(context.Background(), relay.ActivityRecord{UserID: uuid.New(), AgentID: "agent_a"})
	assert.ErrorIs(t, err, relay.ErrActivityFlush)
	assert.Empty(t, events.flushed)
}

func TestGetSummaries(t *testing.T) {
	repo := &fakeSummaryRepository{}
	svc := NewActivityService(repo, nil, logger.NewNopLogger())
	user, other := uuid.New(), uuid.New()

	for _, rec := range []relay.ActivityRecord{
		{UserID: user, AgentID: "agent_a", Summary: "a"},
		{UserID: other, AgentID: "agent_a", Summary: "other"},
		{UserID: user, AgentID: "agent_b", Summary: "b"},
	} {
		require.NoError(t, svc.SaveActivity(context.Background(), rec))
	}

	got, err := svc.GetSummaries(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "agent_a", got[0].AgentId)
	assert.Equal(t, []string{}, got[0].RecentTopics)
	assert.Equal(t, []string{}, got[0].KeyInsights)

	none, err := svc.GetSummaries(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetSummaryErrors(t *testing.T) {
	svc := NewActivityService(&fakeSummaryRepository{}, nil, logger.NewNopLogger())
	_, err := svc.GetSummary(context.Background(), uuid.New(), "agent_missing")
	assert.True(t, serverutils.HasCode(err, serverutils.CodeNotFound))

	failing := NewActivityService(&fakeSummaryRepository{err: errors.New("boom")}, nil, logger.NewNopLogger())
	_, err = failing.GetSummary(context.Background(), uuid.New(), "agent_a")
	assert.True(t, serverutils.HasCode(err, serverutils.CodeInternal))
}
