package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/pkg/events"
)

type fakeRecordRepo struct {
	created   []model.AnalysisRecord
	userID    string
	sessionID string
	total   int64
	offset  int
	limit   int
	err     error
}

func (r *fakeRecordRepo) Create(record *model.AnalysisRecord) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, *record)
	return nil
}

func (r *fakeRecordRepo) FindByUser(_ string, offset, limit int) ([]model.AnalysisRecord, int64, error) {
	r.offset, r.limit = offset, limit
	if r.err != nil {
		return nil, 0, r.err
	}
	return r.created, r.total, nil
}

func (r *fakeRecordRepo) FindBySession(userID, sessionID string) ([]model.AnalysisRecord, error) {
	r.userID, r.sessionID = userID, sessionID
	if r.err != nil {
		return nil, r.err
	}
	return r.created, nil
}

func TestHandleAnalysisEvent(t *testing.T) {
	repo := &fakeRecordRepo{}
	svc := NewAnalysisHistoryService(repo)
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	err := svc.HandleAnalysisEvent(context.Background(), events.AnalysisEvent{
		EventID: "e-1", SessionID: "s-1", UserID: "u-1", AnalysisType: "bazi", Domain: "bazi",
		Confidence: 0.2, Level: "reject", Rejected: true, ReasonCode: "LOW_CONFIDENCE", OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	r := repo.created[0]
	assert.Equal(t, model.DomainBazi, r.Domain)
	assert.Equal(t, model.LevelReject, r.Level)
	assert.True(t, r.Rejected)
	assert.Equal(t, "LOW_CONFIDENCE", r.ReasonCode)
	assert.Equal(t, at, r.CreatedAt)
}

func TestListByUser_Paging(t *testing.T) {
	repo := &fakeRecordRepo{created: []model.AnalysisRecord{{ID: 1}, {ID: 2}}, total: 45}
	svc := NewAnalysisHistoryService(repo)

	res, err := svc.ListByUser("u-1", 3, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, repo.offset)
	assert.Equal(t, 20, repo.limit)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, int64(45), res.TotalElements)
	assert.Len(t, res.Content, 2)

	res, err = svc.ListByUser("u-1", 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.offset)
	assert.Equal(t, 20, res.Size)
	assert.Equal(t, 1, res.Number)
}

func TestListByUser_Error(t *testing.T) {
	svc := NewAnalysisHistoryService(&fakeRecordRepo{err: errors.New("db down")})
	_, err := svc.ListByUser("u-1", 1, 10)
	assert.Error(t, err)
}

func TestListBySession(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	repo := &fakeRecordRepo{created: []model.AnalysisRecord{
		{ID: 1, SessionID: "s-1", Domain: model.DomainBazi, CreatedAt: at},
		{ID: 2, SessionID: "s-1", Domain: model.DomainFengshui, CreatedAt: at.Add(time.Minute)},
	}}
	svc := NewAnalysisHistoryService(repo)

	content, err := svc.ListBySession("u-1", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", repo.userID)
	assert.Equal(t, "s-1", repo.sessionID)
	require.Len(t, content, 2)
	assert.Equal(t, model.DomainFengshui, content[1].Domain)
	assert.Equal(t, model.LocalTime(at), content[0].CreatedAt)

	_, err = NewAnalysisHistoryService(&fakeRecordRepo{err: errors.New("db down")}).ListBySession("u-1", "s-1")
	assert.Error(t, err)
}

func TestListBySession_EmptyIsNotNil(t *testing.T) {
	content, err := NewAnalysisHistoryService(&fakeRecordRepo{}).ListBySession("u-1", "s-9")
	require.NoError(t, err)
	assert.NotNil(t, content)
	assert.Empty(t, content)
}
