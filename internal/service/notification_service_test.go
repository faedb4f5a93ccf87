package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/pkg/config"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
	"github.com/noah-isme/scms-api/pkg/jobs"
)

type notificationStoreStub struct {
	mu       sync.Mutex
	created  []models.Notification
	markErr  error
	listResp []models.Notification
}

func (s *notificationStoreStub) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *n)
	return nil
}

func (s *notificationStoreStub) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.listResp, nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id, userID string) error {
	return s.markErr
}

func (s *notificationStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func newNotificationFixture(t *testing.T, store *notificationStoreStub) *NotificationService {
	t.Helper()
	svc := NewNotificationService(store, config.NotificationsConfig{
		Workers:    1,
		BufferSize: 8,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func TestNotificationFanOutSkipsActor(t *testing.T) {
	store := &notificationStoreStub{}
	svc := newNotificationFixture(t, store)

	assigneeID := "teacher-1"
	complaint := &models.Complaint{
		ID:              "cmp-1",
		ComplaintNumber: "C202408310001",
		Title:           "Broken window in lab",
		CreatedBy:       "student-1",
		AssignedTo:      &assigneeID,
	}
	assigner := &models.User{ID: "admin-1", FullName: "Admin One"}
	assignee := &models.User{ID: assigneeID, FullName: "Teacher One"}

	svc.ComplaintAssigned(complaint, assignee, assigner)

	require.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 10*time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	recipients := map[string]bool{}
	for _, n := range store.created {
		recipients[n.UserID] = true
		assert.Equal(t, models.NotificationAssigned, n.Event)
		require.NotNil(t, n.ComplaintID)
		assert.Equal(t, "cmp-1", *n.ComplaintID)
	}
	assert.True(t, recipients["student-1"])
	assert.True(t, recipients[assigneeID])
	assert.False(t, recipients["admin-1"])
}

func TestNotificationInternalCommentsStaySilent(t *testing.T) {
	store := &notificationStoreStub{}
	svc := newNotificationFixture(t, store)

	complaint := &models.Complaint{ID: "cmp-1", ComplaintNumber: "C202408310001", CreatedBy: "student-1"}
	author := &models.User{ID: "teacher-1", FullName: "Teacher One"}

	svc.CommentAdded(complaint, &models.ComplaintComment{Internal: true}, author)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, store.count())
}

func TestNotificationDeliverPersists(t *testing.T) {
	store := &notificationStoreStub{}
	svc := NewNotificationService(store, config.NotificationsConfig{}, nil)

	notification := &models.Notification{ID: "n-1", UserID: "student-1", Title: "hello"}
	err := svc.deliver(context.Background(), jobs.Job{ID: "n-1", Payload: notification})
	require.NoError(t, err)
	require.Equal(t, 1, store.count())
}

func TestNotificationMarkReadNotFound(t *testing.T) {
	store := &notificationStoreStub{markErr: sql.ErrNoRows}
	svc := NewNotificationService(store, config.NotificationsConfig{}, nil)

	err := svc.MarkRead(context.Background(), "missing", "student-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
