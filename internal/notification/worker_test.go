package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"enos-mapping-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.MappingTask{}, &model.PushSubscription{}))
	return db
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, newTestDB(t), &webpush.Options{})

	wp.Dispatch("task-123")

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "task-123", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Create(&model.MappingTask{
		TaskID: "task-1",
		Status: model.TaskStatusCompleted,
		Source: "remote",
		Total:  10,
		Mapped: 9,
	}).Error)

	wp := NewWorkerPool(1, db, &webpush.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		require.NoError(t, db.Create(&model.PushSubscription{
			Endpoint: "https://example.com/push",
			P256DH:   "test_p256dh",
			Auth:     "test_auth",
		}).Error)

		var wg sync.WaitGroup
		wg.Add(1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "Mapping task task-1 finished (completed, source remote): 9 of 10 points mapped", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		wp.Dispatch("task-1")
		wg.Wait()

		require.NoError(t, db.Delete(&model.PushSubscription{}, "endpoint = ?", "https://example.com/push").Error)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		require.NoError(t, db.Create(&model.PushSubscription{
			Endpoint: "https://example.com/expired",
			P256DH:   "test_p256dh_expired",
			Auth:     "test_auth_expired",
		}).Error)

		var wg sync.WaitGroup
		wg.Add(1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		wp.Dispatch("task-1")
		wg.Wait()

		// The 410 deletion happens right after Send returns.
		assert.Eventually(t, func() bool {
			var count int64
			db.Model(&model.PushSubscription{}).Where("endpoint = ?", "https://example.com/expired").Count(&count)
			return count == 0
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("unknown task sends nothing", func(t *testing.T) {
		require.NoError(t, db.Create(&model.PushSubscription{
			Endpoint: "https://example.com/quiet",
			P256DH:   "k",
			Auth:     "a",
		}).Error)

		sent := false
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				sent = true
				return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
			},
		}

		wp.Dispatch("task-missing")
		time.Sleep(100 * time.Millisecond)
		assert.False(t, sent)
	})
}
