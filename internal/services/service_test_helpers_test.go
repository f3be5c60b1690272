package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/database/testutil"
	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/notifier"
	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/internal/repository"
)

var errStoreDown = errors.New("store down")

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][]realtime.Message
}

func (p *recordingPublisher) BroadcastToUser(stream, userID string, message realtime.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][]realtime.Message)
	}
	message.Stream = stream
	p.messages[userID] = append(p.messages[userID], message)
}

func (p *recordingPublisher) events(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, msg := range p.messages[userID] {
		out = append(out, msg.Event)
	}
	return out
}

type recordingEmail struct {
	sent []notifier.EmailMessage
	err  error
}

func (r *recordingEmail) SendEmail(_ context.Context, msg notifier.EmailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type recordingSMS struct {
	sent []notifier.SMSMessage
	err  error
}

func (r *recordingSMS) SendSMS(_ context.Context, msg notifier.SMSMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// flakyStore fails every Insert after the first allow calls.
type flakyStore struct {
	repository.NotificationStore
	allow    int
	inserted int
}

func (f *flakyStore) Insert(ctx context.Context, n *models.Notification) error {
	if f.inserted >= f.allow {
		return errStoreDown
	}
	f.inserted++
	return f.NotificationStore.Insert(ctx, n)
}

type serviceFixture struct {
	db        *gorm.DB
	store     *repository.GormNotificationStore
	users     *repository.GormUserStore
	publisher *recordingPublisher
	email     *recordingEmail
	sms       *recordingSMS
	svc       *NotificationService
}

// steppingClock returns a clock that advances one second per call so
// creation order is reflected in CreatedAt.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newFixture(t *testing.T, opts ...NotificationOption) *serviceFixture {
	t.Helper()
	db := testutil.NewDB(t)

	store, err := repository.NewGormNotificationStore(db)
	require.NoError(t, err)
	users, err := repository.NewGormUserStore(db)
	require.NoError(t, err)

	fx := &serviceFixture{
		db:        db,
		store:     store,
		users:     users,
		publisher: &recordingPublisher{},
		email:     &recordingEmail{},
		sms:       &recordingSMS{},
	}

	base := []NotificationOption{
		WithPublisher(fx.publisher),
		WithEmailSender(fx.email),
		WithSMSSender(fx.sms),
		WithClock(steppingClock()),
		WithLogger(zap.NewNop()),
	}
	fx.svc, err = NewNotificationService(store, users, append(base, opts...)...)
	require.NoError(t, err)
	return fx
}

func boolPtr(v bool) *bool { return &v }
