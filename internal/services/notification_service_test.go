package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Parthmh361/pure-harvest/internal/database/testutil"
	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/internal/repository"
	apperrors "github.com/Parthmh361/pure-harvest/pkg/errors"
)

func TestNewNotificationServiceRequiresStores(t *testing.T) {
	_, err := NewNotificationService(nil, nil)
	require.Error(t, err)

	db := testutil.NewDB(t)
	store, err := repository.NewGormNotificationStore(db)
	require.NoError(t, err)
	_, err = NewNotificationService(store, nil)
	require.Error(t, err)
}

func TestCreateDefaults(t *testing.T) {
	fx := newFixture(t)
	testutil.MustCreateUser(t, fx.db, "buyer-1", models.RoleBuyer)

	dto, err := fx.svc.Create(context.Background(), CreateNotificationInput{
		RecipientID: "buyer-1",
		Type:        "order_placed",
		Message:     "Order #123 placed",
		Data:        map[string]any{"orderId": "123", "amount": 500},
	})
	require.NoError(t, err)
	require.NotEmpty(t, dto.ID)
	require.Empty(t, dto.Title)
	require.Equal(t, "Order #123 placed", dto.Message)
	require.False(t, dto.IsRead)
	require.Equal(t, models.Channels{InApp: true, Email: false, SMS: false}, dto.Channels)
	require.Equal(t, models.NotificationStatusPending, dto.Status)
	require.Equal(t, "123", dto.Data["orderId"])

	page, err := fx.svc.GetUserNotifications(context.Background(), "buyer-1", ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	stored := page.Notifications[0]
	require.False(t, stored.IsRead)
	require.True(t, stored.Channels.InApp)
	require.EqualValues(t, 500, stored.Data["amount"])

	// creation alone does not push anything
	require.Empty(t, fx.publisher.events("buyer-1"))
}

func TestCreateKeepsExplicitChannelsAndTrimsMessage(t *testing.T) {
	fx := newFixture(t)
	testutil.MustCreateUser(t, fx.db, "farmer-1", models.RoleFarmer)

	dto, err := fx.svc.Create(context.Background(), CreateNotificationInput{
		RecipientID: " farmer-1 ",
		Message:     "  Harvest pickup tomorrow  ",
		Channels:    &models.Channels{Email: true},
		ActionURL:   "/farmer/orders/o1",
	})
	require.NoError(t, err)
	require.Equal(t, "Harvest pickup tomorrow", dto.Message)
	require.Equal(t, DefaultNotificationType, dto.Type)
	require.Equal(t, models.Channels{Email: true}, dto.Channels)
	require.Equal(t, "/farmer/orders/o1", dto.ActionURL)
}

func TestCreateRejectsBlankMessage(t *testing.T) {
	fx := newFixture(t)
	testutil.MustCreateUser(t, fx.db, "buyer-1", models.RoleBuyer)

	for _, message := range []string{"", " ", "\t\n  "} {
		_, err := fx.svc.Create(context.Background(), CreateNotificationInput{RecipientID: "buyer-1", Message: message})
		require.ErrorIs(t, err, ErrMessageRequired, "message %q", message)
	}

	count, err := fx.svc.GetUnreadCount(context.Background(), "buyer-1")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateRejectsUnknownRecipient(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Create(context.Background(), CreateNotificationInput{RecipientID: "ghost", Message: "x"})
	require.ErrorIs(t, err, ErrRecipientNotFound)
	require.EqualError(t, err, "Recipient not found")

	_, err = fx.svc.Create(context.Background(), CreateNotificationInput{Message: "x"})
	require.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestCreatePropagatesStoreErrors(t *testing.T) {
	fx := newFixture(t)
	testutil.MustCreateUser(t, fx.db, "buyer-1", models.RoleBuyer)

	svc, err := NewNotificationService(&flakyStore{NotificationStore: fx.store}, fx.users)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateNotificationInput{RecipientID: "buyer-1", Message: "x"})
	require.ErrorIs(t, err, errStoreDown)
}

func TestApplyUserPreferences(t *testing.T) {
	all := models.Channels{InApp: true, Email: true, SMS: true}

	cases := []struct {
		name  string
		prefs models.NotificationPreferences
		want  models.Channels
	}{
		{"unset keeps in-app only", models.NotificationPreferences{}, models.Channels{InApp: true}},
		{"explicit opt-in", models.NotificationPreferences{Email: boolPtr(true), SMS: boolPtr(true)}, all},
		{"in-app disabled", models.NotificationPreferences{InApp: boolPtr(false), Email: boolPtr(true)}, models.Channels{Email: true}},
		{"opt-out", models.NotificationPreferences{InApp: boolPtr(true), Email: boolPtr(false), SMS: boolPtr(false)}, models.Channels{InApp: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := &models.User{Preferences: tc.prefs}
			require.Equal(t, tc.want, ApplyUserPreferences(all, user))
		})
	}

	// nothing is enabled that was not requested
	optedIn := &models.User{Preferences: models.NotificationPreferences{Email: boolPtr(true), SMS: boolPtr(true)}}
	require.Equal(t, models.Channels{}, ApplyUserPreferences(models.Channels{}, optedIn))
	require.Equal(t, all, ApplyUserPreferences(all, nil))
}

func TestMarkAsReadOnlyTouchesOwnedNotifications(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	testutil.MustCreateUser(t, fx.db, "alice", models.RoleBuyer)
	testutil.MustCreateUser(t, fx.db, "bob", models.RoleBuyer)

	mine, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: "one"})
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: "two"})
	require.NoError(t, err)
	theirs, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "bob", Message: "three"})
	require.NoError(t, err)

	updated, err := fx.svc.MarkAsRead(ctx, []string{mine.ID, theirs.ID, mine.ID, " "}, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 1, updated)

	aliceUnread, err := fx.svc.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 1, aliceUnread)

	bobUnread, err := fx.svc.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 1, bobUnread)

	bobPage, err := fx.svc.GetUserNotifications(ctx, "bob", ListNotificationsInput{})
	require.NoError(t, err)
	require.False(t, bobPage.Notifications[0].IsRead)
	require.Nil(t, bobPage.Notifications[0].ReadAt)

	require.Equal(t, []string{realtime.EventNotificationRead}, fx.publisher.events("alice"))
	require.Empty(t, fx.publisher.events("bob"))

	updated, err = fx.svc.MarkAsRead(ctx, nil, "alice")
	require.NoError(t, err)
	require.Zero(t, updated)

	_, err = fx.svc.MarkAsRead(ctx, []string{mine.ID}, "")
	require.ErrorIs(t, err, ErrUserRequired)
}

func TestMarkAllAsReadIsScopedToUser(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	testutil.MustCreateUser(t, fx.db, "alice", models.RoleBuyer)
	testutil.MustCreateUser(t, fx.db, "bob", models.RoleFarmer)

	for i := 0; i < 3; i++ {
		_, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: fmt.Sprintf("a%d", i)})
		require.NoError(t, err)
		_, err = fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "bob", Message: fmt.Sprintf("b%d", i)})
		require.NoError(t, err)
	}

	updated, err := fx.svc.MarkAllAsRead(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 3, updated)

	count, err := fx.svc.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, count)

	count, err = fx.svc.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	page, err := fx.svc.GetUserNotifications(ctx, "alice", ListNotificationsInput{})
	require.NoError(t, err)
	for _, n := range page.Notifications {
		require.True(t, n.IsRead)
		require.NotNil(t, n.ReadAt)
	}
	require.Contains(t, fx.publisher.events("alice"), realtime.EventNotificationReadAll)
}

func TestGetUserNotificationsPaginationIsComplete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	testutil.MustCreateUser(t, fx.db, "alice", models.RoleBuyer)
	testutil.MustCreateUser(t, fx.db, "bob", models.RoleBuyer)

	const total = 23
	var createdOrder []string
	for i := 0; i < total; i++ {
		dto, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: fmt.Sprintf("n%02d", i)})
		require.NoError(t, err)
		createdOrder = append(createdOrder, dto.ID)
	}
	_, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "bob", Message: "other"})
	require.NoError(t, err)

	for _, limit := range []int{1, 5, 7, 23, 50} {
		seen := make(map[string]struct{})
		var ordered []NotificationDTO
		for page := 1; ; page++ {
			result, err := fx.svc.GetUserNotifications(ctx, "alice", ListNotificationsInput{Page: page, Limit: limit})
			require.NoError(t, err)
			require.EqualValues(t, total, result.Total)
			require.EqualValues(t, total, result.UnreadCount)
			require.Equal(t, page, result.CurrentPage)
			require.Equal(t, (total+limit-1)/limit, result.TotalPages)

			for _, n := range result.Notifications {
				_, dup := seen[n.ID]
				require.False(t, dup, "duplicate %s at limit %d", n.ID, limit)
				seen[n.ID] = struct{}{}
				ordered = append(ordered, n)
			}
			if !result.HasMore {
				break
			}
		}

		require.Len(t, ordered, total, "limit %d", limit)
		for i := 1; i < len(ordered); i++ {
			require.False(t, ordered[i].CreatedAt.After(ordered[i-1].CreatedAt))
		}
		require.Equal(t, createdOrder[total-1], ordered[0].ID)
		require.Equal(t, createdOrder[0], ordered[total-1].ID)
	}
}

func TestGetUserNotificationsDefaultsAndUnreadFilter(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	testutil.MustCreateUser(t, fx.db, "alice", models.RoleBuyer)

	var first *NotificationDTO
	for i := 0; i < 25; i++ {
		dto, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
		if first == nil {
			first = dto
		}
	}
	_, err := fx.svc.MarkAsRead(ctx, []string{first.ID}, "alice")
	require.NoError(t, err)

	page, err := fx.svc.GetUserNotifications(ctx, "alice", ListNotificationsInput{Page: -3})
	require.NoError(t, err)
	require.Equal(t, 1, page.CurrentPage)
	require.Equal(t, DefaultPageSize, page.Limit)
	require.Len(t, page.Notifications, DefaultPageSize)
	require.True(t, page.HasMore)

	capped, err := fx.svc.GetUserNotifications(ctx, "alice", ListNotificationsInput{Limit: 1000})
	require.NoError(t, err)
	require.Equal(t, MaxPageSize, capped.Limit)
	require.Len(t, capped.Notifications, 25)
	require.False(t, capped.HasMore)

	unread, err := fx.svc.GetUserNotifications(ctx, "alice", ListNotificationsInput{UnreadOnly: true, Limit: 100})
	require.NoError(t, err)
	require.EqualValues(t, 24, unread.Total)
	require.EqualValues(t, 24, unread.UnreadCount)
	for _, n := range unread.Notifications {
		require.NotEqual(t, first.ID, n.ID)
	}

	empty, err := fx.svc.GetUserNotifications(ctx, "nobody", ListNotificationsInput{})
	require.NoError(t, err)
	require.Empty(t, empty.Notifications)
	require.Zero(t, empty.TotalPages)
	require.False(t, empty.HasMore)
}

func TestGetUserNotificationsPastLastPage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	testutil.MustCreateUser(t, fx.db, "alice", models.RoleBuyer)
	for i := 0; i < 3; i++ {
		_, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
	}

	for _, page := range []int{2, math.MaxInt / 20, math.MaxInt/20 + 1, math.MaxInt} {
		result, err := fx.svc.GetUserNotifications(ctx, "alice", ListNotificationsInput{Page: page, Limit: 20})
		require.NoError(t, err, "page %d", page)
		require.Empty(t, result.Notifications, "page %d", page)
		require.False(t, result.HasMore, "page %d", page)
		require.Equal(t, page, result.CurrentPage)
		require.Equal(t, 1, result.TotalPages)
		require.EqualValues(t, 3, result.Total)
		require.EqualValues(t, 3, result.UnreadCount)
	}
}

func TestDeleteNotificationIsScopedAndSilent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	testutil.MustCreateUser(t, fx.db, "alice", models.RoleBuyer)

	dto, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: "bye"})
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteNotification(ctx, dto.ID, "mallory"))
	count, err := fx.svc.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, fx.svc.DeleteNotification(ctx, dto.ID, "alice"))
	require.NoError(t, fx.svc.DeleteNotification(ctx, dto.ID, "alice"))
	require.NoError(t, fx.svc.DeleteNotification(ctx, "missing", "alice"))

	count, err = fx.svc.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, []string{realtime.EventNotificationDeleted}, fx.publisher.events("alice"))
}

type countFailingStore struct {
	repository.NotificationStore
}

func (countFailingStore) Count(context.Context, repository.NotificationFilter) (int64, error) {
	return 0, errStoreDown
}

func TestGetUserNotificationsHidesStoreFailure(t *testing.T) {
	fx := newFixture(t)
	svc, err := NewNotificationService(countFailingStore{NotificationStore: fx.store}, fx.users)
	require.NoError(t, err)

	_, err = svc.GetUserNotifications(context.Background(), "buyer-1", ListNotificationsInput{})
	require.ErrorIs(t, err, errStoreDown)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusInternalServerError, appErr.Status())
	require.Equal(t, "Failed to load notifications", appErr.Message)
}

func TestDeleteNotificationBroadcastsTrimmedID(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	testutil.MustCreateUser(t, fx.db, "alice", models.RoleBuyer)

	dto, err := fx.svc.Create(ctx, CreateNotificationInput{RecipientID: "alice", Message: "bye"})
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteNotification(ctx, "  "+dto.ID+"\t", "alice"))

	messages := fx.publisher.messages["alice"]
	require.Len(t, messages, 1)
	payload, ok := messages[0].Data.(*NotificationEventPayload)
	require.True(t, ok)
	require.Equal(t, dto.ID, payload.NotificationID)
}
