package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

// NotificationCollection is the MongoDB collection holding notifications.
const NotificationCollection = "notifications"

type channelsDocument struct {
	InApp bool `bson:"in_app"`
	Email bool `bson:"email"`
	SMS   bool `bson:"sms"`
}

type notificationDocument struct {
	ID          string           `bson:"_id"`
	RecipientID string           `bson:"recipient_id"`
	Type        string           `bson:"type"`
	Title       string           `bson:"title"`
	Message     string           `bson:"message"`
	Data        bson.Raw         `bson:"data,omitempty"`
	Channels    channelsDocument `bson:"channels"`
	ActionURL   string           `bson:"action_url,omitempty"`
	IsRead      bool             `bson:"is_read"`
	ReadAt      *time.Time       `bson:"read_at,omitempty"`
	Status      string           `bson:"status"`
	SentAt      *time.Time       `bson:"sent_at,omitempty"`
	CreatedAt   time.Time        `bson:"created_at"`
	UpdatedAt   time.Time        `bson:"updated_at"`
}

// MongoNotificationStore stores notifications as MongoDB documents.
type MongoNotificationStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoNotificationStore constructs a MongoNotificationStore.
func NewMongoNotificationStore(db *mongo.Database) (*MongoNotificationStore, error) {
	if db == nil {
		return nil, errors.New("notification store: mongo database is required")
	}
	return &MongoNotificationStore{coll: db.Collection(NotificationCollection), now: time.Now}, nil
}

// EnsureIndexes creates the indexes used by recipient listings and unread counts.
func (s *MongoNotificationStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ensureContext(ctx), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("recipient_read_created_idx"),
		},
		{
			Keys:    bson.D{{Key: "is_read", Value: 1}, {Key: "read_at", Value: 1}},
			Options: options.Index().SetName("read_at_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("notification store: ensure indexes: %w", err)
	}
	return nil
}

func (s *MongoNotificationStore) Insert(ctx context.Context, notification *models.Notification) error {
	if err := validateNotification(notification); err != nil {
		return err
	}
	now := s.now().UTC()
	if notification.ID == "" {
		notification.ID = uuid.Must(uuid.NewV7()).String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	notification.UpdatedAt = now

	doc, err := toNotificationDocument(notification)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ensureContext(ctx), doc); err != nil {
		return fmt.Errorf("notification store: insert: %w", err)
	}
	return nil
}

func (s *MongoNotificationStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	result, err := s.coll.UpdateByID(ensureContext(ctx), id, bson.M{"$set": bson.M{
		"status":     models.NotificationStatusSent,
		"sent_at":    at,
		"updated_at": s.now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("notification store: mark sent: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoNotificationStore) MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := unreadFilter(recipientID)
	filter["_id"] = bson.M{"$in": ids}
	return s.markRead(ctx, filter, at)
}

func (s *MongoNotificationStore) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	return s.markRead(ctx, unreadFilter(recipientID), at)
}

func (s *MongoNotificationStore) markRead(ctx context.Context, filter bson.M, at time.Time) (int64, error) {
	result, err := s.coll.UpdateMany(ensureContext(ctx), filter, bson.M{"$set": bson.M{
		"is_read":    true,
		"read_at":    at,
		"updated_at": s.now().UTC(),
	}})
	if err != nil {
		return 0, fmt.Errorf("notification store: mark read: %w", err)
	}
	return result.ModifiedCount, nil
}

func (s *MongoNotificationStore) DeleteOne(ctx context.Context, id, recipientID string) (bool, error) {
	result, err := s.coll.DeleteOne(ensureContext(ctx), bson.M{"_id": id, "recipient_id": recipientID})
	if err != nil {
		return false, fmt.Errorf("notification store: delete: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (s *MongoNotificationStore) Find(ctx context.Context, filter NotificationFilter, page Page) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	cur, err := s.coll.Find(ctx, notificationFilterDocument(filter), findOptions(page))
	if err != nil {
		return nil, fmt.Errorf("notification store: find: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Notification
	for cur.Next(ctx) {
		var doc notificationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("notification store: decode: %w", err)
		}
		notification, err := fromNotificationDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, notification)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("notification store: cursor: %w", err)
	}
	return out, nil
}

func (s *MongoNotificationStore) Count(ctx context.Context, filter NotificationFilter) (int64, error) {
	count, err := s.coll.CountDocuments(ensureContext(ctx), notificationFilterDocument(filter))
	if err != nil {
		return 0, fmt.Errorf("notification store: count: %w", err)
	}
	return count, nil
}

func (s *MongoNotificationStore) PurgeRead(ctx context.Context, readBefore time.Time) (int64, error) {
	result, err := s.coll.DeleteMany(ensureContext(ctx), bson.M{
		"is_read": true,
		"read_at": bson.M{"$lt": readBefore},
	})
	if err != nil {
		return 0, fmt.Errorf("notification store: purge read: %w", err)
	}
	return result.DeletedCount, nil
}

func unreadFilter(recipientID string) bson.M {
	return bson.M{"recipient_id": recipientID, "is_read": false}
}

func notificationFilterDocument(filter NotificationFilter) bson.M {
	if filter.UnreadOnly {
		return unreadFilter(filter.RecipientID)
	}
	return bson.M{"recipient_id": filter.RecipientID}
}

func findOptions(page Page) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	if page.Offset > 0 {
		opts.SetSkip(int64(page.Offset))
	}
	return opts
}

func toNotificationDocument(n *models.Notification) (notificationDocument, error) {
	doc := notificationDocument{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		Channels: channelsDocument{
			InApp: n.Channels.InApp,
			Email: n.Channels.Email,
			SMS:   n.Channels.SMS,
		},
		ActionURL: n.ActionURL,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		Status:    n.Status,
		SentAt:    n.SentAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}

	if len(n.Data) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(n.Data, &payload); err != nil {
			return doc, fmt.Errorf("notification store: decode data: %w", err)
		}
		raw, err := bson.Marshal(payload)
		if err != nil {
			return doc, fmt.Errorf("notification store: encode data: %w", err)
		}
		doc.Data = raw
	}
	return doc, nil
}

func fromNotificationDocument(doc notificationDocument) (models.Notification, error) {
	n := models.Notification{
		BaseModel: models.BaseModel{
			ID:        doc.ID,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		},
		RecipientID: doc.RecipientID,
		Type:        doc.Type,
		Title:       doc.Title,
		Message:     doc.Message,
		Channels: models.Channels{
			InApp: doc.Channels.InApp,
			Email: doc.Channels.Email,
			SMS:   doc.Channels.SMS,
		},
		ActionURL: doc.ActionURL,
		IsRead:    doc.IsRead,
		ReadAt:    doc.ReadAt,
		Status:    doc.Status,
		SentAt:    doc.SentAt,
	}

	if len(doc.Data) > 0 {
		data, err := bson.MarshalExtJSON(doc.Data, false, false)
		if err != nil {
			return n, fmt.Errorf("notification store: render data: %w", err)
		}
		n.Data = datatypes.JSON(data)
	}
	return n, nil
}
