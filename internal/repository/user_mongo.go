package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

// UserCollection is the marketplace's users collection. Documents use the
// marketplace's camelCase field names; _id may be an ObjectId or a string.
const UserCollection = "users"

type preferencesDocument struct {
	InApp *bool `bson:"inApp,omitempty"`
	Email *bool `bson:"email,omitempty"`
	SMS   *bool `bson:"sms,omitempty"`
}

type userDocument struct {
	ID          string              `bson:"_id"`
	Name        string              `bson:"name"`
	Email       string              `bson:"email"`
	Phone       string              `bson:"phone,omitempty"`
	Role        string              `bson:"role"`
	IsActive    bool                `bson:"isActive"`
	Preferences preferencesDocument `bson:"notificationPreferences"`
	CreatedAt   time.Time           `bson:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt"`
}

// MongoUserStore reads users from MongoDB.
type MongoUserStore struct {
	coll *mongo.Collection
}

// NewMongoUserStore constructs a MongoUserStore.
func NewMongoUserStore(db *mongo.Database) (*MongoUserStore, error) {
	if db == nil {
		return nil, errors.New("user store: mongo database is required")
	}
	return &MongoUserStore{coll: db.Collection(UserCollection)}, nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var doc userDocument
	err := s.coll.FindOne(ensureContext(ctx), userIDFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user store: find by id: %w", err)
	}
	user := fromUserDocument(doc)
	return &user, nil
}

func (s *MongoUserStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	cur, err := s.coll.Find(ctx, bson.M{"isActive": true}, options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("user store: list active: %w", err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("user store: decode: %w", err)
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// userIDFilter matches id as stored, or as an ObjectId when it is one in hex.
func userIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func fromUserDocument(doc userDocument) models.User {
	return models.User{
		BaseModel: models.BaseModel{
			ID:        doc.ID,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		},
		Name:     doc.Name,
		Email:    doc.Email,
		Phone:    doc.Phone,
		Role:     doc.Role,
		IsActive: doc.IsActive,
		Preferences: models.NotificationPreferences{
			InApp: doc.Preferences.InApp,
			Email: doc.Preferences.Email,
			SMS:   doc.Preferences.SMS,
		},
	}
}
