package user

import (
	"context"
	"errors"
	"strings"

	"go-family/internal/common/apperr"
	"go-family/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// User is a directory row mapping a user id to an email address. The
// directory is read-only from this subsystem's point of view; account
// management lives elsewhere.
type User struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID          string             `json:"user_id" bson:"user_id"`
	Email           string             `json:"email" bson:"email"`
	NormalizedEmail string             `json:"-" bson:"normalized_email"`
	DisplayName     string             `json:"display_name,omitempty" bson:"display_name,omitempty"`
}

// DirectoryLookup resolves a normalized email address to a user id.
type DirectoryLookup interface {
	FindUserIDByEmail(ctx context.Context, email string) (string, bool, error)
}

// NormalizeEmail trims whitespace and lowercases an email address for the
// exact-match directory lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type DirectoryRepositoryImpl struct {
	collection *mongo.Collection
}

func NewDirectoryRepository(mongodb *database.MongodbDB) DirectoryLookup {
	return &DirectoryRepositoryImpl{
		collection: mongodb.DB.Collection("users"),
	}
}

// FindUserIDByEmail resolves an email to a user id. A missing directory
// entry is not an error; it returns found=false so callers can treat the
// lookup as best-effort.
func (r *DirectoryRepositoryImpl) FindUserIDByEmail(ctx context.Context, email string) (string, bool, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", false, nil
	}

	var u User
	err := r.collection.FindOne(ctx, bson.M{"normalized_email": normalized}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, apperr.ErrDatabase.WithCause(err)
	}
	return u.UserID, true, nil
}
