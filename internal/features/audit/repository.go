package audit

import (
	"context"

	"go-family/internal/common/apperr"
	"go-family/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *Entry) error
	PatchAfter(ctx context.Context, id primitive.ObjectID, after string) error
	List(ctx context.Context, entityType, entityID string, limit, offset int64) ([]Entry, error)
}

type AuditRepositoryImpl struct {
	collection *mongo.Collection
}

func NewAuditRepository(mongodb *database.MongodbDB) AuditRepository {
	return &AuditRepositoryImpl{
		collection: mongodb.DB.Collection("audit_log"),
	}
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, entry *Entry) error {
	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}

	entry.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// PatchAfter fills in the After snapshot of a Before-only entry. This is
// the single allowed modification of an audit entry.
func (r *AuditRepositoryImpl) PatchAfter(ctx context.Context, id primitive.ObjectID, after string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "after": bson.M{"$in": bson.A{"", nil}}},
		bson.M{"$set": bson.M{"after": after}},
	)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrNotFound.WithMessage("audit entry not found or already finalized")
	}
	return nil
}

func (r *AuditRepositoryImpl) List(ctx context.Context, entityType, entityID string, limit, offset int64) ([]Entry, error) {
	query := bson.M{}
	if entityType != "" {
		query["entity_type"] = entityType
	}
	if entityID != "" {
		query["entity_id"] = entityID
	}

	opts := options.Find().SetLimit(limit).SetSkip(offset).SetSort(bson.M{"change_time": -1})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return entries, nil
}
