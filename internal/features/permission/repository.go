package permission

import (
	"context"
	"errors"
	"time"

	"go-family/internal/common/apperr"
	common_models "go-family/internal/common/models"
	"go-family/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PermissionRepository interface {
	Create(ctx context.Context, perm *ResourcePermission) error
	FindByTuple(ctx context.Context, target common_models.GrantTarget, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) (*ResourcePermission, error)
	FindGroupGrants(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error)
	FindByResource(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error)
	FindByUser(ctx context.Context, userID string) ([]ResourcePermission, error)
	FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]ResourcePermission, error)
	UpdateLevel(ctx context.Context, id primitive.ObjectID, level common_models.PermissionLevel, modifiedBy string, modifiedTime time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type PermissionRepositoryImpl struct {
	collection *mongo.Collection
}

func NewPermissionRepository(mongodb *database.MongodbDB) PermissionRepository {
	return &PermissionRepositoryImpl{
		collection: mongodb.DB.Collection("resource_permissions"),
	}
}

// EnsureIndexes creates the unique grant-tuple index. Duplicate grants are
// rejected by this index even when two concurrent requests pass the
// existence pre-check; the insert maps the collision to Conflict.
func (r *PermissionRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "group_id", Value: 1},
				{Key: "permission_type", Value: 1},
				{Key: "resource_id", Value: 1},
				{Key: "timeline_type", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uk_grant_tuple"),
		},
		{
			Keys: bson.D{
				{Key: "permission_type", Value: 1},
				{Key: "resource_id", Value: 1},
			},
			Options: options.Index().SetName("idx_resource"),
		},
	})
	return err
}

func (r *PermissionRepositoryImpl) Create(ctx context.Context, perm *ResourcePermission) error {
	doc := toDoc(perm)
	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.ErrConflict.WithMessage("permission grant already exists for this tuple")
		}
		return apperr.ErrDatabase.WithCause(err)
	}

	perm.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func tupleFilter(target common_models.GrantTarget, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) bson.M {
	filter := bson.M{
		"permission_type": string(permissionType),
		"resource_id":     resourceID,
		"timeline_type":   string(timelineType),
	}
	if userID, ok := target.User(); ok {
		filter["user_id"] = userID
	}
	if groupID, ok := target.Group(); ok {
		filter["group_id"] = groupID
	}
	return filter
}

// FindByTuple returns the single grant matching the tuple, or nil when no
// grant exists. Absence is not an error here; the resolver treats it as
// level None.
func (r *PermissionRepositoryImpl) FindByTuple(ctx context.Context, target common_models.GrantTarget, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) (*ResourcePermission, error) {
	var doc permissionDoc
	err := r.collection.FindOne(ctx, tupleFilter(target, permissionType, resourceID, timelineType)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return fromDoc(&doc), nil
}

// FindGroupGrants lists all group grants matching (type, resource,
// timeline type), regardless of which groups the caller belongs to.
func (r *PermissionRepositoryImpl) FindGroupGrants(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error) {
	filter := bson.M{
		"permission_type": string(permissionType),
		"resource_id":     resourceID,
		"timeline_type":   string(timelineType),
		"group_id":        bson.M{"$exists": true},
	}
	return r.findAll(ctx, filter)
}

func (r *PermissionRepositoryImpl) FindByResource(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error) {
	filter := bson.M{
		"permission_type": string(permissionType),
		"resource_id":     resourceID,
	}
	if timelineType != common_models.TimelineAny {
		filter["timeline_type"] = string(timelineType)
	}
	return r.findAll(ctx, filter)
}

func (r *PermissionRepositoryImpl) FindByUser(ctx context.Context, userID string) ([]ResourcePermission, error) {
	return r.findAll(ctx, bson.M{"user_id": userID})
}

func (r *PermissionRepositoryImpl) FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]ResourcePermission, error) {
	return r.findAll(ctx, bson.M{"group_id": groupID})
}

func (r *PermissionRepositoryImpl) findAll(ctx context.Context, filter bson.M) ([]ResourcePermission, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var docs []permissionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}

	perms := make([]ResourcePermission, 0, len(docs))
	for i := range docs {
		perms = append(perms, *fromDoc(&docs[i]))
	}
	return perms, nil
}

func (r *PermissionRepositoryImpl) UpdateLevel(ctx context.Context, id primitive.ObjectID, level common_models.PermissionLevel, modifiedBy string, modifiedTime time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"level":         int(level),
			"modified_by":   modifiedBy,
			"modified_time": modifiedTime,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrNotFound.WithMessage("permission grant not found")
	}
	return nil
}

func (r *PermissionRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	if result.DeletedCount == 0 {
		return apperr.ErrNotFound.WithMessage("permission grant not found")
	}
	return nil
}
