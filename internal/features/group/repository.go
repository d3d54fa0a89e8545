package group

import (
	"context"
	"errors"

	"go-family/internal/common/apperr"
	common_models "go-family/internal/common/models"
	"go-family/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GroupRepository interface {
	Create(ctx context.Context, g *UserGroup) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*UserGroup, error)
	FindByScope(ctx context.Context, scope common_models.GroupScope) ([]UserGroup, error)
	Update(ctx context.Context, g *UserGroup) error
	DeleteWithMembers(ctx context.Context, id primitive.ObjectID) error
}

type MemberRepository interface {
	Create(ctx context.Context, m *UserGroupMember) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*UserGroupMember, error)
	FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]UserGroupMember, error)
	FindGroupIDsByUser(ctx context.Context, userID string) ([]primitive.ObjectID, error)
	FindGroupIDsByEmail(ctx context.Context, normalizedEmail string) ([]primitive.ObjectID, error)
	FindUnresolved(ctx context.Context, limit int64) ([]UserGroupMember, error)
	Update(ctx context.Context, m *UserGroupMember) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	IsMember(ctx context.Context, userID string, groupID primitive.ObjectID) (bool, error)
}

type GroupRepositoryImpl struct {
	collection *mongo.Collection
	members    *mongo.Collection
}

func NewGroupRepository(mongodb *database.MongodbDB) GroupRepository {
	return &GroupRepositoryImpl{
		collection: mongodb.DB.Collection("user_groups"),
		members:    mongodb.DB.Collection("user_group_members"),
	}
}

func (r *GroupRepositoryImpl) Create(ctx context.Context, g *UserGroup) error {
	result, err := r.collection.InsertOne(ctx, toDoc(g))
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}

	g.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByID returns nil when the group does not exist; the service layer
// decides whether that is NotFound.
func (r *GroupRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*UserGroup, error) {
	var doc groupDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return fromDoc(&doc), nil
}

func (r *GroupRepositoryImpl) FindByScope(ctx context.Context, scope common_models.GroupScope) ([]UserGroup, error) {
	filter := bson.M{}
	if familyID, ok := scope.Family(); ok {
		filter["family_id"] = familyID
	}
	if progenyID, ok := scope.Progeny(); ok {
		filter["progeny_id"] = progenyID
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var docs []groupDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}

	groups := make([]UserGroup, 0, len(docs))
	for i := range docs {
		groups = append(groups, *fromDoc(&docs[i]))
	}
	return groups, nil
}

func (r *GroupRepositoryImpl) Update(ctx context.Context, g *UserGroup) error {
	doc := toDoc(g)
	update := bson.M{
		"$set": bson.M{
			"name":          doc.Name,
			"description":   doc.Description,
			"is_family":     doc.IsFamily,
			"modified_time": doc.ModifiedTime,
			"modified_by":   doc.ModifiedBy,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": g.ID}, update)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrNotFound.WithMessage("user group not found")
	}
	return nil
}

// DeleteWithMembers removes the group and all of its membership rows in a
// single transaction, members first.
func (r *GroupRepositoryImpl) DeleteWithMembers(ctx context.Context, id primitive.ObjectID) error {
	session, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.members.DeleteMany(sessCtx, bson.M{"user_group_id": id}); err != nil {
			return nil, err
		}

		result, err := r.collection.DeleteOne(sessCtx, bson.M{"_id": id})
		if err != nil {
			return nil, err
		}
		if result.DeletedCount == 0 {
			return nil, apperr.ErrNotFound.WithMessage("user group not found")
		}
		return nil, nil
	})

	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperr.ErrDatabase.WithCause(err)
	}
	return nil
}

type MemberRepositoryImpl struct {
	collection *mongo.Collection
}

func NewMemberRepository(mongodb *database.MongodbDB) MemberRepository {
	return &MemberRepositoryImpl{
		collection: mongodb.DB.Collection("user_group_members"),
	}
}

func (r *MemberRepositoryImpl) Create(ctx context.Context, m *UserGroupMember) error {
	result, err := r.collection.InsertOne(ctx, m)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}

	m.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MemberRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*UserGroupMember, error) {
	var m UserGroupMember
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return &m, nil
}

func (r *MemberRepositoryImpl) FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]UserGroupMember, error) {
	return r.findAll(ctx, bson.M{"user_group_id": groupID})
}

func (r *MemberRepositoryImpl) FindGroupIDsByUser(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	return r.distinctGroupIDs(ctx, bson.M{"user_id": userID})
}

func (r *MemberRepositoryImpl) FindGroupIDsByEmail(ctx context.Context, normalizedEmail string) ([]primitive.ObjectID, error) {
	return r.distinctGroupIDs(ctx, bson.M{"normalized_email": normalizedEmail})
}

// FindUnresolved lists member rows that still have an email but no
// resolved user id; the backfill sweep retries these.
func (r *MemberRepositoryImpl) FindUnresolved(ctx context.Context, limit int64) ([]UserGroupMember, error) {
	filter := bson.M{
		"user_id": bson.M{"$in": bson.A{"", nil}},
		"email":   bson.M{"$nin": bson.A{"", nil}},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var members []UserGroupMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return members, nil
}

func (r *MemberRepositoryImpl) Update(ctx context.Context, m *UserGroupMember) error {
	update := bson.M{
		"$set": bson.M{
			"user_id":            m.UserID,
			"email":              m.Email,
			"normalized_email":   m.NormalizedEmail,
			"user_owner_user_id": m.UserOwnerUserID,
			"family_owner_id":    m.FamilyOwnerID,
			"modified_time":      m.ModifiedTime,
			"modified_by":        m.ModifiedBy,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": m.ID}, update)
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrNotFound.WithMessage("group member not found")
	}
	return nil
}

func (r *MemberRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.ErrDatabase.WithCause(err)
	}
	if result.DeletedCount == 0 {
		return apperr.ErrNotFound.WithMessage("group member not found")
	}
	return nil
}

func (r *MemberRepositoryImpl) IsMember(ctx context.Context, userID string, groupID primitive.ObjectID) (bool, error) {
	if userID == "" {
		return false, nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"user_group_id": groupID,
		"user_id":       userID,
	})
	if err != nil {
		return false, apperr.ErrDatabase.WithCause(err)
	}
	return count > 0, nil
}

func (r *MemberRepositoryImpl) findAll(ctx context.Context, filter bson.M) ([]UserGroupMember, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	defer cursor.Close(ctx)

	var members []UserGroupMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}
	return members, nil
}

func (r *MemberRepositoryImpl) distinctGroupIDs(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	values, err := r.collection.Distinct(ctx, "user_group_id", filter)
	if err != nil {
		return nil, apperr.ErrDatabase.WithCause(err)
	}

	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
