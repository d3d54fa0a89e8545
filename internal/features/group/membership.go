package group

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipIndex answers "is user U a member of group G" and "which
// groups does user U belong to". It satisfies the permission resolver's
// membership dependency.
type MembershipIndex interface {
	IsMember(ctx context.Context, userID string, groupID primitive.ObjectID) (bool, error)
	GroupsForUser(ctx context.Context, userID string) ([]primitive.ObjectID, error)
}

type MembershipIndexImpl struct {
	members MemberRepository
}

func NewMembershipIndex(members MemberRepository) MembershipIndex {
	return &MembershipIndexImpl{members: members}
}

func (m *MembershipIndexImpl) IsMember(ctx context.Context, userID string, groupID primitive.ObjectID) (bool, error) {
	return m.members.IsMember(ctx, userID, groupID)
}

func (m *MembershipIndexImpl) GroupsForUser(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	return m.members.FindGroupIDsByUser(ctx, userID)
}
