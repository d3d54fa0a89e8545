package permission

import (
	"context"

	common_models "go-family/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipIndex answers group membership questions. Implemented by the
// group feature; declared here so the resolver does not depend on it.
type MembershipIndex interface {
	IsMember(ctx context.Context, userID string, groupID primitive.ObjectID) (bool, error)
}

// Resolver computes the effective permission level of a user over a
// resource, combining the user's direct grant with grants held by groups
// the user belongs to. It is a pure read with no side effects and no
// authority checks.
type Resolver interface {
	HasPermission(ctx context.Context, userID string, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType, required common_models.PermissionLevel) (bool, error)
	EffectiveLevel(ctx context.Context, userID string, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) (common_models.PermissionLevel, error)
}

type ResolverImpl struct {
	repo    PermissionRepository
	members MembershipIndex
}

func NewResolver(repo PermissionRepository, members MembershipIndex) Resolver {
	return &ResolverImpl{
		repo:    repo,
		members: members,
	}
}

// HasPermission reports whether the user's effective level meets the
// required level. A direct grant that already satisfies the requirement
// short-circuits the group resolution.
func (r *ResolverImpl) HasPermission(ctx context.Context, userID string, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType, required common_models.PermissionLevel) (bool, error) {
	direct, err := r.repo.FindByTuple(ctx, common_models.UserTarget(userID), permissionType, resourceID, timelineType)
	if err != nil {
		return false, err
	}
	if direct != nil && direct.Level.Satisfies(required) {
		return true, nil
	}

	groupLevel, err := r.maxGroupLevel(ctx, userID, permissionType, resourceID, timelineType)
	if err != nil {
		return false, err
	}
	return groupLevel.Satisfies(required), nil
}

// EffectiveLevel returns max(direct level, highest group level). A missing
// direct grant counts as None.
func (r *ResolverImpl) EffectiveLevel(ctx context.Context, userID string, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) (common_models.PermissionLevel, error) {
	level := common_models.LevelNone

	direct, err := r.repo.FindByTuple(ctx, common_models.UserTarget(userID), permissionType, resourceID, timelineType)
	if err != nil {
		return common_models.LevelNone, err
	}
	if direct != nil {
		level = direct.Level
	}

	groupLevel, err := r.maxGroupLevel(ctx, userID, permissionType, resourceID, timelineType)
	if err != nil {
		return common_models.LevelNone, err
	}
	if groupLevel > level {
		level = groupLevel
	}
	return level, nil
}

func (r *ResolverImpl) maxGroupLevel(ctx context.Context, userID string, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) (common_models.PermissionLevel, error) {
	grants, err := r.repo.FindGroupGrants(ctx, permissionType, resourceID, timelineType)
	if err != nil {
		return common_models.LevelNone, err
	}

	max := common_models.LevelNone
	for _, grant := range grants {
		groupID, ok := grant.Target.Group()
		if !ok {
			continue
		}
		member, err := r.members.IsMember(ctx, userID, groupID)
		if err != nil {
			return common_models.LevelNone, err
		}
		if member && grant.Level > max {
			max = grant.Level
		}
	}
	return max, nil
}
