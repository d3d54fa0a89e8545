package permission

import (
	"context"

	common_models "go-family/internal/common/models"
)

// authorityTable maps the permission type being mutated to the permission
// type of the direct Admin grant that confers authority over it. Timeline
// items are administered through the family member (progeny) that owns
// them.
var authorityTable = map[common_models.PermissionType]common_models.PermissionType{
	common_models.TypeTimelineItem: common_models.TypeFamilyMember,
	common_models.TypeFamilyMember: common_models.TypeFamilyMember,
	common_models.TypeFamily:       common_models.TypeFamily,
}

// AuthorityGate decides whether an acting user may grant, revoke or update
// permission records for an entity. This is distinct from Resolver, which
// decides whether a user may use the protected resource.
type AuthorityGate interface {
	IsAuthorityOver(ctx context.Context, actingUserID string, permissionType common_models.PermissionType, entityID uint64) (bool, error)
}

type AuthorityGateImpl struct {
	repo PermissionRepository
}

func NewAuthorityGate(repo PermissionRepository) AuthorityGate {
	return &AuthorityGateImpl{repo: repo}
}

// IsAuthorityOver requires a direct Admin grant of the mapped type on the
// entity. Group-inherited Admin does not confer authority.
func (g *AuthorityGateImpl) IsAuthorityOver(ctx context.Context, actingUserID string, permissionType common_models.PermissionType, entityID uint64) (bool, error) {
	requiredType, ok := authorityTable[permissionType]
	if !ok {
		return false, nil
	}

	direct, err := g.repo.FindByTuple(ctx, common_models.UserTarget(actingUserID), requiredType, entityID, common_models.TimelineAny)
	if err != nil {
		return false, err
	}
	return direct != nil && direct.Level.Satisfies(common_models.LevelAdmin), nil
}
