package group

import (
	"context"
	"time"

	"go-family/internal/common/apperr"
	common_models "go-family/internal/common/models"
	"go-family/internal/features/audit"
	"go-family/internal/features/user"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Resolver is the slice of the permission resolver this service needs for
// its access checks. Implemented by the permission feature; wired in the
// application composition.
type Resolver interface {
	HasPermission(ctx context.Context, userID string, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType, required common_models.PermissionLevel) (bool, error)
}

// UserGroupService manages groups and their memberships. Mutations are
// gated by ordinary Edit access to the group's owning scope, a weaker
// requirement than the Admin authority the grant service demands. List
// operations for a scope require Admin.
type UserGroupService interface {
	GetUserGroup(ctx context.Context, groupID primitive.ObjectID, actor string) (*UserGroup, error)
	AddUserGroup(ctx context.Context, g *UserGroup, actor string) (*UserGroup, error)
	UpdateUserGroup(ctx context.Context, g *UserGroup, actor string) (*UserGroup, error)
	RemoveUserGroup(ctx context.Context, groupID primitive.ObjectID, actor string) error

	AddUserGroupMember(ctx context.Context, m *UserGroupMember, actor string) (*UserGroupMember, error)
	UpdateUserGroupMember(ctx context.Context, m *UserGroupMember, actor string) (*UserGroupMember, error)
	RemoveUserGroupMember(ctx context.Context, memberID primitive.ObjectID, actor string) error

	GetUserGroupsForProgeny(ctx context.Context, progenyID uint64, actor string) ([]UserGroup, error)
	GetUserGroupsForFamily(ctx context.Context, familyID uint64, actor string) ([]UserGroup, error)
	GetUsersUserGroupsByUserID(ctx context.Context, userID string, actor string) ([]UserGroup, error)
	GetUsersUserGroupsByEmail(ctx context.Context, email string, actor string) ([]UserGroup, error)
}

type UserGroupServiceImpl struct {
	Groups       GroupRepository
	Members      MemberRepository
	Resolver     Resolver
	Directory    user.DirectoryLookup
	AuditService audit.AuditService
	Logger       *zap.Logger
}

func NewUserGroupService(
	groups GroupRepository,
	members MemberRepository,
	resolver Resolver,
	directory user.DirectoryLookup,
	auditService audit.AuditService,
	logger *zap.Logger,
) UserGroupService {
	return &UserGroupServiceImpl{
		Groups:       groups,
		Members:      members,
		Resolver:     resolver,
		Directory:    directory,
		AuditService: auditService,
		Logger:       logger,
	}
}

// GetUserGroup returns the group with its members populated. NotFound and
// Forbidden are reported distinctly.
func (s *UserGroupServiceImpl) GetUserGroup(ctx context.Context, groupID primitive.ObjectID, actor string) (*UserGroup, error) {
	g, err := s.Groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.ErrNotFound.WithMessage("user group not found")
	}

	if err := s.requireScopeAccess(ctx, actor, g.Scope, common_models.LevelEdit); err != nil {
		return nil, err
	}

	members, err := s.Members.FindByGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	g.Members = members
	return g, nil
}

func (s *UserGroupServiceImpl) AddUserGroup(ctx context.Context, g *UserGroup, actor string) (*UserGroup, error) {
	if g.Name == "" {
		return nil, apperr.ErrInvalid.WithMessage("group name is required")
	}
	if g.Scope.IsZero() {
		return nil, apperr.ErrInvalid.WithMessage("group must be scoped to a family or a progeny")
	}

	if err := s.requireScopeAccess(ctx, actor, g.Scope, common_models.LevelEdit); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	g.CreatedTime = now
	g.ModifiedTime = now
	g.ModifiedBy = actor

	if err := s.Groups.Create(ctx, g); err != nil {
		return nil, err
	}

	s.AuditService.Created(ctx, common_models.AuditActionCreate, audit.EntityUserGroup, g.ID.Hex(), g, actor)
	s.Logger.Info("user group created",
		zap.String("group_id", g.ID.Hex()),
		zap.String("scope", g.Scope.String()),
		zap.String("actor", actor))

	return g, nil
}

// UpdateUserGroup changes name, description and the family flag. The
// owning scope of a group is immutable.
func (s *UserGroupServiceImpl) UpdateUserGroup(ctx context.Context, g *UserGroup, actor string) (*UserGroup, error) {
	if g.Name == "" {
		return nil, apperr.ErrInvalid.WithMessage("group name is required")
	}

	existing, err := s.Groups.FindByID(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.ErrNotFound.WithMessage("user group not found")
	}

	if err := s.requireScopeAccess(ctx, actor, existing.Scope, common_models.LevelEdit); err != nil {
		return nil, err
	}

	// Snapshot by value so the in-place mutation below cannot leak into
	// the Before state.
	before := *existing
	entryID := s.AuditService.Begin(ctx, common_models.AuditActionUpdate, audit.EntityUserGroup, existing.ID.Hex(), &before, actor)

	existing.Name = g.Name
	existing.Description = g.Description
	existing.IsFamily = g.IsFamily
	existing.ModifiedTime = time.Now().UTC()
	existing.ModifiedBy = actor

	if err := s.Groups.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.AuditService.Finalize(ctx, entryID, existing)
	return existing, nil
}

// RemoveUserGroup deletes the group and cascades to its membership rows.
func (s *UserGroupServiceImpl) RemoveUserGroup(ctx context.Context, groupID primitive.ObjectID, actor string) error {
	existing, err := s.Groups.FindByID(ctx, groupID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.ErrNotFound.WithMessage("user group not found")
	}

	if err := s.requireScopeAccess(ctx, actor, existing.Scope, common_models.LevelEdit); err != nil {
		return err
	}

	entryID := s.AuditService.Begin(ctx, common_models.AuditActionDelete, audit.EntityUserGroup, existing.ID.Hex(), existing, actor)

	if err := s.Groups.DeleteWithMembers(ctx, groupID); err != nil {
		return err
	}

	s.AuditService.Finalize(ctx, entryID, audit.DeletedMarker)
	s.Logger.Info("user group removed",
		zap.String("group_id", groupID.Hex()),
		zap.String("actor", actor))

	return nil
}

func (s *UserGroupServiceImpl) AddUserGroupMember(ctx context.Context, m *UserGroupMember, actor string) (*UserGroupMember, error) {
	g, err := s.Groups.FindByID(ctx, m.UserGroupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.ErrNotFound.WithMessage("user group not found")
	}

	if err := s.requireScopeAccess(ctx, actor, g.Scope, common_models.LevelEdit); err != nil {
		return nil, err
	}

	s.resolveMemberUserID(ctx, m)

	now := time.Now().UTC()
	m.CreatedTime = now
	m.ModifiedTime = now
	m.ModifiedBy = actor

	if err := s.Members.Create(ctx, m); err != nil {
		return nil, err
	}

	s.AuditService.Created(ctx, common_models.AuditActionMemberAdded, audit.EntityUserGroupMember, m.ID.Hex(), m, actor)
	return m, nil
}

func (s *UserGroupServiceImpl) UpdateUserGroupMember(ctx context.Context, m *UserGroupMember, actor string) (*UserGroupMember, error) {
	existing, err := s.Members.FindByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.ErrNotFound.WithMessage("group member not found")
	}

	g, err := s.Groups.FindByID(ctx, existing.UserGroupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.ErrNotFound.WithMessage("user group not found")
	}

	if err := s.requireScopeAccess(ctx, actor, g.Scope, common_models.LevelEdit); err != nil {
		return nil, err
	}

	before := *existing
	entryID := s.AuditService.Begin(ctx, common_models.AuditActionMemberUpdated, audit.EntityUserGroupMember, existing.ID.Hex(), &before, actor)

	existing.UserID = m.UserID
	existing.Email = m.Email
	existing.UserOwnerUserID = m.UserOwnerUserID
	existing.FamilyOwnerID = m.FamilyOwnerID
	s.resolveMemberUserID(ctx, existing)
	existing.ModifiedTime = time.Now().UTC()
	existing.ModifiedBy = actor

	if err := s.Members.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.AuditService.Finalize(ctx, entryID, existing)
	return existing, nil
}

func (s *UserGroupServiceImpl) RemoveUserGroupMember(ctx context.Context, memberID primitive.ObjectID, actor string) error {
	existing, err := s.Members.FindByID(ctx, memberID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.ErrNotFound.WithMessage("group member not found")
	}

	g, err := s.Groups.FindByID(ctx, existing.UserGroupID)
	if err != nil {
		return err
	}
	if g == nil {
		return apperr.ErrNotFound.WithMessage("user group not found")
	}

	if err := s.requireScopeAccess(ctx, actor, g.Scope, common_models.LevelEdit); err != nil {
		return err
	}

	entryID := s.AuditService.Begin(ctx, common_models.AuditActionMemberRemoved, audit.EntityUserGroupMember, existing.ID.Hex(), existing, actor)

	if err := s.Members.Delete(ctx, memberID); err != nil {
		return err
	}

	s.AuditService.Finalize(ctx, entryID, audit.DeletedMarker)
	return nil
}

// GetUserGroupsForProgeny lists groups scoped to a progeny, visible only
// to actors holding Admin access to that progeny.
func (s *UserGroupServiceImpl) GetUserGroupsForProgeny(ctx context.Context, progenyID uint64, actor string) ([]UserGroup, error) {
	return s.listByScope(ctx, common_models.ProgenyScope(progenyID), actor)
}

// GetUserGroupsForFamily lists groups scoped to a family, visible only to
// actors holding Admin access to that family.
func (s *UserGroupServiceImpl) GetUserGroupsForFamily(ctx context.Context, familyID uint64, actor string) ([]UserGroup, error) {
	return s.listByScope(ctx, common_models.FamilyScope(familyID), actor)
}

// GetUsersUserGroupsByUserID finds all groups a user belongs to, filtered
// to those whose owning scope the actor has Edit access to.
func (s *UserGroupServiceImpl) GetUsersUserGroupsByUserID(ctx context.Context, userID string, actor string) ([]UserGroup, error) {
	ids, err := s.Members.FindGroupIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.filterVisibleGroups(ctx, ids, actor)
}

// GetUsersUserGroupsByEmail is the email variant of the reverse lookup,
// matching trimmed and lowercased against membership rows.
func (s *UserGroupServiceImpl) GetUsersUserGroupsByEmail(ctx context.Context, email string, actor string) ([]UserGroup, error) {
	ids, err := s.Members.FindGroupIDsByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return s.filterVisibleGroups(ctx, ids, actor)
}

func (s *UserGroupServiceImpl) listByScope(ctx context.Context, scope common_models.GroupScope, actor string) ([]UserGroup, error) {
	ok, err := s.Resolver.HasPermission(ctx, actor, scope.PermissionType(), scope.ID(), common_models.TimelineAny, common_models.LevelAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []UserGroup{}, nil
	}
	return s.Groups.FindByScope(ctx, scope)
}

func (s *UserGroupServiceImpl) filterVisibleGroups(ctx context.Context, ids []primitive.ObjectID, actor string) ([]UserGroup, error) {
	visible := make([]UserGroup, 0, len(ids))
	for _, id := range ids {
		g, err := s.Groups.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if g == nil {
			continue
		}

		ok, err := s.Resolver.HasPermission(ctx, actor, g.Scope.PermissionType(), g.Scope.ID(), common_models.TimelineAny, common_models.LevelEdit)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, *g)
		}
	}
	return visible, nil
}

// resolveMemberUserID backfills UserID from the directory when it is
// missing and an email is present. The lookup is best-effort: a failure
// leaves the member unresolved for the periodic sweep to retry.
func (s *UserGroupServiceImpl) resolveMemberUserID(ctx context.Context, m *UserGroupMember) {
	m.NormalizedEmail = user.NormalizeEmail(m.Email)

	if m.UserID != "" || m.Email == "" {
		return
	}

	userID, found, err := s.Directory.FindUserIDByEmail(ctx, m.Email)
	if err != nil {
		s.Logger.Warn("directory lookup failed",
			zap.String("email", m.NormalizedEmail),
			zap.Error(err))
		return
	}
	if found {
		m.UserID = userID
	}
}

func (s *UserGroupServiceImpl) requireScopeAccess(ctx context.Context, actor string, scope common_models.GroupScope, required common_models.PermissionLevel) error {
	ok, err := s.Resolver.HasPermission(ctx, actor, scope.PermissionType(), scope.ID(), common_models.TimelineAny, required)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrForbidden.WithMessagef("user %s lacks %s access to %s", actor, required, scope)
	}
	return nil
}
