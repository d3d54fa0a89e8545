package permission

import (
	"context"
	"time"

	"go-family/internal/common/apperr"
	common_models "go-family/internal/common/models"
	"go-family/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// GrantService orchestrates mutations of permission grants. Every mutation
// passes the authority gate first and emits one audit entry on success;
// failed attempts leave no trace in the audit trail.
type GrantService interface {
	GrantPermission(ctx context.Context, entityID uint64, perm *ResourcePermission, actor string) (*ResourcePermission, error)
	RevokePermission(ctx context.Context, entityID uint64, perm *ResourcePermission, actor string) error
	UpdatePermission(ctx context.Context, entityID uint64, perm *ResourcePermission, actor string) (*ResourcePermission, error)
	GetPermissionsForResource(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error)
	GetPermissionsForUser(ctx context.Context, userID string) ([]ResourcePermission, error)
	GetPermissionsForGroup(ctx context.Context, groupID primitive.ObjectID) ([]ResourcePermission, error)
}

type GrantServiceImpl struct {
	Repo         PermissionRepository
	Gate         AuthorityGate
	AuditService audit.AuditService
	Logger       *zap.Logger
}

func NewGrantService(repo PermissionRepository, gate AuthorityGate, auditService audit.AuditService, logger *zap.Logger) GrantService {
	return &GrantServiceImpl{
		Repo:         repo,
		Gate:         gate,
		AuditService: auditService,
		Logger:       logger,
	}
}

// GrantPermission creates a new grant. Duplicate tuples are rejected with
// Conflict, not overwritten; the unique store index closes the race two
// concurrent grants would otherwise win together.
func (s *GrantServiceImpl) GrantPermission(ctx context.Context, entityID uint64, perm *ResourcePermission, actor string) (*ResourcePermission, error) {
	if perm.Target.IsZero() {
		return nil, apperr.ErrInvalid.WithMessage("grant must target a user or a group")
	}

	if err := s.requireAuthority(ctx, actor, perm.PermissionType, entityID); err != nil {
		return nil, err
	}

	existing, err := s.Repo.FindByTuple(ctx, perm.Target, perm.PermissionType, perm.ResourceID, perm.TimelineType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrConflict.WithMessage("permission grant already exists for this tuple")
	}

	now := time.Now().UTC()
	perm.CreatedTime = now
	perm.ModifiedTime = now
	perm.ModifiedBy = actor

	if err := s.Repo.Create(ctx, perm); err != nil {
		return nil, err
	}

	s.AuditService.Created(ctx, common_models.AuditActionCreate, audit.EntityResourcePermission, perm.ID.Hex(), perm, actor)
	s.Logger.Info("permission granted",
		zap.String("target", perm.Target.String()),
		zap.String("permission_type", string(perm.PermissionType)),
		zap.Uint64("resource_id", perm.ResourceID),
		zap.String("level", perm.Level.String()),
		zap.String("actor", actor))

	return perm, nil
}

// RevokePermission deletes the grant matching the tuple carried by perm.
func (s *GrantServiceImpl) RevokePermission(ctx context.Context, entityID uint64, perm *ResourcePermission, actor string) error {
	if err := s.requireAuthority(ctx, actor, perm.PermissionType, entityID); err != nil {
		return err
	}

	existing, err := s.Repo.FindByTuple(ctx, perm.Target, perm.PermissionType, perm.ResourceID, perm.TimelineType)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.ErrNotFound.WithMessage("permission grant not found")
	}

	// All checks passed: the mutation is committed to proceed, so the
	// Before-only audit entry may be written now.
	entryID := s.AuditService.Begin(ctx, common_models.AuditActionDelete, audit.EntityResourcePermission, existing.ID.Hex(), existing, actor)

	if err := s.Repo.Delete(ctx, existing.ID); err != nil {
		return err
	}

	s.AuditService.Finalize(ctx, entryID, audit.DeletedMarker)
	s.Logger.Info("permission revoked",
		zap.String("target", existing.Target.String()),
		zap.String("permission_type", string(existing.PermissionType)),
		zap.Uint64("resource_id", existing.ResourceID),
		zap.String("actor", actor))

	return nil
}

// UpdatePermission changes the level of the grant matching the tuple
// carried by perm.
func (s *GrantServiceImpl) UpdatePermission(ctx context.Context, entityID uint64, perm *ResourcePermission, actor string) (*ResourcePermission, error) {
	if err := s.requireAuthority(ctx, actor, perm.PermissionType, entityID); err != nil {
		return nil, err
	}

	existing, err := s.Repo.FindByTuple(ctx, perm.Target, perm.PermissionType, perm.ResourceID, perm.TimelineType)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.ErrNotFound.WithMessage("permission grant not found")
	}

	// Snapshot by value so the in-place mutation below cannot leak into
	// the Before state.
	before := *existing
	entryID := s.AuditService.Begin(ctx, common_models.AuditActionUpdate, audit.EntityResourcePermission, existing.ID.Hex(), &before, actor)

	now := time.Now().UTC()
	existing.Level = perm.Level
	existing.ModifiedTime = now
	existing.ModifiedBy = actor

	if err := s.Repo.UpdateLevel(ctx, existing.ID, existing.Level, actor, now); err != nil {
		return nil, err
	}

	s.AuditService.Finalize(ctx, entryID, existing)
	s.Logger.Info("permission updated",
		zap.String("target", existing.Target.String()),
		zap.String("permission_type", string(existing.PermissionType)),
		zap.Uint64("resource_id", existing.ResourceID),
		zap.String("level", existing.Level.String()),
		zap.String("actor", actor))

	return existing, nil
}

func (s *GrantServiceImpl) GetPermissionsForResource(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error) {
	return s.Repo.FindByResource(ctx, permissionType, resourceID, timelineType)
}

func (s *GrantServiceImpl) GetPermissionsForUser(ctx context.Context, userID string) ([]ResourcePermission, error) {
	return s.Repo.FindByUser(ctx, userID)
}

func (s *GrantServiceImpl) GetPermissionsForGroup(ctx context.Context, groupID primitive.ObjectID) ([]ResourcePermission, error) {
	return s.Repo.FindByGroup(ctx, groupID)
}

func (s *GrantServiceImpl) requireAuthority(ctx context.Context, actor string, permissionType common_models.PermissionType, entityID uint64) error {
	ok, err := s.Gate.IsAuthorityOver(ctx, actor, permissionType, entityID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrForbidden.WithMessagef("user %s has no authority over %s permissions for entity %d", actor, permissionType, entityID)
	}
	return nil
}
