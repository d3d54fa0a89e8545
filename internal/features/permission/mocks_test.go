package permission

import (
	"context"
	"time"

	"go-family/internal/common/apperr"
	common_models "go-family/internal/common/models"
	"go-family/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memPermissionRepo is an in-memory PermissionRepository that enforces the
// same grant-tuple uniqueness the real store's index does.
type memPermissionRepo struct {
	grants []ResourcePermission
}

func newMemPermissionRepo() *memPermissionRepo {
	return &memPermissionRepo{}
}

func sameTuple(p *ResourcePermission, target common_models.GrantTarget, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) bool {
	return p.Target == target &&
		p.PermissionType == permissionType &&
		p.ResourceID == resourceID &&
		p.TimelineType == timelineType
}

func (r *memPermissionRepo) Create(ctx context.Context, perm *ResourcePermission) error {
	for i := range r.grants {
		if sameTuple(&r.grants[i], perm.Target, perm.PermissionType, perm.ResourceID, perm.TimelineType) {
			return apperr.ErrConflict.WithMessage("permission grant already exists for this tuple")
		}
	}
	perm.ID = primitive.NewObjectID()
	r.grants = append(r.grants, *perm)
	return nil
}

func (r *memPermissionRepo) FindByTuple(ctx context.Context, target common_models.GrantTarget, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) (*ResourcePermission, error) {
	for i := range r.grants {
		if sameTuple(&r.grants[i], target, permissionType, resourceID, timelineType) {
			found := r.grants[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memPermissionRepo) FindGroupGrants(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error) {
	var out []ResourcePermission
	for i := range r.grants {
		p := r.grants[i]
		if _, ok := p.Target.Group(); !ok {
			continue
		}
		if p.PermissionType == permissionType && p.ResourceID == resourceID && p.TimelineType == timelineType {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPermissionRepo) FindByResource(ctx context.Context, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType) ([]ResourcePermission, error) {
	var out []ResourcePermission
	for i := range r.grants {
		p := r.grants[i]
		if p.PermissionType != permissionType || p.ResourceID != resourceID {
			continue
		}
		if timelineType != common_models.TimelineAny && p.TimelineType != timelineType {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memPermissionRepo) FindByUser(ctx context.Context, userID string) ([]ResourcePermission, error) {
	var out []ResourcePermission
	for i := range r.grants {
		if id, ok := r.grants[i].Target.User(); ok && id == userID {
			out = append(out, r.grants[i])
		}
	}
	return out, nil
}

func (r *memPermissionRepo) FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]ResourcePermission, error) {
	var out []ResourcePermission
	for i := range r.grants {
		if id, ok := r.grants[i].Target.Group(); ok && id == groupID {
			out = append(out, r.grants[i])
		}
	}
	return out, nil
}

func (r *memPermissionRepo) UpdateLevel(ctx context.Context, id primitive.ObjectID, level common_models.PermissionLevel, modifiedBy string, modifiedTime time.Time) error {
	for i := range r.grants {
		if r.grants[i].ID == id {
			r.grants[i].Level = level
			r.grants[i].ModifiedBy = modifiedBy
			r.grants[i].ModifiedTime = modifiedTime
			return nil
		}
	}
	return apperr.ErrNotFound.WithMessage("permission grant not found")
}

func (r *memPermissionRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	for i := range r.grants {
		if r.grants[i].ID == id {
			r.grants = append(r.grants[:i], r.grants[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound.WithMessage("permission grant not found")
}

func (r *memPermissionRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}

// seed inserts a grant directly, bypassing service checks.
func (r *memPermissionRepo) seed(target common_models.GrantTarget, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType, level common_models.PermissionLevel) {
	r.grants = append(r.grants, ResourcePermission{
		ID:             primitive.NewObjectID(),
		Target:         target,
		PermissionType: permissionType,
		ResourceID:     resourceID,
		TimelineType:   timelineType,
		Level:          level,
	})
}

// memMembership is a MembershipIndex backed by a map of group id to member
// user ids.
type memMembership struct {
	members map[primitive.ObjectID][]string
	calls   int
}

func newMemMembership() *memMembership {
	return &memMembership{members: map[primitive.ObjectID][]string{}}
}

func (m *memMembership) add(groupID primitive.ObjectID, userID string) {
	m.members[groupID] = append(m.members[groupID], userID)
}

func (m *memMembership) IsMember(ctx context.Context, userID string, groupID primitive.ObjectID) (bool, error) {
	m.calls++
	for _, id := range m.members[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// recordedEntry is one audit call captured by recordingAuditService.
type recordedEntry struct {
	ID         primitive.ObjectID
	Action     common_models.AuditAction
	EntityType string
	EntityID   string
	Before     interface{}
	After      interface{}
	ChangedBy  string
	Finalized  bool
}

// recordingAuditService captures audit calls so tests can assert on the
// trail a mutation produced.
type recordingAuditService struct {
	entries []recordedEntry
}

func (s *recordingAuditService) Created(ctx context.Context, action common_models.AuditAction, entityType, entityID string, entity interface{}, changedBy string) {
	s.entries = append(s.entries, recordedEntry{
		ID:         primitive.NewObjectID(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		After:      entity,
		ChangedBy:  changedBy,
		Finalized:  true,
	})
}

func (s *recordingAuditService) Begin(ctx context.Context, action common_models.AuditAction, entityType, entityID string, before interface{}, changedBy string) primitive.ObjectID {
	id := primitive.NewObjectID()
	s.entries = append(s.entries, recordedEntry{
		ID:         id,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		ChangedBy:  changedBy,
	})
	return id
}

func (s *recordingAuditService) Finalize(ctx context.Context, entryID primitive.ObjectID, after interface{}) {
	if entryID.IsZero() {
		return
	}
	for i := range s.entries {
		if s.entries[i].ID == entryID {
			s.entries[i].After = after
			s.entries[i].Finalized = true
			return
		}
	}
}

func (s *recordingAuditService) ListEntries(ctx context.Context, entityType, entityID string, page, limit int64) ([]audit.Entry, error) {
	return nil, nil
}

func (s *recordingAuditService) ExportToExcel(ctx context.Context, entityType, entityID string) ([]byte, string, error) {
	return nil, "", nil
}
