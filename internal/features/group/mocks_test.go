package group

import (
	"context"

	"go-family/internal/common/apperr"
	common_models "go-family/internal/common/models"
	"go-family/internal/features/audit"
	"go-family/internal/features/user"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memGroupRepo struct {
	groups  map[primitive.ObjectID]*UserGroup
	members *memMemberRepo
}

func newMemGroupRepo(members *memMemberRepo) *memGroupRepo {
	return &memGroupRepo{
		groups:  map[primitive.ObjectID]*UserGroup{},
		members: members,
	}
}

func (r *memGroupRepo) Create(ctx context.Context, g *UserGroup) error {
	g.ID = primitive.NewObjectID()
	stored := *g
	r.groups[g.ID] = &stored
	return nil
}

func (r *memGroupRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*UserGroup, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	found := *g
	return &found, nil
}

func (r *memGroupRepo) FindByScope(ctx context.Context, scope common_models.GroupScope) ([]UserGroup, error) {
	var out []UserGroup
	for _, g := range r.groups {
		if g.Scope == scope {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *memGroupRepo) Update(ctx context.Context, g *UserGroup) error {
	if _, ok := r.groups[g.ID]; !ok {
		return apperr.ErrNotFound.WithMessage("user group not found")
	}
	stored := *g
	r.groups[g.ID] = &stored
	return nil
}

func (r *memGroupRepo) DeleteWithMembers(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := r.groups[id]; !ok {
		return apperr.ErrNotFound.WithMessage("user group not found")
	}
	delete(r.groups, id)
	for mid, m := range r.members.rows {
		if m.UserGroupID == id {
			delete(r.members.rows, mid)
		}
	}
	return nil
}

type memMemberRepo struct {
	rows map[primitive.ObjectID]*UserGroupMember
}

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{rows: map[primitive.ObjectID]*UserGroupMember{}}
}

func (r *memMemberRepo) Create(ctx context.Context, m *UserGroupMember) error {
	m.ID = primitive.NewObjectID()
	stored := *m
	r.rows[m.ID] = &stored
	return nil
}

func (r *memMemberRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*UserGroupMember, error) {
	m, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	found := *m
	return &found, nil
}

func (r *memMemberRepo) FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]UserGroupMember, error) {
	var out []UserGroupMember
	for _, m := range r.rows {
		if m.UserGroupID == groupID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMemberRepo) FindGroupIDsByUser(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	for _, m := range r.rows {
		if m.UserID == userID && !seen[m.UserGroupID] {
			seen[m.UserGroupID] = true
			out = append(out, m.UserGroupID)
		}
	}
	return out, nil
}

func (r *memMemberRepo) FindGroupIDsByEmail(ctx context.Context, normalizedEmail string) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	for _, m := range r.rows {
		if m.NormalizedEmail == normalizedEmail && !seen[m.UserGroupID] {
			seen[m.UserGroupID] = true
			out = append(out, m.UserGroupID)
		}
	}
	return out, nil
}

func (r *memMemberRepo) FindUnresolved(ctx context.Context, limit int64) ([]UserGroupMember, error) {
	var out []UserGroupMember
	for _, m := range r.rows {
		if m.UserID == "" && m.Email != "" {
			out = append(out, *m)
			if int64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memMemberRepo) Update(ctx context.Context, m *UserGroupMember) error {
	if _, ok := r.rows[m.ID]; !ok {
		return apperr.ErrNotFound.WithMessage("group member not found")
	}
	stored := *m
	r.rows[m.ID] = &stored
	return nil
}

func (r *memMemberRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := r.rows[id]; !ok {
		return apperr.ErrNotFound.WithMessage("group member not found")
	}
	delete(r.rows, id)
	return nil
}

func (r *memMemberRepo) IsMember(ctx context.Context, userID string, groupID primitive.ObjectID) (bool, error) {
	if userID == "" {
		return false, nil
	}
	for _, m := range r.rows {
		if m.UserGroupID == groupID && m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// scopeKey identifies a (user, scope) pair in the stub resolver.
type scopeKey struct {
	userID         string
	permissionType common_models.PermissionType
	resourceID     uint64
}

// stubResolver answers HasPermission from a fixed table of levels.
type stubResolver struct {
	levels map[scopeKey]common_models.PermissionLevel
}

func newStubResolver() *stubResolver {
	return &stubResolver{levels: map[scopeKey]common_models.PermissionLevel{}}
}

func (r *stubResolver) allow(userID string, permissionType common_models.PermissionType, resourceID uint64, level common_models.PermissionLevel) {
	r.levels[scopeKey{userID, permissionType, resourceID}] = level
}

func (r *stubResolver) HasPermission(ctx context.Context, userID string, permissionType common_models.PermissionType, resourceID uint64, timelineType common_models.TimelineType, required common_models.PermissionLevel) (bool, error) {
	return r.levels[scopeKey{userID, permissionType, resourceID}].Satisfies(required), nil
}

// stubDirectory maps normalized emails to user ids.
type stubDirectory struct {
	byEmail map[string]string
	calls   int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{byEmail: map[string]string{}}
}

func (d *stubDirectory) FindUserIDByEmail(ctx context.Context, email string) (string, bool, error) {
	d.calls++
	normalized := user.NormalizeEmail(email)
	id, ok := d.byEmail[normalized]
	return id, ok, nil
}

type recordedEntry struct {
	ID         primitive.ObjectID
	Action     common_models.AuditAction
	EntityType string
	EntityID   string
	Before     interface{}
	After      interface{}
	Finalized  bool
}

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
