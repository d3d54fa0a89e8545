package permission

import (
	"context"
	"errors"
	"testing"

	"go-family/internal/common/apperr"
	common_models "go-family/internal/common/models"
	"go-family/internal/features/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGrantService() (*GrantServiceImpl, *memPermissionRepo, *recordingAuditService) {
	repo := newMemPermissionRepo()
	trail := &recordingAuditService{}
	svc := &GrantServiceImpl{
		Repo:         repo,
		Gate:         NewAuthorityGate(repo),
		AuditService: trail,
		Logger:       zap.NewNop(),
	}
	return svc, repo, trail
}

// seedAdmin gives the actor direct Admin over family member 5, the
// authority most tests act under.
func seedAdmin(repo *memPermissionRepo) {
	repo.seed(common_models.UserTarget("admin-1"), common_models.TypeFamilyMember, 5, common_models.TimelineAny, common_models.LevelAdmin)
}

func TestGrantPermission(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelView,
	}

	created, err := svc.GrantPermission(context.Background(), 5, perm, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "admin-1", created.ModifiedBy)
	assert.False(t, created.CreatedTime.IsZero())

	require.Len(t, trail.entries, 1)
	entry := trail.entries[0]
	assert.Equal(t, common_models.AuditActionCreate, entry.Action)
	assert.Equal(t, audit.EntityResourcePermission, entry.EntityType)
	assert.Nil(t, entry.Before)
	assert.NotNil(t, entry.After)
}

func TestGrantPermissionDuplicateTupleConflicts(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelView,
	}
	_, err := svc.GrantPermission(context.Background(), 5, perm, "admin-1")
	require.NoError(t, err)

	again := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelAdmin,
	}
	_, err = svc.GrantPermission(context.Background(), 5, again, "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	// The existing grant is untouched and only the first attempt is in the
	// trail.
	existing, err := repo.FindByTuple(context.Background(), common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, common_models.LevelView, existing.Level)
	assert.Len(t, trail.entries, 1)
}

func TestGrantPermissionWithoutAuthority(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelView,
	}

	_, err := svc.GrantPermission(context.Background(), 5, perm, "stranger")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	// A rejected attempt leaves no trace: no grant, no audit entry.
	got, err := repo.FindByTuple(context.Background(), common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, trail.entries)
}

func TestGrantPermissionRejectsZeroTarget(t *testing.T) {
	svc, repo, _ := newTestGrantService()
	seedAdmin(repo)

	perm := &ResourcePermission{
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelView,
	}

	_, err := svc.GrantPermission(context.Background(), 5, perm, "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestRevokePermission(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)
	repo.seed(common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny, common_models.LevelEdit)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
	}
	err := svc.RevokePermission(context.Background(), 5, perm, "admin-1")
	require.NoError(t, err)

	got, err := repo.FindByTuple(context.Background(), common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.Len(t, trail.entries, 1)
	entry := trail.entries[0]
	assert.Equal(t, common_models.AuditActionDelete, entry.Action)
	assert.NotNil(t, entry.Before, "revoke records the grant as it was before deletion")
	assert.Equal(t, audit.DeletedMarker, entry.After)
	assert.True(t, entry.Finalized)
}

func TestRevokePermissionNotFound(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
	}
	err := svc.RevokePermission(context.Background(), 5, perm, "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, trail.entries)
}

func TestUpdatePermission(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)
	repo.seed(common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny, common_models.LevelView)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelEdit,
	}
	updated, err := svc.UpdatePermission(context.Background(), 5, perm, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, common_models.LevelEdit, updated.Level)

	stored, err := repo.FindByTuple(context.Background(), common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, common_models.LevelEdit, stored.Level)

	require.Len(t, trail.entries, 1)
	entry := trail.entries[0]
	assert.Equal(t, common_models.AuditActionUpdate, entry.Action)
	before, ok := entry.Before.(*ResourcePermission)
	require.True(t, ok)
	assert.Equal(t, common_models.LevelView, before.Level)
	assert.True(t, entry.Finalized)
}

func TestUpdatePermissionNotFound(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelEdit,
	}
	_, err := svc.UpdatePermission(context.Background(), 5, perm, "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, trail.entries)
}

func TestUpdatePermissionWithoutAuthority(t *testing.T) {
	svc, repo, trail := newTestGrantService()
	seedAdmin(repo)
	repo.seed(common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny, common_models.LevelView)

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeFamilyMember,
		ResourceID:     5,
		Level:          common_models.LevelAdmin,
	}
	_, err := svc.UpdatePermission(context.Background(), 5, perm, "u-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	stored, err := repo.FindByTuple(context.Background(), common_models.UserTarget("u-2"), common_models.TypeFamilyMember, 5, common_models.TimelineAny)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, common_models.LevelView, stored.Level, "a forbidden update must not change the grant")
	assert.Empty(t, trail.entries)
}

func TestGetPermissionsForResource(t *testing.T) {
	svc, repo, _ := newTestGrantService()
	repo.seed(common_models.UserTarget("u-1"), common_models.TypeTimelineItem, 5, common_models.TimelinePhoto, common_models.LevelView)
	repo.seed(common_models.UserTarget("u-2"), common_models.TypeTimelineItem, 5, common_models.TimelineVideo, common_models.LevelView)
	repo.seed(common_models.UserTarget("u-3"), common_models.TypeTimelineItem, 6, common_models.TimelinePhoto, common_models.LevelView)

	all, err := svc.GetPermissionsForResource(context.Background(), common_models.TypeTimelineItem, 5, common_models.TimelineAny)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	photos, err := svc.GetPermissionsForResource(context.Background(), common_models.TypeTimelineItem, 5, common_models.TimelinePhoto)
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}

func TestGrantThenResolve(t *testing.T) {
	svc, repo, _ := newTestGrantService()
	seedAdmin(repo)
	resolver := NewResolver(repo, newMemMembership())

	perm := &ResourcePermission{
		Target:         common_models.UserTarget("u-2"),
		PermissionType: common_models.TypeTimelineItem,
		ResourceID:     5,
		TimelineType:   common_models.TimelinePhoto,
		Level:          common_models.LevelView,
	}
	_, err := svc.GrantPermission(context.Background(), 5, perm, "admin-1")
	require.NoError(t, err)

	got, err := resolver.HasPermission(context.Background(), "u-2", common_models.TypeTimelineItem, 5, common_models.TimelinePhoto, common_models.LevelView)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = resolver.HasPermission(context.Background(), "u-2", common_models.TypeTimelineItem, 5, common_models.TimelinePhoto, common_models.LevelEdit)
	require.NoError(t, err)
	assert.False(t, got)
}
