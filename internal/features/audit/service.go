package audit

import (
	"context"
	"time"

	common_models "go-family/internal/common/models"
	"go-family/pkg/utils"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AuditService is the append-style audit trail. Writes are best-effort:
// a failed audit write never fails the mutation it records, it is logged
// and dropped.
type AuditService interface {
	// Created records a create-style mutation with only an After snapshot.
	Created(ctx context.Context, action common_models.AuditAction, entityType, entityID string, entity interface{}, changedBy string)

	// Begin records the Before snapshot of an update/delete mutation and
	// returns the entry id to finalize with. The zero ObjectID is returned
	// when the write failed; Finalize treats it as a no-op.
	Begin(ctx context.Context, action common_models.AuditAction, entityType, entityID string, before interface{}, changedBy string) primitive.ObjectID

	// Finalize patches the After snapshot onto a Before-only entry once the
	// mutation has committed. If the mutation aborted, the entry is simply
	// never finalized and stays After-empty.
	Finalize(ctx context.Context, entryID primitive.ObjectID, after interface{})

	ListEntries(ctx context.Context, entityType, entityID string, page, limit int64) ([]Entry, error)

	// ExportToExcel renders an entity's audit trail as an xlsx workbook.
	ExportToExcel(ctx context.Context, entityType, entityID string) ([]byte, string, error)
}

type AuditServiceImpl struct {
	Repo   AuditRepository
	Logger *zap.Logger
}

func NewAuditService(repo AuditRepository, logger *zap.Logger) AuditService {
	return &AuditServiceImpl{
		Repo:   repo,
		Logger: logger,
	}
}

func (s *AuditServiceImpl) Created(ctx context.Context, action common_models.AuditAction, entityType, entityID string, entity interface{}, changedBy string) {
	entry := &Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ChangedBy:  s.actor(ctx, changedBy),
		ChangeTime: time.Now().UTC(),
		After:      s.snapshot(entity),
	}

	if err := s.Repo.Create(ctx, entry); err != nil {
		s.Logger.Warn("audit entry write failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

func (s *AuditServiceImpl) Begin(ctx context.Context, action common_models.AuditAction, entityType, entityID string, before interface{}, changedBy string) primitive.ObjectID {
	entry := &Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ChangedBy:  s.actor(ctx, changedBy),
		ChangeTime: time.Now().UTC(),
		Before:     s.snapshot(before),
	}

	if err := s.Repo.Create(ctx, entry); err != nil {
		s.Logger.Warn("audit before-entry write failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return primitive.NilObjectID
	}
	return entry.ID
}

func (s *AuditServiceImpl) Finalize(ctx context.Context, entryID primitive.ObjectID, after interface{}) {
	if entryID.IsZero() {
		return
	}

	if err := s.Repo.PatchAfter(ctx, entryID, s.snapshot(after)); err != nil {
		s.Logger.Warn("audit entry finalize failed",
			zap.String("entry_id", entryID.Hex()),
			zap.Error(err))
	}
}

func (s *AuditServiceImpl) ListEntries(ctx context.Context, entityType, entityID string, page, limit int64) ([]Entry, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	return s.Repo.List(ctx, entityType, entityID, limit, offset)
}

func (s *AuditServiceImpl) actor(ctx context.Context, changedBy string) string {
	if changedBy != "" {
		return changedBy
	}
	return utils.ActorFromContext(ctx)
}

func (s *AuditServiceImpl) snapshot(entity interface{}) string {
	if entity == nil {
		return ""
	}
	data, err := json.Marshal(entity)
	if err != nil {
		s.Logger.Warn("audit snapshot serialization failed", zap.Error(err))
		return ""
	}
	return string(data)
}
