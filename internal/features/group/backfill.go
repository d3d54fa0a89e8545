package group

import (
	"context"
	"time"

	common_models "go-family/internal/common/models"
	"go-family/internal/features/audit"
	"go-family/internal/features/user"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const backfillBatchSize = 200

// BackfillSweeper periodically retries directory resolution for member
// rows that carry an email but no user id yet, picking up users who
// registered after they were added to a group.
type BackfillSweeper struct {
	Members      MemberRepository
	Directory    user.DirectoryLookup
	AuditService audit.AuditService
	Logger       *zap.Logger

	scheduler *cron.Cron
}

func NewBackfillSweeper(members MemberRepository, directory user.DirectoryLookup, auditService audit.AuditService, logger *zap.Logger) *BackfillSweeper {
	return &BackfillSweeper{
		Members:      members,
		Directory:    directory,
		AuditService: auditService,
		Logger:       logger,
	}
}

// Start registers the sweep on the given cron schedule and starts the
// scheduler.
func (s *BackfillSweeper) Start(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return err
	}

	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil {
			s.Logger.Warn("member backfill sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *BackfillSweeper) Stop() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
}

// RunOnce performs a single sweep and returns how many members were
// resolved. Individual lookup failures are logged and skipped.
func (s *BackfillSweeper) RunOnce(ctx context.Context) (int, error) {
	unresolved, err := s.Members.FindUnresolved(ctx, backfillBatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range unresolved {
		m := unresolved[i]

		userID, found, err := s.Directory.FindUserIDByEmail(ctx, m.Email)
		if err != nil {
			s.Logger.Warn("directory lookup failed during sweep",
				zap.String("member_id", m.ID.Hex()),
				zap.Error(err))
			continue
		}
		if !found {
			continue
		}

		entryID := s.AuditService.Begin(ctx, common_models.AuditActionMemberUpdated, audit.EntityUserGroupMember, m.ID.Hex(), m, "system")

		m.UserID = userID
		m.ModifiedTime = time.Now().UTC()
		m.ModifiedBy = "system"

		if err := s.Members.Update(ctx, &m); err != nil {
			s.Logger.Warn("member backfill update failed",
				zap.String("member_id", m.ID.Hex()),
				zap.Error(err))
			continue
		}

		s.AuditService.Finalize(ctx, entryID, m)
		resolved++
	}

	if resolved > 0 {
		s.Logger.Info("member backfill sweep resolved members", zap.Int("count", resolved))
	}
	return resolved, nil
}
