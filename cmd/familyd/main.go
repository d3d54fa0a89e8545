package main

import (
	"context"
	"time"

	"go-family/internal/config"
	"go-family/internal/database"
	"go-family/internal/features/audit"
	"go-family/internal/features/group"
	"go-family/internal/features/permission"
	"go-family/internal/features/user"
	"go-family/internal/logger"
	"go-family/pkg/utils"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// InitializeIndexes ensures that necessary database indexes are created
// before the app starts. The unique grant-tuple index backs duplicate-grant
// rejection, so a failure here aborts startup instead of leaving the
// invariant unenforced.
func InitializeIndexes(lc fx.Lifecycle, permRepo permission.PermissionRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := permRepo.EnsureIndexes(ctx); err != nil {
				logger.Error("failed to ensure permission indexes", zap.Error(err))
				return err
			}
			return nil
		},
	})
}

// ConfigureAuth installs the signing secret used to resolve acting users
// from request tokens.
func ConfigureAuth(cfg *config.Config) {
	utils.SetSecret(cfg.JWTSecret)
}

// StartBackfillSweeper schedules the member email backfill sweep and
// stops it when the app exits.
func StartBackfillSweeper(lc fx.Lifecycle, sweeper *group.BackfillSweeper, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sweeper.Start(cfg.BackfillSchedule)
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

// appOptions assembles the full dependency graph, kept separate from main
// so the wiring can be validated in tests.
func appOptions() []fx.Option {
	return []fx.Option{
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Database
			database.NewDatabase,

			// Initialize Repository
			audit.NewAuditRepository,
			permission.NewPermissionRepository,
			group.NewGroupRepository,
			group.NewMemberRepository,
			user.NewDirectoryRepository,

			audit.NewAuditService,
			group.NewMembershipIndex,
			permission.NewResolver,
			permission.NewAuthorityGate,
			permission.NewGrantService,
			group.NewUserGroupService,
			group.NewBackfillSweeper,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(m group.MembershipIndex) permission.MembershipIndex { return m },
			func(r permission.Resolver) group.Resolver { return r },
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			ConfigureAuth,
			InitializeIndexes,
			StartBackfillSweeper,
		),
	}
}

func main() {
	fx.New(appOptions()...).Run()
}
