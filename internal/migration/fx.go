package migration

import (
	"fmt"
	"strings"

	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		return Apply(conn, cfg.DBType, log.Named("migration"))
	}),
)

// Apply runs the versioned postgres migrations, or falls back to gorm's
// AutoMigrate for a local sqlite file.
func Apply(conn *gorm.DB, dbType string, log *zap.Logger) error {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("database migrations applied")
		return nil
	case "sqlite":
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("database schema synced", zap.String("type", dbType))
		return nil
	default:
		return fmt.Errorf("migrations unsupported for %s", dbType)
	}
}

func Models() []any {
	return []any{
		&userdomain.User{},
		&offerdomain.Offer{},
		&offerdomain.Member{},
		&clipdomain.Clip{},
		&ledgerdomain.Transaction{},
	}
}
