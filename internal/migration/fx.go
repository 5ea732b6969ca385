package migration

import (
	billingdomain "github.com/nodeboard/nodeboard/internal/billing/domain"
	"github.com/nodeboard/nodeboard/internal/config"
	membershipdomain "github.com/nodeboard/nodeboard/internal/membership/domain"
	projectdomain "github.com/nodeboard/nodeboard/internal/project/domain"
	userdomain "github.com/nodeboard/nodeboard/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned migrations target postgres. Local sqlite databases
		// are schema-managed by gorm instead.
		if cfg.DBType == "sqlite" {
			return conn.AutoMigrate(
				&userdomain.User{},
				&projectdomain.Project{},
				&membershipdomain.Membership{},
				&billingdomain.Subscription{},
				&billingdomain.EventRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
