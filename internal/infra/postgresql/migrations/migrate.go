package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/learnloop/notification-engine/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_notification_queue",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_queue_status ON notification_queue (status)`,
					`CREATE INDEX IF NOT EXISTS idx_queue_channel_status ON notification_queue (channel, status)`,
					`CREATE INDEX IF NOT EXISTS idx_queue_scheduled_for ON notification_queue (scheduled_for) WHERE scheduled_for IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_queue_claim ON notification_queue (priority_rank DESC, created_at) WHERE status = 'pending'`,
					`CREATE INDEX IF NOT EXISTS idx_queue_next_attempt ON notification_queue (next_attempt_at) WHERE next_attempt_at IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.NotificationModel{})
			},
		},
		{
			ID: "000002_create_notification_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DeliveryLogModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_logs_notification_id ON notification_logs (notification_id)`,
					`CREATE INDEX IF NOT EXISTS idx_logs_user_timestamp ON notification_logs (user_id, timestamp DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON notification_logs (timestamp)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DeliveryLogModel{})
			},
		},
	})

	return m.Migrate()
}
