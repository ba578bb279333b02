package survey

import (
	"fmt"

	"github.com/SurveyCast/SC-Backend/internal/db"
	"gorm.io/gorm"
)

func Init(gdb *gorm.DB) error {
	if err := db.EnsureSchema(gdb, "surveys"); err != nil {
		return fmt.Errorf("ensure schema surveys: %w", err)
	}

	if err := gdb.AutoMigrate(
		&Survey{}, &Category{}, &Question{},
		&SurveyResponse{}, &CategorySubmission{},
	); err != nil {
		return fmt.Errorf("auto-migrate survey tables: %w", err)
	}
	return nil
}
