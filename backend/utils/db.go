package utils

import (
	"fmt"

	"github.com/quantumdemo/sna/backend/config"
	"github.com/quantumdemo/sna/backend/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.CourseModule{},
		&models.Quiz{},
		&models.QuizSubmission{},
		&models.Assignment{},
		&models.AssignmentSubmission{},
		&models.FinalExam{},
		&models.Question{},
		&models.Choice{},
		&models.ExamSubmission{},
		&models.Answer{},
		&models.ExamViolation{},
		&models.Certificate{},
		&models.CertificateRequest{},
		&models.ChatRoom{},
		&models.ChatRoomMember{},
		&models.ChatMessage{},
		&models.MutedUser{},
		&models.ReportedMessage{},
		&models.MessageReaction{},
		&models.UserLastRead{},
	)
}
