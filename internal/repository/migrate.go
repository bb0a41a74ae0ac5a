package repository

import (
	"gorm.io/gorm"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Booking{},
		&domain.Profile{},
		&domain.GiftCard{},
		&domain.Invoice{},
		&domain.Service{},
		&domain.Plan{},
		&domain.MinutePack{},
		&domain.PaymentAttempt{},
		&domain.AppointmentLog{},
		&domain.EmailLog{},
		&domain.EventConsumed{},
	)
}
