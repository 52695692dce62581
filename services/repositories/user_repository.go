package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/icupa/giomessaging/model"
)

type UserRepository struct {
	BaseRepository
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{NewBaseRepository(db)}
}

// Track records an interaction from phone. Returns true when the phone was
// never seen before.
func (r *UserRepository) Track(phone string) (bool, error) {
	var user model.TriviaUser
	err := r.db.First(&user, "phone = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := time.Now()
		user = model.TriviaUser{
			Phone:            phone,
			FirstInteraction: now,
			LastInteraction:  now,
			MessageCount:     1,
		}
		if err := r.db.Create(&user).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	err = r.db.Model(&user).Updates(map[string]interface{}{
		"last_interaction": time.Now(),
		"message_count":    gorm.Expr("message_count + 1"),
	}).Error
	return false, err
}

func (r *UserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.TriviaUser{}).Count(&count).Error
	return count, err
}
