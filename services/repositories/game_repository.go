package repositories

import (
	"gorm.io/gorm"

	"github.com/icupa/giomessaging/model"
)

type GameRepository struct {
	BaseRepository
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{NewBaseRepository(db)}
}

func (r *GameRepository) Create(record *model.GameRecord) error {
	return r.db.Create(record).Error
}

func (r *GameRepository) SetGuest(gameID, guestPlayer string) error {
	return r.db.Model(&model.GameRecord{}).Where("game_id = ?", gameID).
		Updates(map[string]interface{}{
			"guest_player": guestPlayer,
			"status":       "in-progress",
		}).Error
}

func (r *GameRepository) Complete(gameID string, hostScore, guestScore int) error {
	return r.db.Model(&model.GameRecord{}).Where("game_id = ?", gameID).
		Updates(map[string]interface{}{
			"status":      "completed",
			"host_score":  hostScore,
			"guest_score": guestScore,
		}).Error
}
