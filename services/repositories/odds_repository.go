package repositories

import (
	"gorm.io/gorm"

	"github.com/icupa/giomessaging/model"
)

type OddsRepository struct {
	BaseRepository
}

func NewOddsRepository(db *gorm.DB) *OddsRepository {
	return &OddsRepository{NewBaseRepository(db)}
}

// Replace swaps the whole odds set in one transaction; a partial upload must
// not leave a mix of old and new fixtures behind.
func (r *OddsRepository) Replace(records []model.OddsRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.OddsRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}

func (r *OddsRepository) List() ([]model.OddsRecord, error) {
	var records []model.OddsRecord
	err := r.db.Find(&records).Error
	return records, err
}
