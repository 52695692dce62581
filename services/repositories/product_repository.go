package repositories

import (
	"gorm.io/gorm"

	"github.com/icupa/giomessaging/model"
)

type ProductRepository struct {
	BaseRepository
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{NewBaseRepository(db)}
}

// RetailerIDsByCategory returns the catalog ids shown in a category's
// product_list messages.
func (r *ProductRepository) RetailerIDsByCategory(category string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.Product{}).Where("category = ?", category).
		Pluck("retailer_id", &ids).Error
	return ids, err
}

func (r *ProductRepository) GetByRetailerID(retailerID string) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, "retailer_id = ?", retailerID).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpsertAll refreshes the local mirror of the Graph catalog.
func (r *ProductRepository) UpsertAll(products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.Save(&products).Error
}
