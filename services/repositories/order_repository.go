package repositories

import (
	"gorm.io/gorm"

	"github.com/icupa/giomessaging/model"
)

type OrderRepository struct {
	BaseRepository
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{NewBaseRepository(db)}
}

func (r *OrderRepository) Create(order *model.Order) error {
	return r.db.Create(order).Error
}

func (r *OrderRepository) GetByOrderID(orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.First(&order, "order_id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) MarkPaid(orderID string) error {
	return r.db.Model(&model.Order{}).Where("order_id = ?", orderID).
		Update("paid", true).Error
}

func (r *OrderRepository) MarkRejected(orderID string) error {
	return r.db.Model(&model.Order{}).Where("order_id = ?", orderID).
		Update("rejected", true).Error
}

func (r *OrderRepository) SetTIN(orderID, tin string) error {
	return r.db.Model(&model.Order{}).Where("order_id = ?", orderID).
		Update("tin", tin).Error
}

func (r *OrderRepository) List(limit int) ([]model.Order, error) {
	var orders []model.Order
	q := r.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&orders).Error
	return orders, err
}

// ActiveAdminPhone returns the operator number that receives confirmations.
func (r *OrderRepository) ActiveAdminPhone() (*model.AdminPhone, error) {
	var admin model.AdminPhone
	err := r.db.First(&admin, "is_active = ?", true).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
