package repositories

import (
	"fmt"

	"paylock/internal/models"

	"gorm.io/gorm"
)

// OrderItemRepository reads the checkout collaborator's order-line
// projection. Fan-out needs it inside the release transaction, so the read
// takes the transaction handle.
type OrderItemRepository interface {
	ItemsForOrder(tx *gorm.DB, orderID uint) ([]models.OrderItem, error)
}

type orderItemRepository struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) OrderItemRepository {
	return &orderItemRepository{db: db}
}

func (r *orderItemRepository) ItemsForOrder(tx *gorm.DB, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := tx.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order items for order %d: %w", orderID, err)
	}
	return items, nil
}
