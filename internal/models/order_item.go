package models

// OrderItem is a read-only projection of the checkout collaborator's order
// line. The settlement engine only needs the seller attribution and the
// item subtotal in minor units; everything else about orders lives outside
// this core.
type OrderItem struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	OrderID         uint   `gorm:"not null;index" json:"order_id"`
	SellerID        uint   `gorm:"not null;index" json:"seller_id"`
	StripeAccountID string `gorm:"not null" json:"stripe_account_id"`
	Subtotal        int64  `gorm:"not null" json:"subtotal"`
}
