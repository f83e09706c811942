package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxCartItemQuantity = 10

type CartItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	AddedAt   time.Time          `bson:"added_at" json:"added_at"`
}

type Cart struct {
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// ProductIDs returns the ids of all items in cart order.
func (c *Cart) ProductIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// CartLine is a cart item joined with live product data.
type CartLine struct {
	ProductID primitive.ObjectID `json:"product_id"`
	Name      string             `json:"name"`
	Slug      string             `json:"slug"`
	Image     string             `json:"image"`
	UnitPrice float64            `json:"unit_price"`
	Quantity  int                `json:"quantity"`
	LineTotal float64            `json:"line_total"`
	Stock     int                `json:"stock"`
	Available bool               `json:"available"`
}

// CartView is what GET /cart returns.
type CartView struct {
	Items     []CartLine `json:"items"`
	ItemCount int        `json:"item_count"`
	Subtotal  float64    `json:"subtotal"`
	UpdatedAt time.Time  `json:"updated_at"`
}
