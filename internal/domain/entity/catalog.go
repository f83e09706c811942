package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	GenderMen    = "men"
	GenderWomen  = "women"
	GenderUnisex = "unisex"
)

type Category struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Slug         string             `bson:"slug" json:"slug"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Image        string             `bson:"image,omitempty" json:"image,omitempty"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	ProductCount int64              `bson:"product_count,omitempty" json:"product_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

type Brand struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Slug         string             `bson:"slug" json:"slug"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Logo         string             `bson:"logo,omitempty" json:"logo,omitempty"`
	Country      string             `bson:"country,omitempty" json:"country,omitempty"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	ProductCount int64              `bson:"product_count,omitempty" json:"product_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// FragranceNotes is the classic note pyramid.
type FragranceNotes struct {
	Top    []string `bson:"top,omitempty" json:"top"`
	Middle []string `bson:"middle,omitempty" json:"middle"`
	Base   []string `bson:"base,omitempty" json:"base"`
}

// All returns every note across the pyramid.
func (n FragranceNotes) All() []string {
	out := make([]string, 0, len(n.Top)+len(n.Middle)+len(n.Base))
	out = append(out, n.Top...)
	out = append(out, n.Middle...)
	return append(out, n.Base...)
}

// Summary is the embedded shape of a joined brand or category.
type Summary struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"name" json:"name"`
	Slug string             `bson:"slug" json:"slug"`
}

type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Slug          string             `bson:"slug" json:"slug"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	BrandID       primitive.ObjectID `bson:"brand_id" json:"brand_id"`
	CategoryID    primitive.ObjectID `bson:"category_id" json:"category_id"`
	Price         float64            `bson:"price" json:"price"`
	DiscountPrice float64            `bson:"discount_price,omitempty" json:"discount_price,omitempty"`
	Stock         int                `bson:"stock" json:"stock"`
	Images        []string           `bson:"images,omitempty" json:"images"`
	Gender        string             `bson:"gender" json:"gender"`
	Concentration string             `bson:"concentration,omitempty" json:"concentration,omitempty"`
	VolumeML      int                `bson:"volume_ml,omitempty" json:"volume_ml,omitempty"`
	Notes         FragranceNotes     `bson:"notes" json:"notes"`
	Tags          []string           `bson:"tags,omitempty" json:"tags"`
	IsFeatured    bool               `bson:"is_featured" json:"is_featured"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	Rating        float64            `bson:"rating" json:"rating"`
	ReviewCount   int                `bson:"review_count" json:"review_count"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`

	// Populated by $lookup on reads; never persisted.
	Brand    *Summary `bson:"brand,omitempty" json:"brand,omitempty"`
	Category *Summary `bson:"category,omitempty" json:"category,omitempty"`
}

// EffectivePrice is the discount price when it is a real discount, else the list price.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountPrice > 0 && p.DiscountPrice < p.Price {
		return p.DiscountPrice
	}
	return p.Price
}

// PrimaryImage returns the first image or "".
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Purchasable reports whether qty units can be ordered right now.
func (p *Product) Purchasable(qty int) bool {
	return p.IsActive && qty > 0 && p.Stock >= qty
}

// ProductFilter narrows product listings. Empty fields do not filter.
type ProductFilter struct {
	ListQuery
	Category        string // id or slug
	Brand           string // id or slug
	Gender          string
	IncludeUnisex   bool // with Gender, also match unisex products
	Concentration   string
	MinPrice        float64
	MaxPrice        float64
	InStock         bool
	Featured        *bool
	Tags            []string
	Notes           []string
	IncludeInactive bool
	IDs             []primitive.ObjectID
}

type Banner struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Subtitle  string             `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	Image     string             `bson:"image" json:"image"`
	Link      string             `bson:"link,omitempty" json:"link,omitempty"`
	Position  int                `bson:"position" json:"position"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	StartsAt  *time.Time         `bson:"starts_at,omitempty" json:"starts_at,omitempty"`
	EndsAt    *time.Time         `bson:"ends_at,omitempty" json:"ends_at,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// LiveAt reports whether the banner should be shown at t.
func (b *Banner) LiveAt(t time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.StartsAt != nil && t.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && !t.Before(*b.EndsAt) {
		return false
	}
	return true
}
