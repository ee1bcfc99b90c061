// Package catalog holds the product side of the store: press-on nail sets,
// their size/design variants and stock counts.
package catalog

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrInactive        = errors.New("catalog: product is not active")
	ErrVariantNotFound = errors.New("catalog: variant not found")
)

// Image is a product photo. Exactly one image per product is primary.
type Image struct {
	URL       string `bson:"url" json:"url"`
	Alt       string `bson:"alt,omitempty" json:"alt,omitempty"`
	IsPrimary bool   `bson:"isPrimary" json:"isPrimary"`
}

// Variant is a size × design pairing with its own stock count.
type Variant struct {
	Size   string `bson:"size" json:"size"`
	Design string `bson:"design" json:"design"`
	Stock  int    `bson:"stock" json:"stock"`
}

// Rating is the denormalized review aggregate kept on the product document.
type Rating struct {
	Average float64 `bson:"average" json:"average"`
	Count   int     `bson:"count" json:"count"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	Category    string             `bson:"category" json:"category"`
	Colors      []string           `bson:"colors,omitempty" json:"colors,omitempty"`
	Images      []Image            `bson:"images" json:"images"`
	Variants    []Variant          `bson:"variants" json:"variants"`
	Rating      Rating             `bson:"rating" json:"rating"`
	Slug        string             `bson:"slug" json:"slug"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Normalize applies the document invariants before the first insert: the slug
// is derived once from the title and the first image is defaulted primary
// when none is marked.
func (p *Product) Normalize() {
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if len(p.Images) == 0 {
		return
	}
	for _, img := range p.Images {
		if img.IsPrimary {
			return
		}
	}
	p.Images[0].IsPrimary = true
}

// PrimaryImage returns the URL of the primary image, or the empty string for
// a product with no images.
func (p *Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	return ""
}

// FindVariant looks up the variant for a size/design pair.
func (p *Product) FindVariant(size, design string) (Variant, error) {
	for _, v := range p.Variants {
		if v.Size == size && v.Design == design {
			return v, nil
		}
	}
	return Variant{}, ErrVariantNotFound
}

// Slugify turns a product title into its URL slug: lowercase, non-alphanumeric
// runs collapsed to single hyphens. The slug is computed once at creation and
// persisted; later title edits do not change it.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
