// Package cart validates and prices carts server-side.
//
// The client never supplies a price: every line is re-fetched from the
// catalog and priced from the authoritative document, so a tampered request
// can at worst be rejected, never underpay.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pressandpolish/storefront/internal/catalog"
)

// Pricing rules. Tax is a flat 8%; shipping is a flat fee waived once the
// subtotal reaches the free-shipping threshold.
var (
	taxRate           = decimal.NewFromFloat(0.08)
	shippingFee       = decimal.NewFromFloat(9.99)
	freeShippingAbove = decimal.NewFromInt(50)
)

// ItemRequest is one requested cart line as sent by the client.
type ItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Design    string `json:"design"`
	Quantity  int    `json:"quantity"`
}

// PricedItem is a validated line with its server-side price snapshot.
type PricedItem struct {
	ProductID primitive.ObjectID
	Title     string
	UnitPrice decimal.Decimal
	Size      string
	Design    string
	Image     string
	Quantity  int
	LineTotal decimal.Decimal
}

// PricedCart is the result of a successful validation.
type PricedCart struct {
	Items    []PricedItem
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// FieldError points a validation failure at the cart line that caused it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the field-level failures for a 400 response.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("cart: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("cart: %d invalid items", len(e.Fields))
}

// Service validates carts against the catalog.
type Service struct {
	products catalog.Repository
}

func NewService(products catalog.Repository) *Service {
	return &Service{products: products}
}

// Validate re-fetches every product, rejects inactive products, unknown
// variants and quantities exceeding current stock, and recomputes all
// monetary amounts. Validation problems are collected per line and returned
// together as a *ValidationError.
func (s *Service) Validate(ctx context.Context, items []ItemRequest) (*PricedCart, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "items", Message: "cart is empty"},
		}}
	}

	var (
		priced   []PricedItem
		fields   []FieldError
		subtotal = decimal.Zero
	)

	for i, req := range items {
		field := fmt.Sprintf("items[%d]", i)

		if req.Quantity < 1 {
			fields = append(fields, FieldError{Field: field + ".quantity", Message: "quantity must be at least 1"})
			continue
		}

		id, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			fields = append(fields, FieldError{Field: field + ".productId", Message: "invalid product id"})
			continue
		}

		product, err := s.products.GetByID(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			fields = append(fields, FieldError{Field: field + ".productId", Message: "product not found"})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cart: fetch product %s: %w", req.ProductID, err)
		}

		if !product.IsActive {
			fields = append(fields, FieldError{Field: field + ".productId", Message: "product is no longer available"})
			continue
		}

		variant, err := product.FindVariant(req.Size, req.Design)
		if err != nil {
			fields = append(fields, FieldError{Field: field, Message: "variant not available"})
			continue
		}

		if req.Quantity > variant.Stock {
			fields = append(fields, FieldError{
				Field:   field + ".quantity",
				Message: fmt.Sprintf("only %d in stock", variant.Stock),
			})
			continue
		}

		unit := decimal.NewFromFloat(product.Price)
		line := unit.Mul(decimal.NewFromInt(int64(req.Quantity)))

		priced = append(priced, PricedItem{
			ProductID: product.ID,
			Title:     product.Title,
			UnitPrice: unit,
			Size:      req.Size,
			Design:    req.Design,
			Image:     product.PrimaryImage(),
			Quantity:  req.Quantity,
			LineTotal: line,
		})
		subtotal = subtotal.Add(line)
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return price(priced, subtotal), nil
}

// price computes tax/shipping/total from a validated item list. Every
// component is rounded half-up to two decimals before summing.
func price(items []PricedItem, subtotal decimal.Decimal) *PricedCart {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Round(2)

	shipping := shippingFee
	if subtotal.GreaterThanOrEqual(freeShippingAbove) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	total := subtotal.Add(tax).Add(shipping).Sub(discount).Round(2)

	return &PricedCart{
		Items:    items,
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
}
