package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressandpolish/storefront/internal/cart"
	"github.com/pressandpolish/storefront/internal/orders"
)

type ValidateCartRequest struct {
	Items []cart.ItemRequest `json:"items"`
}

type AddCartItemRequest struct {
	cart.ItemRequest
}

type PricedItemDTO struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	UnitPrice string `json:"unitPrice"`
	Size      string `json:"size"`
	Design    string `json:"design"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

type AmountsDTO struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

type PricedCartResponse struct {
	Items   []PricedItemDTO `json:"items"`
	Amounts AmountsDTO      `json:"amounts"`
}

type AddressDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	ZIP     string `json:"zip"`
	Country string `json:"country"`
}

type CheckoutRequest struct {
	Items   []cart.ItemRequest `json:"items"`
	Address AddressDTO         `json:"address"`
}

// CheckoutResponse carries everything the browser needs to open the payment
// widget. The key ID is public by design; the key secret never leaves the
// server.
type CheckoutResponse struct {
	OrderID     string     `json:"orderId"`
	OrderNumber string     `json:"orderNumber"`
	Amounts     AmountsDTO `json:"amounts"`
	Razorpay    struct {
		KeyID          string `json:"keyId"`
		GatewayOrderID string `json:"gatewayOrderId"`
		Amount         int64  `json:"amount"` // minor currency unit
		Currency       string `json:"currency"`
		Prefill        struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Contact string `json:"contact,omitempty"`
		} `json:"prefill"`
	} `json:"razorpay"`
}

// VerifyPaymentRequest uses the field names the Razorpay widget hands to the
// browser's success callback.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type OrderItemDTO struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unitPrice"`
	Size      string  `json:"size"`
	Design    string  `json:"design"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

type OrderResponse struct {
	ID            string         `json:"id"`
	OrderNumber   string         `json:"orderNumber"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"paymentStatus"`
	Items         []OrderItemDTO `json:"items"`
	Amounts       orders.Amounts `json:"amounts"`
	Address       AddressDTO     `json:"address"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  []cart.FieldError `json:"fields,omitempty"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func mapPricedCart(pc *cart.PricedCart) PricedCartResponse {
	items := make([]PricedItemDTO, len(pc.Items))
	for i, it := range pc.Items {
		items[i] = PricedItemDTO{
			ProductID: it.ProductID.Hex(),
			Title:     it.Title,
			UnitPrice: money(it.UnitPrice),
			Size:      it.Size,
			Design:    it.Design,
			Image:     it.Image,
			Quantity:  it.Quantity,
			LineTotal: money(it.LineTotal),
		}
	}
	return PricedCartResponse{
		Items:   items,
		Amounts: mapAmounts(pc),
	}
}

func mapAmounts(pc *cart.PricedCart) AmountsDTO {
	return AmountsDTO{
		Subtotal: money(pc.Subtotal),
		Tax:      money(pc.Tax),
		Shipping: money(pc.Shipping),
		Discount: money(pc.Discount),
		Total:    money(pc.Total),
	}
}

func mapOrder(o *orders.Order) OrderResponse {
	items := make([]OrderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemDTO{
			ProductID: it.ProductID.Hex(),
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Size:      it.Size,
			Design:    it.Design,
			Image:     it.Image,
			Quantity:  it.Quantity,
		}
	}
	return OrderResponse{
		ID:            o.ID.Hex(),
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.Payment.Status),
		Items:         items,
		Amounts:       o.Amounts,
		Address:       mapAddress(o.Address),
		CreatedAt:     o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapAddress(a orders.Address) AddressDTO {
	return AddressDTO{
		Name:    a.Name,
		Email:   a.Email,
		Phone:   a.Phone,
		Line1:   a.Line1,
		Line2:   a.Line2,
		City:    a.City,
		State:   a.State,
		ZIP:     a.ZIP,
		Country: a.Country,
	}
}

func toAddress(a AddressDTO) orders.Address {
	return orders.Address{
		Name:    a.Name,
		Email:   a.Email,
		Phone:   a.Phone,
		Line1:   a.Line1,
		Line2:   a.Line2,
		City:    a.City,
		State:   a.State,
		ZIP:     a.ZIP,
		Country: a.Country,
	}
}
