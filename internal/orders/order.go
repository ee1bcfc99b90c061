// Package orders holds the Order document model and its lifecycle.
//
// An order snapshots everything it needs from the catalog at creation time
// (title, unit price, variant, image) so historical orders stay immutable
// when products are later edited or deleted.
package orders

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("orders: order not found")

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Item is a line item with its denormalized product snapshot.
type Item struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Title     string             `bson:"title" json:"title"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
	Size      string             `bson:"size" json:"size"`
	Design    string             `bson:"design" json:"design"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Amounts are the server-computed monetary totals, stored with two decimals.
type Amounts struct {
	Subtotal float64 `bson:"subtotal" json:"subtotal"`
	Tax      float64 `bson:"tax" json:"tax"`
	Shipping float64 `bson:"shipping" json:"shipping"`
	Discount float64 `bson:"discount" json:"discount"`
	Total    float64 `bson:"total" json:"total"`
}

// PaymentInfo is the embedded payment sub-document.
type PaymentInfo struct {
	Status         PaymentStatus `bson:"status" json:"status"`
	Method         string        `bson:"method,omitempty" json:"method,omitempty"`
	GatewayOrderID string        `bson:"gatewayOrderId,omitempty" json:"gatewayOrderId,omitempty"`
	PaymentID      string        `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	PaidAt         *time.Time    `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	RefundedAt     *time.Time    `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
	FailureReason  string        `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
}

// Address is the shipping address snapshot taken at checkout.
type Address struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Line1   string `bson:"line1" json:"line1"`
	Line2   string `bson:"line2,omitempty" json:"line2,omitempty"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state,omitempty" json:"state,omitempty"`
	ZIP     string `bson:"zip" json:"zip"`
	Country string `bson:"country" json:"country"`
}

// Refund records a (manual) refund against the order.
type Refund struct {
	Amount     float64   `bson:"amount" json:"amount"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
	RefundedAt time.Time `bson:"refundedAt" json:"refundedAt"`
}

type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber string             `bson:"orderNumber" json:"orderNumber"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Items       []Item             `bson:"items" json:"items"`
	Amounts     Amounts            `bson:"amounts" json:"amounts"`
	Status      Status             `bson:"status" json:"status"`
	Payment     PaymentInfo        `bson:"payment" json:"payment"`
	Address     Address            `bson:"address" json:"address"`
	Refund      *Refund            `bson:"refund,omitempty" json:"refund,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
