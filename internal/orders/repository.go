package orders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repository is the port for order persistence.
type Repository interface {
	// Create assigns the order its daily-sequence order number and persists
	// it. The number is computed from the latest order since local midnight,
	// which is subject to a lost-update race under concurrent checkouts.
	Create(ctx context.Context, o *Order) error

	GetByID(ctx context.Context, id primitive.ObjectID) (*Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]Order, error)

	UpdateStatus(ctx context.Context, id primitive.ObjectID, status Status) error

	// SetGatewayOrder stores the payment gateway's order identifier and
	// method after the gateway-side order has been created.
	SetGatewayOrder(ctx context.Context, id primitive.ObjectID, gatewayOrderID, method string) error

	// MarkPaid flips the order to confirmed and the payment sub-document to
	// paid with the captured payment ID. It does not check the previous
	// state; a duplicate confirmation writes the same transition again.
	MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID string, paidAt time.Time) error

	// MarkPaymentFailed records the failure reason and cancels the order.
	MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, reason string) error
}
