package application

import (
	"context"

	cartdomain "github.com/dmehra2102/volt-storefront/internal/cart/domain"
	orderdomain "github.com/dmehra2102/volt-storefront/internal/order/domain"
	paymentdomain "github.com/dmehra2102/volt-storefront/internal/payment/domain"
)

type CartSource interface {
	Snapshot() cartdomain.Cart
	Clear()
}

type OrderLedger interface {
	Append(ctx context.Context, o orderdomain.Order) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (paymentdomain.GatewayOrder, error)
	VerifyPayment(ctx context.Context, req paymentdomain.VerifyRequest) (paymentdomain.VerifyResponse, error)
}

type Widget interface {
	Load(ctx context.Context) error
	Open(ctx context.Context, opts paymentdomain.WidgetOptions) (paymentdomain.WidgetResult, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, aggregateID, eventType string, payload any) error
}
