package domain

// CreateOrderRequest is sent to the backend to open a gateway order.
// Amount is in minor units.
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// GatewayOrder is the backend's answer to CreateOrderRequest.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentConfirmation is the payload of the widget's success callback.
type PaymentConfirmation struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyRequest struct {
	OrderID string `json:"order_id"`
	PaymentConfirmation
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// PendingPayment lives only for one checkout attempt.
type PendingPayment struct {
	GatewayOrderID   string
	ExpectedAmount   int64
	ExpectedCurrency string
}

// Verification is what the backend said about a payment signature.
type Verification string

const (
	Verified   Verification = "verified"
	Unverified Verification = "unverified"
	Rejected   Verification = "rejected"
)
