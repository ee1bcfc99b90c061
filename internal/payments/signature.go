package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrInvalidSignature is returned for any signature that does not match.
var ErrInvalidSignature = errors.New("payments: invalid signature")

// Verifier checks the two HMAC-SHA256 signatures Razorpay produces: the
// redirect-path payment signature (signed with the key secret) and the
// webhook body signature (signed with the separate webhook secret).
type Verifier struct {
	keySecret     string
	webhookSecret string
}

func NewVerifier(keySecret, webhookSecret string) *Verifier {
	return &Verifier{keySecret: keySecret, webhookSecret: webhookSecret}
}

// VerifyPaymentSignature checks the signature the browser posts after the
// widget's success callback: HMAC-SHA256 over "{order_id}|{payment_id}" with
// the gateway key secret, hex encoded.
func (v *Verifier) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) error {
	expected := signHex(v.keySecret, []byte(gatewayOrderID+"|"+paymentID))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header: HMAC-SHA256
// over the raw request body with the webhook secret, hex encoded.
func (v *Verifier) VerifyWebhookSignature(body []byte, signature string) error {
	expected := signHex(v.webhookSecret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
