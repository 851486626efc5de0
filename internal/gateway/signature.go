package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature computes the checkout callback signature: an
// HMAC-SHA256 over "{payment_id}|{gateway_subscription_id}" keyed with
// the API key secret, hex encoded.
func PaymentSignature(secret, paymentID, gatewaySubscriptionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(paymentID + "|" + gatewaySubscriptionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks a checkout callback signature in
// constant time.
func VerifyPaymentSignature(secret, paymentID, gatewaySubscriptionID, signature string) bool {
	expected := PaymentSignature(secret, paymentID, gatewaySubscriptionID)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// WebhookSignature computes the webhook delivery signature: an
// HMAC-SHA256 over the raw request body keyed with the webhook secret,
// hex encoded.
func WebhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a webhook delivery signature against the
// raw body bytes in constant time. Verification runs on the bytes as
// received, before any JSON parsing.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	expected := WebhookSignature(secret, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}
