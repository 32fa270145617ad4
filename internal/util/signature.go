package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignHex returns the lowercase hex HMAC-SHA256 of payload under secret.
// The gateway uses the same construction for checkout signatures (payload
// "orderId|paymentId", key secret) and webhooks (raw body, webhook secret).
func SignHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyHex(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignHex(secret, payload)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func PaymentSignaturePayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
