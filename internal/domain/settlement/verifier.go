package settlement

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks gateway-issued signatures. It is pure: callers apply any
// resulting state transition themselves. The key secret signs client-side
// confirmations; webhooks use a distinct secret over the raw payload.
type Verifier struct {
	keySecret     []byte
	webhookSecret []byte
}

func NewVerifier(keySecret, webhookSecret string) *Verifier {
	return &Verifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}
}

// VerifyConfirmation checks a client-supplied settlement confirmation.
// The signed message is "orderRef|settlementRef"; comparison is constant
// time and the expected value is never exposed to the caller.
func (v *Verifier) VerifyConfirmation(orderRef, settlementRef, providedSignature string) bool {
	mac := hmac.New(sha256.New, v.keySecret)
	mac.Write([]byte(orderRef + "|" + settlementRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}

// VerifyWebhook checks a gateway callback signature computed over the raw
// serialized payload.
func (v *Verifier) VerifyWebhook(payload []byte, providedSignature string) bool {
	mac := hmac.New(sha256.New, v.webhookSecret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}
