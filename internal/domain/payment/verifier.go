package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// SignatureVerifier checks the signature_key field on gateway notifications.
// The gateway signs each notification with SHA-512 over the concatenation of
// order_id, status_code, gross_amount and the merchant server key, hex
// encoded. A notification that fails this check must be treated as untrusted
// regardless of its contents.
type SignatureVerifier struct {
	serverKey string
}

func NewSignatureVerifier(serverKey string) *SignatureVerifier {
	return &SignatureVerifier{serverKey: serverKey}
}

// Expected computes the signature the gateway would produce for these fields.
func (v *SignatureVerifier) Expected(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + v.serverKey))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the supplied signature matches the expected one.
// Empty order_id, status_code or signature never verifies. The comparison is
// constant time.
func (v *SignatureVerifier) Verify(orderID, statusCode, grossAmount, signature string) bool {
	if orderID == "" || statusCode == "" || signature == "" {
		return false
	}
	expected := v.Expected(orderID, statusCode, grossAmount)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
