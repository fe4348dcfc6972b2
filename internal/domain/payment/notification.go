package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Notification is an inbound gateway status notification.
type Notification struct {
	OrderCode         string
	StatusCode        string
	GrossAmount       string
	SignatureKey      string
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
	TransactionID     string
	SettlementTime    string
	// Raw is the notification body as received.
	Raw []byte
}

// Sign computes the gateway signature: hex SHA-512 over order code, status
// code, gross amount and server key, concatenated as sent.
func Sign(orderCode, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderCode + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether n carries a valid signature for serverKey.
func VerifySignature(n Notification, serverKey string) bool {
	if n.SignatureKey == "" || serverKey == "" {
		return false
	}
	want := Sign(n.OrderCode, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) == 1
}

// MapStatus maps a gateway transaction status and fraud status to a
// payment status.
func MapStatus(transactionStatus, fraudStatus string) Status {
	switch transactionStatus {
	case "settlement":
		return StatusPaid
	case "capture":
		if fraudStatus == "accept" {
			return StatusPaid
		}
	case "expire":
		return StatusExpired
	case "cancel":
		return StatusCancelled
	}
	return StatusPending
}

// DedupKey identifies the logical event a notification reports.
func (n Notification) DedupKey(target Status) string {
	id := n.TransactionID
	if id == "" {
		id = n.OrderCode
	}
	return id + ":" + string(target)
}
