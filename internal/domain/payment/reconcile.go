package payment

// MapGatewayStatus folds the gateway's transaction_status and fraud_status
// pair into the local payment status:
//
//	capture + accept  -> paid
//	capture + other   -> pending (held for fraud review)
//	settlement        -> paid
//	cancel/deny/expire -> failed
//	pending, anything else -> pending
//
// Unknown statuses deliberately map to pending rather than failed, so a new
// gateway status never marks a live payment as failed.
func MapGatewayStatus(transactionStatus, fraudStatus string) Status {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return StatusPaid
		}
		return StatusPending
	case "settlement":
		return StatusPaid
	case "cancel", "deny", "expire":
		return StatusFailed
	default:
		return StatusPending
	}
}
