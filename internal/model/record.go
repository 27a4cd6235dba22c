// Package model defines domain models for delivery verification and settlement.
package model

// Status describes the terminal state of a processed document.
type Status string

var (
	// StatusPaid marks a document that was verified and settled.
	StatusPaid Status = "Paid"
	// StatusFailed marks a document that was rejected or whose settlement failed.
	StatusFailed Status = "Failed"
)

const (
	// NoTransaction is the tx_id placeholder for records without a settlement.
	NoTransaction = "N/A"
	// ZeroAmount is the payment amount recorded for failed records.
	ZeroAmount = "0"
)

// VerificationRecord is a single ledger entry. It is never mutated after append.
type VerificationRecord struct {
	Invoice    int          `json:"invoice"`
	Timestamp  Timestamp    `json:"timestamp"`
	Status     Status       `json:"status"`
	Confidence int          `json:"confidence"`
	Reason     string       `json:"reason"`
	Payment    Payment      `json:"payment"`
	Document   *DocumentRef `json:"document,omitempty"`
}

// Payment holds the settlement echo of a record.
type Payment struct {
	TxID   string `json:"tx_id"`
	Amount string `json:"amount"`
}

// DocumentRef identifies the uploaded document a record was derived from.
type DocumentRef struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// NoPayment is the payment stub of a failed record.
func NoPayment() Payment {
	return Payment{TxID: NoTransaction, Amount: ZeroAmount}
}

// Paid reports whether the record carries a completed settlement.
func (r VerificationRecord) Paid() bool {
	return r.Status == StatusPaid && r.Payment.TxID != NoTransaction
}
