package domain

import "time"

// TransactionStatus reflects the on-chain outcome of a submitted transaction.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction is the immutable record written once per executed flow,
// after the executor returns a receipt. It is never mutated afterward.
type Transaction struct {
	ID          int64
	Hash        string
	TelegramID  int64
	FromAddress string
	TokenIn     string
	TokenOut    string
	AmountIn    string // base units, decimal string
	AmountOut   string // base units, decimal string
	Status      TransactionStatus
	GasUsed     uint64
	CreatedAt   time.Time
}
