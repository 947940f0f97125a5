package domain

import "time"

// Wallet binds a Telegram user to one EVM account. The private key is
// stored encrypted and only decrypted in memory at signing time.
type Wallet struct {
	ID           int64
	TelegramID   int64
	Address      string // checksummed hex
	EncryptedKey []byte // AES-GCM sealed private key
	CreatedAt    time.Time
}
