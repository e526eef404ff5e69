package models

// FaucetClaim is one dispensation from the faucet account. Rows are written
// once by the claim arbiter and never updated; the cooldown policy reads the
// most recent row per wallet or IP on every claim attempt.
type FaucetClaim struct {
	ID            uint   `gorm:"primaryKey"`
	WalletAddress string `gorm:"index"`
	IPAddress     string `gorm:"index"`
	Amount        string `gorm:"type:numeric"`
	TxHash        string `gorm:"uniqueIndex"`
	ClaimedAt     int64  `gorm:"index"` // epoch milliseconds, set when the transfer was initiated
}
