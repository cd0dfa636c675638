package handler

// AccountResponse represents an account in API responses
type AccountResponse struct {
	AccountKey    string `json:"account_key"`
	VaultBalance  string `json:"vault_balance"`
	WalletBalance string `json:"wallet_balance"`
	UpdatedAt     string `json:"updated_at"`
}

// TransactionResponse represents a settlement in API responses
type TransactionResponse struct {
	IdempotencyKey string `json:"idempotency_key"`
	Type           string `json:"type"`
	OriginKey      string `json:"origin_key,omitempty"`
	DestinationKey string `json:"destination_key,omitempty"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	FailureReason  string `json:"failure_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
	ConfirmedAt    string `json:"confirmed_at,omitempty"`
}

// LedgerEntryResponse represents a downstream audit entry
type LedgerEntryResponse struct {
	IdempotencyKey string `json:"idempotency_key"`
	Type           string `json:"type"`
	OriginKey      string `json:"origin_key,omitempty"`
	DestinationKey string `json:"destination_key,omitempty"`
	Amount         string `json:"amount"`
	ConfirmedAt    string `json:"confirmed_at"`
	ReceivedAt     string `json:"received_at"`
	Topic          string `json:"topic"`
	Partition      int    `json:"partition"`
	Offset         int64  `json:"offset"`
}
