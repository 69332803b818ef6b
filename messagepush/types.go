package messagepush

import "time"

const (
	BizCodeBridgeStatus = "valt_bridge_status"
)

type PushMessage struct {
	BizCode       string `json:"bizCode"`
	WalletAddress string `json:"walletAddress"`
	RequestID     string `json:"requestId"`
	PushContent   string `json:"pushContent"`
	Time          int64  `json:"time"`
}

// StatusUpdate is pushed every time a deposit reaches a terminal payout outcome
type StatusUpdate struct {
	DepositID          uint64    `json:"depositId"`
	Nonce              string    `json:"nonce"`
	Status             string    `json:"status"`
	Recipient          string    `json:"recipient"`
	SourceNetwork      string    `json:"sourceNetwork"`
	DestinationNetwork string    `json:"destinationNetwork"`
	TokenTo            string    `json:"tokenTo"`
	AmountOut          string    `json:"amountOut"`
	ReleaseType        string    `json:"releaseType,omitempty"`
	ReleaseTxHash      string    `json:"releaseTxHash,omitempty"`
	Error              string    `json:"error,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
