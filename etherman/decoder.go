package etherman

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/valtbridge/bridge-service/models"
)

// ErrNotBridgeDeposit is returned for logs that are not a well formed BridgeDeposit event
var ErrNotBridgeDeposit = errors.New("log is not a BridgeDeposit event")

type bridgeDepositData struct {
	Amount      int64
	To          common.Address
	TokenTo     common.Address
	PoolAddress common.Address
	DesChain    uint64
}

// DecodeBridgeDeposit decodes a BridgeDeposit log. The nonce is indexed, so only its
// keccak hash is available in the log.
func DecodeBridgeDeposit(vLog types.Log) (*models.BridgeDeposit, error) {
	if len(vLog.Topics) != 4 || vLog.Topics[0] != BridgeDepositSignatureHash { //nolint:gomnd
		return nil, ErrNotBridgeDeposit
	}
	var data bridgeDepositData
	if err := bridgeABI.UnpackIntoInterface(&data, bridgeDepositEvent, vLog.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotBridgeDeposit, err)
	}
	if data.Amount <= 0 {
		return nil, fmt.Errorf("%w: non positive amount %d", ErrNotBridgeDeposit, data.Amount)
	}
	return &models.BridgeDeposit{
		NonceHash:   vLog.Topics[1],
		From:        common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
		TokenFrom:   common.BytesToAddress(vLog.Topics[3].Bytes()).Hex(),
		Amount:      big.NewInt(data.Amount),
		To:          data.To.Hex(),
		TokenTo:     data.TokenTo.Hex(),
		PoolAddress: data.PoolAddress.Hex(),
		DestChainID: data.DesChain,
		TxHash:      vLog.TxHash.Hex(),
		LogIndex:    vLog.Index,
		BlockNumber: vLog.BlockNumber,
	}, nil
}

// DedupKey identifies a log among all the logs of a source
func DedupKey(txHash string, logIndex uint) string {
	return fmt.Sprintf("%s:%d", txHash, logIndex)
}
