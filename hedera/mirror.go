package hedera

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const (
	defaultPageLimit = 100
	defaultMaxPages  = 20

	transactionSuccess = "SUCCESS"
	cryptoTransfer     = "CRYPTOTRANSFER"
)

var errMirrorNotFound = errors.New("not found on mirror node")

type links struct {
	Next string `json:"next"`
}

// ContractLog is a contract log as served by the mirror node
type ContractLog struct {
	Address         string   `json:"address"`
	ContractID      string   `json:"contract_id"`
	Data            string   `json:"data"`
	Index           uint     `json:"index"`
	Topics          []string `json:"topics"`
	BlockHash       string   `json:"block_hash"`
	BlockNumber     uint64   `json:"block_number"`
	Timestamp       string   `json:"timestamp"`
	TransactionHash string   `json:"transaction_hash"`
}

// ToLog converts the mirror node representation into an ethereum log
func (l ContractLog) ToLog() types.Log {
	topics := make([]common.Hash, 0, len(l.Topics))
	for _, t := range l.Topics {
		topics = append(topics, common.HexToHash(t))
	}
	return types.Log{
		Address:     common.HexToAddress(l.Address),
		Topics:      topics,
		Data:        common.FromHex(l.Data),
		BlockNumber: l.BlockNumber,
		TxHash:      common.HexToHash(l.TransactionHash),
		BlockHash:   common.HexToHash(l.BlockHash),
		Index:       l.Index,
	}
}

// Transfer is an hbar movement of a transaction
type Transfer struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Transaction is a transaction as served by the mirror node
type Transaction struct {
	ConsensusTimestamp string     `json:"consensus_timestamp"`
	TransactionID      string     `json:"transaction_id"`
	Name               string     `json:"name"`
	Result             string     `json:"result"`
	Transfers          []Transfer `json:"transfers"`
}

// IsSuccessfulTransfer reports whether the transaction is a successful crypto transfer
func (t Transaction) IsSuccessfulTransfer() bool {
	return t.Result == transactionSuccess && (t.Name == "" || t.Name == cryptoTransfer)
}

// Credit returns the amount in tinybars credited to account and the account debited for it
func (t Transaction) Credit(account string) (int64, string) {
	var (
		credit int64
		sender string
	)
	for _, tr := range t.Transfers {
		if tr.Account == account && tr.Amount > 0 {
			credit += tr.Amount
		}
	}
	for _, tr := range t.Transfers {
		if tr.Amount < 0 && tr.Account != account {
			sender = tr.Account
			break
		}
	}
	return credit, sender
}

type logsResponse struct {
	Logs  []ContractLog `json:"logs"`
	Links links         `json:"links"`
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Links        links         `json:"links"`
}

type tokenBalancesResponse struct {
	Tokens []struct {
		TokenID string `json:"token_id"`
		Balance int64  `json:"balance"`
	} `json:"tokens"`
}

// MirrorClient reads the hedera mirror node REST api. Every request tries the
// configured mirror nodes in order and returns the first success.
type MirrorClient struct {
	urls       []string
	httpClient *http.Client
	pageLimit  int
	maxPages   int
}

// NewMirrorClient creates a mirror node client
func NewMirrorClient(cfg Config, urls []string) *MirrorClient {
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &MirrorClient{
		urls: urls,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout.Duration,
		},
		pageLimit: pageLimit,
		maxPages:  maxPages,
	}
}

// ContractLogs returns the logs of a contract at or after the given consensus timestamp,
// in ascending order, following the pagination links.
func (m *MirrorClient) ContractLogs(ctx context.Context, contractID, fromTimestamp string) ([]ContractLog, error) {
	path := fmt.Sprintf("/api/v1/contracts/%s/results/logs?order=asc&limit=%d", contractID, m.pageLimit)
	if fromTimestamp != "" {
		path += "&timestamp=gte:" + fromTimestamp
	}
	var result []ContractLog
	for page := 0; path != "" && page < m.maxPages; page++ {
		var resp logsResponse
		if err := m.get(ctx, path, &resp); err != nil {
			return nil, err
		}
		result = append(result, resp.Logs...)
		path = resp.Links.Next
	}
	return result, nil
}

// Transactions returns the transactions of an account at or after the given consensus
// timestamp, in ascending order, following the pagination links.
func (m *MirrorClient) Transactions(ctx context.Context, accountID, fromTimestamp string) ([]Transaction, error) {
	path := fmt.Sprintf("/api/v1/transactions?account.id=%s&limit=%d&order=asc", accountID, m.pageLimit)
	if fromTimestamp != "" {
		path += "&timestamp=gte:" + fromTimestamp
	}
	var result []Transaction
	for page := 0; path != "" && page < m.maxPages; page++ {
		var resp transactionsResponse
		if err := m.get(ctx, path, &resp); err != nil {
			return nil, err
		}
		result = append(result, resp.Transactions...)
		path = resp.Links.Next
	}
	return result, nil
}

// TransactionsByID returns the transactions with the given sdk transaction id
// (0.0.x@seconds.nanos). It returns none when the mirror node does not know the id.
func (m *MirrorClient) TransactionsByID(ctx context.Context, txID string) ([]Transaction, error) {
	id, _, err := parseTransactionID(txID)
	if err != nil {
		return nil, err
	}
	var resp transactionsResponse
	err = m.get(ctx, "/api/v1/transactions/"+id, &resp)
	if errors.Is(err, errMirrorNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// parseTransactionID converts an sdk transaction id into its mirror node form and
// returns its valid start
func parseTransactionID(txID string) (string, time.Time, error) {
	txID, _, _ = strings.Cut(txID, "?")
	account, validStart, ok := strings.Cut(txID, "@")
	if !ok || !network.IsEntityID(account) {
		return "", time.Time{}, fmt.Errorf("invalid hedera transaction id %q", txID)
	}
	secs, nanos, ok := strings.Cut(validStart, ".")
	if !ok {
		return "", time.Time{}, fmt.Errorf("invalid hedera transaction id %q", txID)
	}
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return "", time.Time{}, errors.Wrapf(err, "invalid hedera transaction id %q", txID)
	}
	nsec, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return "", time.Time{}, errors.Wrapf(err, "invalid hedera transaction id %q", txID)
	}
	return fmt.Sprintf("%s-%d-%09d", account, sec, nsec), time.Unix(sec, nsec), nil
}

// TokenBalance returns the balance in base units of an HTS token held by the account
func (m *MirrorClient) TokenBalance(ctx context.Context, accountID, tokenID string) (*big.Int, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/tokens?token.id=%s", accountID, tokenID)
	var resp tokenBalancesResponse
	if err := m.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	for _, t := range resp.Tokens {
		if t.TokenID == tokenID {
			return big.NewInt(t.Balance), nil
		}
	}
	return big.NewInt(0), nil
}

func (m *MirrorClient) get(ctx context.Context, path string, out interface{}) error {
	var (
		lastErr  error
		notFound bool
	)
	for _, base := range m.urls {
		fullPath := strings.TrimSuffix(base, "/") + path
		err := m.getOnce(ctx, fullPath, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, errMirrorNotFound) {
			notFound = true
			continue
		}
		log.Warnf("mirror node request %s failed: %v", fullPath, err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if notFound {
		return errMirrorNotFound
	}
	return errors.Wrapf(gerror.ErrAllEndpointsFailed, "mirror node %s: %v", path, lastErr)
}

func (m *MirrorClient) getOnce(ctx context.Context, fullPath string, out interface{}) error {
	if _, err := url.Parse(fullPath); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			log.Errorf("close mirror node response body failed, err [%v]", err)
		}
	}(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return errMirrorNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status code %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(respBody, out), "decoding mirror node response")
}
