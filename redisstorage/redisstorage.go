package redisstorage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const (
	tokenPriceHashKey = "bridge_token_prices"
	lockKeyPrefix     = "bridge_lock:"
)

// releaseLockScript deletes the lock only when it is still held by the caller
const releaseLockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// TokenPrice is the USD price of a token symbol
type TokenPrice struct {
	Symbol    string          `json:"symbol"`
	USD       decimal.Decimal `json:"usd"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// redisStorageImpl implements RedisStorage interface
type redisStorageImpl struct {
	client   RedisClient
	priceTTL time.Duration
	now      func() time.Time
}

func NewRedisStorage(cfg Config) (RedisStorage, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis address is empty")
	}
	var client redis.UniversalClient
	if cfg.IsClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addrs[0],
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	res, err := client.Ping(context.Background()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to redis server")
	}
	log.Debugf("redis health check done, result: %v", res)
	return newRedisStorage(client, cfg.PriceTTL.Duration), nil
}

func newRedisStorage(client RedisClient, priceTTL time.Duration) *redisStorageImpl {
	return &redisStorageImpl{client: client, priceTTL: priceTTL, now: time.Now}
}

func priceField(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *redisStorageImpl) SetTokenPrices(ctx context.Context, prices []TokenPrice) error {
	log.Debugf("SetTokenPrices size[%v]", len(prices))
	var valueList []interface{}
	for _, price := range prices {
		if price.Symbol == "" || !price.USD.IsPositive() {
			log.Infof("SetTokenPrices ignoring invalid price symbol[%v] usd[%v]", price.Symbol, price.USD)
			continue
		}
		price.Symbol = priceField(price.Symbol)
		if price.UpdatedAt.IsZero() {
			price.UpdatedAt = s.now()
		}
		priceVal, err := json.Marshal(price)
		if err != nil {
			return errors.Wrap(err, "marshal price error")
		}
		valueList = append(valueList, price.Symbol, string(priceVal))
	}
	if len(valueList) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, tokenPriceHashKey, valueList...).Err(); err != nil {
		return errors.Wrap(err, "SetTokenPrices redis HSet error")
	}
	return nil
}

// GetTokenPrice returns gerror.ErrStorageNotFound when the symbol has no price or a stale one
func (s *redisStorageImpl) GetTokenPrice(ctx context.Context, symbol string) (TokenPrice, error) {
	prices, err := s.GetTokenPrices(ctx, []string{symbol})
	if err != nil {
		return TokenPrice{}, err
	}
	if !prices[0].USD.IsPositive() {
		return TokenPrice{}, errors.Wrapf(gerror.ErrStorageNotFound, "price of %s", symbol)
	}
	return prices[0], nil
}

// GetTokenPrices returns one price per symbol, in order. Missing or stale prices are zero.
func (s *redisStorageImpl) GetTokenPrices(ctx context.Context, symbols []string) ([]TokenPrice, error) {
	log.Debugf("GetTokenPrices size[%v]", len(symbols))
	if len(symbols) == 0 {
		return nil, nil
	}
	keyList := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		keyList = append(keyList, priceField(symbol))
	}
	redisResult, err := s.client.HMGet(ctx, tokenPriceHashKey, keyList...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "GetTokenPrices redis HMGet error")
	}

	priceList := make([]TokenPrice, 0, len(keyList))
	for i, res := range redisResult {
		empty := TokenPrice{Symbol: keyList[i], USD: decimal.Zero}
		raw, ok := res.(string)
		if !ok {
			log.Infof("GetTokenPrices price not found symbol[%v]", keyList[i])
			priceList = append(priceList, empty)
			continue
		}
		var price TokenPrice
		if err := json.Unmarshal([]byte(raw), &price); err != nil {
			log.Infof("cannot unmarshal price object[%v] error[%v]", raw, err)
			priceList = append(priceList, empty)
			continue
		}
		if s.priceTTL > 0 && s.now().Sub(price.UpdatedAt) > s.priceTTL {
			log.Warnf("GetTokenPrices stale price symbol[%v] updatedAt[%v]", keyList[i], price.UpdatedAt)
			priceList = append(priceList, empty)
			continue
		}
		priceList = append(priceList, price)
	}
	return priceList, nil
}

// AcquireLock takes key for ttl. The returned token must be passed to ReleaseLock.
func (s *redisStorageImpl) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, errors.Wrapf(err, "AcquireLock redis SetNX error, key[%v]", key)
	}
	return token, ok, nil
}

func (s *redisStorageImpl) ReleaseLock(ctx context.Context, key, token string) error {
	err := s.client.Eval(ctx, releaseLockScript, []string{lockKeyPrefix + key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrapf(err, "ReleaseLock redis Eval error, key[%v]", key)
	}
	return nil
}
