package coinmiddleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/redisstorage"
)

const (
	maxRetries   = 5
	retryBackoff = 3 * time.Second
)

// MessageHandler implements sarama.ConsumerGroupHandler, handles the messages from kafka and populate the Redis storage
type MessageHandler struct {
	storage priceWriter
	backoff time.Duration
}

func NewMessageHandler(redisStorage priceWriter) sarama.ConsumerGroupHandler {
	return &MessageHandler{storage: redisStorage, backoff: retryBackoff}
}

func (h *MessageHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *MessageHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *MessageHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				log.Info("message channel was closed")
				return nil
			}
			log.Infof("message received topic[%v] partition[%v] offset[%v]", message.Topic, message.Partition, message.Offset)

			// Retry for 5 times, if still fails, ignore this message
			for i := 0; i < maxRetries; i++ {
				err := h.handleMessage(message)
				if err == nil {
					break
				}
				log.Errorf("handle kafka message error[%v] retryCnt[%v]", err, i)
				time.Sleep(h.backoff)
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *MessageHandler) handleMessage(message *sarama.ConsumerMessage) error {
	body := &PriceMessage{}
	err := json.Unmarshal(message.Value, body)
	if err != nil {
		return errors.Wrap(err, "unmarshal message body error")
	}

	if body.Data == nil {
		return errors.New("message data is nil")
	}
	return h.storage.SetTokenPrices(context.Background(), toTokenPrices(body.Data.Prices))
}

func toTokenPrices(quotes []*TokenQuote) []redisstorage.TokenPrice {
	var result []redisstorage.TokenPrice
	for _, quote := range quotes {
		if quote == nil || quote.Symbol == "" {
			continue
		}
		tp := redisstorage.TokenPrice{Symbol: quote.Symbol, USD: decimal.NewFromFloat(quote.USD)}
		if quote.Timestamp > 0 {
			tp.UpdatedAt = time.UnixMilli(quote.Timestamp)
		}
		result = append(result, tp)
	}
	return result
}
