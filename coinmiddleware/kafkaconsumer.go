package coinmiddleware

import (
	"context"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/valtbridge/bridge-service/messagepush"
)

// KafkaConsumer provides the interface to consume from coin middleware kafka
type KafkaConsumer interface {
	Start(ctx context.Context)
	Close() error
}

type kafkaConsumerImpl struct {
	topics  []string
	client  sarama.ConsumerGroup
	handler sarama.ConsumerGroupHandler
}

func NewKafkaConsumer(cfg Config, redisStorage priceWriter) (KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = cfg.InitialOffset

	if err := messagepush.ConfigureSASL(config, cfg.Username, cfg.Password, cfg.RootCAPath); err != nil {
		return nil, errors.Wrap(err, "NewKafkaConsumer")
	}

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroupID, config)
	if err != nil {
		return nil, errors.Wrap(err, "kafka consumer group init error")
	}

	return &kafkaConsumerImpl{
		topics:  cfg.Topics,
		client:  client,
		handler: NewMessageHandler(redisStorage),
	}, nil
}

func (c *kafkaConsumerImpl) Start(ctx context.Context) {
	log.Debug("starting kafka consumer")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		log.Debugf("start consume")
		err := c.client.Consume(ctx, c.topics, c.handler)
		if err != nil {
			log.Errorf("kafka consumer error: %v", err)
			return
		}
		if err = ctx.Err(); err != nil {
			log.Infof("kafka consumer stopped: %v", err)
			return
		}
	}
}

func (c *kafkaConsumerImpl) Close() error {
	log.Debug("closing kafka consumer...")
	return c.client.Close()
}
