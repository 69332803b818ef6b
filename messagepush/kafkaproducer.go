package messagepush

import (
	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

type produceOptions struct {
	topic   string
	pushKey string
}

type produceOptFunc func(opts *produceOptions)

func WithTopic(topic string) produceOptFunc {
	return func(opts *produceOptions) {
		opts.topic = topic
	}
}

func WithPushKey(key string) produceOptFunc {
	return func(opts *produceOptions) {
		opts.pushKey = key
	}
}

type KafkaProducer interface {
	Produce(msg interface{}, optFns ...produceOptFunc) error
	PushStatusUpdate(update *StatusUpdate, optFns ...produceOptFunc) error
	Close() error

	// GetFakeMessages returns the messages from the fake producer
	// Not available for real kafka producer
	GetFakeMessages(topic string) []string
}

type kafkaProducerImpl struct {
	producer       sarama.SyncProducer
	defaultTopic   string
	defaultPushKey string
	bizCode        string
}

func NewKafkaProducer(cfg Config) (KafkaProducer, error) {
	if !cfg.Enabled || cfg.UseFakeProducer {
		log.Infof("start to init fake kafka producer!")
		return newFakeProducer(cfg), nil
	}
	log.Infof("start to init real kafka producer!")
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true

	if err := ConfigureSASL(config, cfg.Username, cfg.Password, cfg.RootCAPath); err != nil {
		return nil, errors.Wrap(err, "NewKafkaProducer")
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "NewKafkaProducer: NewSyncProducer error")
	}
	bizCode := cfg.BizCode
	if bizCode == "" {
		bizCode = BizCodeBridgeStatus
	}
	return &kafkaProducerImpl{
		producer:       producer,
		defaultTopic:   cfg.Topic,
		defaultPushKey: cfg.PushKey,
		bizCode:        bizCode,
	}, nil
}

// Produce send a message to the Kafka topic
// msg should be either a string or an object
// If msg is an object, it will be encoded to JSON before being sent
func (p *kafkaProducerImpl) Produce(msg interface{}, optFns ...produceOptFunc) error {
	if p == nil || p.producer == nil {
		log.Debugf("Kafka producer is nil")
		return nil
	}
	opts := &produceOptions{
		topic:   p.defaultTopic,
		pushKey: p.defaultPushKey,
	}
	for _, f := range optFns {
		f(opts)
	}

	msgString, err := convertMsgToString(msg)
	if err != nil {
		return err
	}

	produceMsg := &sarama.ProducerMessage{
		Topic: opts.topic,
		Value: sarama.StringEncoder(msgString),
	}
	if opts.pushKey != "" {
		produceMsg.Key = sarama.StringEncoder(opts.pushKey)
	}

	// Send message to the topic
	partition, offset, err := p.producer.SendMessage(produceMsg)

	if err != nil {
		return errors.Wrap(err, "kafka SendMessage error")
	}

	log.Debugf("Produced to Kafka: topic[%v] msg[%v] partition[%v] offset[%v]", opts.topic, msgString, partition, offset)
	return nil
}

// PushStatusUpdate sends a deposit status change. Updates are keyed by the deposit
// nonce unless a push key is given, so the updates of a deposit stay in one partition.
func (p *kafkaProducerImpl) PushStatusUpdate(update *StatusUpdate, optFns ...produceOptFunc) error {
	if update == nil {
		return nil
	}
	msg, err := newStatusMessage(p.bizCode, update)
	if err != nil {
		return err
	}
	if p.defaultPushKey == "" && update.Nonce != "" {
		optFns = append([]produceOptFunc{WithPushKey(update.Nonce)}, optFns...)
	}
	return p.Produce(msg, optFns...)
}

func (p *kafkaProducerImpl) Close() error {
	return p.producer.Close()
}

func (p *kafkaProducerImpl) GetFakeMessages(string) []string {
	log.Warnf("GetFakeMessages should only be called from fakeProducer")
	return nil
}
