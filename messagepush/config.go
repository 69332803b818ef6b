package messagepush

// Config is the config for the Kafka producer
type Config struct {
	Enabled bool `mapstructure:"Enabled"`

	// UseFakeProducer keeps the latest messages in memory instead of sending them to kafka
	UseFakeProducer bool `mapstructure:"UseFakeProducer"`

	// Brokers is the list of address of the kafka brokers
	Brokers []string `mapstructure:"Brokers"`

	// Topic is the default topic name to send message to
	Topic   string `mapstructure:"Topic"`
	PushKey string `mapstructure:"PushKey"`
	BizCode string `mapstructure:"BizCode"`

	// Username and Password are used for SASL_SSL authentication
	Username string `mapstructure:"Username"`
	Password string `mapstructure:"Password"`

	// RootCAPath points to the CA cert used for authentication
	RootCAPath string `mapstructure:"RootCAPath"`
}
