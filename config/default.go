package config

// DefaultValues is the default configuration
const DefaultValues = `
[Log]
Environment = "development"
Level = "info"
Outputs = ["stdout"]

[Database]
Database = "postgres"
User = "valt_user"
Password = "valt_password"
Name = "valt_bridge"
Host = "localhost"
Port = "5432"
MaxConns = 20

[Etherman]
RequestTimeout = "15s"
ReceiptTimeout = "3m"
ReceiptPollInterval = "3s"
GasLimitTransfer = 100000
GasLimitSwap = 350000
ContractCacheSize = 10000
    [Etherman.PrivateKey]
    Path = ""
    Password = ""

[Hedera]
RequestTimeout = "15s"
PageLimit = 100
MaxPages = 20

[Synchronizer]
SyncInterval = "10s"
SyncChunkSize = 10
MaxChunksPerCycle = 50
ProcessedCacheSize = 10000

[Precheck]
Timeout = "20s"
CheckAllowance = true

[ReleaseTxManager]
Enabled = true
FrequencyToMonitorTxs = "2s"
TxTimeout = "3m"
RetryNumber = 5
LockBackend = "memory"
LockTTL = "5m"
StatusTopic = ""

[FeeDistributor]
ZeroLiquidityPolicy = "admin"
SweepInterval = "1m"
SweepBatchSize = 100

[BridgeServer]
HTTPPort = "8080"
ReadTimeout = "30s"
WriteTimeout = "30s"
JWTSecret = ""
WebhookSecret = ""
DefaultPageLimit = 25
MaxPageLimit = 100

[Redis]
IsClusterMode = false
Addrs = ["localhost:6379"]
Username = ""
Password = ""
DB = 0
PriceTTL = "10m"

[CoinKafkaConsumer]
Brokers = []
Topics = []
ConsumerGroupID = "valt-bridge-prices"
InitialOffset = -1

[PriceFeed]
Enabled = true
URL = "https://api.coingecko.com/api/v3"
APIKey = ""
Interval = "1m"
Timeout = "10s"

[MessagePush]
Enabled = false
UseFakeProducer = true
Brokers = []
Topic = "valt_bridge_status"
PushKey = ""
BizCode = "valt_bridge_status"

[Metrics]
Enabled = false
Port = "9091"
Endpoint = "/metrics"
Env = "mainnet"

[[Networks]]
Preset = "hedera"

[[Networks]]
Preset = "binance"

[[Networks]]
Preset = "ethereum"

[[Networks]]
Preset = "optimism"

[[Networks]]
Preset = "base"

[[Networks]]
Preset = "arbitrum"
`
