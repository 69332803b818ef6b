package main

import (
	"context"
	"crypto/ecdsa"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/urfave/cli/v2"
	"github.com/valtbridge/bridge-service/coinmiddleware"
	"github.com/valtbridge/bridge-service/config"
	"github.com/valtbridge/bridge-service/db"
	"github.com/valtbridge/bridge-service/db/pgstorage"
	"github.com/valtbridge/bridge-service/etherman"
	"github.com/valtbridge/bridge-service/feedistributor"
	"github.com/valtbridge/bridge-service/hedera"
	"github.com/valtbridge/bridge-service/ledger"
	"github.com/valtbridge/bridge-service/liquidity"
	"github.com/valtbridge/bridge-service/messagepush"
	"github.com/valtbridge/bridge-service/metrics"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/precheck"
	"github.com/valtbridge/bridge-service/quote"
	"github.com/valtbridge/bridge-service/redisstorage"
	"github.com/valtbridge/bridge-service/registry"
	"github.com/valtbridge/bridge-service/releasetxman"
	"github.com/valtbridge/bridge-service/server"
	"github.com/valtbridge/bridge-service/synchronizer"
	"github.com/valtbridge/bridge-service/utils"
)

// chainClients holds the clients of one network
type chainClients struct {
	reader  precheck.LiquidityReader
	payout  releasetxman.PayoutClient
	evm     *etherman.Client
	mirror  *hedera.MirrorClient
	network network.Config
}

func start(ctx *cli.Context) error {
	c, err := config.Load(ctx.String(flagCfg))
	if err != nil {
		return err
	}
	setupLog(c.Log)

	err = db.RunMigrations(c.Database)
	if err != nil {
		log.Error(err)
		return err
	}
	storage, err := db.NewStorage(c.Database)
	if err != nil {
		log.Error(err)
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Metrics.Enabled {
		metrics.Init(c.Metrics)
		go metrics.StartMetricsHttpServer(runCtx, c.Metrics)
	}

	networks := c.NetworkSet()
	key, err := utils.LoadOperatorKey(c.Etherman.PrivateKey, c.Etherman.PrivateKeyHex)
	if err != nil {
		log.Error(err)
		return err
	}
	clients, err := newChainClients(c, networks, key)
	if err != nil {
		log.Error(err)
		return err
	}

	reg := registry.NewRegistry(storage)
	depositLedger := ledger.NewLedger(storage, c.ReleaseTxManager.RetryNumber)
	liquidityLedger := liquidity.NewLedger(storage, reg, networks, nil)
	if err := liquidityLedger.Init(runCtx); err != nil {
		log.Error(err)
		return err
	}
	fees, err := feedistributor.NewFeeDistributor(c.FeeDistributor, storage, reg)
	if err != nil {
		log.Error(err)
		return err
	}

	redisStorage, err := redisstorage.NewRedisStorage(c.Redis)
	if err != nil {
		log.Error(err)
		return err
	}
	producer, err := messagepush.NewKafkaProducer(c.MessagePush)
	if err != nil {
		log.Error(err)
		return err
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warnf("error closing kafka producer: %v", err)
		}
	}()

	readers := make(map[string]precheck.LiquidityReader, len(clients))
	payouts := make(map[string]releasetxman.PayoutClient, len(clients))
	for name, cc := range clients {
		readers[name] = cc.reader
		payouts[name] = cc.payout
	}
	engine := precheck.NewEngine(c.Precheck, networks, readers)

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			log.Debugf("%s stopped", name)
		}()
	}

	run("fee distributor", func() { fees.Start(runCtx) })

	if c.ReleaseTxManager.Enabled {
		locker := releasetxman.NewMemoryLocker()
		if c.ReleaseTxManager.LockBackend == releasetxman.LockBackendRedis {
			locker = releasetxman.NewRedisLocker(redisStorage, c.ReleaseTxManager.LockTTL.Duration)
		}
		releaseTxManager, err := releasetxman.NewReleaseTxManager(c.ReleaseTxManager, depositLedger, fees, liquidityLedger, payouts, locker, producer)
		if err != nil {
			log.Error(err)
			return err
		}
		run("release tx manager", func() { releaseTxManager.Start(runCtx) })
	} else {
		log.Warn("ReleaseTxManager is disabled, deposits will not be paid out")
	}

	watchers, ingesters, err := newWatchers(c.Synchronizer, storage, clients, depositLedger, liquidityLedger)
	if err != nil {
		log.Error(err)
		return err
	}
	for _, w := range watchers {
		w := w
		run("watcher", func() {
			if err := w.Sync(); err != nil {
				log.Error(err)
			}
		})
	}

	if len(c.CoinKafkaConsumer.Brokers) > 0 {
		consumer, err := coinmiddleware.NewKafkaConsumer(c.CoinKafkaConsumer, redisStorage)
		if err != nil {
			log.Error(err)
			return err
		}
		run("coin kafka consumer", func() { consumer.Start(runCtx) })
		defer func() {
			if err := consumer.Close(); err != nil {
				log.Warnf("error closing kafka consumer: %v", err)
			}
		}()
	}
	if c.PriceFeed.Enabled {
		fetcher := coinmiddleware.NewPriceFetcher(c.PriceFeed, networks, redisStorage)
		run("price fetcher", func() { fetcher.Start(runCtx) })
	}

	quotes := quote.NewService(networks, redisStorage, reg, engine, depositLedger)
	bridgeService := server.NewBridgeService(c.BridgeServer, networks, quotes, depositLedger, liquidityLedger, reg, redisStorage, ingesters)
	handler := server.NewHandler(bridgeService, server.NewAuthenticator(c.BridgeServer.JWTSecret, c.BridgeServer.WebhookSecret))
	err = server.RunServer(runCtx, c.BridgeServer, handler)
	if err != nil {
		log.Error(err)
		stop()
	}

	<-runCtx.Done()
	log.Info("shutting down")
	for _, w := range watchers {
		w.Stop()
	}
	wg.Wait()
	return err
}

func setupLog(c log.Config) {
	log.Init(c)
}

func newChainClients(c *config.Config, networks *network.Set, key *ecdsa.PrivateKey) (map[string]chainClients, error) {
	clients := make(map[string]chainClients)
	for _, name := range networks.Names() {
		net, _ := networks.Get(name)
		cc := chainClients{network: net}
		switch net.Family {
		case network.FamilyEVM:
			client, err := etherman.NewClient(c.Etherman, net, key)
			if err != nil {
				return nil, err
			}
			cc.evm, cc.reader, cc.payout = client, client, client
		case network.FamilyHedera:
			cc.mirror = hedera.NewMirrorClient(c.Hedera, net.MirrorURLs)
			var relay *etherman.Client
			if len(net.RPCURLs) > 0 {
				var err error
				if relay, err = etherman.NewClient(c.Etherman, net, key); err != nil {
					log.Warnf("network %s: json-rpc relay unavailable, swaps are disabled: %v", net.Name, err)
					relay = nil
				}
			}
			payout, err := hedera.NewPayoutClient(c.Hedera, net, cc.mirror, relay)
			if err != nil {
				return nil, err
			}
			cc.reader, cc.payout = payout, payout
		}
		clients[name] = cc
	}
	return clients, nil
}

func newWatchers(cfg synchronizer.Config, storage *pgstorage.PostgresStorage, clients map[string]chainClients,
	deposits *ledger.Ledger, liquidityLedger *liquidity.Ledger) ([]*synchronizer.Watcher, map[string]server.ActivityIngester, error) {
	depositHandler := synchronizer.NewDepositConfirmHandler(deposits)
	liquidityHandler := synchronizer.NewLiquidityHandler(liquidityLedger)

	var (
		watchers  []*synchronizer.Watcher
		ingesters = make(map[string]server.ActivityIngester)
	)
	add := func(source synchronizer.ActivitySource, handler synchronizer.Handler, from models.Position) (*synchronizer.Watcher, error) {
		w, err := synchronizer.NewWatcher(storage, source, handler, from, cfg)
		if err != nil {
			return nil, err
		}
		watchers = append(watchers, w)
		return w, nil
	}
	// Sources start from an empty cursor: EVM sources then scan from StartBlock included
	var from models.Position
	for name, cc := range clients {
		net := cc.network
		switch net.Family {
		case network.FamilyEVM:
			if net.BridgeContract != "" {
				if _, err := add(synchronizer.NewEVMDepositSource(cc.evm, cfg), depositHandler, from); err != nil {
					return nil, nil, err
				}
			}
			if net.PoolAddress != "" {
				w, err := add(synchronizer.NewEVMLiquiditySource(cc.evm, cfg), liquidityHandler, from)
				if err != nil {
					return nil, nil, err
				}
				ingesters[name] = w.Pipeline()
			}
		case network.FamilyHedera:
			if net.BridgeContract != "" {
				if _, err := add(synchronizer.NewHederaDepositSource(cc.mirror, net), depositHandler, from); err != nil {
					return nil, nil, err
				}
			}
			if net.PoolAddress != "" {
				if _, err := add(synchronizer.NewHederaLiquiditySource(cc.mirror, net), liquidityHandler, from); err != nil {
					return nil, nil, err
				}
			}
		}
	}
	return watchers, ingesters, nil
}
