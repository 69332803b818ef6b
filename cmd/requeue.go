package main

import (
	"context"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/urfave/cli/v2"
	"github.com/valtbridge/bridge-service/config"
	"github.com/valtbridge/bridge-service/db"
	"github.com/valtbridge/bridge-service/ledger"
)

func requeueCmd(ctx *cli.Context) error {
	c, err := config.Load(ctx.String(flagCfg))
	if err != nil {
		return err
	}
	setupLog(c.Log)

	storage, err := db.NewStorage(c.Database)
	if err != nil {
		log.Error(err)
		return err
	}
	nonce := ctx.String(flagNonce)
	if err := ledger.NewLedger(storage, c.ReleaseTxManager.RetryNumber).Requeue(context.Background(), nonce); err != nil {
		log.Error(err)
		return err
	}
	log.Infof("deposit %s is pending again", nonce)
	return nil
}
