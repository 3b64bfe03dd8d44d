package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/user"
	"github.com/shule/backend/services/logger"
	"github.com/shule/backend/storage/database"
	"github.com/shule/backend/storage/database/sqlxrepos"
)

var logger *zap.SugaredLogger

func main() {
	conf := core.NewConfig()

	var err error
	logger, err = logsvc.NewZap(conf)
	if err != nil {
		panic(err)
	}
	logger = logger.Named("admin")
	defer func() { _ = logger.Sync() }()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	errAndDie(database.Ping(ctx, db))
	cancel()

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db)),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Errorw("command failed", "error", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
