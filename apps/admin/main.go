package main

import (
	"context"
	"log"
	"os"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
	emailsvc "github.com/coffeehubnepal/api/services/email"
	logsvc "github.com/coffeehubnepal/api/services/logger"
	"github.com/coffeehubnepal/api/storage/database/mongodb"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("admin: building zap logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer func() { _ = logger.Sync() }()

	if err = conf.Validate(); err != nil {
		logger.Fatal("invalid configuration", err)
	}

	// set up DB
	ctx := context.Background()
	db, err := mongodb.Open(ctx, conf)
	if err != nil {
		logger.Fatal("setting up database", err)
	}

	// start CLI
	cli := commandLine{
		usrSvc: user.NewService(mongodb.NewUserRepository(db), nil, nil, emailsvc.New(conf, logger), conf, logger),
		db:     db,
	}
	err = cli.run(os.Args)
	if cerr := db.Close(ctx); cerr != nil {
		logger.Error("Failed to close database", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
