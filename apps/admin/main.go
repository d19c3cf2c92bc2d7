package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/promissory/apps/shared"
	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/settings"
	logsvc "github.com/trezcool/promissory/services/logger"
	"github.com/trezcool/promissory/storage/database"
	sqlxrepos "github.com/trezcool/promissory/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	settingsSvc := settings.NewService(sqlxrepos.NewSettingsRepository(db))
	validate, _ := shared.NewValidator()

	// start CLI
	cli := commandLine{
		accounts: account.NewService(sqlxrepos.NewAccountRepository(db), settingsSvc, conf),
		settings: settingsSvc,
		validate: validate,
		migrate: func(command string, args ...string) error {
			return database.Migrate(db, command, args...)
		},
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
