package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/promissory/apps/api/echo"
	"github.com/trezcool/promissory/apps/shared"
	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/audit"
	"github.com/trezcool/promissory/core/promissory"
	"github.com/trezcool/promissory/core/report"
	"github.com/trezcool/promissory/core/settings"
	emailsvc "github.com/trezcool/promissory/services/email"
	logsvc "github.com/trezcool/promissory/services/logger"
	"github.com/trezcool/promissory/storage/database"
	sqlxrepos "github.com/trezcool/promissory/storage/database/sqlx"
	"github.com/trezcool/promissory/storage/files"
)

type dbLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	AccountSvc    *account.Service
	SettingsSvc   *settings.Service
	PromissorySvc *promissory.Service
	ReportSvc     *report.Service
	AuditSvc      *audit.Service
	Validator     *shared.Validator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, p dbLoggerParam) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		p.Logger.Error(fmt.Sprintf("migrating database: %v", err), err)
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newAttachmentStore(conf *core.Config, db *sqlx.DB) (*files.DiskStore, error) {
	return files.NewDiskStore(conf.UploadDir, sqlxrepos.NewUploadSequenceRepository(db))
}

// newSettingsService loads the active settings once, creating them when missing.
func newSettingsService(db *sqlx.DB) (*settings.Service, error) {
	svc := settings.NewService(sqlxrepos.NewSettingsRepository(db))
	if err := svc.Load(context.Background()); err != nil {
		return nil, errors.Wrap(err, "loading active settings")
	}
	return svc, nil
}

func newAccountService(db *sqlx.DB, settingsSvc *settings.Service, conf *core.Config) *account.Service {
	return account.NewService(sqlxrepos.NewAccountRepository(db), settingsSvc, conf)
}

func newPromissoryService(
	db *sqlx.DB,
	store *files.DiskStore,
	settingsSvc *settings.Service,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *promissory.Service {
	return promissory.NewService(sqlxrepos.NewRequestRepository(db), store, settingsSvc, mailSvc, logger, conf)
}

func newReportService(accountSvc *account.Service, promissorySvc *promissory.Service) *report.Service {
	return report.NewService(accountSvc, promissorySvc)
}

func newAuditService(db *sqlx.DB) *audit.Service {
	return audit.NewService(sqlxrepos.NewAuditRepository(db))
}

func newValidator() *shared.Validator {
	validate, translator := shared.NewValidator()
	return &shared.Validator{Validate: validate, Translator: translator}
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		AccountSvc:    p.AccountSvc,
		SettingsSvc:   p.SettingsSvc,
		PromissorySvc: p.PromissorySvc,
		ReportSvc:     p.ReportSvc,
		AuditSvc:      p.AuditSvc,
		Validate:      p.Validator.Validate,
		Translator:    p.Validator.Translator,
	})
}

// newContainer returns the dig.Container building every dependency of the API server.
func newContainer() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newAttachmentStore))
	must(c.Provide(newSettingsService))
	must(c.Provide(newAccountService))
	must(c.Provide(newPromissoryService))
	must(c.Provide(newReportService))
	must(c.Provide(newAuditService))
	must(c.Provide(newValidator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
