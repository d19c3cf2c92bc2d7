// Package dummydb keeps every repository in memory. It backs the tests and the CLI tests.
package dummydb

import (
	"sync"

	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/audit"
	"github.com/trezcool/promissory/core/promissory"
	"github.com/trezcool/promissory/core/settings"
)

type (
	DB struct {
		account  *accountTable
		settings *settingsTable
		course   *courseTable
		request  *requestTable
		log      *logTable
		sequence *sequenceTable
	}

	accountTable struct {
		sync.RWMutex
		pk    int
		table map[int]*account.Account
	}

	settingsTable struct {
		sync.RWMutex
		row *settings.ActiveSettings
	}

	courseTable struct {
		sync.RWMutex
		pk    int
		table map[int]*settings.Course
	}

	requestTable struct {
		sync.RWMutex
		pk    int
		table map[int]*promissory.Request
	}

	logTable struct {
		sync.RWMutex
		pk    int
		table map[int]*audit.Entry
	}

	sequenceTable struct {
		sync.Mutex
		table map[sequenceKey]int
	}

	sequenceKey struct {
		studentID int
		category  string
	}
)

func Open() (*DB, error) {
	db := &DB{
		account:  &accountTable{table: make(map[int]*account.Account)},
		settings: &settingsTable{},
		course:   &courseTable{table: make(map[int]*settings.Course)},
		request:  &requestTable{table: make(map[int]*promissory.Request)},
		log:      &logTable{table: make(map[int]*audit.Entry)},
		sequence: &sequenceTable{table: make(map[sequenceKey]int)},
	}
	return db, nil
}

// Repositories bundles one repository per table of db.
type Repositories struct {
	Accounts  *accountRepository
	Settings  *settingsRepository
	Requests  *requestRepository
	Audit     *auditRepository
	Sequences *sequenceRepository
}

func (db *DB) Repositories() Repositories {
	return Repositories{
		Accounts:  NewAccountRepository(db),
		Settings:  NewSettingsRepository(db),
		Requests:  NewRequestRepository(db),
		Audit:     NewAuditRepository(db),
		Sequences: NewSequenceRepository(db),
	}
}
