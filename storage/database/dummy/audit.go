package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/audit"
)

type auditRepository struct {
	db *logTable
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db.log}
}

func (repo *auditRepository) CreateEntry(_ context.Context, e audit.Entry) (audit.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pk++
	e.ID = repo.db.pk
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, f audit.Filter, page core.Page) ([]audit.Entry, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []audit.Entry
	for _, e := range repo.db.table {
		if f.Matches(*e) {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})

	start, end := page.Window(len(entries))
	return append([]audit.Entry{}, entries[start:end]...), len(entries), nil
}

type sequenceRepository struct {
	db *sequenceTable
}

func NewSequenceRepository(db *DB) *sequenceRepository {
	return &sequenceRepository{db: db.sequence}
}

func (repo *sequenceRepository) NextUploadSequence(_ context.Context, studentID int, category string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := sequenceKey{studentID: studentID, category: category}
	repo.db.table[key]++
	return repo.db.table[key], nil
}
