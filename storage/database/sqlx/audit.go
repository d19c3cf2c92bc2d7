package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/audit"
)

type entryRow struct {
	ID        int       `db:"id"`
	UserName  string    `db:"user_name"`
	Action    string    `db:"action"`
	Outcome   string    `db:"outcome"`
	Timestamp time.Time `db:"timestamp"`
}

func (row entryRow) entry() audit.Entry {
	return audit.Entry{
		ID:        row.ID,
		UserName:  row.UserName,
		Action:    row.Action,
		Outcome:   audit.Outcome(row.Outcome),
		Timestamp: row.Timestamp.UTC(),
	}
}

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) CreateEntry(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	row := entryRow{UserName: e.UserName, Action: e.Action, Outcome: string(e.Outcome), Timestamp: e.Timestamp.UTC()}
	stmt, err := repo.db.PrepareNamedContext(ctx, `INSERT INTO system_log (user_name, action, outcome, timestamp)
		VALUES (:user_name, :action, :outcome, :timestamp) RETURNING id, user_name, action, outcome, timestamp`)
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "preparing log insert")
	}
	defer stmt.Close()

	if err = stmt.GetContext(ctx, &row, row); err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting log")
	}
	return row.entry(), nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, f audit.Filter, page core.Page) ([]audit.Entry, int, error) {
	var w where
	if f.User != "" {
		w.add("user_name ILIKE ?", ilike(f.User))
	}
	if f.Action != "" {
		w.add("action ILIKE ?", ilike(f.Action))
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, repo.db.Rebind("SELECT COUNT(*) FROM system_log"+w.String()), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting logs")
	}

	q := "SELECT id, user_name, action, outcome, timestamp FROM system_log" + w.String() + " ORDER BY timestamp DESC, id DESC"
	args := w.args
	if !page.IsAll() {
		q += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit(), page.Offset())
	}

	var rows []entryRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying logs")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, total, nil
}
