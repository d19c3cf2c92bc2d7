package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
)

const (
	accountColumns = "id, first_name, middle_name, last_name, suffix, email, role, status, password_hash, " +
		"year_level, course, created_at, updated_at"
	accountEmailKey = "account_email_key"
)

var accountOrderings = map[string]string{
	"id":         "id",
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"created_at": "created_at",
}

type accountRow struct {
	ID           int         `db:"id"`
	FirstName    string      `db:"first_name"`
	MiddleName   null.String `db:"middle_name"`
	LastName     string      `db:"last_name"`
	Suffix       null.String `db:"suffix"`
	Email        string      `db:"email"`
	Role         string      `db:"role"`
	Status       string      `db:"status"`
	PasswordHash []byte      `db:"password_hash"`
	YearLevel    null.String `db:"year_level"`
	Course       null.String `db:"course"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toAccountRow(acc account.Account) accountRow {
	return accountRow{
		ID:           acc.ID,
		FirstName:    acc.FirstName,
		MiddleName:   null.NewString(acc.MiddleName, acc.MiddleName != ""),
		LastName:     acc.LastName,
		Suffix:       null.NewString(acc.Suffix, acc.Suffix != ""),
		Email:        acc.Email,
		Role:         string(acc.Role),
		Status:       string(acc.Status),
		PasswordHash: acc.PasswordHash,
		YearLevel:    null.NewString(acc.YearLevel, acc.YearLevel != ""),
		Course:       null.NewString(acc.Course, acc.Course != ""),
		CreatedAt:    acc.CreatedAt.UTC(),
		UpdatedAt:    acc.UpdatedAt.UTC(),
	}
}

func (row accountRow) account() account.Account {
	return account.Account{
		ID:           row.ID,
		FirstName:    row.FirstName,
		MiddleName:   row.MiddleName.String,
		LastName:     row.LastName,
		Suffix:       row.Suffix.String,
		Email:        row.Email,
		Role:         account.Role(row.Role),
		Status:       account.Status(row.Status),
		PasswordHash: row.PasswordHash,
		YearLevel:    row.YearLevel.String,
		Course:       row.Course.String,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

const insertAccount = `INSERT INTO account (first_name, middle_name, last_name, suffix, email, role, status, password_hash,
		year_level, course, created_at, updated_at)
	VALUES (:first_name, :middle_name, :last_name, :suffix, :email, :role, :status, :password_hash,
		:year_level, :course, :created_at, :updated_at)`

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	stmt, err := repo.db.PrepareNamedContext(ctx, insertAccount+" RETURNING "+accountColumns)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "preparing account insert")
	}
	defer stmt.Close()

	var row accountRow
	if err = stmt.GetContext(ctx, &row, toAccountRow(acc)); err != nil {
		if isUniqueViolation(err, accountEmailKey) {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return row.account(), nil
}

func (repo accountRepository) ImportAccounts(ctx context.Context, accs []account.Account) ([]account.Account, error) {
	created := make([]account.Account, 0, len(accs))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx,
			insertAccount+" ON CONFLICT ON CONSTRAINT "+accountEmailKey+" DO NOTHING RETURNING "+accountColumns)
		if err != nil {
			return errors.Wrap(err, "preparing account insert")
		}
		defer stmt.Close()

		for _, acc := range accs {
			var row accountRow
			if err = stmt.GetContext(ctx, &row, toAccountRow(acc)); err != nil {
				if err == sql.ErrNoRows { // email taken
					continue
				}
				return errors.Wrapf(err, "inserting account %s", acc.Email)
			}
			created = append(created, row.account())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo accountRepository) GetAccount(ctx context.Context, id int) (account.Account, error) {
	var row accountRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+accountColumns+" FROM account WHERE id = $1", id)
	if err != nil {
		return account.Account{}, trapNoRowsErr(err, account.ErrNotFound, "finding account by ID")
	}
	return row.account(), nil
}

func (repo accountRepository) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	var row accountRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+accountColumns+" FROM account WHERE email = $1", email)
	if err != nil {
		return account.Account{}, trapNoRowsErr(err, account.ErrNotFound, "finding account by email")
	}
	return row.account(), nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	stmt, err := repo.db.PrepareNamedContext(ctx, `UPDATE account SET
		first_name = :first_name, middle_name = :middle_name, last_name = :last_name, suffix = :suffix,
		email = :email, role = :role, status = :status, password_hash = :password_hash,
		year_level = :year_level, course = :course, updated_at = :updated_at
	WHERE id = :id RETURNING `+accountColumns)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "preparing account update")
	}
	defer stmt.Close()

	var row accountRow
	if err = stmt.GetContext(ctx, &row, toAccountRow(acc)); err != nil {
		if isUniqueViolation(err, accountEmailKey) {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, trapNoRowsErr(err, account.ErrNotFound, "updating account")
	}
	return row.account(), nil
}

func accountWhere(filter account.QueryFilter) where {
	var w where
	if filter.Search != "" {
		val := ilike(filter.Search)
		w.add("(first_name ILIKE ? OR last_name ILIKE ? OR first_name || ' ' || last_name ILIKE ? OR email ILIKE ?)",
			val, val, val, val)
	}
	if filter.Role != "" {
		w.add("role = ?", string(filter.Role))
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.Course != "" {
		w.add("course = ?", filter.Course)
	}
	if filter.YearLevel != "" {
		w.add("year_level = ?", filter.YearLevel)
	}
	return w
}

func (repo accountRepository) QueryAccounts(
	ctx context.Context,
	filter account.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]account.Account, int, error) {
	w := accountWhere(filter)

	var total int
	if err := repo.db.GetContext(ctx, &total, repo.db.Rebind("SELECT COUNT(*) FROM account"+w.String()), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting accounts")
	}

	q := "SELECT " + accountColumns + " FROM account" + w.String() +
		" ORDER BY " + core.OrderByClause(ordering, accountOrderings, core.DBOrdering{Field: "id"})
	args := w.args
	if !page.IsAll() {
		q += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit(), page.Offset())
	}

	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying accounts")
	}
	accs := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accs = append(accs, row.account())
	}
	return accs, total, nil
}

func (repo accountRepository) CountAccounts(ctx context.Context, filter account.QueryFilter) (int, error) {
	w := accountWhere(filter)
	var n int
	err := repo.db.GetContext(ctx, &n, repo.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM account%s", w)), w.args...)
	return n, errors.Wrap(err, "counting accounts")
}
