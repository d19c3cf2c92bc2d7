package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) query() []account.Account {
	accs := make([]account.Account, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		accs = append(accs, *a)
	}
	return accs
}

// emailTaken must be called with the lock held.
func (repo *accountRepository) emailTaken(email string, excludedID int) bool {
	for _, a := range repo.db.table {
		if a.Email == email && a.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *accountRepository) insert(acc account.Account) account.Account {
	repo.db.pk++
	acc.ID = repo.db.pk
	repo.db.table[acc.ID] = &acc
	return acc
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.emailTaken(acc.Email, 0) {
		return account.Account{}, account.ErrEmailExists
	}
	return repo.insert(acc), nil
}

func (repo *accountRepository) ImportAccounts(_ context.Context, accs []account.Account) ([]account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]account.Account, 0, len(accs))
	for _, acc := range accs {
		if repo.emailTaken(acc.Email, 0) {
			continue
		}
		created = append(created, repo.insert(acc))
	}
	return created, nil
}

func (repo *accountRepository) GetAccount(_ context.Context, id int) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acc, ok := repo.db.table[id]; ok {
		return *acc, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acc := range repo.db.table {
		if acc.Email == email {
			return *acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[acc.ID]; !ok {
		return account.Account{}, account.ErrNotFound
	}
	if repo.emailTaken(acc.Email, acc.ID) {
		return account.Account{}, account.ErrEmailExists
	}
	repo.db.table[acc.ID] = &acc
	return acc, nil
}

func matchesAccount(filter account.QueryFilter, a account.Account) bool {
	if filter.Search != "" {
		term := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(a.FirstName), term) &&
			!strings.Contains(strings.ToLower(a.LastName), term) &&
			!strings.Contains(strings.ToLower(a.FirstName+" "+a.LastName), term) &&
			!strings.Contains(strings.ToLower(a.Email), term) {
			return false
		}
	}
	if filter.Role != "" && a.Role != filter.Role {
		return false
	}
	if filter.Status != "" && a.Status != filter.Status {
		return false
	}
	if filter.Course != "" && a.Course != filter.Course {
		return false
	}
	if filter.YearLevel != "" && a.YearLevel != filter.YearLevel {
		return false
	}
	return true
}

func (repo *accountRepository) filter(filter account.QueryFilter) []account.Account {
	var accs []account.Account
	for _, a := range repo.query() {
		if matchesAccount(filter, a) {
			accs = append(accs, a)
		}
	}
	return accs
}

// compareAccounts returns -1, 0 or 1 comparing a and b on field.
func compareAccounts(field string, a, b account.Account) int {
	var x, y string
	switch field {
	case "id":
		return compareInts(a.ID, b.ID)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
		return 0
	case "first_name":
		x, y = a.FirstName, b.FirstName
	case "last_name":
		x, y = a.LastName, b.LastName
	case "email":
		x, y = a.Email, b.Email
	default:
		return 0
	}
	return strings.Compare(strings.ToLower(x), strings.ToLower(y))
}

func compareInts(x, y int) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func (repo *accountRepository) QueryAccounts(
	_ context.Context,
	filter account.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]account.Account, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accs := repo.filter(filter)
	// newest first by default, tie-breaker otherwise
	ords := append(append([]core.DBOrdering{}, ordering...), core.DBOrdering{Field: "id"})
	sort.SliceStable(accs, func(i, j int) bool {
		for _, ord := range ords {
			c := compareAccounts(ord.Field, accs[i], accs[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})

	start, end := page.Window(len(accs))
	return append([]account.Account{}, accs[start:end]...), len(accs), nil
}

func (repo *accountRepository) CountAccounts(_ context.Context, filter account.QueryFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.filter(filter)), nil
}
