package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
)

// ImportHeader is the expected header of a bulk account upload (and of the downloadable template).
var ImportHeader = []string{
	"first_name", "middle_name", "last_name", "suffix", "email", "role", "status", "year_level", "course",
}

var ErrImportMissingEmail = errors.New("missing required column: email")

type (
	// Credential is a generated login, surfaced once after an import.
	Credential struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	ImportResult struct {
		Created []Credential `json:"created"`
		Skipped int          `json:"skipped"`
	}
)

func (r ImportResult) Names() []string {
	names := make([]string, 0, len(r.Created))
	for _, c := range r.Created {
		names = append(names, c.Name)
	}
	return names
}

// Import creates an account per table row in a single transaction.
// Rows with a missing, repeated or already registered email are skipped, as are rows carrying an
// unknown role, status or course. Missing role/status default to Student/Inactive.
func (svc *Service) Import(ctx context.Context, table *core.Table) (ImportResult, error) {
	var result ImportResult

	header := make(map[string]bool, len(table.Header))
	for i, col := range table.Header {
		col = core.CleanString(col, true /* lower */)
		table.Header[i] = col
		header[col] = true
	}
	if !header["email"] {
		return result, ErrImportMissingEmail
	}

	now := NowFunc().UTC()
	seen := make(map[string]bool)
	accs := make([]Account, 0, len(table.Rows))
	pwds := make(map[string]string, len(table.Rows))

	for _, rec := range table.Records() {
		acc, ok, err := svc.accountFromRecord(ctx, rec)
		if err != nil {
			return ImportResult{}, err
		}
		if !ok || seen[acc.Email] {
			result.Skipped++
			continue
		}
		seen[acc.Email] = true

		pwd, err := svc.newPassword(acc.LastName)
		if err != nil {
			return ImportResult{}, errors.Wrap(err, "generating password")
		}
		if err = acc.SetPassword(pwd); err != nil {
			return ImportResult{}, errors.Wrap(err, "hashing password")
		}
		acc.CreatedAt = now
		acc.UpdatedAt = now
		accs = append(accs, acc)
		pwds[acc.Email] = pwd
	}

	if len(accs) == 0 {
		return result, nil
	}
	created, err := svc.repo.ImportAccounts(ctx, accs)
	if err != nil {
		return ImportResult{}, errors.Wrap(err, "importing accounts")
	}

	result.Skipped += len(accs) - len(created)
	for _, acc := range created {
		result.Created = append(result.Created, Credential{
			Name:     acc.FullName(),
			Email:    acc.Email,
			Password: pwds[acc.Email],
		})
	}
	return result, nil
}

func (svc *Service) accountFromRecord(ctx context.Context, rec map[string]string) (Account, bool, error) {
	acc := Account{
		FirstName:  core.CleanString(rec["first_name"]),
		MiddleName: core.CleanString(rec["middle_name"]),
		LastName:   core.CleanString(rec["last_name"]),
		Suffix:     core.CleanString(rec["suffix"]),
		Email:      core.CleanString(rec["email"], true /* lower */),
		Role:       RoleStudent,
		Status:     StatusInactive,
		YearLevel:  core.CleanString(rec["year_level"]),
		Course:     core.CleanString(rec["course"]),
	}
	if acc.Email == "" || !strings.Contains(acc.Email, "@") || acc.FirstName == "" || acc.LastName == "" {
		return Account{}, false, nil
	}

	var err error
	if role := rec["role"]; strings.TrimSpace(role) != "" {
		if acc.Role, err = ParseRole(role); err != nil {
			return Account{}, false, nil
		}
	}
	if status := rec["status"]; strings.TrimSpace(status) != "" {
		if acc.Status, err = ParseStatus(status); err != nil {
			return Account{}, false, nil
		}
	}
	acc.clearStudentFields()
	if err = svc.checkCourse(ctx, acc); err != nil {
		if _, invalid := errors.Cause(err).(*core.ValidationError); invalid {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	return acc, true, nil
}

// ImportSummary is the audit description of an import.
func ImportSummary(r ImportResult) string {
	return fmt.Sprintf("Uploaded accounts: %s", strings.Join(r.Names(), ", "))
}
