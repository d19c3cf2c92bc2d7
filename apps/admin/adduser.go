package main

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/promissory/core/account"
)

// addUser updates or creates an active account.Account with the given password.
func (cli *commandLine) addUser(ctx context.Context, na account.NewAccount, pwd string) (account.Account, error) {
	acc, err := cli.accounts.GetByEmail(ctx, na.Email)
	switch {
	case err == nil:
		role := acc.Role
		if na.Role != "" {
			if role, err = account.ParseRole(na.Role); err != nil {
				return account.Account{}, err
			}
		}
		ua := account.UpdateAccount{
			FirstName:  acc.FirstName,
			MiddleName: acc.MiddleName,
			LastName:   acc.LastName,
			Suffix:     acc.Suffix,
			Email:      acc.Email,
			Role:       string(role),
			Status:     string(account.StatusActive),
			YearLevel:  acc.YearLevel,
			Course:     acc.Course,
		}
		if _, err = cli.accounts.Update(ctx, acc.ID, ua); err != nil {
			return account.Account{}, err
		}

	case pkgerrors.Cause(err) == account.ErrNotFound:
		if na.Role == "" {
			na.Role = string(account.RoleAdmin)
		}
		if err = na.Validate(cli.validate); err != nil {
			return account.Account{}, err
		}
		if _, _, err = cli.accounts.Create(ctx, na); err != nil {
			return account.Account{}, err
		}

	default:
		return account.Account{}, err
	}
	return cli.accounts.SetPassword(ctx, na.Email, pwd)
}
