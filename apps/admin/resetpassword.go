package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	acc, err := cli.accounts.SetPassword(ctx, email, pwd)
	if err != nil {
		return err
	}
	fmt.Printf("Password of %s updated.\n", acc.Email)
	return nil
}
