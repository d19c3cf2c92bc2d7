package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/settings"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	accounts *account.Service
	settings *settings.Service
	validate *validator.Validate
	migrate  func(command string, args ...string) error
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL [-first NAME -last NAME] [-role ROLE] - create or update an account, the password is prompted next")
	fmt.Println("  resetpassword -email EMAIL - reset an account's password")
	fmt.Println("  migrate COMMAND [ARGS...] - run a database migration command (up, down, status, ...)")
	fmt.Println("  seed - load the default courses, active period and admin accounts")
}

// promptPassword reads a password from the terminal. An empty password is an error.
func promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The account's email. The password will be prompted next.")
	addUserFirst := addUserCmd.String("first", "", "First name (required for new accounts).")
	addUserLast := addUserCmd.String("last", "", "Last name (required for new accounts).")
	addUserRole := addUserCmd.String("role", "", "Admin, Finance or Student (new accounts default to Admin).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		acc, err := cli.addUser(ctx, account.NewAccount{
			FirstName: *addUserFirst,
			LastName:  *addUserLast,
			Email:     *addUserEmail,
			Role:      *addUserRole,
		}, pwd)
		if err != nil {
			return err
		}
		fmt.Printf("Account %s (%s) saved.\n", acc.Email, acc.Role)
		return nil

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2], args[3:]...)

	case "seed":
		return cli.seed(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}
