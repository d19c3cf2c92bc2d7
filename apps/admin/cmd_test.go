package main

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/promissory/apps/shared"
	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/settings"
	dummydb "github.com/trezcool/promissory/storage/database/dummy"
	"github.com/trezcool/promissory/testutil"
)

var accRepo account.Repository

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	repos := db.Repositories()
	accRepo = repos.Accounts

	settingsSvc := settings.NewService(repos.Settings)
	require.NoError(t, settingsSvc.Load(context.Background()))
	validate, _ := shared.NewValidator()

	// start CLI
	return &commandLine{
		accounts: account.NewService(accRepo, settingsSvc, core.NewTestConfig(t.TempDir())),
		settings: settingsSvc,
		validate: validate,
		migrate:  fakeMigrate,
	}
}

// fakeMigrate checks the arguments the way goose does without touching a database.
func fakeMigrate(command string, args ...string) error {
	switch command {
	case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
	case "up-to":
		if len(args) == 0 {
			return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("version must be a number (got '%s')", args[0])
		}
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
		}
	case "down-to":
		if len(args) == 0 {
			return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("version must be a number (got '%s')", args[0])
		}
	default:
		return fmt.Errorf("%q: no such command", command)
	}
	return nil
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string   // typed at the password prompt
	wantErr    error
	wantErrStr string
	wantAnyErr bool
}

func (cli *commandLine) check(t *testing.T, tt cliTest) error {
	t.Helper()
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(tt.pwd), nil
	}
	args := append([]string{"admin"}, tt.args...)

	err := cli.run(args)
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	case tt.wantAnyErr:
		assert.Error(t, err)
	default:
		assert.NoError(t, err)
	}
	return err
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli.check(t, tt)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	fin := testutil.CreateAccount(t, accRepo, "Fin", "Ance", "fin@example.com", "old-pass", account.RoleFinance, account.StatusInactive)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"adduser", "-email", "new@example.com"}, wantErr: errHelp},
		{name: "new account without names", args: []string{"adduser", "-email", "new@example.com"}, pwd: "Secret-123", wantAnyErr: true},
		{name: "bad role", args: []string{"adduser", "-email", "fin@example.com", "-role", "janitor"}, pwd: "Secret-123", wantErr: account.ErrInvalidRole},
		{
			name: "new admin",
			args: []string{"adduser", "-email", "New@Example.com", "-first", "New", "-last", "Admin"},
			pwd:  "Secret-123",
		},
		{name: "existing account", args: []string{"adduser", "-email", "fin@example.com", "-role", "admin"}, pwd: "New-pass-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli.check(t, tt)
		})
	}

	created, err := accRepo.GetAccountByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, created.Role)
	assert.Equal(t, account.StatusActive, created.Status)
	assert.NoError(t, created.CheckPassword("Secret-123"))

	updated, err := accRepo.GetAccount(ctx, fin.ID)
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, updated.Role)
	assert.Equal(t, account.StatusActive, updated.Status)
	assert.Equal(t, "Fin", updated.FirstName)
	assert.NoError(t, updated.CheckPassword("New-pass-123"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	acc := testutil.CreateAccount(t, accRepo, "Jane", "Doe", "jane@example.com", "old-pass", account.RoleStudent, account.StatusActive)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@example.com"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "lol@example.com"}, pwd: "lol", wantErr: account.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", " JANE@example.com"}, pwd: "lmao-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli.check(t, tt)
		})
	}

	refreshed, err := accRepo.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, acc.PasswordHash, refreshed.PasswordHash)
	assert.NoError(t, refreshed.CheckPassword("lmao-123"))
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	// runs twice without failing or duplicating rows
	for i := 0; i < 2; i++ {
		cli.check(t, cliTest{name: "seed", args: []string{"seed"}})
	}

	courses, err := cli.settings.CourseNames(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, len(seedCourses))

	current := cli.settings.Current()
	assert.Equal(t, "First Semester", current.Semester)
	assert.Equal(t, "2025-2026", current.SchoolYear)

	admin, err := accRepo.GetAccountByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, admin.Role)
	assert.NoError(t, admin.CheckPassword("Admin@123"))

	n, err := accRepo.CountAccounts(ctx, account.QueryFilter{Role: account.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
