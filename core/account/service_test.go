package account_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/settings"
	dummydb "github.com/trezcool/promissory/storage/database/dummy"
	"github.com/trezcool/promissory/testutil"
)

func newService(t *testing.T) (*account.Service, account.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	repos := db.Repositories()

	settingsSvc := settings.NewService(repos.Settings)
	for _, c := range []string{"BSIT", "BSCS"} {
		_, err = settingsSvc.AddCourse(context.Background(), c)
		require.NoError(t, err)
	}
	return account.NewService(repos.Accounts, settingsSvc, core.NewTestConfig(t.TempDir())), repos.Accounts
}

func TestGeneratePassword(t *testing.T) {
	pwd, err := account.GeneratePassword("Dela Cruz", 6)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pwd, "DelaCruz"), pwd)
	assert.Len(t, pwd, len("DelaCruz")+6)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	acc, pwd, err := svc.Create(ctx, account.NewAccount{
		FirstName: "Jane", LastName: "Doe", Email: "Jane@Example.com", Role: "student",
		YearLevel: "2nd Year", Course: "BSIT",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", acc.Email)
	assert.Equal(t, account.RoleStudent, acc.Role)
	assert.Equal(t, account.StatusActive, acc.Status)
	assert.True(t, strings.HasPrefix(pwd, "Doe"))
	assert.NoError(t, acc.CheckPassword(pwd))

	// email uniqueness: no row added
	_, _, err = svc.Create(ctx, account.NewAccount{FirstName: "J", LastName: "D", Email: "jane@example.com", Role: "Admin"})
	assert.Equal(t, account.ErrEmailExists, err)
	n, err := repo.CountAccounts(ctx, account.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// unknown course
	_, _, err = svc.Create(ctx, account.NewAccount{FirstName: "J", LastName: "D", Email: "j@example.com", Role: "Student", Course: "BSN"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "course", verr.Fields[0].Field)

	// non-students drop student fields (and their course is not checked)
	fin, _, err := svc.Create(ctx, account.NewAccount{FirstName: "F", LastName: "N", Email: "f@example.com", Role: "Finance", Course: "BSN", YearLevel: "1st Year"})
	require.NoError(t, err)
	assert.Empty(t, fin.Course)
	assert.Empty(t, fin.YearLevel)

	_, _, err = svc.Create(ctx, account.NewAccount{FirstName: "X", LastName: "Y", Email: "x@example.com", Role: "Janitor"})
	assert.Equal(t, account.ErrInvalidRole, err)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	testutil.CreateAccount(t, repo, "Jane", "Doe", "jane@example.com", "Secret#123", account.RoleStudent, account.StatusActive)

	tests := []struct {
		name, email, pwd string
		wantErr          error
	}{
		{"valid", " JANE@example.com", "Secret#123", nil},
		{"wrong password", "jane@example.com", "secret", account.ErrAuthenticationFailed},
		{"unknown email", "john@example.com", "Secret#123", account.ErrAuthenticationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.email, tt.pwd)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestUpdateAndResetPassword(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	jane := testutil.CreateAccount(t, repo, "Jane", "Doe", "jane@example.com", "Secret#123", account.RoleStudent, account.StatusActive)
	testutil.CreateAccount(t, repo, "John", "Roe", "john@example.com", "", account.RoleStudent, account.StatusActive)

	upd := account.UpdateAccount{
		FirstName: "Janet", LastName: "Doe", Email: "jane@example.com", Role: "Admin", Status: "inactive",
		YearLevel: "1st Year", Course: "BSIT",
	}
	acc, err := svc.Update(ctx, jane.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "Janet", acc.FirstName)
	assert.Equal(t, account.RoleAdmin, acc.Role)
	assert.Equal(t, account.StatusInactive, acc.Status)
	assert.Empty(t, acc.Course)

	upd.Email = "john@example.com"
	_, err = svc.Update(ctx, jane.ID, upd)
	assert.Equal(t, account.ErrEmailExists, err)

	_, err = svc.Update(ctx, 999, upd)
	assert.Equal(t, account.ErrNotFound, err)

	acc, pwd, err := svc.ResetPassword(ctx, jane.ID)
	require.NoError(t, err)
	assert.NoError(t, acc.CheckPassword(pwd))
	assert.Error(t, acc.CheckPassword("Secret#123"))
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	testutil.CreateAccount(t, repo, "Old", "Timer", "old@example.com", "", account.RoleStudent, account.StatusActive)

	tbl := core.NewTable("Accounts", " First_Name", "last_name", "EMAIL", "role", "status", "course")
	tbl.Append("Jane", "Doe", "jane@example.com", "", "", "BSIT")          // defaults to Student / Inactive
	tbl.Append("John", "Roe", "JOHN@example.com", "finance", "active", "") // normalized email
	tbl.Append("Dup", "Licate", "jane@example.com", "", "", "")            // repeated in file
	tbl.Append("Old", "Timer", "old@example.com", "", "", "")              // already registered
	tbl.Append("No", "Email", "", "", "", "")                              // missing email
	tbl.Append("Bad", "Role", "bad@example.com", "janitor", "", "")        // unknown role
	tbl.Append("Bad", "Course", "course@example.com", "", "", "BSN")       // unknown course

	res, err := svc.Import(ctx, tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, res.Names())
	assert.Equal(t, 5, res.Skipped)
	assert.Equal(t, "Uploaded accounts: Jane Doe, John Roe", account.ImportSummary(res))

	jane, err := svc.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.RoleStudent, jane.Role)
	assert.Equal(t, account.StatusInactive, jane.Status)
	assert.NoError(t, jane.CheckPassword(res.Created[0].Password))

	n, err := repo.CountAccounts(ctx, account.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// re-importing the same file adds nothing
	res, err = svc.Import(ctx, tbl)
	require.NoError(t, err)
	assert.Empty(t, res.Created)

	_, err = svc.Import(ctx, core.NewTable("x", "first_name"))
	assert.Equal(t, account.ErrImportMissingEmail, err)
}

func TestQueryAndStats(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	testutil.CreateAccount(t, repo, "Ann", "Zed", "ann@example.com", "", account.RoleStudent, account.StatusActive)
	testutil.CreateAccount(t, repo, "Bob", "Young", "bob@example.com", "", account.RoleStudent, account.StatusInactive)
	testutil.CreateAccount(t, repo, "Cid", "Xu", "cid@example.com", "", account.RoleFinance, account.StatusActive)
	testutil.CreateAccount(t, repo, "Dee", "Wu", "dee@example.com", "", account.RoleAdmin, account.StatusActive)

	accs, meta, err := svc.Query(ctx, account.QueryFilter{}, nil, core.NewPage(1, 3))
	require.NoError(t, err)
	assert.Equal(t, 4, meta.Total)
	require.Len(t, accs, 3)
	assert.Equal(t, "Dee", accs[0].FirstName) // newest first

	accs, _, err = svc.Query(ctx, account.QueryFilter{}, []core.DBOrdering{{Field: "last_name", Ascending: true}}, core.AllRows)
	require.NoError(t, err)
	assert.Equal(t, "Wu", accs[0].LastName)

	accs, _, err = svc.Query(ctx, account.QueryFilter{Search: "ann zed"}, nil, core.AllRows)
	require.NoError(t, err)
	assert.Len(t, accs, 1)
	accs, _, err = svc.Query(ctx, account.QueryFilter{Search: "nobody"}, nil, core.AllRows)
	require.NoError(t, err)
	assert.Empty(t, accs)
	accs, _, err = svc.Query(ctx, account.QueryFilter{Search: "  BOB "}, nil, core.AllRows)
	require.NoError(t, err)
	assert.Len(t, accs, 1)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.Stats{Active: 3, Inactive: 1, ActiveStudents: 1, ActiveFinance: 1, ActiveAdmins: 1}, stats)

	students, err := svc.Students(ctx, account.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 2)
}

func TestProfileValidation(t *testing.T) {
	validate := validator.New()
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	orig := account.Account{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"}
	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{"no password change", "", ""},
		{"too short", "Ab1#", "password must contain at least 8 characters"},
		{"whitespace", "Abcd 12#x", "password must not contain whitespace"},
		{"numeric", "12345678", "password cannot be entirely numeric"},
		{"not complex", "abcdefgh1", "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{"similar to email", "Jane@example.com1", "password cannot be similar to your name or email"},
		{"strong", "Tr0ub4dor&3x!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pu := account.ProfileUpdate{Password: tt.pwd, PasswordConfirm: tt.pwd}
			err := pu.Validate(orig, validate)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.wantErr, core.TranslateValidationErrors(verrs, translator)[0].Error)
		})
	}
}
