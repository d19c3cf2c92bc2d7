package account

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
)

var (
	// errors
	ErrNotFound             = errors.New("account not found")
	ErrEmailExists          = errors.New("an account with this email already exists")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrUnknownCourse        = errors.New("course is not in the active course list")
	ErrAuthenticationFailed = errors.New("invalid email or password")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateAccount fails with ErrEmailExists when the email is taken.
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		// ImportAccounts inserts accs all-or-nothing, silently skipping emails that already exist.
		// It returns the accounts actually inserted.
		ImportAccounts(ctx context.Context, accs []Account) ([]Account, error)
		GetAccount(ctx context.Context, id int) (Account, error)
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		// UpdateAccount fails with ErrEmailExists when the new email is taken.
		UpdateAccount(ctx context.Context, acc Account) (Account, error)
		// QueryAccounts applies AND on the set QueryFilter fields and returns one page plus the total count.
		// QueryFilter.Search does a case-insensitive match on the first name, last name, "first last" or email.
		QueryAccounts(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Account, int, error)
		CountAccounts(ctx context.Context, filter QueryFilter) (int, error)
	}

	// CourseChecker reports whether a course is currently in the active list.
	CourseChecker interface {
		HasCourse(ctx context.Context, name string) (bool, error)
	}

	Service struct {
		repo    Repository
		courses CourseChecker
		conf    *core.Config
	}
)

func NewService(repo Repository, courses CourseChecker, conf *core.Config) *Service {
	return &Service{repo: repo, courses: courses, conf: conf}
}

func (svc *Service) newPassword(lastName string) (string, error) {
	n := svc.conf.Accounts.PasswordSuffixLen
	if n <= 0 {
		n = 6
	}
	return GeneratePassword(lastName, n)
}

func (svc *Service) checkCourse(ctx context.Context, acc Account) error {
	if !acc.IsStudent() || acc.Course == "" {
		return nil
	}
	ok, err := svc.courses.HasCourse(ctx, acc.Course)
	if err != nil {
		return pkgerrors.Wrap(err, "checking course")
	}
	if !ok {
		return core.NewValidationError(ErrUnknownCourse, core.FieldError{Field: "course", Error: ErrUnknownCourse.Error()})
	}
	return nil
}

// Authenticate returns the account matching the credentials.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Account, error) {
	acc, err := svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return Account{}, ErrAuthenticationFailed
		}
		return Account{}, pkgerrors.Wrap(err, "finding account by email")
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return Account{}, ErrAuthenticationFailed
	}
	return acc, nil
}

// Create registers a new active account with a generated password, returned once.
func (svc *Service) Create(ctx context.Context, na NewAccount) (Account, string, error) {
	role, err := ParseRole(na.Role)
	if err != nil {
		return Account{}, "", err
	}

	now := NowFunc().UTC()
	acc := Account{
		FirstName:  na.FirstName,
		MiddleName: na.MiddleName,
		LastName:   na.LastName,
		Suffix:     na.Suffix,
		Email:      core.CleanString(na.Email, true /* lower */),
		Role:       role,
		Status:     StatusActive,
		YearLevel:  na.YearLevel,
		Course:     na.Course,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	acc.clearStudentFields()
	if err = svc.checkCourse(ctx, acc); err != nil {
		return Account{}, "", err
	}

	pwd, err := svc.newPassword(acc.LastName)
	if err != nil {
		return Account{}, "", pkgerrors.Wrap(err, "generating password")
	}
	if err = acc.SetPassword(pwd); err != nil {
		return Account{}, "", pkgerrors.Wrap(err, "hashing password")
	}

	acc, err = svc.repo.CreateAccount(ctx, acc)
	if err != nil {
		return Account{}, "", err
	}
	return acc, pwd, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Account, error) {
	return svc.repo.GetAccount(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Update applies an admin edit. Non-students lose their year level and course.
func (svc *Service) Update(ctx context.Context, id int, ua UpdateAccount) (Account, error) {
	acc, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return Account{}, err
	}
	role, err := ParseRole(ua.Role)
	if err != nil {
		return Account{}, err
	}
	status, err := ParseStatus(ua.Status)
	if err != nil {
		return Account{}, err
	}

	acc.FirstName = ua.FirstName
	acc.MiddleName = ua.MiddleName
	acc.LastName = ua.LastName
	acc.Suffix = ua.Suffix
	acc.Email = core.CleanString(ua.Email, true /* lower */)
	acc.Role = role
	acc.Status = status
	acc.YearLevel = ua.YearLevel
	acc.Course = ua.Course
	acc.UpdatedAt = NowFunc().UTC()
	acc.clearStudentFields()

	return svc.repo.UpdateAccount(ctx, acc)
}

// ResetPassword replaces the password with a freshly generated one, returned once.
func (svc *Service) ResetPassword(ctx context.Context, id int) (Account, string, error) {
	acc, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return Account{}, "", err
	}
	pwd, err := svc.newPassword(acc.LastName)
	if err != nil {
		return Account{}, "", pkgerrors.Wrap(err, "generating password")
	}
	if err = acc.SetPassword(pwd); err != nil {
		return Account{}, "", pkgerrors.Wrap(err, "hashing password")
	}
	acc.UpdatedAt = NowFunc().UTC()
	if acc, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return Account{}, "", err
	}
	return acc, pwd, nil
}

// SetPassword sets a chosen password on the account with the given email (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (Account, error) {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if err = acc.SetPassword(pwd); err != nil {
		return Account{}, pkgerrors.Wrap(err, "hashing password")
	}
	acc.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acc)
}

// UpdateProfile applies a validated self-service ProfileUpdate and reports whether the password changed.
func (svc *Service) UpdateProfile(ctx context.Context, id int, pu ProfileUpdate) (Account, bool, error) {
	acc, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return Account{}, false, err
	}
	acc.FirstName = pu.FirstName
	acc.MiddleName = pu.MiddleName
	acc.LastName = pu.LastName
	acc.Suffix = pu.Suffix
	acc.Email = pu.Email

	pwdChanged := pu.Password != ""
	if pwdChanged {
		if err = acc.SetPassword(pu.Password); err != nil {
			return Account{}, false, pkgerrors.Wrap(err, "hashing password")
		}
	}
	acc.UpdatedAt = NowFunc().UTC()
	if acc, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return Account{}, false, err
	}
	return acc, pwdChanged, nil
}

// Query returns one page of accounts.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Account, core.Pagination, error) {
	filter.Clean()
	accs, total, err := svc.repo.QueryAccounts(ctx, filter, ordering, page)
	if err != nil {
		return nil, core.Pagination{}, pkgerrors.Wrap(err, "querying accounts")
	}
	return accs, core.NewPagination(page, total), nil
}

// All returns every account, oldest first.
func (svc *Service) All(ctx context.Context) ([]Account, error) {
	accs, _, err := svc.repo.QueryAccounts(ctx, QueryFilter{}, []core.DBOrdering{{Field: "id", Ascending: true}}, core.AllRows)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying accounts")
	}
	return accs, nil
}

// Students returns every student account matching the filter.
func (svc *Service) Students(ctx context.Context, filter QueryFilter) ([]Account, error) {
	filter.Clean()
	filter.Role = RoleStudent
	accs, _, err := svc.repo.QueryAccounts(ctx, filter, []core.DBOrdering{{Field: "last_name", Ascending: true}}, core.AllRows)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying students")
	}
	return accs, nil
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		dst    *int
		filter QueryFilter
	}{
		{&stats.Active, QueryFilter{Status: StatusActive}},
		{&stats.Inactive, QueryFilter{Status: StatusInactive}},
		{&stats.ActiveStudents, QueryFilter{Status: StatusActive, Role: RoleStudent}},
		{&stats.ActiveFinance, QueryFilter{Status: StatusActive, Role: RoleFinance}},
		{&stats.ActiveAdmins, QueryFilter{Status: StatusActive, Role: RoleAdmin}},
	}
	for _, c := range counts {
		n, err := svc.repo.CountAccounts(ctx, c.filter)
		if err != nil {
			return Stats{}, pkgerrors.Wrap(err, "counting accounts")
		}
		*c.dst = n
	}
	return stats, nil
}
