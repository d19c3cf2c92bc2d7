package account

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/promissory/core"
)

var PasswordHashCost = bcrypt.DefaultCost // lowered in tests

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleFinance Role = "Finance"
	RoleStudent Role = "Student"
)

var Roles = []Role{RoleAdmin, RoleFinance, RoleStudent}

// ParseRole matches s case-insensitively against the closed set of roles.
func ParseRole(s string) (Role, error) {
	s = core.CleanString(s, true /* lower */)
	for _, r := range Roles {
		if strings.ToLower(string(r)) == s {
			return r, nil
		}
	}
	return "", ErrInvalidRole
}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

var Statuses = []Status{StatusActive, StatusInactive}

// ParseStatus matches s case-insensitively against the closed set of statuses.
func ParseStatus(s string) (Status, error) {
	s = core.CleanString(s, true /* lower */)
	for _, st := range Statuses {
		if strings.ToLower(string(st)) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// YearLevels offered to students.
var YearLevels = []string{"1st Year", "2nd Year", "3rd Year", "4th Year"}

type Account struct {
	ID           int       `json:"id"`
	FirstName    string    `json:"first_name"`
	MiddleName   string    `json:"middle_name"`
	LastName     string    `json:"last_name"`
	Suffix       string    `json:"suffix"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	PasswordHash []byte    `json:"-"`
	YearLevel    string    `json:"year_level"` // students only
	Course       string    `json:"course"`     // students only
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), PasswordHashCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// FullName joins every non-empty name part.
func (a Account) FullName() string {
	return core.JoinNonEmpty(a.FirstName, a.MiddleName, a.LastName, a.Suffix)
}

// DisplayName is the short "first last" name carried by sessions and audit entries.
func (a Account) DisplayName() string {
	return core.JoinNonEmpty(a.FirstName, a.LastName)
}

func (a Account) IsStudent() bool { return a.Role == RoleStudent }
func (a Account) IsActive() bool  { return a.Status == StatusActive }

// clearStudentFields drops student-only attributes from non-student accounts.
func (a *Account) clearStudentFields() {
	if !a.IsStudent() {
		a.YearLevel = ""
		a.Course = ""
	}
}

// NewAccount contains information needed to create a new Account.
type NewAccount struct {
	FirstName  string `form:"first_name" json:"first_name" validate:"notblank,max=50"`
	MiddleName string `form:"middle_name" json:"middle_name" validate:"max=50"`
	LastName   string `form:"last_name" json:"last_name" validate:"notblank,max=50"`
	Suffix     string `form:"suffix" json:"suffix" validate:"max=10"`
	Email      string `form:"email" json:"email" validate:"required,email,max=100"`
	Role       string `form:"role" json:"role" validate:"required,role"`
	YearLevel  string `form:"year_level" json:"year_level" validate:"max=20"`
	Course     string `form:"course" json:"course" validate:"max=100"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.FirstName = core.CleanString(na.FirstName)
	na.MiddleName = core.CleanString(na.MiddleName)
	na.LastName = core.CleanString(na.LastName)
	na.Suffix = core.CleanString(na.Suffix)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.YearLevel = core.CleanString(na.YearLevel)
	na.Course = core.CleanString(na.Course)
	return validate.Struct(na)
}

// UpdateAccount defines what an admin may change on an existing Account.
type UpdateAccount struct {
	FirstName  string `form:"first_name" json:"first_name" validate:"notblank,max=50"`
	MiddleName string `form:"middle_name" json:"middle_name" validate:"max=50"`
	LastName   string `form:"last_name" json:"last_name" validate:"notblank,max=50"`
	Suffix     string `form:"suffix" json:"suffix" validate:"max=10"`
	Email      string `form:"email" json:"email" validate:"required,email,max=100"`
	Role       string `form:"role" json:"role" validate:"required,role"`
	Status     string `form:"status" json:"status" validate:"required,accstatus"`
	YearLevel  string `form:"year_level" json:"year_level" validate:"max=20"`
	Course     string `form:"course" json:"course" validate:"max=100"`
}

func (ua *UpdateAccount) Validate(validate *validator.Validate) error {
	ua.FirstName = core.CleanString(ua.FirstName)
	ua.MiddleName = core.CleanString(ua.MiddleName)
	ua.LastName = core.CleanString(ua.LastName)
	ua.Suffix = core.CleanString(ua.Suffix)
	ua.Email = core.CleanString(ua.Email, true /* lower */)
	ua.YearLevel = core.CleanString(ua.YearLevel)
	ua.Course = core.CleanString(ua.Course)
	return validate.Struct(ua)
}

// ProfileUpdate is the self-service form of a student: blank fields keep their current value.
type ProfileUpdate struct {
	FirstName       string `form:"first_name" json:"first_name" validate:"max=50"`
	MiddleName      string `form:"middle_name" json:"middle_name" validate:"max=50"`
	LastName        string `form:"last_name" json:"last_name" validate:"max=50"`
	Suffix          string `form:"suffix" json:"suffix" validate:"max=10"`
	Email           string `form:"email" json:"email" validate:"omitempty,email,max=100"`
	Password        string `form:"password" json:"password"`
	PasswordConfirm string `form:"password_confirm" json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (pu *ProfileUpdate) Validate(orig Account, validate *validator.Validate) error {
	keep := func(val, origVal string, lower ...bool) string {
		if v := core.CleanString(val, lower...); v != "" {
			return v
		}
		return origVal
	}
	pu.FirstName = keep(pu.FirstName, orig.FirstName)
	pu.MiddleName = keep(pu.MiddleName, orig.MiddleName)
	pu.LastName = keep(pu.LastName, orig.LastName)
	pu.Suffix = keep(pu.Suffix, orig.Suffix)
	pu.Email = keep(pu.Email, orig.Email, true /* lower */)
	return validate.Struct(pu)
}

type QueryFilter struct {
	Search    string `query:"search"` // first name, last name or email
	Role      Role   `query:"-"`
	Status    Status `query:"-"`
	Course    string `query:"course"`
	YearLevel string `query:"year_level"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Course = core.CleanString(qf.Course)
	qf.YearLevel = core.CleanString(qf.YearLevel)
}

// Stats feeds the admin dashboard.
type Stats struct {
	Active         int `json:"active"`
	Inactive       int `json:"inactive"`
	ActiveStudents int `json:"active_students"`
	ActiveFinance  int `json:"active_finance"`
	ActiveAdmins   int `json:"active_admins"`
}
