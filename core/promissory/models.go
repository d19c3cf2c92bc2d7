package promissory

import (
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/promissory/core"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

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

// IsLive reports whether the status blocks another submission for the same period.
func (s Status) IsLive() bool { return s == StatusPending || s == StatusApproved }

type SemesterType string

const (
	Prelims  SemesterType = "Prelims"
	Midterms SemesterType = "Midterms"
	Finals   SemesterType = "Finals"
)

var SemesterTypes = []SemesterType{Prelims, Midterms, Finals}

// ParseSemesterType matches s case-insensitively against the closed set of semester types.
func ParseSemesterType(s string) (SemesterType, error) {
	s = core.CleanString(s, true /* lower */)
	for _, st := range SemesterTypes {
		if strings.ToLower(string(st)) == s {
			return st, nil
		}
	}
	return "", ErrInvalidSemesterType
}

// Category namespaces the attachments of a request.
type Category string

const (
	CategoryReason  Category = "reason"
	CategoryValidID Category = "valid_id"
)

func ParseCategory(s string) (Category, error) {
	switch Category(core.CleanString(s, true /* lower */)) {
	case CategoryReason:
		return CategoryReason, nil
	case CategoryValidID:
		return CategoryValidID, nil
	}
	return "", ErrInvalidCategory
}

// Period identifies the academic window a request is filed for.
type Period struct {
	Semester     string       `json:"semester"`
	SemesterType SemesterType `json:"semester_type"`
	SchoolYear   string       `json:"school_year"`
}

// Student is the owning account's name, joined on read.
type Student struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	Suffix     string `json:"suffix"`
}

// Name is "first last".
func (s Student) Name() string { return core.JoinNonEmpty(s.FirstName, s.LastName) }

func (s Student) FullName() string {
	return core.JoinNonEmpty(s.FirstName, s.MiddleName, s.LastName, s.Suffix)
}

type Request struct {
	ID        int     `json:"id"`
	StudentID int     `json:"student_id"`
	Student   Student `json:"student"`

	// snapshot of the student at submission time
	YearLevel string `json:"year_level"`
	Course    string `json:"course"`
	Email     string `json:"email"`

	ReasonText string `json:"reason_text"`
	ReasonDoc  string `json:"reason_doc"` // stored attachment path
	ValidID    string `json:"valid_id"`   // stored attachment path

	Semester     string       `json:"semester"`
	SemesterType SemesterType `json:"semester_type"`
	SchoolYear   string       `json:"school_year"`

	Status      Status    `json:"status"`
	Comments    string    `json:"comments"`
	RequestedAt time.Time `json:"requested_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"`   // UTC
}

func (r Request) Period() Period {
	return Period{Semester: r.Semester, SemesterType: r.SemesterType, SchoolYear: r.SchoolYear}
}

// IsIncomplete reports a request still missing its reason document or valid ID.
func (r Request) IsIncomplete() bool { return r.ReasonDoc == "" || r.ValidID == "" }

func (r Request) Attachment(cat Category) string {
	switch cat {
	case CategoryReason:
		return r.ReasonDoc
	case CategoryValidID:
		return r.ValidID
	}
	return ""
}

// Upload is a file received with a submission.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// NewRequest contains the information a student submits.
type NewRequest struct {
	SemesterType string  `form:"semester_type" json:"semester_type" validate:"required,semtype"`
	ReasonText   string  `form:"reason" json:"reason" validate:"max=5000"`
	ReasonDoc    *Upload `form:"-" json:"-"`
	ValidID      *Upload `form:"-" json:"-"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.SemesterType = core.CleanString(nr.SemesterType)
	nr.ReasonText = core.CleanString(nr.ReasonText)
	return validate.Struct(nr)
}

// Review is a finance decision on a pending request.
type Review struct {
	Action   string `form:"action" json:"action" validate:"required,reviewaction"`
	Comments string `form:"comments" json:"comments" validate:"max=2000"`
}

func (rv *Review) Validate(validate *validator.Validate) error {
	rv.Action = core.CleanString(rv.Action, true /* lower */)
	rv.Comments = core.CleanString(rv.Comments)
	return validate.Struct(rv)
}

// Status is the status the review leads to.
func (rv Review) Status() Status {
	if rv.Action == "approve" {
		return StatusApproved
	}
	return StatusRejected
}

type Filter struct {
	StudentID    int
	Search       string // student first name, last name or "first last"
	Statuses     []Status
	Semester     string
	SemesterType SemesterType
	SchoolYear   string
	Course       string
	YearLevel    string
	Incomplete   bool // missing reason document or valid ID
}

func (f *Filter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.Semester = core.CleanString(f.Semester)
	f.SchoolYear = core.CleanString(f.SchoolYear)
	f.Course = core.CleanString(f.Course)
	f.YearLevel = core.CleanString(f.YearLevel)
}

// Matches applies the filter to a single request (search matches the joined student name).
func (f Filter) Matches(r Request) bool {
	if f.StudentID != 0 && r.StudentID != f.StudentID {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Student.FirstName), term) &&
			!strings.Contains(strings.ToLower(r.Student.LastName), term) &&
			!strings.Contains(strings.ToLower(r.Student.FirstName+" "+r.Student.LastName), term) {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if r.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Semester != "" && r.Semester != f.Semester {
		return false
	}
	if f.SemesterType != "" && r.SemesterType != f.SemesterType {
		return false
	}
	if f.SchoolYear != "" && r.SchoolYear != f.SchoolYear {
		return false
	}
	if f.Course != "" && r.Course != f.Course {
		return false
	}
	if f.YearLevel != "" && r.YearLevel != f.YearLevel {
		return false
	}
	if f.Incomplete && !r.IsIncomplete() {
		return false
	}
	return true
}

type StatusCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

func (c *StatusCounts) Add(st Status, n int) {
	c.Total += n
	switch st {
	case StatusPending:
		c.Pending += n
	case StatusApproved:
		c.Approved += n
	case StatusRejected:
		c.Rejected += n
	}
}

// FilterOptions lists the distinct values present in stored requests.
type FilterOptions struct {
	Semesters     []string `json:"semesters"`
	SemesterTypes []string `json:"semester_types"`
	SchoolYears   []string `json:"school_years"` // newest first
	Courses       []string `json:"courses"`
}
