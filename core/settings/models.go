package settings

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/promissory/core"
)

// NotSet is shown (and stamped on new requests) while no semester / school year was chosen.
const NotSet = "Not Set"

// Semesters offered in the admin semester picker.
var Semesters = []string{"First Semester", "Second Semester", "Mid Year"}

// ActiveSettings is the academic period new requests are filed against.
type ActiveSettings struct {
	Semester   string    `json:"active_semester"`
	SchoolYear string    `json:"active_school_year"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func defaultSettings() ActiveSettings {
	return ActiveSettings{Semester: NotSet, SchoolYear: NotSet}
}

type Course struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type SemesterForm struct {
	Semester string `form:"semester" json:"semester" validate:"notblank,max=50"`
}

func (f *SemesterForm) Validate(validate *validator.Validate) error {
	f.Semester = core.CleanString(f.Semester)
	return validate.Struct(f)
}

type SchoolYearForm struct {
	SchoolYear string `form:"school_year" json:"school_year" validate:"required,schoolyear"`
}

func (f *SchoolYearForm) Validate(validate *validator.Validate) error {
	f.SchoolYear = core.CleanString(f.SchoolYear)
	return validate.Struct(f)
}

type CourseForm struct {
	Name string `form:"course_name" json:"course_name" validate:"max=100"`
}

func (f *CourseForm) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	return validate.Struct(f)
}
