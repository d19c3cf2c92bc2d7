package report

import (
	"strconv"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
)

// PasswordNotAvailable fills the password column of account exports: only hashes are stored.
const PasswordNotAvailable = "N/A"

// All stands for an unset filter in exported summaries.
const All = "All"

// AccountsTable lists every account with the bulk-upload compatible columns.
func AccountsTable(accs []account.Account) *core.Table {
	t := core.NewTable("Accounts",
		"ID", "First_Name", "Middle_Name", "Last_Name", "Suffix", "Email",
		"Role", "Status", "Year_Level", "Course", "Password",
	)
	for _, a := range accs {
		t.Append(
			strconv.Itoa(a.ID), a.FirstName, a.MiddleName, a.LastName, a.Suffix, a.Email,
			string(a.Role), string(a.Status), a.YearLevel, a.Course, PasswordNotAvailable,
		)
	}
	return t
}

// TemplateTable is the empty bulk-upload template.
func TemplateTable() *core.Table {
	return core.NewTable("Accounts", append([]string(nil), account.ImportHeader...)...)
}

func NotesTable(reqs []promissory.Request) *core.Table {
	t := core.NewTable("Promissory Requests",
		"Student Name", "Course", "Year Level", "Semester", "Semester Type", "Status",
	)
	for _, r := range reqs {
		t.Append(r.Student.FullName(), r.Course, r.YearLevel, r.Semester, string(r.SemesterType), string(r.Status))
	}
	return t
}

func AnalyticsTable(reqs []promissory.Request) *core.Table {
	t := core.NewTable("Promissory Requests",
		"Student Name", "Course", "Semester", "Semester Type", "School Year", "Date Submitted", "Status",
	)
	for _, r := range reqs {
		name := r.Student.Name()
		if name == "" {
			name = "N/A"
		}
		t.Append(
			name, r.Course, r.Semester, string(r.SemesterType), r.SchoolYear,
			FormatDate(r.RequestedAt), string(r.Status),
		)
	}
	return t
}

// StudentsTable exports the per-student summaries along with the filters they were computed with.
func StudentsTable(summaries []StudentSummary, f StudentFilter) *core.Table {
	t := core.NewTable("Students Promissory",
		"Student Name", "Course", "Year Level", "Semester", "Semester Type", "School Year", "Requests Count",
	)
	for _, s := range summaries {
		t.Append(
			s.Student.FullName(), s.Student.Course, s.Student.YearLevel,
			orAll(f.Semester), orAll(string(f.SemesterType)), orAll(f.SchoolYear),
			strconv.Itoa(s.RequestsCount),
		)
	}
	return t
}

func orAll(s string) string {
	if s == "" {
		return All
	}
	return s
}
