package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
)

type (
	studentsStub []account.Account
	requestsStub []promissory.Request
)

func (s studentsStub) Students(_ context.Context, f account.QueryFilter) ([]account.Account, error) {
	var accs []account.Account
	for _, a := range s {
		if f.Course == "" || a.Course == f.Course {
			accs = append(accs, a)
		}
	}
	return accs, nil
}

func (s requestsStub) All(_ context.Context, f promissory.Filter) ([]promissory.Request, error) {
	var reqs []promissory.Request
	for _, r := range s {
		if f.Matches(r) {
			reqs = append(reqs, r)
		}
	}
	return reqs, nil
}

func student(id int, first, last, course string) account.Account {
	return account.Account{
		ID: id, FirstName: first, LastName: last, Course: course, YearLevel: "1st Year",
		Role: account.RoleStudent, Status: account.StatusActive,
	}
}

func request(id, studentID int, course string, month time.Month, st promissory.Status) promissory.Request {
	return promissory.Request{
		ID:           id,
		StudentID:    studentID,
		Student:      promissory.Student{FirstName: "S", LastName: "N"},
		Course:       course,
		Semester:     "First Semester",
		SemesterType: promissory.Finals,
		SchoolYear:   "2025-2026",
		Status:       st,
		RequestedAt:  time.Date(2025, month, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestComputeAnalytics(t *testing.T) {
	students := []account.Account{
		student(1, "Ada", "Lovelace", "BSCS"),
		student(2, "Alan", "Turing", "BSCS"),
		student(3, "Grace", "Hopper", "BSIT"),
		student(4, "Edsger", "Dijkstra", "BSIT"),
		student(5, "Barbara", "Liskov", "BSIT"),
		student(6, "Ken", "Thompson", "BSEE"),
	}
	reqs := []promissory.Request{
		request(1, 1, "BSCS", time.January, promissory.StatusApproved),
		request(2, 1, "BSCS", time.January, promissory.StatusRejected),
		request(3, 1, "BSCS", time.March, promissory.StatusPending),
		request(4, 3, "BSIT", time.December, promissory.StatusPending),
	}

	a := ComputeAnalytics(reqs, students)

	assert.Equal(t, 6, a.TotalStudents)
	assert.Equal(t, 2, a.TotalRequested)
	assert.Equal(t, "BSCS", a.TopCourse)
	assert.Equal(t, [12]int{2, 0, 1}, a.TopCourseMonthly)
	assert.Equal(t, [12]int{11: 1}, a.MonthlyCourseCounts["BSIT"])
	assert.Equal(t, "Jan", a.Months[0])

	require.Len(t, a.Courses, 2)
	assert.Equal(t, CourseStat{Course: "BSCS", Requested: 1, Enrolled: 2, Percentage: 50}, a.Courses[0])
	assert.Equal(t, CourseStat{Course: "BSIT", Requested: 1, Enrolled: 3, Percentage: 33.33}, a.Courses[1])
}

func TestComputeAnalytics_empty(t *testing.T) {
	a := ComputeAnalytics(nil, nil)
	assert.Equal(t, NoCourse, a.TopCourse)
	assert.Equal(t, [12]int{}, a.TopCourseMonthly)
	assert.Empty(t, a.Courses)
	assert.Zero(t, a.TotalRequested)
}

func TestComputeAnalytics_noEnrolledStudents(t *testing.T) {
	a := ComputeAnalytics([]promissory.Request{request(1, 9, "BSBA", time.May, promissory.StatusPending)}, nil)
	require.Len(t, a.Courses, 1)
	assert.Zero(t, a.Courses[0].Percentage)
}

func TestSummarizeStudents(t *testing.T) {
	ada := student(1, "Ada", "Lovelace", "BSCS")
	alan := student(2, "Alan", "Turing", "BSCS")
	grace := student(3, "Grace", "Hopper", "BSIT")
	ken := student(4, "Ken", "Thompson", "BSIT")

	reqs := []promissory.Request{
		request(1, 2, "BSCS", time.January, promissory.StatusPending),
		request(2, 2, "BSCS", time.February, promissory.StatusRejected),
		request(3, 1, "BSCS", time.January, promissory.StatusPending),
		request(4, 3, "BSIT", time.January, promissory.StatusApproved),
	}

	got := SummarizeStudents([]account.Account{ada, alan, grace, ken}, reqs)
	require.Len(t, got, 3)
	assert.Equal(t, StudentSummary{Student: alan, RequestsCount: 2}, got[0])
	// ties ordered by last name
	assert.Equal(t, grace, got[1].Student)
	assert.Equal(t, ada, got[2].Student)
}

func TestFilterByName(t *testing.T) {
	students := []account.Account{
		student(1, "Ada", "Lovelace", "BSCS"),
		student(2, "Alan", "Turing", "BSCS"),
	}
	tests := []struct {
		name   string
		search string
		want   []int
	}{
		{name: "empty", search: "", want: []int{1, 2}},
		{name: "first name", search: "ALAN", want: []int{2}},
		{name: "last name", search: "love", want: []int{1}},
		{name: "first last", search: "ada lov", want: []int{1}},
		{name: "shared", search: "a", want: []int{1, 2}},
		{name: "unknown", search: "zed", want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := []int{}
			for _, s := range filterByName(students, tt.search) {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSortSchoolYears(t *testing.T) {
	got := SortSchoolYears([]string{"2025-2026", "2023-2024", "2024-2025"})
	assert.Equal(t, []string{"2023-2024", "2024-2025", "2025-2026"}, got)
}

func TestTables(t *testing.T) {
	acc := account.Account{
		ID: 7, FirstName: "Ada", MiddleName: "B", LastName: "Lovelace", Email: "ada@test.ph",
		Role: account.RoleStudent, Status: account.StatusActive, YearLevel: "2nd Year", Course: "BSCS",
	}

	accounts := AccountsTable([]account.Account{acc})
	assert.Equal(t, "Accounts", accounts.Name)
	assert.Equal(t, "Password", accounts.Header[len(accounts.Header)-1])
	assert.Equal(t, []string{"7", "Ada", "B", "Lovelace", "", "ada@test.ph", "Student", "Active", "2nd Year", "BSCS", "N/A"}, accounts.Rows[0])

	tmpl := TemplateTable()
	assert.Equal(t, account.ImportHeader, tmpl.Header)
	assert.Empty(t, tmpl.Rows)

	req := request(1, 7, "BSCS", time.January, promissory.StatusPending)
	req.YearLevel = "2nd Year"
	notes := NotesTable([]promissory.Request{req})
	assert.Equal(t, "Promissory Requests", notes.Name)
	assert.Equal(t, []string{"S N", "BSCS", "2nd Year", "First Semester", "Finals", "Pending"}, notes.Rows[0])

	analytics := AnalyticsTable([]promissory.Request{req})
	assert.Equal(t, []string{"S N", "BSCS", "First Semester", "Finals", "2025-2026", "Jan 10, 2025", "Pending"}, analytics.Rows[0])

	students := StudentsTable([]StudentSummary{{Student: acc, RequestsCount: 3}}, StudentFilter{Semester: "First Semester"})
	assert.Equal(t, "Students Promissory", students.Name)
	assert.Equal(t, []string{"Ada B Lovelace", "BSCS", "2nd Year", "First Semester", "All", "All", "3"}, students.Rows[0])
}

func TestStudentSummaries_pagination(t *testing.T) {
	var students []account.Account
	var reqs []promissory.Request
	for i := 1; i <= 25; i++ {
		students = append(students, student(i, "S", string(rune('A'+i)), "BSCS"))
		reqs = append(reqs, request(i, i, "BSCS", time.June, promissory.StatusPending))
	}
	svc := NewService(studentsStub(students), requestsStub(reqs))

	page, meta, err := svc.StudentSummaries(context.Background(), StudentFilter{}, core.NewPage(3, 10))
	require.NoError(t, err)
	assert.Len(t, page, 5)
	assert.Equal(t, 25, meta.Total)
	assert.Equal(t, 3, meta.TotalPages)
	assert.False(t, meta.HasNext)

	all, _, err := svc.StudentSummaries(context.Background(), StudentFilter{}, core.AllRows)
	require.NoError(t, err)
	assert.Len(t, all, 25)
}
