package echoapi_test

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
	"github.com/trezcool/promissory/testutil"
)

// seedPending files one pending request for each of n new students.
func (app *testApp) seedPending(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s := testutil.CreateAccount(t, app.repos.Accounts, fmt.Sprintf("Student%02d", i), "Test",
			fmt.Sprintf("s%02d@example.com", i), "", account.RoleStudent, account.StatusActive)
		testutil.CreateRequest(t, app.repos.Requests, s, promissory.Request{})
	}
}

func TestFinanceNotesExportsFullResultSet(t *testing.T) {
	app := setup(t)
	financeToken := app.sessionFor(app.finance)
	app.seedPending(t, 25)
	// outside the default filters
	testutil.CreateRequest(t, app.repos.Requests, app.student, promissory.Request{Status: promissory.StatusApproved})
	testutil.CreateRequest(t, app.repos.Requests, app.student, promissory.Request{SchoolYear: "2024-2025"})

	rec := app.do(newRequest(http.MethodGet, "/finance/promissory-notes", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Requests   []promissory.Request `json:"requests"`
		Pagination core.Pagination      `json:"pagination"`
	}
	decodeJSON(t, rec, &view)
	assert.Len(t, view.Requests, 8)
	assert.Equal(t, 25, view.Pagination.Total)
	assert.Equal(t, 4, view.Pagination.TotalPages)

	rec = app.do(newRequest(http.MethodGet, "/finance/promissory-notes?page=4", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &view)
	assert.Len(t, view.Requests, 1)

	rec = app.do(newRequest(http.MethodGet, "/finance/promissory-notes?export=csv", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "promissory_requests.csv")
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 26)
	assert.Equal(t, []string{"Student Name", "Course", "Year Level", "Semester", "Semester Type", "Status"}, rows[0])

	entries := app.auditActions(t)
	assert.Equal(t, "Exported promissory requests (CSV) with filters: status=Pending, semester=First Semester, course=All", entries[0].Action)

	// "all" disables the defaulted filters
	rec = app.do(newRequest(http.MethodGet, "/finance/promissory-notes?status=all&school_year=all&export=excel", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "promissory_requests.xlsx")

	rec = app.do(newRequest(http.MethodGet, "/finance/promissory-notes?status=All&school_year=all", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &view)
	assert.Equal(t, 27, view.Pagination.Total)

	rec = app.do(newRequest(http.MethodGet, "/finance/promissory-notes?status=bogus", nil, financeToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinanceNoteDetails(t *testing.T) {
	app := setup(t)
	financeToken := app.sessionFor(app.finance)
	older := testutil.CreateRequest(t, app.repos.Requests, app.student, promissory.Request{
		SchoolYear: "2024-2025",
		Status:     promissory.StatusRejected,
	})
	note := testutil.CreateRequest(t, app.repos.Requests, app.student, promissory.Request{})

	rec := app.do(newRequest(http.MethodGet, fmt.Sprintf("/finance/promissory/%d", note.ID), nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Request promissory.Request   `json:"request"`
		History []promissory.Request `json:"history"`
	}
	decodeJSON(t, rec, &view)
	assert.Equal(t, note.ID, view.Request.ID)
	assert.Equal(t, "Jane", view.Request.Student.FirstName)
	require.Len(t, view.History, 2)
	assert.Equal(t, older.ID, view.History[1].ID)

	entries := app.auditActions(t)
	assert.Equal(t, fmt.Sprintf("Viewed promissory note ID %d details", note.ID), entries[0].Action)

	tests := []httpTest{
		{
			name: "missing note", method: http.MethodGet, path: "/finance/promissory/9999", session: financeToken,
			wantCode: http.StatusSeeOther, wantLocation: "/finance/promissory-notes",
			wantNotice: "The selected promissory note was not found or has been deleted.",
		},
		{
			name: "review missing note", method: http.MethodPost, path: "/finance/promissory/9999/update", session: financeToken,
			form:     map[string][]string{"action": {"approve"}},
			wantCode: http.StatusSeeOther, wantLocation: "/finance/promissory-notes",
			wantNotice: "The selected promissory note was not found or has been deleted.",
		},
		{
			name: "invalid action", method: http.MethodPost, path: fmt.Sprintf("/finance/promissory/%d/update", note.ID), session: financeToken,
			form:     map[string][]string{"action": {"maybe"}},
			wantCode: http.StatusSeeOther, wantLocation: fmt.Sprintf("/finance/promissory/%d", note.ID),
			wantNotice: "Please choose to approve or reject the request.",
		},
		{
			name: "approve", method: http.MethodPost, path: fmt.Sprintf("/finance/promissory/%d/update", note.ID), session: financeToken,
			form:     map[string][]string{"action": {"Approve"}},
			wantCode: http.StatusSeeOther, wantLocation: fmt.Sprintf("/finance/promissory/%d", note.ID),
			wantNotice: "Promissory Note Approved successfully.",
		},
		{
			name: "missing attachment", method: http.MethodGet, path: fmt.Sprintf("/finance/promissory/%d/files/reason", note.ID), session: financeToken,
			wantCode: http.StatusNotFound,
		},
	}
	app.run(t, tests)

	entries = app.auditActions(t)
	assert.Equal(t, fmt.Sprintf("Approved promissory note ID %d (from Pending to Approved)", note.ID), entries[0].Action)
}

func TestFinanceAnalyticsAndStudents(t *testing.T) {
	app := setup(t)
	financeToken := app.sessionFor(app.finance)
	app.seedPending(t, 3)
	testutil.CreateRequest(t, app.repos.Requests, app.student, promissory.Request{})
	testutil.CreateRequest(t, app.repos.Requests, app.student, promissory.Request{SemesterType: promissory.Prelims})
	testutil.CreateRequest(t, app.repos.Requests, app.student, promissory.Request{SchoolYear: "2024-2025"})

	rec := app.do(newRequest(http.MethodGet, "/finance/all-promissory", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var analytics struct {
		Analytics struct {
			TotalStudents  int    `json:"total_students"`
			TotalRequested int    `json:"total_requested"`
			TopCourse      string `json:"top_course"`
		} `json:"analytics"`
		Requests    []promissory.Request `json:"requests"`
		SchoolYears []string             `json:"school_years"`
	}
	decodeJSON(t, rec, &analytics)
	assert.Equal(t, []string{"2024-2025", "2025-2026"}, analytics.SchoolYears)
	assert.Equal(t, 4, analytics.Analytics.TotalStudents)
	assert.Equal(t, 4, analytics.Analytics.TotalRequested)
	assert.Equal(t, "BSIT", analytics.Analytics.TopCourse)
	assert.Len(t, analytics.Requests, 5)

	rec = app.do(newRequest(http.MethodGet, "/finance/all-promissory?school_year=all&export=csv", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 7)

	rec = app.do(newRequest(http.MethodGet, "/finance/students-promissory", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var students struct {
		Students []struct {
			Student       account.Account `json:"student"`
			RequestsCount int             `json:"requests_count"`
		} `json:"students"`
		Pagination core.Pagination `json:"pagination"`
	}
	decodeJSON(t, rec, &students)
	require.Len(t, students.Students, 4)
	assert.Equal(t, app.student.ID, students.Students[0].Student.ID)
	assert.Equal(t, 2, students.Students[0].RequestsCount)

	// the active period is not applied once paginating
	rec = app.do(newRequest(http.MethodGet, "/finance/students-promissory?page=1", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &students)
	assert.Equal(t, 3, students.Students[0].RequestsCount)

	rec = app.do(newRequest(http.MethodGet, "/finance/students-promissory?search=jane&export=csv", nil, financeToken))
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err = csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Jane Doe", "BSIT", "1st Year", "First Semester", "All", "2025-2026", "2"}, rows[1])
}

func TestFinanceListings_hugePage(t *testing.T) {
	app := setup(t)
	financeToken := app.sessionFor(app.finance)
	app.seedPending(t, 2)

	for _, path := range []string{
		"/finance/students-promissory?page=9223372036854775807",
		"/finance/promissory-notes?page=9223372036854775807",
		"/finance/students-promissory?page=99999999999999999999",
	} {
		t.Run(path, func(t *testing.T) {
			rec := app.do(newRequest(http.MethodGet, path, nil, financeToken))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var view struct {
				Pagination core.Pagination `json:"pagination"`
			}
			decodeJSON(t, rec, &view)
			assert.Positive(t, view.Pagination.Page)
			assert.False(t, view.Pagination.HasNext)
		})
	}
}
