package report

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
)

// NoCourse is the top course of an empty result set.
const NoCourse = "N/A"

// Months labels the monthly buckets, January first.
var Months = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type (
	StudentDirectory interface {
		Students(ctx context.Context, filter account.QueryFilter) ([]account.Account, error)
	}

	RequestSource interface {
		All(ctx context.Context, f promissory.Filter) ([]promissory.Request, error)
	}

	Service struct {
		students StudentDirectory
		requests RequestSource
	}

	// CourseStat is the share of a course's enrolled students that filed at least one request.
	CourseStat struct {
		Course     string  `json:"course"`
		Requested  int     `json:"requested"` // distinct students
		Enrolled   int     `json:"enrolled"`
		Percentage float64 `json:"percentage"`
	}

	Analytics struct {
		TotalStudents  int `json:"total_students"`
		TotalRequested int `json:"total_requested"` // distinct students

		MonthlyCourseCounts map[string][12]int `json:"monthly_course_counts"`
		TopCourse           string             `json:"top_course"`
		TopCourseMonthly    [12]int            `json:"top_course_monthly"`
		Months              [12]string         `json:"months"`

		// sorted by percentage, highest first
		Courses []CourseStat `json:"courses"`

		Requests []promissory.Request `json:"-"`
	}

	// AnalyticsFilter scopes the analytics; Course also restricts the enrolled students.
	AnalyticsFilter struct {
		Course       string
		Semester     string
		SemesterType promissory.SemesterType
		SchoolYear   string
		Status       promissory.Status // empty means all
	}

	StudentFilter struct {
		Search       string // first name, last name or "first last"
		Course       string
		YearLevel    string
		Semester     string
		SemesterType promissory.SemesterType
		SchoolYear   string
	}

	StudentSummary struct {
		Student       account.Account `json:"student"`
		RequestsCount int             `json:"requests_count"`
	}
)

func NewService(students StudentDirectory, requests RequestSource) *Service {
	return &Service{students: students, requests: requests}
}

func (f AnalyticsFilter) requestFilter() promissory.Filter {
	pf := promissory.Filter{
		Course:       f.Course,
		Semester:     f.Semester,
		SemesterType: f.SemesterType,
		SchoolYear:   f.SchoolYear,
	}
	if f.Status != "" {
		pf.Statuses = []promissory.Status{f.Status}
	}
	return pf
}

// Analytics loads the filtered requests and the enrolled students and aggregates them.
func (svc *Service) Analytics(ctx context.Context, f AnalyticsFilter) (Analytics, error) {
	students, err := svc.students.Students(ctx, account.QueryFilter{Course: f.Course})
	if err != nil {
		return Analytics{}, errors.Wrap(err, "loading students")
	}
	reqs, err := svc.requests.All(ctx, f.requestFilter())
	if err != nil {
		return Analytics{}, errors.Wrap(err, "loading requests")
	}
	return ComputeAnalytics(reqs, students), nil
}

// ComputeAnalytics aggregates requests per course and month of submission.
func ComputeAnalytics(reqs []promissory.Request, students []account.Account) Analytics {
	a := Analytics{
		TotalStudents:       len(students),
		MonthlyCourseCounts: make(map[string][12]int),
		TopCourse:           NoCourse,
		Months:              Months,
		Courses:             []CourseStat{},
		Requests:            reqs,
	}

	requesters := make(map[int]bool)
	courseRequesters := make(map[string]map[int]bool)
	for _, r := range reqs {
		requesters[r.StudentID] = true

		counts := a.MonthlyCourseCounts[r.Course]
		counts[r.RequestedAt.Month()-1]++
		a.MonthlyCourseCounts[r.Course] = counts

		if courseRequesters[r.Course] == nil {
			courseRequesters[r.Course] = make(map[int]bool)
		}
		courseRequesters[r.Course][r.StudentID] = true
	}
	a.TotalRequested = len(requesters)

	courses := make([]string, 0, len(a.MonthlyCourseCounts))
	for c := range a.MonthlyCourseCounts {
		courses = append(courses, c)
	}
	sort.Strings(courses)

	best := -1
	for _, c := range courses {
		counts := a.MonthlyCourseCounts[c]
		if total := sum(counts); total > best {
			best = total
			a.TopCourse = c
			a.TopCourseMonthly = counts
		}
	}

	enrolled := make(map[string]int)
	for _, s := range students {
		enrolled[s.Course]++
	}
	for _, c := range courses {
		stat := CourseStat{Course: c, Requested: len(courseRequesters[c]), Enrolled: enrolled[c]}
		if stat.Enrolled > 0 {
			stat.Percentage = round2(float64(stat.Requested) / float64(stat.Enrolled) * 100)
		}
		a.Courses = append(a.Courses, stat)
	}
	sort.SliceStable(a.Courses, func(i, j int) bool {
		return a.Courses[i].Percentage > a.Courses[j].Percentage
	})
	return a
}

func sum(counts [12]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// StudentSummaries counts the requests of every matching student, keeping those with at least one.
// Students are ordered by count (highest first) then last name.
func (svc *Service) StudentSummaries(ctx context.Context, f StudentFilter, page core.Page) ([]StudentSummary, core.Pagination, error) {
	students, err := svc.students.Students(ctx, account.QueryFilter{Course: f.Course, YearLevel: f.YearLevel})
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "loading students")
	}
	reqs, err := svc.requests.All(ctx, promissory.Filter{
		Semester:     f.Semester,
		SemesterType: f.SemesterType,
		SchoolYear:   f.SchoolYear,
		Course:       f.Course,
	})
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "loading requests")
	}

	all := SummarizeStudents(filterByName(students, f.Search), reqs)
	start, end := page.Window(len(all))
	return all[start:end], core.NewPagination(page, len(all)), nil
}

func filterByName(students []account.Account, search string) []account.Account {
	term := strings.ToLower(core.CleanString(search))
	if term == "" {
		return students
	}
	kept := students[:0:0]
	for _, s := range students {
		if strings.Contains(strings.ToLower(s.FirstName), term) ||
			strings.Contains(strings.ToLower(s.LastName), term) ||
			strings.Contains(strings.ToLower(s.DisplayName()), term) {
			kept = append(kept, s)
		}
	}
	return kept
}

func SummarizeStudents(students []account.Account, reqs []promissory.Request) []StudentSummary {
	counts := make(map[int]int)
	for _, r := range reqs {
		counts[r.StudentID]++
	}

	summaries := make([]StudentSummary, 0, len(counts))
	for _, s := range students {
		if n := counts[s.ID]; n > 0 {
			summaries = append(summaries, StudentSummary{Student: s, RequestsCount: n})
		}
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].RequestsCount != summaries[j].RequestsCount {
			return summaries[i].RequestsCount > summaries[j].RequestsCount
		}
		return summaries[i].Student.LastName < summaries[j].Student.LastName
	})
	return summaries
}

// SortSchoolYears orders "YYYY-YYYY" values by their leading year, oldest first.
func SortSchoolYears(years []string) []string {
	sorted := append([]string(nil), years...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return core.LeadingYear(sorted[i]) < core.LeadingYear(sorted[j])
	})
	return sorted
}

const dateLayout = "Jan 02, 2006"

// FormatDate renders submission dates the way the portal displays them.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
