package echoapi

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/promissory"
	"github.com/trezcool/promissory/core/report"
	"github.com/trezcool/promissory/core/settings"
)

const (
	notesPageSize    = 8
	studentsPageSize = 10
)

type financeAPI struct {
	requests *promissory.Service
	reports  *report.Service
	settings *settings.Service
	validate *validator.Validate
}

func registerFinanceAPI(g *echo.Group, deps ServerDeps) {
	api := financeAPI{
		requests: deps.PromissorySvc,
		reports:  deps.ReportSvc,
		settings: deps.SettingsSvc,
		validate: deps.Validate,
	}

	g.GET("/dashboard", api.dashboard, audited("Viewed finance dashboard"))
	g.GET("/promissory-notes", api.notes)
	g.GET("/all-promissory", api.analytics)
	g.GET("/students-promissory", api.students)
	g.POST("/promissory/:id/update", api.review)
	g.GET("/promissory/:id", api.note)
	g.GET("/promissory/:id/files/:category", api.attachment)
}

func parseStatusParam(s string) (promissory.Status, error) {
	if s == "" {
		return "", nil
	}
	return promissory.ParseStatus(s)
}

func parseSemesterTypeParam(s string) (promissory.SemesterType, error) {
	if s == "" {
		return "", nil
	}
	return promissory.ParseSemesterType(s)
}

func (api financeAPI) dashboard(ctx echo.Context) error {
	dash, err := api.requests.FinanceDashboard(requestContext(ctx))
	if err != nil {
		return errors.Wrap(err, "building finance dashboard")
	}
	return render(ctx, echo.Map{"dashboard": dash})
}

// notes lists requests; status defaults to Pending and the period to the active one.
func (api financeAPI) notes(ctx echo.Context) error {
	cur := api.settings.Current()

	status, err := parseStatusParam(defaulted(ctx, "status", string(promissory.StatusPending)))
	if err != nil {
		return err
	}
	semType, err := parseSemesterTypeParam(optional(ctx, "semester_type"))
	if err != nil {
		return err
	}
	filter := promissory.Filter{
		Search:       optional(ctx, "search"),
		Semester:     defaulted(ctx, "semester", cur.Semester),
		SemesterType: semType,
		SchoolYear:   defaulted(ctx, "school_year", cur.SchoolYear),
		Course:       optional(ctx, "course"),
	}
	if status != "" {
		filter.Statuses = []promissory.Status{status}
	}

	if format, ok := bindExport(ctx); ok {
		reqs, err := api.requests.All(requestContext(ctx), filter)
		if err != nil {
			return err
		}
		setAuditAction(ctx, fmt.Sprintf("Exported promissory requests (%s) with filters: status=%s, semester=%s, course=%s",
			formatLabel(format), orAll(string(status)), orAll(filter.Semester), orAll(filter.Course)))
		return sendTable(ctx, format, "promissory_requests", report.NotesTable(reqs))
	}

	reqs, meta, err := api.requests.Query(requestContext(ctx), filter, bindPage(ctx, notesPageSize))
	if err != nil {
		return err
	}
	opts, err := api.requests.Options(requestContext(ctx), 0)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{
		"requests":   reqs,
		"pagination": meta,
		"options":    opts,
		"statuses":   promissory.Statuses,
		"settings":   cur,
		"filters": echo.Map{
			"search":        filter.Search,
			"status":        status,
			"semester":      filter.Semester,
			"semester_type": filter.SemesterType,
			"school_year":   filter.SchoolYear,
			"course":        filter.Course,
		},
	})
}

func (api financeAPI) analytics(ctx echo.Context) error {
	cur := api.settings.Current()

	status, err := parseStatusParam(optional(ctx, "status"))
	if err != nil {
		return err
	}
	semType, err := parseSemesterTypeParam(optional(ctx, "semester_type"))
	if err != nil {
		return err
	}
	filter := report.AnalyticsFilter{
		Course:       optional(ctx, "course"),
		Semester:     defaulted(ctx, "semester", cur.Semester),
		SemesterType: semType,
		SchoolYear:   defaulted(ctx, "school_year", cur.SchoolYear),
		Status:       status,
	}

	stats, err := api.reports.Analytics(requestContext(ctx), filter)
	if err != nil {
		return err
	}
	if format, ok := bindExport(ctx); ok {
		setAuditAction(ctx, fmt.Sprintf("Exported promissory analytics (%s) with filters: status=%s, semester=%s, course=%s",
			formatLabel(format), orAll(string(status)), orAll(filter.Semester), orAll(filter.Course)))
		return sendTable(ctx, format, "promissory_analytics", report.AnalyticsTable(stats.Requests))
	}

	opts, err := api.requests.Options(requestContext(ctx), 0)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{
		"analytics":    stats,
		"requests":     stats.Requests,
		"options":      opts,
		"school_years": report.SortSchoolYears(opts.SchoolYears),
		"statuses":     promissory.Statuses,
		"settings":     cur,
		"filters": echo.Map{
			"status":        status,
			"semester":      filter.Semester,
			"semester_type": filter.SemesterType,
			"school_year":   filter.SchoolYear,
			"course":        filter.Course,
		},
	})
}

// students summarizes requests per student. The active period is only the default on the first page load.
func (api financeAPI) students(ctx echo.Context) error {
	cur := api.settings.Current()

	semType, err := parseSemesterTypeParam(optional(ctx, "semester_type"))
	if err != nil {
		return err
	}
	filter := report.StudentFilter{
		Search:       optional(ctx, "search"),
		Course:       optional(ctx, "course"),
		YearLevel:    optional(ctx, "year_level"),
		SemesterType: semType,
		Semester:     optional(ctx, "semester"),
		SchoolYear:   optional(ctx, "school_year"),
	}
	if ctx.QueryParam(pageParam) == "" {
		filter.Semester = defaulted(ctx, "semester", cur.Semester)
		filter.SchoolYear = defaulted(ctx, "school_year", cur.SchoolYear)
	}

	if format, ok := bindExport(ctx); ok {
		summaries, _, err := api.reports.StudentSummaries(requestContext(ctx), filter, core.AllRows)
		if err != nil {
			return err
		}
		setAuditAction(ctx, fmt.Sprintf("Exported students promissory summary (%s) with filters: semester=%s, school_year=%s, course=%s",
			formatLabel(format), orAll(filter.Semester), orAll(filter.SchoolYear), orAll(filter.Course)))
		return sendTable(ctx, format, "students_promissory", report.StudentsTable(summaries, filter))
	}

	summaries, meta, err := api.reports.StudentSummaries(requestContext(ctx), filter, bindPage(ctx, studentsPageSize))
	if err != nil {
		return err
	}
	opts, err := api.requests.Options(requestContext(ctx), 0)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{
		"students":   summaries,
		"pagination": meta,
		"options":    opts,
		"settings":   cur,
		"filters": echo.Map{
			"search":        filter.Search,
			"course":        filter.Course,
			"year_level":    filter.YearLevel,
			"semester":      filter.Semester,
			"semester_type": filter.SemesterType,
			"school_year":   filter.SchoolYear,
		},
	})
}

func (api financeAPI) getNote(ctx echo.Context) (promissory.Request, error) {
	id, err := bindID(ctx)
	if err != nil {
		return promissory.Request{}, redirectErr("/finance/promissory-notes", levelWarning, msgNoteMissing)
	}
	req, err := api.requests.Get(requestContext(ctx), id)
	if err != nil {
		if errors.Cause(err) == promissory.ErrNotFound {
			return promissory.Request{}, redirectErr("/finance/promissory-notes", levelWarning, msgNoteMissing)
		}
		return promissory.Request{}, errors.Wrap(err, "finding request")
	}
	return req, nil
}

func (api financeAPI) note(ctx echo.Context) error {
	if id, err := bindID(ctx); err == nil {
		setAuditAction(ctx, fmt.Sprintf("Viewed promissory note ID %d details", id))
	}
	req, err := api.getNote(ctx)
	if err != nil {
		return err
	}
	history, err := api.requests.All(requestContext(ctx), promissory.Filter{StudentID: req.StudentID})
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{"request": req, "history": history})
}

func (api financeAPI) review(ctx echo.Context) error {
	req, err := api.getNote(ctx)
	if err != nil {
		return err
	}
	notePath := fmt.Sprintf("/finance/promissory/%d", req.ID)

	var rv promissory.Review
	if err = ctx.Bind(&rv); err != nil {
		return err
	}
	if err = rv.Validate(api.validate); err != nil {
		return redirectErr(notePath, levelDanger, "Please choose to approve or reject the request.")
	}

	updated, oldStatus, err := api.requests.Review(requestContext(ctx), req.ID, rv)
	if err != nil {
		switch errors.Cause(err) {
		case promissory.ErrNotFound:
			return redirectErr("/finance/promissory-notes", levelWarning, msgNoteMissing)
		case promissory.ErrNotPending:
			return redirectErr(notePath, levelWarning, "Only pending requests can be reviewed.")
		}
		return err
	}

	// Approved | Rejected
	setAuditAction(ctx, fmt.Sprintf("%s promissory note ID %d (from %s to %s)", updated.Status, updated.ID, oldStatus, updated.Status))
	return redirectWith(ctx, notePath, levelSuccess, fmt.Sprintf("Promissory Note %s successfully.", updated.Status))
}

func (api financeAPI) attachment(ctx echo.Context) error {
	req, err := api.getNote(ctx)
	if err != nil {
		return err
	}
	return sendAttachment(ctx, api.requests, req)
}

func sendAttachment(ctx echo.Context, svc *promissory.Service, req promissory.Request) error {
	cat, err := promissory.ParseCategory(ctx.Param("category"))
	if err != nil {
		return err
	}
	path, err := svc.AttachmentPath(req, cat)
	if err != nil {
		return err
	}
	return ctx.Attachment(path, filepath.Base(path))
}

func orAll(s string) string {
	if s == "" {
		return report.All
	}
	return s
}
