package echoapi

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
	"github.com/trezcool/promissory/core/settings"
)

const historyPageSize = 10

type studentAPI struct {
	conf     *core.Config
	accounts *account.Service
	requests *promissory.Service
	settings *settings.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentAPI{
		conf:     deps.Conf,
		accounts: deps.AccountSvc,
		requests: deps.PromissorySvc,
		settings: deps.SettingsSvc,
		validate: deps.Validate,
	}
	active := activeStudentMiddleware(deps.AccountSvc)

	g.GET("/inactive", api.inactive)
	g.GET("/dashboard", api.dashboard, active)
	g.GET("/request", api.requestForm, active)
	g.POST("/request", api.submit, active)
	g.GET("/history", api.history, active)
	g.POST("/delete_request/:id", api.withdraw, active)
	g.GET("/setup", api.setupForm, active)
	g.POST("/setup", api.setup, active)
	g.GET("/view_request/:id", api.viewRequest, active)
	g.GET("/view_request/:id/files/:category", api.attachment, active)
}

func (api studentAPI) inactive(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{"account": acc, "message": msgInactive})
}

func (api studentAPI) dashboard(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return err
	}
	dash, err := api.requests.StudentDashboard(requestContext(ctx), acc.ID)
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return render(ctx, echo.Map{
		"account":   acc,
		"dashboard": dash,
		"settings":  api.settings.Current(),
		"now":       time.Now().UTC(),
	})
}

func (api studentAPI) requestForm(ctx echo.Context) error {
	return render(ctx, echo.Map{
		"settings":           api.settings.Current(),
		"semester_types":     promissory.SemesterTypes,
		"allowed_extensions": api.conf.Uploads.AllowedExtensions,
		"max_upload_size":    api.conf.Uploads.MaxSize,
	})
}

// formUpload returns the uploaded file of the field, nil when none was sent.
func formUpload(ctx echo.Context, field string) (*promissory.Upload, func(), error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile || errors.Cause(err) == http.ErrNotMultipart {
			return nil, func() {}, nil
		}
		return nil, func() {}, errors.Wrapf(err, "reading %s", field)
	}
	if fh.Filename == "" {
		return nil, func() {}, nil
	}
	var file multipart.File
	if file, err = fh.Open(); err != nil {
		return nil, func() {}, errors.Wrapf(err, "opening %s", field)
	}
	return &promissory.Upload{Filename: fh.Filename, Size: fh.Size, Content: file}, func() { file.Close() }, nil
}

func (api studentAPI) submit(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return err
	}

	var nr promissory.NewRequest
	if err = ctx.Bind(&nr); err != nil {
		return err
	}
	if err = nr.Validate(api.validate); err != nil {
		return err
	}

	var closeReason, closeID func()
	if nr.ReasonDoc, closeReason, err = formUpload(ctx, "reason_doc"); err != nil {
		return err
	}
	defer closeReason()
	if nr.ValidID, closeID, err = formUpload(ctx, "valid_id"); err != nil {
		return err
	}
	defer closeID()

	req, err := api.requests.Submit(requestContext(ctx), acc, nr)
	if err != nil {
		if conflict, ok := errors.Cause(err).(*promissory.ConflictError); ok {
			level := levelDanger
			if conflict.Existing.Status == promissory.StatusApproved {
				level = levelInfo
			}
			setAuditAction(ctx, "Blocked promissory request: "+conflict.Error())
			return redirectWith(ctx, "/student/request", level, conflict.Error())
		}
		if errors.Cause(err) == promissory.ErrReasonRequired {
			return redirectWith(ctx, "/student/request", levelDanger, "Please provide a reason or upload a document.")
		}
		return err
	}

	setAuditAction(ctx, fmt.Sprintf("Submitted promissory request ID %d (%s, %s, %s)",
		req.ID, req.SemesterType, req.Semester, req.SchoolYear))
	return redirectWith(ctx, "/student/request", levelSuccess, "Your promissory request has been submitted.")
}

func (api studentAPI) history(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return err
	}

	status, err := parseStatusParam(optional(ctx, "status"))
	if err != nil {
		return err
	}
	semType, err := parseSemesterTypeParam(optional(ctx, "semester_type"))
	if err != nil {
		return err
	}
	filter := promissory.Filter{
		StudentID:    acc.ID,
		Semester:     optional(ctx, "semester"),
		SemesterType: semType,
		SchoolYear:   optional(ctx, "school_year"),
	}
	if status != "" {
		filter.Statuses = []promissory.Status{status}
	}

	reqs, meta, err := api.requests.Query(requestContext(ctx), filter, bindPage(ctx, historyPageSize))
	if err != nil {
		return err
	}
	opts, err := api.requests.Options(requestContext(ctx), acc.ID)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{
		"requests":       reqs,
		"pagination":     meta,
		"school_years":   opts.SchoolYears,
		"semesters":      settings.Semesters,
		"semester_types": promissory.SemesterTypes,
		"statuses":       promissory.Statuses,
		"filters": echo.Map{
			"status":        status,
			"semester":      filter.Semester,
			"semester_type": filter.SemesterType,
			"school_year":   filter.SchoolYear,
		},
	})
}

func (api studentAPI) withdraw(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return err
	}
	id, err := bindID(ctx)
	if err != nil {
		return redirectErr("/student/history", levelDanger, msgRequestMissing)
	}

	switch err = api.requests.Withdraw(requestContext(ctx), acc.ID, id); errors.Cause(err) {
	case nil:
	case promissory.ErrNotFound:
		return redirectWith(ctx, "/student/history", levelDanger, msgRequestMissing)
	case promissory.ErrNotPending:
		return redirectWith(ctx, "/student/history", levelWarning, "Only pending requests can be deleted.")
	default:
		return err
	}
	setAuditAction(ctx, fmt.Sprintf("Deleted pending request ID %d", id))
	return redirectWith(ctx, "/student/history", levelSuccess, "Pending request has been deleted.")
}

func (api studentAPI) setupForm(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{"account": acc})
}

func (api studentAPI) setup(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return err
	}

	var pu account.ProfileUpdate
	if err = ctx.Bind(&pu); err != nil {
		return err
	}
	if err = pu.Validate(acc, api.validate); err != nil {
		return err
	}

	acc, pwdChanged, err := api.accounts.UpdateProfile(requestContext(ctx), acc.ID, pu)
	if err != nil {
		if errors.Cause(err) == account.ErrEmailExists {
			return redirectWith(ctx, "/student/setup", levelDanger, "Email already exists.")
		}
		return err
	}

	// the session carries the display name
	claims, _ := getContextClaims(ctx)
	if err = startSession(ctx, api.conf, acc, claims.Remember); err != nil {
		return err
	}
	if pwdChanged {
		setAuditAction(ctx, "Updated password")
		return redirectWith(ctx, "/student/setup", levelSuccess, "Password updated successfully!")
	}
	setAuditAction(ctx, "Updated profile")
	return redirectWith(ctx, "/student/setup", levelSuccess, "Profile updated successfully!")
}

func (api studentAPI) getOwnRequest(ctx echo.Context) (promissory.Request, error) {
	acc, err := getContextAccount(ctx, api.accounts)
	if err != nil {
		return promissory.Request{}, err
	}
	id, err := bindID(ctx)
	if err != nil {
		return promissory.Request{}, redirectErr("/student/history", levelDanger, msgRequestMissing)
	}
	req, err := api.requests.GetOwned(requestContext(ctx), acc.ID, id)
	if err != nil {
		if errors.Cause(err) == promissory.ErrNotFound {
			return promissory.Request{}, redirectErr("/student/history", levelDanger, msgRequestMissing)
		}
		return promissory.Request{}, errors.Wrap(err, "finding request")
	}
	return req, nil
}

func (api studentAPI) viewRequest(ctx echo.Context) error {
	req, err := api.getOwnRequest(ctx)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{"request": req})
}

func (api studentAPI) attachment(ctx echo.Context) error {
	req, err := api.getOwnRequest(ctx)
	if err != nil {
		return err
	}
	return sendAttachment(ctx, api.requests, req)
}
