package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/audit"
	"github.com/trezcool/promissory/core/report"
	"github.com/trezcool/promissory/core/settings"
	"github.com/trezcool/promissory/services/spreadsheet"
)

const (
	accountsPageSize = 10
	logsPageSize     = 10
)

type adminAPI struct {
	accounts *account.Service
	settings *settings.Service
	audit    *audit.Service
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminAPI{
		accounts: deps.AccountSvc,
		settings: deps.SettingsSvc,
		audit:    deps.AuditSvc,
		validate: deps.Validate,
	}

	g.GET("/dashboard", api.dashboard, audited("Viewed dashboard"))
	g.GET("/accounts", api.listAccounts, audited("Viewed accounts page"))
	g.GET("/add_new_account", api.newAccountForm)
	g.POST("/add_new_account", api.createAccount)
	g.GET("/edit_account/:id", api.editAccountForm)
	g.POST("/edit_account/:id", api.updateAccount)
	g.GET("/logs", api.logs)

	g.GET("/semester", api.semesterForm)
	g.POST("/semester", api.setSemester)
	g.GET("/school_year", api.schoolYearForm)
	g.POST("/school_year", api.setSchoolYear)
	g.GET("/course", api.courses)
	g.POST("/course", api.addCourse)
	g.POST("/course/delete/:id", api.deleteCourse)

	g.POST("/upload_accounts", api.uploadAccounts)
	g.GET("/download_template", api.downloadTemplate, audited("Downloaded account upload template"))
	g.GET("/export_csv", api.exportAccounts(spreadsheet.CSV), audited("Exported all accounts to CSV"))
	g.GET("/export_excel", api.exportAccounts(spreadsheet.Excel), audited("Exported all accounts to Excel"))
}

func (api adminAPI) accountFormOptions(ctx echo.Context, view echo.Map) (echo.Map, error) {
	courses, err := api.settings.CourseNames(requestContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}
	view["roles"] = account.Roles
	view["statuses"] = account.Statuses
	view["year_levels"] = account.YearLevels
	view["courses"] = courses
	return view, nil
}

func (api adminAPI) dashboard(ctx echo.Context) error {
	stats, err := api.accounts.Stats(requestContext(ctx))
	if err != nil {
		return errors.Wrap(err, "computing account stats")
	}
	return render(ctx, echo.Map{"stats": stats})
}

func (api adminAPI) listAccounts(ctx echo.Context) error {
	filter := account.QueryFilter{
		Search: optional(ctx, "search"),
	}
	if role := optional(ctx, "role"); role != "" {
		r, err := account.ParseRole(role)
		if err != nil {
			return err
		}
		filter.Role = r
	}
	if status := optional(ctx, "status"); status != "" {
		st, err := account.ParseStatus(status)
		if err != nil {
			return err
		}
		filter.Status = st
	}

	var ord Ordering
	ord.Bind(ctx)
	if len(ord.Orderings) == 0 {
		ord.Orderings = []core.DBOrdering{{Field: "id"}}
	}

	accs, meta, err := api.accounts.Query(requestContext(ctx), filter, ord.Orderings, bindPage(ctx, accountsPageSize))
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	return render(ctx, echo.Map{
		"accounts":   accs,
		"pagination": meta,
		"filters":    echo.Map{"search": filter.Search, "role": filter.Role, "status": filter.Status},
		"roles":      account.Roles,
		"statuses":   account.Statuses,
	})
}

func (api adminAPI) newAccountForm(ctx echo.Context) error {
	view, err := api.accountFormOptions(ctx, echo.Map{})
	if err != nil {
		return err
	}
	return render(ctx, view)
}

func (api adminAPI) createAccount(ctx echo.Context) error {
	var na account.NewAccount
	if err := ctx.Bind(&na); err != nil {
		return err
	}
	if err := na.Validate(api.validate); err != nil {
		return err
	}

	acc, pwd, err := api.accounts.Create(requestContext(ctx), na)
	if err != nil {
		if errors.Cause(err) == account.ErrEmailExists {
			return redirectWith(ctx, "/admin/add_new_account", levelDanger, "Email already exists.")
		}
		return err
	}
	setAuditAction(ctx, fmt.Sprintf("Added new account: %s (%s)", acc.FullName(), acc.Email))
	return redirectWith(ctx, "/admin/accounts", levelSuccess,
		fmt.Sprintf("Account for %s created successfully. Generated password: %s", acc.FullName(), pwd))
}

func (api adminAPI) getAccount(ctx echo.Context) (account.Account, error) {
	id, err := bindID(ctx)
	if err != nil {
		return account.Account{}, redirectErr("/admin/accounts", levelDanger, msgAccountMissing)
	}
	acc, err := api.accounts.Get(requestContext(ctx), id)
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return account.Account{}, redirectErr("/admin/accounts", levelDanger, msgAccountMissing)
		}
		return account.Account{}, errors.Wrap(err, "finding account")
	}
	return acc, nil
}

func (api adminAPI) editAccountForm(ctx echo.Context) error {
	acc, err := api.getAccount(ctx)
	if err != nil {
		return err
	}
	view, err := api.accountFormOptions(ctx, echo.Map{"account": acc})
	if err != nil {
		return err
	}
	return render(ctx, view)
}

func (api adminAPI) updateAccount(ctx echo.Context) error {
	acc, err := api.getAccount(ctx)
	if err != nil {
		return err
	}
	editPath := fmt.Sprintf("/admin/edit_account/%d", acc.ID)

	if ctx.FormValue("reset_password") != "" {
		acc, pwd, err := api.accounts.ResetPassword(requestContext(ctx), acc.ID)
		if err != nil {
			return err
		}
		setAuditAction(ctx, "Reset password for "+acc.FullName())
		return redirectWith(ctx, editPath, levelSuccess, "Password reset successfully. New password: "+pwd)
	}

	var ua account.UpdateAccount
	if err = ctx.Bind(&ua); err != nil {
		return err
	}
	if err = ua.Validate(api.validate); err != nil {
		return err
	}
	if acc, err = api.accounts.Update(requestContext(ctx), acc.ID, ua); err != nil {
		if errors.Cause(err) == account.ErrEmailExists {
			return redirectWith(ctx, editPath, levelDanger, "Email already exists.")
		}
		return err
	}
	setAuditAction(ctx, "Updated account: "+acc.FullName())
	return redirectWith(ctx, "/admin/accounts", levelSuccess, "Account updated successfully")
}

func (api adminAPI) logs(ctx echo.Context) error {
	filter := audit.Filter{
		User:   optional(ctx, "user"),
		Action: optional(ctx, "action"),
	}
	entries, meta, err := api.audit.Query(requestContext(ctx), filter, bindPage(ctx, logsPageSize))
	if err != nil {
		return errors.Wrap(err, "querying system logs")
	}
	return render(ctx, echo.Map{
		"logs":       entries,
		"pagination": meta,
		"filters":    echo.Map{"user": filter.User, "action": filter.Action},
	})
}

func (api adminAPI) semesterForm(ctx echo.Context) error {
	return render(ctx, echo.Map{"settings": api.settings.Current(), "semesters": settings.Semesters})
}

func (api adminAPI) setSemester(ctx echo.Context) error {
	var form settings.SemesterForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}
	if err := form.Validate(api.validate); err != nil {
		return err
	}
	old, err := api.settings.SetSemester(requestContext(ctx), form.Semester)
	if err != nil {
		return errors.Wrap(err, "setting active semester")
	}
	setAuditAction(ctx, fmt.Sprintf("Changed semester from '%s' to '%s'", old, form.Semester))
	return redirectWith(ctx, "/admin/semester", levelSuccess, "Active semester updated successfully!")
}

func (api adminAPI) schoolYearForm(ctx echo.Context) error {
	return render(ctx, echo.Map{"settings": api.settings.Current()})
}

func (api adminAPI) setSchoolYear(ctx echo.Context) error {
	var form settings.SchoolYearForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}
	if err := form.Validate(api.validate); err != nil {
		return err
	}
	old, err := api.settings.SetSchoolYear(requestContext(ctx), form.SchoolYear)
	if err != nil {
		return errors.Wrap(err, "setting active school year")
	}
	setAuditAction(ctx, fmt.Sprintf("Changed school year from '%s' to '%s'", old, form.SchoolYear))
	return redirectWith(ctx, "/admin/school_year", levelSuccess, "Active school year updated successfully!")
}

func (api adminAPI) courses(ctx echo.Context) error {
	courses, err := api.settings.Courses(requestContext(ctx))
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return render(ctx, echo.Map{"courses": courses})
}

func (api adminAPI) addCourse(ctx echo.Context) error {
	var form settings.CourseForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}
	if err := form.Validate(api.validate); err != nil {
		return err
	}

	course, err := api.settings.AddCourse(requestContext(ctx), form.Name)
	switch errors.Cause(err) {
	case nil:
	case settings.ErrCourseNameMissing:
		return redirectWith(ctx, "/admin/course", levelDanger, "Course name cannot be empty.")
	case settings.ErrCourseExists:
		return redirectWith(ctx, "/admin/course", levelWarning, fmt.Sprintf("Course '%s' is already active.", form.Name))
	default:
		return errors.Wrap(err, "adding course")
	}
	setAuditAction(ctx, fmt.Sprintf("Added new course '%s'", course.Name))
	return redirectWith(ctx, "/admin/course", levelSuccess,
		fmt.Sprintf("Course '%s' added to active list successfully!", course.Name))
}

func (api adminAPI) deleteCourse(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return redirectErr("/admin/course", levelDanger, "Course not found.")
	}
	course, err := api.settings.RemoveCourse(requestContext(ctx), id)
	if err != nil {
		if errors.Cause(err) == settings.ErrCourseNotFound {
			return redirectWith(ctx, "/admin/course", levelDanger, "Course not found.")
		}
		return errors.Wrap(err, "removing course")
	}
	setAuditAction(ctx, fmt.Sprintf("Deleted course '%s'", course.Name))
	return redirectWith(ctx, "/admin/course", levelSuccess, fmt.Sprintf("Course '%s' removed from active list.", course.Name))
}

// uploadAccounts imports a CSV/XLSX file of accounts.
// The generated credentials are only ever shown in this response.
func (api adminAPI) uploadAccounts(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return redirectWith(ctx, "/admin/accounts", levelDanger, "No file selected.")
		}
		return redirectWith(ctx, "/admin/accounts", levelDanger, "Upload failed: "+err.Error())
	}
	if fh.Filename == "" {
		return redirectWith(ctx, "/admin/accounts", levelDanger, "No file selected.")
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	table, err := spreadsheet.ReadTable(fh.Filename, file)
	if err != nil {
		if errors.Cause(err) == spreadsheet.ErrUnsupportedFileType {
			return redirectWith(ctx, "/admin/accounts", levelDanger, "Unsupported file type. Please use CSV or Excel.")
		}
		return redirectWith(ctx, "/admin/accounts", levelDanger, "Upload failed: "+err.Error())
	}

	result, err := api.accounts.Import(requestContext(ctx), table)
	if err != nil {
		return redirectWith(ctx, "/admin/accounts", levelDanger, "Upload failed: "+errors.Cause(err).Error())
	}
	if len(result.Created) == 0 {
		return redirectWith(ctx, "/admin/accounts", levelWarning, "No new accounts were added (all emails exist or invalid).")
	}

	setAuditAction(ctx, account.ImportSummary(result))
	ctx.Set(contextFlashKey, levelSuccess)
	return ctx.JSON(http.StatusOK, echo.Map{
		"notice":  Flash{Level: levelSuccess, Message: fmt.Sprintf("Successfully uploaded %d accounts.", len(result.Created))},
		"created": result.Created,
		"skipped": result.Skipped,
	})
}

func (api adminAPI) downloadTemplate(ctx echo.Context) error {
	return sendTable(ctx, spreadsheet.CSV, "account_upload_template", report.TemplateTable())
}

func (api adminAPI) exportAccounts(f spreadsheet.Format) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		accs, err := api.accounts.All(requestContext(ctx))
		if err != nil {
			return errors.Wrap(err, "listing accounts")
		}
		return sendTable(ctx, f, "accounts", report.AccountsTable(accs))
	}
}
