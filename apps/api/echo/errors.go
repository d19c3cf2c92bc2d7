package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
	"github.com/trezcool/promissory/core/settings"
	"github.com/trezcool/promissory/services/spreadsheet"
)

const (
	msgLoginRequired  = "Please log in first."
	msgAccessDenied   = "Access denied."
	msgAdminRequired  = "Admin access required."
	msgInactive       = "Your account is inactive. Please contact the admin."
	msgAccountMissing = "Account not found."
	msgNoteMissing    = "The selected promissory note was not found or has been deleted."
	msgRequestMissing = "Request not found."
)

// redirectError is answered with a 303 to Location, carrying Message as a flash notice.
type redirectError struct {
	Location string
	Level    string
	Message  string
}

func (e *redirectError) Error() string { return e.Message }

func redirectErr(location, level, msg string) error {
	return &redirectError{Location: location, Level: level, Message: msg}
}

var errNotLoggedIn = redirectErr("/login", levelWarning, msgLoginRequired)

// noticeFor maps domain errors to the notice shown to the user.
func noticeFor(err error) (int, string, bool) {
	switch errors.Cause(err) {
	case account.ErrNotFound:
		return http.StatusNotFound, msgAccountMissing, true
	case account.ErrEmailExists:
		return http.StatusConflict, "Email already exists.", true
	case account.ErrInvalidRole, account.ErrInvalidStatus:
		return http.StatusBadRequest, "Invalid role or status.", true
	case promissory.ErrNotFound:
		return http.StatusNotFound, msgNoteMissing, true
	case promissory.ErrNotPending:
		return http.StatusConflict, "Only pending requests can be changed.", true
	case promissory.ErrReasonRequired:
		return http.StatusBadRequest, "Please provide a reason or upload a document.", true
	case promissory.ErrUnsupportedAttachment:
		return http.StatusBadRequest, "Unsupported attachment type.", true
	case promissory.ErrAttachmentTooLarge:
		return http.StatusBadRequest, "The attachment is too large.", true
	case promissory.ErrAttachmentNotFound, promissory.ErrInvalidCategory:
		return http.StatusNotFound, "Attachment not found.", true
	case promissory.ErrInvalidSemesterType:
		return http.StatusBadRequest, "Invalid semester type.", true
	case promissory.ErrInvalidStatus:
		return http.StatusBadRequest, "Invalid request status.", true
	case settings.ErrCourseNameMissing:
		return http.StatusBadRequest, "Course name cannot be empty.", true
	case settings.ErrCourseNotFound:
		return http.StatusNotFound, "Course not found.", true
	case spreadsheet.ErrUnsupportedFileType:
		return http.StatusBadRequest, "Unsupported file type. Please use CSV or Excel.", true
	case spreadsheet.ErrEmptyFile:
		return http.StatusBadRequest, "The uploaded file is empty.", true
	case promissory.ErrStudentAccountRequired:
		return http.StatusForbidden, msgAccessDenied, true
	}
	return 0, "", false
}

func validationMessage(err error, translator ut.Translator) (string, []core.FieldError, bool) {
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		flds := core.TranslateValidationErrors(origErr, translator)
		return flds[0].Error, flds, true
	case *core.ValidationError:
		return origErr.Error(), origErr.Fields, true
	}
	return "", nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Form posts are answered with a redirect back to the form carrying a notice; page views with JSON.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}
		isForm := ctx.Request().Method != http.MethodGet && ctx.Request().Method != http.MethodHead

		var (
			code    int
			message interface{}
		)
		if redir, ok := errors.Cause(err).(*redirectError); ok {
			if err = redirectWith(ctx, redir.Location, redir.Level, redir.Message); err != nil {
				ctx.Echo().Logger.Error(err)
			}
			return
		}

		if msg, flds, ok := validationMessage(err, translator); ok {
			if isForm {
				if err = redirectWith(ctx, ctx.Request().URL.Path, levelDanger, msg); err != nil {
					ctx.Echo().Logger.Error(err)
				}
				return
			}
			fldErrs := make(map[string]string, len(flds))
			for _, f := range flds {
				fldErrs[f.Field] = f.Error
			}
			code, message = http.StatusBadRequest, echo.Map{"error": msg, "fields": fldErrs}
		} else if c, msg, ok := noticeFor(err); ok {
			if isForm {
				if err = redirectWith(ctx, ctx.Request().URL.Path, levelDanger, msg); err != nil {
					ctx.Echo().Logger.Error(err)
				}
				return
			}
			code, message = c, echo.Map{"error": msg}
		} else if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
			if herr.Internal != nil {
				if inner, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = inner
				}
			}
			code, message = herr.Code, echo.Map{"error": herr.Message}
		} else { // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = echo.Map{"error": msg}

			var acc account.Account
			if claims, ok := getContextClaims(ctx); ok {
				acc.ID = claims.AccountID()
				acc.FirstName = claims.Name
				acc.Role = claims.Role
			}
			logger.Error(msg, errors.Wrap(err, msg), acc)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = echo.Map{"error": err.Error()}
			}
		}

		// Send response
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
