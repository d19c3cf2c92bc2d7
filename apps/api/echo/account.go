package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
)

type accountAPI struct {
	conf    *core.Config
	service *account.Service
}

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	Remember string `form:"remember"`
}

func (f loginForm) remember() bool {
	switch strings.ToLower(strings.TrimSpace(f.Remember)) {
	case "", "0", "false", "off":
		return false
	}
	return true
}

// registerAccountAPI adds the public routes with per-route middleware, leaving "/" and unknown paths unaudited.
func registerAccountAPI(e *echo.Echo, deps ServerDeps, m ...echo.MiddlewareFunc) {
	api := accountAPI{conf: deps.Conf, service: deps.AccountSvc}
	e.GET("/login", api.loginPage, m...)
	e.POST("/login", api.login, m...)
	e.GET("/logout", api.logout, m...)
	e.POST("/logout", api.logout, m...)
}

func (api accountAPI) loginPage(ctx echo.Context) error {
	if claims, ok := getContextClaims(ctx); ok {
		if path, ok := dashboardPath(claims.Role); ok {
			return ctx.Redirect(http.StatusFound, path)
		}
	}
	return render(ctx, echo.Map{"page": "login"})
}

func (api accountAPI) login(ctx echo.Context) error {
	var form loginForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}
	email := core.CleanString(form.Email, true /* lower */)

	acc, err := api.service.Authenticate(requestContext(ctx), email, form.Password)
	if err != nil {
		if errors.Cause(err) == account.ErrAuthenticationFailed {
			setAuditAction(ctx, "Failed login attempt for "+email)
			return redirectWith(ctx, "/login", levelDanger, "Invalid email or password")
		}
		return err
	}

	setAuditActor(ctx, acc.DisplayName())
	path, ok := dashboardPath(acc.Role)
	if !ok {
		setAuditAction(ctx, "Login with unknown role "+string(acc.Role))
		return redirectWith(ctx, "/login", levelDanger, "Unknown role. Contact administrator.")
	}
	if err = startSession(ctx, api.conf, acc, form.remember()); err != nil {
		return err
	}
	setAuditAction(ctx, "Logged in")
	return ctx.Redirect(redirectHTTPCode, path)
}

func (api accountAPI) logout(ctx echo.Context) error {
	endSession(ctx, api.conf)
	setAuditAction(ctx, "Logged out")
	return redirectWith(ctx, "/login", levelInfo, "You have been logged out.")
}
