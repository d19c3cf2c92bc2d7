package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/audit"
)

const (
	contextAuditActionKey = "auditAction"
	contextAuditActorKey  = "auditActor"
)

// sessionMiddleware loads the session claims (if any) into the context.
// An invalid or expired token is discarded.
func sessionMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cookie, err := ctx.Cookie(sessionCookie)
			if err != nil || cookie.Value == "" {
				return next(ctx)
			}
			claims, err := parseToken(cookie.Value, conf.SecretKey)
			if err != nil {
				endSession(ctx, conf)
				return next(ctx)
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func requireRole(deniedMsg string, roles ...account.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, ok := getContextClaims(ctx)
			if !ok {
				return errNotLoggedIn
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return redirectErr("/login", levelDanger, deniedMsg)
		}
	}
}

// activeStudentMiddleware turns inactive students away to the inactive notice page.
func activeStudentMiddleware(svc *account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			acc, err := getContextAccount(ctx, svc)
			if err != nil {
				return err
			}
			if !acc.IsActive() {
				return redirectErr("/student/inactive", levelWarning, msgInactive)
			}
			return next(ctx)
		}
	}
}

// audited marks a read route whose every visit goes to the system log.
func audited(action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			setAuditAction(ctx, action)
			return next(ctx)
		}
	}
}

func setAuditAction(ctx echo.Context, action string) {
	ctx.Set(contextAuditActionKey, action)
}

// setAuditActor names the actor of a request made before a session exists (login).
func setAuditActor(ctx echo.Context, name string) {
	ctx.Set(contextAuditActorKey, name)
}

// auditMiddleware appends one system log entry per mutating request and per audited read.
func auditMiddleware(svc *audit.Service, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			err := next(ctx)

			req := ctx.Request()
			action, _ := ctx.Get(contextAuditActionKey).(string)
			if action == "" {
				if req.Method == http.MethodGet || req.Method == http.MethodHead {
					return err
				}
				action = req.Method + " " + req.URL.Path
			}

			actor, _ := ctx.Get(contextAuditActorKey).(string)
			if claims, ok := getContextClaims(ctx); ok {
				actor = claims.Name
			}

			outcome := audit.Success
			if level, _ := ctx.Get(contextFlashKey).(string); err != nil || level == levelDanger || level == levelWarning {
				outcome = audit.Failure
			}
			if _, rerr := svc.Record(req.Context(), actor, action, outcome); rerr != nil {
				logger.Error("recording audit entry", errors.Wrap(rerr, action))
			}
			return err
		}
	}
}
