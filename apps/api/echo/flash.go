package echoapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	flashCookie      = "flash"
	contextFlashKey  = "flashLevel"
	levelSuccess     = "success"
	levelInfo        = "info"
	levelWarning     = "warning"
	levelDanger      = "danger"
	redirectHTTPCode = http.StatusSeeOther
)

// Flash is a one-shot notice carried across a redirect.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func setFlash(ctx echo.Context, level, msg string) {
	data, _ := json.Marshal(Flash{Level: level, Message: msg})
	ctx.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    base64.URLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
	})
	ctx.Set(contextFlashKey, level)
}

// popFlash returns the pending notice (if any) and clears it.
func popFlash(ctx echo.Context) *Flash {
	cookie, err := ctx.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	ctx.SetCookie(&http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	data, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err = json.Unmarshal(data, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}

// redirectWith answers a form post with a 303 to path carrying the notice.
func redirectWith(ctx echo.Context, path, level, msg string) error {
	setFlash(ctx, level, msg)
	return ctx.Redirect(redirectHTTPCode, path)
}

// render answers a page view, attaching the pending notice and the session user.
func render(ctx echo.Context, view echo.Map) error {
	if view == nil {
		view = echo.Map{}
	}
	if f := popFlash(ctx); f != nil {
		view["notice"] = f
	}
	if claims, ok := getContextClaims(ctx); ok {
		view["session_user"] = echo.Map{"id": claims.AccountID(), "name": claims.Name, "role": claims.Role}
	}
	return ctx.JSON(http.StatusOK, view)
}
