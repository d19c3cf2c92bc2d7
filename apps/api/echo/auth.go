package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
)

const (
	sessionCookie     = "session"
	contextClaimsKey  = "claims"
	contextAccountKey = "account"
)

var signingMethod = jwt.SigningMethodHS256

// Claims represents the session carried by the `session` cookie.
type Claims struct {
	jwt.StandardClaims
	Role     account.Role `json:"role"`
	Name     string       `json:"name"`
	Remember bool         `json:"remember,omitempty"`
}

func (c Claims) AccountID() int {
	id, _ := strconv.Atoi(c.Subject)
	return id
}

func GetAccountClaims(acc account.Account, lifetime time.Duration, remember bool) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.Itoa(acc.ID),
			ExpiresAt: now.Add(lifetime).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role:     acc.Role,
		Name:     acc.DisplayName(),
		Remember: remember,
	}
}

// GenerateToken generates a signed JWT token string representing the account Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(tokenStr, secretKey string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.AccountID() == 0 {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// startSession sets the session cookie: persistent for RememberMeTimeout when asked to,
// a browser-session cookie otherwise.
func startSession(ctx echo.Context, conf *core.Config, acc account.Account, remember bool) error {
	lifetime := conf.Server.SessionTimeout
	if remember {
		lifetime = conf.Server.RememberMeTimeout
	}
	token, err := GenerateToken(GetAccountClaims(acc, lifetime, remember), conf.SecretKey)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.MaxAge = int(lifetime.Seconds())
	}
	ctx.SetCookie(cookie)
	return nil
}

func endSession(ctx echo.Context, conf *core.Config) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
	})
}

func getContextClaims(ctx echo.Context) (Claims, bool) {
	claims, ok := ctx.Get(contextClaimsKey).(*Claims)
	if !ok {
		return Claims{}, false
	}
	return *claims, true
}

// getContextAccount loads (once per request) the account behind the session.
func getContextAccount(ctx echo.Context, svc *account.Service) (account.Account, error) {
	if acc, ok := ctx.Get(contextAccountKey).(account.Account); ok {
		return acc, nil
	}
	claims, ok := getContextClaims(ctx)
	if !ok {
		return account.Account{}, errNotLoggedIn
	}
	acc, err := svc.Get(requestContext(ctx), claims.AccountID())
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return account.Account{}, errNotLoggedIn
		}
		return account.Account{}, errors.Wrap(err, "finding session account")
	}
	ctx.Set(contextAccountKey, acc)
	return acc, nil
}

func requestContext(ctx echo.Context) context.Context {
	return ctx.Request().Context()
}

// dashboardPath is where an account lands after logging in.
func dashboardPath(role account.Role) (string, bool) {
	switch role {
	case account.RoleAdmin:
		return "/admin/dashboard", true
	case account.RoleFinance:
		return "/finance/dashboard", true
	case account.RoleStudent:
		return "/student/dashboard", true
	}
	return "", false
}
