package echoapi_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/promissory/apps/api/echo"
	"github.com/trezcool/promissory/apps/shared"
	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/audit"
	"github.com/trezcool/promissory/core/promissory"
	"github.com/trezcool/promissory/core/report"
	"github.com/trezcool/promissory/core/settings"
	appfs "github.com/trezcool/promissory/fs"
	emailsvc "github.com/trezcool/promissory/services/email"
	logsvc "github.com/trezcool/promissory/services/logger"
	dummydb "github.com/trezcool/promissory/storage/database/dummy"
	"github.com/trezcool/promissory/storage/files"
	"github.com/trezcool/promissory/testutil"
)

type testApp struct {
	t        *testing.T
	srv      *echoapi.Server
	conf     *core.Config
	repos    dummydb.Repositories
	settings *settings.Service
	requests *promissory.Service
	audit    *audit.Service
	mailer   *emailsvc.ConsoleServiceMock

	admin   account.Account
	finance account.Account
	student account.Account
}

func setup(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	conf := core.NewTestConfig(filepath.Join(t.TempDir(), "uploads"))
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	db, err := dummydb.Open()
	require.NoError(t, err)
	repos := db.Repositories()

	settingsSvc := settings.NewService(repos.Settings)
	require.NoError(t, settingsSvc.Load(ctx))
	_, err = settingsSvc.SetSemester(ctx, "First Semester")
	require.NoError(t, err)
	_, err = settingsSvc.SetSchoolYear(ctx, "2025-2026")
	require.NoError(t, err)

	store, err := files.NewDiskStore(conf.UploadDir, repos.Sequences)
	require.NoError(t, err)
	mailer := emailsvc.NewConsoleServiceMock(conf)

	accountSvc := account.NewService(repos.Accounts, settingsSvc, conf)
	promissorySvc := promissory.NewService(repos.Requests, store, settingsSvc, mailer, logger, conf)
	auditSvc := audit.NewService(repos.Audit)
	validate, translator := shared.NewValidator()

	app := &testApp{
		t:        t,
		conf:     conf,
		repos:    repos,
		settings: settingsSvc,
		requests: promissorySvc,
		audit:    auditSvc,
		mailer:   mailer,
	}
	app.srv = echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		AccountSvc:    accountSvc,
		SettingsSvc:   settingsSvc,
		PromissorySvc: promissorySvc,
		ReportSvc:     report.NewService(accountSvc, promissorySvc),
		AuditSvc:      auditSvc,
		Validate:      validate,
		Translator:    translator,
	})
	t.Cleanup(func() { _ = app.srv.Close() })

	app.admin = testutil.CreateAccount(t, repos.Accounts, "Ada", "Admin", "admin@example.com", "Admin-pass-123", account.RoleAdmin, account.StatusActive)
	app.finance = testutil.CreateAccount(t, repos.Accounts, "Fin", "Ance", "finance@example.com", "Finance-pass-123", account.RoleFinance, account.StatusActive)
	app.student = testutil.CreateAccount(t, repos.Accounts, "Jane", "Doe", "jane@example.com", "Student-pass-123", account.RoleStudent, account.StatusActive)
	return app
}

type httpTest struct {
	name         string
	method       string
	path         string
	form         url.Values
	session      string
	wantCode     int
	wantLocation string
	wantNotice   string
}

// sessionFor returns a valid session token of the account.
func (app *testApp) sessionFor(acc account.Account) string {
	app.t.Helper()
	token, err := echoapi.GenerateToken(echoapi.GetAccountClaims(acc, time.Hour, false), app.conf.SecretKey)
	require.NoError(app.t, err)
	return token
}

func newRequest(method, path string, form url.Values, session string) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: session})
	}
	return req
}

type upload struct {
	field, filename, content string
}

func newMultipartRequest(t *testing.T, path string, fields url.Values, session string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, vals := range fields {
		for _, v := range vals {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if session != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: session})
	}
	return req
}

func (app *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.srv.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newRequest(tt.method, tt.path, tt.form, tt.session))
			checkRedirect(t, tt, rec)
		})
	}
}

func checkRedirect(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantLocation != "" {
		assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
	}
	if tt.wantNotice != "" {
		assert.Equal(t, tt.wantNotice, flashOf(t, rec).Message)
	}
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func flashOf(t *testing.T, rec *httptest.ResponseRecorder) echoapi.Flash {
	t.Helper()
	cookie := responseCookie(rec, "flash")
	require.NotNil(t, cookie, "no flash cookie set")
	data, err := base64.URLEncoding.DecodeString(cookie.Value)
	require.NoError(t, err)
	var f echoapi.Flash
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (app *testApp) auditActions(t *testing.T) []audit.Entry {
	t.Helper()
	entries, _, err := app.audit.Query(context.Background(), audit.Filter{}, core.AllRows)
	require.NoError(t, err)
	return entries
}

func (app *testApp) countRequests(t *testing.T, f promissory.Filter) int {
	t.Helper()
	counts, err := app.requests.Count(context.Background(), f)
	require.NoError(t, err)
	return counts.Total
}
