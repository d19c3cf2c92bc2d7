package promissory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/settings"
)

var (
	// errors
	ErrNotFound               = errors.New("request not found")
	ErrNotPending             = errors.New("request is no longer pending")
	ErrActiveRequestExists    = errors.New("a pending or approved request already exists for this period")
	ErrReasonRequired         = errors.New("a reason or a reason document is required")
	ErrInvalidStatus          = errors.New("invalid request status")
	ErrInvalidSemesterType    = errors.New("invalid semester type")
	ErrInvalidCategory        = errors.New("invalid attachment category")
	ErrUnsupportedAttachment  = errors.New("unsupported attachment type")
	ErrAttachmentTooLarge     = errors.New("attachment is too large")
	ErrAttachmentNotFound     = errors.New("attachment not found")
	ErrStudentAccountRequired = errors.New("only students can submit requests")

	NowFunc = time.Now // mockable
)

// ConflictError is returned by Submit when a live request already covers the period.
type ConflictError struct {
	Existing Request
}

func (e *ConflictError) Error() string {
	if e.Existing.Status == StatusApproved {
		return fmt.Sprintf("Your %s request for %s (%s) is already approved.",
			e.Existing.SemesterType, e.Existing.Semester, e.Existing.SchoolYear)
	}
	return fmt.Sprintf("You already have a pending %s request for %s (%s).",
		e.Existing.SemesterType, e.Existing.Semester, e.Existing.SchoolYear)
}

type (
	Repository interface {
		// CreateRequest fails with ErrActiveRequestExists when a live request covers the same period.
		CreateRequest(ctx context.Context, r Request) (Request, error)
		GetRequest(ctx context.Context, id int) (Request, error)
		// FindLiveRequest returns the latest Pending or Approved request of the student for the period.
		FindLiveRequest(ctx context.Context, studentID int, p Period) (Request, error)
		// ReviewRequest moves a Pending request to status; ErrNotPending otherwise.
		ReviewRequest(ctx context.Context, id int, status Status, comments string, at time.Time) (Request, error)
		// DeleteRequest removes a Pending request owned by the student; ErrNotFound / ErrNotPending otherwise.
		DeleteRequest(ctx context.Context, id, studentID int) error
		// QueryRequests returns one page of matching requests, newest first, plus the total count.
		QueryRequests(ctx context.Context, f Filter, page core.Page) ([]Request, int, error)
		CountRequests(ctx context.Context, f Filter) (StatusCounts, error)
		FilterOptions(ctx context.Context, studentID int) (FilterOptions, error)
	}

	// AttachmentStore keeps uploaded files under a per-student namespace.
	AttachmentStore interface {
		Save(ctx context.Context, studentID int, cat Category, ext string, r io.Reader) (string, error)
		// Path resolves a stored path to a local file path.
		Path(stored string) (string, error)
		Remove(stored string) error
	}

	// SettingsProvider gives the active academic period.
	SettingsProvider interface {
		Current() settings.ActiveSettings
	}

	Service struct {
		repo     Repository
		files    AttachmentStore
		settings SettingsProvider
		mailSvc  core.EmailService
		logger   core.Logger
		conf     *core.Config
	}
)

func NewService(
	repo Repository,
	files AttachmentStore,
	settingsProvider SettingsProvider,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		files:    files,
		settings: settingsProvider,
		mailSvc:  mailSvc,
		logger:   logger,
		conf:     conf,
	}
}

// CurrentPeriod is the period a submission of semType would be filed against right now.
func (svc *Service) CurrentPeriod(semType SemesterType) Period {
	cur := svc.settings.Current()
	return Period{Semester: cur.Semester, SemesterType: semType, SchoolYear: cur.SchoolYear}
}

func (svc *Service) checkUpload(up *Upload) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Filename), "."))
	allowed := false
	for _, a := range svc.conf.Uploads.AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", ErrUnsupportedAttachment
	}
	if svc.conf.Uploads.MaxSize > 0 && up.Size > svc.conf.Uploads.MaxSize {
		return "", ErrAttachmentTooLarge
	}
	return ext, nil
}

// Submit files a new Pending request for the student against the active settings.
func (svc *Service) Submit(ctx context.Context, student account.Account, nr NewRequest) (Request, error) {
	if !student.IsStudent() {
		return Request{}, ErrStudentAccountRequired
	}
	semType, err := ParseSemesterType(nr.SemesterType)
	if err != nil {
		return Request{}, err
	}
	period := svc.CurrentPeriod(semType)

	existing, err := svc.repo.FindLiveRequest(ctx, student.ID, period)
	switch {
	case err == nil:
		return Request{}, &ConflictError{Existing: existing}
	case pkgerrors.Cause(err) != ErrNotFound:
		return Request{}, pkgerrors.Wrap(err, "finding live request")
	}

	reasonText := core.CleanString(nr.ReasonText)
	if reasonText == "" && nr.ReasonDoc == nil {
		return Request{}, ErrReasonRequired
	}

	uploads := []struct {
		cat Category
		up  *Upload
		dst *string
	}{
		{CategoryReason, nr.ReasonDoc, new(string)},
		{CategoryValidID, nr.ValidID, new(string)},
	}
	exts := make([]string, len(uploads))
	for i, u := range uploads {
		if u.up == nil {
			continue
		}
		if exts[i], err = svc.checkUpload(u.up); err != nil {
			return Request{}, err
		}
	}

	var saved []string
	cleanup := func() {
		for _, p := range saved {
			if rmErr := svc.files.Remove(p); rmErr != nil {
				svc.logger.Warn(fmt.Sprintf("removing attachment %s: %v", p, rmErr), rmErr)
			}
		}
	}
	for i, u := range uploads {
		if u.up == nil {
			continue
		}
		p, err := svc.files.Save(ctx, student.ID, u.cat, exts[i], u.up.Content)
		if err != nil {
			cleanup()
			return Request{}, pkgerrors.Wrap(err, "saving attachment")
		}
		saved = append(saved, p)
		*u.dst = p
	}

	now := NowFunc().UTC()
	req, err := svc.repo.CreateRequest(ctx, Request{
		StudentID:    student.ID,
		YearLevel:    student.YearLevel,
		Course:       student.Course,
		Email:        student.Email,
		ReasonText:   reasonText,
		ReasonDoc:    *uploads[0].dst,
		ValidID:      *uploads[1].dst,
		Semester:     period.Semester,
		SemesterType: period.SemesterType,
		SchoolYear:   period.SchoolYear,
		Status:       StatusPending,
		RequestedAt:  now,
		UpdatedAt:    now,
	})
	if err != nil {
		cleanup()
		if pkgerrors.Cause(err) == ErrActiveRequestExists {
			// lost a race against a concurrent submission for the same period
			return Request{}, &ConflictError{Existing: Request{
				Status:       StatusPending,
				Semester:     period.Semester,
				SemesterType: period.SemesterType,
				SchoolYear:   period.SchoolYear,
			}}
		}
		return Request{}, pkgerrors.Wrap(err, "creating request")
	}
	return req, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Request, error) {
	return svc.repo.GetRequest(ctx, id)
}

// GetOwned returns the request only when it belongs to the student.
func (svc *Service) GetOwned(ctx context.Context, studentID, id int) (Request, error) {
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.StudentID != studentID {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// Review records a finance decision on a Pending request and notifies the student.
// It returns the updated request and its previous status.
func (svc *Service) Review(ctx context.Context, id int, rv Review) (Request, Status, error) {
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, "", err
	}
	oldStatus := req.Status
	if oldStatus != StatusPending {
		return Request{}, oldStatus, ErrNotPending
	}

	req, err = svc.repo.ReviewRequest(ctx, id, rv.Status(), rv.Comments, NowFunc().UTC())
	if err != nil {
		return Request{}, oldStatus, err
	}
	svc.notifyReviewed(req)
	return req, oldStatus, nil
}

func (svc *Service) notifyReviewed(req Request) {
	if svc.mailSvc == nil || req.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: req.Student.Name(), Address: req.Email}},
		Subject:      fmt.Sprintf("Your promissory request was %s", strings.ToLower(string(req.Status))),
		TemplateName: "request_reviewed",
		TemplateData: struct {
			RequestID    int
			StudentName  string
			Semester     string
			SemesterType SemesterType
			SchoolYear   string
			Status       string
			Comments     string
		}{
			RequestID:    req.ID,
			StudentName:  req.Student.Name(),
			Semester:     req.Semester,
			SemesterType: req.SemesterType,
			SchoolYear:   req.SchoolYear,
			Status:       strings.ToLower(string(req.Status)),
			Comments:     req.Comments,
		},
	}
	svc.mailSvc.SendMessages(msg)
}

// Withdraw deletes a Pending request owned by the student, along with its attachments.
func (svc *Service) Withdraw(ctx context.Context, studentID, id int) error {
	req, err := svc.GetOwned(ctx, studentID, id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrNotPending
	}
	if err = svc.repo.DeleteRequest(ctx, id, studentID); err != nil {
		return err
	}
	for _, p := range []string{req.ReasonDoc, req.ValidID} {
		if p == "" {
			continue
		}
		if rmErr := svc.files.Remove(p); rmErr != nil {
			svc.logger.Warn(fmt.Sprintf("removing attachment %s: %v", p, rmErr), rmErr)
		}
	}
	return nil
}

// AttachmentPath resolves the local file of one of the request's attachments.
func (svc *Service) AttachmentPath(req Request, cat Category) (string, error) {
	stored := req.Attachment(cat)
	if stored == "" {
		return "", ErrAttachmentNotFound
	}
	return svc.files.Path(stored)
}

// Query returns one page of requests, newest first.
func (svc *Service) Query(ctx context.Context, f Filter, page core.Page) ([]Request, core.Pagination, error) {
	f.Clean()
	reqs, total, err := svc.repo.QueryRequests(ctx, f, page)
	if err != nil {
		return nil, core.Pagination{}, pkgerrors.Wrap(err, "querying requests")
	}
	return reqs, core.NewPagination(page, total), nil
}

// All returns every request matching the filter, newest first.
func (svc *Service) All(ctx context.Context, f Filter) ([]Request, error) {
	reqs, _, err := svc.Query(ctx, f, core.AllRows)
	return reqs, err
}

func (svc *Service) Count(ctx context.Context, f Filter) (StatusCounts, error) {
	f.Clean()
	counts, err := svc.repo.CountRequests(ctx, f)
	return counts, pkgerrors.Wrap(err, "counting requests")
}

// Options lists distinct stored values, restricted to a student when studentID is set.
func (svc *Service) Options(ctx context.Context, studentID int) (FilterOptions, error) {
	opts, err := svc.repo.FilterOptions(ctx, studentID)
	return opts, pkgerrors.Wrap(err, "listing filter options")
}

type StudentDashboard struct {
	Total      int       `json:"total_requests"`
	Pending    int       `json:"pending_requests"`
	Recent     []Request `json:"recent_requests"` // last 5 Approved/Rejected
	Rejected   []Request `json:"rejected_requests"`
	Incomplete []Request `json:"incomplete_requests"`
}

func (svc *Service) StudentDashboard(ctx context.Context, studentID int) (StudentDashboard, error) {
	var dash StudentDashboard

	counts, err := svc.Count(ctx, Filter{StudentID: studentID})
	if err != nil {
		return dash, err
	}
	dash.Total, dash.Pending = counts.Total, counts.Pending

	if dash.Recent, _, err = svc.Query(ctx, Filter{
		StudentID: studentID,
		Statuses:  []Status{StatusApproved, StatusRejected},
	}, core.NewPage(1, 5)); err != nil {
		return dash, err
	}
	if dash.Rejected, err = svc.All(ctx, Filter{StudentID: studentID, Statuses: []Status{StatusRejected}}); err != nil {
		return dash, err
	}
	if dash.Incomplete, err = svc.All(ctx, Filter{StudentID: studentID, Incomplete: true}); err != nil {
		return dash, err
	}
	return dash, nil
}

type FinanceDashboard struct {
	Settings      settings.ActiveSettings `json:"settings"`
	Counts        StatusCounts            `json:"counts"`
	RecentPending []Request               `json:"recent_pending"`
}

// FinanceDashboard summarizes the active period.
func (svc *Service) FinanceDashboard(ctx context.Context) (FinanceDashboard, error) {
	cur := svc.settings.Current()
	dash := FinanceDashboard{Settings: cur}

	var err error
	scope := Filter{Semester: cur.Semester, SchoolYear: cur.SchoolYear}
	if dash.Counts, err = svc.Count(ctx, scope); err != nil {
		return dash, err
	}
	scope.Statuses = []Status{StatusPending}
	if dash.RecentPending, _, err = svc.Query(ctx, scope, core.NewPage(1, 5)); err != nil {
		return dash, err
	}
	return dash, nil
}
