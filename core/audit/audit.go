package audit

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
)

type Outcome string

const (
	Success Outcome = "Success"
	Failure Outcome = "Failure"
)

// Anonymous is the actor of actions performed without a session (e.g. a failed login).
const Anonymous = "Anonymous"

var NowFunc = time.Now // mockable

type (
	// Entry is one line of the append-only system log.
	Entry struct {
		ID        int       `json:"id"`
		UserName  string    `json:"user_name"`
		Action    string    `json:"action"`
		Outcome   Outcome   `json:"outcome"`
		Timestamp time.Time `json:"timestamp"`
	}

	// Filter does case-insensitive substring matches on the set fields.
	Filter struct {
		User   string
		Action string
	}

	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		// QueryEntries returns one page of matching entries, newest first, plus the total count.
		QueryEntries(ctx context.Context, f Filter, page core.Page) ([]Entry, int, error)
	}

	Service struct {
		repo Repository
	}
)

func (f Filter) Matches(e Entry) bool {
	if f.User != "" && !strings.Contains(strings.ToLower(e.UserName), strings.ToLower(f.User)) {
		return false
	}
	if f.Action != "" && !strings.Contains(strings.ToLower(e.Action), strings.ToLower(f.Action)) {
		return false
	}
	return true
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends an entry to the system log.
func (svc *Service) Record(ctx context.Context, user, action string, outcome Outcome) (Entry, error) {
	if user = core.CleanString(user); user == "" {
		user = Anonymous
	}
	e, err := svc.repo.CreateEntry(ctx, Entry{
		UserName:  user,
		Action:    core.CleanString(action),
		Outcome:   outcome,
		Timestamp: NowFunc().UTC(),
	})
	return e, errors.Wrap(err, "recording audit entry")
}

func (svc *Service) Query(ctx context.Context, f Filter, page core.Page) ([]Entry, core.Pagination, error) {
	f.User = core.CleanString(f.User)
	f.Action = core.CleanString(f.Action)
	entries, total, err := svc.repo.QueryEntries(ctx, f, page)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying audit entries")
	}
	return entries, core.NewPagination(page, total), nil
}
