package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/promissory"
)

type requestRepository struct {
	db       *requestTable
	accounts *accountTable
}

var _ promissory.Repository = (*requestRepository)(nil) // interface compliance check

func NewRequestRepository(db *DB) *requestRepository {
	return &requestRepository{db: db.request, accounts: db.account}
}

// withStudent joins the owning account's name, as the SQL repository does.
func (repo *requestRepository) withStudent(r promissory.Request) promissory.Request {
	repo.accounts.RLock()
	defer repo.accounts.RUnlock()

	if acc, ok := repo.accounts.table[r.StudentID]; ok {
		r.Student = promissory.Student{
			FirstName:  acc.FirstName,
			MiddleName: acc.MiddleName,
			LastName:   acc.LastName,
			Suffix:     acc.Suffix,
		}
	}
	return r
}

// query must be called with the lock held.
func (repo *requestRepository) query() []promissory.Request {
	reqs := make([]promissory.Request, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		reqs = append(reqs, repo.withStudent(*r))
	}
	// newest first
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].RequestedAt.Equal(reqs[j].RequestedAt) {
			return reqs[i].RequestedAt.After(reqs[j].RequestedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})
	return reqs
}

// findLive must be called with the lock held.
func (repo *requestRepository) findLive(studentID int, p promissory.Period) (promissory.Request, bool) {
	for _, r := range repo.query() {
		if r.StudentID == studentID && r.Period() == p && r.Status.IsLive() {
			return r, true
		}
	}
	return promissory.Request{}, false
}

func (repo *requestRepository) CreateRequest(_ context.Context, r promissory.Request) (promissory.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if r.Status.IsLive() {
		if _, found := repo.findLive(r.StudentID, r.Period()); found {
			return promissory.Request{}, promissory.ErrActiveRequestExists
		}
	}
	repo.db.pk++
	r.ID = repo.db.pk
	repo.db.table[r.ID] = &r
	return repo.withStudent(r), nil
}

func (repo *requestRepository) GetRequest(_ context.Context, id int) (promissory.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return repo.withStudent(*r), nil
	}
	return promissory.Request{}, promissory.ErrNotFound
}

func (repo *requestRepository) FindLiveRequest(_ context.Context, studentID int, p promissory.Period) (promissory.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, found := repo.findLive(studentID, p); found {
		return r, nil
	}
	return promissory.Request{}, promissory.ErrNotFound
}

func (repo *requestRepository) ReviewRequest(
	_ context.Context,
	id int,
	status promissory.Status,
	comments string,
	at time.Time,
) (promissory.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[id]
	if !ok {
		return promissory.Request{}, promissory.ErrNotFound
	}
	if r.Status != promissory.StatusPending {
		return promissory.Request{}, promissory.ErrNotPending
	}
	r.Status = status
	r.Comments = comments
	r.UpdatedAt = at
	return repo.withStudent(*r), nil
}

func (repo *requestRepository) DeleteRequest(_ context.Context, id, studentID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[id]
	if !ok || r.StudentID != studentID {
		return promissory.ErrNotFound
	}
	if r.Status != promissory.StatusPending {
		return promissory.ErrNotPending
	}
	delete(repo.db.table, id)
	return nil
}

// filter must be called with the lock held.
func (repo *requestRepository) filter(f promissory.Filter) []promissory.Request {
	var reqs []promissory.Request
	for _, r := range repo.query() {
		if f.Matches(r) {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

func (repo *requestRepository) QueryRequests(_ context.Context, f promissory.Filter, page core.Page) ([]promissory.Request, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := repo.filter(f)
	start, end := page.Window(len(reqs))
	return append([]promissory.Request{}, reqs[start:end]...), len(reqs), nil
}

func (repo *requestRepository) CountRequests(_ context.Context, f promissory.Filter) (promissory.StatusCounts, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var counts promissory.StatusCounts
	for _, r := range repo.filter(f) {
		counts.Add(r.Status, 1)
	}
	return counts, nil
}

func (repo *requestRepository) FilterOptions(_ context.Context, studentID int) (promissory.FilterOptions, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	semesters, semTypes, years, courses := set{}, set{}, set{}, set{}
	for _, r := range repo.filter(promissory.Filter{StudentID: studentID}) {
		semesters[r.Semester] = true
		semTypes[string(r.SemesterType)] = true
		years[r.SchoolYear] = true
		courses[r.Course] = true
	}

	opts := promissory.FilterOptions{
		Semesters:     semesters.sorted(),
		SemesterTypes: semTypes.sorted(),
		SchoolYears:   years.sorted(),
		Courses:       courses.sorted(),
	}
	sort.SliceStable(opts.SchoolYears, func(i, j int) bool {
		return core.LeadingYear(opts.SchoolYears[i]) > core.LeadingYear(opts.SchoolYears[j])
	})
	return opts, nil
}

type set map[string]bool

func (s set) sorted() []string {
	values := make([]string, 0, len(s))
	for v := range s {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
