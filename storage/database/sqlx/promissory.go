package sqlxrepos

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/promissory"
)

const (
	requestActiveKey = "promissory_request_active_key"

	requestSelect = `SELECT r.id, r.student_id, r.year_level, r.course, r.email, r.reason_text, r.reason_doc, r.valid_id,
		r.semester, r.semester_type, r.school_year, r.status, r.comments, r.requested_at, r.updated_at,
		a.first_name AS student_first_name, a.middle_name AS student_middle_name,
		a.last_name AS student_last_name, a.suffix AS student_suffix
	FROM promissory_request r
	JOIN account a ON a.id = r.student_id`
)

type requestRow struct {
	ID           int         `db:"id"`
	StudentID    int         `db:"student_id"`
	YearLevel    string      `db:"year_level"`
	Course       string      `db:"course"`
	Email        string      `db:"email"`
	ReasonText   string      `db:"reason_text"`
	ReasonDoc    null.String `db:"reason_doc"`
	ValidID      null.String `db:"valid_id"`
	Semester     string      `db:"semester"`
	SemesterType string      `db:"semester_type"`
	SchoolYear   string      `db:"school_year"`
	Status       string      `db:"status"`
	Comments     string      `db:"comments"`
	RequestedAt  time.Time   `db:"requested_at"`
	UpdatedAt    time.Time   `db:"updated_at"`

	StudentFirstName  string      `db:"student_first_name"`
	StudentMiddleName null.String `db:"student_middle_name"`
	StudentLastName   string      `db:"student_last_name"`
	StudentSuffix     null.String `db:"student_suffix"`
}

func (row requestRow) request() promissory.Request {
	return promissory.Request{
		ID:        row.ID,
		StudentID: row.StudentID,
		Student: promissory.Student{
			FirstName:  row.StudentFirstName,
			MiddleName: row.StudentMiddleName.String,
			LastName:   row.StudentLastName,
			Suffix:     row.StudentSuffix.String,
		},
		YearLevel:    row.YearLevel,
		Course:       row.Course,
		Email:        row.Email,
		ReasonText:   row.ReasonText,
		ReasonDoc:    row.ReasonDoc.String,
		ValidID:      row.ValidID.String,
		Semester:     row.Semester,
		SemesterType: promissory.SemesterType(row.SemesterType),
		SchoolYear:   row.SchoolYear,
		Status:       promissory.Status(row.Status),
		Comments:     row.Comments,
		RequestedAt:  row.RequestedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type requestRepository struct {
	db *sqlx.DB
}

var _ promissory.Repository = (*requestRepository)(nil) // interface compliance check

func NewRequestRepository(db *sqlx.DB) *requestRepository {
	return &requestRepository{db: db}
}

func (repo requestRepository) CreateRequest(ctx context.Context, r promissory.Request) (promissory.Request, error) {
	var id int
	err := repo.db.QueryRowxContext(ctx, `INSERT INTO promissory_request (student_id, year_level, course, email,
			reason_text, reason_doc, valid_id, semester, semester_type, school_year, status, comments, requested_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		r.StudentID, r.YearLevel, r.Course, r.Email,
		r.ReasonText, null.NewString(r.ReasonDoc, r.ReasonDoc != ""), null.NewString(r.ValidID, r.ValidID != ""),
		r.Semester, string(r.SemesterType), r.SchoolYear, string(r.Status), r.Comments,
		r.RequestedAt.UTC(), r.UpdatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, requestActiveKey) {
			return promissory.Request{}, promissory.ErrActiveRequestExists
		}
		return promissory.Request{}, errors.Wrap(err, "inserting request")
	}
	return repo.GetRequest(ctx, id)
}

func (repo requestRepository) GetRequest(ctx context.Context, id int) (promissory.Request, error) {
	var row requestRow
	if err := repo.db.GetContext(ctx, &row, requestSelect+" WHERE r.id = $1", id); err != nil {
		return promissory.Request{}, trapNoRowsErr(err, promissory.ErrNotFound, "finding request")
	}
	return row.request(), nil
}

func (repo requestRepository) FindLiveRequest(ctx context.Context, studentID int, p promissory.Period) (promissory.Request, error) {
	var row requestRow
	err := repo.db.GetContext(ctx, &row, requestSelect+`
		WHERE r.student_id = $1 AND r.semester = $2 AND r.semester_type = $3 AND r.school_year = $4
			AND r.status IN ('Pending', 'Approved')
		ORDER BY r.requested_at DESC
		LIMIT 1`,
		studentID, p.Semester, string(p.SemesterType), p.SchoolYear)
	if err != nil {
		return promissory.Request{}, trapNoRowsErr(err, promissory.ErrNotFound, "finding live request")
	}
	return row.request(), nil
}

// stateErr tells apart a missing request from one that is no longer pending.
func (repo requestRepository) stateErr(ctx context.Context, id int) error {
	if _, err := repo.GetRequest(ctx, id); err != nil {
		return err
	}
	return promissory.ErrNotPending
}

func (repo requestRepository) ReviewRequest(
	ctx context.Context,
	id int,
	status promissory.Status,
	comments string,
	at time.Time,
) (promissory.Request, error) {
	var updated int
	err := repo.db.GetContext(ctx, &updated,
		"UPDATE promissory_request SET status = $1, comments = $2, updated_at = $3 WHERE id = $4 AND status = 'Pending' RETURNING id",
		string(status), comments, at.UTC(), id)
	if err == sql.ErrNoRows {
		return promissory.Request{}, repo.stateErr(ctx, id)
	} else if err != nil {
		return promissory.Request{}, errors.Wrap(err, "reviewing request")
	}
	return repo.GetRequest(ctx, id)
}

func (repo requestRepository) DeleteRequest(ctx context.Context, id, studentID int) error {
	res, err := repo.db.ExecContext(ctx,
		"DELETE FROM promissory_request WHERE id = $1 AND student_id = $2 AND status = 'Pending'", id, studentID)
	if err != nil {
		return errors.Wrap(err, "deleting request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting request")
	}
	if n == 0 {
		req, err := repo.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.StudentID != studentID {
			return promissory.ErrNotFound
		}
		return promissory.ErrNotPending
	}
	return nil
}

func requestWhere(f promissory.Filter) (where, error) {
	var w where
	if f.StudentID != 0 {
		w.add("r.student_id = ?", f.StudentID)
	}
	if f.Search != "" {
		val := ilike(f.Search)
		w.add("(a.first_name ILIKE ? OR a.last_name ILIKE ? OR a.first_name || ' ' || a.last_name ILIKE ?)", val, val, val)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		if err := w.in("r.status", statuses); err != nil {
			return w, err
		}
	}
	if f.Semester != "" {
		w.add("r.semester = ?", f.Semester)
	}
	if f.SemesterType != "" {
		w.add("r.semester_type = ?", string(f.SemesterType))
	}
	if f.SchoolYear != "" {
		w.add("r.school_year = ?", f.SchoolYear)
	}
	if f.Course != "" {
		w.add("r.course = ?", f.Course)
	}
	if f.YearLevel != "" {
		w.add("r.year_level = ?", f.YearLevel)
	}
	if f.Incomplete {
		w.add("(r.reason_doc IS NULL OR r.valid_id IS NULL)")
	}
	return w, nil
}

func (repo requestRepository) QueryRequests(ctx context.Context, f promissory.Filter, page core.Page) ([]promissory.Request, int, error) {
	w, err := requestWhere(f)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQ := "SELECT COUNT(*) FROM promissory_request r JOIN account a ON a.id = r.student_id" + w.String()
	if err = repo.db.GetContext(ctx, &total, repo.db.Rebind(countQ), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting requests")
	}

	q := requestSelect + w.String() + " ORDER BY r.requested_at DESC, r.id DESC"
	args := w.args
	if !page.IsAll() {
		q += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit(), page.Offset())
	}

	var rows []requestRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying requests")
	}
	reqs := make([]promissory.Request, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.request())
	}
	return reqs, total, nil
}

func (repo requestRepository) CountRequests(ctx context.Context, f promissory.Filter) (promissory.StatusCounts, error) {
	var counts promissory.StatusCounts
	w, err := requestWhere(f)
	if err != nil {
		return counts, err
	}

	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	q := "SELECT r.status, COUNT(*) AS n FROM promissory_request r JOIN account a ON a.id = r.student_id" +
		w.String() + " GROUP BY r.status"
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return counts, errors.Wrap(err, "counting requests")
	}
	for _, row := range rows {
		counts.Add(promissory.Status(row.Status), row.N)
	}
	return counts, nil
}

func (repo requestRepository) distinct(ctx context.Context, column string, studentID int) ([]string, error) {
	var w where
	if studentID != 0 {
		w.add("student_id = ?", studentID)
	}
	q := "SELECT DISTINCT " + column + " FROM promissory_request" + w.String() + " ORDER BY " + column
	values := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &values, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrapf(err, "listing distinct %s", column)
	}
	return values, nil
}

func (repo requestRepository) FilterOptions(ctx context.Context, studentID int) (promissory.FilterOptions, error) {
	var (
		opts promissory.FilterOptions
		err  error
	)
	if opts.Semesters, err = repo.distinct(ctx, "semester", studentID); err != nil {
		return opts, err
	}
	if opts.SemesterTypes, err = repo.distinct(ctx, "semester_type", studentID); err != nil {
		return opts, err
	}
	if opts.SchoolYears, err = repo.distinct(ctx, "school_year", studentID); err != nil {
		return opts, err
	}
	sort.SliceStable(opts.SchoolYears, func(i, j int) bool {
		return core.LeadingYear(opts.SchoolYears[i]) > core.LeadingYear(opts.SchoolYears[j])
	})
	if opts.Courses, err = repo.distinct(ctx, "course", studentID); err != nil {
		return opts, err
	}
	return opts, nil
}
