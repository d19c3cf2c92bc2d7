package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core/settings"
)

const activeCourseNameKey = "active_course_name_key"

type settingsRow struct {
	Semester   string    `db:"active_semester"`
	SchoolYear string    `db:"active_school_year"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (row settingsRow) settings() settings.ActiveSettings {
	return settings.ActiveSettings{Semester: row.Semester, SchoolYear: row.SchoolYear, UpdatedAt: row.UpdatedAt.UTC()}
}

type courseRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (row courseRow) course() settings.Course {
	return settings.Course{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt.UTC()}
}

type settingsRepository struct {
	db *sqlx.DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *sqlx.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo settingsRepository) GetSettings(ctx context.Context) (settings.ActiveSettings, error) {
	var row settingsRow
	err := repo.db.GetContext(ctx, &row, "SELECT active_semester, active_school_year, updated_at FROM active_settings")
	if err != nil {
		return settings.ActiveSettings{}, trapNoRowsErr(err, settings.ErrNotFound, "getting settings")
	}
	return row.settings(), nil
}

func (repo settingsRepository) SaveSettings(ctx context.Context, s settings.ActiveSettings) (settings.ActiveSettings, error) {
	var row settingsRow
	err := repo.db.GetContext(ctx, &row, `INSERT INTO active_settings (id, active_semester, active_school_year, updated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			active_semester = EXCLUDED.active_semester,
			active_school_year = EXCLUDED.active_school_year,
			updated_at = EXCLUDED.updated_at
		RETURNING active_semester, active_school_year, updated_at`,
		s.Semester, s.SchoolYear, s.UpdatedAt.UTC())
	if err != nil {
		return settings.ActiveSettings{}, errors.Wrap(err, "saving settings")
	}
	return row.settings(), nil
}

func (repo settingsRepository) CreateCourse(ctx context.Context, c settings.Course) (settings.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row,
		"INSERT INTO active_course (name, created_at) VALUES ($1, $2) RETURNING id, name, created_at",
		c.Name, c.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, activeCourseNameKey) {
			return settings.Course{}, settings.ErrCourseExists
		}
		return settings.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo settingsRepository) GetCourseByName(ctx context.Context, name string) (settings.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, "SELECT id, name, created_at FROM active_course WHERE name = $1", name)
	if err != nil {
		return settings.Course{}, trapNoRowsErr(err, settings.ErrCourseNotFound, "finding course")
	}
	return row.course(), nil
}

func (repo settingsRepository) DeleteCourse(ctx context.Context, id int) (settings.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, "DELETE FROM active_course WHERE id = $1 RETURNING id, name, created_at", id)
	if err != nil {
		return settings.Course{}, trapNoRowsErr(err, settings.ErrCourseNotFound, "deleting course")
	}
	return row.course(), nil
}

func (repo settingsRepository) QueryCourses(ctx context.Context) ([]settings.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT id, name, created_at FROM active_course ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]settings.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}
