package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/promissory/core/settings"
)

type settingsRepository struct {
	settings *settingsTable
	course   *courseTable
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{settings: db.settings, course: db.course}
}

func (repo *settingsRepository) GetSettings(_ context.Context) (settings.ActiveSettings, error) {
	repo.settings.RLock()
	defer repo.settings.RUnlock()

	if repo.settings.row == nil {
		return settings.ActiveSettings{}, settings.ErrNotFound
	}
	return *repo.settings.row, nil
}

func (repo *settingsRepository) SaveSettings(_ context.Context, s settings.ActiveSettings) (settings.ActiveSettings, error) {
	repo.settings.Lock()
	defer repo.settings.Unlock()

	repo.settings.row = &s
	return s, nil
}

func (repo *settingsRepository) CreateCourse(_ context.Context, c settings.Course) (settings.Course, error) {
	repo.course.Lock()
	defer repo.course.Unlock()

	for _, existing := range repo.course.table {
		if existing.Name == c.Name {
			return settings.Course{}, settings.ErrCourseExists
		}
	}
	repo.course.pk++
	c.ID = repo.course.pk
	repo.course.table[c.ID] = &c
	return c, nil
}

func (repo *settingsRepository) GetCourseByName(_ context.Context, name string) (settings.Course, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	for _, c := range repo.course.table {
		if c.Name == name {
			return *c, nil
		}
	}
	return settings.Course{}, settings.ErrCourseNotFound
}

func (repo *settingsRepository) DeleteCourse(_ context.Context, id int) (settings.Course, error) {
	repo.course.Lock()
	defer repo.course.Unlock()

	c, ok := repo.course.table[id]
	if !ok {
		return settings.Course{}, settings.ErrCourseNotFound
	}
	delete(repo.course.table, id)
	return *c, nil
}

func (repo *settingsRepository) QueryCourses(_ context.Context) ([]settings.Course, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	courses := make([]settings.Course, 0, len(repo.course.table))
	for _, c := range repo.course.table {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}
