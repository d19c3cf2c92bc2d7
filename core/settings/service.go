package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/promissory/core"
)

var (
	// errors
	ErrNotFound          = errors.New("settings not found")
	ErrCourseNotFound    = errors.New("course not found")
	ErrCourseExists      = errors.New("course is already active")
	ErrCourseNameMissing = errors.New("course name cannot be empty")
	ErrNotLoaded         = errors.New("settings not loaded")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// GetSettings fails with ErrNotFound while the singleton row does not exist.
		GetSettings(ctx context.Context) (ActiveSettings, error)
		// SaveSettings creates or replaces the singleton row.
		SaveSettings(ctx context.Context, s ActiveSettings) (ActiveSettings, error)

		// CreateCourse fails with ErrCourseExists on a duplicate name.
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourseByName(ctx context.Context, name string) (Course, error)
		// DeleteCourse returns the deleted course or ErrCourseNotFound.
		DeleteCourse(ctx context.Context, id int) (Course, error)
		QueryCourses(ctx context.Context) ([]Course, error)
	}

	// Service holds the active settings in memory once loaded; writes go through to the repository.
	Service struct {
		repo Repository

		mu      sync.RWMutex
		current ActiveSettings
		loaded  bool
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, current: defaultSettings()}
}

// Load reads the singleton row, creating it with NotSet values when missing. Called once at startup.
func (svc *Service) Load(ctx context.Context) error {
	s, err := svc.repo.GetSettings(ctx)
	if err != nil {
		if pkgerrors.Cause(err) != ErrNotFound {
			return pkgerrors.Wrap(err, "getting settings")
		}
		s = defaultSettings()
		s.UpdatedAt = NowFunc().UTC()
		if s, err = svc.repo.SaveSettings(ctx, s); err != nil {
			return pkgerrors.Wrap(err, "creating settings")
		}
	}

	svc.mu.Lock()
	svc.current = s
	svc.loaded = true
	svc.mu.Unlock()
	return nil
}

// Current returns the active settings (NotSet values until Load ran).
func (svc *Service) Current() ActiveSettings {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.current
}

func (svc *Service) update(ctx context.Context, apply func(s *ActiveSettings)) (ActiveSettings, ActiveSettings, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.loaded {
		return ActiveSettings{}, ActiveSettings{}, ErrNotLoaded
	}
	old := svc.current
	next := old
	apply(&next)
	next.UpdatedAt = NowFunc().UTC()

	saved, err := svc.repo.SaveSettings(ctx, next)
	if err != nil {
		return ActiveSettings{}, ActiveSettings{}, pkgerrors.Wrap(err, "saving settings")
	}
	svc.current = saved
	return old, saved, nil
}

// SetSemester changes the active semester and returns the previous one.
func (svc *Service) SetSemester(ctx context.Context, semester string) (string, error) {
	old, _, err := svc.update(ctx, func(s *ActiveSettings) { s.Semester = core.CleanString(semester) })
	return old.Semester, err
}

// SetSchoolYear changes the active school year and returns the previous one.
func (svc *Service) SetSchoolYear(ctx context.Context, schoolYear string) (string, error) {
	old, _, err := svc.update(ctx, func(s *ActiveSettings) { s.SchoolYear = core.CleanString(schoolYear) })
	return old.SchoolYear, err
}

func (svc *Service) AddCourse(ctx context.Context, name string) (Course, error) {
	name = core.CleanString(name)
	if name == "" {
		return Course{}, ErrCourseNameMissing
	}
	return svc.repo.CreateCourse(ctx, Course{Name: name, CreatedAt: NowFunc().UTC()})
}

func (svc *Service) RemoveCourse(ctx context.Context, id int) (Course, error) {
	return svc.repo.DeleteCourse(ctx, id)
}

// Courses returns the active courses sorted by name.
func (svc *Service) Courses(ctx context.Context) ([]Course, error) {
	courses, err := svc.repo.QueryCourses(ctx)
	return courses, pkgerrors.Wrap(err, "querying courses")
}

func (svc *Service) CourseNames(ctx context.Context) ([]string, error) {
	courses, err := svc.Courses(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(courses))
	for _, c := range courses {
		names = append(names, c.Name)
	}
	return names, nil
}

// HasCourse reports whether name is in the active course list.
func (svc *Service) HasCourse(ctx context.Context, name string) (bool, error) {
	if _, err := svc.repo.GetCourseByName(ctx, core.CleanString(name)); err != nil {
		if pkgerrors.Cause(err) == ErrCourseNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "finding course")
	}
	return true, nil
}
