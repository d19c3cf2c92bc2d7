package settings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/promissory/core/settings"
	dummydb "github.com/trezcool/promissory/storage/database/dummy"
)

func newService(t *testing.T) (*settings.Service, settings.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewSettingsRepository(db)
	return settings.NewService(repo), repo
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	// NotSet before anything was loaded, and writes are refused
	assert.Equal(t, settings.NotSet, svc.Current().Semester)
	_, err := svc.SetSemester(ctx, "First Semester")
	assert.Equal(t, settings.ErrNotLoaded, err)

	_, err = repo.GetSettings(ctx)
	assert.Equal(t, settings.ErrNotFound, err)

	require.NoError(t, svc.Load(ctx))
	stored, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.NotSet, stored.Semester)
	assert.Equal(t, settings.NotSet, stored.SchoolYear)
}

func TestSetSemesterAndSchoolYear(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	require.NoError(t, svc.Load(ctx))

	old, err := svc.SetSemester(ctx, " Second Semester ")
	require.NoError(t, err)
	assert.Equal(t, settings.NotSet, old)

	old, err = svc.SetSchoolYear(ctx, "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, settings.NotSet, old)

	old, err = svc.SetSchoolYear(ctx, "2026-2027")
	require.NoError(t, err)
	assert.Equal(t, "2025-2026", old)

	cur := svc.Current()
	assert.Equal(t, "Second Semester", cur.Semester)
	assert.Equal(t, "2026-2027", cur.SchoolYear)

	// write-through
	stored, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, cur, stored)

	// a restart picks the stored row up
	restarted := settings.NewService(repo)
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, cur, restarted.Current())
}

func TestCourses(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.AddCourse(ctx, "  ")
	assert.Equal(t, settings.ErrCourseNameMissing, err)

	bsit, err := svc.AddCourse(ctx, "BSIT")
	require.NoError(t, err)
	_, err = svc.AddCourse(ctx, "BSCS")
	require.NoError(t, err)
	_, err = svc.AddCourse(ctx, " BSIT")
	assert.Equal(t, settings.ErrCourseExists, err)

	names, err := svc.CourseNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BSCS", "BSIT"}, names)

	ok, err := svc.HasCourse(ctx, "BSIT")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := svc.RemoveCourse(ctx, bsit.ID)
	require.NoError(t, err)
	assert.Equal(t, "BSIT", removed.Name)

	ok, err = svc.HasCourse(ctx, "BSIT")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.RemoveCourse(ctx, bsit.ID)
	assert.Equal(t, settings.ErrCourseNotFound, err)
}
