package main

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/settings"
)

var (
	seedCourses = []string{
		"Bachelor of Science in Accountancy",
		"Bachelor of Science in Management Accounting",
		"Bachelor of Science in Nursing",
		"Bachelor of Science in Hospitality Management",
		"Bachelor of Science in Criminology",
		"Bachelor of Science in Information Technology",
		"Bachelor of Science in Computer Science",
		"Bachelor of Arts in Communication",
		"Bachelor of Arts in Psychology",
		"Bachelor of Science in Civil Engineering",
	}

	seedSemester   = "First Semester"
	seedSchoolYear = "2025-2026"

	seedAdmins = []struct {
		account.NewAccount
		password string
	}{
		{account.NewAccount{FirstName: "Master", LastName: "Admin", Email: "admin@example.com", Role: "Admin"}, "Admin@123"},
		{account.NewAccount{FirstName: "Super", LastName: "Admin", Email: "superadmin@example.com", Role: "Admin"}, "SuperAdmin@123"},
	}
)

// seed is idempotent: existing courses and accounts are left untouched.
func (cli *commandLine) seed(ctx context.Context) error {
	if err := cli.settings.Load(ctx); err != nil {
		return err
	}

	for _, name := range seedCourses {
		if _, err := cli.settings.AddCourse(ctx, name); err != nil {
			if pkgerrors.Cause(err) == settings.ErrCourseExists {
				continue
			}
			return pkgerrors.Wrapf(err, "adding course %q", name)
		}
		fmt.Printf("Course %q added.\n", name)
	}

	current := cli.settings.Current()
	if current.Semester == settings.NotSet {
		if _, err := cli.settings.SetSemester(ctx, seedSemester); err != nil {
			return err
		}
	}
	if current.SchoolYear == settings.NotSet {
		if _, err := cli.settings.SetSchoolYear(ctx, seedSchoolYear); err != nil {
			return err
		}
	}

	for _, admin := range seedAdmins {
		_, err := cli.accounts.GetByEmail(ctx, admin.Email)
		if err == nil {
			fmt.Printf("Admin account %q already exists.\n", admin.Email)
			continue
		}
		if pkgerrors.Cause(err) != account.ErrNotFound {
			return err
		}
		if _, err = cli.addUser(ctx, admin.NewAccount, admin.password); err != nil {
			return pkgerrors.Wrapf(err, "creating admin %q", admin.Email)
		}
		fmt.Printf("Admin account %q created.\n", admin.Email)
	}
	return nil
}
