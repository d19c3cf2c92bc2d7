package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
)

func init() {
	account.PasswordHashCost = 4 // bcrypt.MinCost
}

func CreateAccount(
	t *testing.T,
	repo account.Repository,
	first, last, email, pwd string,
	role account.Role,
	status account.Status,
	createdAt ...time.Time,
) account.Account {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acc := account.Account{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if role == account.RoleStudent {
		acc.YearLevel = "1st Year"
		acc.Course = "BSIT"
	}
	if pwd != "" {
		if err := acc.SetPassword(pwd); err != nil {
			t.Fatalf("createAccount() failed: %v", err)
		}
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	return acc
}

// CreateRequest stores a request of the student, filling the period / timestamps when missing.
func CreateRequest(t *testing.T, repo promissory.Repository, student account.Account, req promissory.Request) promissory.Request {
	t.Helper()
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.RequestedAt
	}
	if req.Status == "" {
		req.Status = promissory.StatusPending
	}
	if req.SemesterType == "" {
		req.SemesterType = promissory.Finals
	}
	if req.Semester == "" {
		req.Semester = "First Semester"
	}
	if req.SchoolYear == "" {
		req.SchoolYear = "2025-2026"
	}
	if req.ReasonText == "" && req.ReasonDoc == "" {
		req.ReasonText = "late allowance"
	}
	req.StudentID = student.ID
	req.YearLevel = student.YearLevel
	req.Course = student.Course
	req.Email = student.Email

	req, err := repo.CreateRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("createRequest() failed: %v", err)
	}
	return req
}
