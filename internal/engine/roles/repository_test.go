package roles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/permissions"
)

func TestRepository_CreateWithinQuota_RollsBackOnCheckFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM roles WHERE organization_id = \\? AND is_predetermined = 0").
		WithArgs("org_1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	repo := NewRepository(db)
	role := &Role{ID: "role_1", OrganizationID: "org_1", Name: "Clerk"}
	err = repo.CreateWithinQuota(context.Background(), role, func(count int) error {
		return &errs.QuotaExceededError{Limit: 2, Used: count}
	})

	var quotaErr *errs.QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if quotaErr.Used != 2 {
		t.Errorf("expected used 2, got %d", quotaErr.Used)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRepository_CreateWithinQuota_Inserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	now := time.UnixMilli(1_700_000_000_000).UTC()
	role := &Role{
		ID:             "role_1",
		OrganizationID: "org_1",
		Name:           "Clerk",
		Permissions:    permissions.MustFromTokens("sales.read"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM roles").
		WithArgs("org_1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO roles").
		WithArgs("role_1", "org_1", "Clerk", "", `["sales.read"]`, nil, 0, now.UnixMilli(), now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewRepository(db)
	if err := repo.CreateWithinQuota(context.Background(), role, func(int) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRepository_GetPropagatesErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM roles WHERE id = \\? AND organization_id = \\?").
		WithArgs("role_1", "org_1").
		WillReturnError(errors.New("disk I/O error"))

	role, err := NewRepository(db).Get(context.Background(), "org_1", "role_1")
	if err == nil {
		t.Fatal("expected error")
	}
	if role != nil {
		t.Errorf("expected nil role, got %+v", role)
	}
}
