package repositories

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"orgauthz/internal/engine/tenancy"
	"orgauthz/internal/platform/database"
	"orgauthz/internal/platform/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestOrganizationDirectory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()

	err := repo.Create(ctx, &models.Organization{ID: "org_1", Name: "Botica Sur", Category: "pharmacy", PlanID: "basic", CreatedAt: 1, UpdatedAt: 1})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	org, err := repo.Organization(ctx, "org_1")
	if err != nil {
		t.Fatalf("Organization() error = %v", err)
	}
	want := tenancy.Organization{ID: "org_1", Name: "Botica Sur", Category: tenancy.Pharmacy, PlanID: "basic"}
	if org == nil || *org != want {
		t.Errorf("Organization() = %+v, want %+v", org, want)
	}

	missing, err := repo.Organization(ctx, "org_missing")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown org, got %+v, %v", missing, err)
	}

	ok, err := repo.UpdatePlan(ctx, "org_1", "pro")
	if err != nil || !ok {
		t.Fatalf("UpdatePlan() = %v, %v", ok, err)
	}
	org, _ = repo.Organization(ctx, "org_1")
	if org.PlanID != "pro" {
		t.Errorf("expected plan pro, got %s", org.PlanID)
	}
}

func TestAttachMember(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	if err := repo.AttachMember(ctx, "org_1", "usr_1", "a@example.com", "role_a"); err != nil {
		t.Fatalf("AttachMember() error = %v", err)
	}
	// attaching again moves the member to the new role
	if err := repo.AttachMember(ctx, "org_1", "usr_1", "a@example.com", "role_b"); err != nil {
		t.Fatalf("AttachMember() again error = %v", err)
	}
	m, err := repo.GetByID(ctx, "usr_1")
	if err != nil || m == nil {
		t.Fatalf("GetByID() = %v, %v", m, err)
	}
	if m.RoleID != "role_b" || m.Status != models.MemberStatusActive {
		t.Errorf("unexpected member %+v", m)
	}

	if err := repo.AttachMember(ctx, "org_2", "usr_1", "a@example.com", "role_x"); err == nil {
		t.Error("expected error attaching a user of another organization")
	}

	members, err := repo.ListByOrganization(ctx, "org_1")
	if err != nil {
		t.Fatalf("ListByOrganization() error = %v", err)
	}
	if len(members) != 1 {
		t.Errorf("expected 1 member, got %d", len(members))
	}
}

func TestUpdateRole_RequiresRoleInOrganization(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO roles (id, organization_id, name, description, permissions, is_predetermined, sort_order, created_at, updated_at)
		VALUES ('role_own', 'org_1', 'Own', '', '[]', 0, 0, 1, 1), ('role_foreign', 'org_2', 'Foreign', '', '[]', 0, 0, 1, 1)`)
	if err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	if err := repo.AttachMember(ctx, "org_1", "usr_1", "a@example.com", "role_own"); err != nil {
		t.Fatalf("AttachMember() error = %v", err)
	}

	ok, err := repo.UpdateRole(ctx, "org_1", "usr_1", "role_foreign")
	if err != nil || ok {
		t.Errorf("expected foreign role to be rejected, got %v, %v", ok, err)
	}
	ok, err = repo.UpdateRole(ctx, "org_1", "usr_1", "role_own")
	if err != nil || !ok {
		t.Errorf("expected update to succeed, got %v, %v", ok, err)
	}
}
