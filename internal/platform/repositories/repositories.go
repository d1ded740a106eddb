package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"orgauthz/internal/engine/tenancy"
	"orgauthz/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *OrganizationRepository) CreateTx(ctx context.Context, tx *sql.Tx, org *models.Organization) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, category, plan_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Category, org.PlanID, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, category, plan_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Category, org.PlanID, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, category, plan_id, created_at, updated_at
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Name, &org.Category, &org.PlanID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

// UpdatePlan moves an organization to another plan. Existing custom roles
// are kept even when the new plan allows fewer.
func (r *OrganizationRepository) UpdatePlan(ctx context.Context, id, planID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE organizations SET plan_id = ?, updated_at = ? WHERE id = ?`,
		planID, time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Organization implements tenancy.Directory.
func (r *OrganizationRepository) Organization(ctx context.Context, id string) (*tenancy.Organization, error) {
	org, err := r.GetByID(ctx, id)
	if err != nil || org == nil {
		return nil, err
	}
	return &tenancy.Organization{
		ID:       org.ID,
		Name:     org.Name,
		Category: tenancy.Category(org.Category),
		PlanID:   org.PlanID,
	}, nil
}

type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) CreateTx(ctx context.Context, tx *sql.Tx, m *models.Member) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, full_name, role_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.OrganizationID, m.Email, m.FullName, m.RoleID, m.Status, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, full_name, role_id, status, created_at, updated_at
		FROM users WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (r *MemberRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, email, full_name, role_id, status, created_at, updated_at
		FROM users WHERE organization_id = ?
		ORDER BY created_at, rowid
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AttachMember implements authz.MemberAttacher. A user already in the
// organization is reactivated under the new role; a user id that belongs to
// another organization is rejected.
func (r *MemberRepository) AttachMember(ctx context.Context, orgID, userID, email, roleID string) error {
	now := time.Now().UnixMilli()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, full_name, role_id, status, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, 'active', ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role_id = excluded.role_id,
			status = 'active',
			updated_at = excluded.updated_at
		WHERE users.organization_id = excluded.organization_id
	`, userID, orgID, email, roleID, now, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s belongs to another organization", userID)
	}
	return nil
}

// UpdateRole reassigns a member. It reports false when the member or the
// role is not part of orgID.
func (r *MemberRepository) UpdateRole(ctx context.Context, orgID, userID, roleID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET role_id = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
		  AND EXISTS (SELECT 1 FROM roles WHERE id = ? AND organization_id = ?)
	`, roleID, time.Now().UnixMilli(), userID, orgID, roleID, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *MemberRepository) SetStatus(ctx context.Context, orgID, userID, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ? AND organization_id = ?`,
		status, time.Now().UnixMilli(), userID, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanMember(s interface {
	Scan(dest ...interface{}) error
}) (*models.Member, error) {
	var m models.Member
	var roleID sql.NullString
	if err := s.Scan(&m.ID, &m.OrganizationID, &m.Email, &m.FullName, &roleID, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.RoleID = roleID.String
	return &m, nil
}
