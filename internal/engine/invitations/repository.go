package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"orgauthz/internal/engine/errs"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const invitationColumns = `id, organization_id, email, role_id, invited_by, status, token_hash,
		       resend_count, accepted_at, accepted_by, expires_at, created_at, updated_at`

func (r *Repository) CreatePending(ctx context.Context, inv *Invitation, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE invitations SET status = 'expired', updated_at = ?
		WHERE organization_id = ? AND email = ? AND status = 'pending' AND expires_at < ?
	`, now.UnixMilli(), inv.OrganizationID, inv.Email, now.UnixMilli()); err != nil {
		return fmt.Errorf("expire stale invitations: %w", err)
	}

	var roleExists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM roles WHERE id = ? AND organization_id = ?)", inv.RoleID, inv.OrganizationID,
	).Scan(&roleExists); err != nil {
		return err
	}
	if !roleExists {
		return &errs.UnknownRoleError{RoleID: inv.RoleID}
	}

	var pending bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM invitations WHERE organization_id = ? AND email = ? AND status = 'pending')",
		inv.OrganizationID, inv.Email,
	).Scan(&pending); err != nil {
		return err
	}
	if pending {
		return &errs.DuplicatePendingInvitationError{Email: inv.Email}
	}

	if err := r.CreateTx(ctx, tx, inv); err != nil {
		if isUniqueViolation(err) {
			return &errs.DuplicatePendingInvitationError{Email: inv.Email}
		}
		return err
	}
	return tx.Commit()
}

func (r *Repository) CreateTx(ctx context.Context, tx *sql.Tx, inv *Invitation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO invitations (
			id, organization_id, email, role_id, invited_by, status, token_hash,
			resend_count, accepted_at, accepted_by, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID,
		inv.OrganizationID,
		inv.Email,
		inv.RoleID,
		inv.InvitedBy,
		inv.Status,
		inv.TokenHash,
		inv.ResendCount,
		nullableMillis(inv.AcceptedAt),
		nullableString(inv.AcceptedBy),
		inv.ExpiresAt.UnixMilli(),
		inv.CreatedAt.UnixMilli(),
		inv.UpdatedAt.UnixMilli(),
	)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations WHERE id = ?
	`
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func (r *Repository) List(ctx context.Context, orgID string) ([]*Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE organization_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

func (r *Repository) Transition(ctx context.Context, inv *Invitation, from Status, fromResendCount int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations SET
			status = ?, token_hash = ?, resend_count = ?, accepted_at = ?, accepted_by = ?,
			expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND resend_count = ?
	`,
		inv.Status,
		inv.TokenHash,
		inv.ResendCount,
		nullableMillis(inv.AcceptedAt),
		nullableString(inv.AcceptedBy),
		inv.ExpiresAt.UnixMilli(),
		inv.UpdatedAt.UnixMilli(),
		inv.ID,
		from,
		fromResendCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations SET status = 'expired', updated_at = ?
		WHERE status = 'pending' AND expires_at < ?
	`, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullableMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanInvitation(s interface {
	Scan(dest ...interface{}) error
}) (*Invitation, error) {
	var inv Invitation
	var acceptedAt sql.NullInt64
	var acceptedBy sql.NullString
	var expiresAt, createdAt, updatedAt int64

	err := s.Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.Email,
		&inv.RoleID,
		&inv.InvitedBy,
		&inv.Status,
		&inv.TokenHash,
		&inv.ResendCount,
		&acceptedAt,
		&acceptedBy,
		&expiresAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if acceptedAt.Valid {
		val := time.UnixMilli(acceptedAt.Int64).UTC()
		inv.AcceptedAt = &val
	}
	inv.AcceptedBy = acceptedBy.String
	inv.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	inv.CreatedAt = time.UnixMilli(createdAt).UTC()
	inv.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &inv, nil
}
