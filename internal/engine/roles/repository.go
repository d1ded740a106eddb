package roles

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository is the sqlite Store. The database must be opened with
// _txlock=immediate so that write transactions serialize at BEGIN.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const roleColumns = `id, organization_id, name, description, permissions, is_predetermined,
		       origin_template_id, sort_order, created_at, updated_at`

func (r *Repository) List(ctx context.Context, orgID string) ([]*Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE organization_id = ?
		ORDER BY is_predetermined DESC, sort_order, created_at, rowid
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, role)
	}
	return list, rows.Err()
}

func (r *Repository) Get(ctx context.Context, orgID, roleID string) (*Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles WHERE id = ? AND organization_id = ?
	`
	role, err := scanRole(r.db.QueryRowContext(ctx, query, roleID, orgID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return role, err
}

func (r *Repository) CountCustom(ctx context.Context, orgID string) (int, error) {
	return countCustom(ctx, r.db, orgID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func countCustom(ctx context.Context, q queryer, orgID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM roles WHERE organization_id = ? AND is_predetermined = 0", orgID,
	).Scan(&n)
	return n, err
}

func (r *Repository) InsertPredetermined(ctx context.Context, candidates []*Role) ([]*Role, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inserted, err := r.InsertPredeterminedTx(ctx, tx, candidates)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *Repository) InsertPredeterminedTx(ctx context.Context, tx *sql.Tx, candidates []*Role) ([]*Role, error) {
	var inserted []*Role
	for _, role := range candidates {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO roles (
				id, organization_id, name, description, permissions, is_predetermined,
				origin_template_id, sort_order, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?)
		`,
			role.ID,
			role.OrganizationID,
			role.Name,
			role.Description,
			role.Permissions,
			role.OriginTemplateID,
			role.SortOrder,
			role.CreatedAt.UnixMilli(),
			role.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, role)
		}
	}
	return inserted, nil
}

func (r *Repository) CreateWithinQuota(ctx context.Context, role *Role, check func(count int) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	count, err := countCustom(ctx, tx, role.OrganizationID)
	if err != nil {
		return fmt.Errorf("count custom roles: %w", err)
	}
	if err := check(count); err != nil {
		return err
	}

	if err := r.CreateTx(ctx, tx, role); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateTx inserts a custom role inside tx without any quota check.
func (r *Repository) CreateTx(ctx context.Context, tx *sql.Tx, role *Role) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO roles (
			id, organization_id, name, description, permissions, is_predetermined,
			origin_template_id, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`,
		role.ID,
		role.OrganizationID,
		role.Name,
		role.Description,
		role.Permissions,
		role.OriginTemplateID,
		role.SortOrder,
		role.CreatedAt.UnixMilli(),
		role.UpdatedAt.UnixMilli(),
	)
	return err
}

func (r *Repository) UpdateCustom(ctx context.Context, role *Role) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE roles SET name = ?, description = ?, permissions = ?, updated_at = ?
		WHERE id = ? AND organization_id = ? AND is_predetermined = 0
	`,
		role.Name,
		role.Description,
		role.Permissions,
		role.UpdatedAt.UnixMilli(),
		role.ID,
		role.OrganizationID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) DeleteUnreferenced(ctx context.Context, orgID, roleID string, now time.Time) (References, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return References{}, false, err
	}
	defer tx.Rollback()

	var refs References
	err = tx.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users
			 WHERE organization_id = ? AND role_id = ? AND status = 'active'),
			(SELECT COUNT(*) FROM invitations
			 WHERE organization_id = ? AND role_id = ? AND status = 'pending' AND expires_at >= ?)
	`, orgID, roleID, orgID, roleID, now.UnixMilli()).Scan(&refs.Members, &refs.Invitations)
	if err != nil {
		return References{}, false, fmt.Errorf("count role references: %w", err)
	}
	if refs.InUse() {
		return refs, false, nil
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM roles WHERE id = ? AND organization_id = ? AND is_predetermined = 0", roleID, orgID,
	)
	if err != nil {
		return References{}, false, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return References{}, false, err
	}
	return refs, n > 0, nil
}

func scanRole(s interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var description, origin sql.NullString
	var createdAt, updatedAt int64

	err := s.Scan(
		&role.ID,
		&role.OrganizationID,
		&role.Name,
		&description,
		&role.Permissions,
		&role.IsPredetermined,
		&origin,
		&role.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	role.Description = description.String
	if origin.Valid {
		val := origin.String
		role.OriginTemplateID = &val
	}
	role.CreatedAt = time.UnixMilli(createdAt).UTC()
	role.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &role, nil
}
