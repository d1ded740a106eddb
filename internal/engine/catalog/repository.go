package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/engine/tenancy"
)

// Repository reads and seeds the role_templates table. Stored permissions are
// parsed leniently so rows written by a newer release still load.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Load(ctx context.Context) ([]RoleTemplate, error) {
	query := `
		SELECT id, name, description, permissions, categories, sort_order
		FROM role_templates
		ORDER BY sort_order, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load role templates: %w", err)
	}
	defer rows.Close()

	var templates []RoleTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// Seed inserts templates that are not stored yet. Existing rows are left
// untouched.
func (r *Repository) Seed(ctx context.Context, templates []RoleTemplate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT OR IGNORE INTO role_templates (id, name, description, permissions, categories, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, t := range templates {
		if t.Universal {
			continue
		}
		categoriesJSON, _ := json.Marshal(t.Categories)
		if _, err := tx.ExecContext(ctx, query,
			t.ID,
			t.Name,
			t.Description,
			t.Permissions,
			string(categoriesJSON),
			t.Order,
		); err != nil {
			return fmt.Errorf("seed template %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func scanTemplate(s interface {
	Scan(dest ...interface{}) error
}) (*RoleTemplate, error) {
	var t RoleTemplate
	var permsRaw, categoriesRaw []byte
	var description sql.NullString

	err := s.Scan(
		&t.ID,
		&t.Name,
		&description,
		&permsRaw,
		&categoriesRaw,
		&t.Order,
	)
	if err != nil {
		return nil, err
	}
	t.Description = description.String

	t.Permissions, err = permissions.ParseStored(permsRaw, permissions.Lenient)
	if err != nil {
		return nil, fmt.Errorf("template %s permissions: %w", t.ID, err)
	}
	if len(categoriesRaw) > 0 {
		var names []string
		if err := json.Unmarshal(categoriesRaw, &names); err != nil {
			return nil, fmt.Errorf("template %s categories: %w", t.ID, err)
		}
		for _, n := range names {
			t.Categories = append(t.Categories, tenancy.Category(n))
		}
	}
	return &t, nil
}
