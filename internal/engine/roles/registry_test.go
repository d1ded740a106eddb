package roles

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgauthz/internal/engine/catalog"
	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/events"
	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/engine/quota"
	"orgauthz/internal/engine/tenancy"
	"orgauthz/internal/platform/config"
	"orgauthz/internal/platform/database"
)

type stubDirectory map[string]*tenancy.Organization

func (d stubDirectory) Organization(_ context.Context, id string) (*tenancy.Organization, error) {
	return d[id], nil
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testDirectory() stubDirectory {
	return stubDirectory{
		"org_mini":  {ID: "org_mini", Name: "Mini Uno", Category: tenancy.Minimarket, PlanID: "free"},
		"org_resto": {ID: "org_resto", Name: "La Olla", Category: tenancy.Restaurant, PlanID: "basic"},
		"org_big":   {ID: "org_big", Name: "Big Pharma", Category: tenancy.Pharmacy, PlanID: "enterprise"},
	}
}

func newTestRegistry(t *testing.T, db *sql.DB) *Registry {
	return NewRegistry(
		NewRepository(db),
		testDirectory(),
		catalog.Default(),
		quota.NewPolicy(quota.DefaultPlans(), "free"),
		WithClock(func() time.Time { return testNow }),
	)
}

func TestProvision_AdministratorInvariant(t *testing.T) {
	db := setupTestDB(t)
	reg := newTestRegistry(t, db)
	ctx := context.Background()

	for _, orgID := range []string{"org_mini", "org_resto", "org_big"} {
		inserted, evts, err := reg.Provision(ctx, orgID)
		require.NoError(t, err)
		require.NotEmpty(t, inserted)
		require.Len(t, evts, 1)
		assert.Equal(t, events.RolesProvisioned, evts[0].Type)

		// a second provisioning is a no-op
		again, evts, err := reg.Provision(ctx, orgID)
		require.NoError(t, err)
		assert.Empty(t, again)
		assert.Empty(t, evts)

		list, err := reg.List(ctx, orgID)
		require.NoError(t, err)
		assert.Len(t, list, len(inserted))

		admins := 0
		for _, role := range list {
			assert.True(t, role.IsPredetermined)
			if role.Name == catalog.AdministratorName {
				admins++
				assert.Equal(t, permissions.Full(), role.Permissions)
			}
		}
		assert.Equal(t, 1, admins, "organization %s", orgID)
		assert.Equal(t, catalog.AdministratorName, list[0].Name, "administrator is listed first")
	}
}

func TestProvision_UnknownOrganization(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))

	_, _, err := reg.Provision(context.Background(), "org_missing")
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestProvisionTx(t *testing.T) {
	db := setupTestDB(t)
	reg := newTestRegistry(t, db)
	ctx := context.Background()
	org := &tenancy.Organization{ID: "org_new", Name: "Nueva", Category: tenancy.Minimarket, PlanID: "free"}

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	inserted, evts, err := reg.ProvisionTx(ctx, tx, org)
	require.NoError(t, err)
	require.NotEmpty(t, inserted)
	require.Len(t, evts, 1)
	require.NoError(t, tx.Rollback())

	list, err := reg.List(ctx, "org_new")
	require.NoError(t, err)
	assert.Empty(t, list, "rolled back with the transaction")

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	inserted, _, err = reg.ProvisionTx(ctx, tx, org)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	list, err = reg.List(ctx, "org_new")
	require.NoError(t, err)
	assert.Len(t, list, len(inserted))
	assert.Equal(t, catalog.AdministratorName, list[0].Name)
}

func TestList_PredeterminedFirstThenCreationOrder(t *testing.T) {
	db := setupTestDB(t)
	reg := newTestRegistry(t, db)
	ctx := context.Background()

	_, _, err := reg.Provision(ctx, "org_resto")
	require.NoError(t, err)

	first, _, err := reg.CreateCustom(ctx, "org_resto", CustomRoleInput{Name: "Host", Permissions: permissions.MustFromTokens("sales.read")})
	require.NoError(t, err)
	second, _, err := reg.CreateCustom(ctx, "org_resto", CustomRoleInput{Name: "Bartender", Permissions: permissions.MustFromTokens("sales.create")})
	require.NoError(t, err)

	list, err := reg.List(ctx, "org_resto")
	require.NoError(t, err)

	n := len(list)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, first.ID, list[n-2].ID)
	assert.Equal(t, second.ID, list[n-1].ID)
	for i, role := range list[:n-2] {
		assert.True(t, role.IsPredetermined)
		assert.Equal(t, i, role.SortOrder)
	}
}

func TestCreateFromTemplate_QuotaBoundary(t *testing.T) {
	db := setupTestDB(t)
	reg := newTestRegistry(t, db)
	ctx := context.Background()

	// basic plan allows five custom roles
	for i := 0; i < 5; i++ {
		role, evts, err := reg.CreateFromTemplate(ctx, "org_resto", "tpl_waiter", CreateFromTemplateInput{})
		require.NoError(t, err, "creation %d", i+1)
		assert.False(t, role.IsPredetermined)
		require.NotNil(t, role.OriginTemplateID)
		assert.Equal(t, "tpl_waiter", *role.OriginTemplateID)
		require.Len(t, evts, 1)
		assert.Equal(t, events.RoleCreated, evts[0].Type)
	}

	_, _, err := reg.CreateFromTemplate(ctx, "org_resto", "tpl_waiter", CreateFromTemplateInput{})
	var quotaErr *errs.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 5, quotaErr.Limit)
	assert.Equal(t, 5, quotaErr.Used)
	assert.Equal(t, errs.KindPolicy, errs.KindOf(err))
}

func TestCreateFromTemplate_MergesOverrides(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))

	role, _, err := reg.CreateFromTemplate(context.Background(), "org_mini", "tpl_cashier", CreateFromTemplateInput{
		Name:      "  Senior cashier ",
		Overrides: permissions.MustFromTokens("reports.read"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Senior cashier", role.Name)
	assert.Equal(t,
		[]string{"sales.create", "sales.read", "inventory.read", "reports.read"},
		role.Permissions.Tokens(),
	)

	plain, _, err := reg.CreateFromTemplate(context.Background(), "org_mini", "tpl_cashier", CreateFromTemplateInput{})
	require.NoError(t, err)
	assert.Equal(t, "Cashier", plain.Name)
}

func TestCreateFromTemplate_Validation(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))
	ctx := context.Background()

	_, _, err := reg.CreateFromTemplate(ctx, "org_mini", "tpl_waiter", CreateFromTemplateInput{})
	var notApplicable *errs.TemplateNotApplicableError
	require.ErrorAs(t, err, &notApplicable)
	assert.Equal(t, "minimarket", notApplicable.Category)

	_, _, err = reg.CreateFromTemplate(ctx, "org_mini", "tpl_nope", CreateFromTemplateInput{})
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)

	// the universal template can always be copied
	role, _, err := reg.CreateFromTemplate(ctx, "org_mini", catalog.AdministratorTemplateID, CreateFromTemplateInput{Name: "Co-owner"})
	require.NoError(t, err)
	assert.False(t, role.IsPredetermined)
	assert.Equal(t, permissions.Full(), role.Permissions)
}

func TestMinimarketScenario(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))
	ctx := context.Background()

	_, _, err := reg.Provision(ctx, "org_mini")
	require.NoError(t, err)

	_, _, err = reg.CreateCustom(ctx, "org_mini", CustomRoleInput{Name: "Night shift", Permissions: permissions.MustFromTokens("sales.create")})
	require.NoError(t, err)
	_, _, err = reg.CreateCustom(ctx, "org_mini", CustomRoleInput{Name: "Auditor", Permissions: permissions.MustFromTokens("reports.read")})
	require.NoError(t, err)

	_, _, err = reg.CreateCustom(ctx, "org_mini", CustomRoleInput{Name: "Third", Permissions: permissions.MustFromTokens("sales.read")})
	var quotaErr *errs.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, errs.QuotaExceededError{Limit: 2, Used: 2}, *quotaErr)

	stats, err := reg.Stats(ctx, "org_mini")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Custom)
	assert.Equal(t, 2, stats.Limit)
	assert.False(t, stats.CanCreateMore)
	assert.Equal(t, stats.Predetermined+2, stats.Total)
}

func TestCreateCustom_UnboundedPlan(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, _, err := reg.CreateCustom(ctx, "org_big", CustomRoleInput{Name: "Role", Permissions: permissions.MustFromTokens("sales.read")})
		require.NoError(t, err)
	}
	stats, err := reg.Stats(ctx, "org_big")
	require.NoError(t, err)
	assert.Equal(t, -1, stats.Limit)
	assert.True(t, stats.CanCreateMore)
}

func TestCreateCustom_RejectsEmptyName(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))

	_, _, err := reg.CreateCustom(context.Background(), "org_mini", CustomRoleInput{Name: "   "})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestPredeterminedRolesAreProtected(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))
	ctx := context.Background()

	provisioned, _, err := reg.Provision(ctx, "org_mini")
	require.NoError(t, err)

	name := "Renamed"
	perms := permissions.Set{}
	updates := []RoleUpdate{
		{},
		{Name: &name},
		{Permissions: &perms},
		{Name: &name, Description: &name, Permissions: &perms},
	}

	for _, role := range provisioned {
		for _, u := range updates {
			_, _, err := reg.Update(ctx, "org_mini", role.ID, u)
			var protected *errs.ProtectedRoleError
			assert.ErrorAs(t, err, &protected, "update %s", role.Name)
		}
		_, err := reg.Delete(ctx, "org_mini", role.ID)
		var protected *errs.ProtectedRoleError
		assert.ErrorAs(t, err, &protected, "delete %s", role.Name)
	}

	list, err := reg.List(ctx, "org_mini")
	require.NoError(t, err)
	assert.Len(t, list, len(provisioned))
}

func TestUpdate_CustomRole(t *testing.T) {
	reg := newTestRegistry(t, setupTestDB(t))
	ctx := context.Background()

	role, _, err := reg.CreateCustom(ctx, "org_mini", CustomRoleInput{Name: "Clerk", Permissions: permissions.MustFromTokens("inventory.read")})
	require.NoError(t, err)

	perms := permissions.MustFromTokens("inventory.read", "inventory.update")
	updated, evts, err := reg.Update(ctx, "org_mini", role.ID, RoleUpdate{Permissions: &perms})
	require.NoError(t, err)
	assert.Equal(t, "Clerk", updated.Name)
	assert.Equal(t, perms, updated.Permissions)
	require.Len(t, evts, 1)
	assert.Equal(t, events.RoleUpdated, evts[0].Type)

	stored, err := reg.Get(ctx, "org_mini", role.ID)
	require.NoError(t, err)
	assert.Equal(t, perms, stored.Permissions)

	// another organization cannot see it
	_, _, err = reg.Update(ctx, "org_resto", role.ID, RoleUpdate{Permissions: &perms})
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
	_, err = reg.Delete(ctx, "org_resto", role.ID)
	assert.ErrorAs(t, err, &nf)
}

func TestDelete_InUse(t *testing.T) {
	db := setupTestDB(t)
	reg := newTestRegistry(t, db)
	ctx := context.Background()

	role, _, err := reg.CreateCustom(ctx, "org_mini", CustomRoleInput{Name: "Clerk", Permissions: permissions.MustFromTokens("inventory.read")})
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO users (id, organization_id, email, role_id, status, created_at, updated_at)
		VALUES ('usr_1', 'org_mini', 'a@example.com', ?, 'active', 0, 0)`, role.ID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO invitations (id, organization_id, email, role_id, invited_by, status, token_hash, expires_at, created_at, updated_at)
		VALUES ('inv_1', 'org_mini', 'b@example.com', ?, 'usr_1', 'pending', 'x', ?, 0, 0)`, role.ID, testNow.Add(time.Hour).UnixMilli())
	require.NoError(t, err)

	_, err = reg.Delete(ctx, "org_mini", role.ID)
	var inUse *errs.RoleInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, 1, inUse.Members)
	assert.Equal(t, 1, inUse.Invitations)

	// disabled members and expired invitations no longer hold the role
	_, err = db.Exec(`UPDATE users SET status = 'disabled' WHERE id = 'usr_1'`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE invitations SET expires_at = ? WHERE id = 'inv_1'`, testNow.Add(-time.Millisecond).UnixMilli())
	require.NoError(t, err)

	evts, err := reg.Delete(ctx, "org_mini", role.ID)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, events.RoleDeleted, evts[0].Type)

	_, err = reg.Get(ctx, "org_mini", role.ID)
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestConcurrentCreateFromTemplate_OnlyOneWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")
	db, err := database.Open(config.DatabaseConfig{Path: path, MaxConnections: 8, BusyTimeout: 10 * time.Second})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(context.Background(), db))

	reg := newTestRegistry(t, db)
	ctx := context.Background()

	// free plan: limit 2, start at limit-1
	_, _, err = reg.CreateFromTemplate(ctx, "org_mini", "tpl_cashier", CreateFromTemplateInput{})
	require.NoError(t, err)

	const attempts = 2
	var wg sync.WaitGroup
	results := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, _, results[i] = reg.CreateFromTemplate(ctx, "org_mini", "tpl_stock_clerk", CreateFromTemplateInput{})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, exceeded := 0, 0
	for _, err := range results {
		var quotaErr *errs.QuotaExceededError
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorAs(t, err, &quotaErr):
			exceeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, exceeded)

	count, err := NewRepository(db).CountCustom(ctx, "org_mini")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
