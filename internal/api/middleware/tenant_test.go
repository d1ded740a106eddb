package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apiContext "orgauthz/internal/api/context"
	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/tenancy"
	"orgauthz/internal/platform/auth"
	"orgauthz/internal/platform/repositories"
)

var (
	orgColumns    = []string{"id", "name", "category", "plan_id", "created_at", "updated_at"}
	memberColumns = []string{"id", "organization_id", "email", "full_name", "role_id", "status", "created_at", "updated_at"}
)

func withClaims(req *http.Request, claims *auth.Claims) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), apiContext.Claims, claims))
}

func TestTenantMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	middleware := NewTenantMiddleware(repositories.NewOrganizationRepository(db), repositories.NewMemberRepository(db))

	t.Run("Valid Member", func(t *testing.T) {
		req := withClaims(httptest.NewRequest("GET", "/", nil), &auth.Claims{UserID: "usr_1", OrganizationID: "org_123", RoleID: "role_stale"})

		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_123").
			WillReturnRows(sqlmock.NewRows(orgColumns).AddRow("org_123", "Mini Uno", "minimarket", "free", 1, 1))
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
			WithArgs("usr_1").
			WillReturnRows(sqlmock.NewRows(memberColumns).AddRow("usr_1", "org_123", "a@example.com", "Ana", "role_current", "active", 1, 1))

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Context().Value(apiContext.Caller).(authz.Caller)
			if caller.OrganizationID != "org_123" {
				t.Errorf("Expected OrgID org_123, got %s", caller.OrganizationID)
			}
			if caller.RoleID != "role_current" {
				t.Errorf("Expected stored role role_current, got %s", caller.RoleID)
			}
			org := r.Context().Value(apiContext.Organization).(*tenancy.Organization)
			if org.Category != tenancy.Minimarket {
				t.Errorf("Expected minimarket, got %s", org.Category)
			}
			w.WriteHeader(http.StatusOK)
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Organization Not Found", func(t *testing.T) {
		req := withClaims(httptest.NewRequest("GET", "/", nil), &auth.Claims{UserID: "usr_1", OrganizationID: "org_missing"})

		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_missing").
			WillReturnError(sql.ErrNoRows)

		rr := httptest.NewRecorder()
		middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}).ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("Member Of Another Organization", func(t *testing.T) {
		req := withClaims(httptest.NewRequest("GET", "/", nil), &auth.Claims{UserID: "usr_9", OrganizationID: "org_123"})

		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_123").
			WillReturnRows(sqlmock.NewRows(orgColumns).AddRow("org_123", "Mini Uno", "minimarket", "free", 1, 1))
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
			WithArgs("usr_9").
			WillReturnRows(sqlmock.NewRows(memberColumns).AddRow("usr_9", "org_other", "b@example.com", "", "role_x", "active", 1, 1))

		rr := httptest.NewRecorder()
		middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}).ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("Missing Claims", func(t *testing.T) {
		rr := httptest.NewRecorder()
		middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
