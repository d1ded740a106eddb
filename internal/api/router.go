package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "orgauthz/internal/api/context"
	"orgauthz/internal/api/handlers"
	"orgauthz/internal/api/middleware"
	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/platform/metrics"
)

type Dependencies struct {
	OrgHandler        *handlers.OrgHandler
	RoleHandler       *handlers.RoleHandler
	InvitationHandler *handlers.InvitationHandler
	MemberHandler     *handlers.MemberHandler
	AuditHandler      *handlers.AuditHandler
	HealthHandler     *handlers.HealthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	TenantMiddleware  *middleware.TenantMiddleware
	RateLimiter       *middleware.RateLimiter
	Authorizer        middleware.Authorizer
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// member returns the chain for an authenticated route guarded by one
	// permission.
	member := func(route string, handler http.HandlerFunc, module permissions.Module, action permissions.Action) httprouter.Handle {
		return chain(route, handler,
			deps.AuthMiddleware.Handle,
			deps.TenantMiddleware.Handle,
			deps.RateLimiter.Handle,
			middleware.RequirePermission(deps.Authorizer, module, action),
		)
	}
	handle := func(method, route string, handler http.HandlerFunc, module permissions.Module, action permissions.Action) {
		router.Handle(method, route, member(route, handler, module, action))
	}

	router.GET("/health", wrap("/health", deps.HealthHandler.Check))
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	// Organization bootstrap and invitation acceptance are public
	router.POST("/api/v1/organizations", chain("/api/v1/organizations", deps.OrgHandler.Create, deps.RateLimiter.Handle))
	router.POST("/api/v1/invitations/:invitation_id/accept",
		chain("/api/v1/invitations/:invitation_id/accept", deps.InvitationHandler.Accept, deps.RateLimiter.Handle))

	router.GET("/api/v1/organizations/current",
		chain("/api/v1/organizations/current", deps.OrgHandler.GetCurrent, deps.AuthMiddleware.Handle, deps.TenantMiddleware.Handle))
	router.GET("/api/v1/me/permissions",
		chain("/api/v1/me/permissions", deps.RoleHandler.MyPermissions, deps.AuthMiddleware.Handle, deps.TenantMiddleware.Handle))
	handle(http.MethodPut, "/api/v1/organizations/current/plan", deps.OrgHandler.UpdatePlan, permissions.Users, permissions.Update)

	// Roles
	handle(http.MethodGet, "/api/v1/roles", deps.RoleHandler.List, permissions.Users, permissions.Read)
	handle(http.MethodPost, "/api/v1/roles", deps.RoleHandler.Create, permissions.Users, permissions.Create)
	handle(http.MethodGet, "/api/v1/roles/:role_id", deps.RoleHandler.Get, permissions.Users, permissions.Read)
	handle(http.MethodPatch, "/api/v1/roles/:role_id", deps.RoleHandler.Update, permissions.Users, permissions.Update)
	handle(http.MethodDelete, "/api/v1/roles/:role_id", deps.RoleHandler.Delete, permissions.Users, permissions.Delete)
	handle(http.MethodGet, "/api/v1/role-templates", deps.RoleHandler.Templates, permissions.Users, permissions.Read)
	handle(http.MethodGet, "/api/v1/role-stats", deps.RoleHandler.Stats, permissions.Users, permissions.Read)

	// Invitations
	handle(http.MethodPost, "/api/v1/invitations", deps.InvitationHandler.Create, permissions.Users, permissions.Create)
	handle(http.MethodGet, "/api/v1/invitations", deps.InvitationHandler.List, permissions.Users, permissions.Read)
	handle(http.MethodGet, "/api/v1/invitations/:invitation_id", deps.InvitationHandler.Get, permissions.Users, permissions.Read)
	handle(http.MethodPost, "/api/v1/invitations/:invitation_id/resend", deps.InvitationHandler.Resend, permissions.Users, permissions.Create)
	handle(http.MethodDelete, "/api/v1/invitations/:invitation_id", deps.InvitationHandler.Cancel, permissions.Users, permissions.Delete)

	// Members
	handle(http.MethodGet, "/api/v1/members", deps.MemberHandler.List, permissions.Users, permissions.Read)
	handle(http.MethodPatch, "/api/v1/members/:user_id/role", deps.MemberHandler.UpdateRole, permissions.Users, permissions.Update)
	handle(http.MethodDelete, "/api/v1/members/:user_id", deps.MemberHandler.Suspend, permissions.Users, permissions.Delete)

	// Audit
	handle(http.MethodGet, "/api/v1/audit-logs", deps.AuditHandler.List, permissions.Reports, permissions.Read)

	return router
}

// Helper function to chain middlewares
func chain(route string, handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(route, handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(route string, handler http.HandlerFunc) httprouter.Handle {
	instrumented := metrics.Instrument(route, handler)
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		instrumented.ServeHTTP(w, r.WithContext(ctx))
	}
}
