package handlers

import (
	"iotgate/internal/gateway"
	"iotgate/internal/platform/models"
)

type Dependencies struct {
	Devices   *DeviceHandler
	Endpoints *EndpointHandler
	Files     *FilesHandler
	Orgs      *OrgHandler
	Billing   *BillingHandler
	Keys      *KeyHandler
	Analytics *AnalyticsHandler
}

// Register compiles the gateway route table. Scope gates cover both
// credential kinds; role gates additionally bind session callers on
// mutating key-management routes.
func Register(router *gateway.Router, deps *Dependencies) {
	read := func(h gateway.Handler) gateway.Handler { return gateway.RequireScope(models.ScopeRead, h) }
	write := func(h gateway.Handler) gateway.Handler { return gateway.RequireScope(models.ScopeWrite, h) }
	keysAdmin := func(h gateway.Handler) gateway.Handler {
		return gateway.RequireScope(models.ScopeKeys, gateway.RequireRole(models.RoleAdmin, h))
	}

	// devices
	router.Handle("GET", "/api/devices", read(deps.Devices.List))
	router.Handle("POST", "/api/devices", write(deps.Devices.Create))
	router.Handle("GET", "/api/devices/:id", read(deps.Devices.Get))
	router.Handle("PUT", "/api/devices/:id", write(deps.Devices.Update))
	router.Handle("DELETE", "/api/devices/:id", write(deps.Devices.Delete))
	router.Handle("GET", "/api/devices/:id/qr", read(deps.Devices.QRCode))

	// endpoints
	router.Handle("GET", "/api/endpoints", read(deps.Endpoints.List))
	router.Handle("POST", "/api/endpoints", write(deps.Endpoints.Create))
	router.Handle("GET", "/api/endpoints/:id", read(deps.Endpoints.Get))
	router.Handle("PUT", "/api/endpoints/:id", write(deps.Endpoints.Update))
	router.Handle("DELETE", "/api/endpoints/:id", write(deps.Endpoints.Delete))
	router.Handle("POST", "/api/endpoints/:id/trigger", write(deps.Endpoints.Trigger))

	// files: exact routes win over the browse wildcard
	router.Handle("GET", "/api/files/list", read(deps.Files.ListFiles))
	router.Handle("GET", "/api/files/profiles", read(deps.Files.ListProfiles))
	router.Handle("POST", "/api/files/profiles", write(deps.Files.CreateProfile))
	router.Handle("GET", "/api/files/profiles/:id", read(deps.Files.GetProfile))
	router.Handle("GET", "/api/files/browse/*", read(deps.Files.Browse))

	// organizations
	router.Handle("GET", "/api/organizations", read(deps.Orgs.List))
	router.Handle("GET", "/api/organizations/:id", read(deps.Orgs.Get))
	router.Handle("GET", "/api/organizations/:id/members", read(deps.Orgs.Members))

	// billing
	router.Handle("GET", "/api/billing/plans", read(deps.Billing.ListPlans))
	router.Handle("GET", "/api/billing/subscription", read(deps.Billing.GetSubscription))

	// keys: usage is exact and must win over /api/keys/:id
	router.Handle("GET", "/api/keys/usage", read(deps.Keys.Usage))
	router.Handle("GET", "/api/keys", read(deps.Keys.List))
	router.Handle("POST", "/api/keys", keysAdmin(deps.Keys.Create))
	router.Handle("PUT", "/api/keys/:id", keysAdmin(deps.Keys.Update))
	router.Handle("DELETE", "/api/keys/:id", keysAdmin(deps.Keys.Delete))
	router.Handle("POST", "/api/keys/:id/refresh", keysAdmin(deps.Keys.Refresh))

	// analytics
	router.Handle("GET", "/api/analytics/overview", gateway.RequireScope(models.ScopeAnalytics, deps.Analytics.Overview))
}
