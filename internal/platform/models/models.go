package models

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// roleRank orders roles for >= comparisons. Unknown roles rank lowest.
var roleRank = map[string]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// RoleAtLeast reports whether role grants at least the permissions of min.
func RoleAtLeast(role, min string) bool {
	return roleRank[role] >= roleRank[min]
}

type Organization struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	PlanTier    string `json:"plan_tier"`
	DeviceQuota int    `json:"device_quota"`
	MemberQuota int    `json:"member_quota"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	DeletedAt   *int64 `json:"deleted_at,omitempty"`
}

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	PasswordHash  string `json:"-"`
	FullName      string `json:"full_name"`
	LastLoginAt   *int64 `json:"last_login_at,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// Membership ties a user to an organization with a role. A user may belong
// to several organizations; handlers authorize against the membership row.
type Membership struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	CreatedAt      int64  `json:"created_at"`

	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

type Device struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	DeviceType     string `json:"device_type"`
	Status         string `json:"status"`
	ClaimCode      string `json:"claim_code,omitempty"`
	FirmwareVer    string `json:"firmware_version,omitempty"`
	LastSeenAt     *int64 `json:"last_seen_at,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// StorageProfile points file operations at one storage location for an
// organization. Provider is "local" in this deployment; the path is always
// resolved under the org's own root.
type StorageProfile struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Provider       string `json:"provider"`
	RootPath       string `json:"root_path"`
	MaxSizeMB      int    `json:"max_size_mb"`
	CreatedAt      int64  `json:"created_at"`
}

type BillingPlan struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceCents      int    `json:"price_cents"`
	DeviceLimit     int    `json:"device_limit"`
	MonthlyRequests int    `json:"monthly_requests"`
	CreatedAt       int64  `json:"created_at"`
}

type Subscription struct {
	ID               string `json:"id"`
	OrganizationID   string `json:"organization_id"`
	PlanID           string `json:"plan_id"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}
