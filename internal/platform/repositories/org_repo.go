package repositories

import (
	"database/sql"

	"iotgate/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

func (r *OrganizationRepository) CreateTx(tx *sql.Tx, org *models.Organization) error {
	_, err := tx.Exec(`
		INSERT INTO organizations (id, slug, name, plan_tier, device_quota, member_quota, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, org.ID, org.Slug, org.Name, org.PlanTier, org.DeviceQuota, org.MemberQuota, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) GetByID(id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, slug, name, plan_tier, device_quota, member_quota, created_at, updated_at, deleted_at
		FROM organizations WHERE id = ? AND deleted_at IS NULL
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.PlanTier, &org.DeviceQuota, &org.MemberQuota, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) GetBySlug(slug string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, slug, name, plan_tier, device_quota, member_quota, created_at, updated_at, deleted_at
		FROM organizations WHERE slug = ? AND deleted_at IS NULL
	`, slug).Scan(&org.ID, &org.Slug, &org.Name, &org.PlanTier, &org.DeviceQuota, &org.MemberQuota, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

// ListByUser returns every organization the user holds a membership in.
func (r *OrganizationRepository) ListByUser(userID string) ([]*models.Organization, error) {
	rows, err := r.db.Query(`
		SELECT o.id, o.slug, o.name, o.plan_tier, o.device_quota, o.member_quota, o.created_at, o.updated_at
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = ? AND o.deleted_at IS NULL
		ORDER BY o.created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Slug, &org.Name, &org.PlanTier, &org.DeviceQuota, &org.MemberQuota, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}
