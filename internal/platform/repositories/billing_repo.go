package repositories

import (
	"database/sql"
	"time"

	"iotgate/internal/platform/models"

	"github.com/google/uuid"
)

type BillingRepository struct {
	db *sql.DB
}

func NewBillingRepository(db *sql.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) ListPlans() ([]*models.BillingPlan, error) {
	rows, err := r.db.Query(`
		SELECT id, name, price_cents, device_limit, monthly_requests, created_at
		FROM billing_plans ORDER BY price_cents ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.BillingPlan
	for rows.Next() {
		p := &models.BillingPlan{}
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.DeviceLimit, &p.MonthlyRequests, &p.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *BillingRepository) GetSubscriptionByOrg(orgID string) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := r.db.QueryRow(`
		SELECT id, organization_id, plan_id, status, current_period_end, created_at, updated_at
		FROM subscriptions WHERE organization_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, orgID).Scan(&s.ID, &s.OrganizationID, &s.PlanID, &s.Status, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *BillingRepository) CreateSubscriptionTx(tx *sql.Tx, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = "sub_" + uuid.New().String()
	}
	now := time.Now().Unix()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := tx.Exec(`
		INSERT INTO subscriptions (id, organization_id, plan_id, status, current_period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.OrganizationID, sub.PlanID, sub.Status, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt)
	return err
}
