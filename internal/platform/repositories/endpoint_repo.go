package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"iotgate/internal/platform/models"

	"github.com/google/uuid"
)

type EndpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

func (r *EndpointRepository) Create(ep *models.Endpoint) error {
	if ep.ID == "" {
		ep.ID = "ep_" + uuid.New().String()
	}
	now := time.Now().Unix()
	ep.CreatedAt = now
	ep.UpdatedAt = now

	configJSON, err := json.Marshal(ep.Config)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO endpoints (id, organization_id, name, endpoint_type, config, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ep.ID, ep.OrganizationID, ep.Name, ep.EndpointType, string(configJSON), ep.Active, ep.CreatedAt, ep.UpdatedAt)
	return err
}

func (r *EndpointRepository) GetByID(orgID, id string) (*models.Endpoint, error) {
	row := r.db.QueryRow(`
		SELECT id, organization_id, name, endpoint_type, config, active, last_triggered_at, last_error, created_at, updated_at
		FROM endpoints WHERE id = ? AND organization_id = ?
	`, id, orgID)
	return scanEndpoint(row)
}

func (r *EndpointRepository) ListByOrg(orgID string) ([]*models.Endpoint, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, name, endpoint_type, config, active, last_triggered_at, last_error, created_at, updated_at
		FROM endpoints WHERE organization_id = ?
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []*models.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

func (r *EndpointRepository) Update(orgID string, ep *models.Endpoint) error {
	ep.UpdatedAt = time.Now().Unix()

	configJSON, err := json.Marshal(ep.Config)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(`
		UPDATE endpoints SET name = ?, endpoint_type = ?, config = ?, active = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, ep.Name, ep.EndpointType, string(configJSON), ep.Active, ep.UpdatedAt, ep.ID, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *EndpointRepository) Delete(orgID, id string) error {
	res, err := r.db.Exec(`DELETE FROM endpoints WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *EndpointRepository) RecordTriggerResult(id string, triggeredAt int64, deliveryErr string) error {
	_, err := r.db.Exec(`UPDATE endpoints SET last_triggered_at = ?, last_error = ? WHERE id = ?`,
		triggeredAt, deliveryErr, id)
	return err
}

func scanEndpoint(row rowScanner) (*models.Endpoint, error) {
	ep := &models.Endpoint{}
	var configStr string
	var active int
	var lastTriggered sql.NullInt64
	var lastError sql.NullString

	err := row.Scan(&ep.ID, &ep.OrganizationID, &ep.Name, &ep.EndpointType, &configStr, &active, &lastTriggered, &lastError, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	ep.Active = active != 0
	if lastTriggered.Valid {
		ep.LastTriggeredAt = &lastTriggered.Int64
	}
	ep.LastError = lastError.String
	if err := json.Unmarshal([]byte(configStr), &ep.Config); err != nil {
		return nil, err
	}
	return ep, nil
}
