package repositories

import (
	"database/sql"

	"iotgate/internal/platform/models"
)

type RequestLogRepository struct {
	db *sql.DB
}

func NewRequestLogRepository(db *sql.DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// InsertBatch writes one flush of telemetry records in a single
// transaction. Either the whole batch lands or none of it does, so a failed
// flush can be re-queued without producing duplicates.
func (r *RequestLogRepository) InsertBatch(entries []*models.RequestLog) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO request_logs (id, organization_id, api_key_id, endpoint, method, status_code, duration_ms, request_size, response_size, ip_address, user_agent, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.ID, e.OrganizationID, e.APIKeyID, e.Endpoint, e.Method, e.StatusCode, e.DurationMs, e.RequestSize, e.ResponseSize, e.IPAddress, e.UserAgent, e.ErrorMessage, e.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *RequestLogRepository) ListByOrg(orgID string, limit int) ([]*models.RequestLog, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, organization_id, api_key_id, endpoint, method, status_code, duration_ms, request_size, response_size, ip_address, user_agent, error_message, created_at
		FROM request_logs WHERE organization_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRequestLogs(rows)
}

func (r *RequestLogRepository) ListByOrgRange(orgID string, start, end int64) ([]*models.RequestLog, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, api_key_id, endpoint, method, status_code, duration_ms, request_size, response_size, ip_address, user_agent, error_message, created_at
		FROM request_logs WHERE organization_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC
	`, orgID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRequestLogs(rows)
}

func scanRequestLogs(rows *sql.Rows) ([]*models.RequestLog, error) {
	var entries []*models.RequestLog
	for rows.Next() {
		e := &models.RequestLog{}
		var orgID, keyID, errMsg sql.NullString
		var reqSize, respSize sql.NullInt64
		if err := rows.Scan(&e.ID, &orgID, &keyID, &e.Endpoint, &e.Method, &e.StatusCode, &e.DurationMs, &reqSize, &respSize, &e.IPAddress, &e.UserAgent, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.OrganizationID = orgID.String
		e.APIKeyID = keyID.String
		e.ErrorMessage = errMsg.String
		e.RequestSize = reqSize.Int64
		e.ResponseSize = respSize.Int64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
