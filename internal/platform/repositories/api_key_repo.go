package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"iotgate/internal/platform/models"

	"github.com/google/uuid"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	key.CreatedAt = time.Now().Unix()
	key.Active = true

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_keys (id, organization_id, user_id, name, key_hash, key_prefix, scopes, active, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	_, err = r.db.Exec(query, key.ID, key.OrganizationID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, string(scopesJSON), key.CreatedAt, key.ExpiresAt)
	return err
}

func (r *APIKeyRepository) GetByHash(hash string) (*models.APIKey, error) {
	query := `SELECT id, organization_id, user_id, name, key_prefix, scopes, active, last_used_at, created_at, expires_at FROM api_keys WHERE key_hash = ?`
	row := r.db.QueryRow(query, hash)

	k, err := scanAPIKey(row)
	if err != nil {
		return nil, err
	}
	if k != nil {
		k.KeyHash = hash
	}
	return k, nil
}

func (r *APIKeyRepository) GetByID(orgID, id string) (*models.APIKey, error) {
	query := `SELECT id, organization_id, user_id, name, key_prefix, scopes, active, last_used_at, created_at, expires_at FROM api_keys WHERE id = ? AND organization_id = ?`
	return scanAPIKey(r.db.QueryRow(query, id, orgID))
}

func (r *APIKeyRepository) ListByOrg(orgID string) ([]*models.APIKey, error) {
	query := `SELECT id, organization_id, user_id, name, key_prefix, scopes, active, last_used_at, created_at, expires_at FROM api_keys WHERE organization_id = ? ORDER BY created_at DESC`
	rows, err := r.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *APIKeyRepository) Update(orgID, id, name string, scopes []string) error {
	scopesJSON, err := json.Marshal(scopes)
	if err != nil {
		return err
	}
	res, err := r.db.Exec(`UPDATE api_keys SET name = ?, scopes = ? WHERE id = ? AND organization_id = ?`,
		name, string(scopesJSON), id, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RotateSecret replaces the stored digest and prefix, invalidating the old
// secret immediately.
func (r *APIKeyRepository) RotateSecret(orgID, id, keyHash, keyPrefix string) error {
	res, err := r.db.Exec(`UPDATE api_keys SET key_hash = ?, key_prefix = ? WHERE id = ? AND organization_id = ?`,
		keyHash, keyPrefix, id, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *APIKeyRepository) Revoke(orgID, id string) error {
	res, err := r.db.Exec(`UPDATE api_keys SET active = 0 WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *APIKeyRepository) Delete(orgID, id string) error {
	res, err := r.db.Exec(`DELETE FROM api_keys WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *APIKeyRepository) UpdateLastUsed(id string) error {
	_, err := r.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var k models.APIKey
	var scopesStr string
	var active int
	var lastUsedAt, expiresAt sql.NullInt64

	err := row.Scan(&k.ID, &k.OrganizationID, &k.UserID, &k.Name, &k.KeyPrefix, &scopesStr, &active, &lastUsedAt, &k.CreatedAt, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	k.Active = active != 0
	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Int64
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Int64
	}
	json.Unmarshal([]byte(scopesStr), &k.Scopes)

	return &k, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
