package repositories

import (
	"database/sql"
	"time"

	"iotgate/internal/platform/models"

	"github.com/google/uuid"
)

type StorageProfileRepository struct {
	db *sql.DB
}

func NewStorageProfileRepository(db *sql.DB) *StorageProfileRepository {
	return &StorageProfileRepository{db: db}
}

func (r *StorageProfileRepository) Create(p *models.StorageProfile) error {
	if p.ID == "" {
		p.ID = "prof_" + uuid.New().String()
	}
	p.CreatedAt = time.Now().Unix()
	if p.Provider == "" {
		p.Provider = "local"
	}

	_, err := r.db.Exec(`
		INSERT INTO storage_profiles (id, organization_id, name, provider, root_path, max_size_mb, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OrganizationID, p.Name, p.Provider, p.RootPath, p.MaxSizeMB, p.CreatedAt)
	return err
}

func (r *StorageProfileRepository) GetByID(orgID, id string) (*models.StorageProfile, error) {
	p := &models.StorageProfile{}
	err := r.db.QueryRow(`
		SELECT id, organization_id, name, provider, root_path, max_size_mb, created_at
		FROM storage_profiles WHERE id = ? AND organization_id = ?
	`, id, orgID).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Provider, &p.RootPath, &p.MaxSizeMB, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *StorageProfileRepository) ListByOrg(orgID string) ([]*models.StorageProfile, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, name, provider, root_path, max_size_mb, created_at
		FROM storage_profiles WHERE organization_id = ?
		ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.StorageProfile
	for rows.Next() {
		p := &models.StorageProfile{}
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Provider, &p.RootPath, &p.MaxSizeMB, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
