package repositories

import (
	"database/sql"
	"time"

	"iotgate/internal/platform/models"

	"github.com/google/uuid"
)

// DeviceRepository scopes every statement by organization_id. Cross-tenant
// reads and writes are impossible at this layer regardless of what IDs the
// caller supplies.
type DeviceRepository struct {
	db *sql.DB
}

func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Create(device *models.Device) error {
	if device.ID == "" {
		device.ID = "dev_" + uuid.New().String()
	}
	now := time.Now().Unix()
	device.CreatedAt = now
	device.UpdatedAt = now
	if device.Status == "" {
		device.Status = "offline"
	}
	if device.ClaimCode == "" {
		device.ClaimCode = uuid.New().String()
	}

	_, err := r.db.Exec(`
		INSERT INTO devices (id, organization_id, name, device_type, status, claim_code, firmware_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, device.ID, device.OrganizationID, device.Name, device.DeviceType, device.Status, device.ClaimCode, device.FirmwareVer, device.CreatedAt, device.UpdatedAt)
	return err
}

func (r *DeviceRepository) GetByID(orgID, id string) (*models.Device, error) {
	d := &models.Device{}
	var lastSeen sql.NullInt64
	err := r.db.QueryRow(`
		SELECT id, organization_id, name, device_type, status, claim_code, firmware_version, last_seen_at, created_at, updated_at
		FROM devices WHERE id = ? AND organization_id = ?
	`, id, orgID).Scan(&d.ID, &d.OrganizationID, &d.Name, &d.DeviceType, &d.Status, &d.ClaimCode, &d.FirmwareVer, &lastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if lastSeen.Valid {
		d.LastSeenAt = &lastSeen.Int64
	}
	return d, nil
}

func (r *DeviceRepository) ListByOrg(orgID string) ([]*models.Device, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, name, device_type, status, claim_code, firmware_version, last_seen_at, created_at, updated_at
		FROM devices WHERE organization_id = ?
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		d := &models.Device{}
		var lastSeen sql.NullInt64
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.DeviceType, &d.Status, &d.ClaimCode, &d.FirmwareVer, &lastSeen, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			d.LastSeenAt = &lastSeen.Int64
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *DeviceRepository) Update(orgID string, device *models.Device) error {
	device.UpdatedAt = time.Now().Unix()
	res, err := r.db.Exec(`
		UPDATE devices SET name = ?, device_type = ?, status = ?, firmware_version = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, device.Name, device.DeviceType, device.Status, device.FirmwareVer, device.UpdatedAt, device.ID, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *DeviceRepository) Delete(orgID, id string) error {
	res, err := r.db.Exec(`DELETE FROM devices WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *DeviceRepository) CountByOrg(orgID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM devices WHERE organization_id = ?`, orgID).Scan(&n)
	return n, err
}
