package repositories

import (
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"iotgate/internal/platform/models"
)

func TestRequestLogInsertBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	defer db.Close()

	repo := NewRequestLogRepository(db)

	entries := []*models.RequestLog{
		{ID: "req_1", OrganizationID: "org_1", Endpoint: "/api/devices", Method: "GET", StatusCode: 200, CreatedAt: 1700000000},
		{ID: "req_2", OrganizationID: "org_1", Endpoint: "/api/keys", Method: "POST", StatusCode: 201, CreatedAt: 1700000001},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO request_logs")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.InsertBatch(entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRequestLogInsertBatchRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	defer db.Close()

	repo := NewRequestLogRepository(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO request_logs")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err = repo.InsertBatch([]*models.RequestLog{
		{ID: "req_1", Endpoint: "/a", Method: "GET"},
		{ID: "req_2", Endpoint: "/b", Method: "GET"},
	})
	if err == nil {
		t.Fatal("expected error from failed batch")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected rollback, nothing committed: %v", err)
	}
}

func TestRequestLogInsertBatchEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	defer db.Close()

	repo := NewRequestLogRepository(db)

	if err := repo.InsertBatch(nil); err != nil {
		t.Fatalf("empty batch must be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("empty batch must not touch the database: %v", err)
	}
}

func TestRequestLogListByOrgClampsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	defer db.Close()

	repo := NewRequestLogRepository(db)
	cols := []string{
		"id", "organization_id", "api_key_id", "endpoint", "method", "status_code",
		"duration_ms", "request_size", "response_size", "ip_address", "user_agent",
		"error_message", "created_at",
	}

	// out-of-range limits fall back to the default of 50
	for _, limit := range []int{0, -5, 9999} {
		mock.ExpectQuery("SELECT (.+) FROM request_logs WHERE organization_id = \\?").
			WithArgs("org_1", 50).
			WillReturnRows(sqlmock.NewRows(cols))

		if _, err := repo.ListByOrg("org_1", limit); err != nil {
			t.Fatalf("limit %d: unexpected error: %v", limit, err)
		}
	}

	mock.ExpectQuery("SELECT (.+) FROM request_logs WHERE organization_id = \\?").
		WithArgs("org_1", 100).
		WillReturnRows(sqlmock.NewRows(cols))
	if _, err := repo.ListByOrg("org_1", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
