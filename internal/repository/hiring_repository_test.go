package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/internal/model"
)

var requestCols = []string{"id", "client_id", "category_id", "city", "event_date", "budget_min", "budget_max",
	"additional_details", "status", "response_count", "created_at", "expires_at"}

var responseCols = []string{"id", "request_id", "artist_id", "response_type", "proposed_price", "message", "status", "created_at"}

func newMockRepo(t *testing.T) (*HiringRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewHiringRepo(db), mock
}

func TestHiringRepo_LoadRequest(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM hiring_requests WHERE id = ?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("r1", "c1", "dj", "Bogotá", now.Add(48*time.Hour), 100, 200, "", "active", 2, now, now.Add(time.Hour)))

	req, err := repo.LoadRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Bogotá", req.City)
	assert.Equal(t, model.RequestActive, req.Status)
	assert.Equal(t, 2, req.ResponseCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHiringRepo_LoadRequestMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM hiring_requests").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.LoadRequest(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHiringRepo_SaveRequestDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO hiring_requests").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'r1' for key 'PRIMARY'"})

	err := repo.SaveRequest(context.Background(), model.HiringRequest{ID: "r1", Status: model.RequestActive})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestHiringRepo_LoadResponsesNullablePrice(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM hiring_responses WHERE request_id = ?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(responseCols).
			AddRow("x1", "r1", "a1", "accept", nil, "", "pending", now).
			AddRow("x2", "r1", "a2", "counteroffer", 150, "can do", "pending", now))

	got, err := repo.LoadResponses(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].ProposedPrice)
	require.NotNil(t, got[1].ProposedPrice)
	assert.Equal(t, int64(150), *got[1].ProposedPrice)
	assert.Equal(t, model.ResponseCounterOffer, got[1].ResponseType)
}

func TestHiringRepo_ApplyCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	price := int64(150)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE hiring_requests SET status = (.+) WHERE id = (.+) AND status = ?").
		WithArgs("completed", 2, "r1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO hiring_responses").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO hiring_responses").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.Apply(context.Background(), model.Changeset{
		Requests: []model.HiringRequest{{ID: "r1", Status: model.RequestCompleted, ResponseCount: 2}},
		Responses: []model.HiringResponse{
			{ID: "x1", RequestID: "r1", ArtistID: "a1", ResponseType: model.ResponseCounterOffer, ProposedPrice: &price, Status: model.ResponseAccepted},
			{ID: "x2", RequestID: "r1", ArtistID: "a2", ResponseType: model.ResponseAccept, Status: model.ResponseRejected},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHiringRepo_ApplyGuardConflictRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE hiring_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Apply(context.Background(), model.Changeset{
		Requests:  []model.HiringRequest{{ID: "r1", Status: model.RequestExpired}},
		Responses: []model.HiringResponse{{ID: "x1", RequestID: "r1", Status: model.ResponseRejected}},
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHiringRepo_ApplyEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)
	require.NoError(t, repo.Apply(context.Background(), model.Changeset{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHiringRepo_ListExpirable(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM hiring_requests WHERE status = (.+) AND expires_at <= ?").
		WithArgs("active", sqlmock.AnyArg(), expirableBatch).
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("r1", "c1", "dj", "Lima", now, 1, 2, "", "active", 0, now, now))

	got, err := repo.ListExpirable(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}
