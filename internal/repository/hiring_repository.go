package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/internal/model"
)

// expirableBatch bounds how many requests one sweep loads.
const expirableBatch = 500

const requestColumns = `id, client_id, category_id, city, event_date, budget_min, budget_max,
	additional_details, status, response_count, created_at, expires_at`

const responseColumns = `id, request_id, artist_id, response_type, proposed_price, message, status, created_at`

// HiringRepo provides data access to the hiring_requests and
// hiring_responses tables.  All timestamps are stored and compared in UTC.
type HiringRepo struct {
	db *sql.DB
}

// NewHiringRepo returns a HiringRepo bound to db.
func NewHiringRepo(db *sql.DB) *HiringRepo { return &HiringRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(s rowScanner) (model.HiringRequest, error) {
	var (
		r      model.HiringRequest
		status string
	)
	err := s.Scan(&r.ID, &r.ClientID, &r.CategoryID, &r.City, &r.EventDate, &r.BudgetMin, &r.BudgetMax,
		&r.AdditionalDetails, &status, &r.ResponseCount, &r.CreatedAt, &r.ExpiresAt)
	r.Status = model.RequestStatus(status)
	return r, err
}

func scanResponse(s rowScanner) (model.HiringResponse, error) {
	var (
		r        model.HiringResponse
		respType string
		status   string
		price    sql.NullInt64
	)
	err := s.Scan(&r.ID, &r.RequestID, &r.ArtistID, &respType, &price, &r.Message, &status, &r.CreatedAt)
	r.ResponseType = model.ResponseType(respType)
	r.Status = model.ResponseStatus(status)
	if price.Valid {
		p := price.Int64
		r.ProposedPrice = &p
	}
	return r, err
}

// LoadRequest returns the request with id, or apperr.ErrNotFound.
func (r *HiringRepo) LoadRequest(ctx context.Context, id string) (model.HiringRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM hiring_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		return model.HiringRequest{}, translate(err)
	}
	return req, nil
}

// SaveRequest inserts a new request.  A second insert with the same id is a
// conflict.
func (r *HiringRepo) SaveRequest(ctx context.Context, req model.HiringRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hiring_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ClientID, req.CategoryID, req.City, req.EventDate.UTC(), req.BudgetMin, req.BudgetMax,
		req.AdditionalDetails, string(req.Status), req.ResponseCount, req.CreatedAt.UTC(), req.ExpiresAt.UTC(),
	)
	return translate(err)
}

// LoadResponses returns every response to requestID, oldest first.
func (r *HiringRepo) LoadResponses(ctx context.Context, requestID string) ([]model.HiringResponse, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM hiring_responses WHERE request_id = ? ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HiringResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// SaveResponse inserts resp or, when a row with its id exists, updates its
// status.
func (r *HiringRepo) SaveResponse(ctx context.Context, resp model.HiringResponse) error {
	return upsertResponse(ctx, r.db, resp)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertResponse(ctx context.Context, db execer, resp model.HiringResponse) error {
	var price sql.NullInt64
	if resp.ProposedPrice != nil {
		price = sql.NullInt64{Int64: *resp.ProposedPrice, Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO hiring_responses (`+responseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE status = VALUES(status)`,
		resp.ID, resp.RequestID, resp.ArtistID, string(resp.ResponseType), price, resp.Message,
		string(resp.Status), resp.CreatedAt.UTC(),
	)
	return translate(err)
}

// Apply persists cs in one transaction.  Every request update is guarded on
// the stored row still being active; when a guard matches no row the whole
// changeset is rolled back and apperr.ErrConflict is returned.
func (r *HiringRepo) Apply(ctx context.Context, cs model.Changeset) (err error) {
	if cs.Empty() {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, req := range cs.Requests {
		res, execErr := tx.ExecContext(ctx,
			`UPDATE hiring_requests SET status = ?, response_count = ? WHERE id = ? AND status = ?`,
			string(req.Status), req.ResponseCount, req.ID, string(model.RequestActive),
		)
		if execErr != nil {
			return execErr
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return raErr
		}
		if n == 0 {
			return apperr.ErrConflict.WithMessage(fmt.Sprintf("hiring request %s is no longer active", req.ID))
		}
	}
	for _, resp := range cs.Responses {
		if err = upsertResponse(ctx, tx, resp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListExpirable returns active requests whose expiry is at or before now.
func (r *HiringRepo) ListExpirable(ctx context.Context, now time.Time) ([]model.HiringRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM hiring_requests WHERE status = ? AND expires_at <= ? ORDER BY expires_at LIMIT ?`,
		string(model.RequestActive), now.UTC(), expirableBatch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HiringRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
