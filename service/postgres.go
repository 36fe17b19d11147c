package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint
// violations.
const uniqueViolation = "23505"

// PostgresRepository is the pgx-backed ContractRepository. Contract
// content and broker details are stored as jsonb.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps an existing connection pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const contractColumns = `id, application_id, agency, status, contract_content, version,
notes, details, approved_by, created_at, updated_at, approved_at, sent_to_signature_at`

func scanContract(row pgx.Row) (*model.RentalContract, error) {
	var (
		c            model.RentalContract
		contentBytes []byte
		detailsBytes []byte
	)
	err := row.Scan(&c.ID, &c.ApplicationID, &c.Agency, &c.Status, &contentBytes, &c.Version,
		&c.Notes, &detailsBytes, &c.ApprovedBy, &c.CreatedAt, &c.UpdatedAt, &c.ApprovedAt, &c.SentToSignatureAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan contract: %w", err)
	}
	if err := json.Unmarshal(contentBytes, &c.Content); err != nil {
		return nil, fmt.Errorf("decode contract_content: %w", err)
	}
	if len(detailsBytes) > 0 {
		c.Details = &model.ContractDetails{}
		if err := json.Unmarshal(detailsBytes, c.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
	}
	return &c, nil
}

func (r *PostgresRepository) GetContract(ctx context.Context, id string) (*model.RentalContract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM rental_contracts WHERE id=$1`, id)
	return scanContract(row)
}

func (r *PostgresRepository) GetContractByApplication(ctx context.Context, applicationID string) (*model.RentalContract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM rental_contracts WHERE application_id=$1`, applicationID)
	return scanContract(row)
}

func (r *PostgresRepository) CreateContract(ctx context.Context, c *model.RentalContract) error {
	contentBytes, err := json.Marshal(c.Content)
	if err != nil {
		return fmt.Errorf("encode contract_content: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO rental_contracts(id, application_id, agency, status, contract_content, version, notes, approved_by, created_at, updated_at)
VALUES($1,$2,$3,$4,$5::jsonb,$6,$7,$8,$9,$10)`,
		c.ID, c.ApplicationID, c.Agency, c.Status, string(contentBytes), c.Version, c.Notes, c.ApprovedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return insertContractError(err)
	}
	return nil
}

// insertContractError surfaces a duplicate application_id as the same
// ValidationError the memory repository returns.
// LoadOrCreateByApplication relies on it to resolve creation races.
func insertContractError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &ValidationError{Field: "application_id", Message: "application already has a contract"}
	}
	return fmt.Errorf("insert contract: %w", err)
}

func (r *PostgresRepository) UpdateContent(ctx context.Context, id string, content model.ContractContent, notes string, expectedVersion int) (*model.RentalContract, error) {
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode contract_content: %w", err)
	}
	row := r.pool.QueryRow(ctx, `
UPDATE rental_contracts
SET contract_content=$2::jsonb, notes=$3, version=version+1, updated_at=now()
WHERE id=$1 AND version=$4
RETURNING `+contractColumns, id, string(contentBytes), notes, expectedVersion)

	updated, err := scanContract(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// No row matched: distinguish a missing contract from a stale
	// version.
	var exists bool
	if qErr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rental_contracts WHERE id=$1)`, id).Scan(&exists); qErr != nil {
		return nil, fmt.Errorf("check contract existence: %w", qErr)
	}
	if exists {
		return nil, ErrVersionConflict
	}
	return nil, ErrNotFound
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, c *model.RentalContract) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE rental_contracts
SET status=$2, approved_by=$3, approved_at=$4, sent_to_signature_at=$5, updated_at=now()
WHERE id=$1`,
		c.ID, c.Status, c.ApprovedBy, c.ApprovedAt, c.SentToSignatureAt)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id string, details *model.ContractDetails) error {
	var detailsArg any
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}
		detailsArg = string(b)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE rental_contracts SET details=$2::jsonb, updated_at=now() WHERE id=$1`, id, detailsArg)
	if err != nil {
		return fmt.Errorf("update details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const clauseColumns = `id, contract_id, clause_number, clause_title, clause_content, canvas_section, sort_order, created_at`

func (r *PostgresRepository) ListClauses(ctx context.Context, contractID string) ([]model.ContractClause, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clauseColumns+` FROM contract_clauses WHERE contract_id=$1 ORDER BY sort_order, created_at`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	defer rows.Close()

	var out []model.ContractClause
	for rows.Next() {
		var cl model.ContractClause
		if err := rows.Scan(&cl.ID, &cl.ContractID, &cl.ClauseNumber, &cl.ClauseTitle, &cl.ClauseContent, &cl.CanvasSection, &cl.SortOrder, &cl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ReplaceClauses(ctx context.Context, contractID string, clauses []model.ContractClause) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace clauses: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM contract_clauses WHERE contract_id=$1`, contractID); err != nil {
		return fmt.Errorf("clear clauses: %w", err)
	}
	for _, cl := range clauses {
		if _, err := tx.Exec(ctx, `
INSERT INTO contract_clauses(id, contract_id, clause_number, clause_title, clause_content, canvas_section, sort_order, created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			cl.ID, cl.ContractID, cl.ClauseNumber, cl.ClauseTitle, cl.ClauseContent, cl.CanvasSection, cl.SortOrder, cl.CreatedAt); err != nil {
			return fmt.Errorf("insert clause: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) CreateClause(ctx context.Context, cl *model.ContractClause) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO contract_clauses(id, contract_id, clause_number, clause_title, clause_content, canvas_section, sort_order, created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		cl.ID, cl.ContractID, cl.ClauseNumber, cl.ClauseTitle, cl.ClauseContent, cl.CanvasSection, cl.SortOrder, cl.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert clause: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteClause(ctx context.Context, contractID, clauseID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contract_clauses WHERE contract_id=$1 AND id=$2`, contractID, clauseID)
	if err != nil {
		return fmt.Errorf("delete clause: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClauseNotFound
	}
	return nil
}
