package service

import (
	"context"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
)

// ContractRepository is the persistence boundary for contracts and
// their clauses. Implementations: PostgresRepository (pgx) and
// MemoryRepository (dev/tests).
type ContractRepository interface {
	// GetContract returns the contract with the given id, or
	// ErrNotFound.
	GetContract(ctx context.Context, id string) (*model.RentalContract, error)

	// GetContractByApplication returns the single contract owned by an
	// application, or ErrNotFound.
	GetContractByApplication(ctx context.Context, applicationID string) (*model.RentalContract, error)

	// CreateContract inserts a new contract row.
	CreateContract(ctx context.Context, c *model.RentalContract) error

	// UpdateContent replaces contract_content and notes, bumping
	// version by one. The write is conditional on expectedVersion:
	// a stale version yields ErrVersionConflict. Returns the updated
	// contract.
	UpdateContent(ctx context.Context, id string, content model.ContractContent, notes string, expectedVersion int) (*model.RentalContract, error)

	// UpdateStatus persists the contract's status and lifecycle
	// timestamps as currently set on c.
	UpdateStatus(ctx context.Context, c *model.RentalContract) error

	// UpdateDetails persists the broker metadata.
	UpdateDetails(ctx context.Context, id string, details *model.ContractDetails) error

	// ListClauses returns a contract's clauses ordered by sort_order.
	ListClauses(ctx context.Context, contractID string) ([]model.ContractClause, error)

	// ReplaceClauses atomically swaps a contract's clause set.
	ReplaceClauses(ctx context.Context, contractID string, clauses []model.ContractClause) error

	// CreateClause inserts one clause.
	CreateClause(ctx context.Context, clause *model.ContractClause) error

	// DeleteClause removes one clause, or returns ErrClauseNotFound.
	DeleteClause(ctx context.Context, contractID, clauseID string) error
}
