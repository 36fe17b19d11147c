package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
)

// MemoryRepository is an in-memory ContractRepository used with the
// memory store driver and in tests. It applies the same version
// compare-and-swap semantics as the Postgres implementation.
type MemoryRepository struct {
	mu        sync.RWMutex
	contracts map[string]*model.RentalContract
	byApp     map[string]string // application_id -> contract id
	clauses   map[string][]model.ContractClause
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		contracts: make(map[string]*model.RentalContract),
		byApp:     make(map[string]string),
		clauses:   make(map[string][]model.ContractClause),
	}
}

func cloneContract(c *model.RentalContract) *model.RentalContract {
	out := *c
	if c.Details != nil {
		d := *c.Details
		out.Details = &d
	}
	if c.ApprovedAt != nil {
		ts := *c.ApprovedAt
		out.ApprovedAt = &ts
	}
	if c.SentToSignatureAt != nil {
		ts := *c.SentToSignatureAt
		out.SentToSignatureAt = &ts
	}
	return &out
}

func (r *MemoryRepository) GetContract(ctx context.Context, id string) (*model.RentalContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneContract(c), nil
}

func (r *MemoryRepository) GetContractByApplication(ctx context.Context, applicationID string) (*model.RentalContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byApp[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneContract(r.contracts[id]), nil
}

func (r *MemoryRepository) CreateContract(ctx context.Context, c *model.RentalContract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byApp[c.ApplicationID]; exists {
		return &ValidationError{Field: "application_id", Message: "application already has a contract"}
	}
	r.contracts[c.ID] = cloneContract(c)
	r.byApp[c.ApplicationID] = c.ID
	return nil
}

func (r *MemoryRepository) UpdateContent(ctx context.Context, id string, content model.ContractContent, notes string, expectedVersion int) (*model.RentalContract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	c.Content = content
	c.Notes = notes
	c.Version++
	c.UpdatedAt = time.Now()
	return cloneContract(c), nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, in *model.RentalContract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[in.ID]
	if !ok {
		return ErrNotFound
	}
	c.Status = in.Status
	c.ApprovedBy = in.ApprovedBy
	c.ApprovedAt = in.ApprovedAt
	c.SentToSignatureAt = in.SentToSignatureAt
	c.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) UpdateDetails(ctx context.Context, id string, details *model.ContractDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return ErrNotFound
	}
	if details != nil {
		d := *details
		c.Details = &d
	} else {
		c.Details = nil
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ListClauses(ctx context.Context, contractID string) ([]model.ContractClause, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.contracts[contractID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]model.ContractClause, len(r.clauses[contractID]))
	copy(out, r.clauses[contractID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (r *MemoryRepository) ReplaceClauses(ctx context.Context, contractID string, clauses []model.ContractClause) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contracts[contractID]; !ok {
		return ErrNotFound
	}
	replacement := make([]model.ContractClause, len(clauses))
	copy(replacement, clauses)
	r.clauses[contractID] = replacement
	return nil
}

func (r *MemoryRepository) CreateClause(ctx context.Context, clause *model.ContractClause) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contracts[clause.ContractID]; !ok {
		return ErrNotFound
	}
	r.clauses[clause.ContractID] = append(r.clauses[clause.ContractID], *clause)
	return nil
}

func (r *MemoryRepository) DeleteClause(ctx context.Context, contractID, clauseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.clauses[contractID]
	for i, cl := range list {
		if cl.ID == clauseID {
			r.clauses[contractID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrClauseNotFound
}
