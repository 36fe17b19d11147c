package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/parser"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/pkg/cache"
)

// ImportNotes is written to a contract when its content is replaced by
// an N8N import.
const ImportNotes = "Imported from N8N"

// ContractService owns the contract lifecycle: load-or-create, content
// saves with optimistic concurrency, guarded status transitions,
// clause import and canvas synchronization. Concurrent import/sync
// calls for the same contract are collapsed into one flight.
type ContractService struct {
	repo     ContractRepository
	cache    cache.Cache // optional
	cacheTTL time.Duration
	group    singleflight.Group
	now      func() time.Time
}

// NewContractService builds a service over the given repository.
// readCache may be nil to disable contract read caching.
func NewContractService(repo ContractRepository, readCache cache.Cache, cacheTTL time.Duration) *ContractService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ContractService{
		repo:     repo,
		cache:    readCache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func cacheKey(contractID string) string {
	return "contract:" + contractID
}

// Load fetches a contract by id, serving repeated reads from the
// cache when one is configured.
func (s *ContractService) Load(ctx context.Context, contractID string) (*model.RentalContract, error) {
	if s.cache != nil {
		if raw, found, err := s.cache.Get(ctx, cacheKey(contractID)); err == nil && found {
			var c model.RentalContract
			if err := json.Unmarshal(raw, &c); err == nil {
				return &c, nil
			}
			// Corrupt entry: drop it and fall through to the store.
			_ = s.cache.Invalidate(ctx, cacheKey(contractID))
		} else if err != nil {
			slog.Warn("contract cache read failed", "contract_id", contractID, "error", err)
		}
	}

	c, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, c)
	return c, nil
}

// LoadOrCreateByApplication returns the application's contract,
// creating it from the default template on first access.
func (s *ContractService) LoadOrCreateByApplication(ctx context.Context, applicationID, agency string) (*model.RentalContract, error) {
	c, err := s.repo.GetContractByApplication(ctx, applicationID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now()
	c = &model.RentalContract{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Agency:        agency,
		Status:        model.StatusDraft,
		Content:       model.DefaultContent(),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateContract(ctx, c); err != nil {
		// Lost a creation race: the other writer's contract wins.
		if IsValidation(err) {
			return s.repo.GetContractByApplication(ctx, applicationID)
		}
		return nil, err
	}
	slog.Info("contract created from default template",
		"contract_id", c.ID,
		"application_id", applicationID,
	)
	return c, nil
}

// SaveContent replaces the contract content, incrementing version by
// exactly one. expectedVersion is compared against the stored version;
// a stale value yields ErrVersionConflict and no write.
func (s *ContractService) SaveContent(ctx context.Context, contractID string, content model.ContractContent, notes string, expectedVersion int) (*model.RentalContract, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateContent(ctx, contractID, content, notes, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, contractID)
	slog.Info("contract content saved", "contract_id", contractID, "version", updated.Version)
	return updated, nil
}

// UpdateStatus moves a contract along the lifecycle. A repeat write of
// the current status is a no-op; approved_at and sent_to_signature_at
// are set only on the first transition into those states.
func (s *ContractService) UpdateStatus(ctx context.Context, contractID, status, actor string) (*model.RentalContract, error) {
	if !model.ValidStatus(status) {
		return nil, &ValidationError{Field: "status", Message: "unknown contract status"}
	}
	c, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.Status == status {
		return c, nil
	}
	if !model.CanTransition(c.Status, status) {
		return nil, &InvalidTransitionError{From: c.Status, To: status}
	}

	now := s.now()
	previous := c.Status
	c.Status = status
	switch status {
	case model.StatusApproved:
		if c.ApprovedAt == nil {
			c.ApprovedAt = &now
			c.ApprovedBy = actor
		}
	case model.StatusSentToSignature:
		if c.SentToSignatureAt == nil {
			c.SentToSignatureAt = &now
		}
	}

	if err := s.repo.UpdateStatus(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, contractID)
	slog.Info("contract status updated",
		"contract_id", contractID,
		"from", previous,
		"to", status,
		"actor", actor,
	)
	return s.repo.GetContract(ctx, contractID)
}

// SetDetails validates and persists the broker metadata.
func (s *ContractService) SetDetails(ctx context.Context, contractID string, details model.ContractDetails) error {
	if err := ValidateDetails(details); err != nil {
		return err
	}
	if err := s.repo.UpdateDetails(ctx, contractID, &details); err != nil {
		return err
	}
	s.invalidate(ctx, contractID)
	return nil
}

// ImportFromN8n parses raw legal text, replaces the contract's clause
// set with the parsed clauses and saves the projected canvas content.
// Concurrent imports for the same contract share a single flight.
func (s *ContractService) ImportFromN8n(ctx context.Context, contractID, rawText string) (*model.RentalContract, error) {
	result, err, _ := s.group.Do("import:"+contractID, func() (any, error) {
		// The flight is shared by every waiter; the first caller's
		// cancellation must not fail it for the others.
		ctx := context.WithoutCancel(ctx)

		c, err := s.repo.GetContract(ctx, contractID)
		if err != nil {
			return nil, err
		}

		clauses := parser.ClausesFromText(contractID, rawText)
		now := s.now()
		for i := range clauses {
			clauses[i].ID = uuid.New().String()
			clauses[i].CreatedAt = now
		}
		if err := s.repo.ReplaceClauses(ctx, contractID, clauses); err != nil {
			return nil, err
		}

		content := parser.ParseN8nContractToCanvas(rawText)
		updated, err := s.repo.UpdateContent(ctx, contractID, content, ImportNotes, c.Version)
		if err != nil {
			return nil, err
		}
		s.invalidate(ctx, contractID)
		slog.Info("contract imported from raw text",
			"contract_id", contractID,
			"clauses", len(clauses),
			"version", updated.Version,
		)
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.RentalContract), nil
}

// SyncCanvasContent regenerates contract_content from the stored
// clause set. Concurrent syncs for the same contract share a single
// flight.
func (s *ContractService) SyncCanvasContent(ctx context.Context, contractID string) (*model.RentalContract, error) {
	result, err, _ := s.group.Do("sync:"+contractID, func() (any, error) {
		ctx := context.WithoutCancel(ctx)

		c, err := s.repo.GetContract(ctx, contractID)
		if err != nil {
			return nil, err
		}
		clauses, err := s.repo.ListClauses(ctx, contractID)
		if err != nil {
			return nil, err
		}
		content := parser.CanvasFromClauses(clauses)
		updated, err := s.repo.UpdateContent(ctx, contractID, content, c.Notes, c.Version)
		if err != nil {
			return nil, err
		}
		s.invalidate(ctx, contractID)
		slog.Info("contract canvas synchronized",
			"contract_id", contractID,
			"clauses", len(clauses),
			"version", updated.Version,
		)
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.RentalContract), nil
}

// Clauses lists a contract's clauses in sort order.
func (s *ContractService) Clauses(ctx context.Context, contractID string) ([]model.ContractClause, error) {
	return s.repo.ListClauses(ctx, contractID)
}

// AddClause validates and stores a manually entered clause.
func (s *ContractService) AddClause(ctx context.Context, clause model.ContractClause) (*model.ContractClause, error) {
	if clause.ClauseNumber == "" {
		return nil, &ValidationError{Field: "clause_number", Message: "clause number is required"}
	}
	if !model.ValidSection(clause.CanvasSection) {
		return nil, &ValidationError{Field: "canvas_section", Message: "unknown canvas section"}
	}
	clause.ID = uuid.New().String()
	clause.CreatedAt = s.now()
	if err := s.repo.CreateClause(ctx, &clause); err != nil {
		return nil, err
	}
	return &clause, nil
}

// RemoveClause deletes one clause from a contract.
func (s *ContractService) RemoveClause(ctx context.Context, contractID, clauseID string) error {
	return s.repo.DeleteClause(ctx, contractID, clauseID)
}

// ValidateContent checks that every canvas section carries a title.
func ValidateContent(content model.ContractContent) error {
	for _, key := range model.SectionKeys {
		if content.Section(key).Title == "" {
			return &ValidationError{Field: key, Message: "section title is required"}
		}
	}
	return nil
}

// ValidateDetails checks the broker metadata. PaymentDay is capped at
// 28 so the day exists in every month; zero means unset.
func ValidateDetails(details model.ContractDetails) error {
	if details.BrokerName == "" {
		return &ValidationError{Field: "broker_name", Message: "broker name is required"}
	}
	if details.PaymentDay != 0 && (details.PaymentDay < 1 || details.PaymentDay > 28) {
		return &ValidationError{Field: "payment_day", Message: "payment day must be between 1 and 28"}
	}
	return nil
}

func (s *ContractService) fillCache(ctx context.Context, c *model.RentalContract) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(c.ID), raw, s.cacheTTL); err != nil {
		slog.Warn("contract cache write failed", "contract_id", c.ID, "error", err)
	}
}

func (s *ContractService) invalidate(ctx context.Context, contractID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cacheKey(contractID)); err != nil {
		slog.Warn("contract cache invalidation failed", "contract_id", contractID, "error", err)
	}
}
