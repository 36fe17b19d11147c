package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/pkg/cache"
)

func newTestService(t *testing.T) (*ContractService, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewContractService(repo, nil, 0)
	return svc, repo
}

func createTestContract(t *testing.T, svc *ContractService) *model.RentalContract {
	t.Helper()
	c, err := svc.LoadOrCreateByApplication(context.Background(), "app-1", "agency-1")
	require.NoError(t, err)
	return c
}

func TestLoadOrCreateByApplication(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.LoadOrCreateByApplication(ctx, "app-1", "agency-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, c.Status)
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, "app-1", c.ApplicationID)
	assert.NotEmpty(t, c.Content.Header.Content)

	// Second load returns the same contract, not a new one.
	again, err := svc.LoadOrCreateByApplication(ctx, "app-1", "agency-1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
}

func TestSaveContentIncrementsVersionByOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	content := c.Content
	content.Header.Content = "updated"

	updated, err := svc.SaveContent(ctx, c.ID, content, "first edit", c.Version)
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, updated.Version)
	assert.Equal(t, "updated", updated.Content.Header.Content)
	assert.Equal(t, "first edit", updated.Notes)

	updated2, err := svc.SaveContent(ctx, c.ID, content, "second edit", updated.Version)
	require.NoError(t, err)
	assert.Equal(t, updated.Version+1, updated2.Version)
}

func TestSaveContentStaleVersionConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	content := c.Content
	content.Header.Content = "writer A"
	_, err := svc.SaveContent(ctx, c.ID, content, "", c.Version)
	require.NoError(t, err)

	// Writer B still holds the old version and must be rejected.
	content.Header.Content = "writer B"
	_, err = svc.SaveContent(ctx, c.ID, content, "", c.Version)
	require.ErrorIs(t, err, ErrVersionConflict)

	current, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "writer A", current.Content.Header.Content)
}

func TestSaveContentUnknownContract(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SaveContent(context.Background(), "missing", model.DefaultContent(), "", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveContentRejectsMissingSectionTitle(t *testing.T) {
	svc, _ := newTestService(t)
	c := createTestContract(t, svc)

	content := c.Content
	content.Conditions.Title = ""
	_, err := svc.SaveContent(context.Background(), c.ID, content, "", c.Version)
	assert.True(t, IsValidation(err), "expected validation error, got %v", err)
}

func TestUpdateStatusApprovedSetsTimestampOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	approved, err := svc.UpdateStatus(ctx, c.ID, model.StatusApproved, "broker@agencia.cl")
	require.NoError(t, err)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, "broker@agencia.cl", approved.ApprovedBy)
	firstApprovedAt := *approved.ApprovedAt

	// A repeat write of the same status changes nothing.
	repeat, err := svc.UpdateStatus(ctx, c.ID, model.StatusApproved, "otro@agencia.cl")
	require.NoError(t, err)
	require.NotNil(t, repeat.ApprovedAt)
	assert.Equal(t, firstApprovedAt, *repeat.ApprovedAt)
	assert.Equal(t, "broker@agencia.cl", repeat.ApprovedBy)
}

func TestUpdateStatusSentToSignatureTimestampOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	_, err := svc.UpdateStatus(ctx, c.ID, model.StatusApproved, "broker")
	require.NoError(t, err)
	sent, err := svc.UpdateStatus(ctx, c.ID, model.StatusSentToSignature, "broker")
	require.NoError(t, err)
	require.NotNil(t, sent.SentToSignatureAt)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	_, err := svc.UpdateStatus(ctx, c.ID, model.StatusFullySigned, "broker")
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusDraft, ite.From)
	assert.Equal(t, model.StatusFullySigned, ite.To)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)
	c := createTestContract(t, svc)

	_, err := svc.UpdateStatus(context.Background(), c.ID, "archived", "broker")
	assert.True(t, IsValidation(err))
}

func TestUpdateStatusCancelFromDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	cancelled, err := svc.UpdateStatus(ctx, c.ID, model.StatusCancelled, "broker")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = svc.UpdateStatus(ctx, c.ID, model.StatusApproved, "broker")
	assert.Error(t, err)
}

const importText = `CLÁUSULA PRIMERA: COMPARECIENCIA
Comparecen las partes ya individualizadas.

CLÁUSULA SEGUNDA: OBJETO
Se arrienda el inmueble de Av. Italia 850.

CLÁUSULA QUINTA: OBLIGACIONES
El arrendatario cuidará el inmueble.

Firmado en dos ejemplares de un mismo tenor.`

func TestImportFromN8n(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	updated, err := svc.ImportFromN8n(ctx, c.ID, importText)
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, updated.Version)
	assert.Equal(t, ImportNotes, updated.Notes)
	assert.Contains(t, updated.Content.Header.Content, "COMPARECIENCIA")
	assert.Contains(t, updated.Content.Conditions.Content, "Av. Italia 850")
	assert.Contains(t, updated.Content.Signatures.Content, "Firmado en dos ejemplares")

	clauses, err := repo.ListClauses(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, clauses, 4) // three clauses plus the closing block
	for _, cl := range clauses {
		assert.NotEmpty(t, cl.ID)
		assert.Equal(t, c.ID, cl.ContractID)
	}
}

func TestImportFromN8nUnknownContract(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ImportFromN8n(context.Background(), "missing", importText)
	assert.ErrorIs(t, err, ErrNotFound)
}

// cancelSensitiveRepo fails any call whose context is already done,
// the way a real driver would.
type cancelSensitiveRepo struct {
	ContractRepository
}

func (r cancelSensitiveRepo) GetContract(ctx context.Context, id string) (*model.RentalContract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ContractRepository.GetContract(ctx, id)
}

func (r cancelSensitiveRepo) UpdateContent(ctx context.Context, id string, content model.ContractContent, notes string, expectedVersion int) (*model.RentalContract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ContractRepository.UpdateContent(ctx, id, content, notes, expectedVersion)
}

func TestImportAndSyncDetachedFromCallerCancellation(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewContractService(cancelSensitiveRepo{repo}, nil, 0)

	c, err := svc.LoadOrCreateByApplication(context.Background(), "app-1", "agency-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The flight outlives the caller that started it.
	imported, err := svc.ImportFromN8n(ctx, c.ID, importText)
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, imported.Version)

	synced, err := svc.SyncCanvasContent(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, imported.Version+1, synced.Version)
}

func TestSyncCanvasContent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	require.NoError(t, repo.ReplaceClauses(ctx, c.ID, []model.ContractClause{
		{ID: "cl-1", ContractID: c.ID, ClauseNumber: "PRIMERA", ClauseTitle: "COMPARECIENCIA",
			ClauseContent: "Las partes.", CanvasSection: model.SectionHeader, SortOrder: 0},
		{ID: "cl-2", ContractID: c.ID, ClauseNumber: "SEGUNDA", ClauseTitle: "OBJETO",
			ClauseContent: "El inmueble.", CanvasSection: model.SectionConditions, SortOrder: 1},
	}))

	synced, err := svc.SyncCanvasContent(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, synced.Version)
	assert.Equal(t, "CLÁUSULA PRIMERA: COMPARECIENCIA\nLas partes.", synced.Content.Header.Content)
	assert.Equal(t, "CLÁUSULA SEGUNDA: OBJETO\nEl inmueble.", synced.Content.Conditions.Content)
	assert.Empty(t, synced.Content.Obligations.Content)
	// Notes survive a sync; only imports overwrite them.
	assert.Equal(t, c.Notes, synced.Notes)
}

func TestSyncCanvasContentNoClauses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	synced, err := svc.SyncCanvasContent(ctx, c.ID)
	require.NoError(t, err)
	for _, key := range model.SectionKeys {
		assert.Empty(t, synced.Content.Section(key).Content)
		assert.Equal(t, model.DefaultSectionTitles[key], synced.Content.Section(key).Title)
	}
}

func TestConcurrentSavesOnlyOneWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := c.Content
			content.Header.Content = "writer"
			_, errs[i] = svc.SaveContent(ctx, c.ID, content, "", c.Version)
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	current, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, current.Version)
}

func TestLoadUsesCache(t *testing.T) {
	repo := NewMemoryRepository()
	readCache := cache.NewMemory(16)
	svc := NewContractService(repo, readCache, time.Minute)
	ctx := context.Background()

	c, err := svc.LoadOrCreateByApplication(ctx, "app-1", "agency-1")
	require.NoError(t, err)

	// Prime the cache, then change the store underneath it.
	loaded, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	_, err = repo.UpdateContent(ctx, c.ID, loaded.Content, "direct write", loaded.Version)
	require.NoError(t, err)

	cached, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, loaded.Version, cached.Version, "read should come from cache")

	// A save through the service invalidates the entry.
	fresh, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	content := fresh.Content
	_, err = svc.SaveContent(ctx, c.ID, content, "", loaded.Version+1)
	require.NoError(t, err)

	afterSave, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, loaded.Version+2, afterSave.Version)
}

func TestSetDetailsValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	err := svc.SetDetails(ctx, c.ID, model.ContractDetails{})
	assert.True(t, IsValidation(err), "missing broker name must fail")

	err = svc.SetDetails(ctx, c.ID, model.ContractDetails{BrokerName: "Corredora Sur", PaymentDay: 31})
	assert.True(t, IsValidation(err), "payment day 31 must fail")

	err = svc.SetDetails(ctx, c.ID, model.ContractDetails{BrokerName: "Corredora Sur", PaymentDay: 5})
	require.NoError(t, err)

	loaded, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Details)
	assert.Equal(t, "Corredora Sur", loaded.Details.BrokerName)
	assert.Equal(t, 5, loaded.Details.PaymentDay)
}

func TestAddClauseValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	_, err := svc.AddClause(ctx, model.ContractClause{ContractID: c.ID, CanvasSection: model.SectionHeader})
	assert.True(t, IsValidation(err), "missing clause number must fail")

	_, err = svc.AddClause(ctx, model.ContractClause{ContractID: c.ID, ClauseNumber: "SEXTA", CanvasSection: "annexes"})
	assert.True(t, IsValidation(err), "unknown section must fail")

	clause, err := svc.AddClause(ctx, model.ContractClause{
		ContractID:    c.ID,
		ClauseNumber:  "SEXTA",
		ClauseTitle:   "MASCOTAS",
		ClauseContent: "Se permite una mascota.",
		CanvasSection: model.SectionObligations,
		SortOrder:     5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, clause.ID)

	clauses, err := svc.Clauses(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
}

func TestRemoveClause(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := createTestContract(t, svc)

	clause, err := svc.AddClause(ctx, model.ContractClause{
		ContractID: c.ID, ClauseNumber: "SEXTA", CanvasSection: model.SectionObligations,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveClause(ctx, c.ID, clause.ID))
	assert.ErrorIs(t, svc.RemoveClause(ctx, c.ID, clause.ID), ErrClauseNotFound)
}
