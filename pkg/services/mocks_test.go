package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/repositories"
)

// ============================================================================
// Mock Implementations for Service Tests
// ============================================================================

// mockKnowledgeBaseRepo stores one knowledge base and enforces the version check.
type mockKnowledgeBaseRepo struct {
	mu     sync.Mutex
	stored *models.KnowledgeBase
	events *mockLearningEventRepo

	// concurrentWrites makes the next N writes lose to a simulated concurrent
	// writer that bumps the stored version.
	concurrentWrites int
	writes           int
	conflicts        int
	getErr           error
	writeErr         error
}

func newMockKnowledgeBaseRepo(events *mockLearningEventRepo) *mockKnowledgeBaseRepo {
	return &mockKnowledgeBaseRepo{events: events}
}

func cloneKB(kb *models.KnowledgeBase) *models.KnowledgeBase {
	data, _ := json.Marshal(kb)
	var out models.KnowledgeBase
	_ = json.Unmarshal(data, &out)
	return &out
}

func (m *mockKnowledgeBaseRepo) seed(kb *models.KnowledgeBase) *models.KnowledgeBase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kb.ID == uuid.Nil {
		kb.ID = uuid.New()
	}
	if kb.Version == 0 {
		kb.Version = 1
	}
	m.stored = cloneKB(kb)
	return cloneKB(kb)
}

func (m *mockKnowledgeBaseRepo) current() *models.KnowledgeBase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		return nil
	}
	return cloneKB(m.stored)
}

func (m *mockKnowledgeBaseRepo) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.KnowledgeBase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.stored == nil || m.stored.OrganizationID != orgID {
		return nil, apperrors.ErrNotFound
	}
	return cloneKB(m.stored), nil
}

func (m *mockKnowledgeBaseRepo) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored != nil && m.stored.OrganizationID == kb.OrganizationID {
		*kb = *cloneKB(m.stored)
		return nil
	}
	kb.ID = uuid.New()
	kb.Version = 1
	kb.CreatedAt = time.Now()
	kb.UpdatedAt = kb.CreatedAt
	m.stored = cloneKB(kb)
	return nil
}

func (m *mockKnowledgeBaseRepo) Write(ctx context.Context, w *repositories.KnowledgeBaseWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.concurrentWrites > 0 {
		m.concurrentWrites--
		m.stored.Version++
	}
	if m.stored == nil || m.stored.Version != w.ExpectedVersion {
		m.conflicts++
		return apperrors.ErrVersionConflict
	}

	if m.events != nil {
		if err := m.events.mark(w.Applied, w.Reverted); err != nil {
			m.conflicts++
			return err
		}
	}

	w.KnowledgeBase.Version = w.ExpectedVersion + 1
	m.stored = cloneKB(w.KnowledgeBase)
	return nil
}

// mockLearningEventRepo keeps events in memory.
type mockLearningEventRepo struct {
	mu        sync.Mutex
	events    []*models.LearningEvent
	createErr error
}

func newMockLearningEventRepo() *mockLearningEventRepo {
	return &mockLearningEventRepo{}
}

func (m *mockLearningEventRepo) add(events ...*models.LearningEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

func (m *mockLearningEventRepo) byID(id uuid.UUID) *models.LearningEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			c := *e
			return &c
		}
	}
	return nil
}

func (m *mockLearningEventRepo) mark(applied []repositories.AppliedEvent, reverted []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	index := make(map[uuid.UUID]*models.LearningEvent, len(m.events))
	for _, e := range m.events {
		index[e.ID] = e
	}
	// Check first so a failed write changes nothing.
	for _, a := range applied {
		if e, ok := index[a.EventID]; !ok || e.Applied {
			return apperrors.ErrVersionConflict
		}
	}
	now := time.Now()
	for _, a := range applied {
		e := index[a.EventID]
		e.Applied = true
		e.AppliedAt = &now
		e.AppliedToFields = nil
		for _, f := range a.Fields {
			e.AppliedToFields = append(e.AppliedToFields, string(f))
		}
	}
	for _, id := range reverted {
		if e, ok := index[id]; ok {
			e.Applied = false
			e.AppliedAt = nil
			e.AppliedToFields = nil
		}
	}
	return nil
}

func (m *mockLearningEventRepo) CreateBatch(ctx context.Context, events []*models.LearningEvent) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.add(events...)
	return nil
}

func (m *mockLearningEventRepo) ListRecentByCategory(ctx context.Context, kbID uuid.UUID, category models.InsightCategory, since time.Time) ([]*models.LearningEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LearningEvent
	for _, e := range m.events {
		if e.KnowledgeBaseID == kbID && e.Category == category && !e.CreatedAt.Before(since) {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockLearningEventRepo) ListPending(ctx context.Context, kbID uuid.UUID, minConfidence int) ([]*models.LearningEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LearningEvent
	for _, e := range m.events {
		if e.KnowledgeBaseID == kbID && !e.Applied && e.Confidence >= minConfidence {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockLearningEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningEvent, error) {
	if e := m.byID(id); e != nil {
		return e, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockLearningEventRepo) List(ctx context.Context, kbID uuid.UUID, filter models.LearningEventFilter) ([]*models.LearningEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LearningEvent
	for _, e := range m.events {
		if e.KnowledgeBaseID != kbID {
			continue
		}
		if filter.Applied != nil && e.Applied != *filter.Applied {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

// mockSavedAnalysisRepo keeps analyses in memory.
type mockSavedAnalysisRepo struct {
	mu        sync.Mutex
	analyses  map[uuid.UUID]*models.SavedAnalysis
	createErr error
}

func newMockSavedAnalysisRepo() *mockSavedAnalysisRepo {
	return &mockSavedAnalysisRepo{analyses: make(map[uuid.UUID]*models.SavedAnalysis)}
}

func (m *mockSavedAnalysisRepo) Create(ctx context.Context, a *models.SavedAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	c := *a
	m.analyses[a.ID] = &c
	return nil
}

func (m *mockSavedAnalysisRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SavedAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (m *mockSavedAnalysisRepo) List(ctx context.Context, orgID uuid.UUID, filter models.SavedAnalysisFilter) ([]*models.SavedAnalysisSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SavedAnalysisSummary
	for _, a := range m.analyses {
		if a.OrganizationID != orgID {
			continue
		}
		if filter.Finalized != nil && a.IsFinalized != *filter.Finalized {
			continue
		}
		out = append(out, summarize(a))
	}
	total := len(out)
	start := filter.Offset()
	if start > len(out) {
		start = len(out)
	}
	end := start + filter.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (m *mockSavedAnalysisRepo) Finalize(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	a.IsFinalized = true
	a.FinalizedAt = &now
	return nil
}

func (m *mockSavedAnalysisRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.analyses[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.analyses, id)
	return nil
}

func (m *mockSavedAnalysisRepo) ListVersions(ctx context.Context, id uuid.UUID) ([]*models.SavedAnalysisSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, ok := m.analyses[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	for root.ParentAnalysisID != nil {
		parent, ok := m.analyses[*root.ParentAnalysisID]
		if !ok {
			break
		}
		root = parent
	}
	chain := []*models.SavedAnalysisSummary{summarize(root)}
	for current := root.ID; ; {
		var next *models.SavedAnalysis
		for _, a := range m.analyses {
			if a.ParentAnalysisID != nil && *a.ParentAnalysisID == current {
				next = a
				break
			}
		}
		if next == nil {
			break
		}
		chain = append(chain, summarize(next))
		current = next.ID
	}
	return chain, nil
}

func summarize(a *models.SavedAnalysis) *models.SavedAnalysisSummary {
	return &models.SavedAnalysisSummary{
		ID:               a.ID,
		Title:            a.Title,
		Preview:          a.Preview,
		IsFinalized:      a.IsFinalized,
		VersionNumber:    a.VersionNumber,
		ParentAnalysisID: a.ParentAnalysisID,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// mockSOPRepo keeps SOPs in memory.
type mockSOPRepo struct {
	mu   sync.Mutex
	sops map[uuid.UUID]*models.SavedSOP
}

func newMockSOPRepo() *mockSOPRepo {
	return &mockSOPRepo{sops: make(map[uuid.UUID]*models.SavedSOP)}
}

func (m *mockSOPRepo) Create(ctx context.Context, sop *models.SavedSOP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sop.ID = uuid.New()
	if sop.Title == "" {
		sop.Title = sop.Document.Title
	}
	c := *sop
	m.sops[sop.ID] = &c
	return nil
}

func (m *mockSOPRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SavedSOP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sops[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *mockSOPRepo) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SavedSOP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SavedSOP
	for _, s := range m.sops {
		if s.OrganizationID == orgID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockSOPRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sops[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.sops, id)
	return nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []models.EnrichmentEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event models.EnrichmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) published() []models.EnrichmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EnrichmentEvent(nil), m.events...)
}

// mockTenantScopes hands out the incoming context unchanged.
type mockTenantScopes struct {
	acquired []uuid.UUID
	released int
	err      error
}

func (m *mockTenantScopes) WithTenantScope(ctx context.Context, orgID uuid.UUID) (context.Context, func(), error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	m.acquired = append(m.acquired, orgID)
	return ctx, func() { m.released++ }, nil
}

var (
	_ repositories.KnowledgeBaseRepository = (*mockKnowledgeBaseRepo)(nil)
	_ repositories.LearningEventRepository = (*mockLearningEventRepo)(nil)
	_ repositories.SavedAnalysisRepository = (*mockSavedAnalysisRepo)(nil)
	_ repositories.SOPRepository           = (*mockSOPRepo)(nil)
)
