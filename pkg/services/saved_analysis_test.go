package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/render"
)

func sampleIntake() models.IntakeForm {
	return models.IntakeForm{
		BusinessName: "Acme Dental",
		Industry:     "Healthcare",
		Tasks:        []string{"Answer patient emails", "Confirm appointments"},
		WeeklyHours:  20,
		Tools:        []string{"HubSpot"},
	}
}

func sampleResult() models.PipelineResult {
	return models.PipelineResult{
		Classification: models.ClassificationResult{
			RecommendedService: models.ServiceTypeDedicatedVA,
			Confidence:         84,
			Reasoning:          "Recurring front desk work in one domain",
		},
		Package: models.EngagementPackage{
			ServiceType: models.ServiceTypeDedicatedVA,
			Role:        &models.JobDescription{Title: "Patient Coordinator"},
			ExecutiveSummary: models.ExecutiveSummary{
				Overview: "Acme needs a coordinator. More detail follows.",
				ServiceRecommendation: models.ServiceRecommendation{
					Type:       models.ServiceTypeDedicatedVA,
					Confidence: 84,
				},
			},
		},
	}
}

func TestSavedAnalysisService_Save(t *testing.T) {
	repo := newMockSavedAnalysisRepo()
	pub := &mockPublisher{}
	svc := NewSavedAnalysisService(repo, pub, zap.NewNop())
	orgID := uuid.New()
	kbVersion := 7

	a, err := svc.Save(context.Background(), orgID, "user-1", &SaveAnalysisRequest{
		Intake:               sampleIntake(),
		Result:               sampleResult(),
		KnowledgeBaseVersion: &kbVersion,
	})
	require.NoError(t, err)
	assert.Equal(t, "Patient Coordinator for Acme Dental", a.Title)
	assert.Equal(t, 1, a.VersionNumber)
	assert.Equal(t, models.ServiceTypeDedicatedVA, a.Preview.ServiceType)
	assert.Equal(t, "Patient Coordinator", a.Result.Preview.RoleTitle)
	assert.Equal(t, &kbVersion, a.KnowledgeBaseVersion)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, models.EnrichmentAnalysisSaved, events[0].Kind)
	assert.Equal(t, a.ID, *events[0].AnalysisID)
	assert.Equal(t, "user-1", events[0].TriggeredBy)
}

func TestSavedAnalysisService_SaveSurvivesPublishFailure(t *testing.T) {
	repo := newMockSavedAnalysisRepo()
	svc := NewSavedAnalysisService(repo, &mockPublisher{err: errors.New("redis down")}, zap.NewNop())

	a, err := svc.Save(context.Background(), uuid.New(), "user-1", &SaveAnalysisRequest{Intake: sampleIntake(), Result: sampleResult()})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)
}

func TestSavedAnalysisService_SaveRejectsInvalidIntake(t *testing.T) {
	svc := NewSavedAnalysisService(newMockSavedAnalysisRepo(), nil, zap.NewNop())

	_, err := svc.Save(context.Background(), uuid.New(), "user-1", &SaveAnalysisRequest{Intake: models.IntakeForm{}})
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSavedAnalysisService_SaveDerivesPreviewFromPackage(t *testing.T) {
	repo := newMockSavedAnalysisRepo()
	svc := NewSavedAnalysisService(repo, nil, zap.NewNop())

	result := sampleResult()
	result.Preview = models.AnalysisPreview{
		ServiceType:  models.ServiceTypeProjectsOnDemand,
		RoleTitle:    "Stale Title",
		ProjectCount: 3,
	}
	a, err := svc.Save(context.Background(), uuid.New(), "user-1", &SaveAnalysisRequest{Intake: sampleIntake(), Result: result})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	report := render.BuildReport(&stored.Intake, &stored.Result, time.Now())
	assert.Equal(t, report.RoleTitle, stored.Preview.RoleTitle)
	assert.Equal(t, report.ProjectCount, stored.Preview.ProjectCount)
	assert.Equal(t, "Patient Coordinator", stored.Preview.RoleTitle)
	assert.Equal(t, 0, stored.Preview.ProjectCount)
	assert.Equal(t, models.ServiceTypeDedicatedVA, stored.Preview.ServiceType)
	assert.Equal(t, stored.Preview, stored.Result.Preview)
}

func TestSavedAnalysisService_SaveRejectsInconsistentResult(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *models.PipelineResult)
		wantField string
	}{
		{
			name:      "unknown classification",
			mutate:    func(r *models.PipelineResult) { r.Classification.RecommendedService = "Part-time VA" },
			wantField: "result.classification.recommended_service",
		},
		{
			name:      "package type differs from classification",
			mutate:    func(r *models.PipelineResult) { r.Package.ServiceType = models.ServiceTypeUnicornVA },
			wantField: "result.package.service_type",
		},
		{
			name: "recommendation differs from classification",
			mutate: func(r *models.PipelineResult) {
				r.Package.ExecutiveSummary.ServiceRecommendation.Type = models.ServiceTypeProjectsOnDemand
			},
			wantField: "result.package.executive_summary.service_recommendation",
		},
		{
			name:      "dedicated without role",
			mutate:    func(r *models.PipelineResult) { r.Package.Role = nil },
			wantField: "result.package.role",
		},
		{
			name: "projects without projects",
			mutate: func(r *models.PipelineResult) {
				r.Classification.RecommendedService = models.ServiceTypeProjectsOnDemand
				r.Package.ServiceType = models.ServiceTypeProjectsOnDemand
				r.Package.ExecutiveSummary.ServiceRecommendation.Type = models.ServiceTypeProjectsOnDemand
				r.Package.Role = nil
			},
			wantField: "result.package.projects",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockSavedAnalysisRepo()
			svc := NewSavedAnalysisService(repo, nil, zap.NewNop())

			result := sampleResult()
			tt.mutate(&result)
			_, err := svc.Save(context.Background(), uuid.New(), "user-1", &SaveAnalysisRequest{Intake: sampleIntake(), Result: result})

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Error(), tt.wantField)
			assert.Empty(t, repo.analyses)
		})
	}
}

func TestAnalysisTitle(t *testing.T) {
	intake := &models.IntakeForm{BusinessName: "Acme"}
	tests := []struct {
		name     string
		explicit string
		preview  models.AnalysisPreview
		want     string
	}{
		{"explicit wins", " Q3 plan ", models.AnalysisPreview{RoleTitle: "Ops VA"}, "Q3 plan"},
		{"role", "", models.AnalysisPreview{RoleTitle: "Ops VA"}, "Ops VA for Acme"},
		{"one project", "", models.AnalysisPreview{ProjectCount: 1}, "1 project for Acme"},
		{"several projects", "", models.AnalysisPreview{ProjectCount: 3}, "3 projects for Acme"},
		{"fallback", "", models.AnalysisPreview{}, "Acme analysis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analysisTitle(tt.explicit, intake, &tt.preview))
		})
	}
}

func TestSavedAnalysisService_VersionChain(t *testing.T) {
	repo := newMockSavedAnalysisRepo()
	svc := NewSavedAnalysisService(repo, nil, zap.NewNop())
	ctx := context.Background()
	orgID := uuid.New()

	first, err := svc.Save(ctx, orgID, "user-1", &SaveAnalysisRequest{Title: "Front desk", Intake: sampleIntake(), Result: sampleResult()})
	require.NoError(t, err)
	second, err := svc.Save(ctx, orgID, "user-1", &SaveAnalysisRequest{Intake: sampleIntake(), Result: sampleResult(), ParentAnalysisID: &first.ID})
	require.NoError(t, err)

	assert.Equal(t, 2, second.VersionNumber)
	assert.Equal(t, "Front desk", second.Title, "refinements keep the parent title")
	assert.Equal(t, first.ID, *second.ParentAnalysisID)

	chain, err := svc.Versions(ctx, orgID, second.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, first.ID, chain[0].ID)
	assert.Equal(t, second.ID, chain[1].ID)

	_, err = svc.Save(ctx, uuid.New(), "user-1", &SaveAnalysisRequest{Intake: sampleIntake(), Result: sampleResult(), ParentAnalysisID: &first.ID})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "parents from another organization are invisible")
}

func TestSavedAnalysisService_TenantIsolation(t *testing.T) {
	repo := newMockSavedAnalysisRepo()
	svc := NewSavedAnalysisService(repo, nil, zap.NewNop())
	ctx := context.Background()

	a, err := svc.Save(ctx, uuid.New(), "user-1", &SaveAnalysisRequest{Intake: sampleIntake(), Result: sampleResult()})
	require.NoError(t, err)

	_, err = svc.Get(ctx, uuid.New(), a.ID)
	assert.True(t, IsNotFound(err))
}

func TestSavedAnalysisService_FinalizeAndDeleteOwnerOnly(t *testing.T) {
	repo := newMockSavedAnalysisRepo()
	svc := NewSavedAnalysisService(repo, nil, zap.NewNop())
	ctx := context.Background()
	orgID := uuid.New()

	a, err := svc.Save(ctx, orgID, "owner", &SaveAnalysisRequest{Intake: sampleIntake(), Result: sampleResult()})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, orgID, "someone-else", a.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	assert.True(t, errors.Is(svc.Delete(ctx, orgID, "someone-else", a.ID), apperrors.ErrForbidden))

	finalized, err := svc.Finalize(ctx, orgID, "owner", a.ID)
	require.NoError(t, err)
	assert.True(t, finalized.IsFinalized)
	require.NotNil(t, finalized.FinalizedAt)

	again, err := svc.Finalize(ctx, orgID, "owner", a.ID)
	require.NoError(t, err)
	assert.Equal(t, finalized.FinalizedAt, again.FinalizedAt)

	require.NoError(t, svc.Delete(ctx, orgID, "owner", a.ID))
	_, err = svc.Get(ctx, orgID, a.ID)
	assert.True(t, IsNotFound(err))
}

func TestSavedAnalysisService_ListPaging(t *testing.T) {
	repo := newMockSavedAnalysisRepo()
	svc := NewSavedAnalysisService(repo, nil, zap.NewNop())
	ctx := context.Background()
	orgID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := svc.Save(ctx, orgID, "user-1", &SaveAnalysisRequest{Intake: sampleIntake(), Result: sampleResult()})
		require.NoError(t, err)
	}

	items, page, err := svc.List(ctx, orgID, models.SavedAnalysisFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 2, Total: 5, TotalPages: 3}, page)

	_, page, err = svc.List(ctx, orgID, models.SavedAnalysisFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageLimit, page.Limit)
}
