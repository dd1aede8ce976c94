package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoshaviv/flow-tester-sub001/internal/dispatch"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

func TestAnalysisService_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	scope, err := e.access.Organization(ctx, e.owner, "acme")
	require.NoError(t, err)

	var slug string

	t.Run("Step1_CreateDispatchesTask", func(t *testing.T) {
		analysis, err := e.analyses.Create(ctx, scope, &CreateAnalysisRequest{ModelSlug: "gpt-4.1"})
		require.NoError(t, err)
		slug = analysis.Slug

		assert.Equal(t, models.RunStatusPending, analysis.Status)
		assert.Equal(t, "gpt-4.1", analysis.ModelSlug)
		assert.Equal(t, "OpenAI", analysis.ModelProvider)

		require.Len(t, e.dispatcher.tasks, 1)
		task := e.dispatcher.tasks[0]
		assert.Equal(t, dispatch.TaskTypeAnalysis, task.TaskType)
		assert.Equal(t, slug, task.AnalysisSlug)
		assert.Equal(t, "acme.io", task.OrganizationDomain)
		assert.Equal(t, "owner@acme.io", task.UserEmail)
		assert.Empty(t, task.TestRunSlug)
	})

	t.Run("Step2_ListAndGet", func(t *testing.T) {
		list, err := e.analyses.List(ctx, scope)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, slug, list[0].Slug)

		got, err := e.analyses.Get(ctx, scope, slug)
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Organization.Slug)

		_, err = e.analyses.Get(ctx, scope, "missing")
		requireKind(t, err, ErrNotFound)
	})

	t.Run("Step3_AgentReports", func(t *testing.T) {
		got, err := e.analyses.Report(ctx, slug, &ReportAnalysisRequest{Status: models.RunStatusRunning})
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusRunning, got.Status)
		assert.NotNil(t, got.StartedAt)

		_, err = e.analyses.Report(ctx, slug, &ReportAnalysisRequest{Status: models.RunStatusSucceeded})
		requireKind(t, err, ErrInvalidInput)

		_, err = e.analyses.Report(ctx, slug, &ReportAnalysisRequest{AnalysisURL: strPtr("not a url")})
		requireKind(t, err, ErrInvalidInput)

		got, err = e.analyses.Report(ctx, slug, &ReportAnalysisRequest{
			Status:      models.RunStatusSucceeded,
			AnalysisURL: strPtr(" https://reports.local/acme.html "),
		})
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusSucceeded, got.Status)
		assert.Equal(t, "https://reports.local/acme.html", got.AnalysisURL)
		assert.NotNil(t, got.FinishedAt)

		_, err = e.analyses.Report(ctx, slug, &ReportAnalysisRequest{Status: models.RunStatusFailed})
		requireKind(t, err, ErrInvalidInput)

		last := e.notifier.messages[len(e.notifier.messages)-1]
		assert.Equal(t, slug, last.runID)
		assert.Equal(t, MessageTypeAnalysisStatus, last.msgType)
		assert.Equal(t, models.RunStatusSucceeded, last.payload.(AnalysisStatusEvent).Status)
	})

	t.Run("Step4_Delete", func(t *testing.T) {
		require.NoError(t, e.analyses.Delete(ctx, scope, slug))

		_, err := e.analyses.Get(ctx, scope, slug)
		requireKind(t, err, ErrNotFound)
		_, err = e.analyses.Report(ctx, slug, &ReportAnalysisRequest{Status: models.RunStatusRunning})
		requireKind(t, err, ErrNotFound)
	})
}

func TestAnalysisService_ManagersOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	owner, err := e.access.Organization(ctx, e.owner, "acme")
	require.NoError(t, err)
	analysis, err := e.analyses.Create(ctx, owner, &CreateAnalysisRequest{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModelSlug, analysis.ModelSlug)

	tester := e.signUp(t, "tester@acme.io")
	_, err = e.orgs.AddMember(ctx, owner, &AddMemberRequest{Email: "tester@acme.io", Role: models.RoleTester})
	require.NoError(t, err)
	scope, err := e.access.Organization(ctx, tester, "acme")
	require.NoError(t, err)

	list, err := e.analyses.List(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = e.analyses.Create(ctx, scope, &CreateAnalysisRequest{})
	requireKind(t, err, ErrNotAuthorized)
	_, err = e.analyses.Update(ctx, scope, analysis.Slug, &ReportAnalysisRequest{Status: models.RunStatusFailed})
	requireKind(t, err, ErrNotAuthorized)
	requireKind(t, e.analyses.Delete(ctx, scope, analysis.Slug), ErrNotAuthorized)

	updated, err := e.analyses.Update(ctx, owner, analysis.Slug, &ReportAnalysisRequest{Status: models.RunStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, updated.Status)
}

func TestAnalysisService_UnknownModelAndDispatchFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	scope, err := e.access.Organization(ctx, e.owner, "acme")
	require.NoError(t, err)

	_, err = e.analyses.Create(ctx, scope, &CreateAnalysisRequest{ModelSlug: "no-such-model"})
	requireKind(t, err, ErrNotFound)

	e.dispatcher.err = errors.New("agents down")
	analysis, err := e.analyses.Create(ctx, scope, &CreateAnalysisRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, analysis.Status)
}

func TestAnalysisService_OtherOrganizationNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	owner, err := e.access.Organization(ctx, e.owner, "acme")
	require.NoError(t, err)
	analysis, err := e.analyses.Create(ctx, owner, &CreateAnalysisRequest{})
	require.NoError(t, err)

	rival := e.signUp(t, "boss@rival.io")
	_, err = e.orgs.Create(ctx, rival, &CreateOrganizationRequest{Name: "Rival", Domain: "rival.io"})
	require.NoError(t, err)
	other, err := e.access.Organization(ctx, rival, "rival")
	require.NoError(t, err)

	_, err = e.analyses.Get(ctx, other, analysis.Slug)
	requireKind(t, err, ErrNotFound)
}
