package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/castline/castline/pkg/content"
	"github.com/castline/castline/pkg/models"
	"github.com/castline/castline/pkg/persistence/memory"
	"github.com/castline/castline/pkg/profiles"
	"github.com/castline/castline/pkg/services"
	"github.com/castline/castline/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webTestCatalog = `
speaker_profiles:
  - name: duo
    speakers:
      - name: Ana
      - name: Leo
episode_profiles:
  - name: tech-talk
    briefing: Dig into the topic.
    speaker_profile: duo
    num_segments: 1
`

// stubRunner completes every workflow with one canned segment.
type stubRunner struct {
	store *memory.Persistence
}

func (r *stubRunner) Run(ctx context.Context, workflowID string) (*models.Workflow, error) {
	repo := r.store.WorkflowRepository()

	workflow, err := repo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if err := workflow.StartPlanning(); err != nil {
		return nil, err
	}

	plan := &models.Plan{Segments: []models.PlanSegment{{Name: "Only", Size: models.SegmentSizeShort}}}
	if err := workflow.BeginWriting(plan); err != nil {
		return nil, err
	}

	outputs := []models.SegmentOutput{{
		Index: 0,
		Name:  "Only",
		Lines: []models.DialogueLine{{Speaker: "Ana", Text: "hello"}},
	}}
	if err := workflow.Complete(outputs); err != nil {
		return nil, err
	}

	if err := repo.Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func setupTestApp(t *testing.T) (*fiber.App, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()

	profileStore, err := profiles.Parse([]byte(webTestCatalog))
	require.NoError(t, err)

	resolver := content.NewLibrary([]content.Item{{Title: "notes", Text: "library text"}})
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	workflowService := services.NewWorkflow(store, profileStore, resolver, &stubRunner{store: store}, nil, logger)
	handlers := web.NewAPIHandlers(workflowService, validator.New())

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, store
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestCreateWorkflow_ReturnsTerminalRecord(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name:           "Test Episode",
		Content:        "source text",
		EpisodeProfile: "tech-talk",
	})
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, models.StatusCompleted, workflow.Status)
	assert.NotEmpty(t, workflow.ID)
	assert.Len(t, workflow.SegmentOutputs, 1)
}

func TestCreateWorkflow_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		request web.CreateWorkflowRequest
	}{
		{
			name: "missing name",
			request: web.CreateWorkflowRequest{
				Content:        "text",
				EpisodeProfile: "tech-talk",
			},
		},
		{
			name: "both content and content_ref",
			request: web.CreateWorkflowRequest{
				Name:           "Ambiguous",
				Content:        "text",
				ContentRef:     "notes",
				EpisodeProfile: "tech-talk",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestApp(t)

			resp := postJSON(t, app, "/workflows", tt.request)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateWorkflow_UnknownProfileIsNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name:           "No Profile",
		Content:        "text",
		EpisodeProfile: "missing",
	})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows/missing", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetTranscript_Flow(t *testing.T) {
	app, store := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name:           "Transcribed",
		Content:        "source text",
		EpisodeProfile: "tech-talk",
	})
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	req := httptest.NewRequest(http.MethodGet, "/workflows/"+workflow.ID+"/transcript", nil)

	transcriptResp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = transcriptResp.Body.Close() }()

	require.Equal(t, http.StatusOK, transcriptResp.StatusCode)

	transcriptBody, err := io.ReadAll(transcriptResp.Body)
	require.NoError(t, err)

	var transcript services.TranscriptResponse
	require.NoError(t, json.Unmarshal(transcriptBody, &transcript))
	assert.Equal(t, 1, transcript.TotalTurns)
	assert.Equal(t, "hello", transcript.Lines[0].Text)

	// A workflow that never completed has no transcript.
	pending := &models.Workflow{ID: "wf-pending", Name: "Pending", Stage: models.StagePlanning, Status: models.StatusPending}
	require.NoError(t, store.WorkflowRepository().Save(context.Background(), pending))

	req = httptest.NewRequest(http.MethodGet, "/workflows/wf-pending/transcript", nil)

	pendingResp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = pendingResp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, pendingResp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	app, store := setupTestApp(t)

	workflow := &models.Workflow{ID: "wf-1", Name: "Doomed", Stage: models.StagePlanning, Status: models.StatusPending}
	require.NoError(t, store.WorkflowRepository().Save(context.Background(), workflow))

	req := httptest.NewRequest(http.MethodDelete, "/workflows/wf-1", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = store.WorkflowRepository().GetByID(context.Background(), "wf-1")
	require.Error(t, err)
}
