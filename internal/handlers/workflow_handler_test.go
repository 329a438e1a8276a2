package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"underwriting-service/internal/config"
	"underwriting-service/internal/repository"
	"underwriting-service/internal/services"
	"underwriting-service/internal/store"
	"underwriting-service/internal/workflow"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineGenerator stands in for the generation service being down, so
// every stage completes on its documented default dataset.
type offlineGenerator struct{}

func (offlineGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("generation service unavailable")
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	gateway, err := store.NewGateway(context.Background(), nil, repository.Collections())
	require.NoError(t, err)

	cfg := config.WorkflowConfig{
		MaxGenerateAttempts: 1,
		RetryBackoff:        time.Millisecond,
		CallTimeout:         time.Second,
		QuotePrefix:         "QUOTE",
		PolicyPrefix:        "MV",
		SequenceIncrement:   10,
		SequenceStart:       100000,
		StaleAfter:          72 * time.Hour,
		SweepSchedule:       "0 2 * * *",
	}

	checkpointRepo := repository.NewCheckpointRepository(gateway, nil, cfg)
	questionRepo := repository.NewQuestionRepository(gateway)
	engine := workflow.NewEngine(cfg, offlineGenerator{}, offlineGenerator{}, checkpointRepo, questionRepo, nil, nil)
	workflowService := services.NewWorkflowService(engine, checkpointRepo, questionRepo, cfg)

	app := fiber.New()
	NewWorkflowHandler(workflowService, nil).Register(app)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func getPath(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	envelope := struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func eligibleSubmission() map[string]any {
	return map[string]any{
		"customer_data": map[string]any{"name": "Avery Park", "dob": "1990-04-02"},
		"answers":       map[string]string{"uw1": "Yes", "uw2": "Yes", "uw3": "Yes"},
	}
}

func TestStartSessionRunsPipeline(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/underwriting/api/v1/sessions/", eligibleSubmission())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decodeData(t, resp)
	assert.Equal(t, "Active", data["status"])
	assert.NotEmpty(t, data["sessionId"])
	assert.Equal(t, float64(100000), data["quoteNumber"])
}

func TestStartSessionRequiresCustomerData(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/underwriting/api/v1/sessions/", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSession(t *testing.T) {
	app := newTestApp(t)

	started := decodeData(t, postJSON(t, app, "/underwriting/api/v1/sessions/", eligibleSubmission()))
	sessionID := started["sessionId"].(string)

	resp := getPath(t, app, "/underwriting/api/v1/sessions/"+sessionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, sessionID, data["sessionId"])

	missing := getPath(t, app, "/underwriting/api/v1/sessions/nope")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetQuote(t *testing.T) {
	app := newTestApp(t)

	started := decodeData(t, postJSON(t, app, "/underwriting/api/v1/sessions/", eligibleSubmission()))
	sessionID := started["sessionId"].(string)

	resp := getPath(t, app, "/underwriting/api/v1/sessions/"+sessionID+"/quote")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, sessionID, data["session_id"])
	assert.Equal(t, float64(100000), data["quote_number"])
	assert.NotEmpty(t, data["quote_details"])
}

func TestResumeUnknownSession(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/underwriting/api/v1/sessions/nope/resume", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetQuestions(t *testing.T) {
	app := newTestApp(t)

	resp := getPath(t, app, "/underwriting/api/v1/questions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(4), data["count"])
}

func TestHealthReportsEventCounts(t *testing.T) {
	app := newTestApp(t)

	resp := getPath(t, app, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, float64(0), data["events_published"])
	assert.Equal(t, float64(0), data["events_failed"])
}

func TestIneligibleSubmissionSurfacesReason(t *testing.T) {
	app := newTestApp(t)

	body := eligibleSubmission()
	body["answers"] = map[string]string{"uw1": "Yes", "uw2": "No", "uw3": "Yes"}

	resp := postJSON(t, app, "/underwriting/api/v1/sessions/", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, "Ineligible", data["status"])
	assert.Contains(t, data["ineligibilityReason"], "free of suspensions")
}
