package handlers

import (
	"log/slog"
	"net/http"

	"underwriting-service/internal/event"
	"underwriting-service/internal/models"
	"underwriting-service/internal/services"

	"github.com/gofiber/fiber/v3"
)

type WorkflowHandler struct {
	workflowService *services.WorkflowService
	publisher       *event.LifecyclePublisher
}

func NewWorkflowHandler(workflowService *services.WorkflowService, publisher *event.LifecyclePublisher) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		publisher:       publisher,
	}
}

func (h *WorkflowHandler) Register(app *fiber.App) {
	api := app.Group("underwriting/api/v1")

	sessions := api.Group("/sessions")
	sessions.Post("/", h.StartSession)                    // POST /underwriting/api/v1/sessions
	sessions.Post("/:session_id/resume", h.ResumeSession) // POST /underwriting/api/v1/sessions/:session_id/resume
	sessions.Get("/:session_id", h.GetSession)            // GET  /underwriting/api/v1/sessions/:session_id
	sessions.Get("/:session_id/quote", h.GetQuote)        // GET  /underwriting/api/v1/sessions/:session_id/quote

	api.Get("/questions", h.GetQuestions) // GET /underwriting/api/v1/questions
	api.Get("/stages", h.GetStages)       // GET /underwriting/api/v1/stages

	app.Get("/health", h.Health)
}

// StartSessionRequest carries the applicant's submission. SessionID is
// optional: omitted means a new session, supplied means resume.
type StartSessionRequest struct {
	SessionID    string            `json:"session_id,omitempty"`
	CustomerData map[string]any    `json:"customer_data"`
	Answers      map[string]string `json:"answers"`
}

// StartSession runs the underwriting pipeline for a submission and
// returns the resulting checkpoint.
func (h *WorkflowHandler) StartSession(c fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			models.CreateErrorResponse("INVALID_BODY", "Request body must be valid JSON"))
	}
	if len(req.CustomerData) == 0 && req.SessionID == "" {
		return c.Status(http.StatusBadRequest).JSON(
			models.CreateErrorResponse("MISSING_CUSTOMER_DATA", "customer_data is required for a new session"))
	}

	cp, err := h.workflowService.RunSession(c.Context(), req.SessionID, req.CustomerData, req.Answers)
	if err != nil {
		slog.Error("Failed to run underwriting session", "session_id", req.SessionID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			models.CreateErrorResponse("SESSION_FAILED", "Failed to run underwriting session"))
	}

	return c.Status(http.StatusOK).JSON(models.CreateSuccessResponse(cp))
}

// ResumeSession re-runs an existing session from its last completed
// stage, optionally with new answers.
func (h *WorkflowHandler) ResumeSession(c fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if sessionID == "" {
		return c.Status(http.StatusBadRequest).JSON(
			models.CreateErrorResponse("MISSING_SESSION_ID", "Session ID is required"))
	}

	var req StartSessionRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			models.CreateErrorResponse("INVALID_BODY", "Request body must be valid JSON"))
	}

	if _, ok := h.workflowService.GetSession(c.Context(), sessionID); !ok {
		return c.Status(http.StatusNotFound).JSON(
			models.CreateErrorResponse("NOT_FOUND", "Unknown session ID"))
	}

	cp, err := h.workflowService.RunSession(c.Context(), sessionID, req.CustomerData, req.Answers)
	if err != nil {
		slog.Error("Failed to resume underwriting session", "session_id", sessionID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			models.CreateErrorResponse("SESSION_FAILED", "Failed to resume underwriting session"))
	}

	return c.Status(http.StatusOK).JSON(models.CreateSuccessResponse(cp))
}

// GetSession returns the stored checkpoint for a session.
func (h *WorkflowHandler) GetSession(c fiber.Ctx) error {
	sessionID := c.Params("session_id")
	cp, ok := h.workflowService.GetSession(c.Context(), sessionID)
	if !ok {
		return c.Status(http.StatusNotFound).JSON(
			models.CreateErrorResponse("NOT_FOUND", "Unknown session ID"))
	}
	return c.Status(http.StatusOK).JSON(models.CreateSuccessResponse(cp))
}

// GetQuote returns the quote artifacts for a session that has reached
// quote generation.
func (h *WorkflowHandler) GetQuote(c fiber.Ctx) error {
	sessionID := c.Params("session_id")
	cp, ok := h.workflowService.GetSession(c.Context(), sessionID)
	if !ok {
		return c.Status(http.StatusNotFound).JSON(
			models.CreateErrorResponse("NOT_FOUND", "Unknown session ID"))
	}
	if cp.QuoteDetails == "" {
		return c.Status(http.StatusConflict).JSON(
			models.CreateErrorResponse("QUOTE_NOT_READY", "Session has not reached quote generation"))
	}

	return c.Status(http.StatusOK).JSON(models.CreateSuccessResponse(map[string]any{
		"session_id":    cp.SessionID,
		"quote_number":  cp.QuoteNumber,
		"quote_details": cp.QuoteDetails,
		"pricing":       cp.Pricing,
		"status":        cp.Status,
	}))
}

// GetQuestions returns the underwriting question catalogue.
func (h *WorkflowHandler) GetQuestions(c fiber.Ctx) error {
	questions := h.workflowService.Questions(c.Context())
	return c.Status(http.StatusOK).JSON(models.CreateSuccessResponse(map[string]any{
		"questions": questions,
		"count":     len(questions),
	}))
}

// GetStages returns the pipeline's fixed stage order.
func (h *WorkflowHandler) GetStages(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(models.CreateSuccessResponse(map[string]any{
		"stages": h.workflowService.Stages(),
	}))
}

func (h *WorkflowHandler) Health(c fiber.Ctx) error {
	published, failed := h.publisher.Counts()
	return c.Status(http.StatusOK).JSON(models.CreateSuccessResponse(map[string]any{
		"service":          "underwriting-service",
		"status":           "healthy",
		"events_published": published,
		"events_failed":    failed,
	}))
}
