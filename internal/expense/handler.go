package expense

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/splitwise/internal/expense/draft"
	"github.com/fkhayef/splitwise/internal/group"
	"github.com/fkhayef/splitwise/internal/user"
	"github.com/fkhayef/splitwise/pkg/middleware"
	"github.com/fkhayef/splitwise/pkg/response"
)

// Handler handles HTTP requests for drafts and expenses
type Handler struct {
	service *Service
}

// NewHandler creates a new expense handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for expense endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.GetByID)
	r.Delete("/{id}", h.Delete)

	// Group-based listing
	r.Get("/group/{groupId}", h.ListByGroup)

	return r
}

// DraftRoutes returns the router for draft endpoints
func (h *Handler) DraftRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.OpenDraft)
	r.Get("/{id}", h.GetDraft)
	r.Delete("/{id}", h.DiscardDraft)
	r.Post("/{id}/events", h.ApplyEvent)
	r.Get("/{id}/reconcile", h.PreviewDraft)
	r.Post("/{id}/submit", h.Submit)

	return r
}

// OpenDraft handles POST /drafts
// @Summary      Start a new expense
// @Description  Open a draft for a group expense, a friend expense, or a personal expense (empty body)
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header int true "Current user ID"
// @Param        request body OpenDraftRequest false "Expense context"
// @Success      201 {object} response.APIResponse{data=DraftResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /drafts [post]
func (h *Handler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	// An empty body opens a personal expense
	var req OpenDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.OpenDraft(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err, "Failed to open draft")
		return
	}

	response.JSON(w, http.StatusCreated, session.ToResponse())
}

// GetDraft handles GET /drafts/{id}
// @Summary      Get a draft
// @Description  Get the current state of a draft with its live validation flags
// @Tags         drafts
// @Produce      json
// @Param        X-User-ID header int true "Current user ID"
// @Param        id path string true "Draft ID"
// @Success      200 {object} response.APIResponse{data=DraftResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /drafts/{id} [get]
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	session, err := h.service.GetDraft(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to get draft")
		return
	}

	response.JSON(w, http.StatusOK, session.ToResponse())
}

// DiscardDraft handles DELETE /drafts/{id}
// @Summary      Discard a draft
// @Tags         drafts
// @Produce      json
// @Param        X-User-ID header int true "Current user ID"
// @Param        id path string true "Draft ID"
// @Success      200 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /drafts/{id} [delete]
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DiscardDraft(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "Failed to discard draft")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Draft discarded"})
}

// ApplyEvent handles POST /drafts/{id}/events
// @Summary      Edit a draft
// @Description  Apply one edit: set_amount, set_participants, set_split_method, set_payer_mode, select_payer, set_payer_amount, toggle_participant or set_share
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header int true "Current user ID"
// @Param        id path string true "Draft ID"
// @Param        request body DraftEventRequest true "Draft event"
// @Success      200 {object} response.APIResponse{data=DraftResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /drafts/{id}/events [post]
func (h *Handler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req DraftEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.ApplyEvent(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, err, "Failed to apply event")
		return
	}

	response.JSON(w, http.StatusOK, session.ToResponse())
}

// PreviewDraft handles GET /drafts/{id}/reconcile
// @Summary      Preview the paid and owed arrays
// @Description  Reconcile a draft without storing it
// @Tags         drafts
// @Produce      json
// @Param        X-User-ID header int true "Current user ID"
// @Param        id path string true "Draft ID"
// @Success      200 {object} response.APIResponse{data=draft.Result}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /drafts/{id}/reconcile [get]
func (h *Handler) PreviewDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.PreviewDraft(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to reconcile draft")
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// Submit handles POST /drafts/{id}/submit
// @Summary      Submit a draft
// @Description  Reconcile a draft and store it as an expense. A rejected draft is kept for correction.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header int true "Current user ID"
// @Param        id path string true "Draft ID"
// @Param        request body SubmitRequest true "Expense details"
// @Success      201 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /drafts/{id}/submit [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.Submit(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, err, "Failed to submit expense")
		return
	}

	response.JSON(w, http.StatusCreated, result.ToResponse())
}

// GetByID handles GET /expenses/{id}
// @Summary      Get expense by ID
// @Description  Get an expense with who paid and who owes
// @Tags         expenses
// @Produce      json
// @Param        id path int true "Expense ID"
// @Success      200 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid expense ID")
		return
	}

	result, err := h.service.GetExpenseByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get expense")
		return
	}

	response.JSON(w, http.StatusOK, result.ToResponse())
}

// ListByGroup handles GET /expenses/group/{groupId}
// @Summary      List expenses by group
// @Description  Get a paginated list of expenses for a group
// @Tags         expenses
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]ExpenseResponse}
// @Router       /expenses/group/{groupId} [get]
func (h *Handler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	expenses, total, err := h.service.ListExpensesByGroupID(r.Context(), groupID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list expenses")
		return
	}

	expenseResponses := make([]*ExpenseResponse, len(expenses))
	for i, e := range expenses {
		expenseResponses[i] = e.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, expenseResponses, meta)
}

// Delete handles DELETE /expenses/{id}
// @Summary      Delete an expense
// @Description  Delete an expense. Only a payer of the expense may delete it.
// @Tags         expenses
// @Produce      json
// @Param        X-User-ID header int true "Current user ID"
// @Param        id path int true "Expense ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid expense ID")
		return
	}

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteExpense(r.Context(), id, userID); err != nil {
		writeError(w, err, "Failed to delete expense")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "X-User-ID header required")
	}
	return userID, ok
}

// mismatchDetails carries the two sums of a mismatch error.
type mismatchDetails struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// writeError maps service errors to responses. fallback is the message for
// anything unexpected.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var verr *draft.ValidationError
	if errors.As(err, &verr) {
		var details interface{}
		if verr.Expected != nil && verr.Actual != nil {
			details = mismatchDetails{
				Expected: verr.Expected.StringFixed(2),
				Actual:   verr.Actual.StringFixed(2),
			}
		}
		response.Unprocessable(w, string(verr.Kind), verr.Message, details)
		return
	}

	switch {
	case errors.Is(err, ErrDraftNotFound),
		errors.Is(err, ErrExpenseNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotDraftOwner),
		errors.Is(err, ErrNotGroupMember),
		errors.Is(err, ErrNotPayer):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrDraftSubmitting):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrUnknownEventType),
		errors.Is(err, ErrInvalidContext),
		errors.Is(err, ErrInvalidFriend),
		errors.Is(err, ErrUnknownParticipant),
		errors.Is(err, ErrDescriptionRequired),
		errors.Is(err, ErrDescriptionTooLong),
		errors.Is(err, ErrInvalidDate):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}
