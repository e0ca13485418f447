package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/ownership"
	"catchcert/internal/certificate/service"
	"catchcert/internal/certificate/store"
	id "catchcert/pkg/domain"
	dErrors "catchcert/pkg/domain-errors"
	"catchcert/pkg/requestcontext"
)

// Handler is the thin HTTP layer over the document service. Authentication
// happens upstream; the gateway forwards the resolved identity in headers.
// This layer decodes, delegates and encodes — no business logic.
type Handler struct {
	service *service.DocumentService
}

// NewHandler wraps the document service.
func NewHandler(svc *service.DocumentService) *Handler {
	return &Handler{service: svc}
}

func ownerFrom(r *http.Request) ownership.Owner {
	return ownership.Owner{
		CreatedBy: requestcontext.UserID(r.Context()),
		ContactID: requestcontext.ContactID(r.Context()),
	}
}

type createDraftRequest struct {
	Journey       string `json:"journey"`
	UserReference string `json:"userReference"`
}

func (h *Handler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	journey, err := models.ParseJourney(req.Journey)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := h.service.CreateDraft(r.Context(), ownerFrom(r), journey, req.UserReference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	number, err := id.ParseDocumentNumber(chi.URLParam(r, "documentNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := h.service.Get(r.Context(), ownerFrom(r), number)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// patchRequest mirrors the update-spec builder: dotted-path assignments,
// removals and array pushes.
type patchRequest struct {
	Set   map[string]any `json:"set"`
	Unset []string       `json:"unset"`
	Push  map[string]any `json:"push"`
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	number, err := id.ParseDocumentNumber(chi.URLParam(r, "documentNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	spec := store.NewUpdate()
	for path, value := range req.Set {
		spec.Set(path, value)
	}
	for _, path := range req.Unset {
		spec.Unset(path)
	}
	for path, value := range req.Push {
		spec.Push(path, value)
	}
	if err := h.service.Patch(r.Context(), ownerFrom(r), number, spec); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	number, err := id.ParseDocumentNumber(chi.URLParam(r, "documentNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	target, err := models.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.SetStatus(r.Context(), ownerFrom(r), number, target); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	DocumentURI string `json:"documentUri"`
	Email       string `json:"email"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	number, err := id.ParseDocumentNumber(chi.URLParam(r, "documentNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	email := req.Email
	if email == "" {
		email = requestcontext.UserEmail(r.Context())
	}
	if err := h.service.Complete(r.Context(), ownerFrom(r), number, req.DocumentURI, email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cloneRequest struct {
	ExcludeLinkedData bool `json:"excludeLinkedData"`
	VoidOriginal      bool `json:"voidOriginal"`
}

func (h *Handler) handleClone(w http.ResponseWriter, r *http.Request) {
	source, err := id.ParseDocumentNumber(chi.URLParam(r, "documentNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	number, err := h.service.Clone(r.Context(), ownerFrom(r), source, service.CloneOptions{
		ExcludeLinkedData: req.ExcludeLinkedData,
		RequestedByAdmin:  r.Header.Get("X-Admin") == "true",
		VoidOriginal:      req.VoidOriginal,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"documentNumber": number.String()})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	number, err := id.ParseDocumentNumber(chi.URLParam(r, "documentNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.DeleteDraft(r.Context(), ownerFrom(r), number); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDraftHeaders(w http.ResponseWriter, r *http.Request) {
	journey, err := models.ParseJourney(chi.URLParam(r, "journey"))
	if err != nil {
		writeError(w, err)
		return
	}
	headers, err := h.service.DraftHeaders(r.Context(), ownerFrom(r), journey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}

func (h *Handler) handleCompletedHeaders(w http.ResponseWriter, r *http.Request) {
	journey, err := models.ParseJourney(chi.URLParam(r, "journey"))
	if err != nil {
		writeError(w, err)
		return
	}
	month := queryInt(r, "month")
	year := queryInt(r, "year")
	page := store.Page{Limit: queryInt(r, "limit"), Offset: queryInt(r, "offset")}
	headers, err := h.service.CompletedHeaders(r.Context(), ownerFrom(r), journey, month, year, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var de *dErrors.Error
	if errors.As(err, &de) {
		switch de.Code {
		case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
			status = http.StatusBadRequest
		case dErrors.CodeNotFound:
			status = http.StatusNotFound
		case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
			status = http.StatusConflict
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
