package tenancy

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nhatro-erp/nhatro-erp/internal/billing"
	"github.com/nhatro-erp/nhatro-erp/internal/platform/httpx"
)

// Handler exposes building and lease endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers tenancy routes on the API router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/leases", func(r chi.Router) {
		r.Get("/{id}", h.getLease)
		r.Post("/{id}/terminate", h.terminateLease)
		r.Post("/{id}/unterminate", h.unterminateLease)
	})
	r.Get("/buildings/{id}", h.getBuilding)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLeaseNotFound),
		errors.Is(err, ErrBuildingNotFound),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, billing.ErrBillNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrLeaseTerminated),
		errors.Is(err, ErrLeaseNotTerminated),
		errors.Is(err, billing.ErrTerminationExists),
		errors.Is(err, billing.ErrBillLocked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("tenancy request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) getLease(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "lease id must be numeric")
		return
	}
	lease, err := h.service.GetLease(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lease)
}

func (h *Handler) getBuilding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "building id must be numeric")
		return
	}
	building, err := h.service.GetBuilding(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, building)
}

func actorFromBody(r *http.Request) int64 {
	var body struct {
		ActorID int64 `json:"actorId"`
	}
	_ = httpx.DecodeJSON(r, &body)
	return body.ActorID
}

func (h *Handler) terminateLease(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "lease id must be numeric")
		return
	}
	bill, err := h.service.TerminateLease(r.Context(), id, actorFromBody(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) unterminateLease(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "lease id must be numeric")
		return
	}
	lease, err := h.service.UnterminateLease(r.Context(), id, actorFromBody(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lease)
}
