package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nhatro-erp/nhatro-erp/internal/observability"
	"github.com/nhatro-erp/nhatro-erp/internal/platform/httpx"
	"github.com/nhatro-erp/nhatro-erp/internal/shared"
)

// Handler exposes the billing HTTP API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listBills)
	r.Post("/", h.createBill)
	r.Post("/assemble", h.assembleForRoom)
	r.Post("/bulk/{op}", h.bulkOperation)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getBill)
		r.Put("/", h.updateBill)
		r.Delete("/", h.deleteBill)
		r.Post("/approve", h.approveBill)
		r.Post("/unapprove", h.unapproveBill)
		r.Post("/collect", h.collectBill)
		r.Post("/uncollect", h.uncollectBill)
		r.Get("/transactions", h.listTransactions)
	})
}

type lineItemDTO struct {
	Type       string     `json:"type" validate:"required,oneof=rent electric water_meter service custom termination"`
	Name       string     `json:"name" validate:"required"`
	UnitPrice  int64      `json:"unitPrice" validate:"gte=0"`
	Quantity   float64    `json:"quantity" validate:"gte=0"`
	FromDate   *time.Time `json:"fromDate"`
	ToDate     *time.Time `json:"toDate"`
	OldReading *int64     `json:"oldReading"`
	NewReading *int64     `json:"newReading"`
}

func (d lineItemDTO) toLineItem() LineItem {
	return LineItem{
		Type:       LineType(d.Type),
		Name:       d.Name,
		UnitPrice:  d.UnitPrice,
		Quantity:   d.Quantity,
		FromDate:   d.FromDate,
		ToDate:     d.ToDate,
		OldReading: d.OldReading,
		NewReading: d.NewReading,
	}
}

func toLineItems(dtos []lineItemDTO) []LineItem {
	items := make([]LineItem, len(dtos))
	for i, d := range dtos {
		items[i] = d.toLineItem()
	}
	return items
}

type createBillRequest struct {
	BuildingID int64         `json:"buildingId" validate:"required"`
	Room       string        `json:"room" validate:"required"`
	CustomerID int64         `json:"customerId" validate:"required"`
	Period     int           `json:"period" validate:"required,min=1,max=12"`
	Year       int           `json:"year" validate:"required,min=2000"`
	BillDate   time.Time     `json:"billDate" validate:"required"`
	DueDay     int           `json:"dueDate" validate:"gte=0,lte=31"`
	Services   []lineItemDTO `json:"services" validate:"required,min=1,dive"`
	ActorID    int64         `json:"actorId"`
}

type updateBillRequest struct {
	BillDate *time.Time    `json:"billDate"`
	DueDay   *int          `json:"dueDate"`
	Services []lineItemDTO `json:"services" validate:"omitempty,dive"`
	ActorID  int64         `json:"actorId"`
}

type collectRequest struct {
	Amount      int64      `json:"amount" validate:"required,gt=0"`
	PaidAt      *time.Time `json:"paidAt"`
	ClientToken string     `json:"clientToken"`
	ActorID     int64      `json:"actorId"`
}

type bulkRequest struct {
	IDs     []int64 `json:"ids" validate:"required,min=1"`
	ActorID int64   `json:"actorId"`
}

// respondError maps billing errors onto problem detail responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBillNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownLineType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidPaymentAmount),
		errors.Is(err, ErrBillLocked),
		errors.Is(err, ErrApprovalBlocked),
		errors.Is(err, ErrNotApproved),
		errors.Is(err, ErrCannotUnapprovePaid),
		errors.Is(err, ErrBillNotPaid),
		errors.Is(err, ErrTerminationExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Submission", err.Error())
	default:
		h.logger.Error("billing request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func billID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListBillsRequest{Room: q.Get("room"), Status: Status(q.Get("status"))}
	req.BuildingID, _ = strconv.ParseInt(q.Get("buildingId"), 10, 64)
	req.CustomerID, _ = strconv.ParseInt(q.Get("customerId"), 10, 64)
	req.Period, _ = strconv.Atoi(q.Get("period"))
	req.Year, _ = strconv.Atoi(q.Get("year"))
	if v := q.Get("approved"); v != "" {
		approved := v == "true"
		req.Approved = &approved
	}

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	req.Limit = perPage
	req.Offset = (page - 1) * perPage

	bills, total, err := h.service.ListBills(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if bills == nil {
		bills = []Bill{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"bills":      bills,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	bill, err := h.service.CreateBill(r.Context(), CreateBillInput{
		BuildingID: req.BuildingID,
		Room:       req.Room,
		CustomerID: req.CustomerID,
		Period:     req.Period,
		Year:       req.Year,
		BillDate:   req.BillDate,
		DueDay:     req.DueDay,
		Services:   toLineItems(req.Services),
		ActorID:    req.ActorID,
	})
	h.metrics.CountBillOp("create", err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) assembleForRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuildingID int64  `json:"buildingId" validate:"required"`
		Room       string `json:"room" validate:"required"`
		Period     int    `json:"period" validate:"required,min=1,max=12"`
		Year       int    `json:"year" validate:"required,min=2000"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines, err := h.service.AssembleForRoom(r.Context(), req.BuildingID, req.Room, req.Period, req.Year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"services": lines})
}

func (h *Handler) updateBill(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	var req updateBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := UpdateBillInput{BillDate: req.BillDate, DueDay: req.DueDay, ActorID: req.ActorID}
	if req.Services != nil {
		in.Services = toLineItems(req.Services)
	}
	bill, err := h.service.UpdateBill(r.Context(), id, in)
	h.metrics.CountBillOp("update", err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) deleteBill(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actorId"), 10, 64)
	err = h.service.DeleteBill(r.Context(), id, actorID)
	h.metrics.CountBillOp("delete", err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approveBill(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "approve", h.service.Approve)
}

func (h *Handler) unapproveBill(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "unapprove", h.service.Unapprove)
}

func (h *Handler) uncollectBill(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "uncollect", h.service.Uncollect)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id, actorID int64) (*Bill, error)) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	var body struct {
		ActorID int64 `json:"actorId"`
	}
	_ = httpx.DecodeJSON(r, &body)
	bill, err := fn(r.Context(), id, body.ActorID)
	h.metrics.CountBillOp(op, err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) collectBill(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	var req collectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CollectInput{Amount: req.Amount, ClientToken: req.ClientToken, ActorID: req.ActorID}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}
	bill, err := h.service.Collect(r.Context(), id, in)
	h.metrics.CountBillOp("collect", err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	transactions, err := h.service.TransactionsByBill(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

func (h *Handler) bulkOperation(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	var req bulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var (
		res    BulkResult
		runErr error
	)
	switch op {
	case "approve":
		res, runErr = h.service.BulkApprove(r.Context(), req.IDs, req.ActorID)
	case "unapprove":
		res, runErr = h.service.BulkUnapprove(r.Context(), req.IDs, req.ActorID)
	case "collect":
		res, runErr = h.service.BulkCollect(r.Context(), req.IDs, req.ActorID)
	case "uncollect":
		res, runErr = h.service.BulkUncollect(r.Context(), req.IDs, req.ActorID)
	case "delete":
		res, runErr = h.service.BulkDelete(r.Context(), req.IDs, req.ActorID)
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown bulk operation "+op)
		return
	}
	h.metrics.CountBillOp("bulk_"+op, runErr)

	status := http.StatusOK
	payload := map[string]any{"succeeded": res.Succeeded, "failed": res.Failed}
	if runErr != nil {
		status = http.StatusMultiStatus
		payload["error"] = runErr.Error()
	}
	httpx.JSON(w, status, payload)
}
