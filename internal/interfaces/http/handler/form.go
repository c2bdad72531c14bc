package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderingapp "github.com/sazar-neudorff/productmanager/internal/application/ordering"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"github.com/sazar-neudorff/productmanager/internal/interfaces/http/dto"
)

// DefaultWaitTimeout bounds GET /forms/:id?wait=true
const DefaultWaitTimeout = 5 * time.Second

// FormHandler exposes order form sessions: the product finder, the line
// item, the addresses and the submit flow
type FormHandler struct {
	BaseHandler
	forms       *orderingapp.FormService
	waitTimeout time.Duration
}

// NewFormHandler creates a new FormHandler
func NewFormHandler(forms *orderingapp.FormService) *FormHandler {
	return &FormHandler{forms: forms, waitTimeout: DefaultWaitTimeout}
}

// QueryRequest is a keystroke in the product finder
type QueryRequest struct {
	Query string `json:"query" binding:"max=200" example:"ferra"`
}

// SelectRequest picks one of the visible options
type SelectRequest struct {
	OptionID string `json:"option_id" binding:"required,max=100" example:"ferramol"`
}

// QuantityRequest carries the raw quantity input
type QuantityRequest struct {
	Quantity string `json:"quantity" binding:"max=20" example:"2"`
}

// FieldRequest commits one address field
type FieldRequest struct {
	Value string `json:"value" binding:"max=300" example:"12345"`
}

// BillingRequest toggles the separate billing address
type BillingRequest struct {
	SameAsDelivery *bool `json:"same_as_delivery" binding:"required" example:"false"`
}

// NotesRequest sets the order notes
type NotesRequest struct {
	Notes string `json:"notes" example:"Bitte klingeln"`
}

// RegisterRoutes mounts the form routes under rg
func (h *FormHandler) RegisterRoutes(rg *gin.RouterGroup) {
	forms := rg.Group("/forms")
	forms.POST("", h.Create)
	forms.GET("/:id", h.Get)
	forms.DELETE("/:id", h.Cancel)
	forms.PUT("/:id/finder/query", h.Query)
	forms.POST("/:id/finder/more", h.LoadMore)
	forms.POST("/:id/finder/retry", h.Retry)
	forms.POST("/:id/finder/select", h.Select)
	forms.PUT("/:id/quantity", h.SetQuantity)
	forms.PUT("/:id/address/:field", h.CommitField)
	forms.PUT("/:id/billing", h.SetBilling)
	forms.PUT("/:id/notes", h.SetNotes)
	forms.POST("/:id/submit", h.Submit)
	forms.POST("/:id/draft", h.SaveDraft)
}

// formTarget resolves the caller and the :id parameter
func (h *FormHandler) formTarget(c *gin.Context) (string, uuid.UUID, bool) {
	owner, ok := h.ownerID(c)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid form ID")
		return "", uuid.Nil, false
	}
	return owner, id, true
}

// respond writes the form snapshot or maps err
func (h *FormHandler) respond(c *gin.Context, form *orderingapp.FormResponse, err error) {
	if err != nil {
		h.handleFormError(c, form, err)
		return
	}
	h.Success(c, form)
}

func (h *FormHandler) handleFormError(c *gin.Context, form *orderingapp.FormResponse, err error) {
	// A nil snapshot must not become a non-nil interface.
	var data any
	if form != nil {
		data = form
	}

	var vf *orderingapp.ValidationFailure
	if errors.As(err, &vf) {
		details := make([]dto.FieldDetail, 0, len(vf.Errors))
		for _, fe := range vf.Errors {
			details = append(details, dto.FieldDetail{
				Address: string(fe.Address),
				Field:   string(fe.Field),
				Message: fe.Reason,
			})
		}
		c.JSON(http.StatusUnprocessableEntity, dto.NewValidationErrorResponse(
			dto.ErrCodeValidation, "Bitte prüfen Sie die markierten Felder", requestID(c), details, data))
		return
	}
	h.HandleError(c, err, data)
}

// Create godoc
//
//	@Summary	Mount an order form, optionally restoring a saved draft
//	@Tags		forms
//	@Param		draft_id	query	string	false	"Saved draft ID"
//	@Success	201	{object}	dto.Response
//	@Router		/cockpit/forms [post]
func (h *FormHandler) Create(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}
	var draftID *uuid.UUID
	if raw := c.Query("draft_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid draft ID")
			return
		}
		draftID = &id
	}

	form, err := h.forms.Create(c.Request.Context(), owner, draftID)
	if err != nil {
		h.HandleError(c, err, nil)
		return
	}
	h.Created(c, form)
}

// Get godoc
//
//	@Summary	Snapshot of an order form. wait=true blocks until the finder settled.
//	@Tags		forms
//	@Router		/cockpit/forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))

	ctx := c.Request.Context()
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.waitTimeout)
		defer cancel()
	}
	form, err := h.forms.Get(ctx, owner, id, wait)
	h.respond(c, form, err)
}

// Cancel godoc
//
//	@Summary	Unmount an order form; outstanding catalog work is discarded
//	@Tags		forms
//	@Router		/cockpit/forms/{id} [delete]
func (h *FormHandler) Cancel(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	if err := h.forms.Cancel(c.Request.Context(), owner, id); err != nil {
		h.HandleError(c, err, nil)
		return
	}
	h.NoContent(c)
}

// Query godoc
//
//	@Summary	Type into the product finder (EAN, SKU or name)
//	@Tags		finder
//	@Router		/cockpit/forms/{id}/finder/query [put]
func (h *FormHandler) Query(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	form, err := h.forms.Type(c.Request.Context(), owner, id, req.Query)
	h.respond(c, form, err)
}

// LoadMore godoc
//
//	@Summary	Request the next page of the current search
//	@Tags		finder
//	@Router		/cockpit/forms/{id}/finder/more [post]
func (h *FormHandler) LoadMore(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	form, err := h.forms.LoadMore(c.Request.Context(), owner, id)
	h.respond(c, form, err)
}

// Retry godoc
//
//	@Summary	Repeat the last failed catalog request
//	@Tags		finder
//	@Router		/cockpit/forms/{id}/finder/retry [post]
func (h *FormHandler) Retry(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	form, err := h.forms.Retry(c.Request.Context(), owner, id)
	h.respond(c, form, err)
}

// Select godoc
//
//	@Summary	Select a visible option as the order's product
//	@Tags		finder
//	@Router		/cockpit/forms/{id}/finder/select [post]
func (h *FormHandler) Select(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	form, err := h.forms.Select(c.Request.Context(), owner, id, req.OptionID)
	h.respond(c, form, err)
}

// SetQuantity godoc
//
//	@Summary	Change the quantity; unparsable input is treated as 1
//	@Tags		line-item
//	@Router		/cockpit/forms/{id}/quantity [put]
func (h *FormHandler) SetQuantity(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	form, err := h.forms.SetQuantity(c.Request.Context(), owner, id, req.Quantity)
	h.respond(c, form, err)
}

// CommitField godoc
//
//	@Summary	Commit an address field on blur; billing=true targets the billing address
//	@Tags		address
//	@Router		/cockpit/forms/{id}/address/{field} [put]
func (h *FormHandler) CommitField(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	field, known := ordering.ParseField(c.Param("field"))
	if !known {
		h.BadRequest(c, "Unknown address field")
		return
	}
	kind := ordering.AddressDelivery
	if billing, _ := strconv.ParseBool(c.Query("billing")); billing {
		kind = ordering.AddressBilling
	}
	var req FieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.forms.CommitField(c.Request.Context(), owner, id, kind, field, req.Value)
	if err != nil {
		h.handleFormError(c, nil, err)
		return
	}
	h.Success(c, resp)
}

// SetBilling godoc
//
//	@Summary	Toggle "billing address same as delivery"
//	@Tags		address
//	@Router		/cockpit/forms/{id}/billing [put]
func (h *FormHandler) SetBilling(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	var req BillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	form, err := h.forms.SetBillingSameAsDelivery(c.Request.Context(), owner, id, *req.SameAsDelivery)
	h.respond(c, form, err)
}

// SetNotes godoc
//
//	@Summary	Set the order notes
//	@Tags		forms
//	@Router		/cockpit/forms/{id}/notes [put]
func (h *FormHandler) SetNotes(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	form, err := h.forms.SetNotes(c.Request.Context(), owner, id, req.Notes)
	h.respond(c, form, err)
}

// Submit godoc
//
//	@Summary	Validate every field and hand the order to the order system
//	@Tags		forms
//	@Success	200	{object}	dto.Response
//	@Failure	409	{object}	dto.Response	"already submitted or in flight"
//	@Failure	422	{object}	dto.Response	"invalid fields or rejected by the recipient"
//	@Router		/cockpit/forms/{id}/submit [post]
func (h *FormHandler) Submit(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	form, err := h.forms.Submit(c.Request.Context(), owner, id)
	h.respond(c, form, err)
}

// SaveDraft godoc
//
//	@Summary	Persist the form as a saved draft ("Entwurf sichern")
//	@Tags		forms
//	@Router		/cockpit/forms/{id}/draft [post]
func (h *FormHandler) SaveDraft(c *gin.Context) {
	owner, id, ok := h.formTarget(c)
	if !ok {
		return
	}
	resp, err := h.forms.SaveDraft(c.Request.Context(), owner, id)
	if err != nil {
		h.HandleError(c, err, nil)
		return
	}
	h.Success(c, resp)
}
