package handler

import (
	"context"
	"net/http"
	"strings"

	"requisition/internal/model"
	"requisition/internal/service"
	"requisition/pkg/pagination"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/me/capabilities", h.GetCapabilities)

	requests := router.Group("/api/requests")
	{
		requests.POST("", h.CreateRequest)
		requests.GET("/pending", h.ListPending)
		requests.GET("/:id", h.GetRequest)
		requests.POST("/:id/approve", h.Approve)
		requests.POST("/:id/reject", h.Reject)
		requests.POST("/:id/send-back", h.SendBack)
		requests.POST("/:id/cancel", h.Cancel)
		requests.POST("/:id/resubmit", h.Resubmit)
		requests.POST("/:id/fulfill", h.Fulfill)
		requests.POST("/:id/assign", h.Assign)
		requests.POST("/:id/complete", h.Complete)
	}
}

func requestType(c *gin.Context) model.RequestType {
	return model.RequestType(strings.ToUpper(strings.TrimSpace(c.Query("type"))))
}

// CreateRequest submits a new vehicle, ICT or store request
// @Summary      Create request
// @Description  Creates a request and routes it to its first review stage
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRequestInput  true  "Request payload"
// @Success      201      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var in service.CreateRequestInput
	if !bindRequired(c, &in) {
		return
	}
	in.Type = model.RequestType(strings.ToUpper(string(in.Type)))

	req, err := h.requestService.Create(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, req))
}

// GetRequest returns one request with its items and audit trail
// @Summary      Get request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.Request}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, err := h.requestService.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// ListPending returns the caller's pending-approval feed for one request type
// @Summary      Pending approvals
// @Description  Requests currently awaiting the caller's action, oldest submission first unless order=desc
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        type   query     string  true   "VEHICLE, ICT or STORE"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Items per page (default 20)"
// @Param        order  query     string  false  "asc or desc"
// @Success      200    {object}  response.Response{data=response.Page}
// @Failure      400    {object}  response.Response
// @Router       /api/requests/pending [get]
func (h *RequestHandler) ListPending(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	filter := service.PendingFilter{
		Type:        requestType(c),
		Page:        p.Page,
		Limit:       p.Limit,
		NewestFirst: strings.EqualFold(c.Query("order"), "desc"),
	}

	items, total, err := h.requestService.ListPending(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Page{
		Items: items,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
	}))
}

// GetCapabilities reports which stages the caller may act on
// @Summary      My capabilities
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        type  query     string  true  "VEHICLE, ICT or STORE"
// @Success      200   {object}  response.Response{data=workflow.Capability}
// @Failure      400   {object}  response.Response
// @Router       /api/me/capabilities [get]
func (h *RequestHandler) GetCapabilities(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	capability, err := h.requestService.Capabilities(c.Request.Context(), userID, requestType(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, capability))
}

// act is the shared shape of every transition endpoint
func act[T any](c *gin.Context, required bool, run func(ctx context.Context, actor, id uuid.UUID, in T) (*model.Request, error)) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in T
	if required {
		ok = bindRequired(c, &in)
	} else {
		ok = bindOptional(c, &in)
	}
	if !ok {
		return
	}

	req, err := run(c.Request.Context(), userID, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// Approve records the caller's approval at the current stage
// @Summary      Approve request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true   "Request ID"
// @Param        payload  body      service.ApproveInput  false  "Comment and expected version"
// @Success      200      {object}  response.Response{data=model.Request}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	act(c, false, h.requestService.Approve)
}

// Reject ends the request at the current stage
// @Summary      Reject request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Request ID"
// @Param        payload  body      service.RejectInput  true  "Reason and expected version"
// @Success      200      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	act(c, true, h.requestService.Reject)
}

// SendBack returns the request to the requester for correction
// @Summary      Send back for correction
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Request ID"
// @Param        payload  body      service.SendBackInput  true  "Reason, comment and expected version"
// @Success      200      {object}  response.Response{data=model.Request}
// @Router       /api/requests/{id}/send-back [post]
func (h *RequestHandler) SendBack(c *gin.Context) {
	act(c, true, h.requestService.SendBack)
}

// Cancel withdraws the caller's own open request
// @Summary      Cancel request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Request ID"
// @Param        payload  body      service.CancelInput  true  "Reason and expected version"
// @Success      200      {object}  response.Response{data=model.Request}
// @Router       /api/requests/{id}/cancel [post]
func (h *RequestHandler) Cancel(c *gin.Context) {
	act(c, true, h.requestService.Cancel)
}

// Resubmit re-enters review after a correction
// @Summary      Resubmit request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true   "Request ID"
// @Param        payload  body      service.ResubmitInput  false  "Updated purpose and expected version"
// @Success      200      {object}  response.Response{data=model.Request}
// @Router       /api/requests/{id}/resubmit [post]
func (h *RequestHandler) Resubmit(c *gin.Context) {
	act(c, false, h.requestService.Resubmit)
}

// Fulfill issues item quantities
// @Summary      Fulfill items
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Request ID"
// @Param        payload  body      service.FulfillInput  true  "Item quantities keyed by item id"
// @Success      200      {object}  response.Response{data=model.Request}
// @Router       /api/requests/{id}/fulfill [post]
func (h *RequestHandler) Fulfill(c *gin.Context) {
	act(c, true, h.requestService.Fulfill)
}

// Assign attaches a driver and vehicle to an approved trip
// @Summary      Assign driver and vehicle
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Request ID"
// @Param        payload  body      service.AssignInput  true  "Driver, vehicle and expected version"
// @Success      200      {object}  response.Response{data=model.Request}
// @Router       /api/requests/{id}/assign [post]
func (h *RequestHandler) Assign(c *gin.Context) {
	act(c, true, h.requestService.Assign)
}

// Complete closes a fulfilled or assigned request
// @Summary      Complete request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true   "Request ID"
// @Param        payload  body      service.CompleteInput  false  "Closing note and expected version"
// @Success      200      {object}  response.Response{data=model.Request}
// @Router       /api/requests/{id}/complete [post]
func (h *RequestHandler) Complete(c *gin.Context) {
	act(c, false, h.requestService.Complete)
}
