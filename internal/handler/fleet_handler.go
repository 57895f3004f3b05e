package handler

import (
	"net/http"
	"strconv"

	"requisition/internal/middleware"
	"requisition/internal/model"
	"requisition/internal/service"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type FleetHandler struct {
	fleetService service.FleetService
}

func NewFleetHandler(fleetService service.FleetService) *FleetHandler {
	return &FleetHandler{fleetService: fleetService}
}

func (h *FleetHandler) RegisterRoutes(router *gin.RouterGroup) {
	fleet := router.Group("/api/fleet")
	{
		fleet.GET("/vehicles", h.ListVehicles)
		fleet.GET("/drivers", h.ListDrivers)
		fleet.POST("/vehicles", middleware.RequireRole(model.RoleTransportAdmin, model.RoleAdmin), h.CreateVehicle)
		fleet.POST("/drivers", middleware.RequireRole(model.RoleTransportAdmin, model.RoleAdmin), h.CreateDriver)
	}
}

// availableFilter reads ?available=true|false; absent or unparsable means no filter
func availableFilter(c *gin.Context) *bool {
	v, err := strconv.ParseBool(c.Query("available"))
	if err != nil {
		return nil
	}
	return &v
}

// ListVehicles
// @Summary      List vehicles
// @Tags         fleet
// @Security     BearerAuth
// @Produce      json
// @Param        available  query     bool  false  "Only available (true) or only busy (false)"
// @Success      200        {object}  response.Response{data=[]model.Vehicle}
// @Router       /api/fleet/vehicles [get]
func (h *FleetHandler) ListVehicles(c *gin.Context) {
	vehicles, err := h.fleetService.ListVehicles(c.Request.Context(), availableFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vehicles))
}

// ListDrivers
// @Summary      List drivers
// @Tags         fleet
// @Security     BearerAuth
// @Produce      json
// @Param        available  query     bool  false  "Only available (true) or only busy (false)"
// @Success      200        {object}  response.Response{data=[]model.Driver}
// @Router       /api/fleet/drivers [get]
func (h *FleetHandler) ListDrivers(c *gin.Context) {
	drivers, err := h.fleetService.ListDrivers(c.Request.Context(), availableFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, drivers))
}

// CreateVehicle
// @Summary      Register vehicle
// @Tags         fleet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateVehicleInput  true  "Vehicle"
// @Success      201      {object}  response.Response{data=model.Vehicle}
// @Failure      400      {object}  response.Response
// @Router       /api/fleet/vehicles [post]
func (h *FleetHandler) CreateVehicle(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var in service.CreateVehicleInput
	if !bindRequired(c, &in) {
		return
	}
	vehicle, err := h.fleetService.CreateVehicle(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, vehicle))
}

// CreateDriver
// @Summary      Register driver
// @Tags         fleet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateDriverInput  true  "Driver"
// @Success      201      {object}  response.Response{data=model.Driver}
// @Failure      400      {object}  response.Response
// @Router       /api/fleet/drivers [post]
func (h *FleetHandler) CreateDriver(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var in service.CreateDriverInput
	if !bindRequired(c, &in) {
		return
	}
	driver, err := h.fleetService.CreateDriver(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, driver))
}
