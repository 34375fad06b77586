package handler

import (
	"net/http"
	"noqbot/internal/slots/service"
	"noqbot/pkg/config"
	httputil "noqbot/pkg/http"
	"noqbot/pkg/logger"
	"noqbot/pkg/middleware"
	"noqbot/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

// createRequest accepts either a single day {date, times} or a range
// {startDate, days, times}.
type createRequest struct {
	Date      string   `json:"date"`
	StartDate string   `json:"startDate"`
	Days      int      `json:"days"`
	Times     []string `json:"times"`
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("clientId")

	var req createRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if req.StartDate != "" || req.Days != 0 {
		result, err := h.service.Provision(r.Context(), clientID, &model.SlotProvision{
			StartDate: req.StartDate,
			Days:      req.Days,
			Times:     req.Times,
		})
		if err != nil {
			h.writeError(w, "Create", err)
			return
		}
		if err := httputil.WriteCreated(w, result); err != nil {
			h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
		}
		return
	}

	slotDay, err := h.service.Create(r.Context(), clientID, &model.SlotDayCreate{
		Date:  req.Date,
		Times: req.Times,
	})
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slotDay); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slotDays, err := h.service.List(r.Context(), ps.ByName("clientId"), httputil.QueryString(r, "date"))
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteList(w, slotDays, len(slotDays)); err != nil {
		h.log.Error("failed to write list response", "handler", "List", "operation", "WriteList", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slotDay, err := h.service.GetByID(r.Context(), ps.ByName("clientId"), ps.ByName("slotId"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, slotDay); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.SlotDayUpdate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	slotDay, err := h.service.ReplaceTimes(r.Context(), ps.ByName("clientId"), ps.ByName("slotId"), &req)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, slotDay); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("clientId"), ps.ByName("slotId")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	readers := []string{config.RoleSuperAdmin, config.RoleClientAdmin, config.RoleStaff}
	editors := []string{config.RoleSuperAdmin, config.RoleClientAdmin}

	router.GET("/api/v1/clients/:clientId/slots", middleware.RequireRole(h.log, h.List, readers...))
	router.GET("/api/v1/clients/:clientId/slots/:slotId", middleware.RequireRole(h.log, h.GetByID, readers...))
	router.POST("/api/v1/clients/:clientId/slots", middleware.RequireRole(h.log, h.Create, editors...))
	router.PUT("/api/v1/clients/:clientId/slots/:slotId", middleware.RequireRole(h.log, h.Update, editors...))
	router.DELETE("/api/v1/clients/:clientId/slots/:slotId", middleware.RequireRole(h.log, h.Delete, editors...))
}
