package handler

import (
	"net/http"
	"noqbot/internal/bookings/service"
	"noqbot/pkg/config"
	httputil "noqbot/pkg/http"
	"noqbot/pkg/logger"
	"noqbot/pkg/middleware"
	"noqbot/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.BookingCreate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), ps.ByName("clientId"), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	filter := &model.BookingFilter{
		Date:   httputil.QueryString(r, "date"),
		Status: httputil.QueryString(r, "status"),
	}

	bookings, err := h.service.List(r.Context(), ps.ByName("clientId"), filter)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteList(w, bookings, len(bookings)); err != nil {
		h.log.Error("failed to write list response", "handler", "List", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("clientId"), ps.ByName("bookingId"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Cancel(r.Context(), ps.ByName("clientId"), ps.ByName("bookingId"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.BookingReschedule
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	booking, err := h.service.Reschedule(r.Context(), ps.ByName("clientId"), ps.ByName("bookingId"), &req)
	if err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	roles := []string{config.RoleSuperAdmin, config.RoleClientAdmin, config.RoleStaff}

	router.POST("/api/v1/clients/:clientId/bookings", middleware.RequireRole(h.log, h.Create, roles...))
	router.GET("/api/v1/clients/:clientId/bookings", middleware.RequireRole(h.log, h.List, roles...))
	router.GET("/api/v1/clients/:clientId/bookings/:bookingId", middleware.RequireRole(h.log, h.GetByID, roles...))
	router.PUT("/api/v1/clients/:clientId/bookings/:bookingId/cancel", middleware.RequireRole(h.log, h.Cancel, roles...))
	router.PUT("/api/v1/clients/:clientId/bookings/:bookingId/reschedule", middleware.RequireRole(h.log, h.Reschedule, roles...))
}
