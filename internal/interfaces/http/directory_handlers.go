package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/pkg/utils"
)

// ListProperties handles GET /api/properties
func (h *Handlers) ListProperties(c *gin.Context) {
	availableOnly := false
	if raw := c.Query("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid available filter: " + raw})
			return
		}
		availableOnly = v
	}

	props, err := h.directoryService.ListProperties(c.Request.Context(), availableOnly)
	if err != nil {
		h.respondError(c, "failed to list properties", err)
		return
	}
	if props == nil {
		props = []entity.Property{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: props})
}

// GetProperty handles GET /api/properties/:id
func (h *Handlers) GetProperty(c *gin.Context) {
	p, err := h.directoryService.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to get property", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: p})
}

// ListBusinessPartners handles GET /api/business-partners
func (h *Handlers) ListBusinessPartners(c *gin.Context) {
	partners, err := h.directoryService.ListBusinessPartners(c.Request.Context(), utils.SanitizeLine(c.Query("search")))
	if err != nil {
		h.respondError(c, "failed to list business partners", err)
		return
	}
	if partners == nil {
		partners = []entity.BusinessPartner{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: partners})
}
