package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"sensorhub/internal/repository"
	"sensorhub/internal/service"

	"github.com/gin-gonic/gin"
)

type ReadingHandler struct {
	service service.ReadingService
}

func NewReadingHandler(service service.ReadingService) *ReadingHandler {
	return &ReadingHandler{service: service}
}

// RegisterRoutes mounts the reading endpoints. The sensor routes share one
// parameter name because gin requires it for sibling wildcards.
func (h *ReadingHandler) RegisterRoutes(r gin.IRouter) {
	data := r.Group("/data")
	data.POST("", h.CreateReading)
	data.GET("", h.ListReadings)
	data.GET("/export", h.ExportReadings)
	data.GET("/sensor/:sensor_id", h.GetByChannel)
	data.GET("/sensor/:sensor_id/period", h.GetByChannelAndPeriod)
	data.GET("/sensor/:sensor_id/stats", h.GetChannelStats)
	data.GET("/:data_id", h.GetReading)
	data.PUT("/:data_id", h.UpdateReading)
	data.DELETE("/:data_id", h.DeleteReading)
}

func (h *ReadingHandler) CreateReading(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"message": err.Error(),
		})
		return
	}

	reading, err := h.service.Ingest(c.Request.Context(), payload)
	if err != nil {
		respondError(c, "failed to store reading", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Data received successfully",
		"id":      reading.ID,
	})
}

func (h *ReadingHandler) ListReadings(c *gin.Context) {
	readings, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, "failed to list readings", err)
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (h *ReadingHandler) GetReading(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	reading, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "failed to get reading", err)
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (h *ReadingHandler) GetByChannel(c *gin.Context) {
	index, ok := parseChannelIndex(c)
	if !ok {
		return
	}

	points, err := h.service.ByChannel(c.Request.Context(), index)
	if err != nil {
		respondError(c, "no data found for this sensor", err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *ReadingHandler) GetByChannelAndPeriod(c *gin.Context) {
	index, ok := parseChannelIndex(c)
	if !ok {
		return
	}

	points, err := h.service.ByChannelAndPeriod(c.Request.Context(), index, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondError(c, "failed to get sensor data for period", err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *ReadingHandler) GetChannelStats(c *gin.Context) {
	index, ok := parseChannelIndex(c)
	if !ok {
		return
	}

	stats, err := h.service.ChannelStats(c.Request.Context(), index, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondError(c, "failed to get sensor stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReadingHandler) ExportReadings(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.DefaultQuery("format", "csv"), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondError(c, "failed to export readings", err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+file.Filename)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *ReadingHandler) UpdateReading(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"message": err.Error(),
		})
		return
	}

	reading, err := h.service.Update(c.Request.Context(), id, payload)
	if err != nil {
		respondError(c, "failed to update reading", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Data updated successfully",
		"data":    reading,
	})
}

func (h *ReadingHandler) DeleteReading(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, "failed to delete reading", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Data deleted successfully"})
}

// respondError maps service errors onto status codes: validation is 400,
// not found is 404, anything else is 500.
func respondError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"message": err.Error(),
	})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("data_id"), 10, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid data id",
			"message": "data_id must be a positive integer",
		})
		return 0, false
	}
	return uint(id), true
}

func parseChannelIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("sensor_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid sensor id",
			"message": "sensor id must be an integer",
		})
		return 0, false
	}
	return index, true
}
