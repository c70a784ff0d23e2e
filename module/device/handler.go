package device

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"TeleProject/logger"
	midsec "TeleProject/middleware/security"
	"TeleProject/module/device/model"
	devsrv "TeleProject/module/device/service"
	"TeleProject/service/ingest"
	"TeleProject/tools/errs"
)

// Handler exposes the owner-scoped device CRUD and the reading write/read
// endpoints. All routes sit behind the auth middleware.
type Handler struct {
	devices  *devsrv.DeviceService
	readings *devsrv.ReadingService
	ingest   *ingest.Service
}

func NewHandler(devices *devsrv.DeviceService, readings *devsrv.ReadingService, ing *ingest.Service) *Handler {
	return &Handler{devices: devices, readings: readings, ingest: ing}
}

func (h *Handler) HandlerList(c *gin.Context) {
	out, err := h.devices.ListByOwner(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		logger.Errorf("[device] list failed err=%v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

func (h *Handler) HandlerGet(c *gin.Context) {
	d, err := h.devices.GetByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil || d.OwnerID != midsec.UserID(c) {
		// Hide existence of other users' devices.
		c.JSON(http.StatusNotFound, errs.ErrRecordNotFound)
		return
	}
	c.JSON(http.StatusOK, d)
}

type deviceReq struct {
	DeviceID string `json:"device_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
	Type     string `json:"type" binding:"required"`
	IsActive *bool  `json:"is_active"`
	OwnerID  string `json:"owner_id"`
}

func (h *Handler) HandlerCreate(c *gin.Context) {
	var req deviceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	d, err := h.devices.Create(c.Request.Context(), model.Device{
		DeviceID: req.DeviceID,
		Name:     req.Name,
		Location: req.Location,
		Type:     req.Type,
		IsActive: active,
		OwnerID:  midsec.UserID(c), // creator owns, never client supplied
	})
	if err != nil {
		logger.Errorf("[device] create failed device_id=%s err=%v", req.DeviceID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) HandlerUpdate(c *gin.Context) {
	var req deviceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	owner := midsec.UserID(c)
	newOwner := owner
	if req.OwnerID != "" {
		newOwner = req.OwnerID // ownership transfer
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	d, err := h.devices.Update(c.Request.Context(), owner, model.Device{
		DeviceID: c.Param("device_id"),
		Name:     req.Name,
		Location: req.Location,
		Type:     req.Type,
		IsActive: active,
		OwnerID:  newOwner,
	})
	if errors.Is(err, devsrv.ErrNotFound) {
		c.JSON(http.StatusNotFound, errs.ErrRecordNotFound)
		return
	}
	if err != nil {
		logger.Errorf("[device] update failed device_id=%s err=%v", c.Param("device_id"), err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) HandlerDelete(c *gin.Context) {
	err := h.devices.Delete(c.Request.Context(), midsec.UserID(c), c.Param("device_id"))
	if errors.Is(err, devsrv.ErrNotFound) {
		c.JSON(http.StatusNotFound, errs.ErrRecordNotFound)
		return
	}
	if err != nil {
		logger.Errorf("[device] delete failed device_id=%s err=%v", c.Param("device_id"), err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlerIngest is the telemetry write path: POST /api/readings with the
// raw telemetry JSON body.
func (h *Handler) HandlerIngest(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}
	tm, err := h.ingest.Ingest(c.Request.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnknownDevice):
			c.JSON(http.StatusNotFound, errs.ErrRecordNotFound.WithDetail("device with this id does not exist"))
		case tm == nil:
			c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		default:
			// Parsed and routed but a side effect failed.
			logger.Errorf("[device] ingest partial failure device_id=%s err=%v", tm.DeviceID, err)
			c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"device_id": tm.DeviceID})
}

// HandlerReadings lists reading history for one owned device, newest first.
func (h *Handler) HandlerReadings(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("device_id required"))
		return
	}
	d, err := h.devices.GetByDeviceID(c.Request.Context(), deviceID)
	if err != nil || d.OwnerID != midsec.UserID(c) {
		c.JSON(http.StatusNotFound, errs.ErrRecordNotFound)
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	out, err := h.readings.ListByDevice(c.Request.Context(), deviceID, limit)
	if err != nil {
		logger.Errorf("[device] readings query failed device_id=%s err=%v", deviceID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": out})
}
