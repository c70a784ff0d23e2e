package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"TeleProject/logger"
	usersrv "TeleProject/module/user/service"
	"TeleProject/tools/errs"
	"TeleProject/tools/security"
)

type Handler struct {
	users   *usersrv.UserService
	jwtOpts security.Options
}

func NewHandler(users *usersrv.UserService, jwtOpts security.Options) *Handler {
	return &Handler{users: users, jwtOpts: jwtOpts}
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandlerLogin issues a JWT for valid credentials. The token is what the
// REST API and the websocket upgrade both authenticate with.
func (h *Handler) HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	userID, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, usersrv.ErrBadCredentials) {
			c.JSON(http.StatusUnauthorized, errs.ErrNoPermission)
			return
		}
		logger.Errorf("[user] authenticate failed user=%s err=%v", req.Username, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	token, expireAt, err := security.Generate(h.jwtOpts, userID)
	if err != nil {
		logger.Errorf("[user] token generate failed user=%s err=%v", req.Username, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expire_at": expireAt.UnixMilli(),
		"user": gin.H{
			"id":   userID,
			"name": req.Username,
		},
	})
}
