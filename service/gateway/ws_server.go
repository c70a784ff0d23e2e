package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"TeleProject/logger"
	"TeleProject/service/bus"
	"TeleProject/service/directory"
	"TeleProject/tools/errs"
	"TeleProject/tools/ids"
	"TeleProject/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the gateway listener: it authenticates connection upgrades,
// resolves the caller's owned devices and spawns one session per accepted
// connection. It keeps no per-session state itself; the registry exists for
// observability only.
type Server struct {
	nodeID  string
	bus     bus.Bus
	dir     directory.Directory
	filter  *Filter
	reg     *Registry
	jwtOpts security.Options
}

func NewServer(nodeID string, b bus.Bus, dir directory.Directory, jwtOpts security.Options) *Server {
	return &Server{
		nodeID:  nodeID,
		bus:     b,
		dir:     dir,
		filter:  NewFilter(dir),
		reg:     NewRegistry(),
		jwtOpts: jwtOpts,
	}
}

// Registry exposes the live-session index for stats endpoints.
func (s *Server) Registry() *Registry { return s.reg }

// HandleWS upgrades one client connection and runs its session to
// completion. Authentication and the directory lookup happen before the
// upgrade: a rejected caller costs no gateway resources.
func (s *Server) HandleWS(c *gin.Context) {
	userID, err := s.authenticate(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
		return
	}

	deviceIDs, err := s.dir.OwnedDeviceIDs(c.Request.Context(), userID)
	if err != nil {
		// Never fall back to empty access on a directory error.
		logger.Errorf("[gateway] directory lookup failed user=%s err=%v", userID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[gateway] upgrade failed user=%s err=%v", userID, err)
		return
	}

	sess := NewSession(ids.GenerateString(), userID, deviceIDs, ws, s.bus, s.filter, s.reg)
	logger.Infof("[gateway] node=%s accepted conn_id=%s user=%s devices=%d",
		s.nodeID, sess.ConnID, userID, len(deviceIDs))
	// The handler goroutine is the session's unit of execution; gin keeps
	// it alive until the session tears down.
	if err := sess.Run(c.Request.Context()); err != nil {
		logger.Errorf("[gateway] session failed conn_id=%s user=%s err=%v", sess.ConnID, userID, err)
	}
}

// authenticate pulls the JWT from the Authorization header or, for browser
// websocket clients that cannot set headers, the token query parameter.
func (s *Server) authenticate(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if token == "" {
		return "", errs.ErrTokenExpired
	}
	return security.Verify(s.jwtOpts, token)
}
