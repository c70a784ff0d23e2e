package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"TeleProject/logger"
	"TeleProject/service/bus"
	"TeleProject/service/telemetry"
	"TeleProject/tools/safe"
)

// Session lifecycle. Transitions only move forward; racing close paths all
// funnel through the same sync.Once.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

const writeDeadline = 5 * time.Second

// Conn is the client-facing half of a session. *websocket.Conn satisfies
// it; tests substitute an in-memory pipe.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session owns one live client connection: the bus subscription, the
// receive loop, per-message authorization and teardown. It is handed off by
// the listener after upgrade and is self-owned until it closes.
type Session struct {
	ConnID string
	UserID string

	// connect-time ownership snapshot; used only to derive the subscribe
	// set, never for authorization.
	deviceIDs []string

	ws     Conn
	bus    bus.Bus
	sub    bus.Subscription
	filter *Filter
	reg    *Registry

	state     atomic.Int32
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	writeMu sync.Mutex
}

func NewSession(connID, userID string, deviceIDs []string, ws Conn, b bus.Bus, filter *Filter, reg *Registry) *Session {
	return &Session{
		ConnID:    connID,
		UserID:    userID,
		deviceIDs: deviceIDs,
		ws:        ws,
		bus:       b,
		filter:    filter,
		reg:       reg,
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Topics returns the subscribe set: one topic per owned device plus the
// broadcast topic.
func (s *Session) Topics() []string {
	topics := make([]string, 0, len(s.deviceIDs)+1)
	for _, id := range s.deviceIDs {
		topics = append(topics, bus.DeviceTopic(id))
	}
	return append(topics, bus.BroadcastTopic)
}

// Run subscribes to the bus and drives the session until teardown. It
// blocks for the lifetime of the connection; the listener calls it from the
// per-connection goroutine. All resources are released when it returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	sub, err := s.bus.Subscribe(ctx, s.Topics()...)
	if err != nil {
		// Subscribe failure is structural: no partial session.
		s.state.Store(int32(StateClosing))
		s.Close()
		return errors.Wrap(err, "session: subscribe")
	}
	s.sub = sub

	s.state.Store(int32(StateActive))
	s.reg.add(s)
	logger.Infof("[gateway] session active conn_id=%s user=%s topics=%d", s.ConnID, s.UserID, len(s.deviceIDs)+1)

	// Client-to-server duty: the read loop only detects a client initiated
	// close (or transport error); inbound payloads are not part of the
	// protocol and are discarded.
	safe.Go("session-read", func() {
		for {
			if _, _, rerr := s.ws.ReadMessage(); rerr != nil {
				if websocket.IsCloseError(rerr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseNoStatusReceived,
				) {
					logger.Debugf("[gateway] peer closed conn_id=%s", s.ConnID)
				}
				break
			}
		}
		s.Close()
	})

	s.receiveLoop(ctx)
	s.Close()
	return nil
}

// receiveLoop is the bus-to-client duty: block on the subscription, filter,
// forward. Local faults (bad payload, one failed ownership check) are
// absorbed here; only structural faults end the loop.
func (s *Session) receiveLoop(ctx context.Context) {
	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || errors.Is(err, context.Canceled) {
				return
			}
			logger.Errorf("[gateway] bus receive failed conn_id=%s err=%v", s.ConnID, err)
			return
		}

		tm, perr := telemetry.Parse(msg.Payload)
		if perr != nil {
			logger.Warnf("[gateway] drop malformed message topic=%s conn_id=%s err=%v", msg.Topic, s.ConnID, perr)
			continue
		}

		ok, ferr := s.filter.MayForward(ctx, s.UserID, tm.DeviceID)
		if ferr != nil {
			// Fail-closed: never forward on uncertainty, but one failed
			// check does not terminate the session.
			logger.Warnf("[gateway] ownership check failed, dropping device_id=%s conn_id=%s err=%v", tm.DeviceID, s.ConnID, ferr)
			continue
		}
		if !ok {
			continue
		}

		if werr := s.push(tm.Raw()); werr != nil {
			logger.Infof("[gateway] push failed, closing conn_id=%s err=%v", s.ConnID, werr)
			return
		}
	}
}

func (s *Session) push(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close tears the session down: cancel the receive loop, release the bus
// subscription, drop out of the registry, close the socket. Idempotent and
// safe to call concurrently from the read loop, the receive loop and
// process shutdown.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		if s.cancel != nil {
			s.cancel()
		}
		if s.sub != nil {
			_ = s.sub.Close()
		}
		s.reg.remove(s)
		_ = s.ws.Close()
		s.state.Store(int32(StateClosed))
		close(s.done)
		logger.Infof("[gateway] session closed conn_id=%s user=%s", s.ConnID, s.UserID)
	})
	<-s.done
}

// Done is closed once teardown has completed.
func (s *Session) Done() <-chan struct{} { return s.done }
