package peer

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server exposes the coordinator-side Registry over HTTP: POST /register
// and GET /workers are plain REST, while /heartbeat is a long-lived
// websocket a worker opens once and streams HeartBeat envelopes over for
// the rest of its lifetime — cheaper than one HTTP round trip per beat at
// a sub-second heartbeat interval.
type Server struct {
	registry *Registry
	log      *zap.Logger
	engine   *gin.Engine
}

// NewServer builds a gin.Engine wired against registry. Pass gin.New() +
// your own middleware via Engine() if you want request logging/recovery;
// NewServer itself stays minimal (no gin.Default()) so embedding this
// inside a larger process doesn't double up on global middleware.
func NewServer(registry *Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{registry: registry, log: log, engine: gin.New()}
	s.routes()
	return s
}

// Engine returns the underlying gin.Engine for mounting alongside other
// routes or wrapping with additional middleware.
func (s *Server) Engine() *gin.Engine { return s.engine }

type registerRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	Address  string `json:"address" binding:"required"`
}

func (s *Server) routes() {
	s.engine.POST("/register", s.handleRegister)
	s.engine.GET("/workers", s.handleListWorkers)
	s.engine.GET("/heartbeat", s.handleHeartbeatStream)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.registry.Register(req.WorkerID, req.Address)
	s.log.Info("worker registered", zap.String("worker", req.WorkerID), zap.String("address", req.Address))
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

type workerView struct {
	WorkerID      string    `json:"worker_id"`
	Address       string    `json:"address"`
	State         State     `json:"state"`
	QueueDepth    int       `json:"queue_depth"`
	CPU           float64   `json:"cpu"`
	Mem           float64   `json:"mem"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Healthy       bool      `json:"healthy"`
}

func (s *Server) handleListWorkers(c *gin.Context) {
	now := time.Now()
	workers := s.registry.List()
	views := make([]workerView, len(workers))
	for i, w := range workers {
		views[i] = workerView{
			WorkerID:      w.WorkerID,
			Address:       w.Address,
			State:         w.State,
			QueueDepth:    w.Metrics.QueueDepth,
			CPU:           w.Metrics.CPU,
			Mem:           w.Metrics.Mem,
			LastHeartbeat: w.LastHeartbeat,
			Healthy:       now.Sub(w.LastHeartbeat) <= DefaultHeartbeatTimeout,
		}
	}
	c.JSON(http.StatusOK, gin.H{"workers": views})
}

func (s *Server) handleHeartbeatStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("heartbeat upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("heartbeat stream closed unexpectedly", zap.Error(err))
			}
			return
		}
		var hb HeartBeat
		if err := decodeEnvelope(env, &hb); err != nil {
			s.log.Warn("heartbeat decode failed", zap.Error(err))
			continue
		}
		if !s.registry.Heartbeat(hb) {
			s.log.Debug("heartbeat discarded (stale/unknown)", zap.String("worker", hb.Worker), zap.Uint64("seq", hb.Seq))
		}
	}
}
