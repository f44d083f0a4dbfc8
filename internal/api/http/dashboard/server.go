package dashboard

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/oshokin/smart-office/internal/actuation"
	"github.com/oshokin/smart-office/internal/alert"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/events"
	"github.com/oshokin/smart-office/internal/faceauth"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/notify"
)

const (
	// maxUploadSize bounds multipart bodies carrying face images.
	maxUploadSize = 10 << 20
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second
)

// Status is the current view of the office.
type Status struct {
	State        office.SensorState
	Alerts       alert.Evaluation
	Verification actuation.Phase
	// Users is the number of registered faces, negative until the biometric service has answered.
	Users int
}

// Service abstracts the office operations the HTTP layer depends on.
type Service interface {
	Status(ctx context.Context) Status
	SetDoor(ctx context.Context, open bool) error
	ToggleLight(ctx context.Context) error
	ToggleFan(ctx context.Context) bool
	SimulateGas(ctx context.Context)
	AcknowledgeGas(ctx context.Context)
	// Verify runs one face verification. A nil image means the camera is used.
	Verify(ctx context.Context, image []byte) (office.AuthResult, error)
	Users(ctx context.Context) ([]faceauth.User, error)
	Register(ctx context.Context, username string, image []byte) (faceauth.Registration, error)
	DeleteUser(ctx context.Context, username string) error
	Notifications() []notify.Notification
	Health(ctx context.Context) error
}

// Feed is the source of pushed events.
type Feed interface {
	Subscribe() (int64, <-chan events.Envelope)
	Unsubscribe(id int64)
}

// Server implements the dashboard HTTP API.
type Server struct {
	service  Service
	feed     Feed
	origins  []string
	upgrader websocket.Upgrader
	// baseCtx carries the service logger into request handlers.
	baseCtx context.Context
}

// NewServer wires the service and the event feed into an HTTP handler.
// An empty origins list allows every origin.
func NewServer(ctx context.Context, service Service, feed Feed, origins []string) *Server {
	s := &Server{
		service: service,
		feed:    feed,
		origins: slices.Clone(origins),
		baseCtx: ctx,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	return s
}

// Handler returns the routed API with CORS and panic recovery applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	api.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	api.HandleFunc("/door", s.setDoor).Methods(http.MethodPost)
	api.HandleFunc("/light/toggle", s.toggleLight).Methods(http.MethodPost)
	api.HandleFunc("/fan/toggle", s.toggleFan).Methods(http.MethodPost)
	api.HandleFunc("/gas/simulate", s.simulateGas).Methods(http.MethodPost)
	api.HandleFunc("/gas/acknowledge", s.acknowledgeGas).Methods(http.MethodPost)
	api.HandleFunc("/face/verify", s.verifyFace).Methods(http.MethodPost)
	api.HandleFunc("/users", s.getUsers).Methods(http.MethodGet)
	api.HandleFunc("/users", s.registerUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{"+urlUsername+"}", s.deleteUser).Methods(http.MethodDelete)
	api.HandleFunc("/notifications", s.getNotifications).Methods(http.MethodGet)

	router.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{ctx: s.baseCtx}),
		handlers.PrintRecoveryStack(true),
	)

	return recovery(cors(router))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(s.origins, origin) || slices.Contains(s.origins, "*")
}

// context returns the request context carrying the service logger.
func (s *Server) context(r *http.Request) context.Context {
	return logger.ToContext(r.Context(), logger.FromContext(s.baseCtx))
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.DebugKV(s.baseCtx, "REST invocation", "method", r.Method, "url", r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

// recoveryLogger routes recovered panics into the service logger.
type recoveryLogger struct {
	ctx context.Context
}

func (l recoveryLogger) Println(args ...any) {
	logger.FromContext(l.ctx).Error(args...)
}
