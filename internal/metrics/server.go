package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the registered Prometheus vectors over HTTP: a bare
// http.ServeMux serving /metrics and /health, started/stopped
// independently of the rest of the daemon.
type Server struct {
	server *http.Server
	log    *logrus.Logger
}

// NewServer builds a metrics server listening on addr. promauto already
// registered every vector in this package against the default registry at
// package init, so there is no per-call registration step to repeat here.
func NewServer(addr string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		log:    log,
	}
}

// Start begins serving in the background; transport errors after a clean
// Stop are not logged since Stop's Close always unblocks ListenAndServe
// with http.ErrServerClosed.
func (s *Server) Start() {
	s.log.WithField("addr", s.server.Addr).Info("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("metrics server error")
		}
	}()
}

func (s *Server) Stop() error {
	s.log.Info("stopping metrics server")
	return s.server.Close()
}
