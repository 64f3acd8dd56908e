// Package httpapi is the daemon's HTTP admin and RPC surface, routed
// with gorilla/mux: a request-timing middleware innermost, auth
// middleware around everything that touches customer data.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"logscan/internal/ingest"
	"logscan/internal/ingest/source"
	"logscan/internal/logfile"
	"logscan/internal/metrics"
	"logscan/internal/scan"
	"logscan/internal/schema"
	"logscan/pkg/auth"
	"logscan/pkg/errs"
	"logscan/pkg/sqlrt"
	"logscan/pkg/tsdb"
)

// defaultScanCapacity bounds a scan request that names no capacity of
// its own; the result buffer is always bounded.
const defaultScanCapacity = 1000

// API wires the core components (registry, ingestion pipeline, scan
// coordinator) behind the daemon's HTTP endpoints.
type API struct {
	registry    *logfile.Registry
	ingest      *ingest.Pipeline
	store       *tsdb.Store
	coordinator *scan.Coordinator
	signer      *auth.Signer
	log         *logrus.Logger
}

func New(registry *logfile.Registry, pipeline *ingest.Pipeline, store *tsdb.Store, coordinator *scan.Coordinator, signer *auth.Signer, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{registry: registry, ingest: pipeline, store: store, coordinator: coordinator, signer: signer, log: log}
}

// Router builds the full route table, request-timing middleware
// innermost, auth outermost.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()

	authed := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = a.requestLogMiddleware(h)
		if a.signer != nil {
			handler = a.signer.Middleware(handler)
		}
		return handler
	}

	r.Handle("/api/v1/logfiles", authed(a.listLogfiles)).Methods(http.MethodGet)
	r.Handle("/api/v1/logfiles/get_definition", authed(a.getDefinition)).Methods(http.MethodGet)
	r.Handle("/api/v1/logfiles/set_regex", authed(a.setRegex)).Methods(http.MethodPost)
	r.Handle("/api/v1/logfiles/upload", authed(a.upload)).Methods(http.MethodPost)
	r.Handle("/api/v1/logfiles/scan", authed(a.scan)).Methods(http.MethodPost)

	// scan_partition is served for peer RemoteAdapter requests, so it is
	// not wrapped in the customer-auth middleware; the shared service
	// token signed into RemoteAdapter.WithAuth is validated instead.
	r.Handle("/api/v1/logfiles/scan_partition", a.peerAuth(a.requestLogMiddleware(a.scanPartition))).Methods(http.MethodPost)

	r.HandleFunc("/health", a.health).Methods(http.MethodGet)

	return r
}

// peerAuth verifies the shared service token a RemoteAdapter signs into
// its requests. Unlike the customer middleware it only checks that the
// token verifies against the shared secret -- a replica serving a
// partition scan has no customer context of its own to check against.
func (a *API) peerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.signer != nil {
			const prefix = "Token "
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, prefix) {
				http.Error(w, "authorization required", http.StatusUnauthorized)
				return
			}
			if _, err := a.signer.DecodeToken(strings.TrimPrefix(h, prefix)); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogMiddleware logs each request's latency, the innermost
// wrapper around every handler.
func (a *API) requestLogMiddleware(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		a.log.WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
			"took":   time.Since(start),
		}).Debug("handled request")
	})
}

func (a *API) listLogfiles(w http.ResponseWriter, r *http.Request) {
	customer := customerFor(r)
	defs, err := a.registry.List(customer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logfile_definitions": defs})
}

func (a *API) getDefinition(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("logfile")
	if name == "" {
		http.Error(w, "missing logfile parameter", http.StatusBadRequest)
		return
	}

	customer := customerFor(r)
	def, ok, err := a.registry.Find(customer, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "logfile not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (a *API) setRegex(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("logfile")
	regex := r.URL.Query().Get("regex")
	if name == "" || regex == "" {
		http.Error(w, "missing logfile or regex parameter", http.StatusBadRequest)
		return
	}

	customer := customerFor(r)
	if err := a.registry.SetRegex(customer, name, regex); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "ok")
}

// upload streams the request body as the ingestion input, transparently
// decompressing a gzip or snappy Content-Encoding before handing lines to
// the pipeline -- the klauspost/compress + golang/snappy wiring named in
// the domain stack.
func (a *API) upload(w http.ResponseWriter, r *http.Request) {
	logfileName := r.URL.Query().Get("logfile")
	if logfileName == "" {
		http.Error(w, "missing logfile parameter", http.StatusBadRequest)
		return
	}
	customer := customerFor(r)

	body, err := decompress(r.Header.Get("Content-Encoding"), r.Body)
	if err != nil {
		http.Error(w, "unsupported content encoding", http.StatusBadRequest)
		return
	}

	sourceFields := map[string]string{}
	for k, v := range r.URL.Query() {
		if k == "logfile" || len(v) == 0 {
			continue
		}
		sourceFields[k] = v[0]
	}

	result, err := a.ingest.Ingest(r.Context(), customer, logfileName, sourceFields, source.Upload{Body: body})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decompress(encoding string, body io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(body)
	case "snappy", "x-snappy":
		return snappy.NewReader(body), nil
	default:
		return body, nil
	}
}

// scanPartition decodes a scan.RemoteScanRequest and answers with a
// scan.RemoteScanResponse, so this server-side handler and RemoteAdapter's
// client speak the exact same wire shape.
func (a *API) scanPartition(w http.ResponseWriter, r *http.Request) {
	var req scan.RemoteScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	// A host that has never materialized this partition answers 404; the
	// calling RemoteAdapter treats that as "partition empty here" and does
	// not fall through to further replicas.
	if _, ok, err := a.store.FindPartition(req.Namespace, req.Table, req.WindowStart, req.PartitionSize); err != nil {
		writeError(w, err)
		return
	} else if !ok {
		http.Error(w, "no such partition", http.StatusNotFound)
		return
	}

	var pred sqlrt.Predicate
	if req.SQLFilter != "" {
		var err error
		pred, err = sqlrt.Compile(req.SQLFilter, req.FieldIDs)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	params := scan.LogfileScanParams{
		EndTime:   req.EndTime,
		Columns:   req.Columns,
		ReturnRaw: req.ReturnRaw,
		ScanType:  scan.ScanTypeSQL,
		Condition: req.SQLFilter,
	}

	lines, scanned, err := scan.LocalScan(a.store, req.Namespace, req.Table, req.WindowStart, req.PartitionSize, pred, req.FieldIDs, params, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.ScanPartitionsVisitedTotal.WithLabelValues(req.Table, "served").Inc()
	writeJSON(w, http.StatusOK, scan.RemoteScanResponse{Lines: lines, RowsScanned: scanned})
}

// scanRequest is the customer-facing request body for POST
// /api/v1/logfiles/scan: a LogfileScanParams plus the logfile name and
// result capacity the coordinator needs but which aren't part of the
// scan params shape itself.
type scanRequest struct {
	Logfile  string                 `json:"logfile"`
	Capacity int                    `json:"capacity"`
	Params   scan.LogfileScanParams `json:"params"`
}

// scan runs a full cross-partition scan of one customer logfile through
// the scan coordinator and returns the bounded result. This is the only
// path by which the coordinator is reachable from outside the process;
// peers only ever see individual partitions via scanPartition.
func (a *API) scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Logfile == "" {
		http.Error(w, "missing logfile field", http.StatusBadRequest)
		return
	}

	customer := customerFor(r)
	def, err := a.registry.MustFind(customer, req.Logfile)
	if err != nil {
		writeError(w, err)
		return
	}

	sch := schema.SchemaFor(*def)
	fieldIDs := sch.FieldIDs()
	tableName := schema.TableName(def.Name)

	if req.Params.ScanType == "" {
		req.Params.ScanType = scan.ScanTypeSQL
	}
	if req.Capacity <= 0 {
		req.Capacity = defaultScanCapacity
	}

	result, err := a.coordinator.Scan(r.Context(), customer, tableName, schema.PartitionWindow, fieldIDs, req.Params, req.Capacity, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReportHealth())
}

func customerFor(r *http.Request) string {
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		return session.Customer
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errs.Is(err, errs.KindNotFound) {
		status = http.StatusNotFound
	} else if errs.Is(err, errs.KindParseError) || errs.Is(err, errs.KindIllegalState) {
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
