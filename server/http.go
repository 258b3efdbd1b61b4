package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	streamjoin "github.com/pickme-go/stream-join"
	joinErrors "github.com/pickme-go/stream-join/errors"
	"github.com/pickme-go/stream-join/graph"
	"github.com/pickme-go/stream-join/internal/table"
	"github.com/pickme-go/stream-join/sources"
	"github.com/pickme-go/traceable-context"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Host            string
	MaxBodyBytes    int64
	Logger          log.Logger
	MetricsReporter metrics.Reporter
	// Metrics mounts the Prometheus handler on /metrics.
	Metrics bool
}

type Server struct {
	host    string
	maxBody int64
	logger  log.Logger
	metrics *streamjoin.Metrics
	handler http.Handler
}

type Err struct {
	Err  string `json:"error"`
	Kind string `json:"kind,omitempty"`
	Side string `json:"side,omitempty"`
}

// JoinRequest carries both sides inline.
type JoinRequest struct {
	table.Request
	Left  []sources.Record `json:"left"`
	Right []sources.Record `json:"right"`
}

type PlanRequest struct {
	table.Request
	LeftName  string `json:"left_name"`
	RightName string `json:"right_name"`
}

func NewServer(conf Config) *Server {
	if conf.Logger == nil {
		conf.Logger = log.NewNoopLogger()
	}

	if conf.MetricsReporter == nil {
		conf.MetricsReporter = metrics.NoopReporter()
	}

	if conf.MaxBodyBytes <= 0 {
		conf.MaxBodyBytes = 32 << 20
	}

	s := &Server{
		host:    conf.Host,
		maxBody: conf.MaxBodyBytes,
		logger:  conf.Logger.NewLog(log.Prefixed(`http`)),
		metrics: streamjoin.NewMetrics(conf.MetricsReporter),
	}

	r := mux.NewRouter()
	r.Use(s.trace)

	r.HandleFunc(`/health`, func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]string{`status`: `ok`})
	}).Methods(http.MethodGet)

	r.HandleFunc(`/joins`, s.join).Methods(http.MethodPost)
	r.HandleFunc(`/plan`, s.plan).Methods(http.MethodPost)

	if conf.Metrics {
		r.Handle(`/metrics`, promhttp.Handler()).Methods(http.MethodGet)
	}

	s.handler = handlers.CORS()(handlers.RecoveryHandler()(r))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.host,
		Handler: s.handler,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	s.logger.Info(fmt.Sprintf(`http server started on %s`, s.host))

	select {
	case err := <-errs:
		return errors.WithPrevious(err, `cannot start web server`)
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer s.logger.Info(`http server stopped`)
		return srv.Shutdown(shutdown)
	}
}

type traceKey struct{}

func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		id := uuid.New()
		begin := time.Now()
		writer.Header().Set(`X-Request-Id`, id.String())

		ctx := context.WithValue(request.Context(), traceKey{}, traceable_context.WithUUID(id))
		next.ServeHTTP(writer, request.WithContext(ctx))

		s.logger.DebugContext(traceOf(ctx), fmt.Sprintf(`%s %s served in %s`, request.Method, request.URL.Path, time.Since(begin)))
	})
}

// traceOf returns the context carrying the request id for logging.
func traceOf(ctx context.Context) context.Context {
	if t, ok := ctx.Value(traceKey{}).(context.Context); ok {
		return t
	}
	return ctx
}

func (s *Server) join(writer http.ResponseWriter, request *http.Request) {
	var req JoinRequest
	if !s.decode(writer, request, &req) {
		return
	}

	opts := []streamjoin.Option{
		streamjoin.WithLogger(s.logger),
		streamjoin.WithMetrics(s.metrics),
		streamjoin.WithIndexSizeHint(len(req.Right)),
	}

	rows, err := req.Run(request.Context(), sources.Slice(req.Left), sources.Slice(req.Right), opts...)
	if err != nil {
		s.writeError(writer, request, http.StatusBadRequest, err)
		return
	}
	defer rows.Close()

	// the status is only known once the first row or error is produced
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			s.writeError(writer, request, http.StatusUnprocessableEntity, err)
			return
		}
		writer.Header().Set(`Content-Type`, `application/x-ndjson`)
		writer.WriteHeader(http.StatusOK)
		return
	}

	writer.Header().Set(`Content-Type`, `application/x-ndjson`)
	writer.Header().Set(`X-Join-Id`, rows.ID().String())
	writer.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(writer)
	for ok := true; ok; ok = rows.Next() {
		if err := enc.Encode(rows.Value()); err != nil {
			s.logger.ErrorContext(traceOf(request.Context()), fmt.Sprintf(`cannot write row - %+v`, err))
			return
		}
	}

	// rows already sent, the failure goes in the last line
	if err := rows.Err(); err != nil {
		if err := enc.Encode(toErr(err)); err != nil {
			s.logger.ErrorContext(traceOf(request.Context()), fmt.Sprintf(`cannot write error - %+v`, err))
		}
	}
}

func (s *Server) plan(writer http.ResponseWriter, request *http.Request) {
	var req PlanRequest
	if !s.decode(writer, request, &req) {
		return
	}

	p, err := req.Plan(req.LeftName, req.RightName)
	if err != nil {
		s.writeError(writer, request, http.StatusBadRequest, err)
		return
	}

	dot, err := graph.Render(p)
	if err != nil {
		s.writeError(writer, request, http.StatusInternalServerError, err)
		return
	}

	writer.Header().Set(`Content-Type`, `text/vnd.graphviz`)
	if _, err := writer.Write([]byte(dot)); err != nil {
		s.logger.ErrorContext(traceOf(request.Context()), err)
	}
}

func (s *Server) decode(writer http.ResponseWriter, request *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(writer, request.Body, s.maxBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.writeError(writer, request, http.StatusBadRequest, errors.WithPrevious(err, `invalid request body`))
		return false
	}

	return true
}

func (s *Server) writeError(writer http.ResponseWriter, request *http.Request, status int, err error) {
	s.logger.InfoContext(traceOf(request.Context()), fmt.Sprintf(`%s %s failed - %+v`, request.Method, request.URL.Path, err))
	writeJSON(writer, status, toErr(err))
}

func toErr(err error) Err {
	e := Err{Err: err.Error()}
	if je, ok := joinErrors.As(err); ok {
		e.Kind = je.Kind.String()
		e.Side = string(je.Side)
	}
	return e
}

func writeJSON(writer http.ResponseWriter, status int, v interface{}) {
	writer.Header().Set(`Content-Type`, `application/json`)
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(v)
}
