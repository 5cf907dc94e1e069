package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"keyslookup/internal/adapters/exposure"
	"keyslookup/internal/adapters/output"
	"keyslookup/internal/lookup"
	"keyslookup/internal/ports"
	"keyslookup/internal/services/keys"
)

const (
	headerRequestID = "X-Request-Id"
	// trailerError carries a failure that happened after streaming began.
	trailerError = "X-Lookup-Error"
)

type ctxKey struct{}

// Server exposes the keys service over HTTP.
type Server struct {
	keys    ports.Keys
	log     *zap.Logger
	maxBody int64
}

func New(keys ports.Keys, log *zap.Logger, maxBody int64) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{keys: keys, log: log, maxBody: maxBody}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/countries", s.countries)
	r.Post("/lookup", s.lookup)
	r.Post("/reload", s.reload)
	return r
}

// requestID reuses the caller's X-Request-Id or mints one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http: request",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) countries(w http.ResponseWriter, r *http.Request) {
	cs := s.keys.Countries()
	if cs == nil {
		s.fail(w, r, http.StatusServiceUnavailable, keys.ErrNotLoaded)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if err := s.keys.Reload(r.Context()); err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type lookupParams struct {
	// Format of the response body, ndjson (default) or csv.
	Format *string
	// Input format of the request body; defaults from Content-Type, then csv.
	Input   *string
	Country *[]string
}

func bindLookupParams(r *http.Request) (lookupParams, error) {
	var p lookupParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "format", q, &p.Format); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "input", q, &p.Input); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "country", q, &p.Country); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	params, err := bindLookupParams(r)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	outFormat := output.FormatNDJSON
	if params.Format != nil {
		outFormat = strings.ToLower(*params.Format)
	}
	if outFormat != output.FormatNDJSON && outFormat != output.FormatCSV {
		s.fail(w, r, http.StatusBadRequest, output.ErrUnknownFormat)
		return
	}

	inFormat := exposure.FormatFromContentType(r.Header.Get("Content-Type"))
	if params.Input != nil {
		inFormat = *params.Input
	}
	if inFormat == "" {
		inFormat = exposure.FormatCSV
	}
	reader, err := exposure.ForFormat(inFormat)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.fail(w, r, status, err)
		return
	}
	table, err := reader.Read(bytes.NewReader(data))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	var opts []lookup.RunOption
	if params.Country != nil {
		opts = append(opts, lookup.OnlyCountries(*params.Country...))
	}

	s.stream(w, r, outFormat, s.keys.Lookup(r.Context(), table, opts...))
}

// stream writes and flushes each batch as it arrives. An error before the
// first batch gets a normal error response; after that the status is already
// sent, so the rows written so far are kept and the error goes into the
// trailer and, for NDJSON, a final error line.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, format string, seq iter.Seq2[lookup.Batch, error]) {
	rc := http.NewResponseController(w)
	var out ports.ResultWriter
	started := false
	start := func() {
		w.Header().Set("Content-Type", output.ContentType(format))
		w.Header().Set("Trailer", trailerError)
		w.WriteHeader(http.StatusOK)
		out, _ = output.New(format, w)
		started = true
	}

	batches := 0
	for b, err := range seq {
		if err != nil {
			if !started {
				s.fail(w, r, lookupStatus(err), err)
				return
			}
			s.log.Error("lookup: stream aborted",
				zap.String("request_id", requestID(r.Context())),
				zap.Int("batches", batches),
				zap.Error(err))
			if nd, ok := out.(*output.NDJSON); ok {
				_ = nd.WriteError(err.Error())
			}
			_ = out.Flush()
			_ = rc.Flush()
			w.Header().Set(trailerError, err.Error())
			return
		}
		if !started {
			start()
		}
		if err := out.Write(b.Results); err == nil {
			err = out.Flush()
		}
		if err != nil {
			s.log.Warn("lookup: client write failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
			return
		}
		_ = rc.Flush()
		batches++
	}
	if !started {
		start()
	}
	_ = out.Flush()
}

func lookupStatus(err error) int {
	switch {
	case errors.Is(err, keys.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusUnprocessableEntity
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	id := requestID(r.Context())
	if status >= http.StatusInternalServerError {
		s.log.Error("http: request failed", zap.String("request_id", id), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error(), RequestID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
