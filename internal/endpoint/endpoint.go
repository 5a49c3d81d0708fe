// Package endpoint adapts the external RPC surface (spec.md §6) and the
// internal node-to-node forwarding surface onto HTTP+JSON, in the plain
// net/http + ServeMux style the rest of the ambient stack follows: no
// framework, explicit status codes, json.NewEncoder for every response
// body.
package endpoint

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/guardian"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/stmt"
)

// Endpoint wires a Guardian to an HTTP mux implementing both the external
// RPC surface (Write, InitMetric, ExecuteSQL, Check) and the internal
// forwarding surface the write and read coordinators call on each other
// (/internal/write, /internal/delete, /internal/query).
type Endpoint struct {
	g      *guardian.Guardian
	logger *logrus.Entry
}

// New builds an Endpoint over g.
func New(g *guardian.Guardian, logger *logrus.Entry) *Endpoint {
	return &Endpoint{g: g, logger: logger}
}

// Mux builds the http.Handler exposing every route.
func (e *Endpoint) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/write", e.handleWrite)
	mux.HandleFunc("/init-metric", e.handleInitMetric)
	mux.HandleFunc("/execute-sql", e.handleExecuteSQL)
	mux.HandleFunc("/check", e.handleCheck)
	mux.HandleFunc("/internal/write", e.handleInternalWrite)
	mux.HandleFunc("/internal/delete", e.handleInternalDelete)
	mux.HandleFunc("/internal/query", e.handleInternalQuery)
	return mux
}

type writeRequest struct {
	DB        string        `json:"db"`
	Namespace string        `json:"namespace"`
	Metric    string        `json:"metric"`
	Record    scalar.Record `json:"record"`
}

type writeResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (e *Endpoint) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ns, err := e.g.Namespace(req.DB, req.Namespace)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, writeResult{Error: err.Error()})
		return
	}
	if err := ns.Write.MapInput(r.Context(), req.DB, req.Namespace, req.Metric, req.Record); err != nil {
		writeJSON(w, statusFor(err), writeResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, writeResult{OK: true})
}

type initMetricRequest struct {
	DB            string `json:"db"`
	Namespace     string `json:"namespace"`
	Metric        string `json:"metric"`
	ShardInterval int64  `json:"shard_interval"`
}

type initResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (e *Endpoint) handleInitMetric(w http.ResponseWriter, r *http.Request) {
	var req initMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ns, err := e.g.Namespace(req.DB, req.Namespace)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, initResult{Error: err.Error()})
		return
	}
	if _, err := ns.Locations.PutMetricInfo(req.Metric, req.ShardInterval); err != nil {
		writeJSON(w, statusFor(err), initResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, initResult{OK: true})
}

type executeSQLRequest struct {
	DB        string                   `json:"db"`
	Namespace string                   `json:"namespace"`
	Select    *stmt.SelectSQLStatement `json:"select,omitempty"`
	Insert    *stmt.InsertSQLStatement `json:"insert,omitempty"`
	Delete    *stmt.DeleteSQLStatement `json:"delete,omitempty"`
	Drop      *stmt.DropSQLStatement   `json:"drop,omitempty"`
}

type sqlResponse struct {
	Records []scalar.Record `json:"records,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// handleExecuteSQL dispatches on which statement category is populated, the
// HTTP-layer equivalent of ExecuteSQL's "after parsing" statement-category
// switch (spec.md §6): the parser itself runs on the client, or is not
// used at all when the caller constructs a statement programmatically.
func (e *Endpoint) handleExecuteSQL(w http.ResponseWriter, r *http.Request) {
	var req executeSQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ns, err := e.g.Namespace(req.DB, req.Namespace)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, sqlResponse{Error: err.Error()})
		return
	}

	switch {
	case req.Select != nil:
		recs, err := ns.Read.ExecuteStatement(r.Context(), *req.Select)
		if err != nil {
			writeJSON(w, statusFor(err), sqlResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sqlResponse{Records: recs})
	case req.Insert != nil:
		if err := ns.Write.ExecuteInsert(r.Context(), req.Namespace, *req.Insert); err != nil {
			writeJSON(w, statusFor(err), sqlResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sqlResponse{})
	case req.Delete != nil:
		if err := ns.Write.ExecuteDeleteStatement(r.Context(), req.Namespace, *req.Delete); err != nil {
			writeJSON(w, statusFor(err), sqlResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sqlResponse{})
	case req.Drop != nil:
		if err := ns.Write.DropMetric(r.Context(), req.Namespace, req.Drop.Metric); err != nil {
			writeJSON(w, statusFor(err), sqlResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sqlResponse{})
	default:
		http.Error(w, "no statement supplied", http.StatusBadRequest)
	}
}

type healthResponse struct {
	OK         bool   `json:"ok"`
	Namespaces int    `json:"namespaces"`
	NodeID     string `json:"node_id,omitempty"`
}

func (e *Endpoint) handleCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps a core error kind to an HTTP status code. The JSON body
// carries only the error's message text, not its kind, so the status code
// is the only machine-readable signal of which kind occurred.
func statusFor(err error) int {
	switch err.(type) {
	case *errs.MetricNotFound:
		return http.StatusNotFound
	case *errs.InvalidStatement, *errs.SchemaConflict, *errs.UnsupportedDistributedAggregation:
		return http.StatusBadRequest
	case *errs.Timeout:
		return http.StatusGatewayTimeout
	case *errs.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
