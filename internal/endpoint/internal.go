package endpoint

import (
	"encoding/json"
	"net/http"

	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/stmt"
)

// These handlers serve the node-to-node forwarding surface the write and
// read coordinators call on each other (internal/write/forward.go and
// internal/read/forward.go) when a shard's owning node is not self. They
// assume a single database per deployed node for the forwarding path:
// forwarded requests carry the namespace in the request body but no
// database name, so every handler resolves its namespace under defaultDB
// rather than under a request-supplied db as handleWrite does.

type internalWriteRequest struct {
	Namespace string        `json:"namespace"`
	Metric    string        `json:"metric"`
	Record    scalar.Record `json:"record"`
}

type internalResponse struct {
	Error string `json:"error,omitempty"`
}

func (e *Endpoint) handleInternalWrite(w http.ResponseWriter, r *http.Request) {
	var req internalWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ns, err := e.g.Namespace(defaultDB, req.Namespace)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, internalResponse{Error: err.Error()})
		return
	}
	if err := ns.Write.MapInput(r.Context(), defaultDB, req.Namespace, req.Metric, req.Record); err != nil {
		writeJSON(w, statusFor(err), internalResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, internalResponse{})
}

type internalDeleteRequest struct {
	Namespace string                  `json:"namespace"`
	Statement stmt.DeleteSQLStatement `json:"statement"`
}

func (e *Endpoint) handleInternalDelete(w http.ResponseWriter, r *http.Request) {
	var req internalDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ns, err := e.g.Namespace(defaultDB, req.Namespace)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, internalResponse{Error: err.Error()})
		return
	}
	if err := ns.Write.ExecuteDeleteStatement(r.Context(), req.Namespace, req.Statement); err != nil {
		writeJSON(w, statusFor(err), internalResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, internalResponse{})
}

type internalQueryRequest struct {
	Statement stmt.SelectSQLStatement `json:"statement"`
}

type internalQueryResponse struct {
	Records []scalar.Record `json:"records"`
	Error   string          `json:"error,omitempty"`
}

func (e *Endpoint) handleInternalQuery(w http.ResponseWriter, r *http.Request) {
	var req internalQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ns, err := e.g.Namespace(defaultDB, req.Statement.Namespace)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, internalQueryResponse{Error: err.Error()})
		return
	}
	recs, err := ns.Read.ExecuteStatement(r.Context(), req.Statement)
	if err != nil {
		writeJSON(w, statusFor(err), internalQueryResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, internalQueryResponse{Records: recs})
}

// defaultDB is the database name used for the single-database deployment
// shape the forwarding surface assumes; multi-database routing would
// thread db through the forwarded request too, left for a future wire
// revision since spec.md's literal scenarios are all single-database.
const defaultDB = "default"
