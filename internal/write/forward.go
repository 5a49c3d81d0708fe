package write

import (
	"context"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/rpcutil"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/stmt"
)

// insertForwardRequest is the wire shape POSTed to a remote node's
// /internal/write endpoint when the owning node of a shard is not self.
type insertForwardRequest struct {
	Namespace string        `json:"namespace"`
	Metric    string        `json:"metric"`
	Record    scalar.Record `json:"record"`
}

type insertForwardResponse struct {
	Error string `json:"error,omitempty"`
}

// forwardInsert sends the write to nodeID and blocks for its response, per
// spec.md §4.5 step 4 ("forward the command to the owning node and
// await").
func (c *Coordinator) forwardInsert(ctx context.Context, nodeID, namespace, metric string, rec scalar.Record) error {
	if c.Resolve == nil {
		return &errs.Unavailable{NodeID: nodeID}
	}
	base := c.Resolve(nodeID)
	if base == "" {
		return &errs.Unavailable{NodeID: nodeID}
	}

	var resp insertForwardResponse
	err := rpcutil.PostJSON(ctx, base+"/internal/write", insertForwardRequest{
		Namespace: namespace,
		Metric:    metric,
		Record:    rec,
	}, &resp)
	if err != nil {
		return &errs.Unavailable{NodeID: nodeID}
	}
	if resp.Error != "" {
		return &errs.IoError{Op: "write.forwardInsert", Err: errStr(resp.Error)}
	}
	return nil
}

type deleteForwardRequest struct {
	Namespace string                  `json:"namespace"`
	Statement stmt.DeleteSQLStatement `json:"statement"`
}

type deleteForwardResponse struct {
	Error string `json:"error,omitempty"`
}

func (c *Coordinator) forwardDelete(ctx context.Context, nodeID, namespace string, del stmt.DeleteSQLStatement) error {
	if c.Resolve == nil {
		return &errs.Unavailable{NodeID: nodeID}
	}
	base := c.Resolve(nodeID)
	if base == "" {
		return &errs.Unavailable{NodeID: nodeID}
	}

	var resp deleteForwardResponse
	err := rpcutil.PostJSON(ctx, base+"/internal/delete", deleteForwardRequest{
		Namespace: namespace,
		Statement: del,
	}, &resp)
	if err != nil {
		return &errs.Unavailable{NodeID: nodeID}
	}
	if resp.Error != "" {
		return &errs.IoError{Op: "write.forwardDelete", Err: errStr(resp.Error)}
	}
	return nil
}

type errStr string

func (e errStr) Error() string { return string(e) }
