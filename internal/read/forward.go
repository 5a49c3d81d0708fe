package read

import (
	"context"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/rpcutil"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/stmt"
)

type queryForwardRequest struct {
	Statement stmt.SelectSQLStatement `json:"statement"`
}

type queryForwardResponse struct {
	Records []scalar.Record `json:"records"`
	Error   string          `json:"error,omitempty"`
}

// forwardQuery sends a single-shard query to the node that owns it. The
// forwarded statement carries the same condition/fields/groupBy/order as
// the original; the remote node re-derives its own shard set from
// metadata, which for a single-node query collapses to the same shard
// the caller already selected.
func (c *Coordinator) forwardQuery(ctx context.Context, nodeID string, sel stmt.SelectSQLStatement) ([]scalar.Record, error) {
	if c.Resolve == nil {
		return nil, &errs.Unavailable{NodeID: nodeID}
	}
	base := c.Resolve(nodeID)
	if base == "" {
		return nil, &errs.Unavailable{NodeID: nodeID}
	}

	var resp queryForwardResponse
	err := rpcutil.PostJSON(ctx, base+"/internal/query", queryForwardRequest{Statement: sel}, &resp)
	if err != nil {
		return nil, &errs.Unavailable{NodeID: nodeID}
	}
	if resp.Error != "" {
		return nil, &errs.IoError{Op: "read.forwardQuery", Err: errStr(resp.Error)}
	}
	return resp.Records, nil
}

type errStr string

func (e errStr) Error() string { return string(e) }
