package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/solatis/eventfilter/internal/types"
	"google.golang.org/protobuf/types/known/structpb"
)

// ListRules returns the compiled rule table with live cursor state.
//
// Request: optional {ifNoneMatch: etag}. Response: {rules: [...], etag,
// notModified}; rules are omitted when ifNoneMatch equals the current etag.
func (s *FilterService) ListRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	table := s.engine.Snapshot()
	etag := ComputeETag(table)

	if v, ok := req.GetFields()["ifNoneMatch"]; ok && v.GetStringValue() == etag {
		return s.encode(map[string]any{
			"etag":        etag,
			"notModified": true,
		})
	}

	list := make([]any, 0, len(table))
	for _, r := range table {
		list = append(list, r)
	}
	return s.encode(map[string]any{
		"rules":       list,
		"etag":        etag,
		"notModified": false,
	})
}

// ComputeETag hashes the configuration of a rule table, excluding cursor
// state. Rule order is significant: it decides ties between equal matches.
func ComputeETag(table []*types.Rule) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, r := range table {
		_ = enc.Encode([]any{r.Name, r.Context, r.Inert})
		// Encoding errors only arise from unencodable extras; such rules
		// still hash by the line above.
		_ = enc.Encode([]any{r.Sequence, r.Extra})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
