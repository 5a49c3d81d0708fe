package predicate

import (
	"encoding/json"
	"fmt"

	"github.com/dreamware/nsdb/internal/scalar"
)

// wireNode is the tagged-union wire shape for Predicate: besides Type, only
// the fields of the variant Type names are populated, matching the
// closed-sum-type discipline of the Predicate variants themselves. Predicate has no JSON tags of its own
// because it is a marker interface; everything crossing the wire (the
// forwarding surface in internal/read and internal/write, and the client
// package) goes through Marshal/Unmarshal below instead of relying on
// encoding/json's default interface handling, which cannot reconstruct a
// concrete type from a bare JSON object.
type wireNode struct {
	Type  string        `json:"type"`
	Field string        `json:"field,omitempty"`
	Op    Op            `json:"op,omitempty"`
	Value *scalar.Value `json:"value,omitempty"`
	Lo    *scalar.Value `json:"lo,omitempty"`
	Hi    *scalar.Value `json:"hi,omitempty"`
	Terms []wireNode    `json:"terms,omitempty"`
	Term  *wireNode     `json:"term,omitempty"`
}

// Marshal encodes a Predicate (or nil) into its tagged-union wire form.
func Marshal(p Predicate) ([]byte, error) {
	node, err := toWire(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

// Unmarshal decodes a tagged-union wire form back into a Predicate. A
// nil/empty input yields a nil Predicate.
func Unmarshal(data []byte) (Predicate, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var node wireNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return fromWire(node)
}

func toWire(p Predicate) (*wireNode, error) {
	if p == nil {
		return nil, nil
	}
	switch v := p.(type) {
	case Comparison:
		val := v.Value
		return &wireNode{Type: "comparison", Field: v.Field, Op: v.Op, Value: &val}, nil
	case Range:
		lo, hi := v.Lo, v.Hi
		return &wireNode{Type: "range", Field: v.Field, Lo: &lo, Hi: &hi}, nil
	case And:
		terms, err := toWireSlice(v.Terms)
		if err != nil {
			return nil, err
		}
		return &wireNode{Type: "and", Terms: terms}, nil
	case Or:
		terms, err := toWireSlice(v.Terms)
		if err != nil {
			return nil, err
		}
		return &wireNode{Type: "or", Terms: terms}, nil
	case Not:
		term, err := toWire(v.Term)
		if err != nil {
			return nil, err
		}
		return &wireNode{Type: "not", Term: term}, nil
	case MatchAll:
		return &wireNode{Type: "match_all"}, nil
	default:
		return nil, fmt.Errorf("predicate: unknown variant %T", p)
	}
}

func toWireSlice(terms []Predicate) ([]wireNode, error) {
	out := make([]wireNode, 0, len(terms))
	for _, t := range terms {
		w, err := toWire(t)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, nil
}

func fromWire(node wireNode) (Predicate, error) {
	switch node.Type {
	case "comparison":
		if node.Value == nil {
			return nil, fmt.Errorf("predicate: comparison node missing value")
		}
		return Comparison{Field: node.Field, Op: node.Op, Value: *node.Value}, nil
	case "range":
		if node.Lo == nil || node.Hi == nil {
			return nil, fmt.Errorf("predicate: range node missing bound")
		}
		return Range{Field: node.Field, Lo: *node.Lo, Hi: *node.Hi}, nil
	case "and":
		terms, err := fromWireSlice(node.Terms)
		if err != nil {
			return nil, err
		}
		return And{Terms: terms}, nil
	case "or":
		terms, err := fromWireSlice(node.Terms)
		if err != nil {
			return nil, err
		}
		return Or{Terms: terms}, nil
	case "not":
		if node.Term == nil {
			return nil, fmt.Errorf("predicate: not node missing term")
		}
		term, err := fromWire(*node.Term)
		if err != nil {
			return nil, err
		}
		return Not{Term: term}, nil
	case "match_all", "":
		return MatchAll{}, nil
	default:
		return nil, fmt.Errorf("predicate: unknown wire type %q", node.Type)
	}
}

func fromWireSlice(nodes []wireNode) ([]Predicate, error) {
	out := make([]Predicate, 0, len(nodes))
	for _, n := range nodes {
		p, err := fromWire(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
