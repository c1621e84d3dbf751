package workflow

import (
	"encoding/json"
	"fmt"
)

// NodeID addresses a node inside a job graph.
type NodeID string

// Node is one step of the graph. Fields other than class_type and inputs are
// carried through untouched.
type Node struct {
	ClassType string
	Inputs    map[string]Value
	extra     map[string]json.RawMessage
}

func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.extra)+2)
	for k, v := range n.extra {
		out[k] = v
	}
	if n.ClassType != "" {
		out["class_type"] = n.ClassType
	}
	inputs := n.Inputs
	if inputs == nil {
		inputs = map[string]Value{}
	}
	out["inputs"] = inputs
	return json.Marshal(out)
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	n.Inputs = map[string]Value{}
	n.extra = map[string]json.RawMessage{}
	for k, raw := range fields {
		switch k {
		case "inputs":
			if string(raw) == "null" {
				continue
			}
			if err := json.Unmarshal(raw, &n.Inputs); err != nil {
				return fmt.Errorf("inputs: %w", err)
			}
		case "class_type":
			if err := json.Unmarshal(raw, &n.ClassType); err != nil {
				return fmt.Errorf("class_type: %w", err)
			}
		default:
			n.extra[k] = raw
		}
	}
	return nil
}

// Graph is a job graph keyed by node id. It is owned by one job at a time.
type Graph struct {
	nodes map[NodeID]*Node
}

// Parse decodes an API-format workflow document.
func Parse(data []byte) (*Graph, error) {
	nodes := map[NodeID]*Node{}
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, err
	}
	for id, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("node %s is null", id)
		}
	}
	return &Graph{nodes: nodes}, nil
}

// Has reports whether every id is present.
func (g *Graph) Has(ids ...NodeID) bool {
	for _, id := range ids {
		if _, ok := g.nodes[id]; !ok {
			return false
		}
	}
	return true
}

// Input returns the value of one node input.
func (g *Graph) Input(id NodeID, field string) (Value, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Value{}, false
	}
	v, ok := n.Inputs[field]
	return v, ok
}

// Set writes field on node id. Writing to an absent node is an error; the
// caller is expected to have checked the schema.
func (g *Graph) Set(id NodeID, field string, v Value) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node %s not in graph", id)
	}
	if n.Inputs == nil {
		n.Inputs = map[string]Value{}
	}
	n.Inputs[field] = v
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.nodes)
}
