package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ark-network/wabisabi/pkg/credential"
)

var (
	ErrNoInputs          = errors.New("graph needs at least one input")
	ErrNoOutputs         = errors.New("graph needs at least one output")
	ErrInvalidValue      = errors.New("invalid node value")
	ErrInsufficientValue = errors.New("inputs can't cover the outputs")
)

type NodeKind uint8

const (
	InputNode NodeKind = iota
	ReissuanceNode
	OutputNode
)

func (k NodeKind) String() string {
	switch k {
	case InputNode:
		return "input"
	case ReissuanceNode:
		return "reissuance"
	case OutputNode:
		return "output"
	default:
		return "unknown"
	}
}

// Values holds one value per credential type, indexed by credential.Type.
type Values [2]int64

var types = []credential.Type{credential.AmountType, credential.VsizeType}

// Node is either an input providing credentials, an output consuming them,
// or an intermediate reissuance. Ref is the index of the input or output in
// the slices the graph was built from, -1 for reissuance nodes.
type Node struct {
	Kind NodeKind
	Ref  int
	// Value is what an input provides or an output needs.
	Value Values
	// Extra is credential value requested by the node but not forwarded.
	Extra Values
}

type Edge struct {
	From  int
	To    int
	Type  credential.Type
	Value int64
}

// DependencyGraph routes credential value from inputs to outputs through
// reissuance nodes so that no input is ever directly linked to an output.
// Nodes and edges live in flat slices and edges always point to a node with
// a higher index.
type DependencyGraph struct {
	Nodes     []Node
	Edges     []Edge
	MaxValues Values
}

// New builds the graph moving the given input values to the given output
// values. Every credential, forwarded or extra, is bounded by maxValues.
//
// Reissuance nodes form a chain: each node pays one output and forwards the
// remainder to the next one, inputs join the chain only when the carried
// value can't pay the next output.
func New(inputs, outputs []Values, maxValues Values) (*DependencyGraph, error) {
	if len(inputs) <= 0 {
		return nil, ErrNoInputs
	}
	if len(outputs) <= 0 {
		return nil, ErrNoOutputs
	}
	for _, v := range append(append([]Values{}, inputs...), outputs...) {
		for _, t := range types {
			if v[t] <= 0 || v[t] > maxValues[t] {
				return nil, fmt.Errorf("%w: %d %s", ErrInvalidValue, v[t], t)
			}
		}
	}

	g := &DependencyGraph{
		Nodes:     make([]Node, 0, 2*(len(inputs)+len(outputs))),
		Edges:     make([]Edge, 0),
		MaxValues: maxValues,
	}
	for i, v := range inputs {
		g.Nodes = append(g.Nodes, Node{Kind: InputNode, Ref: i, Value: v, Extra: v})
	}

	// Biggest inputs join first to keep the chain short.
	queue := make([]int, len(inputs))
	for i := range queue {
		queue[i] = i
	}
	sort.SliceStable(queue, func(a, b int) bool {
		return inputs[queue[a]][credential.AmountType] > inputs[queue[b]][credential.AmountType]
	})

	var carry Values
	prev := -1
	for j := 0; j < len(outputs); {
		target := outputs[j]
		node := g.addNode(Node{Kind: ReissuanceNode, Ref: -1})
		inEdges := 0
		if prev >= 0 {
			g.addEdges(prev, node, carry)
			inEdges++
		}

		available := carry
		joined := make([]int, 0, credential.K)
		taken := make([]Values, 0, credential.K)
		for inEdges < credential.K && len(queue) > 0 && !covers(available, target) {
			input := queue[0]
			queue = queue[1:]

			// Take no more than what keeps the remainder within bounds.
			var v Values
			for _, t := range types {
				room := maxValues[t] + target[t] - available[t]
				v[t] = min(inputs[input][t], max(room, 0))
			}
			available = add(available, v)
			joined = append(joined, input)
			taken = append(taken, v)
			inEdges++
		}
		if len(joined) > 0 && !covers(available, target) {
			// The whole value is forwarded, it must fit a single credential.
			last := len(taken) - 1
			for _, t := range types {
				if excess := available[t] - maxValues[t]; excess > 0 {
					taken[last][t] -= excess
					available[t] -= excess
				}
			}
		}
		for i, input := range joined {
			g.addEdges(input, node, taken[i])
			g.Nodes[input].Extra = sub(inputs[input], taken[i])
		}

		if !covers(available, target) {
			if len(queue) <= 0 {
				return nil, fmt.Errorf(
					"%w: missing %d sats and %d vbytes for output %d", ErrInsufficientValue,
					max(target[credential.AmountType]-available[credential.AmountType], 0),
					max(target[credential.VsizeType]-available[credential.VsizeType], 0), j,
				)
			}
			// Not enough in-edges left, forward everything to the next node.
			carry, prev = available, node
			continue
		}

		output := g.addNode(Node{Kind: OutputNode, Ref: j, Value: target})
		g.addEdges(node, output, target)
		remainder := sub(available, target)
		if j == len(outputs)-1 {
			g.Nodes[node].Extra = remainder
		} else {
			carry, prev = remainder, node
		}
		j++
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *DependencyGraph) addNode(n Node) int {
	g.Nodes = append(g.Nodes, n)
	return len(g.Nodes) - 1
}

// addEdges links two nodes with one edge per credential type with non zero
// value.
func (g *DependencyGraph) addEdges(from, to int, values Values) {
	for _, t := range types {
		if values[t] > 0 {
			g.Edges = append(g.Edges, Edge{From: from, To: to, Type: t, Value: values[t]})
		}
	}
}

func (g *DependencyGraph) InEdges(node int, t credential.Type) []int {
	edges := make([]int, 0, credential.K)
	for i, e := range g.Edges {
		if e.To == node && e.Type == t {
			edges = append(edges, i)
		}
	}
	return edges
}

func (g *DependencyGraph) OutEdges(node int, t credential.Type) []int {
	edges := make([]int, 0, credential.K)
	for i, e := range g.Edges {
		if e.From == node && e.Type == t {
			edges = append(edges, i)
		}
	}
	return edges
}

// RequestedValues are the credential values a node asks for, in order: one
// per out-edge followed by the extra credential, if any.
func (g *DependencyGraph) RequestedValues(node int, t credential.Type) []int64 {
	values := make([]int64, 0, credential.K)
	for _, i := range g.OutEdges(node, t) {
		values = append(values, g.Edges[i].Value)
	}
	if extra := g.Nodes[node].Extra[t]; extra > 0 {
		values = append(values, extra)
	}
	return values
}

func (g *DependencyGraph) NodesOfKind(kind NodeKind) []int {
	nodes := make([]int, 0)
	for i, n := range g.Nodes {
		if n.Kind == kind {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// Validate checks the structural rules every graph must satisfy.
func (g *DependencyGraph) Validate() error {
	for i, e := range g.Edges {
		if e.From < 0 || e.To >= len(g.Nodes) || e.From >= e.To {
			return fmt.Errorf("edge %d: %d -> %d breaks node ordering", i, e.From, e.To)
		}
		from, to := g.Nodes[e.From], g.Nodes[e.To]
		if from.Kind == InputNode && to.Kind == OutputNode {
			return fmt.Errorf("edge %d links input %d to output %d", i, from.Ref, to.Ref)
		}
		if to.Kind == InputNode || from.Kind == OutputNode {
			return fmt.Errorf("edge %d: %s -> %s not allowed", i, from.Kind, to.Kind)
		}
		if e.Value <= 0 || e.Value > g.MaxValues[e.Type] {
			return fmt.Errorf("edge %d: %w: %d", i, ErrInvalidValue, e.Value)
		}
	}

	for i, n := range g.Nodes {
		for _, t := range types {
			in, out := g.InEdges(i, t), g.OutEdges(i, t)
			if len(in) > credential.K {
				return fmt.Errorf("node %d: %d %s in-edges", i, len(in), t)
			}
			if len(g.RequestedValues(i, t)) > credential.K {
				return fmt.Errorf("node %d: %d %s out-edges plus extra", i, len(out), t)
			}
			if n.Extra[t] < 0 || n.Extra[t] > g.MaxValues[t] {
				return fmt.Errorf("node %d: %w: extra %d", i, ErrInvalidValue, n.Extra[t])
			}

			inSum, outSum := g.sum(in), g.sum(out)+n.Extra[t]
			switch n.Kind {
			case InputNode:
				if len(in) > 0 || outSum != n.Value[t] {
					return fmt.Errorf("input node %d: %s not balanced", i, t)
				}
			case OutputNode:
				if len(out) > 0 || n.Extra[t] != 0 || inSum != n.Value[t] {
					return fmt.Errorf("output node %d: %s not balanced", i, t)
				}
			default:
				if inSum != outSum {
					return fmt.Errorf(
						"reissuance node %d: %s in %d, out %d", i, t, inSum, outSum,
					)
				}
			}
		}
	}
	return nil
}

func (g *DependencyGraph) sum(edges []int) (sum int64) {
	for _, i := range edges {
		sum += g.Edges[i].Value
	}
	return
}

func covers(available, target Values) bool {
	for _, t := range types {
		if available[t] < target[t] {
			return false
		}
	}
	return true
}

func add(a, b Values) (v Values) {
	for _, t := range types {
		v[t] = a[t] + b[t]
	}
	return
}

func sub(a, b Values) (v Values) {
	for _, t := range types {
		v[t] = a[t] - b[t]
	}
	return
}
