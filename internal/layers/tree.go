package layers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Tree mirrors a layer hierarchy. Leaves carry their layer's own parameters
// and state; combinators carry only their children, in sublayer order.
//
// A layer instance reached more than once appears at every position. All but
// the first occurrence have Shared set, and all occurrences hold the same
// values.
type Tree struct {
	Name     string    `json:"name"`
	ID       uuid.UUID `json:"id"`
	NIn      int       `json:"n_in"`
	NOut     int       `json:"n_out"`
	Params   []Param   `json:"params,omitempty"`
	State    []Param   `json:"state,omitempty"`
	Shared   bool      `json:"shared,omitempty"`
	Children []*Tree   `json:"children,omitempty"`
}

// TreeOf snapshots the weights currently held by l and its sublayers.
func TreeOf(l Layer) *Tree {
	return treeOf(l, make(map[uuid.UUID]bool))
}

func treeOf(l Layer, seen map[uuid.UUID]bool) *Tree {
	b := l.base()
	t := &Tree{
		Name:   l.Name(),
		ID:     l.ID(),
		NIn:    l.NIn(),
		NOut:   l.NOut(),
		Params: b.Params(),
		State:  b.State(),
		Shared: seen[l.ID()],
	}
	seen[l.ID()] = true
	for _, sub := range l.Sublayers() {
		t.Children = append(t.Children, treeOf(sub, seen))
	}
	return t
}

// NumParams counts parameter elements, each shared instance once.
func (t *Tree) NumParams() int {
	n := 0
	t.Walk(func(_ string, node *Tree) bool {
		if node.Shared {
			return false
		}
		for _, p := range node.Params {
			n += p.Value.Size()
		}
		return true
	})
	return n
}

// Walk visits every node depth first with its path. Returning false skips
// the node's children.
func (t *Tree) Walk(fn func(path string, node *Tree) bool) {
	t.walk("", fn)
}

func (t *Tree) walk(path string, fn func(string, *Tree) bool) {
	if !fn(path, t) {
		return
	}
	for i, c := range t.Children {
		c.walk(joinPath(path, i), fn)
	}
}

// Walk visits every distinct layer instance under l depth first, in sublayer
// order, passing its position path ("" for l itself, "0.2" for the third
// sublayer of the first sublayer). Instances reached again are skipped along
// with their sublayers.
func Walk(l Layer, fn func(path string, l Layer) error) error {
	return walk(l, "", make(map[uuid.UUID]bool), fn)
}

func walk(l Layer, path string, seen map[uuid.UUID]bool, fn func(string, Layer) error) error {
	if seen[l.ID()] {
		return nil
	}
	seen[l.ID()] = true
	if err := fn(path, l); err != nil {
		return err
	}
	for i, sub := range l.Sublayers() {
		if err := walk(sub, joinPath(path, i), seen, fn); err != nil {
			return err
		}
	}
	return nil
}

// WeightName is the checkpoint name of a parameter or state value:
// "<path>/<layer>/<name>", or "<layer>/<name>" at the root.
func WeightName(path string, l Layer, name string) string {
	if path == "" {
		return l.Name() + "/" + name
	}
	return path + "/" + l.Name() + "/" + name
}

// Describe renders l and its sublayers as an indented outline, e.g.
//
//	Serial_in2[
//	  Dense_8
//	  Relu
//	]
func Describe(l Layer) string {
	var b strings.Builder
	describe(&b, l, 0)
	return b.String()
}

func describe(b *strings.Builder, l Layer, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString(Label(l))
	subs := l.Sublayers()
	if len(subs) == 0 {
		b.WriteByte('\n')
		return
	}
	b.WriteString("[\n")
	for _, sub := range subs {
		describe(b, sub, depth+1)
	}
	b.WriteString(indent)
	b.WriteString("]\n")
}

// Label is the layer name with its arity appended when it is not 1.
func Label(l Layer) string {
	s := l.Name()
	if l.NIn() != 1 {
		s += fmt.Sprintf("_in%d", l.NIn())
	}
	if l.NOut() != 1 {
		s += fmt.Sprintf("_out%d", l.NOut())
	}
	return s
}

func joinPath(path string, i int) string {
	if path == "" {
		return strconv.Itoa(i)
	}
	return path + "." + strconv.Itoa(i)
}
