package gc_test

import (
	"testing"

	"github.com/emberlang/ember/lang/gc"
	"github.com/emberlang/ember/lang/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node is a minimal HeapObject used only to exercise the collector's
// mark/sweep mechanics independent of the full VM object model.
type node struct {
	value.Obj
	refs []*node
}

func (n *node) Kind() value.Kind { return value.KindObj }
func (n *node) String() string   { return "node" }
func (n *node) Trace(mark func(value.Value)) {
	for _, r := range n.refs {
		mark(r)
	}
}

func newNode(c *gc.Collector) *node {
	n := &node{}
	c.Track(n, 16)
	return n
}

func TestCollectFreesUnreachable(t *testing.T) {
	c := gc.New()
	reachable := newNode(c)
	_ = newNode(c) // unreachable once collected

	c.Collect(func(mark func(value.Value)) { mark(reachable) }, nil)

	_, freed := c.Stats()
	assert.Equal(t, 1, freed)
	assert.False(t, reachable.Marked, "marks are cleared after sweep")
}

func TestCollectKeepsTransitivelyReachable(t *testing.T) {
	c := gc.New()
	leaf := newNode(c)
	root := newNode(c)
	root.refs = []*node{leaf}

	c.Collect(func(mark func(value.Value)) { mark(root) }, nil)

	_, freed := c.Stats()
	assert.Equal(t, 0, freed)
}

func TestBytesAllocatedDecreasesOnFree(t *testing.T) {
	c := gc.New()
	newNode(c)
	before := c.BytesAllocated()
	require.Equal(t, 16, before)

	c.Collect(func(func(value.Value)) {}, nil)
	assert.Equal(t, 0, c.BytesAllocated())
}

func TestSweepWeakCalledBeforeObjectSweep(t *testing.T) {
	c := gc.New()
	str := value.NewString("gone")
	c.Track(str, 8)

	var sawUnmarked bool
	var bytesDuringWeak int
	c.Collect(func(func(value.Value)) {}, func(keep func(*value.ObjString) bool) {
		sawUnmarked = !keep(str)
		bytesDuringWeak = c.BytesAllocated()
	})
	assert.True(t, sawUnmarked)
	assert.Equal(t, 8, bytesDuringWeak, "the unmarked string is not yet swept when sweepWeak runs")
}
