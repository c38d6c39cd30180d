package bivcodec

import (
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// emptyValue is the EMPTY sentinel. It marks a node created as a
// path-walking placeholder that repair has not yet resolved.
const emptyValue = -1.0

// node is one vertex of a BSP tree. Its implicit rectangle is never
// stored; it is derived from the root rectangle and the path of
// left/right choices leading to it.
type node struct {
	value       float64
	layer       int
	placeholder bool // true until an Image record gives this node a real value; Repair never clears it
	left, right *node
}

func newNode(value float64, layer int) *node {
	return &node{value: value, layer: layer, placeholder: value == emptyValue}
}

// BSP is a recursive binary space partition tree over a rectangular
// canvas. The zero value is not usable; build one with
// NewBSP or BuildBSP.
type BSP struct {
	Width      int
	Ratio      float64 // height/width
	ColorSpace ColorSpace

	root   *node
	frames int64 // number of internal nodes built/applied, for diagnostics; mutated via atomic ops since BuildBSP constructs nodes from concurrent goroutines
}

// Frames returns the number of internal nodes constructed or applied
// on this tree so far, one per BuildBSP split or ApplyImageRecord call.
func (b *BSP) Frames() int64 {
	return atomic.LoadInt64(&b.frames)
}

// NewBSP returns an empty tree (a single EMPTY-valued root) tagged with
// the given canvas metadata. This is the starting point for a decoder
// that has not yet applied any records.
func NewBSP(width int, ratio float64, cs ColorSpace) *BSP {
	return &BSP{
		Width:      width,
		Ratio:      ratio,
		ColorSpace: cs,
		root:       newNode(emptyValue, 0),
	}
}

// BuildBSP constructs a BSP from a matrix. threads bounds the fan-out
// used for the left/right recursive calls; it halves at every
// recursion level and a value <= 1 runs fully sequentially.
//
// Panics if m has width < 2 (there is nothing to split) or height < 1.
func BuildBSP(m *Matrix, threads int) *BSP {
	if m.Width < 2 || m.Height < 1 {
		panic(fmt.Sprintf("bivcodec: cannot build a BSP from a %dx%d matrix", m.Width, m.Height))
	}

	b := &BSP{
		Width:      m.Width,
		Ratio:      float64(m.Height) / float64(m.Width),
		ColorSpace: m.ColorSpace,
	}
	root, _ := b.buildRecursive(m, Rectangle{0, 0, m.Width, m.Height}, RootPath(), threads)
	b.root = root
	return b
}

// buildRecursive recursively bisects rect and constructs the subtree
// for path, returning its root node and average value.
//
// This builds bottom-up and returns each subtree to its caller rather
// than walking from b.root to splice nodes in: a node's slot is only
// ever written by the single call that owns it, never by a sibling, so
// the concurrent left/right calls below touch disjoint memory and need
// no locking. An earlier version had buildRecursive write through a
// shared root-relative walk (the same machinery ApplyImageRecord still
// uses); with threads > 1 that let the left and right goroutines race
// to create their shared ancestors, silently corrupting the tree.
func (b *BSP) buildRecursive(m *Matrix, rect Rectangle, path Path, threads int) (*node, float64) {
	if max(rect.Width, rect.Height) <= 1 || path.Layer() > MaxLayer {
		avg := m.Average(rect)
		return newNode(avg, path.Layer()), avg
	}

	left, right := Split(rect)
	leftPath, rightPath := path.Child(false), path.Child(true)

	var leftNode, rightNode *node
	var vl, vr float64
	if threads <= 1 {
		leftNode, vl = b.buildRecursive(m, left, leftPath, 1)
		rightNode, vr = b.buildRecursive(m, right, rightPath, 1)
	} else {
		half := threads / 2
		var g errgroup.Group
		g.Go(func() error {
			leftNode, vl = b.buildRecursive(m, left, leftPath, half)
			return nil
		})
		rightNode, vr = b.buildRecursive(m, right, rightPath, threads-half)
		_ = g.Wait()
	}

	atomic.AddInt64(&b.frames, 1)
	avg := (vl + vr) / 2
	return &node{value: avg, layer: path.Layer(), left: leftNode, right: rightNode}, avg
}

// setNodeValues is the machinery behind single-record application
// (ApplyImageRecord): walk from the root along path, creating EMPTY
// placeholder nodes on the way down, then overwrite the target's
// children with vl and vr and set the target's own value to their
// average. Only ever called from the single-threaded decode path — it
// mutates shared ancestor nodes while walking, which is not safe for
// concurrent callers (unlike buildRecursive, which deliberately avoids
// this).
func (b *BSP) setNodeValues(path Path, vl, vr float64) *node {
	curr := b.root
	for curr.layer != path.Layer() {
		if !path.At(curr.layer) {
			if curr.left == nil {
				curr.left = newNode(emptyValue, curr.layer+1)
			}
			curr = curr.left
		} else {
			if curr.right == nil {
				curr.right = newNode(emptyValue, curr.layer+1)
			}
			curr = curr.right
		}
	}

	if curr.left == nil {
		curr.left = newNode(vl, curr.layer+1)
	} else {
		curr.left.value = vl
		curr.left.placeholder = false
	}
	if curr.right == nil {
		curr.right = newNode(vr, curr.layer+1)
	} else {
		curr.right.value = vr
		curr.right.placeholder = false
	}
	curr.value = (vl + vr) / 2
	curr.placeholder = false
	atomic.AddInt64(&b.frames, 1)
	return curr
}

// ApplyImageRecord applies a single decoded Image record. Layer
// values above MaxLayer are a programmer/caller error, not a decode
// failure — the wire codec itself already rejects layer > 24 when
// deserializing, so reaching this with an out-of-range layer means a
// Record was built by hand incorrectly.
func (b *BSP) ApplyImageRecord(rec ImageRecord) {
	if int(rec.Layer) > MaxLayer {
		panic(fmt.Sprintf("bivcodec: image record layer %d exceeds max layer %d", rec.Layer, MaxLayer))
	}
	path := DefusePath(rec.Path, int(rec.Layer))
	b.setNodeValues(path, float64(rec.ValueL), float64(rec.ValueR))
}

// ApplySyncRecord applies a Sync record: it overwrites canvas metadata only, never node structure.
func (b *BSP) ApplySyncRecord(rec SyncRecord) {
	b.Width = int(rec.Width)
	b.Ratio = rec.Ratio
	b.ColorSpace = rec.ColorFormat
}

// Render converts the tree back into a matrix at the given output
// width. threads bounds fan-out the same way BuildBSP's does.
func (b *BSP) Render(outWidth int, threads int) *Matrix {
	outHeight := int(math.Round(float64(outWidth) * b.Ratio))
	m := NewMatrix(outWidth, outHeight, b.ColorSpace, nil)
	renderNode(m, Rectangle{0, 0, outWidth, outHeight}, b.root, threads)
	return m
}

// renderNode fills a leaf rectangle directly, recurses into present
// children, and fills an absent child's half with the parent's value.
func renderNode(m *Matrix, rect Rectangle, n *node, threads int) {
	if n.left == nil && n.right == nil {
		m.Fill(rect, n.value)
		return
	}

	left, right := Split(rect)

	renderSide := func(side Rectangle, child *node, t int) func() error {
		return func() error {
			if child != nil {
				renderNode(m, side, child, t)
			} else {
				m.Fill(side, n.value)
			}
			return nil
		}
	}

	if threads <= 1 {
		_ = renderSide(left, n.left, 1)()
		_ = renderSide(right, n.right, 1)()
		return
	}

	half := threads / 2
	var g errgroup.Group
	g.Go(renderSide(left, n.left, half))
	_ = renderSide(right, n.right, threads-half)()
	_ = g.Wait()
}

// Repair walks the tree bottom-up, filling EMPTY placeholders and
// synthesizing missing mirror children. It is idempotent: a node's
// branch is decided by whether it started as a placeholder, not by
// its current (possibly already-repaired) value,
// so a second call recomputes the same values without creating new
// nodes. See DESIGN.md for why this is keyed off node.placeholder
// rather than re-testing node.value == emptyValue on every call — the
// latter would make the literal repair rule non-idempotent, since the
// first call replaces a placeholder's EMPTY sentinel with a real value
// and a naive second call would then wrongly take the mirror-synthesis
// branch.
func (b *BSP) Repair() {
	repairNode(b.root)
}

func repairNode(n *node) float64 {
	switch {
	case n.left != nil && n.right != nil:
		n.value = (repairNode(n.left) + repairNode(n.right)) / 2
	case n.left != nil:
		c := repairNode(n.left)
		if n.placeholder {
			n.value = c
		} else {
			n.right = &node{value: 2*n.value - c, layer: n.layer + 1}
		}
	case n.right != nil:
		c := repairNode(n.right)
		if n.placeholder {
			n.value = c
		} else {
			n.left = &node{value: 2*n.value - c, layer: n.layer + 1}
		}
	}
	return n.value
}
