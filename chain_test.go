package bivcodec

import (
	"math"
	"testing"
)

func countInternalNodes(n *node) int {
	if n.left == nil && n.right == nil {
		return 0
	}
	count := 1
	if n.left != nil {
		count += countInternalNodes(n.left)
	}
	if n.right != nil {
		count += countInternalNodes(n.right)
	}
	return count
}

func TestChain_LengthMatchesInternalNodeCount(t *testing.T) {
	b := BuildBSP(NewMatrix(4, 4, ColorSpaceGrayscale, nil), 1)
	chain := b.ToChain(SystemClock())

	want := 1 + countInternalNodes(b.root)
	if len(chain.Records) != want {
		t.Errorf("chain length = %d, want %d (1 sync + %d internal nodes)", len(chain.Records), want, countInternalNodes(b.root))
	}
	if !chain.Records[0].IsSync {
		t.Fatal("first record must be Sync")
	}
}

func TestChain_TwoColorChainShape(t *testing.T) {
	b := BuildBSP(NewMatrix(2, 1, ColorSpaceGrayscale, []byte{0, 255}), 1)
	chain := b.ToChain(SystemClock())

	if len(chain.Records) != 2 {
		t.Fatalf("chain length = %d, want 2 (sync + one image record)", len(chain.Records))
	}
	img := chain.Records[1].Image
	if img.Layer != 0 || img.Path != 0 {
		t.Errorf("image record location = (layer=%d path=%d), want (0, 0)", img.Layer, img.Path)
	}
	if img.ValueL != 0 || img.ValueR != 255 {
		t.Errorf("image record values = (%d,%d), want (0,255)", img.ValueL, img.ValueR)
	}
}

// A chain produced from a BSP and applied to a fresh BSP renders
// the same as the source, up to the wire format's byte quantization.
func TestChain_Property_RoundTripRendersEqual(t *testing.T) {
	src := make([]byte, 37*23)
	for i := range src {
		src[i] = byte((i * 53) % 256)
	}
	source := BuildBSP(NewMatrix(37, 23, ColorSpaceGrayscale, src), 1)
	chain := source.ToChain(SystemClock())

	rebuilt := NewBSP(0, 1, ColorSpaceGrayscale)
	chain.ApplyTo(rebuilt)

	for _, w := range []int{8, 37, 64} {
		a := source.Render(w, 1)
		b := rebuilt.Render(w, 1)
		for i := 0; i < a.Width*a.Height; i++ {
			av, bv := clampByte(a.AtIndex(i)), clampByte(b.AtIndex(i))
			if av != bv {
				t.Errorf("width %d, pixel %d: source=%v rebuilt=%v", w, i, av, bv)
			}
		}
	}
}

// A truncated chain round-trip still decodes to a defined, coarse
// approximation after repair.
func TestChain_TruncationRoundTrip(t *testing.T) {
	src := make([]byte, 64*64)
	for i := range src {
		src[i] = byte((i * 29) % 256)
	}
	source := BuildBSP(NewMatrix(64, 64, ColorSpaceGrayscale, src), 1)
	chain := source.ToChain(SystemClock())

	images := chain.ImageRecords()
	k := int(math.Ceil(float64(len(images)) * 0.05))
	truncated := FrameChain{Records: append([]Record{chain.Records[0]}, images[:k]...)}

	rebuilt := NewBSP(0, 1, ColorSpaceGrayscale)
	truncated.ApplyTo(rebuilt)
	rebuilt.Repair()

	rendered := rebuilt.Render(64, 1)
	for i := 0; i < rendered.Width*rendered.Height; i++ {
		v := rendered.AtIndex(i)
		if v < 0 || v > 255 {
			t.Fatalf("pixel %d = %v, outside the input's dynamic range [0,255]", i, v)
		}
	}
}
