package bivcodec

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
)

// ErrDimensionMismatch is returned by VideoEncoder.Push when a matrix's
// dimensions differ from the canvas the encoder was constructed with.
// A silent assumption that the previous and new trees pair up index for
// index is a latent fragility otherwise; rejecting the mismatch outright
// avoids risking an out-of-range pairing.
var ErrDimensionMismatch = errors.New("bivcodec: matrix dimensions do not match encoder canvas")

// truncationKind selects how VideoEncoder.Push trims a non-first
// image's contribution.
type truncationKind int

const (
	truncationNone truncationKind = iota
	truncationLength
	truncationMSE
)

// TruncationPolicy bounds how many image records a non-first push
// keeps. The first image pushed to an encoder is always emitted whole
// regardless of policy.
type TruncationPolicy struct {
	kind   truncationKind
	length int
	mse    float64
}

// PolicyNone keeps every candidate record.
func PolicyNone() TruncationPolicy { return TruncationPolicy{kind: truncationNone} }

// PolicyLength keeps only the first k records of a non-first push's
// ordered chain, the leading Sync record included, so at most k-1 image
// records (after sorting by change cost) are kept.
func PolicyLength(k int) TruncationPolicy {
	return TruncationPolicy{kind: truncationLength, length: k}
}

// PolicyMSE reserves a mean-squared-error truncation threshold. The
// mode is declared but not enforced: Push accepts a PolicyMSE value and
// treats it identically to PolicyNone. This is documented, not a silent
// fallback bug.
func PolicyMSE(tau float64) TruncationPolicy {
	return TruncationPolicy{kind: truncationMSE, mse: tau}
}

// EncoderOptions configures a VideoEncoder.
type EncoderOptions struct {
	Width, Height int
	ColorSpace    ColorSpace
	Threads       int // fan-out budget for BuildBSP/Render; <= 1 is sequential
	Clock         Clock
	Logger        *zerolog.Logger
	Policy        TruncationPolicy
}

// DefaultEncoderOptions returns options for a grayscale canvas of the
// given size with no truncation, a single-threaded build/render, and
// the system clock.
func DefaultEncoderOptions(width, height int) EncoderOptions {
	return EncoderOptions{
		Width:      width,
		Height:     height,
		ColorSpace: ColorSpaceGrayscale,
		Threads:    1,
		Clock:      SystemClock(),
		Policy:     PolicyNone(),
	}
}

// VideoEncoder maintains the previously transmitted BSP and emits a
// priority-ordered, optionally truncated stream of records per image.
// The zero value is not usable; construct with NewVideoEncoder.
type VideoEncoder struct {
	opts EncoderOptions

	previousBSP *BSP
	prevChain   FrameChain
	frameStream []Record

	// steady is false until the first successful Push and true from
	// then on; Drop never reverts it.
	steady bool
}

// NewVideoEncoder constructs an encoder in the Uninitialized state.
func NewVideoEncoder(opts EncoderOptions) *VideoEncoder {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &VideoEncoder{opts: opts}
}

func (e *VideoEncoder) logger() *zerolog.Logger {
	if e.opts.Logger == nil {
		l := zerolog.Nop()
		return &l
	}
	return e.opts.Logger
}

// Push builds a BSP from matrix, scores its candidate records against
// the previously transmitted tree, sorts them by descending change
// cost, truncates per policy (except on the very first call), and
// enqueues the resulting records.
func (e *VideoEncoder) Push(matrix *Matrix) error {
	if matrix.Width != e.opts.Width || matrix.Height != e.opts.Height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrDimensionMismatch,
			matrix.Width, matrix.Height, e.opts.Width, e.opts.Height)
	}

	firstPush := !e.steady
	if firstPush {
		zero := NewMatrix(e.opts.Width, e.opts.Height, e.opts.ColorSpace, nil)
		e.previousBSP = BuildBSP(zero, e.opts.Threads)
		e.prevChain = e.previousBSP.ToChain(e.opts.Clock)
	}

	bsp := BuildBSP(matrix, e.opts.Threads)
	chain := bsp.ToChain(e.opts.Clock)

	candidates := chain.ImageRecords()
	baseline := e.prevChain.ImageRecords()

	type scored struct {
		rec  Record
		cost float64
	}
	ranked := make([]scored, len(candidates))
	for i, rec := range candidates {
		var prev ImageRecord
		if i < len(baseline) {
			prev = baseline[i].Image
		}
		cost := changeCost(rec.Image, prev)
		ranked[i] = scored{rec: rec, cost: cost}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].cost > ranked[j].cost
	})

	ordered := make([]Record, 0, 1+len(ranked))
	ordered = append(ordered, chain.Records[0]) // the Sync record
	for _, s := range ranked {
		ordered = append(ordered, s.rec)
	}

	// Length(K) truncates the whole ordered chain (Sync included) to K
	// records, not just the image records after Sync, so K=1 keeps
	// Sync only — exactly what makes two identical pushes under
	// Length(1) emit no image records for the second image.
	if !firstPush {
		switch e.opts.Policy.kind {
		case truncationLength:
			if e.opts.Policy.length < len(ordered) {
				ordered = ordered[:e.opts.Policy.length]
			}
		case truncationMSE:
			// Reserved; no enforcement (see PolicyMSE).
		}
	}

	e.logger().Debug().
		Int("candidates", len(candidates)).
		Int("kept", len(ordered)-1).
		Bool("first_push", firstPush).
		Msg("bivcodec: encoded image")

	e.frameStream = append(e.frameStream, ordered...)

	e.previousBSP.ApplySyncRecord(ordered[0].Sync)
	for _, rec := range ordered[1:] {
		e.previousBSP.ApplyImageRecord(rec.Image)
	}
	e.prevChain = e.previousBSP.ToChain(e.opts.Clock)

	e.steady = true
	return nil
}

// changeCost scores how much an Image record changed relative to its
// prior counterpart: the combined absolute delta of both values,
// discounted by layer depth so coarse, early splits outweigh fine ones.
func changeCost(a, b ImageRecord) float64 {
	cost := math.Abs(float64(a.ValueL)-float64(b.ValueL)) + math.Abs(float64(a.ValueR)-float64(b.ValueR))
	return cost / float64(a.Layer+1)
}

// Pop dequeues (or, if keep is true, peeks) the front record of the
// output stream. ok is false if the stream is empty.
func (e *VideoEncoder) Pop(keep bool) (Record, bool) {
	if len(e.frameStream) == 0 {
		return Record{}, false
	}
	rec := e.frameStream[0]
	if !keep {
		e.frameStream = e.frameStream[1:]
		e.logger().Debug().Msg("bivcodec: popped record")
	}
	return rec, true
}

// Empty reports whether the output stream has no pending records.
func (e *VideoEncoder) Empty() bool {
	return len(e.frameStream) == 0
}

// Drop discards all queued records without affecting encoder state.
func (e *VideoEncoder) Drop() {
	e.logger().Debug().Int("discarded", len(e.frameStream)).Msg("bivcodec: dropped pending records")
	e.frameStream = nil
}

// SetMaxChainLength switches to PolicyLength(k).
func (e *VideoEncoder) SetMaxChainLength(k int) {
	e.opts.Policy = PolicyLength(k)
}

// SetMaxMSE switches to PolicyMSE(tau). The threshold is stored but
// never enforced (see PolicyMSE).
func (e *VideoEncoder) SetMaxMSE(tau float64) {
	e.opts.Policy = PolicyMSE(tau)
}
