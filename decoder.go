package bivcodec

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	ColorSpace ColorSpace
	Threads    int // fan-out budget for Render
	Logger     *zerolog.Logger
}

// DefaultDecoderOptions returns grayscale options with sequential
// rendering.
func DefaultDecoderOptions() DecoderOptions {
	return DecoderOptions{ColorSpace: ColorSpaceGrayscale, Threads: 1}
}

// Decoder is the receive-side mirror of VideoEncoder: it accumulates
// Image/Sync records into a BSP, repairs gaps left by truncation, and
// renders a matrix on demand.
type Decoder struct {
	opts DecoderOptions
	bsp  *BSP
}

// NewDecoder constructs a Decoder with an empty tree tagged with the
// given options' color space. Canvas width/ratio become known once the
// stream's Sync record is applied.
func NewDecoder(opts DecoderOptions) *Decoder {
	return &Decoder{
		opts: opts,
		bsp:  NewBSP(0, 1, opts.ColorSpace),
	}
}

func (d *Decoder) logger() *zerolog.Logger {
	if d.opts.Logger == nil {
		l := zerolog.Nop()
		return &l
	}
	return d.opts.Logger
}

// ApplyRecord applies an already-decoded record. A Record built with
// an Image layer above MaxLayer is a programmer error and panics, per
// BSP.ApplyImageRecord; applying to a subtree that does not yet exist
// is not an error — missing ancestors are created as EMPTY
// placeholders for Repair to resolve later.
func (d *Decoder) ApplyRecord(rec Record) {
	if rec.IsSync {
		d.bsp.ApplySyncRecord(rec.Sync)
		return
	}
	d.bsp.ApplyImageRecord(rec.Image)
}

// ApplyBytes decodes exactly one record from b (at least RecordSize
// bytes) and applies it. A malformed or truncated record is a
// recoverable decode failure: it is logged at warn level and
// returned as an error wrapping ErrMalformedRecord/ErrShortRecord,
// leaving the tree unchanged.
func (d *Decoder) ApplyBytes(b []byte) error {
	rec, err := DeserializeRecord(b)
	if err != nil {
		d.logger().Warn().Err(err).Msg("bivcodec: dropping malformed record")
		return fmt.Errorf("applying record: %w", err)
	}
	d.ApplyRecord(rec)
	return nil
}

// Repair fills EMPTY placeholders and synthesizes missing mirror
// children so the tree renders without gaps.
func (d *Decoder) Repair() {
	d.bsp.Repair()
}

// Render produces a matrix of the given output width from the current
// tree state. Calling it before any Sync record has been applied
// renders at the zero-value canvas ratio (1), which is a caller error
// of omission, not a panic — the BSP's render rules degrade gracefully
// for partially-built trees by design.
func (d *Decoder) Render(outWidth int) *Matrix {
	return d.bsp.Render(outWidth, d.opts.Threads)
}
