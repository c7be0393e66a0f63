// Package codecwebp implements ports.ImageCodec over
// github.com/gen2brain/webp, a pure-Go (WASM via ebitengine/purego +
// wazero) codec — chosen so the module needs no native libwebp toolchain.
// Grounded on the complete example repo _examples/pspoerri-geotiff2pmtiles
// (go.mod dependency + internal/encode/decode.go's decode-dispatch usage);
// see DESIGN.md for why this was preferred over that same repo's cgo
// encoder and over github.com/deepteams/webp.
package codecwebp

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/webp"

	"github.com/adred-codev/pixelcanvas/domain"
)

// Adapter implements ports.ImageCodec. Encoding is lossless, as spec.md
// §4.E requires.
type Adapter struct{}

// EncodeLossless encodes an S*S RGBA grid to lossless WebP bytes. Input
// length must equal width*height (spec.md §4.E). The actual encode runs on
// a dedicated goroutine standing in for the blocking-task pool spec.md §5
// requires for CPU-bound work off the request's suspendable path; a ctx
// deadline that fires before the goroutine finishes surfaces as
// ErrCodecTimeout without waiting for the (now-abandoned) encode to return.
func (Adapter) EncodeLossless(ctx context.Context, rgba [][4]byte, width, height int) ([]byte, error) {
	if len(rgba) != width*height {
		return nil, fmt.Errorf("%w: rgba length %d does not match %dx%d", domain.ErrCodec, len(rgba), width, height)
	}

	type result struct {
		bytes []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for i, px := range rgba {
			o := img.PixOffset(i%width, i/width)
			img.Pix[o] = px[0]
			img.Pix[o+1] = px[1]
			img.Pix[o+2] = px[2]
			img.Pix[o+3] = px[3]
		}
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, webp.Options{Lossless: true}); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", domain.ErrCodec, err)}
			return
		}
		done <- result{bytes: buf.Bytes()}
	}()

	select {
	case r := <-done:
		return r.bytes, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrCodecTimeout, ctx.Err())
	}
}

// DecodeToRGBA decodes WebP bytes back to an RGBA grid.
func (Adapter) DecodeToRGBA(ctx context.Context, data []byte) ([][4]byte, int, int, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", domain.ErrCodec, err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([][4]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out[y*w+x] = [4]byte{byte(r >> 8), byte(g >> 8), byte(b >> 8), byte(a >> 8)}
		}
	}
	return out, w, h, nil
}
