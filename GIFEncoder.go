package gifenc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
)

var (
	// ErrFinished is returned when the encoder is used after Finish.
	ErrFinished = errors.New("gifenc: encoder already finished")

	// ErrFrameSize is returned when a frame's byte length does not
	// match 4*width*height.
	ErrFrameSize = errors.New("gifenc: frame size does not match encoder dimensions")

	// ErrNoFrames is returned by the one-shot helpers when called with
	// an empty frame list.
	ErrNoFrames = errors.New("gifenc: no frames provided")
)

// GIFEncoder encodes a sequence of RGBA frames into an animated GIF89a
// stream. Frames are quantized per frame with NeuQuant, mapped to a
// 256-entry palette and LZW-compressed. A single encoder is not safe
// for concurrent use.
type GIFEncoder struct {
	// logical screen size
	width  int
	height int

	// transparent color if given
	transparent *color.RGBA

	// transparent index in color table
	transIndex int

	// -1 = play once, 0 = loop forever, 1..65535 = extra iterations
	repeat int

	// frame delay (hundredths of a second)
	delay int

	pixels        []byte // RGB working buffer for the current frame
	alphas        []byte // alpha byte per pixel of the current frame
	indexedPixels []byte // current frame mapped to palette indices
	colorDepth    int    // number of bit planes
	colorTab      []byte // RGB palette for the current frame
	neuQuant      *NeuQuant
	usedEntry     [256]bool // palette entries referenced by the mapped pixels
	palSize       int       // color table size field (bits-1)
	dispose       int       // disposal code (-1 = pick from transparency)
	firstFrame    bool
	started       bool
	finished      bool
	sample        int          // quantizer sampling factor
	dither        DitherMethod // error diffusion during indexing
	serpentine    bool
	saturation    float64 // preprocessing boosts, 1.0 = untouched
	contrast      float64

	out  *ByteBuffer
	sink io.Writer
}

// NewGIFEncoder creates an encoder for frames of the given logical
// screen size. Dimensions must fit in 1..65535; the encoder does not
// check, an out-of-range value yields a non-conformant stream.
func NewGIFEncoder(width, height int) *GIFEncoder {
	return &GIFEncoder{
		width:      width,
		height:     height,
		repeat:     -1,
		dispose:    -1,
		firstFrame: true,
		sample:     10,
		palSize:    7,
		saturation: 1.0,
		contrast:   1.0,
		out:        NewByteBuffer(),
	}
}

// SetOutput attaches a byte sink. Once attached, buffered output is
// flushed to it after Start, after every frame, and after the trailer;
// GetData no longer accumulates the stream. An io.Closer sink is closed
// by Finish.
func (ge *GIFEncoder) SetOutput(w io.Writer) {
	ge.sink = w
}

// SetDelay sets the delay for subsequent frames, in milliseconds,
// rounded to the nearest hundredth of a second.
func (ge *GIFEncoder) SetDelay(milliseconds int) {
	ge.delay = int(math.Round(float64(milliseconds) / 10.0))
}

// SetFrameRate sets the delay for subsequent frames from a frame rate
// in frames per second.
func (ge *GIFEncoder) SetFrameRate(fps float64) {
	if fps > 0 {
		ge.delay = int(math.Round(100.0 / fps))
	}
}

// SetDispose sets the GIF disposal code for subsequent frames.
// Negative values keep the default: 2 (restore to background) when a
// transparent color is set, 0 otherwise.
func (ge *GIFEncoder) SetDispose(disposalCode int) {
	if disposalCode >= 0 {
		ge.dispose = disposalCode & 7
	}
}

// SetRepeat sets the loop policy:
// -1 = play once, 0 = loop forever, 1..65535 = extra iterations.
// Must be invoked before the first frame is added.
func (ge *GIFEncoder) SetRepeat(repeat int) {
	if repeat < -1 {
		repeat = -1
	}
	if repeat > 0xFFFF {
		repeat = 0xFFFF
	}
	ge.repeat = repeat
}

// SetTransparent sets the transparent color for subsequent frames.
// Since every color is subject to modification during quantization, the
// palette entry closest to the given color becomes the transparent
// index for the frame, and source pixels with alpha 0 are rewritten to
// it. nil disables transparency.
func (ge *GIFEncoder) SetTransparent(c *color.RGBA) {
	ge.transparent = c
}

// SetTransparentRGB is SetTransparent for a packed 0xRRGGBB value.
func (ge *GIFEncoder) SetTransparentRGB(rgb uint32) {
	ge.transparent = &color.RGBA{
		R: byte(rgb >> 16),
		G: byte(rgb >> 8),
		B: byte(rgb),
		A: 0xff,
	}
}

// SetQuality sets the quantizer sampling factor. Lower values (minimum
// 1) produce better palettes but slow processing significantly; 10 is
// the default. Values below 1 clamp to 1.
func (ge *GIFEncoder) SetQuality(quality int) {
	if quality < 1 {
		quality = 1
	}
	ge.sample = quality
}

// SetDither selects an error-diffusion method applied while mapping
// pixels to the palette, and whether rows alternate scan direction.
// DitherNone disables diffusion.
func (ge *GIFEncoder) SetDither(method DitherMethod, serpentine bool) {
	ge.dither = method
	ge.serpentine = serpentine
}

// SetColorEnhancement sets saturation and contrast boosts applied to
// the RGB data before quantization. Both range 1.0 (untouched) to 2.0.
func (ge *GIFEncoder) SetColorEnhancement(saturation, contrast float64) {
	ge.saturation = clampBoost(saturation)
	ge.contrast = clampBoost(contrast)
}

// Start writes the GIF89a header. Calling it is optional; AddFrame
// starts a fresh encoder automatically.
func (ge *GIFEncoder) Start() error {
	if ge.finished {
		return ErrFinished
	}
	if ge.started {
		return nil
	}
	ge.started = true
	ge.out.WriteString("GIF89a")
	return ge.flush()
}

// AddFrame encodes one frame of 4*width*height RGBA bytes (R,G,B,A per
// pixel, row-major).
func (ge *GIFEncoder) AddFrame(rgba []byte) error {
	if ge.finished {
		return ErrFinished
	}
	if len(rgba) != 4*ge.width*ge.height {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(rgba), 4*ge.width*ge.height)
	}
	if !ge.started {
		if err := ge.Start(); err != nil {
			return err
		}
	}

	ge.extractPixels(rgba)
	if ge.saturation > 1.0 || ge.contrast > 1.0 {
		enhancePixels(ge.pixels, ge.saturation, ge.contrast)
	}
	ge.analyzePixels()

	if ge.firstFrame {
		ge.writeLSD()
		ge.writePalette()
		if ge.repeat >= 0 {
			// use NS app extension to indicate reps
			ge.writeNetscapeExt()
		}
	}

	ge.writeGraphicCtrlExt()
	ge.writeImageDesc()
	if !ge.firstFrame {
		ge.writePalette() // local color table
	}
	ge.writePixels()

	ge.firstFrame = false
	return ge.flush()
}

// AddImage is AddFrame for an image.Image; the image is sampled over
// the encoder's dimensions starting at its bounds origin.
func (ge *GIFEncoder) AddImage(img image.Image) error {
	rgba := make([]byte, 4*ge.width*ge.height)
	bounds := img.Bounds()
	n := 0
	for y := 0; y < ge.height; y++ {
		for x := 0; x < ge.width; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgba[n] = byte(r >> 8)
			rgba[n+1] = byte(g >> 8)
			rgba[n+2] = byte(b >> 8)
			rgba[n+3] = byte(a >> 8)
			n += 4
		}
	}
	return ge.AddFrame(rgba)
}

// Finish writes the GIF trailer, flushes the sink, and closes it when
// it implements io.Closer. The stream is not a valid GIF without it.
func (ge *GIFEncoder) Finish() error {
	if ge.finished {
		return ErrFinished
	}
	ge.finished = true
	if ge.started {
		ge.out.WriteByte(0x3b) // gif trailer
	}
	if err := ge.flush(); err != nil {
		return err
	}
	if c, ok := ge.sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("gifenc: closing sink: %w", err)
		}
	}
	return nil
}

// GetData returns the encoded stream accumulated so far. Only
// meaningful when no sink is attached.
func (ge *GIFEncoder) GetData() []byte {
	return ge.out.Bytes()
}

// flush hands buffered bytes to the sink, if any.
func (ge *GIFEncoder) flush() error {
	if ge.sink == nil {
		return nil
	}
	if ge.out.Len() > 0 {
		if _, err := ge.sink.Write(ge.out.Bytes()); err != nil {
			return fmt.Errorf("gifenc: sink write: %w", err)
		}
		ge.out.Reset()
	}
	return nil
}

// extractPixels splits the RGBA frame into the RGB working buffer and
// the per-pixel alpha bytes.
func (ge *GIFEncoder) extractPixels(rgba []byte) {
	nPix := ge.width * ge.height
	if len(ge.pixels) != 3*nPix {
		ge.pixels = make([]byte, 3*nPix)
		ge.alphas = make([]byte, nPix)
	}
	for i := 0; i < nPix; i++ {
		ge.pixels[3*i] = rgba[4*i]
		ge.pixels[3*i+1] = rgba[4*i+1]
		ge.pixels[3*i+2] = rgba[4*i+2]
		ge.alphas[i] = rgba[4*i+3]
	}
}

// analyzePixels builds the frame palette, maps every pixel onto it and
// applies the transparency rewrite.
func (ge *GIFEncoder) analyzePixels() {
	ge.neuQuant = NewNeuQuant(ge.pixels, ge.sample)
	ge.colorTab = ge.neuQuant.ColorMap()

	for i := range ge.usedEntry {
		ge.usedEntry[i] = false
	}

	if ge.dither != DitherNone && ge.dither != "" {
		ge.ditherPixels(ge.dither, ge.serpentine)
	} else {
		ge.indexPixels()
	}

	ge.colorDepth = 8
	ge.palSize = 7

	if ge.transparent != nil {
		ge.transIndex = ge.findClosest(*ge.transparent, true)
		// pixels that were fully transparent in the source map to the
		// transparent index regardless of their color
		for i, a := range ge.alphas {
			if a == 0 {
				ge.indexedPixels[i] = byte(ge.transIndex)
			}
		}
	} else {
		ge.transIndex = 0
	}
}

// indexPixels maps pixels onto the palette without dithering.
func (ge *GIFEncoder) indexPixels() {
	nPix := len(ge.pixels) / 3
	if len(ge.indexedPixels) != nPix {
		ge.indexedPixels = make([]byte, nPix)
	}

	for j, k := 0, 0; j < nPix; j++ {
		index := ge.findClosestRGB(ge.pixels[k], ge.pixels[k+1], ge.pixels[k+2])
		ge.usedEntry[index] = true
		ge.indexedPixels[j] = byte(index)
		k += 3
	}
}

// findClosest returns the palette index closest to c by squared
// Euclidean distance. When usedOnly is set, only entries actually
// referenced by the mapped pixels are considered.
func (ge *GIFEncoder) findClosest(c color.RGBA, usedOnly bool) int {
	minpos := 0
	dmin := math.MaxInt
	for index := 0; index < len(ge.colorTab)/3; index++ {
		if usedOnly && !ge.usedEntry[index] {
			continue
		}
		i := 3 * index
		dr := int(c.R) - int(ge.colorTab[i])
		dg := int(c.G) - int(ge.colorTab[i+1])
		db := int(c.B) - int(ge.colorTab[i+2])

		d := dr*dr + dg*dg + db*db
		if d < dmin {
			dmin = d
			minpos = index
		}
	}
	return minpos
}

// findClosestRGB maps a color to a palette index via the quantizer's
// search index.
func (ge *GIFEncoder) findClosestRGB(r, g, b byte) int {
	return ge.neuQuant.LookupRGB(r, g, b)
}

// writeLSD writes the Logical Screen Descriptor.
func (ge *GIFEncoder) writeLSD() {
	ge.writeShort(ge.width)
	ge.writeShort(ge.height)

	ge.out.WriteByte(byte(
		0x80 | // 1 : global color table flag = 1 (gct used)
			0x70 | // 2-4 : color resolution = 7
			0x00 | // 5 : gct sort flag = 0
			ge.palSize, // 6-8 : gct size
	))

	ge.out.WriteByte(0) // background color index
	ge.out.WriteByte(0) // pixel aspect ratio - assume 1:1
}

// writeNetscapeExt writes the Netscape application extension carrying
// the loop count.
func (ge *GIFEncoder) writeNetscapeExt() {
	ge.out.WriteByte(0x21)              // extension introducer
	ge.out.WriteByte(0xff)              // app extension label
	ge.out.WriteByte(11)                // block size
	ge.out.WriteString("NETSCAPE2.0")   // app id + auth code
	ge.out.WriteByte(3)                 // sub-block size
	ge.out.WriteByte(1)                 // loop sub-block id
	ge.writeShort(ge.repeat)            // loop count (extra iterations, 0=repeat forever)
	ge.out.WriteByte(0)                 // block terminator
}

// writeGraphicCtrlExt writes the Graphic Control Extension.
func (ge *GIFEncoder) writeGraphicCtrlExt() {
	ge.out.WriteByte(0x21) // extension introducer
	ge.out.WriteByte(0xf9) // GCE label
	ge.out.WriteByte(4)    // data block size

	transp := 0
	disp := 0
	if ge.transparent != nil {
		transp = 1
		disp = 2 // force clear if using transparent color
	}
	if ge.dispose >= 0 {
		disp = ge.dispose & 7 // user override
	}
	disp <<= 2

	ge.out.WriteByte(byte(
		0 | // 1:3 reserved
			disp | // 4:6 disposal
			0 | // 7 user input - 0 = none
			transp, // 8 transparency flag
	))

	ge.writeShort(ge.delay)               // delay x 1/100 sec
	ge.out.WriteByte(byte(ge.transIndex)) // transparent color index
	ge.out.WriteByte(0)                   // block terminator
}

// writeImageDesc writes the Image Descriptor. Every frame covers the
// full logical screen at position 0,0.
func (ge *GIFEncoder) writeImageDesc() {
	ge.out.WriteByte(0x2c) // image separator
	ge.writeShort(0)       // image position x,y = 0,0
	ge.writeShort(0)
	ge.writeShort(ge.width) // image size
	ge.writeShort(ge.height)

	if ge.firstFrame {
		// no LCT - GCT is used for first (or only) frame
		ge.out.WriteByte(0)
	} else {
		// specify normal LCT
		ge.out.WriteByte(byte(
			0x80 | // 1 local color table 1=yes
				0 | // 2 interlace - 0=no
				0 | // 3 sorted - 0=no
				0 | // 4-5 reserved
				ge.palSize, // 6-8 size of color table
		))
	}
}

// writePalette writes the color table, padded to a full 256 entries.
func (ge *GIFEncoder) writePalette() {
	ge.out.WriteBytes(ge.colorTab)
	ge.out.WriteRepeated(0, 3*256-len(ge.colorTab))
}

// writeShort writes a 16-bit value in little-endian order.
func (ge *GIFEncoder) writeShort(value int) {
	ge.out.WriteByte(byte(value & 0xFF))
	ge.out.WriteByte(byte((value >> 8) & 0xFF))
}

// writePixels LZW-encodes the indexed frame into the stream.
func (ge *GIFEncoder) writePixels() {
	enc := NewLZWEncoder(ge.width, ge.height, ge.indexedPixels, ge.colorDepth)
	enc.Encode(ge.out)
}
