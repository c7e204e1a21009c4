package gifenc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

// solidFrame builds a 4*w*h RGBA frame filled with one color.
func solidFrame(w, h int, c color.RGBA) []byte {
	frame := make([]byte, 4*w*h)
	for i := 0; i < w*h; i++ {
		frame[4*i] = c.R
		frame[4*i+1] = c.G
		frame[4*i+2] = c.B
		frame[4*i+3] = c.A
	}
	return frame
}

func TestNewGIFEncoder(t *testing.T) {
	encoder := NewGIFEncoder(100, 100)
	if encoder == nil {
		t.Fatal("NewGIFEncoder returned nil")
	}
	if encoder.width != 100 || encoder.height != 100 {
		t.Errorf("Expected dimensions 100x100, got %dx%d", encoder.width, encoder.height)
	}
	if encoder.repeat != -1 {
		t.Errorf("Expected default repeat -1, got %d", encoder.repeat)
	}
	if encoder.sample != 10 {
		t.Errorf("Expected default sample 10, got %d", encoder.sample)
	}
}

func TestSetDelay(t *testing.T) {
	encoder := NewGIFEncoder(100, 100)

	encoder.SetDelay(500)
	if encoder.delay != 50 {
		t.Errorf("Expected delay 50, got %d", encoder.delay)
	}

	encoder.SetDelay(250)
	if encoder.delay != 25 {
		t.Errorf("Expected delay 25, got %d", encoder.delay)
	}

	// rounds to the nearest hundredth rather than truncating
	encoder.SetDelay(105)
	if encoder.delay != 11 {
		t.Errorf("Expected delay 11, got %d", encoder.delay)
	}
	encoder.SetDelay(104)
	if encoder.delay != 10 {
		t.Errorf("Expected delay 10, got %d", encoder.delay)
	}
}

func TestSetFrameRate(t *testing.T) {
	encoder := NewGIFEncoder(100, 100)
	encoder.SetFrameRate(20)
	if encoder.delay != 5 {
		t.Errorf("Expected delay 5, got %d", encoder.delay)
	}
	encoder.SetFrameRate(30)
	if encoder.delay != 3 { // round(100/30) = 3
		t.Errorf("Expected delay 3, got %d", encoder.delay)
	}
}

func TestSetQualityClamp(t *testing.T) {
	a := NewGIFEncoder(10, 10)
	b := NewGIFEncoder(10, 10)
	a.SetQuality(0)
	b.SetQuality(1)
	if a.sample != b.sample {
		t.Errorf("SetQuality(0) should clamp to 1, got sample %d", a.sample)
	}
}

func TestSetRepeatClamp(t *testing.T) {
	encoder := NewGIFEncoder(10, 10)
	encoder.SetRepeat(-5)
	if encoder.repeat != -1 {
		t.Errorf("Expected repeat -1, got %d", encoder.repeat)
	}
	encoder.SetRepeat(100000)
	if encoder.repeat != 0xFFFF {
		t.Errorf("Expected repeat 65535, got %d", encoder.repeat)
	}
}

func TestByteBuffer(t *testing.T) {
	bb := NewByteBuffer()

	for i := 0; i < 10; i++ {
		bb.WriteByte(byte(i))
	}

	data := bb.Bytes()
	if len(data) != 10 {
		t.Fatalf("Expected length 10, got %d", len(data))
	}
	for i := 0; i < 10; i++ {
		if data[i] != byte(i) {
			t.Errorf("Expected byte %d at index %d, got %d", i, i, data[i])
		}
	}
}

func TestByteBufferGrowth(t *testing.T) {
	bb := NewByteBuffer()

	numBytes := minBufferCap*9 + 100
	for i := 0; i < numBytes; i++ {
		bb.WriteByte(byte(i % 256))
	}

	data := bb.Bytes()
	if len(data) != numBytes {
		t.Fatalf("Expected length %d, got %d", numBytes, len(data))
	}
	for i := 0; i < numBytes; i++ {
		if data[i] != byte(i%256) {
			t.Fatalf("Data corrupted at index %d after growth", i)
		}
	}
}

func TestByteBufferWriteRepeated(t *testing.T) {
	bb := NewByteBuffer()
	bb.WriteRepeated(0xAB, 1000)
	data := bb.Bytes()
	if len(data) != 1000 {
		t.Fatalf("Expected length 1000, got %d", len(data))
	}
	for i, b := range data {
		if b != 0xAB {
			t.Fatalf("Expected 0xAB at index %d, got %#x", i, b)
		}
	}
}

func TestByteBufferFillAndReset(t *testing.T) {
	bb := NewByteBuffer()
	bb.WriteBytes([]byte{1, 2, 3, 4, 5})
	bb.Fill(9, 1, 4)

	want := []byte{1, 9, 9, 9, 5}
	if !bytes.Equal(bb.Bytes(), want) {
		t.Errorf("Fill: got %v, want %v", bb.Bytes(), want)
	}

	bb.Reset()
	if bb.Len() != 0 {
		t.Errorf("Reset: expected length 0, got %d", bb.Len())
	}
	bb.WriteByte(7)
	if !bytes.Equal(bb.Bytes(), []byte{7}) {
		t.Errorf("Write after Reset: got %v", bb.Bytes())
	}
}

func TestNeuQuantColorMap(t *testing.T) {
	pixels := make([]byte, 300) // 100 pixels * 3 channels
	for i := range pixels {
		pixels[i] = byte(i % 256)
	}

	nq := NewNeuQuant(pixels, 10)
	colormap := nq.ColorMap()
	if len(colormap) != 256*3 {
		t.Errorf("Expected colormap length 768, got %d", len(colormap))
	}

	index := nq.LookupRGB(255, 0, 0)
	if index < 0 || index >= 256 {
		t.Errorf("Invalid color index: %d", index)
	}
}

func TestNeuQuantDeterminism(t *testing.T) {
	pixels := make([]byte, 64*64*3)
	for i := range pixels {
		pixels[i] = byte((i * 7) % 256)
	}

	a := NewNeuQuant(pixels, 10)
	b := NewNeuQuant(append([]byte(nil), pixels...), 10)

	if !bytes.Equal(a.ColorMap(), b.ColorMap()) {
		t.Fatal("Two identical trainings produced different palettes")
	}

	for r := 0; r < 256; r += 17 {
		for g := 0; g < 256; g += 17 {
			for bch := 0; bch < 256; bch += 17 {
				ia := a.LookupRGB(byte(r), byte(g), byte(bch))
				ib := b.LookupRGB(byte(r), byte(g), byte(bch))
				if ia != ib {
					t.Fatalf("Lookup diverged for (%d,%d,%d): %d vs %d", r, g, bch, ia, ib)
				}
			}
		}
	}
}

func TestNeuQuantLookupConsistency(t *testing.T) {
	pixels := make([]byte, 48*48*3)
	for i := range pixels {
		pixels[i] = byte((i * 13) % 256)
	}

	nq := NewNeuQuant(pixels, 1)
	colormap := nq.ColorMap()

	// Looking up a palette entry's own color must land on an entry
	// with that exact color (identical entries are interchangeable).
	for i := 0; i < 256; i++ {
		r, g, b := colormap[3*i], colormap[3*i+1], colormap[3*i+2]
		j := nq.LookupRGB(r, g, b)
		if colormap[3*j] != r || colormap[3*j+1] != g || colormap[3*j+2] != b {
			t.Fatalf("Lookup of palette entry %d returned %d with a different color", i, j)
		}
	}
}

func TestIndexedPixelsReferenceUsedEntries(t *testing.T) {
	encoder := NewGIFEncoder(16, 16)
	frame := make([]byte, 4*16*16)
	for i := 0; i < 16*16; i++ {
		frame[4*i] = byte(i)
		frame[4*i+1] = byte(255 - i)
		frame[4*i+2] = byte(i * 3)
		frame[4*i+3] = 255
	}
	if err := encoder.AddFrame(frame); err != nil {
		t.Fatalf("AddFrame failed: %v", err)
	}

	for i, idx := range encoder.indexedPixels {
		if !encoder.usedEntry[idx] {
			t.Fatalf("Pixel %d maps to palette index %d not marked used", i, idx)
		}
	}
}

func TestLifecycle(t *testing.T) {
	encoder := NewGIFEncoder(2, 2)
	frame := solidFrame(2, 2, color.RGBA{10, 20, 30, 255})

	if err := encoder.AddFrame(frame); err != nil {
		t.Fatalf("AddFrame failed: %v", err)
	}
	if err := encoder.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if err := encoder.AddFrame(frame); !errors.Is(err, ErrFinished) {
		t.Errorf("AddFrame after Finish: got %v, want ErrFinished", err)
	}
	if err := encoder.Start(); !errors.Is(err, ErrFinished) {
		t.Errorf("Start after Finish: got %v, want ErrFinished", err)
	}
	if err := encoder.Finish(); !errors.Is(err, ErrFinished) {
		t.Errorf("Second Finish: got %v, want ErrFinished", err)
	}
}

func TestFrameSizeMismatch(t *testing.T) {
	encoder := NewGIFEncoder(4, 4)
	if err := encoder.AddFrame(make([]byte, 7)); !errors.Is(err, ErrFrameSize) {
		t.Errorf("Expected ErrFrameSize, got %v", err)
	}
}

type closableBuffer struct {
	bytes.Buffer
	closed bool
}

func (cb *closableBuffer) Close() error {
	cb.closed = true
	return nil
}

func TestSinkStreaming(t *testing.T) {
	frame1 := solidFrame(8, 8, color.RGBA{255, 0, 0, 255})
	frame2 := solidFrame(8, 8, color.RGBA{0, 0, 255, 255})

	// buffered path
	buffered := NewGIFEncoder(8, 8)
	buffered.SetRepeat(0)
	if err := buffered.AddFrame(frame1); err != nil {
		t.Fatal(err)
	}
	if err := buffered.AddFrame(frame2); err != nil {
		t.Fatal(err)
	}
	if err := buffered.Finish(); err != nil {
		t.Fatal(err)
	}

	// streaming path
	sink := &closableBuffer{}
	streamed := NewGIFEncoder(8, 8)
	streamed.SetOutput(sink)
	streamed.SetRepeat(0)
	if err := streamed.AddFrame(frame1); err != nil {
		t.Fatal(err)
	}
	if err := streamed.AddFrame(frame2); err != nil {
		t.Fatal(err)
	}
	if err := streamed.Finish(); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(buffered.GetData(), sink.Buffer.Bytes()) {
		t.Error("Streamed output differs from buffered output")
	}
	if !sink.closed {
		t.Error("Finish did not close the sink")
	}
	if streamed.GetData() != nil && len(streamed.GetData()) != 0 {
		t.Error("Streamed encoder retained buffered data after flush")
	}
}

func TestEncodeSimpleGIF(t *testing.T) {
	encoder := NewGIFEncoder(10, 10)
	if err := encoder.AddFrame(solidFrame(10, 10, color.RGBA{255, 0, 0, 255})); err != nil {
		t.Fatalf("AddFrame failed: %v", err)
	}
	if err := encoder.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	data := encoder.GetData()

	if len(data) < 6 {
		t.Fatal("GIF data too short")
	}
	if string(data[0:6]) != "GIF89a" {
		t.Errorf("Invalid GIF header: %s", string(data[0:6]))
	}
	if data[len(data)-1] != 0x3b {
		t.Error("Missing GIF trailer")
	}
	// zero-length sub-block terminator right before the trailer
	if data[len(data)-2] != 0x00 {
		t.Error("Missing sub-block terminator before trailer")
	}
}

func TestAddImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 25), uint8(y * 25), 128, 255})
		}
	}

	encoder := NewGIFEncoder(10, 10)
	if err := encoder.AddImage(img); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	if err := encoder.Finish(); err != nil {
		t.Fatal(err)
	}
	if string(encoder.GetData()[0:6]) != "GIF89a" {
		t.Error("Invalid GIF header")
	}
}

func TestEncodeGIFHelper(t *testing.T) {
	frames := make([]image.Image, 3)
	colors := []color.RGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
	}
	for i := 0; i < 3; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 20, 20))
		for y := 0; y < 20; y++ {
			for x := 0; x < 20; x++ {
				img.Set(x, y, colors[i])
			}
		}
		frames[i] = img
	}

	gifData, err := EncodeGIF(frames, []int{100, 100, 100})
	if err != nil {
		t.Fatalf("EncodeGIF failed: %v", err)
	}
	if len(gifData) < 100 {
		t.Fatal("GIF data too short")
	}
	if string(gifData[0:6]) != "GIF89a" {
		t.Error("Invalid GIF header")
	}

	if _, err := EncodeGIF(nil, nil); !errors.Is(err, ErrNoFrames) {
		t.Errorf("Expected ErrNoFrames, got %v", err)
	}
}

func TestEncodeFramesHelper(t *testing.T) {
	frames := [][]byte{
		solidFrame(6, 6, color.RGBA{200, 10, 10, 255}),
		solidFrame(6, 6, color.RGBA{10, 200, 10, 255}),
	}

	data, err := EncodeFrames(frames, 6, 6, EncodeOptions{
		Repeat: 0,
		Delays: []int{50, 50},
	})
	if err != nil {
		t.Fatalf("EncodeFrames failed: %v", err)
	}
	if string(data[0:6]) != "GIF89a" || data[len(data)-1] != 0x3b {
		t.Error("Malformed stream from EncodeFrames")
	}
}

func TestOptionsFromJSON(t *testing.T) {
	doc := []byte(`{
		"width": 320, "height": 240, "repeat": 2, "quality": 5,
		"dither": "FloydSteinberg", "serpentine": true,
		"transparent": "#00ff00", "delays": [100, 200],
		"saturation": 1.5, "contrast": 1.2
	}`)

	opts, err := OptionsFromJSON(doc)
	if err != nil {
		t.Fatalf("OptionsFromJSON failed: %v", err)
	}
	if opts.Width != 320 || opts.Height != 240 {
		t.Errorf("Bad dimensions: %dx%d", opts.Width, opts.Height)
	}
	if opts.Repeat != 2 || opts.Quality != 5 {
		t.Errorf("Bad repeat/quality: %d/%d", opts.Repeat, opts.Quality)
	}
	if opts.Dither != DitherFloydSteinberg || !opts.Serpentine {
		t.Errorf("Bad dither config: %q serpentine=%v", opts.Dither, opts.Serpentine)
	}
	if opts.Transparent == nil || opts.Transparent.G != 0xff || opts.Transparent.R != 0 {
		t.Errorf("Bad transparent color: %+v", opts.Transparent)
	}
	if len(opts.Delays) != 2 || opts.Delays[0] != 100 || opts.Delays[1] != 200 {
		t.Errorf("Bad delays: %v", opts.Delays)
	}
	if opts.SaturationBoost != 1.5 || opts.ContrastBoost != 1.2 {
		t.Errorf("Bad boosts: %v/%v", opts.SaturationBoost, opts.ContrastBoost)
	}

	if _, err := OptionsFromJSON([]byte(`{"width":`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if _, err := OptionsFromJSON([]byte(`{"transparent": "nope"}`)); err == nil {
		t.Error("Expected error for malformed transparent color")
	}
}

func TestHSLRoundTrip(t *testing.T) {
	for _, c := range [][3]float64{
		{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.5, 0.5, 0.5}, {0.9, 0.2, 0.4},
	} {
		h, s, l := rgbToHSL(c[0], c[1], c[2])
		r, g, b := hslToRGB(h, s, l)
		if absf(r-c[0]) > 0.01 || absf(g-c[1]) > 0.01 || absf(b-c[2]) > 0.01 {
			t.Errorf("HSL round trip drifted for %v: got (%v,%v,%v)", c, r, g, b)
		}
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestDitherSmoke(t *testing.T) {
	encoder := NewGIFEncoder(16, 16)
	encoder.SetDither(DitherFloydSteinberg, true)

	frame := make([]byte, 4*16*16)
	for i := 0; i < 16*16; i++ {
		frame[4*i] = byte(i)
		frame[4*i+1] = byte(i * 2)
		frame[4*i+2] = byte(i * 3)
		frame[4*i+3] = 255
	}
	if err := encoder.AddFrame(frame); err != nil {
		t.Fatalf("AddFrame with dithering failed: %v", err)
	}
	if err := encoder.Finish(); err != nil {
		t.Fatal(err)
	}
	data := encoder.GetData()
	if string(data[0:6]) != "GIF89a" || data[len(data)-1] != 0x3b {
		t.Error("Malformed dithered stream")
	}
}
