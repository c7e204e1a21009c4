package gifenc

import (
	"errors"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// EncodeOptions bundles the knobs for the one-shot helpers.
type EncodeOptions struct {
	Width           int          // output width; used by EncodeFrames when its width argument is 0
	Height          int          // output height; used by EncodeFrames when its height argument is 0
	Repeat          int          // -1 = once, 0 = forever, >0 = extra iterations
	Quality         int          // 1..30, lower is better; 0 = default (10)
	Dither          DitherMethod // error diffusion method; empty = none
	Serpentine      bool         // alternate scan direction while dithering
	Transparent     *color.RGBA  // transparent color, nil = none
	Delays          []int        // per-frame delays in milliseconds
	SaturationBoost float64      // 1.0..2.0, 1.0 = untouched
	ContrastBoost   float64      // 1.0..2.0, 1.0 = untouched
}

// OptionsFromJSON parses an options document such as
//
//	{"width": 320, "height": 240, "repeat": 0, "quality": 10,
//	 "dither": "FloydSteinberg", "serpentine": true,
//	 "transparent": "#00ff00", "delays": [100, 100]}
//
// Missing fields keep their zero values; repeat defaults to 0 (loop
// forever) when absent.
func OptionsFromJSON(data []byte) (EncodeOptions, error) {
	opts := EncodeOptions{}
	if !gjson.ValidBytes(data) {
		return opts, errors.New("gifenc: invalid options JSON")
	}
	doc := gjson.ParseBytes(data)

	opts.Width = int(doc.Get("width").Int())
	opts.Height = int(doc.Get("height").Int())
	opts.Quality = int(doc.Get("quality").Int())
	opts.Dither = DitherMethod(doc.Get("dither").String())
	opts.Serpentine = doc.Get("serpentine").Bool()
	opts.SaturationBoost = doc.Get("saturation").Float()
	opts.ContrastBoost = doc.Get("contrast").Float()

	if v := doc.Get("repeat"); v.Exists() {
		opts.Repeat = int(v.Int())
	}

	if v := doc.Get("transparent"); v.Exists() {
		c, err := parseHexColor(v.String())
		if err != nil {
			return opts, err
		}
		opts.Transparent = c
	}

	for _, d := range doc.Get("delays").Array() {
		opts.Delays = append(opts.Delays, int(d.Int()))
	}

	return opts, nil
}

// parseHexColor reads "#RRGGBB" or "RRGGBB".
func parseHexColor(s string) (*color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return nil, errors.New("gifenc: transparent color must be RRGGBB")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, errors.New("gifenc: transparent color must be RRGGBB")
	}
	return &color.RGBA{
		R: byte(v >> 16),
		G: byte(v >> 8),
		B: byte(v),
		A: 0xff,
	}, nil
}

// NewGIFEncoderWithOptions creates an encoder preconfigured from opts.
// Per-frame delays still have to be set before each AddFrame.
func NewGIFEncoderWithOptions(width, height int, opts EncodeOptions) *GIFEncoder {
	encoder := NewGIFEncoder(width, height)
	encoder.SetRepeat(opts.Repeat)

	quality := opts.Quality
	if quality == 0 {
		quality = 10
	}
	encoder.SetQuality(quality)

	if opts.Dither != "" {
		encoder.SetDither(opts.Dither, opts.Serpentine)
	}
	if opts.Transparent != nil {
		encoder.SetTransparent(opts.Transparent)
	}
	if opts.SaturationBoost != 0 || opts.ContrastBoost != 0 {
		encoder.SetColorEnhancement(opts.SaturationBoost, opts.ContrastBoost)
	}
	return encoder
}

// EncodeGIF encodes images into a looping GIF with per-frame delays in
// milliseconds. Frames past the delays slice get 100ms.
func EncodeGIF(images []image.Image, delays []int) ([]byte, error) {
	if len(images) == 0 {
		return nil, ErrNoFrames
	}

	bounds := images[0].Bounds()
	encoder := NewGIFEncoder(bounds.Dx(), bounds.Dy())
	encoder.SetRepeat(0) // loop forever
	encoder.SetQuality(10)

	for i, img := range images {
		if i < len(delays) {
			encoder.SetDelay(delays[i])
		} else {
			encoder.SetDelay(100)
		}
		if err := encoder.AddImage(img); err != nil {
			return nil, err
		}
	}

	if err := encoder.Finish(); err != nil {
		return nil, err
	}
	return encoder.GetData(), nil
}

// EncodeFrames encodes raw RGBA frames (4*width*height bytes each)
// using opts. Width and height fall back to the option values.
func EncodeFrames(frames [][]byte, width, height int, opts EncodeOptions) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if width == 0 {
		width = opts.Width
	}
	if height == 0 {
		height = opts.Height
	}

	encoder := NewGIFEncoderWithOptions(width, height, opts)
	for i, frame := range frames {
		delay := 100
		if i < len(opts.Delays) && opts.Delays[i] > 0 {
			delay = opts.Delays[i]
		}
		encoder.SetDelay(delay)
		if err := encoder.AddFrame(frame); err != nil {
			return nil, err
		}
	}

	if err := encoder.Finish(); err != nil {
		return nil, err
	}
	return encoder.GetData(), nil
}
