package main

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/pixelform/gifenc"
)

func main() {
	fmt.Println("gifenc examples")
	fmt.Println("===============")

	fmt.Println("\n1. Creating bouncing-ball animation...")
	if err := bouncingBall(); err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		fmt.Println("wrote ball.gif")
	}

	fmt.Println("\n2. Creating gradient animation (streamed to disk)...")
	if err := gradientAnimation(); err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		fmt.Println("wrote gradient.gif")
	}

	fmt.Println("\n3. Creating dithered animation from JSON options...")
	if err := fromOptions(); err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		fmt.Println("wrote dithered.gif")
	}
}

// bouncingBall renders raw RGBA frames directly and uses the one-shot
// frame helper.
func bouncingBall() error {
	const width, height = 120, 120
	frames := make([][]byte, 0, 12)

	for f := 0; f < 12; f++ {
		frame := make([]byte, 4*width*height)
		cy := 20 + absInt(f-6)*12
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := 4 * (y*width + x)
				dx, dy := x-60, y-cy
				if dx*dx+dy*dy <= 15*15 {
					frame[i], frame[i+1], frame[i+2] = 230, 60, 60
				} else {
					frame[i], frame[i+1], frame[i+2] = 245, 245, 245
				}
				frame[i+3] = 255
			}
		}
		frames = append(frames, frame)
	}

	data, err := gifenc.EncodeFrames(frames, width, height, gifenc.EncodeOptions{
		Repeat: 0,
		Delays: []int{60, 60, 60, 60, 60, 60, 60, 60, 60, 60, 60, 60},
	})
	if err != nil {
		return err
	}
	return os.WriteFile("ball.gif", data, 0644)
}

// gradientAnimation streams frames into a file as they are encoded.
func gradientAnimation() error {
	const width, height = 200, 200

	file, err := os.Create("gradient.gif")
	if err != nil {
		return err
	}

	encoder := gifenc.NewGIFEncoder(width, height)
	encoder.SetOutput(file)
	encoder.SetRepeat(0)
	encoder.SetFrameRate(20)

	for f := 0; f < 20; f++ {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set(x, y, color.RGBA{
					uint8((x + f*10) % 256),
					uint8((y + f*10) % 256),
					200,
					255,
				})
			}
		}
		if err := encoder.AddImage(img); err != nil {
			return err
		}
	}

	return encoder.Finish() // also closes the file
}

// fromOptions builds the encoder configuration from a JSON document.
func fromOptions() error {
	opts, err := gifenc.OptionsFromJSON([]byte(`{
		"width": 150, "height": 150, "repeat": 0, "quality": 5,
		"dither": "FloydSteinberg", "serpentine": true,
		"delays": [80, 80, 80, 80, 80, 80, 80, 80, 80, 80]
	}`))
	if err != nil {
		return err
	}

	const width, height = 150, 150
	frames := make([][]byte, 10)
	for f := range frames {
		frame := make([]byte, 4*width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := 4 * (y*width + x)
				frame[i] = uint8(x * 255 / width)
				frame[i+1] = uint8(y * 255 / height)
				frame[i+2] = uint8(f * 255 / len(frames))
				frame[i+3] = 255
			}
		}
		frames[f] = frame
	}

	data, err := gifenc.EncodeFrames(frames, width, height, opts)
	if err != nil {
		return err
	}
	return os.WriteFile("dithered.gif", data, 0644)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
