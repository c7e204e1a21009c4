package gifenc

// DitherKernel lists error-diffusion taps as {weight, dx, dy}.
type DitherKernel [][3]float64

var (
	FalseFloydSteinberg = DitherKernel{
		{3.0 / 8.0, 1, 0},
		{3.0 / 8.0, 0, 1},
		{2.0 / 8.0, 1, 1},
	}

	FloydSteinberg = DitherKernel{
		{7.0 / 16.0, 1, 0},
		{3.0 / 16.0, -1, 1},
		{5.0 / 16.0, 0, 1},
		{1.0 / 16.0, 1, 1},
	}

	Stucki = DitherKernel{
		{8.0 / 42.0, 1, 0},
		{4.0 / 42.0, 2, 0},
		{2.0 / 42.0, -2, 1},
		{4.0 / 42.0, -1, 1},
		{8.0 / 42.0, 0, 1},
		{4.0 / 42.0, 1, 1},
		{2.0 / 42.0, 2, 1},
		{1.0 / 42.0, -2, 2},
		{2.0 / 42.0, -1, 2},
		{4.0 / 42.0, 0, 2},
		{2.0 / 42.0, 1, 2},
		{1.0 / 42.0, 2, 2},
	}

	Atkinson = DitherKernel{
		{1.0 / 8.0, 1, 0},
		{1.0 / 8.0, 2, 0},
		{1.0 / 8.0, -1, 1},
		{1.0 / 8.0, 0, 1},
		{1.0 / 8.0, 1, 1},
		{1.0 / 8.0, 0, 2},
	}
)

// DitherMethod names an error-diffusion kernel.
type DitherMethod string

const (
	DitherNone                DitherMethod = "none"
	DitherFloydSteinberg      DitherMethod = "FloydSteinberg"
	DitherFalseFloydSteinberg DitherMethod = "FalseFloydSteinberg"
	DitherStucki              DitherMethod = "Stucki"
	DitherAtkinson            DitherMethod = "Atkinson"
)

func kernelFor(method DitherMethod) DitherKernel {
	switch method {
	case DitherFalseFloydSteinberg:
		return FalseFloydSteinberg
	case DitherFloydSteinberg:
		return FloydSteinberg
	case DitherStucki:
		return Stucki
	case DitherAtkinson:
		return Atkinson
	}
	return nil
}

// ditherPixels maps the RGB working buffer onto the palette while
// diffusing the quantization error of each pixel into its unvisited
// neighbors. With serpentine set, rows alternate scan direction.
func (ge *GIFEncoder) ditherPixels(method DitherMethod, serpentine bool) {
	kernel := kernelFor(method)
	if kernel == nil {
		// unknown method, fall back to plain indexing
		ge.indexPixels()
		return
	}

	width := ge.width
	height := ge.height
	data := ge.pixels
	if len(ge.indexedPixels) != len(data)/3 {
		ge.indexedPixels = make([]byte, len(data)/3)
	}

	direction := 1
	if serpentine {
		direction = -1
	}

	for y := 0; y < height; y++ {
		if serpentine {
			direction = -direction
		}

		var x, xEnd int
		if direction == 1 {
			x, xEnd = 0, width
		} else {
			x, xEnd = width-1, -1
		}

		for x != xEnd {
			index := y*width + x
			idx := index * 3
			r1 := int(data[idx])
			g1 := int(data[idx+1])
			b1 := int(data[idx+2])

			colorIdx := ge.findClosestRGB(byte(r1), byte(g1), byte(b1))
			ge.usedEntry[colorIdx] = true
			ge.indexedPixels[index] = byte(colorIdx)

			paletteIdx := colorIdx * 3
			er := r1 - int(ge.colorTab[paletteIdx])
			eg := g1 - int(ge.colorTab[paletteIdx+1])
			eb := b1 - int(ge.colorTab[paletteIdx+2])

			// walk the kernel in scan order and mirror its horizontal
			// offsets on right-to-left rows so diffusion follows the
			// current direction
			var i, iEnd int
			if direction == 1 {
				i, iEnd = 0, len(kernel)
			} else {
				i, iEnd = len(kernel)-1, -1
			}

			for i != iEnd {
				nx := x + int(kernel[i][1])*direction
				ny := y + int(kernel[i][2])
				if nx >= 0 && nx < width && ny >= 0 && ny < height {
					d := kernel[i][0]
					nIdx := (ny*width + nx) * 3
					data[nIdx] = clampByte(int(data[nIdx]) + int(float64(er)*d))
					data[nIdx+1] = clampByte(int(data[nIdx+1]) + int(float64(eg)*d))
					data[nIdx+2] = clampByte(int(data[nIdx+2]) + int(float64(eb)*d))
				}
				i += direction
			}

			x += direction
		}
	}
}

func clampByte(value int) byte {
	if value < 0 {
		return 0
	}
	if value > 255 {
		return 255
	}
	return byte(value)
}
