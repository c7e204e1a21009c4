package gifenc

/*
NeuQuant Neural-Net Quantization Algorithm
------------------------------------------

Copyright (c) 1994 Anthony Dekker

NEUQUANT Neural-Net quantization algorithm by Anthony Dekker, 1994.
See "Kohonen neural networks for optimal colour quantization"
in "Network: Computation in Neural Systems" Vol. 5 (1994) pp 351-367.
for a discussion of the algorithm.

Any party obtaining a copy of these files from the author, directly or
indirectly, is granted, free of charge, a full and unrestricted irrevocable,
world-wide, paid up, royalty-free, nonexclusive right and license to deal
in this software and documentation files (the "Software"), including without
limitation the rights to use, copy, modify, merge, publish, distribute, sublicense,
and/or sell copies of the Software, and to permit persons who receive
copies from any such party to do so, with the only requirement being
that this copyright notice remain intact.
*/

const (
	ncycles         = 100 // number of learning cycles
	netsize         = 256 // number of colors used
	maxnetpos       = netsize - 1
	netbiasshift    = 4  // bias for colour values
	intbiasshift    = 16 // bias for fractions
	intbias         = 1 << intbiasshift
	gammashift      = 10
	betashift       = 10
	beta            = intbias >> betashift // beta = 1/1024
	betagamma       = intbias << (gammashift - betashift)
	initrad         = netsize >> 3 // for 256 cols, radius starts
	radiusbiasshift = 6            // at 32.0 biased by 6 bits
	radiusbias      = 1 << radiusbiasshift
	initradius      = initrad * radiusbias // and decreases by a
	radiusdec       = 30                   // factor of 1/30 each cycle
	alphabiasshift  = 10                   // alpha starts at 1.0
	initalpha       = 1 << alphabiasshift
	radbiasshift    = 8
	radbias         = 1 << radbiasshift
	alpharadbshift  = alphabiasshift + radbiasshift
	alpharadbias    = 1 << alpharadbshift
	prime1          = 499
	prime2          = 491
	prime3          = 487
	prime4          = 503
	minpicturebytes = 3 * prime4
)

// neuron holds three biased color coordinates plus the neuron's original
// position, carried through the green sort.
type neuron [4]int32

// NeuQuant trains a 256-neuron self-organizing map over an RGB byte
// stream and exposes the resulting palette plus a fast nearest-color
// search. One instance quantizes one frame.
type NeuQuant struct {
	network  [netsize]neuron
	netindex [256]int32 // green value -> starting position in the sorted network
	bias     [netsize]int32
	freq     [netsize]int32
	radpower [initrad]int32

	pixels    []byte // RGB triples, three bytes per pixel
	samplefac int    // sampling factor 1..30
}

// NewNeuQuant builds the color map for the given RGB pixel stream.
// samplefac ranges 1..30; lower samples more pixels and yields better
// palettes at the cost of training time. The returned quantizer is
// fully trained: ColorMap and LookupRGB are immediately usable.
func NewNeuQuant(pixels []byte, samplefac int) *NeuQuant {
	nq := &NeuQuant{pixels: pixels, samplefac: samplefac}
	nq.init()
	nq.learn()
	nq.pixels = nil
	nq.unbiasnet()
	nq.inxbuild()
	return nq
}

// init spreads the neurons along the grey axis and resets the
// frequency/bias contest state.
func (nq *NeuQuant) init() {
	for i := 0; i < netsize; i++ {
		v := int32((i << (netbiasshift + 8)) / netsize)
		nq.network[i] = neuron{v, v, v, 0}
		nq.freq[i] = intbias / netsize
		nq.bias[i] = 0
	}
}

// ColorMap returns the palette as 768 bytes, r,g,b per entry. Entries
// are materialized in neuron-tag order so that indices returned by
// LookupRGB address this slice directly.
func (nq *NeuQuant) ColorMap() []byte {
	colormap := make([]byte, netsize*3)
	var index [netsize]int

	for i := 0; i < netsize; i++ {
		index[nq.network[i][3]] = i
	}

	for i, k := 0, 0; i < netsize; i++ {
		n := &nq.network[index[i]]
		colormap[k] = byte(n[0])
		colormap[k+1] = byte(n[1])
		colormap[k+2] = byte(n[2])
		k += 3
	}
	return colormap
}

// LookupRGB returns the palette index whose color is closest (L1) to
// the given r, g, b.
func (nq *NeuQuant) LookupRGB(r, g, b byte) int {
	// inxsearch's parameter names read b,g,r for historical reasons but
	// the channel ordering must simply match training, which reads the
	// first byte of each triple first.
	return nq.inxsearch(int32(r), int32(g), int32(b))
}

// unbiasnet strips the 4-bit color bias, yielding byte values 0..255,
// and records each neuron's position ahead of the sort.
func (nq *NeuQuant) unbiasnet() {
	for i := 0; i < netsize; i++ {
		nq.network[i][0] >>= netbiasshift
		nq.network[i][1] >>= netbiasshift
		nq.network[i][2] >>= netbiasshift
		nq.network[i][3] = int32(i)
	}
}

// altersingle moves neuron i towards the biased color by factor alpha.
func (nq *NeuQuant) altersingle(alpha, i, b, g, r int32) {
	n := &nq.network[i]
	n[0] -= (alpha * (n[0] - b)) / initalpha
	n[1] -= (alpha * (n[1] - g)) / initalpha
	n[2] -= (alpha * (n[2] - r)) / initalpha
}

// alterneigh moves the neurons within rad of i towards the biased color,
// with influence falling off by distance via the radpower table.
func (nq *NeuQuant) alterneigh(rad, i int, b, g, r int32) {
	lo := i - rad
	if lo < 0 {
		lo = -lo
	}
	hi := i + rad
	if hi > netsize {
		hi = netsize
	}

	j, k, m := i+1, i-1, 1
	for j < hi || k > lo {
		a := nq.radpower[m]
		m++

		if j < hi {
			n := &nq.network[j]
			n[0] -= (a * (n[0] - b)) / alpharadbias
			n[1] -= (a * (n[1] - g)) / alpharadbias
			n[2] -= (a * (n[2] - r)) / alpharadbias
			j++
		}
		if k > lo {
			n := &nq.network[k]
			n[0] -= (a * (n[0] - b)) / alpharadbias
			n[1] -= (a * (n[1] - g)) / alpharadbias
			n[2] -= (a * (n[2] - r)) / alpharadbias
			k--
		}
	}
}

// contest finds the closest neuron (smallest distance) and updates its
// frequency, then returns the best-bias position: the neuron whose
// distance, discounted by accumulated bias, is smallest. Frequently
// winning neurons accrue bias against themselves so the whole net gets
// trained.
func (nq *NeuQuant) contest(b, g, r int32) int {
	bestd := int32(^uint32(0) >> 1)
	bestbiasd := bestd
	bestpos := -1
	bestbiaspos := -1

	for i := 0; i < netsize; i++ {
		n := &nq.network[i]
		dist := abs32(n[0]-b) + abs32(n[1]-g) + abs32(n[2]-r)

		if dist < bestd {
			bestd = dist
			bestpos = i
		}

		biasdist := dist - (nq.bias[i] >> (intbiasshift - netbiasshift))
		if biasdist < bestbiasd {
			bestbiasd = biasdist
			bestbiaspos = i
		}

		betafreq := nq.freq[i] >> betashift
		nq.freq[i] -= betafreq
		nq.bias[i] += betafreq << gammashift
	}

	nq.freq[bestpos] += beta
	nq.bias[bestpos] -= betagamma

	return bestbiaspos
}

// learn runs the main training loop over a quasi-random sample of the
// input pixels.
func (nq *NeuQuant) learn() {
	lengthcount := len(nq.pixels)
	if lengthcount == 0 {
		return
	}

	// Small pictures are scanned exhaustively; larger ones step by a
	// prime multiple so the traversal covers the image evenly.
	var step int
	if lengthcount < minpicturebytes {
		nq.samplefac = 1
		step = 3
	} else if lengthcount%prime1 != 0 {
		step = 3 * prime1
	} else if lengthcount%prime2 != 0 {
		step = 3 * prime2
	} else if lengthcount%prime3 != 0 {
		step = 3 * prime3
	} else {
		step = 3 * prime4
	}

	alphadec := int32(30 + ((nq.samplefac - 1) / 3))
	samplepixels := lengthcount / (3 * nq.samplefac)
	delta := samplepixels / ncycles
	if delta == 0 {
		delta = 1
	}

	alpha := int32(initalpha)
	radius := int32(initradius)

	rad := int(radius >> radiusbiasshift)
	if rad <= 1 {
		rad = 0
	}
	for i := 0; i < rad; i++ {
		nq.radpower[i] = alpha * ((int32(rad*rad-i*i) * radbias) / int32(rad*rad))
	}

	pix := 0
	for i := 0; i < samplepixels; i++ {
		b := (int32(nq.pixels[pix]) & 0xff) << netbiasshift
		g := (int32(nq.pixels[pix+1]) & 0xff) << netbiasshift
		r := (int32(nq.pixels[pix+2]) & 0xff) << netbiasshift

		j := nq.contest(b, g, r)
		nq.altersingle(alpha, int32(j), b, g, r)
		if rad != 0 {
			nq.alterneigh(rad, j, b, g, r)
		}

		pix += step
		if pix >= lengthcount {
			pix -= lengthcount
		}

		if (i+1)%delta == 0 {
			alpha -= alpha / alphadec
			radius -= radius / radiusdec
			rad = int(radius >> radiusbiasshift)
			if rad <= 1 {
				rad = 0
			}
			for j := 0; j < rad; j++ {
				nq.radpower[j] = alpha * ((int32(rad*rad-j*j) * radbias) / int32(rad*rad))
			}
		}
	}
}

// inxbuild sorts the network on the green coordinate (selection sort,
// pulling the smallest remaining entry forward) and builds netindex so
// searches can start near the right green band.
func (nq *NeuQuant) inxbuild() {
	previouscol := int32(0)
	startpos := 0

	for i := 0; i < netsize; i++ {
		smallpos := i
		smallval := nq.network[i][1]

		for j := i + 1; j < netsize; j++ {
			if nq.network[j][1] < smallval {
				smallpos = j
				smallval = nq.network[j][1]
			}
		}

		if i != smallpos {
			nq.network[i], nq.network[smallpos] = nq.network[smallpos], nq.network[i]
		}

		// smallval entry is now in position i
		if smallval != previouscol {
			nq.netindex[previouscol] = int32((startpos + i) >> 1)
			for j := previouscol + 1; j < smallval; j++ {
				nq.netindex[j] = int32(i)
			}
			previouscol = smallval
			startpos = i
		}
	}

	nq.netindex[previouscol] = int32((startpos + maxnetpos) >> 1)
	for j := previouscol + 1; j < 256; j++ {
		nq.netindex[j] = maxnetpos
	}
}

// inxsearch walks outward from netindex[g] in both directions of the
// green-sorted network, accumulating L1 distance green-first with an
// early out, and returns the best neuron's original position.
func (nq *NeuQuant) inxsearch(b, g, r int32) int {
	bestd := int32(1000) // biggest possible dist is 256*3
	best := -1

	i := int(nq.netindex[g])
	j := i - 1

	for i < netsize || j >= 0 {
		if i < netsize {
			n := &nq.network[i]
			dist := n[1] - g
			if dist >= bestd {
				i = netsize // green keys only grow from here
			} else {
				i++
				if dist < 0 {
					dist = -dist
				}
				dist += abs32(n[0] - b)
				if dist < bestd {
					dist += abs32(n[2] - r)
					if dist < bestd {
						bestd = dist
						best = int(n[3])
					}
				}
			}
		}

		if j >= 0 {
			n := &nq.network[j]
			dist := g - n[1]
			if dist >= bestd {
				j = -1
			} else {
				j--
				if dist < 0 {
					dist = -dist
				}
				dist += abs32(n[0] - b)
				if dist < bestd {
					dist += abs32(n[2] - r)
					if dist < bestd {
						bestd = dist
						best = int(n[3])
					}
				}
			}
		}
	}

	return best
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
