package gifenc

// GIF-flavored LZW, derived from the classic UNIX compress scheme:
// variable-width codes starting one bit past the color depth, an
// open-addressed hash table with Knott-style secondary probing, and a
// CLEAR code reset once the dictionary hits 2^12 entries.

const (
	lzwEOF      = -1
	lzwBits     = 12
	lzwHashSize = 5003 // 80% occupancy
)

var codeMasks = [17]int32{
	0x0000, 0x0001, 0x0003, 0x0007, 0x000F, 0x001F,
	0x003F, 0x007F, 0x00FF, 0x01FF, 0x03FF, 0x07FF,
	0x0FFF, 0x1FFF, 0x3FFF, 0x7FFF, 0xFFFF,
}

// LZWEncoder compresses a stream of palette indices into the GIF image
// data section: one initial-code-size byte, LZW codes packed LSB-first
// into 1..255-byte sub-blocks, and a zero terminator.
type LZWEncoder struct {
	pixels       []byte
	initCodeSize int
	remaining    int
	curPixel     int

	// dictionary: hashes holds the composite key (char<<12)+prefix,
	// -1 marking an empty slot; codes holds the assigned output code.
	hashes [lzwHashSize]int32
	codes  [lzwHashSize]int32

	gInitBits int
	clearCode int32
	eofCode   int32
	freeEnt   int32
	clearFlg  bool
	nBits     int
	maxcode   int32

	curAccum int32
	curBits  int

	// current sub-block being staged
	packet    [256]byte
	packetLen int
}

// NewLZWEncoder creates an encoder for width*height pixels of indexed
// image data. colorDepth is the number of bits per palette index; the
// initial code size is at least 2.
func NewLZWEncoder(width, height int, pixels []byte, colorDepth int) *LZWEncoder {
	initCodeSize := colorDepth
	if initCodeSize < 2 {
		initCodeSize = 2
	}
	return &LZWEncoder{
		pixels:       pixels,
		initCodeSize: initCodeSize,
		remaining:    width * height,
	}
}

// Encode writes the complete image data section into out.
func (enc *LZWEncoder) Encode(out *ByteBuffer) {
	out.WriteByte(byte(enc.initCodeSize)) // initial code size
	enc.curPixel = 0
	enc.compress(enc.initCodeSize+1, out)
	out.WriteByte(0) // block terminator
}

// nextPixel returns the next palette index, or lzwEOF when exhausted.
func (enc *LZWEncoder) nextPixel() int {
	if enc.remaining == 0 {
		return lzwEOF
	}
	enc.remaining--
	pix := enc.pixels[enc.curPixel]
	enc.curPixel++
	return int(pix) & 0xff
}

func (enc *LZWEncoder) compress(initBits int, out *ByteBuffer) {
	enc.gInitBits = initBits
	enc.clearFlg = false
	enc.nBits = initBits
	enc.maxcode = maxCode(enc.nBits)

	enc.clearCode = 1 << (initBits - 1)
	enc.eofCode = enc.clearCode + 1
	enc.freeEnt = enc.clearCode + 2

	enc.curAccum = 0
	enc.curBits = 0
	enc.packetLen = 0

	ent := int32(enc.nextPixel())

	hshift := 0
	for fcode := lzwHashSize; fcode < 65536; fcode *= 2 {
		hshift++
	}
	hshift = 8 - hshift // set hash code range bound

	enc.resetDict()
	enc.output(enc.clearCode, out)

outer:
	for {
		c := enc.nextPixel()
		if c == lzwEOF {
			break
		}

		fcode := (int32(c) << lzwBits) + ent
		i := (int32(c) << hshift) ^ ent // xor hashing

		if enc.hashes[i] == fcode {
			ent = enc.codes[i]
			continue
		} else if enc.hashes[i] >= 0 { // non-empty slot
			disp := int32(lzwHashSize) - i // secondary hash (after G. Knott)
			if i == 0 {
				disp = 1
			}
			for {
				i -= disp
				if i < 0 {
					i += lzwHashSize
				}
				if enc.hashes[i] == fcode {
					ent = enc.codes[i]
					continue outer
				}
				if enc.hashes[i] < 0 {
					break
				}
			}
		}

		enc.output(ent, out)
		ent = int32(c)

		if enc.freeEnt < 1<<lzwBits {
			enc.codes[i] = enc.freeEnt // code -> hashtable
			enc.freeEnt++
			enc.hashes[i] = fcode
		} else {
			// table full: reset and start over
			enc.resetDict()
			enc.freeEnt = enc.clearCode + 2
			enc.clearFlg = true
			enc.output(enc.clearCode, out)
		}
	}

	// final prefix, then EOF
	enc.output(ent, out)
	enc.output(enc.eofCode, out)
}

func (enc *LZWEncoder) resetDict() {
	for i := range enc.hashes {
		enc.hashes[i] = -1
	}
}

// output packs one code into the bit accumulator, draining whole bytes
// into the staged sub-block, and tracks code-width growth.
func (enc *LZWEncoder) output(code int32, out *ByteBuffer) {
	enc.curAccum &= codeMasks[enc.curBits]
	if enc.curBits > 0 {
		enc.curAccum |= code << enc.curBits
	} else {
		enc.curAccum = code
	}
	enc.curBits += enc.nBits

	for enc.curBits >= 8 {
		enc.stageByte(byte(enc.curAccum&0xff), out)
		enc.curAccum >>= 8
		enc.curBits -= 8
	}

	// If the next entry is going to be too big for the code size,
	// then increase it, if possible.
	if enc.freeEnt > enc.maxcode || enc.clearFlg {
		if enc.clearFlg {
			enc.nBits = enc.gInitBits
			enc.maxcode = maxCode(enc.nBits)
			enc.clearFlg = false
		} else {
			enc.nBits++
			if enc.nBits == lzwBits {
				enc.maxcode = 1 << lzwBits
			} else {
				enc.maxcode = maxCode(enc.nBits)
			}
		}
	}

	if code == enc.eofCode {
		// At EOF, write the rest of the buffer.
		for enc.curBits > 0 {
			enc.stageByte(byte(enc.curAccum&0xff), out)
			enc.curAccum >>= 8
			enc.curBits -= 8
		}
		enc.flushPacket(out)
	}
}

// stageByte adds one byte to the current sub-block, flushing when full.
func (enc *LZWEncoder) stageByte(b byte, out *ByteBuffer) {
	enc.packet[enc.packetLen] = b
	enc.packetLen++
	if enc.packetLen >= 254 {
		enc.flushPacket(out)
	}
}

// flushPacket writes the staged sub-block as a length byte followed by
// the accumulated payload.
func (enc *LZWEncoder) flushPacket(out *ByteBuffer) {
	if enc.packetLen > 0 {
		out.WriteByte(byte(enc.packetLen))
		out.WriteBytes(enc.packet[:enc.packetLen])
		enc.packetLen = 0
	}
}

// maxCode returns the maximum code value representable in nBits.
func maxCode(nBits int) int32 {
	return (1 << nBits) - 1
}
