package filter

import (
	"fmt"

	"github.com/h5kit/hdf5/internal/message"
)

// LZF implements the LZF compression filter (id 32000), the dynamically
// registered filter h5py ships for fast, low-overhead compression. No
// ecosystem Go package implements HDF5's LZF wire format (see DESIGN.md),
// so this is a from-scratch LZ77 variant using the same control-byte
// framing as Marc Lehmann's liblzf: runs of literal bytes prefixed by a
// length-1 byte, and back-references encoding a 13-bit offset and a length
// of 3-264 bytes.
type LZF struct{}

// NewLZF creates a new LZF filter. It takes no client data.
func NewLZF(clientData []uint32) *LZF {
	return &LZF{}
}

func (f *LZF) ID() uint16 {
	return message.FilterLZF
}

const (
	lzfMaxLiteral = 1 << 5  // literal runs are 1-32 bytes
	lzfMaxOffset  = 1 << 13 // back-references reach 8192 bytes back
	lzfMaxLength  = 264     // longest representable match: 2 + (7 + 255)
	lzfHashBits   = 14
	lzfHashSize   = 1 << lzfHashBits
)

func lzfHash(p []byte) uint32 {
	v := uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	return ((v >> (24 - lzfHashBits)) ^ v) & (lzfHashSize - 1)
}

// Encode compresses input using the liblzf-style framing described above.
func (f *LZF) Encode(input []byte) ([]byte, error) {
	n := len(input)
	if n == 0 {
		return nil, nil
	}

	out := make([]byte, 0, n)
	htab := make([]int, lzfHashSize)
	for i := range htab {
		htab[i] = -1
	}

	litStart := -1
	litLen := 0

	flushLiteral := func() {
		if litStart >= 0 && litLen > 0 {
			out[litStart] = byte(litLen - 1)
		}
		litStart = -1
		litLen = 0
	}

	ip := 0
	for ip < n {
		ref := -1
		if ip+2 < n {
			h := lzfHash(input[ip:])
			ref = htab[h]
			htab[h] = ip
		}

		if ref >= 0 && ip-ref-1 < lzfMaxOffset && ref+2 < n &&
			input[ref] == input[ip] && input[ref+1] == input[ip+1] && input[ref+2] == input[ip+2] {
			length := 3
			maxLen := n - ip
			if maxLen > lzfMaxLength {
				maxLen = lzfMaxLength
			}
			for length < maxLen && input[ref+length] == input[ip+length] {
				length++
			}

			flushLiteral()
			off := ip - ref - 1
			enc := length - 2
			if enc < 7 {
				out = append(out, byte((off>>8)&0x1f)|byte(enc<<5))
			} else {
				out = append(out, byte((off>>8)&0x1f)|byte(7<<5))
				out = append(out, byte(enc-7))
			}
			out = append(out, byte(off&0xff))
			ip += length
			continue
		}

		if litStart < 0 {
			out = append(out, 0) // placeholder control byte, patched by flushLiteral
			litStart = len(out) - 1
			litLen = 0
		}
		out = append(out, input[ip])
		litLen++
		ip++
		if litLen == lzfMaxLiteral {
			flushLiteral()
		}
	}
	flushLiteral()

	return out, nil
}

// Decode reverses Encode's framing.
func (f *LZF) Decode(input []byte) ([]byte, error) {
	var out []byte
	ip := 0
	n := len(input)
	for ip < n {
		ctrl := input[ip]
		ip++
		if ctrl < lzfMaxLiteral {
			runLen := int(ctrl) + 1
			if ip+runLen > n {
				return nil, fmt.Errorf("lzf: literal run truncated")
			}
			out = append(out, input[ip:ip+runLen]...)
			ip += runLen
			continue
		}

		length := int(ctrl >> 5)
		if length == 7 {
			if ip >= n {
				return nil, fmt.Errorf("lzf: truncated extended length")
			}
			length += int(input[ip])
			ip++
		}
		length += 2

		if ip >= n {
			return nil, fmt.Errorf("lzf: truncated back-reference")
		}
		off := (int(ctrl&0x1f) << 8) | int(input[ip])
		ip++

		ref := len(out) - off - 1
		if ref < 0 {
			return nil, fmt.Errorf("lzf: back-reference before start of output")
		}
		for i := 0; i < length; i++ {
			out = append(out, out[ref+i])
		}
	}
	return out, nil
}
