package heap

import (
	"github.com/h5kit/hdf5/internal/binary"
)

// WriteLocalHeap writes a local heap holding names as null-terminated,
// 8-byte-aligned entries, grounded on ReadLocalHeap's field order (local.go)
// reversed. Returns the heap header's address and each name's offset into
// the heap's data segment, in the same order as names. Offset 0 is
// reserved as an empty sentinel — HDF5 points a symbol table entry's name
// offset there when no name applies (namely the root group's own entry).
func WriteLocalHeap(w *binary.Writer, alloc func(size int64) uint64, names []string) (uint64, []uint64, error) {
	offsets := make([]uint64, len(names))
	dataSize := uint64(8)
	for i, name := range names {
		offsets[i] = dataSize
		dataSize += align8(uint64(len(name) + 1))
	}

	dataAddr := alloc(int64(dataSize))
	buf := make([]byte, dataSize)
	for i, name := range names {
		copy(buf[offsets[i]:], name)
	}
	dw := w.At(int64(dataAddr))
	if err := dw.WriteBytes(buf); err != nil {
		return 0, nil, err
	}

	headerSize := int64(4 + 1 + 3 + 2*w.LengthSize() + w.OffsetSize())
	headerAddr := alloc(headerSize)
	hw := w.At(int64(headerAddr))

	if err := hw.WriteBytes(localHeapSignature); err != nil {
		return 0, nil, err
	}
	if err := hw.WriteUint8(0); err != nil { // version
		return 0, nil, err
	}
	if err := hw.WriteZeros(3); err != nil { // reserved
		return 0, nil, err
	}
	if err := hw.WriteLength(dataSize); err != nil {
		return 0, nil, err
	}
	if err := hw.WriteLength(1); err != nil { // free-list head: sentinel "no free block"
		return 0, nil, err
	}
	if err := hw.WriteOffset(dataAddr); err != nil {
		return 0, nil, err
	}

	return uint64(headerAddr), offsets, nil
}

func align8(n uint64) uint64 {
	if rem := n % 8; rem != 0 {
		n += 8 - rem
	}
	return n
}
