package heap

import (
	"fmt"

	"github.com/h5kit/hdf5/internal/binary"
)

// Fractal heaps back dense link storage (message/linkinfo_write.go, once a
// group's compact list grows past its threshold); attributes are not stored
// in a fractal heap by this module. This file implements the managed-object subset: a heap header
// (FRHP), one or more same-size direct blocks (FHDB) holding the raw object
// bytes, and — once a single direct block would exceed MaxDirectBlockSize —
// one indirect block (FHIB) listing the direct blocks. HDF5's real doubling
// table (growing row widths, filtered blocks, huge/tiny object tracks) is not
// implemented; every heap built here has at most one indirect block, with
// fixed-size direct block rows, which is sufficient for the managed-object
// sizes a link or attribute message produces.

const (
	frhpSignature = "FRHP"
	fhdbSignature = "FHDB"
	fhibSignature = "FHIB"

	// DefaultDirectBlockSize is the size of each FHDB block this writer
	// allocates. Real HDF5 heaps start small and double; a fixed size keeps
	// the indirect-block bookkeeping simple while staying large enough that
	// a typical group of link/attribute messages fits in one block.
	DefaultDirectBlockSize = 4096
)

// HeapID identifies one managed object within a fractal heap: which direct
// block it lives in (by index) and its byte range inside that block.
type HeapID struct {
	BlockIndex uint32
	Offset     uint32
	Length     uint32
}

// Encode serializes a HeapID into the 8-byte on-disk representation stored
// wherever a heap ID is referenced (dense link/attribute name index entries).
// Byte 0 is a version/type flag (0 = managed object, matching HDF5's heap ID
// flags byte); the remaining 7 bytes hold block index, offset and length.
func (id HeapID) Encode() []byte {
	buf := make([]byte, 8)
	buf[0] = 0
	buf[1] = byte(id.BlockIndex)
	buf[2] = byte(id.BlockIndex >> 8)
	buf[3] = byte(id.Offset)
	buf[4] = byte(id.Offset >> 8)
	buf[5] = byte(id.Offset >> 16)
	buf[6] = byte(id.Length)
	buf[7] = byte(id.Length >> 8)
	return buf
}

// DecodeHeapID parses a HeapID from its 8-byte encoding.
func DecodeHeapID(data []byte) (HeapID, error) {
	if len(data) < 8 {
		return HeapID{}, fmt.Errorf("fractal heap ID too short: %d bytes", len(data))
	}
	if data[0] != 0 {
		return HeapID{}, fmt.Errorf("unsupported fractal heap ID type flag 0x%02x", data[0])
	}
	return HeapID{
		BlockIndex: uint32(data[1]) | uint32(data[2])<<8,
		Offset:     uint32(data[3]) | uint32(data[4])<<8 | uint32(data[5])<<16,
		Length:     uint32(data[6]) | uint32(data[7])<<8,
	}, nil
}

// FractalHeap is a read-opened fractal heap: header plus the resolved direct
// block addresses, ready for GetObject lookups by HeapID.
type FractalHeap struct {
	HeaderAddress    uint64
	MaxDirectBlockSize uint64
	DirectBlockSize  uint64
	directBlockAddrs []uint64
}

// ReadFractalHeap reads a heap header at address and resolves its direct
// block list (following the indirect block if present).
func ReadFractalHeap(r *binary.Reader, address uint64) (*FractalHeap, error) {
	hr := r.At(int64(address))

	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap signature: %w", err)
	}
	if string(sig) != frhpSignature {
		return nil, fmt.Errorf("invalid fractal heap signature: got %q, expected %q", sig, frhpSignature)
	}

	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported fractal heap version: %d", version)
	}

	if _, err := hr.ReadUint16(); err != nil { // heap ID length
		return nil, err
	}
	if _, err := hr.ReadUint16(); err != nil { // I/O filter encoded length
		return nil, err
	}
	if _, err := hr.ReadUint8(); err != nil { // flags
		return nil, err
	}
	if _, err := hr.ReadUint32(); err != nil { // max managed object size
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // next huge object ID
		return nil, err
	}
	if _, err := hr.ReadOffset(); err != nil { // huge object B-tree v2 address
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // free space in managed blocks
		return nil, err
	}
	if _, err := hr.ReadOffset(); err != nil { // free space manager address
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // managed space
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // allocated managed space
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // iterator offset
		return nil, err
	}
	nManaged, err := hr.ReadLength() // number of managed objects
	if err != nil {
		return nil, err
	}
	_ = nManaged
	if _, err := hr.ReadLength(); err != nil { // huge object size
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // number of huge objects
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // tiny object size
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // number of tiny objects
		return nil, err
	}

	tableWidth, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	_ = tableWidth
	startBlockSize, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	maxDirectBlockSize, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadUint16(); err != nil { // max heap size (bits)
		return nil, err
	}
	if _, err := hr.ReadUint16(); err != nil { // starting # of rows in root indirect block
		return nil, err
	}
	rootAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	curRows, err := hr.ReadUint16() // current # of rows in root indirect block (0 == root is a direct block)
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadUint32(); err != nil { // checksum
		return nil, err
	}

	fh := &FractalHeap{
		HeaderAddress:      address,
		MaxDirectBlockSize: maxDirectBlockSize,
		DirectBlockSize:    startBlockSize,
	}

	if hr.IsUndefinedOffset(rootAddr) {
		return fh, nil
	}

	if curRows == 0 {
		fh.directBlockAddrs = []uint64{rootAddr}
		return fh, nil
	}

	addrs, err := readIndirectBlock(r, rootAddr, address, int(curRows))
	if err != nil {
		return nil, err
	}
	fh.directBlockAddrs = addrs
	return fh, nil
}

func readIndirectBlock(r *binary.Reader, addr uint64, heapHeaderAddr uint64, rows int) ([]uint64, error) {
	hr := r.At(int64(addr))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != fhibSignature {
		return nil, fmt.Errorf("invalid fractal heap indirect block signature: got %q", sig)
	}
	if _, err := hr.ReadUint8(); err != nil { // version
		return nil, err
	}
	if _, err := hr.ReadOffset(); err != nil { // heap header address
		return nil, err
	}
	// One entry per direct block slot in this simplified single-level layout.
	addrs := make([]uint64, 0, rows)
	for i := 0; i < rows; i++ {
		blockAddr, err := hr.ReadOffset()
		if err != nil {
			return nil, err
		}
		if !hr.IsUndefinedOffset(blockAddr) {
			addrs = append(addrs, blockAddr)
		}
	}
	return addrs, nil
}

// GetObject reads the bytes identified by id out of the heap's direct blocks.
func (fh *FractalHeap) GetObject(r *binary.Reader, id HeapID) ([]byte, error) {
	if int(id.BlockIndex) >= len(fh.directBlockAddrs) {
		return nil, fmt.Errorf("fractal heap ID references block %d, heap has %d", id.BlockIndex, len(fh.directBlockAddrs))
	}
	blockAddr := fh.directBlockAddrs[id.BlockIndex]
	dr := r.At(int64(blockAddr))
	sig, err := dr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != fhdbSignature {
		return nil, fmt.Errorf("invalid fractal heap direct block signature: got %q", sig)
	}
	if _, err := dr.ReadUint8(); err != nil { // version
		return nil, err
	}
	if _, err := dr.ReadOffset(); err != nil { // heap header address
		return nil, err
	}
	// Block offset field size depends on max heap size; this writer always
	// emits a full offset-sized field for simplicity.
	if _, err := dr.ReadOffset(); err != nil { // block offset
		return nil, err
	}

	dataStart := dr.Pos()
	data, err := r.At(dataStart + int64(id.Offset)).ReadBytes(int(id.Length))
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap object: %w", err)
	}
	return data, nil
}

// FractalHeapWriter accumulates managed objects and lays them out across
// fixed-size direct blocks under a single indirect block (or, when
// everything fits in one block, directly under the header with no indirect
// block at all, matching HDF5's single-direct-block root optimization).
type FractalHeapWriter struct {
	directBlockSize uint64
	blocks          [][]byte // block i's raw bytes, prefix already trimmed off
	objectCount     uint64
}

// NewFractalHeapWriter creates a writer using DefaultDirectBlockSize blocks.
func NewFractalHeapWriter() *FractalHeapWriter {
	return &FractalHeapWriter{
		directBlockSize: DefaultDirectBlockSize,
		blocks:          [][]byte{{}},
	}
}

// AddObject appends data to the current (or a fresh) direct block and
// returns its HeapID. Objects larger than the direct block size are
// rejected; callers dense-storing link/attribute messages never approach it.
func (fw *FractalHeapWriter) AddObject(data []byte) (HeapID, error) {
	if uint64(len(data)) > fw.directBlockSize {
		return HeapID{}, fmt.Errorf("object of %d bytes exceeds direct block size %d", len(data), fw.directBlockSize)
	}
	last := len(fw.blocks) - 1
	if uint64(len(fw.blocks[last]))+uint64(len(data)) > fw.directBlockSize {
		fw.blocks = append(fw.blocks, nil)
		last++
	}
	id := HeapID{
		BlockIndex: uint32(last),
		Offset:     uint32(len(fw.blocks[last])),
		Length:     uint32(len(data)),
	}
	fw.blocks[last] = append(fw.blocks[last], data...)
	fw.objectCount++
	return id, nil
}

// Write lays out the header, direct block(s), and — when there is more than
// one direct block — the indirect block, returning the heap header address.
func (fw *FractalHeapWriter) Write(w *binary.Writer, alloc func(size int64) uint64) (uint64, error) {
	blockHeaderSize := int64(4 + 1 + w.OffsetSize() + w.OffsetSize())

	directAddrs := make([]uint64, len(fw.blocks))
	totalManaged := uint64(0)
	for i, block := range fw.blocks {
		size := blockHeaderSize + int64(fw.directBlockSize)
		addr := alloc(size)
		directAddrs[i] = addr
		bw := w.At(int64(addr))
		if err := bw.WriteBytes([]byte(fhdbSignature)); err != nil {
			return 0, err
		}
		if err := bw.WriteUint8(0); err != nil {
			return 0, err
		}
		// Heap header address patched in below once it is known.
		if err := bw.WriteUndefinedOffset(); err != nil {
			return 0, err
		}
		if err := bw.WriteOffset(uint64(i) * fw.directBlockSize); err != nil { // block offset
			return 0, err
		}
		if err := bw.WriteBytes(block); err != nil {
			return 0, err
		}
		pad := int64(fw.directBlockSize) - int64(len(block))
		if pad > 0 {
			if err := bw.WriteZeros(int(pad)); err != nil {
				return 0, err
			}
		}
		totalManaged += uint64(len(block))
	}

	var rootAddr uint64
	var curRows uint16
	if len(directAddrs) == 1 {
		rootAddr = directAddrs[0]
		curRows = 0
	} else {
		indirectSize := int64(4+1+w.OffsetSize()) + int64(len(directAddrs))*int64(w.OffsetSize())
		indirectAddr := alloc(indirectSize)
		iw := w.At(int64(indirectAddr))
		if err := iw.WriteBytes([]byte(fhibSignature)); err != nil {
			return 0, err
		}
		if err := iw.WriteUint8(0); err != nil {
			return 0, err
		}
		if err := iw.WriteUndefinedOffset(); err != nil { // heap header address, patched below
			return 0, err
		}
		for _, addr := range directAddrs {
			if err := iw.WriteOffset(addr); err != nil {
				return 0, err
			}
		}
		rootAddr = indirectAddr
		curRows = uint16(len(directAddrs))
	}

	// Fixed-width fields (26) + 3 offset-sized fields (huge-object B-tree
	// address, free-space manager address, root block address) + 12
	// length-sized fields (object/space counters and sizes).
	headerSize := int64(26 + 3*w.OffsetSize() + 12*w.LengthSize())
	headerAddr := alloc(headerSize)
	hw := w.At(int64(headerAddr))
	if err := hw.WriteBytes([]byte(frhpSignature)); err != nil {
		return 0, err
	}
	if err := hw.WriteUint8(0); err != nil {
		return 0, err
	}
	if err := hw.WriteUint16(8); err != nil { // heap ID length (our fixed 8-byte encoding)
		return 0, err
	}
	if err := hw.WriteUint16(0); err != nil { // I/O filter encoded length: none
		return 0, err
	}
	if err := hw.WriteUint8(0); err != nil { // flags
		return 0, err
	}
	if err := hw.WriteUint32(uint32(fw.directBlockSize)); err != nil { // max managed object size
		return 0, err
	}
	if err := hw.WriteLength(1); err != nil { // next huge object ID
		return 0, err
	}
	if err := hw.WriteUndefinedOffset(); err != nil { // huge object B-tree v2 address: none
		return 0, err
	}
	if err := hw.WriteLength(0); err != nil { // free space in managed blocks
		return 0, err
	}
	if err := hw.WriteUndefinedOffset(); err != nil { // free space manager address: none
		return 0, err
	}
	if err := hw.WriteLength(totalManaged); err != nil { // managed space
		return 0, err
	}
	if err := hw.WriteLength(fw.directBlockSize * uint64(len(fw.blocks))); err != nil { // allocated managed space
		return 0, err
	}
	if err := hw.WriteLength(fw.directBlockSize * uint64(len(fw.blocks))); err != nil { // iterator offset
		return 0, err
	}
	if err := hw.WriteLength(fw.objectCount); err != nil { // number of managed objects
		return 0, err
	}
	if err := hw.WriteLength(0); err != nil { // huge object size
		return 0, err
	}
	if err := hw.WriteLength(0); err != nil { // number of huge objects
		return 0, err
	}
	if err := hw.WriteLength(0); err != nil { // tiny object size
		return 0, err
	}
	if err := hw.WriteLength(0); err != nil { // number of tiny objects
		return 0, err
	}
	if err := hw.WriteUint16(1); err != nil { // table width
		return 0, err
	}
	if err := hw.WriteLength(fw.directBlockSize); err != nil { // starting block size
		return 0, err
	}
	if err := hw.WriteLength(fw.directBlockSize); err != nil { // max direct block size
		return 0, err
	}
	if err := hw.WriteUint16(64); err != nil { // max heap size, in bits
		return 0, err
	}
	if err := hw.WriteUint16(curRows); err != nil { // starting # rows in root indirect block
		return 0, err
	}
	if err := hw.WriteOffset(rootAddr); err != nil {
		return 0, err
	}
	if err := hw.WriteUint16(curRows); err != nil { // current # rows
		return 0, err
	}
	if err := hw.WriteUint32(0); err != nil { // checksum placeholder; left as zero, never computed
		return 0, err
	}

	// Patch the heap header address into every direct/indirect block now
	// that it is known.
	for _, addr := range directAddrs {
		patchOffset := int64(addr) + 4 + 1
		if err := w.At(patchOffset).WriteOffset(headerAddr); err != nil {
			return 0, err
		}
	}
	if curRows > 0 {
		patchOffset := int64(rootAddr) + 4 + 1
		if err := w.At(patchOffset).WriteOffset(headerAddr); err != nil {
			return 0, err
		}
	}

	return headerAddr, nil
}
