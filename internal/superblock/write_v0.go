package superblock

import (
	"encoding/binary"

	binpkg "github.com/h5kit/hdf5/internal/binary"
)

// WriteV0 writes a version 0 superblock — the header for the symbol-table
// profile (`internal/message/symboltable_write.go`), mirroring readV0's
// field layout exactly. Unlike the v2/v3 header Write produces, v0 carries
// no trailing checksum and caches the root group's B-tree/local-heap
// addresses (RootGroupBTreeAddress/RootGroupLocalHeapAddress) in its
// symbol-table-entry scratch-pad, the way a real HDF5 v0 file does.
func (sb *Superblock) WriteV0(w *binpkg.Writer) (int64, error) {
	startPos := w.Pos()
	osize := int(sb.OffsetSize)
	if osize == 0 {
		osize = 8
	}

	if err := w.WriteBytes(Signature); err != nil {
		return 0, err
	}
	if err := w.WriteUint8(0); err != nil { // version
		return 0, err
	}
	if err := w.WriteUint8(sb.FreeSpaceManagerVersion); err != nil {
		return 0, err
	}
	if err := w.WriteUint8(0); err != nil { // root group symbol table entry version
		return 0, err
	}
	if err := w.WriteUint8(0); err != nil { // reserved
		return 0, err
	}
	if err := w.WriteUint8(0); err != nil { // shared header message format version
		return 0, err
	}
	if err := w.WriteUint8(sb.OffsetSize); err != nil {
		return 0, err
	}
	if err := w.WriteUint8(sb.LengthSize); err != nil {
		return 0, err
	}
	if err := w.WriteUint8(0); err != nil { // reserved
		return 0, err
	}

	leafK := sb.GroupLeafNodeK
	if leafK == 0 {
		leafK = 4
	}
	internalK := sb.GroupInternalNodeK
	if internalK == 0 {
		internalK = 16
	}
	if err := w.WriteUint16(leafK); err != nil {
		return 0, err
	}
	if err := w.WriteUint16(internalK); err != nil {
		return 0, err
	}
	if err := w.WriteUint32(uint32(sb.FileConsistencyFlags)); err != nil {
		return 0, err
	}

	if err := w.WriteOffset(sb.BaseAddress); err != nil {
		return 0, err
	}
	if err := w.WriteUndefinedOffset(); err != nil { // free-space info address, unused
		return 0, err
	}
	if err := w.WriteOffset(sb.EOFAddress); err != nil {
		return 0, err
	}
	if err := w.WriteUndefinedOffset(); err != nil { // driver info block address, unused
		return 0, err
	}

	// Root group symbol table entry.
	if err := w.WriteUintN(0, osize); err != nil { // name offset: root has no name
		return 0, err
	}
	if err := w.WriteOffset(sb.RootGroupAddress); err != nil {
		return 0, err
	}
	if err := w.WriteUint32(1); err != nil { // cache type 1: cached group (B-tree + local heap)
		return 0, err
	}
	if err := w.WriteZeros(4); err != nil { // reserved
		return 0, err
	}
	scratch := make([]byte, 16)
	binary.LittleEndian.PutUint64(scratch[0:8], sb.RootGroupBTreeAddress)
	binary.LittleEndian.PutUint64(scratch[8:16], sb.RootGroupLocalHeapAddress)
	if err := w.WriteBytes(scratch); err != nil {
		return 0, err
	}

	return w.Pos() - startPos, nil
}

// SizeV0 returns the size in bytes of a version 0 superblock.
func (sb *Superblock) SizeV0() int {
	osize := int(sb.OffsetSize)
	if osize == 0 {
		osize = 8
	}
	// Fixed header through flags (24) + 4 offset-sized fields (base,
	// free-space, EOF, driver-info) + symbol table entry (2 offset-sized
	// fields + 4 + 4 + 16).
	return 24 + 4*osize + 2*osize + 24
}

// NewSuperblockV0 creates a version 0 superblock for the symbol-table
// profile.
func NewSuperblockV0() *Superblock {
	return &Superblock{
		Version:            0,
		OffsetSize:         8,
		LengthSize:         8,
		GroupLeafNodeK:     4,
		GroupInternalNodeK: 16,
	}
}
