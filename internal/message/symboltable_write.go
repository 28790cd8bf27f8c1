package message

import (
	binpkg "github.com/h5kit/hdf5/internal/binary"
	"github.com/h5kit/hdf5/internal/heap"
)

// NewSymbolTable creates a symbol table message pointing at a group's
// B-tree and local heap, the legacy-profile counterpart to a v2 group's
// LinkInfo message.
func NewSymbolTable(btreeAddress, localHeapAddress uint64) *SymbolTable {
	return &SymbolTable{BTreeAddress: btreeAddress, LocalHeapAddress: localHeapAddress}
}

func (m *SymbolTable) Serialize(w *binpkg.Writer) error {
	if err := w.WriteOffset(m.BTreeAddress); err != nil {
		return err
	}
	return w.WriteOffset(m.LocalHeapAddress)
}

func (m *SymbolTable) SerializedSize(w *binpkg.Writer) int {
	return 2 * w.OffsetSize()
}

// GroupWriteEntry is one member awaiting indexing into a v1 group's
// B-tree + symbol table node, the legacy-profile counterpart to a v2
// group's Link messages.
type GroupWriteEntry struct {
	Name          string
	ObjectAddress uint64
}

// WriteGroupSymbolTable builds the legacy group-storage profile for one
// group: a local heap holding every member name, a single symbol table
// node (SNOD) listing every member, and a one-leaf v1 B-tree pointing at
// that SNOD. Grounded on btree/v1_group.go's reader, reversed — entries
// land in one SNOD rather than the growing multi-SNOD, multi-level tree a
// real HDF5 writer builds, which is enough for the member counts this
// project's symbol-table profile targets (the same single-level scoping
// already used for the fractal heap and the B-tree v1 chunk writer).
// Returns the B-tree root address and the local heap address, the two
// fields a SymbolTable message needs.
func WriteGroupSymbolTable(w *binpkg.Writer, alloc func(size int64) uint64, entries []GroupWriteEntry) (btreeAddr uint64, localHeapAddr uint64, err error) {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	localHeapAddr, nameOffsets, err := heap.WriteLocalHeap(w, alloc, names)
	if err != nil {
		return 0, 0, err
	}

	snodAddr, err := writeSymbolTableNode(w, alloc, entries, nameOffsets)
	if err != nil {
		return 0, 0, err
	}

	btreeAddr, err = writeGroupBTreeLeaf(w, alloc, snodAddr)
	if err != nil {
		return 0, 0, err
	}

	return btreeAddr, localHeapAddr, nil
}

func writeSymbolTableNode(w *binpkg.Writer, alloc func(size int64) uint64, entries []GroupWriteEntry, nameOffsets []uint64) (uint64, error) {
	entrySize := 2*w.OffsetSize() + 4 + 4 + 16
	size := int64(4 + 1 + 1 + 2 + len(entries)*entrySize)
	addr := alloc(size)
	nw := w.At(int64(addr))

	if err := nw.WriteBytes([]byte("SNOD")); err != nil {
		return 0, err
	}
	if err := nw.WriteUint8(1); err != nil { // version
		return 0, err
	}
	if err := nw.WriteUint8(0); err != nil { // reserved
		return 0, err
	}
	if err := nw.WriteUint16(uint16(len(entries))); err != nil {
		return 0, err
	}

	for i, e := range entries {
		if err := nw.WriteOffset(nameOffsets[i]); err != nil {
			return 0, err
		}
		if err := nw.WriteOffset(e.ObjectAddress); err != nil {
			return 0, err
		}
		if err := nw.WriteUint32(0); err != nil { // cache type: none
			return 0, err
		}
		if err := nw.WriteZeros(4); err != nil { // reserved
			return 0, err
		}
		if err := nw.WriteZeros(16); err != nil { // scratch-pad, unused for cache type 0
			return 0, err
		}
	}

	return addr, nil
}

func writeGroupBTreeLeaf(w *binpkg.Writer, alloc func(size int64) uint64, snodAddr uint64) (uint64, error) {
	size := int64(4 + 1 + 1 + 2 + 2*w.OffsetSize() + w.LengthSize() + w.OffsetSize())
	addr := alloc(size)
	nw := w.At(int64(addr))

	if err := nw.WriteBytes([]byte("TREE")); err != nil {
		return 0, err
	}
	if err := nw.WriteUint8(0); err != nil { // node type: group
		return 0, err
	}
	if err := nw.WriteUint8(0); err != nil { // node level: leaf
		return 0, err
	}
	if err := nw.WriteUint16(1); err != nil { // one child: the single SNOD
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil { // left sibling
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil { // right sibling
		return 0, err
	}
	if err := nw.WriteLength(0); err != nil { // key: ignored by the reader, see v1_group.go
		return 0, err
	}
	if err := nw.WriteOffset(snodAddr); err != nil {
		return 0, err
	}

	return addr, nil
}
