package btree

import (
	"fmt"
	"sort"

	"github.com/h5kit/hdf5/internal/binary"
)

// ChunkWriteEntry is one chunk awaiting indexing, mirroring ChunkEntry but
// used on the write side before an address has been assigned to anything
// but the chunk's own raw data (which the caller has already written).
type ChunkWriteEntry struct {
	Offset     []uint64 // ndims values, dataset element-space coordinates
	FilterMask uint32
	Size       uint32
	Address    uint64
}

const chunkBTreeNodeK = 16 // max entries per node, matching v1_group.go's group node width

// WriteChunkIndex builds a v1 B-tree chunk index over entries and returns
// the address of its root node. Entries are sorted into row-major key order
// first, as HDF5 B-tree v1 requires sorted keys. Groups of up to
// chunkBTreeNodeK entries become leaf nodes; if more than one leaf results,
// a single internal root node indexes them (matching v1_group.go's reader,
// which already recurses through arbitrary internal-node depth — this
// writer only ever produces one level of internal nodes, which comfortably
// covers chunkBTreeNodeK^2 chunks before a dataset would need deeper trees).
func WriteChunkIndex(w *binary.Writer, alloc func(size int64) uint64, ndims int, entries []ChunkWriteEntry) (uint64, error) {
	if len(entries) == 0 {
		return w.UndefinedOffset(), nil
	}

	sorted := make([]ChunkWriteEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return compareChunkOffsets(sorted[i].Offset, sorted[j].Offset) < 0
	})

	var leafGroups [][]ChunkWriteEntry
	for start := 0; start < len(sorted); start += chunkBTreeNodeK {
		end := start + chunkBTreeNodeK
		if end > len(sorted) {
			end = len(sorted)
		}
		leafGroups = append(leafGroups, sorted[start:end])
	}

	if len(leafGroups) > chunkBTreeNodeK {
		return 0, fmt.Errorf("chunk index has %d leaf groups, exceeding the %d this writer's single internal level supports", len(leafGroups), chunkBTreeNodeK)
	}

	leafAddrs := make([]uint64, len(leafGroups))
	leafFirstKeys := make([][]uint64, len(leafGroups))
	for i, group := range leafGroups {
		leafFirstKeys[i] = group[0].Offset
		addr, err := writeChunkLeaf(w, alloc, ndims, group)
		if err != nil {
			return 0, err
		}
		leafAddrs[i] = addr
	}
	if err := linkSiblings(w, leafAddrs); err != nil {
		return 0, err
	}

	if len(leafAddrs) == 1 {
		return leafAddrs[0], nil
	}
	return writeChunkInternal(w, alloc, ndims, leafFirstKeys, leafAddrs)
}

// compareChunkOffsets orders two chunk coordinate tuples dimension by
// dimension, matching the key ordering HDF5 B-tree v1 chunk indices require.
func compareChunkOffsets(a, b []uint64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func writeChunkKey(w *binary.Writer, offset []uint64, ndims int, size, filterMask uint32) error {
	if err := w.WriteUint32(size); err != nil {
		return err
	}
	if err := w.WriteUint32(filterMask); err != nil {
		return err
	}
	for j := 0; j < ndims; j++ {
		if err := w.WriteUint64(offset[j]); err != nil {
			return err
		}
	}
	// Trailing "element size" dimension HDF5 carries in chunk B-tree keys;
	// left at 0, which the reader never interprets (see v1_chunk.go).
	if err := w.WriteUint64(0); err != nil {
		return err
	}
	return nil
}

func chunkNodeSize(w *binary.Writer, ndims int, nEntries int) int64 {
	header := int64(4 + 1 + 1 + 2 + 2*w.OffsetSize())
	keySize := int64(4 + 4 + 8*(ndims+1))
	return header + int64(nEntries+1)*keySize + int64(nEntries)*int64(w.OffsetSize())
}

func writeChunkLeaf(w *binary.Writer, alloc func(size int64) uint64, ndims int, group []ChunkWriteEntry) (uint64, error) {
	size := chunkNodeSize(w, ndims, len(group))
	addr := alloc(size)
	nw := w.At(int64(addr))

	if err := nw.WriteBytes([]byte("TREE")); err != nil {
		return 0, err
	}
	if err := nw.WriteUint8(1); err != nil { // node type: chunk
		return 0, err
	}
	if err := nw.WriteUint8(0); err != nil { // node level: leaf
		return 0, err
	}
	if err := nw.WriteUint16(uint16(len(group))); err != nil {
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil { // left sibling, patched by linkSiblings
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil { // right sibling, patched by linkSiblings
		return 0, err
	}

	for _, entry := range group {
		if err := writeChunkKey(nw, entry.Offset, ndims, entry.Size, entry.FilterMask); err != nil {
			return 0, err
		}
		if err := nw.WriteOffset(entry.Address); err != nil {
			return 0, err
		}
	}
	// Final bounding key: no child pointer follows it.
	last := group[len(group)-1]
	if err := writeChunkKey(nw, last.Offset, ndims, 0, 0); err != nil {
		return 0, err
	}

	return addr, nil
}

func writeChunkInternal(w *binary.Writer, alloc func(size int64) uint64, ndims int, firstKeys [][]uint64, childAddrs []uint64) (uint64, error) {
	header := int64(4 + 1 + 1 + 2 + 2*w.OffsetSize())
	keySize := int64(4 + 4 + 8*(ndims+1))
	size := header + int64(len(childAddrs)+1)*keySize + int64(len(childAddrs))*int64(w.OffsetSize())
	addr := alloc(size)
	nw := w.At(int64(addr))

	if err := nw.WriteBytes([]byte("TREE")); err != nil {
		return 0, err
	}
	if err := nw.WriteUint8(1); err != nil {
		return 0, err
	}
	if err := nw.WriteUint8(1); err != nil { // node level: one above leaves
		return 0, err
	}
	if err := nw.WriteUint16(uint16(len(childAddrs))); err != nil {
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil { // internal root has no siblings
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil {
		return 0, err
	}

	for i, childAddr := range childAddrs {
		if err := writeChunkKey(nw, firstKeys[i], ndims, 0, 0); err != nil {
			return 0, err
		}
		if err := nw.WriteOffset(childAddr); err != nil {
			return 0, err
		}
	}
	last := firstKeys[len(firstKeys)-1]
	if err := writeChunkKey(nw, last, ndims, 0, 0); err != nil {
		return 0, err
	}

	return addr, nil
}

// linkSiblings patches each leaf's left/right sibling pointers now that
// every leaf's address is known.
func linkSiblings(w *binary.Writer, addrs []uint64) error {
	for i, addr := range addrs {
		// Layout: signature(4) + nodeType(1) + nodeLevel(1) + entriesUsed(2)
		// then left sibling, then right sibling, each offset-sized.
		siblingsPos := int64(addr) + 4 + 1 + 1 + 2
		lw := w.At(siblingsPos)
		if i > 0 {
			if err := lw.WriteOffset(addrs[i-1]); err != nil {
				return err
			}
		} else {
			if err := lw.WriteUndefinedOffset(); err != nil {
				return err
			}
		}
		if i < len(addrs)-1 {
			if err := lw.WriteOffset(addrs[i+1]); err != nil {
				return err
			}
		} else {
			if err := lw.WriteUndefinedOffset(); err != nil {
				return err
			}
		}
	}
	return nil
}
