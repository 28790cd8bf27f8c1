package btree

import (
	"fmt"

	"github.com/h5kit/hdf5/internal/binary"
	"github.com/h5kit/hdf5/internal/iobuf"
)

// BTreeV2TypeLinkName is type 5: the link-name index over a dense group's
// fractal heap, keyed by the Jenkins lookup3 hash of each link's name.
const BTreeV2TypeLinkName uint8 = 5

const linkNameRecordSize = 4 + 8 // name hash + fractal heap ID

// LinkNameRecord is one entry in a link-name B-tree v2 index: the hash of a
// link's name and the heap ID of its Link message in the owning group's
// dense link fractal heap (internal/heap's managed-object encoding).
type LinkNameRecord struct {
	NameHash uint32
	HeapID   [8]byte
}

// ReadLinkNameIndex reads every record in a link-name B-tree v2, following
// internal nodes to arbitrary depth (a real HDF5 writer may have split the
// tree; this codec's own writer never does, but must still read either).
func ReadLinkNameIndex(r *binary.Reader, btreeAddr uint64) ([]LinkNameRecord, error) {
	header, err := readBTreeV2Header(r, btreeAddr)
	if err != nil {
		return nil, fmt.Errorf("reading link-name B-tree v2 header: %w", err)
	}
	if header.Type != BTreeV2TypeLinkName {
		return nil, fmt.Errorf("unexpected B-tree v2 type: %d (expected %d for link names)", header.Type, BTreeV2TypeLinkName)
	}
	if header.TotalRecords == 0 {
		return nil, nil
	}
	if header.Depth == 0 {
		return readLinkLeaf(r, header.RootAddr, int(header.NumRootRecords))
	}
	return readLinkInternal(r, header.RootAddr, int(header.NumRootRecords), header, int(header.Depth))
}

func readLinkLeaf(r *binary.Reader, address uint64, numRecords int) ([]LinkNameRecord, error) {
	nr := r.At(int64(address))
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != "BTLF" {
		return nil, fmt.Errorf("invalid B-tree v2 leaf signature: %q", sig)
	}
	if _, err := nr.ReadUint8(); err != nil { // version
		return nil, err
	}
	if _, err := nr.ReadUint8(); err != nil { // type
		return nil, err
	}
	records := make([]LinkNameRecord, 0, numRecords)
	for i := 0; i < numRecords; i++ {
		rec, err := readLinkRecord(nr)
		if err != nil {
			return nil, fmt.Errorf("reading link record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readLinkInternal(r *binary.Reader, address uint64, numRecords int, header *btreeV2Header, depth int) ([]LinkNameRecord, error) {
	nr := r.At(int64(address))
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != "BTIN" {
		return nil, fmt.Errorf("invalid B-tree v2 internal node signature: %q", sig)
	}
	if _, err := nr.ReadUint8(); err != nil { // version
		return nil, err
	}
	if _, err := nr.ReadUint8(); err != nil { // type
		return nil, err
	}

	var records []LinkNameRecord
	readChild := func() error {
		childAddr, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		childCount, err := nr.ReadUint16()
		if err != nil {
			return err
		}
		var childRecords []LinkNameRecord
		if depth == 1 {
			childRecords, err = readLinkLeaf(r, childAddr, int(childCount))
		} else {
			childRecords, err = readLinkInternal(r, childAddr, int(childCount), header, depth-1)
		}
		if err != nil {
			return err
		}
		records = append(records, childRecords...)
		return nil
	}

	for i := 0; i < numRecords; i++ {
		if _, err := readLinkRecord(nr); err != nil {
			return nil, fmt.Errorf("reading internal record %d: %w", i, err)
		}
		if err := readChild(); err != nil {
			return nil, fmt.Errorf("reading child %d: %w", i, err)
		}
	}
	if err := readChild(); err != nil {
		return nil, fmt.Errorf("reading final child: %w", err)
	}
	return records, nil
}

func readLinkRecord(nr *binary.Reader) (LinkNameRecord, error) {
	var rec LinkNameRecord
	hash, err := nr.ReadUint32()
	if err != nil {
		return rec, err
	}
	heapID, err := nr.ReadBytes(8)
	if err != nil {
		return rec, err
	}
	rec.NameHash = hash
	copy(rec.HeapID[:], heapID)
	return rec, nil
}

// WriteLinkNameIndex writes a depth-0 link-name B-tree v2 (header + one leaf
// holding every record) and returns the header address. Records should
// already be present in ascending name-hash order, matching how HDF5 orders
// them for binary search; this writer does not itself split leaves, so a
// group whose dense link count would overflow one node is out of scope (see
// chunkBTreeNodeK's analogous note in v1_chunk_write.go).
func WriteLinkNameIndex(w *binary.Writer, alloc func(size int64) uint64, records []LinkNameRecord) (uint64, error) {
	headerSize := int64(4 + 1 + 1 + 4 + 2 + 2 + 1 + 1 + w.OffsetSize() + 2 + w.LengthSize() + 4)

	var rootAddr uint64
	if len(records) > 0 {
		leafSize := int64(4+1+1) + int64(len(records))*linkNameRecordSize
		leafAddr := alloc(leafSize)
		lw := w.At(int64(leafAddr))
		if err := lw.WriteBytes([]byte("BTLF")); err != nil {
			return 0, err
		}
		if err := lw.WriteUint8(0); err != nil {
			return 0, err
		}
		if err := lw.WriteUint8(BTreeV2TypeLinkName); err != nil {
			return 0, err
		}
		for _, rec := range records {
			if err := lw.WriteUint32(rec.NameHash); err != nil {
				return 0, err
			}
			if err := lw.WriteBytes(rec.HeapID[:]); err != nil {
				return 0, err
			}
		}
		rootAddr = leafAddr
	} else {
		rootAddr = w.UndefinedOffset()
	}

	// Buffer the header so its checksum can cover everything before it,
	// matching how object header v2 writing computes its trailing checksum
	// (internal/object/write.go's bufferWriterAt pattern).
	buf := iobuf.New()
	bw := binary.NewWriter(buf, binary.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})
	if err := bw.WriteBytes([]byte("BTHD")); err != nil {
		return 0, err
	}
	if err := bw.WriteUint8(0); err != nil { // version
		return 0, err
	}
	if err := bw.WriteUint8(BTreeV2TypeLinkName); err != nil {
		return 0, err
	}
	if err := bw.WriteUint32(uint32(headerSize)); err != nil { // node size: nominal, this writer never splits
		return 0, err
	}
	if err := bw.WriteUint16(linkNameRecordSize); err != nil {
		return 0, err
	}
	if err := bw.WriteUint16(0); err != nil { // depth: always 0
		return 0, err
	}
	if err := bw.WriteUint8(100); err != nil { // split percent, nominal
		return 0, err
	}
	if err := bw.WriteUint8(50); err != nil { // merge percent, nominal
		return 0, err
	}
	if err := bw.WriteOffset(rootAddr); err != nil {
		return 0, err
	}
	if err := bw.WriteUint16(uint16(len(records))); err != nil {
		return 0, err
	}
	if err := bw.WriteLength(uint64(len(records))); err != nil {
		return 0, err
	}
	checksum := binary.Lookup3Checksum(buf.Bytes())
	if err := bw.WriteUint32(checksum); err != nil {
		return 0, err
	}

	headerAddr := alloc(int64(buf.Len()))
	if err := w.At(int64(headerAddr)).WriteBytes(buf.Bytes()); err != nil {
		return 0, err
	}

	return headerAddr, nil
}
