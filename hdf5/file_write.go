package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/h5kit/hdf5/internal/alloc"
	binpkg "github.com/h5kit/hdf5/internal/binary"
	"github.com/h5kit/hdf5/internal/iobuf"
	"github.com/h5kit/hdf5/internal/logging"
	"github.com/h5kit/hdf5/internal/message"
	"github.com/h5kit/hdf5/internal/object"
	"github.com/h5kit/hdf5/internal/superblock"
)

// Note: encoding/binary is still needed for Create() which uses binary.LittleEndian

// createFilePerm is the mode Create's atomic commit gives a brand-new file,
// matching what os.Create(path) would have produced (subject to umask).
const createFilePerm = 0o666

// Create creates a new HDF5 file at the given path. By default it uses a V2
// superblock and V2 object headers; WithFormatVersion(0 or 1) switches to
// the legacy v0-superblock, V1-object-header, symbol-table-node profile.
//
// Everything written during the session is buffered in memory and only
// reaches path when Close commits it via internal/iobuf.Commit: a sibling
// temp file, fsynced, then renamed over path. Nothing partial is ever
// visible at path, even if the process dies mid-write.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	buf := iobuf.New()
	cfg := binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: options.offsetSize,
		LengthSize: options.lengthSize,
	}
	writer := binpkg.NewWriter(buf, cfg)

	if options.formatVersion < 2 {
		return createLegacy(path, buf, writer, options)
	}

	// Create superblock
	sb := superblock.NewSuperblock()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.LengthSize = uint8(options.lengthSize)

	// Write superblock (will need to update EOF and root group address later)
	sbSize := sb.Size()

	// Calculate root group address (right after superblock)
	rootGroupAddr := uint64(sbSize)
	sb.RootGroupAddress = rootGroupAddr

	// Create root group object header (empty group)
	rootMessages := object.NewEmptyGroupHeader()

	// Calculate header size to determine EOF
	// Use minimum chunk size for compatibility with h5py
	headerSize := object.HeaderSizeWithMinChunk(writer, rootMessages, object.MinGroupChunkSize)
	eofAddr := uint64(sbSize + headerSize)
	sb.EOFAddress = eofAddr

	// Now write the superblock with correct addresses
	if _, err := sb.Write(writer); err != nil {
		return nil, err
	}

	// Write root group object header with minimum chunk size
	if _, err := object.WriteHeaderWithMinChunk(writer, rootMessages, object.MinGroupChunkSize); err != nil {
		return nil, err
	}

	// Create allocator starting at EOF
	allocator := alloc.New(eofAddr)

	// Create File structure
	f := &File{
		path:          path,
		pendingBuf:    buf,
		superblock:    sb,
		writable:      true,
		writer:        writer,
		allocator:     allocator,
		formatVersion: 2,
		logger:        logging.Default,
	}

	// Create root group
	f.root = &Group{
		file:   f,
		path:   "/",
		header: nil, // Will be loaded on demand
		addr:   rootGroupAddr,
	}

	f.log().Debugf("hdf5: created %s (format version 2)", path)
	return f, nil
}

// createLegacy builds a file using the v0-superblock / V1-object-header /
// symbol-table-node profile. The root group starts with zero members: its
// local heap holds only the reserved empty-string sentinel and its symbol
// table node is empty, matching what a real HDF5 1.6 writer emits for a
// freshly created file.
func createLegacy(path string, buf *iobuf.Buffer, writer *binpkg.Writer, options *fileOptions) (*File, error) {
	sb := superblock.NewSuperblockV0()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.LengthSize = uint8(options.lengthSize)

	sbSize := sb.SizeV0()
	allocator := alloc.New(0)

	// Reserve the superblock's own space first so every later allocation
	// (root group header, local heap, SNOD, B-tree leaf) lands after it.
	allocFn := allocator.AllocFunc()
	allocFn(int64(sbSize))

	rootGroupAddr := allocFn(int64(object.HeaderSizeV1WithMinSize(writer, []message.Message{&message.SymbolTable{}}, object.MinGroupChunkSize)))
	sb.RootGroupAddress = rootGroupAddr

	btreeAddr, heapAddr, err := message.WriteGroupSymbolTable(writer, allocFn, nil)
	if err != nil {
		return nil, err
	}
	sb.RootGroupBTreeAddress = btreeAddr
	sb.RootGroupLocalHeapAddress = heapAddr

	rootMessages := []message.Message{message.NewSymbolTable(btreeAddr, heapAddr)}
	if _, err := object.WriteHeaderV1WithMinSize(writer.At(int64(rootGroupAddr)), rootMessages, object.MinGroupChunkSize); err != nil {
		return nil, err
	}

	sb.EOFAddress = allocator.EOFAddr()
	if _, err := sb.WriteV0(writer.At(0)); err != nil {
		return nil, err
	}

	f := &File{
		path:          path,
		pendingBuf:    buf,
		superblock:    sb,
		writable:      true,
		writer:        writer,
		allocator:     allocator,
		formatVersion: options.formatVersion,
		logger:        logging.Default,
	}
	f.root = &Group{
		file: f,
		path: "/",
		addr: rootGroupAddr,
	}
	f.log().Debugf("hdf5: created %s (legacy format version %d)", path, options.formatVersion)
	return f, nil
}

// Flush writes any pending changes to disk. For a pendingBuf-backed file
// (freshly Create'd, not yet committed) this only updates the in-memory
// buffer; the atomic commit to path happens in closeWritable.
func (f *File) Flush() error {
	if !f.writable {
		return nil
	}

	// Update superblock with current EOF from allocator
	f.superblock.EOFAddress = f.allocator.EOFAddr()

	// Rewrite superblock at beginning of file
	w := f.writer.At(0)
	if f.formatVersion < 2 {
		if _, err := f.superblock.WriteV0(w); err != nil {
			return err
		}
	} else if _, err := f.superblock.Write(w); err != nil {
		return err
	}

	if f.pendingBuf != nil {
		return nil
	}

	// Sync to disk
	return f.file.Sync()
}

// allocate reserves space in the file and returns the address.
func (f *File) allocate(size int64) uint64 {
	return f.allocator.Alloc(uint64(size))
}

// AllocStats returns allocation statistics (for debugging/testing).
func (f *File) AllocStats() alloc.Stats {
	if f.allocator == nil {
		return alloc.Stats{}
	}
	return f.allocator.Stats()
}

// closeWritable handles closing a writable file. For a freshly Create'd
// file this is where the buffered content actually reaches disk, via one
// atomic temp+fsync+rename (internal/iobuf.Commit) rather than incremental
// writes to an os.File.
func (f *File) closeWritable() error {
	// Flush pending changes
	if err := f.Flush(); err != nil {
		return err
	}

	if f.pendingBuf != nil {
		if err := iobuf.Commit(f.path, f.pendingBuf, createFilePerm); err != nil {
			return fmt.Errorf("committing %s: %w", f.path, err)
		}
	}

	return nil
}

// OpenReadWrite opens an existing HDF5 file for reading and writing.
// This allows adding new groups, datasets, and attributes to existing files.
func OpenReadWrite(path string) (*File, error) {
	// Open file with read-write permissions
	osFile, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	// Parse existing superblock
	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, err
	}

	// Create reader with correct configuration
	readerCfg := sb.ReaderConfig()
	reader := binpkg.NewReader(osFile, readerCfg)

	// Create writer with same configuration as reader
	// This ensures we use the same byte order, offset size, and length size
	writer := binpkg.NewWriter(osFile, readerCfg)

	// Create allocator starting at current EOF
	allocator := alloc.New(sb.EOFAddress)

	formatVersion := 2
	if sb.Version < 2 {
		formatVersion = int(sb.Version)
	}

	// Create File structure
	f := &File{
		path:          path,
		file:          osFile,
		reader:        reader,
		superblock:    sb,
		writable:      true,
		writer:        writer,
		allocator:     allocator,
		formatVersion: formatVersion,
		logger:        logging.Default,
	}

	// Load root group
	root, err := f.openGroupAt(sb.RootGroupAddress, "/")
	if err != nil {
		osFile.Close()
		return nil, err
	}
	f.root = root

	f.log().Debugf("hdf5: opened %s for read-write (format version %d)", path, formatVersion)
	return f, nil
}

// IsWritable returns true if the file was opened for writing.
func (f *File) IsWritable() bool {
	return f.writable
}
