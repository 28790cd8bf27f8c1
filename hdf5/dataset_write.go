package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/h5kit/hdf5/internal/btree"
	"github.com/h5kit/hdf5/internal/dtype"
	"github.com/h5kit/hdf5/internal/filter"
	"github.com/h5kit/hdf5/internal/layout"
	"github.com/h5kit/hdf5/internal/message"
	"github.com/h5kit/hdf5/internal/object"
	"github.com/h5kit/hdf5/internal/valuesource"
)

// CreateDataset creates a new dataset with the given name, dimensions, and data type.
// The datatype is inferred from the provided Go type.
func (g *Group) CreateDataset(name string, data interface{}, opts ...DatasetOption) (*Dataset, error) {
	if !g.file.writable {
		return nil, fmt.Errorf("file is not writable")
	}

	if name == "" {
		return nil, fmt.Errorf("dataset name cannot be empty")
	}

	options := defaultDatasetOptions()
	for _, opt := range opts {
		opt(options)
	}

	// Get the data value and type
	dataVal := reflect.ValueOf(data)
	if dataVal.Kind() == reflect.Ptr {
		dataVal = dataVal.Elem()
	}

	// Determine dimensions and element type
	dims, elemType, err := inferDimensionsAndType(dataVal)
	if err != nil {
		return nil, fmt.Errorf("inferring dimensions: %w", err)
	}

	// Create datatype from Go type
	datatype, err := dtype.GoTypeToDatatype(elemType)
	if err != nil {
		return nil, fmt.Errorf("creating datatype: %w", err)
	}

	// Create dataspace
	dataspace := message.NewDataspace(dims, options.maxDims)

	// Calculate total number of elements
	numElements := uint64(1)
	for _, d := range dims {
		numElements *= d
	}

	// Encode the data
	rawData, err := dtype.Encode(datatype, data)
	if err != nil {
		return nil, fmt.Errorf("encoding data: %w", err)
	}

	// Determine layout
	var dataLayout *message.DataLayout
	var filterMsg *message.FilterPipeline

	if options.chunks != nil {
		// Chunked layout
		chunkDims := make([]uint32, len(options.chunks))
		for i, c := range options.chunks {
			chunkDims[i] = uint32(c)
		}

		filterInfos := buildFilterInfos(options, datatype.Size)
		var pipeline *filter.Pipeline
		if len(filterInfos) > 0 {
			filterMsg = message.NewFilterPipeline(filterInfos...)
			pipeline, err = filter.NewPipeline(filterMsg)
			if err != nil {
				return nil, fmt.Errorf("building filter pipeline: %w", err)
			}
		}

		chunks := layout.SplitIntoChunks(rawData, dims, chunkDims, datatype.Size)
		entries := make([]btree.ChunkWriteEntry, len(chunks))
		var onlyChunkAddr uint64

		for i, chunk := range chunks {
			encoded := chunk.Data
			var filterMask uint32
			if pipeline != nil {
				encoded, filterMask, err = pipeline.Encode(chunk.Data)
				if err != nil {
					return nil, fmt.Errorf("encoding chunk: %w", err)
				}
			}

			addr := g.file.allocate(int64(len(encoded)))
			cdw := g.file.writer.At(int64(addr))
			if err := cdw.WriteBytes(encoded); err != nil {
				return nil, fmt.Errorf("writing chunk: %w", err)
			}

			entries[i] = btree.ChunkWriteEntry{
				Offset:     chunk.Offset,
				FilterMask: filterMask,
				Size:       uint32(len(encoded)),
				Address:    addr,
			}
			if len(chunks) == 1 {
				onlyChunkAddr = addr
			}
		}

		hasUnlimitedDim := false
		for _, d := range options.maxDims {
			if d == 0 {
				hasUnlimitedDim = true
				break
			}
		}

		switch {
		case len(chunks) == 1 && filterMsg == nil:
			// Single unfiltered chunk - Implicit index, the address points
			// straight at the chunk data (matches h5py's own convention).
			dataLayout = message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexImplicit)
			dataLayout.ChunkIndexAddr = onlyChunkAddr

		case hasUnlimitedDim:
			// Resizable dataset: HDF5 1.10+ readers expect an Extensible
			// Array index for chunked datasets with an unlimited dimension.
			cw := layout.NewChunkWriter(g.file.writer, chunkDims, datatype.Size, g.file.allocate)
			chunkAddrs := make([]uint64, len(entries))
			for i, e := range entries {
				chunkAddrs[i] = e.Address
			}
			indexAddr, err := cw.WriteExtensibleArrayIndex(chunkAddrs)
			if err != nil {
				return nil, fmt.Errorf("writing chunk index: %w", err)
			}
			dataLayout = message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexExtensibleArray)
			dataLayout.ChunkIndexAddr = indexAddr

		default:
			// Fixed-extent, possibly-filtered, possibly-multi-chunk dataset:
			// the B-tree v1 chunk index, the HDF5 1.8-compatible default.
			indexAddr, err := btree.WriteChunkIndex(g.file.writer, g.file.allocate, len(dims), entries)
			if err != nil {
				return nil, fmt.Errorf("writing chunk index: %w", err)
			}
			dataLayout = message.NewChunkedLayoutBTreeV1(chunkDims, datatype.Size)
			dataLayout.ChunkIndexAddr = indexAddr
		}
	} else {
		// Contiguous layout
		dataSize := uint64(len(rawData))
		dataAddr := g.file.allocate(int64(dataSize))

		// Write the raw data
		w := g.file.writer.At(int64(dataAddr))
		if err := w.WriteBytes(rawData); err != nil {
			return nil, fmt.Errorf("writing data: %w", err)
		}

		dataLayout = message.NewContiguousLayout(dataAddr, dataSize)
	}

	// Create dataset object header
	messages := object.NewDatasetHeader(dataspace, datatype, dataLayout)
	if filterMsg != nil {
		messages = append(messages, filterMsg)
	}

	// Add attributes if specified
	for _, attr := range options.attributes {
		attrMsg, err := createAttributeMessage(attr.name, attr.value)
		if err != nil {
			return nil, fmt.Errorf("creating attribute %q: %w", attr.name, err)
		}
		messages = append(messages, attrMsg)
	}

	// Calculate header size and allocate
	headerSize := object.HeaderSize(g.file.writer, messages)
	datasetAddr := g.file.allocate(int64(headerSize))

	// Write the dataset object header
	hw := g.file.writer.At(int64(datasetAddr))
	if _, err := object.WriteHeader(hw, messages); err != nil {
		return nil, fmt.Errorf("writing dataset header: %w", err)
	}

	// Create a hard link from parent group to this dataset
	link := message.NewHardLink(name, datasetAddr)
	if err := g.addLink(link); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}

	// Calculate the path for the new dataset
	newPath := path.Join(g.path, name)
	if g.path == "/" {
		newPath = "/" + name
	}

	// Create the Dataset object
	ds := &Dataset{
		file:      g.file,
		path:      newPath,
		header:    nil, // Will be loaded on demand
		dataspace: dataspace,
		datatype:  datatype,
		layout:    nil,
	}

	return ds, nil
}

// CreateDatasetFromSource creates a compound, column-wise dataset from an
// external table container (e.g. a DataFrame) via valuesource.TableSource,
// so this package never depends on that container's concrete type. It
// builds one exported Go struct field per column, fills a row slice from
// t.Columns(), and hands that slice to CreateDataset — the same
// compound-datatype write path a caller's own []struct{...} would take.
func (g *Group) CreateDatasetFromSource(name string, t valuesource.TableSource, opts ...DatasetOption) (*Dataset, error) {
	columns := t.Columns()
	if len(columns) == 0 {
		return nil, fmt.Errorf("table source for dataset %q has no columns", name)
	}

	rowType, err := valuesource.StructTypeFor(columns)
	if err != nil {
		return nil, fmt.Errorf("building row type: %w", err)
	}

	rows := t.Rows()
	data := reflect.MakeSlice(reflect.SliceOf(rowType), rows, rows)
	for ci, col := range columns {
		if len(col.Values) != rows {
			return nil, fmt.Errorf("column %q has %d values, want %d", col.Name, len(col.Values), rows)
		}
		for ri, v := range col.Values {
			if err := valuesource.SetField(data.Index(ri).Field(ci), v); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", col.Name, ri, err)
			}
		}
	}

	return g.CreateDataset(name, data.Interface(), opts...)
}

// CreateDatasetWithType creates a new dataset with explicit dimensions and datatype.
func (g *Group) CreateDatasetWithType(name string, dims []uint64, dt *message.Datatype, opts ...DatasetOption) (*Dataset, error) {
	if !g.file.writable {
		return nil, fmt.Errorf("file is not writable")
	}

	if name == "" {
		return nil, fmt.Errorf("dataset name cannot be empty")
	}

	options := defaultDatasetOptions()
	for _, opt := range opts {
		opt(options)
	}

	// Create dataspace
	dataspace := message.NewDataspace(dims, options.maxDims)

	// Calculate total size
	numElements := uint64(1)
	for _, d := range dims {
		numElements *= d
	}
	dataSize := dtype.DataSize(dt, numElements)

	// Allocate space for data (will be written later)
	dataAddr := g.file.allocate(int64(dataSize))

	// Create layout
	layout := message.NewContiguousLayout(dataAddr, dataSize)

	// Create dataset object header
	messages := object.NewDatasetHeader(dataspace, dt, layout)

	// Calculate header size and allocate
	headerSize := object.HeaderSize(g.file.writer, messages)
	datasetAddr := g.file.allocate(int64(headerSize))

	// Write the dataset object header
	hw := g.file.writer.At(int64(datasetAddr))
	if _, err := object.WriteHeader(hw, messages); err != nil {
		return nil, fmt.Errorf("writing dataset header: %w", err)
	}

	// Create a hard link from parent group to this dataset
	link := message.NewHardLink(name, datasetAddr)
	if err := g.addLink(link); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}

	// Calculate the path
	newPath := path.Join(g.path, name)
	if g.path == "/" {
		newPath = "/" + name
	}

	// Create the Dataset object with write capability
	ds := &Dataset{
		file:      g.file,
		path:      newPath,
		header:    nil,
		dataspace: dataspace,
		datatype:  dt,
		layout:    nil,
		// Write support
		dataAddr:    dataAddr,
		dataSize:    dataSize,
		numElements: numElements,
	}

	return ds, nil
}

// Write writes data to a dataset that was created with CreateDatasetWithType.
func (ds *Dataset) Write(data interface{}) error {
	if !ds.file.writable {
		return fmt.Errorf("file is not writable")
	}

	if ds.dataAddr == 0 {
		return fmt.Errorf("dataset was not created for writing")
	}

	// Encode the data
	rawData, err := dtype.Encode(ds.datatype, data)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}

	// Verify size matches
	if uint64(len(rawData)) != ds.dataSize {
		return fmt.Errorf("data size mismatch: expected %d, got %d", ds.dataSize, len(rawData))
	}

	// Write the raw data
	w := ds.file.writer.At(int64(ds.dataAddr))
	if err := w.WriteBytes(rawData); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}

	return nil
}

// buildFilterInfos translates dataset options into the filter pipeline
// order HDF5 applies on write: shuffle (regroups bytes for compressors),
// then the configured compressor, then Fletcher32 as a trailing checksum
// over the already-filtered bytes.
func buildFilterInfos(opts *datasetOptions, elementSize uint32) []message.FilterInfo {
	var infos []message.FilterInfo
	if opts.shuffle {
		infos = append(infos, message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{elementSize}})
	}
	if opts.compressionLvl > 0 {
		infos = append(infos, message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{uint32(opts.compressionLvl)}})
	}
	if opts.lzf {
		infos = append(infos, message.FilterInfo{ID: message.FilterLZF})
	}
	if opts.fletcher32 {
		infos = append(infos, message.FilterInfo{ID: message.FilterFletcher32})
	}
	return infos
}

// inferDimensionsAndType infers the dimensions and element type from a Go
// value. This is the one place CreateDataset builds a valuesource.Source
// itself, via the package's reflect adapter; everywhere else a Source comes
// from a caller's own container (see CreateDatasetFromSource).
func inferDimensionsAndType(val reflect.Value) ([]uint64, reflect.Type, error) {
	src, err := valuesource.FromReflect(val)
	if err != nil {
		return nil, nil, fmt.Errorf("inferring shape: %w", err)
	}
	return src.Dims(), src.ElemType(), nil
}

// createAttributeMessage creates an attribute message from a name and value.
func createAttributeMessage(name string, value interface{}) (*message.Attribute, error) {
	// Get the value and type
	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	// Check if this is a string type
	if val.Kind() == reflect.String {
		return createStringAttribute(name, val.String())
	}

	// Check if this is a slice of strings
	if val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.String {
		return createStringArrayAttribute(name, val)
	}

	// Determine if scalar or array
	var dims []uint64
	var elemType reflect.Type

	switch val.Kind() {
	case reflect.Slice, reflect.Array:
		dims = []uint64{uint64(val.Len())}
		if val.Len() > 0 {
			elemType = val.Index(0).Type()
		} else {
			elemType = val.Type().Elem()
		}
	default:
		// Scalar
		dims = nil // scalar dataspace
		elemType = val.Type()
	}

	// Create datatype from element type
	datatype, err := dtype.GoTypeToDatatype(elemType)
	if err != nil {
		return nil, fmt.Errorf("unsupported attribute type %v: %w", elemType, err)
	}

	// Create dataspace
	var dataspace *message.Dataspace
	if dims == nil {
		dataspace = message.NewScalarDataspace()
	} else {
		dataspace = message.NewDataspace(dims, nil)
	}

	// Encode the value to bytes
	data, err := dtype.Encode(datatype, value)
	if err != nil {
		return nil, fmt.Errorf("encoding attribute value: %w", err)
	}

	return message.NewAttribute(name, datatype, dataspace, data), nil
}

// createStringAttribute creates an attribute with a fixed-length string value.
func createStringAttribute(name string, s string) (*message.Attribute, error) {
	// Use fixed-length string (add 1 for null terminator)
	strLen := len(s) + 1

	// Create fixed-length string datatype
	datatype := message.NewStringDatatype(uint32(strLen), message.PadNullTerm, message.CharsetASCII)

	// Create scalar dataspace
	dataspace := message.NewScalarDataspace()

	// Encode string with null terminator
	data := make([]byte, strLen)
	copy(data, s)
	data[len(s)] = 0

	return message.NewAttribute(name, datatype, dataspace, data), nil
}

// createStringArrayAttribute creates an attribute with an array of fixed-length strings.
func createStringArrayAttribute(name string, val reflect.Value) (*message.Attribute, error) {
	n := val.Len()
	if n == 0 {
		return nil, fmt.Errorf("empty string array not supported")
	}

	// Find maximum string length
	maxLen := 0
	for i := 0; i < n; i++ {
		s := val.Index(i).String()
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}

	// Add 1 for null terminator
	strLen := maxLen + 1

	// Create fixed-length string datatype
	datatype := message.NewStringDatatype(uint32(strLen), message.PadNullTerm, message.CharsetASCII)

	// Create 1D dataspace
	dataspace := message.NewDataspace([]uint64{uint64(n)}, nil)

	// Encode all strings
	data := make([]byte, n*strLen)
	for i := 0; i < n; i++ {
		s := val.Index(i).String()
		offset := i * strLen
		copy(data[offset:], s)
		data[offset+len(s)] = 0
	}

	return message.NewAttribute(name, datatype, dataspace, data), nil
}
