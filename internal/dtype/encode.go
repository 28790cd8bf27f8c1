package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/h5kit/hdf5/internal/message"
)

// Encode converts Go values to raw HDF5 bytes.
// The src parameter should be a slice or array of the appropriate type.
func Encode(dt *message.Datatype, src interface{}) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}

	srcVal := reflect.ValueOf(src)

	// Handle pointer to slice/array
	if srcVal.Kind() == reflect.Ptr {
		srcVal = srcVal.Elem()
	}

	switch dt.Class {
	case message.ClassFixedPoint:
		return encodeFixedPoint(dt, srcVal)
	case message.ClassFloatPoint:
		return encodeFloatPoint(dt, srcVal)
	case message.ClassString:
		return encodeString(dt, srcVal)
	case message.ClassCompound:
		return encodeCompound(dt, srcVal)
	default:
		return nil, fmt.Errorf("unsupported datatype class for encoding: %d", dt.Class)
	}
}

// EncodeScalar encodes a single scalar value.
func EncodeScalar(dt *message.Datatype, src interface{}) ([]byte, error) {
	// Wrap scalar in slice for encoding
	srcVal := reflect.ValueOf(src)
	sliceVal := reflect.MakeSlice(reflect.SliceOf(srcVal.Type()), 1, 1)
	sliceVal.Index(0).Set(srcVal)
	return Encode(dt, sliceVal.Interface())
}

func encodeFixedPoint(dt *message.Datatype, srcVal reflect.Value) ([]byte, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if dt.ByteOrder == message.OrderBE {
		order = binary.BigEndian
	}

	size := int(dt.Size)
	var n int

	switch srcVal.Kind() {
	case reflect.Slice, reflect.Array:
		n = srcVal.Len()
	default:
		// Scalar value
		n = 1
		sliceVal := reflect.MakeSlice(reflect.SliceOf(srcVal.Type()), 1, 1)
		sliceVal.Index(0).Set(srcVal)
		srcVal = sliceVal
	}

	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		offset := i * size

		switch elem.Kind() {
		case reflect.Int8:
			data[offset] = byte(elem.Int())
		case reflect.Int16:
			order.PutUint16(data[offset:], uint16(elem.Int()))
		case reflect.Int32:
			order.PutUint32(data[offset:], uint32(elem.Int()))
		case reflect.Int64, reflect.Int:
			order.PutUint64(data[offset:], uint64(elem.Int()))
		case reflect.Uint8:
			data[offset] = byte(elem.Uint())
		case reflect.Uint16:
			order.PutUint16(data[offset:], uint16(elem.Uint()))
		case reflect.Uint32:
			order.PutUint32(data[offset:], uint32(elem.Uint()))
		case reflect.Uint64, reflect.Uint:
			order.PutUint64(data[offset:], elem.Uint())
		case reflect.Bool:
			// Booleans ride the fixed-point encoding as a single unsigned
			// byte (0/1); there is no dedicated HDF5 boolean class.
			if elem.Bool() {
				data[offset] = 1
			}
		default:
			return nil, fmt.Errorf("cannot encode %v as fixed-point", elem.Kind())
		}
	}

	return data, nil
}

// encodeCompound encodes a struct or slice/array of structs into the
// compound datatype's packed row layout, delegating each field to Encode
// against that member's own datatype so fixed-point/float/string members
// reuse the same wrapping/byte-order logic as top-level values.
func encodeCompound(dt *message.Datatype, srcVal reflect.Value) ([]byte, error) {
	var n int

	switch srcVal.Kind() {
	case reflect.Slice, reflect.Array:
		n = srcVal.Len()
	case reflect.Struct:
		n = 1
		sliceVal := reflect.MakeSlice(reflect.SliceOf(srcVal.Type()), 1, 1)
		sliceVal.Index(0).Set(srcVal)
		srcVal = sliceVal
	default:
		return nil, fmt.Errorf("cannot encode %v as compound", srcVal.Kind())
	}

	size := int(dt.Size)
	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		if elem.Kind() != reflect.Struct {
			return nil, fmt.Errorf("cannot encode %v as a compound row", elem.Kind())
		}
		if elem.NumField() < len(dt.Members) {
			return nil, fmt.Errorf("row has %d fields, compound type has %d members", elem.NumField(), len(dt.Members))
		}
		base := i * size

		for mi, member := range dt.Members {
			fieldBytes, err := Encode(member.Type, elem.Field(mi).Interface())
			if err != nil {
				return nil, fmt.Errorf("compound member %q: %w", member.Name, err)
			}
			copy(data[base+int(member.ByteOffset):], fieldBytes)
		}
	}

	return data, nil
}

func encodeFloatPoint(dt *message.Datatype, srcVal reflect.Value) ([]byte, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if dt.ByteOrder == message.OrderBE {
		order = binary.BigEndian
	}

	size := int(dt.Size)
	var n int

	switch srcVal.Kind() {
	case reflect.Slice, reflect.Array:
		n = srcVal.Len()
	default:
		n = 1
		sliceVal := reflect.MakeSlice(reflect.SliceOf(srcVal.Type()), 1, 1)
		sliceVal.Index(0).Set(srcVal)
		srcVal = sliceVal
	}

	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		offset := i * size

		switch elem.Kind() {
		case reflect.Float32:
			if size == 4 {
				order.PutUint32(data[offset:], math.Float32bits(float32(elem.Float())))
			} else {
				order.PutUint64(data[offset:], math.Float64bits(elem.Float()))
			}
		case reflect.Float64:
			if size == 4 {
				order.PutUint32(data[offset:], math.Float32bits(float32(elem.Float())))
			} else {
				order.PutUint64(data[offset:], math.Float64bits(elem.Float()))
			}
		default:
			return nil, fmt.Errorf("cannot encode %v as float", elem.Kind())
		}
	}

	return data, nil
}

func encodeString(dt *message.Datatype, srcVal reflect.Value) ([]byte, error) {
	size := int(dt.Size)
	var n int

	switch srcVal.Kind() {
	case reflect.Slice, reflect.Array:
		n = srcVal.Len()
	case reflect.String:
		// Single string
		n = 1
		sliceVal := reflect.MakeSlice(reflect.SliceOf(srcVal.Type()), 1, 1)
		sliceVal.Index(0).Set(srcVal)
		srcVal = sliceVal
	default:
		return nil, fmt.Errorf("cannot encode %v as string", srcVal.Kind())
	}

	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		str := elem.String()
		offset := i * size

		// Copy string bytes, pad or truncate as needed
		strBytes := []byte(str)
		copyLen := len(strBytes)
		if copyLen > size {
			copyLen = size
		}
		copy(data[offset:offset+copyLen], strBytes)

		// Handle padding based on string padding type
		switch dt.StringPadding {
		case message.PadNullTerm:
			// Ensure null termination if space allows
			if copyLen < size {
				data[offset+copyLen] = 0
			}
		case message.PadNullPad:
			// Remaining bytes are already zero (from make)
		case message.PadSpacePad:
			// Pad with spaces
			for j := copyLen; j < size; j++ {
				data[offset+j] = ' '
			}
		}
	}

	return data, nil
}

// GoTypeToDatatype creates an HDF5 datatype from a Go type.
func GoTypeToDatatype(t reflect.Type) (*message.Datatype, error) {
	// Handle pointer types
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	// Handle slice/array element types
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int8:
		return message.NewFixedPointDatatype(1, true, message.OrderLE), nil
	case reflect.Int16:
		return message.NewFixedPointDatatype(2, true, message.OrderLE), nil
	case reflect.Int32:
		return message.NewFixedPointDatatype(4, true, message.OrderLE), nil
	case reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(8, true, message.OrderLE), nil
	case reflect.Uint8:
		return message.NewFixedPointDatatype(1, false, message.OrderLE), nil
	case reflect.Uint16:
		return message.NewFixedPointDatatype(2, false, message.OrderLE), nil
	case reflect.Uint32:
		return message.NewFixedPointDatatype(4, false, message.OrderLE), nil
	case reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(8, false, message.OrderLE), nil
	case reflect.Float32:
		return message.NewFloatDatatype(4, message.OrderLE), nil
	case reflect.Float64:
		return message.NewFloatDatatype(8, message.OrderLE), nil
	case reflect.String:
		// Default to variable-length string
		return message.NewVarLenStringDatatype(message.CharsetUTF8), nil
	case reflect.Bool:
		// No dedicated HDF5 boolean class; store as an unsigned byte.
		return message.NewFixedPointDatatype(1, false, message.OrderLE), nil
	case reflect.Struct:
		return compoundDatatypeFromStruct(t)
	default:
		return nil, fmt.Errorf("unsupported Go type: %v", t)
	}
}

// compoundDatatypeFromStruct builds a compound datatype laying out one
// member per exported struct field, in declaration order, packed back to
// back with no padding — this is the bridge CreateDatasetFromSource's
// generated row type (and any caller-supplied []struct{...}) goes through.
func compoundDatatypeFromStruct(t reflect.Type) (*message.Datatype, error) {
	var members []message.CompoundMember
	offset := uint32(0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported field, not part of the wire layout
		}

		memberType, err := GoTypeToDatatype(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}

		members = append(members, message.CompoundMember{
			Name:       field.Name,
			ByteOffset: offset,
			Type:       memberType,
		})
		offset += memberType.Size
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("struct %v has no exported fields to use as compound members", t)
	}

	return message.NewCompoundDatatype(offset, members), nil
}

// DataSize returns the total size in bytes needed to store n elements of the given datatype.
func DataSize(dt *message.Datatype, n uint64) uint64 {
	return uint64(dt.Size) * n
}
