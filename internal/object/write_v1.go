package object

import (
	"github.com/h5kit/hdf5/internal/binary"
	"github.com/h5kit/hdf5/internal/message"
)

// WriteHeaderV1 writes a version 1 object header: no signature, no
// checksum trailer, each message padded individually to an 8-byte
// boundary. This is the format the symbol-table profile's objects use
// (v0/v1 superblock, SymbolTable message); the V2 header WriteHeader
// produces is the project's modern default.
func WriteHeaderV1(w *binary.Writer, messages []message.Message) (int64, error) {
	return WriteHeaderV1WithMinSize(w, messages, 0)
}

// WriteHeaderV1WithMinSize writes a V1 object header padded with a
// trailing NIL message so the header data occupies at least minHeaderSize
// bytes (matching h5py's convention of giving every group a minimum-size
// header so small additions don't immediately need a continuation block).
func WriteHeaderV1WithMinSize(w *binary.Writer, messages []message.Message, minHeaderSize int) (int64, error) {
	startPos := w.Pos()

	type encodedMessage struct {
		typ  uint16
		data []byte
	}

	var encoded []encodedMessage
	var messagesSize int
	for _, msg := range messages {
		s, ok := msg.(message.Serializable)
		if !ok {
			continue
		}
		size := s.SerializedSize(w)
		padded := alignUp8(size)

		buf := make([]byte, padded)
		bufW := binary.NewWriter(&bufferWriterAt{buf: buf}, binary.Config{
			ByteOrder:  w.ByteOrder(),
			OffsetSize: w.OffsetSize(),
			LengthSize: w.LengthSize(),
		})
		if err := s.Serialize(bufW); err != nil {
			return 0, err
		}

		encoded = append(encoded, encodedMessage{typ: uint16(msg.Type()), data: buf})
		messagesSize += 8 + padded // v1 message header is 8 bytes
	}

	headerDataSize := messagesSize
	if minHeaderSize > 0 && headerDataSize < minHeaderSize {
		headerDataSize = minHeaderSize
	}
	paddingSize := headerDataSize - messagesSize

	numMessages := len(encoded)
	if paddingSize >= 8 {
		numMessages++ // trailing NIL message absorbing the gap
	}

	if err := w.WriteUint8(1); err != nil { // version
		return 0, err
	}
	if err := w.WriteUint8(0); err != nil { // reserved
		return 0, err
	}
	if err := w.WriteUint16(uint16(numMessages)); err != nil {
		return 0, err
	}
	if err := w.WriteUint32(1); err != nil { // object reference count
		return 0, err
	}
	if err := w.WriteUint32(uint32(headerDataSize)); err != nil {
		return 0, err
	}
	if err := w.WriteZeros(4); err != nil { // padding to an 8-byte boundary
		return 0, err
	}

	for _, e := range encoded {
		if err := w.WriteUint16(e.typ); err != nil {
			return 0, err
		}
		if err := w.WriteUint16(uint16(len(e.data))); err != nil {
			return 0, err
		}
		if err := w.WriteUint8(0); err != nil { // flags
			return 0, err
		}
		if err := w.WriteZeros(3); err != nil { // reserved
			return 0, err
		}
		if err := w.WriteBytes(e.data); err != nil {
			return 0, err
		}
	}

	if paddingSize >= 8 {
		nilDataSize := paddingSize - 8
		if err := w.WriteUint16(0); err != nil { // NIL message type
			return 0, err
		}
		if err := w.WriteUint16(uint16(nilDataSize)); err != nil {
			return 0, err
		}
		if err := w.WriteUint8(0); err != nil {
			return 0, err
		}
		if err := w.WriteZeros(3); err != nil {
			return 0, err
		}
		if err := w.WriteZeros(nilDataSize); err != nil {
			return 0, err
		}
	}

	return w.Pos() - startPos, nil
}

// HeaderSizeV1 calculates the size in bytes of a V1 object header.
func HeaderSizeV1(w *binary.Writer, messages []message.Message) int {
	return HeaderSizeV1WithMinSize(w, messages, 0)
}

// HeaderSizeV1WithMinSize calculates the size with a minimum header-data size.
func HeaderSizeV1WithMinSize(w *binary.Writer, messages []message.Message, minHeaderSize int) int {
	var messagesSize int
	for _, msg := range messages {
		if s, ok := msg.(message.Serializable); ok {
			messagesSize += 8 + alignUp8(s.SerializedSize(w))
		}
	}

	headerDataSize := messagesSize
	if minHeaderSize > 0 && headerDataSize < minHeaderSize {
		headerDataSize = minHeaderSize
	}

	// version(1) + reserved(1) + numMessages(2) + refCount(4) + headerSize(4) + padding(4)
	return 16 + headerDataSize
}

func alignUp8(n int) int {
	if rem := n % 8; rem != 0 {
		n += 8 - rem
	}
	return n
}
