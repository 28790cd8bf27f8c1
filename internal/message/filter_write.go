package message

import (
	"github.com/h5kit/hdf5/internal/binary"
)

// NewFilterPipeline builds a version 2 filter pipeline message — the
// format parseFilterPipeline reads when no reserved bytes or name-padding
// follow the filter count, used for every filter id under 256.
func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{
		Version: 2,
		Filters: filters,
	}
}

func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(m.Version); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(len(m.Filters))); err != nil {
		return err
	}

	for _, f := range m.Filters {
		if err := w.WriteUint16(f.ID); err != nil {
			return err
		}
		if f.ID >= 256 {
			nameLen := len(f.Name) + 1
			if err := w.WriteUint16(uint16(nameLen)); err != nil {
				return err
			}
		}
		if err := w.WriteUint16(f.Flags); err != nil {
			return err
		}
		if err := w.WriteUint16(uint16(len(f.ClientData))); err != nil {
			return err
		}
		if f.ID >= 256 {
			nameBytes := append([]byte(f.Name), 0)
			if err := w.WriteBytes(nameBytes); err != nil {
				return err
			}
		}
		for _, cd := range f.ClientData {
			if err := w.WriteUint32(cd); err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *FilterPipeline) SerializedSize(w *binary.Writer) int {
	size := 2
	for _, f := range m.Filters {
		size += 2 + 2 + 2 // id + flags + num client data
		if f.ID >= 256 {
			size += 2 + len(f.Name) + 1
		}
		size += 4 * len(f.ClientData)
	}
	return size
}
