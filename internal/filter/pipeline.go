package filter

import (
	"fmt"

	"github.com/h5kit/hdf5/internal/message"
)

// Pipeline represents a filter pipeline that can decode chunk data.
type Pipeline struct {
	filters []Filter
}

// NewPipeline creates a filter pipeline from a FilterPipeline message.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	if fp == nil || len(fp.Filters) == 0 {
		return &Pipeline{}, nil
	}

	p := &Pipeline{
		filters: make([]Filter, 0, len(fp.Filters)),
	}

	for _, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, fmt.Errorf("creating filter %d: %w", info.ID, err)
		}
		if f != nil {
			p.filters = append(p.filters, f)
		}
	}

	return p, nil
}

// Decode applies the filter pipeline to encoded data.
// The filterMask specifies which filters to skip (bit i = skip filter i).
// Filters are applied in reverse order (last filter first).
func (p *Pipeline) Decode(input []byte, filterMask uint32) ([]byte, error) {
	if len(p.filters) == 0 {
		return input, nil
	}

	data := input

	// Apply filters in reverse order
	for i := len(p.filters) - 1; i >= 0; i-- {
		// Check if this filter should be skipped
		if filterMask&(1<<uint(i)) != 0 {
			continue
		}

		var err error
		data, err = p.filters[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d decode: %w", p.filters[i].ID(), err)
		}
	}

	return data, nil
}

// storeRawThreshold is the fraction of the original size a filtered chunk
// must beat to be worth keeping filtered. HDF5 implementations commonly
// fall back to storing a chunk raw when compression buys less than 10%;
// matched here as encoded >= 90% of raw meaning "not worth it."
const storeRawThreshold = 0.9

// Encode applies the filter pipeline to raw chunk data in forward order.
// If the filtered result is not at least 10% smaller than the input, the
// raw input is stored instead and the returned filterMask has every
// configured filter's bit set, telling a reader to skip all of them (the
// same filterMask convention Decode already consumes).
func (p *Pipeline) Encode(input []byte) (data []byte, filterMask uint32, err error) {
	if len(p.filters) == 0 {
		return input, 0, nil
	}

	data = input
	for _, f := range p.filters {
		data, err = f.Encode(data)
		if err != nil {
			return nil, 0, fmt.Errorf("filter %d encode: %w", f.ID(), err)
		}
	}

	if len(input) > 0 && float64(len(data)) >= float64(len(input))*storeRawThreshold {
		mask := uint32(0)
		for i := range p.filters {
			mask |= 1 << uint(i)
		}
		return input, mask, nil
	}

	return data, 0, nil
}

// Empty returns true if the pipeline has no filters.
func (p *Pipeline) Empty() bool {
	return len(p.filters) == 0
}

// Len returns the number of filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.filters)
}
