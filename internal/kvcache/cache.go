package kvcache

import "github.com/embodios/forge/internal/status"

// Cache bundles one Layer per transformer layer, matching inference
// state's "reference to the KV cache" as a single handle the generation
// driver threads through every layer call.
type Cache struct {
	layers []*Layer
}

// New allocates n_layer rings, each sized maxSeqLen x kvDim.
func New(nLayers, maxSeqLen, windowSize, kvDim int, policy EvictionPolicy) (*Cache, error) {
	if nLayers <= 0 {
		return nil, status.Wrap("kvcache.New", status.Invalid, errInvalidDims)
	}
	layers := make([]*Layer, nLayers)
	for i := range layers {
		l, err := NewLayer(maxSeqLen, windowSize, kvDim, policy)
		if err != nil {
			return nil, err
		}
		layers[i] = l
	}
	return &Cache{layers: layers}, nil
}

// Layer returns the ring for transformer layer index l.
func (c *Cache) Layer(l int) *Layer { return c.layers[l] }

// NumLayers returns the number of layer rings.
func (c *Cache) NumLayers() int { return len(c.layers) }

// Reset clears every layer's ring back to empty.
func (c *Cache) Reset() {
	for _, l := range c.layers {
		l.Reset()
	}
}

// Enable toggles Store on every layer.
func (c *Cache) Enable(on bool) {
	for _, l := range c.layers {
		l.Enable(on)
	}
}
