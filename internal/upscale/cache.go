package upscale

import (
	"fmt"

	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/metrics"
)

type cacheKey struct {
	algorithm string
	ratio     int
}

// processorCache holds the processors of a single worker. Entries live as
// long as the worker and are never evicted.
type processorCache struct {
	gpu        int
	processors map[cacheKey]backend.Processor
}

func newProcessorCache(gpu int) *processorCache {
	return &processorCache{
		gpu:        gpu,
		processors: make(map[cacheKey]backend.Processor),
	}
}

// get returns the processor for alg at ratio, constructing it on first use.
func (c *processorCache) get(alg backend.Algorithm, noise, ratio int) (backend.Processor, error) {
	key := cacheKey{algorithm: alg.ID, ratio: ratio}
	if p, ok := c.processors[key]; ok {
		return p, nil
	}

	p, err := alg.NewProcessor(c.gpu, noise, ratio)
	if err != nil {
		return nil, fmt.Errorf("construct %s x%d: %w", alg.ID, ratio, err)
	}
	metrics.IncBackendConstructions(alg.ID, ratio)
	c.processors[key] = p
	return p, nil
}

func (c *processorCache) size() int {
	return len(c.processors)
}
