package publisher

import (
	"fmt"
	"sync"

	"github.com/maxpert/s3avro/cfg"
)

// StoreFactory creates a Store from the run configuration
type StoreFactory func(*cfg.Configuration) (Store, error)

// SinkFactory is a function that creates a Sink from a configuration
type SinkFactory func(cfg.NotificationConfiguration) (Sink, error)

// TransformerFactory is a function that creates a Transformer
type TransformerFactory func() Transformer

var (
	storeFactories       = make(map[string]StoreFactory)
	sinkFactories        = make(map[string]SinkFactory)
	transformerFactories = make(map[string]TransformerFactory)
	factoryMu            sync.RWMutex
)

// RegisterStore registers a store factory for a type
func RegisterStore(storeType string, factory StoreFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	storeFactories[storeType] = factory
}

// RegisterSink registers a sink factory for a type
func RegisterSink(sinkType string, factory SinkFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	sinkFactories[sinkType] = factory
}

// RegisterTransformer registers a transformer factory for a format
func RegisterTransformer(format string, factory TransformerFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	transformerFactories[format] = factory
}

// NewStore creates the store named by config.Store
func NewStore(config *cfg.Configuration) (Store, error) {
	factoryMu.RLock()
	factory, exists := storeFactories[config.Store]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown store type: %s", config.Store)
	}

	return factory(config)
}

// createSink creates a sink based on the configuration
func createSink(config cfg.NotificationConfiguration) (Sink, error) {
	factoryMu.RLock()
	factory, exists := sinkFactories[config.Type]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown sink type: %s", config.Type)
	}

	return factory(config)
}

// createTransformer creates a transformer based on the format
func createTransformer(format string) (Transformer, error) {
	factoryMu.RLock()
	factory, exists := transformerFactories[format]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown format: %s", format)
	}

	return factory(), nil
}
