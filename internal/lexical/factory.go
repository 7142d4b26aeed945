package lexical

import "fmt"

// Backend names accepted by NewIndex.
const (
	BackendMemory = "memory"
	BackendBleve  = "bleve"
)

// NewIndex constructs the lexical backend named by backend.
func NewIndex(backend string, cfg Config) (Index, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryIndex(cfg), nil
	case BackendBleve:
		return NewBleveIndex(cfg)
	default:
		return nil, fmt.Errorf("unknown lexical backend %q", backend)
	}
}
