// Package processor implements the Processor Registry and its two built-in
// processors (spec §4.G): an image watermarker and a vector-index
// maintainer. Each processor implements the same Process signature the
// Virtual FS Facade expects of vfs.Processor, so RegisterAll can wire them
// straight into a facade.
package processor

import (
	"context"
)

// Registrar is the subset of vfs.Facade a processor registers against.
type Registrar interface {
	RegisterProcessor(processorType string, p Processor)
}

// Processor matches vfs.Processor's shape without importing internal/vfs,
// avoiding an import cycle (vfs depends on nothing in this package).
type Processor interface {
	Process(ctx context.Context, data []byte, srcName string, config map[string]any) (out []byte, producesFile bool, err error)
}

// RegisterAll wires every built-in processor into r.
func RegisterAll(r Registrar, embedder Embedder) {
	r.RegisterProcessor("watermark", &Watermark{})
	r.RegisterProcessor("vector_index", NewVectorIndex(embedder))
}
