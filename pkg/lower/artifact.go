package lower

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/dispatch/pkg/bytecode"
	"github.com/chazu/dispatch/pkg/jumptable"
)

// ArtifactFormat is the current artifact envelope version.
const ArtifactFormat uint16 = 1

// Artifact is the storage/transport envelope for a compiled dispatch: the
// serialized chunk plus the metadata needed to interpret its result.
type Artifact struct {
	Format   uint16   `cbor:"format"`
	Name     string   `cbor:"name"`
	Strategy string   `cbor:"strategy"`
	Targets  []string `cbor:"targets"`
	Chunk    []byte   `cbor:"chunk"`
}

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("lower: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalArtifact serializes the compiled dispatch to CBOR artifact bytes.
func (c *Compiled) MarshalArtifact() ([]byte, error) {
	chunkBytes, err := c.Chunk.Serialize()
	if err != nil {
		return nil, fmt.Errorf("lower: serialize chunk for %s: %w", c.Name, err)
	}
	return cborEncMode.Marshal(&Artifact{
		Format:   ArtifactFormat,
		Name:     c.Name,
		Strategy: c.Strategy.String(),
		Targets:  c.Targets,
		Chunk:    chunkBytes,
	})
}

// UnmarshalArtifact deserializes a compiled dispatch from artifact bytes.
func UnmarshalArtifact(data []byte) (*Compiled, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("lower: unmarshal artifact: %w", err)
	}
	if a.Format > ArtifactFormat {
		return nil, fmt.Errorf("lower: artifact format %d is newer than supported format %d", a.Format, ArtifactFormat)
	}

	strategy, err := jumptable.ParseStrategy(a.Strategy)
	if err != nil {
		return nil, fmt.Errorf("lower: artifact %s: %w", a.Name, err)
	}

	chunk, err := bytecode.Deserialize(a.Chunk)
	if err != nil {
		return nil, fmt.Errorf("lower: artifact %s: %w", a.Name, err)
	}

	return &Compiled{
		Name:     a.Name,
		Strategy: strategy,
		Targets:  a.Targets,
		Chunk:    chunk,
	}, nil
}
