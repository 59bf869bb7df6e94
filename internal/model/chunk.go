package model

import (
	"encoding/json"
	"fmt"
)

// ChunkSchemaVersion is bumped whenever the stored chunk layout
// changes. Decoding rejects unknown versions instead of probing for
// fields.
const ChunkSchemaVersion = 1

type Chunk struct {
	SchemaVersion int       `json:"schema_version"`
	DocumentID    string    `json:"document_id"`
	Index         int       `json:"index"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"embedding"`
	EmbedModel    string    `json:"embed_model"`
	Ctime         int64     `json:"ctime"`
}

// ChunkMap is a document's ordered list of chunk object references,
// itself stored as one addressable object. Superseded, never mutated,
// on reprocessing.
type ChunkMap struct {
	SchemaVersion int      `json:"schema_version"`
	DocumentID    string   `json:"document_id"`
	ChunkRefs     []string `json:"chunk_refs"`
	Ctime         int64    `json:"ctime"`
}

func DecodeChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if c.SchemaVersion != ChunkSchemaVersion {
		return nil, fmt.Errorf("unsupported chunk schema version: %d", c.SchemaVersion)
	}
	return &c, nil
}

func DecodeChunkMap(data []byte) (*ChunkMap, error) {
	var m ChunkMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode chunk map: %w", err)
	}
	if m.SchemaVersion != ChunkSchemaVersion {
		return nil, fmt.Errorf("unsupported chunk map schema version: %d", m.SchemaVersion)
	}
	return &m, nil
}
