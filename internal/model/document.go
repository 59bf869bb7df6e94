package model

type Document struct {
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"`
	Filename    string `json:"filename"`
	MediaType   string `json:"media_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ChunkCount  int    `json:"chunk_count"`
	TextRef     string `json:"text_ref"`
	Ctime       int64  `json:"ctime"`
}

// RegistryEntry is the deduplication record: at most one per content
// hash. It points at the latest document identity and chunk map for
// that content.
type RegistryEntry struct {
	ContentHash   string   `json:"content_hash"`
	Document      Document `json:"document"`
	DocRef        string   `json:"doc_ref"`
	ChunkMapRef   string   `json:"chunk_map_ref"`
	ProcessMillis int64    `json:"process_millis"`
	Ctime         int64    `json:"ctime"`
}
