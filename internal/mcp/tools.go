package mcp

// IndexInput defines the input schema for the index_codebase tool.
type IndexInput struct {
	Path  string `json:"path" jsonschema:"absolute path of the codebase to index"`
	Force bool   `json:"force,omitempty" jsonschema:"drop and rebuild the index even if one exists"`
}

// IndexOutput defines the output schema for the index_codebase tool.
type IndexOutput struct {
	IndexedFiles int    `json:"indexed_files" jsonschema:"number of files fully indexed"`
	TotalChunks  int    `json:"total_chunks" jsonschema:"number of chunks written to the store"`
	Status       string `json:"status" jsonschema:"completed or limit_reached"`
}

// SearchInput defines the input schema for the search_code tool.
type SearchInput struct {
	Path      string  `json:"path" jsonschema:"absolute path of the indexed codebase"`
	Query     string  `json:"query" jsonschema:"natural-language search query"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum similarity score between 0 and 1, default 0.3"`
	Filter    string  `json:"filter,omitempty" jsonschema:"filter expression, e.g. fileExtension IN ['.go', '.ts']"`
}

// SearchOutput defines the output schema for the search_code tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked code spans"`
}

// SearchResultOutput is a single ranked span.
type SearchResultOutput struct {
	FilePath  string  `json:"file_path" jsonschema:"path relative to the codebase root"`
	StartLine int     `json:"start_line" jsonschema:"1-based inclusive start line"`
	EndLine   int     `json:"end_line" jsonschema:"1-based inclusive end line"`
	Language  string  `json:"language,omitempty" jsonschema:"programming language of the span"`
	Score     float64 `json:"score" jsonschema:"similarity score between 0 and 1"`
	Content   string  `json:"content" jsonschema:"matched span text"`
}

// StatusInput defines the input schema for the index_status tool.
type StatusInput struct {
	Path string `json:"path" jsonschema:"absolute path of the codebase"`
}

// StatusOutput defines the output schema for the index_status tool.
type StatusOutput struct {
	Status    string `json:"status" jsonschema:"absent, preparing, indexing, completed, limit_reached, failed, or clearing"`
	Indexed   bool   `json:"indexed" jsonschema:"true if a searchable collection exists"`
	Provider  string `json:"provider,omitempty" jsonschema:"active embedding provider"`
	Dimension int    `json:"dimension,omitempty" jsonschema:"embedding dimension of the provider"`
}

// ClearInput defines the input schema for the clear_index tool.
type ClearInput struct {
	Path string `json:"path" jsonschema:"absolute path of the codebase to clear"`
}

// ClearOutput defines the output schema for the clear_index tool.
type ClearOutput struct {
	Cleared bool `json:"cleared" jsonschema:"true when the index was removed"`
}
