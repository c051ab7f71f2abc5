package embeddings

import "strings"

// knownModelDimensions lists output dimensions for models we ship defaults for.
var knownModelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// DefaultModel is used when no model is configured.
const DefaultModel = "BAAI/bge-small-en-v1.5"

func fastEmbedModelDimension(model string) (int, bool) {
	dim, ok := knownModelDimensions[model]
	return dim, ok
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "base"):
		return 768
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "small"), strings.Contains(lower, "mini"):
		return 384
	default:
		return 384
	}
}
