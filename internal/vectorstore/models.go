package vectorstore

// Document represents a document to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document within its collection.
	ID string

	// Content is the text that gets embedded.
	Content string

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]interface{}

	// Collection is the target collection name. Required.
	Collection string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier
	ID string

	// Content is the document text content
	Content string

	// Score is the similarity score (higher = more similar)
	Score float32

	// Metadata contains the document metadata
	Metadata map[string]interface{}
}
