package store

import "github.com/google/uuid"

// Passage is a retrieved chunk as it flows through the answer pipeline:
// out of retrieval, into the prompt, and finally into citations.
type Passage struct {
	ChunkId    uuid.UUID `json:"chunk_id"`
	DocumentId uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber *int      `json:"page_number,omitempty"`
	Text       string    `json:"text"`
	Score      float64   `json:"score"`
}

// Citation points at a passage the generated answer actually relied on.
type Citation struct {
	DocumentId uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber *int      `json:"page_number,omitempty"`
	Score      float64   `json:"score"`
	Snippet    string    `json:"snippet"`
}

// Turn is one completed question/answer exchange kept in conversation memory.
type Turn struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations,omitempty"`
}
