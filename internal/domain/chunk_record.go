package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Section values for chunk metadata.
const (
	SectionMain    = "main"
	SectionComment = "comment"
)

// Metadata keys that carry dates. The watermark scan reads these.
const (
	MetaChangedDate  = "changedDate"
	MetaModifiedDate = "modifiedDate"
	MetaCreatedDate  = "createdDate"
	MetaWorkItemID   = "workItemId"
)

// DateKeys lists the metadata keys that hold timestamps.
var DateKeys = []string{MetaChangedDate, MetaModifiedDate, MetaCreatedDate}

// ChunkIndex discriminates the chunks of a single work item. Main body
// segments are numbered 0..N; comment segments are addressed by the comment's
// source position and the segment position inside that comment. The zero
// value is main segment 0.
type ChunkIndex struct {
	comment int // comment position + 1; 0 for main body segments
	segment int
}

// MainIndex returns the index of the n-th main body segment.
func MainIndex(n int) ChunkIndex {
	return ChunkIndex{segment: n}
}

// CommentIndex returns the index of segment j of comment i.
func CommentIndex(i, j int) ChunkIndex {
	return ChunkIndex{comment: i + 1, segment: j}
}

// IsComment reports whether the index addresses a comment segment.
func (c ChunkIndex) IsComment() bool {
	return c.comment > 0
}

// Comment returns the comment position, or -1 for main body segments.
func (c ChunkIndex) Comment() int {
	return c.comment - 1
}

// Segment returns the segment position.
func (c ChunkIndex) Segment() int {
	return c.segment
}

func (c ChunkIndex) String() string {
	if c.IsComment() {
		return fmt.Sprintf("c%d_%d", c.Comment(), c.segment)
	}
	return strconv.Itoa(c.segment)
}

// ParseChunkIndex parses the output of ChunkIndex.String.
func ParseChunkIndex(s string) (ChunkIndex, error) {
	if rest, ok := strings.CutPrefix(s, "c"); ok {
		left, right, found := strings.Cut(rest, "_")
		if !found {
			return ChunkIndex{}, fmt.Errorf("invalid chunk index %q", s)
		}
		i, err := strconv.Atoi(left)
		if err != nil || i < 0 {
			return ChunkIndex{}, fmt.Errorf("invalid chunk index %q", s)
		}
		j, err := strconv.Atoi(right)
		if err != nil || j < 0 {
			return ChunkIndex{}, fmt.Errorf("invalid chunk index %q", s)
		}
		return CommentIndex(i, j), nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return ChunkIndex{}, fmt.Errorf("invalid chunk index %q", s)
	}
	return MainIndex(n), nil
}

// MarshalJSON writes main indexes as numbers and comment indexes as strings.
func (c ChunkIndex) MarshalJSON() ([]byte, error) {
	if c.IsComment() {
		return json.Marshal(c.String())
	}
	return json.Marshal(c.segment)
}

// UnmarshalJSON accepts both a number and a string form.
func (c *ChunkIndex) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("invalid chunk index %d", n)
		}
		*c = MainIndex(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("chunk index must be a number or string: %w", err)
	}
	parsed, err := ParseChunkIndex(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ChunkMetadata is the flat scalar metadata attached to a chunk. Every field
// has a non-null default so stores with strict metadata typing accept it.
type ChunkMetadata struct {
	Title              string  `json:"title"`
	Section            string  `json:"section"`
	Description        string  `json:"description"`
	AcceptanceCriteria string  `json:"acceptance_criteria"`
	Type               string  `json:"type"`
	State              string  `json:"state"`
	AssignedTo         string  `json:"assignedTo"`
	StoryPoints        float64 `json:"storyPoints"`
	Tags               string  `json:"tags"`
	CreatedDate        string  `json:"createdDate"`
	ChangedDate        string  `json:"changedDate,omitempty"`
	Author             string  `json:"author,omitempty"`
	ModifiedDate       string  `json:"modifiedDate,omitempty"`
}

// Map returns the metadata as a flat map of strings and numbers.
func (m ChunkMetadata) Map() map[string]any {
	out := map[string]any{
		"title":               m.Title,
		"section":             m.Section,
		"description":         m.Description,
		"acceptance_criteria": m.AcceptanceCriteria,
		"type":                m.Type,
		"state":               m.State,
		"assignedTo":          m.AssignedTo,
		"storyPoints":         m.StoryPoints,
		"tags":                m.Tags,
		MetaCreatedDate:       m.CreatedDate,
	}
	if m.Section == SectionComment {
		out["author"] = m.Author
		out[MetaModifiedDate] = m.ModifiedDate
	} else {
		out[MetaChangedDate] = m.ChangedDate
	}
	return out
}

// ChunkRecord is one embeddable text segment of a work item.
type ChunkRecord struct {
	ID            int           `json:"id"`
	ChunkIndex    ChunkIndex    `json:"chunk_index"`
	EmbeddingText string        `json:"embedding_text"`
	Metadata      ChunkMetadata `json:"metadata"`
}

// StoreID returns the composite vector-store identifier "{id}_{chunkIndex}".
func (r ChunkRecord) StoreID() string {
	return StoreID(r.ID, r.ChunkIndex)
}

// StoreID builds the composite vector-store identifier.
func StoreID(workItemID int, idx ChunkIndex) string {
	return fmt.Sprintf("%d_%s", workItemID, idx)
}

// StoredChunk is a vector-store entry.
type StoredChunk struct {
	StoreID    string
	WorkItemID int
	ChunkIndex string
	Document   string
	Metadata   map[string]any
	Embedding  []float32
}

// ToStoredChunk converts a record into a store entry without an embedding.
func (r ChunkRecord) ToStoredChunk() StoredChunk {
	meta := r.Metadata.Map()
	meta[MetaWorkItemID] = r.ID
	return StoredChunk{
		StoreID:    r.StoreID(),
		WorkItemID: r.ID,
		ChunkIndex: r.ChunkIndex.String(),
		Document:   r.EmbeddingText,
		Metadata:   meta,
	}
}
