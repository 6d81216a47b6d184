package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/witsync/internal/domain"
)

// TextNormalizer turns raw rich text into plain prose.
type TextNormalizer interface {
	Normalize(raw string) string
}

// ItemFailure records a work item whose records could not be built.
type ItemFailure struct {
	WorkItemID int
	Err        error
}

// RecordBuilder converts work items into chunk records.
type RecordBuilder struct {
	normalizer TextNormalizer
	cfg        ChunkConfig
}

// NewRecordBuilder creates a RecordBuilder. Non-positive word budgets fall
// back to DefaultChunkConfig.
func NewRecordBuilder(normalizer TextNormalizer, cfg ChunkConfig) *RecordBuilder {
	return &RecordBuilder{
		normalizer: normalizer,
		cfg:        cfg.withDefaults(),
	}
}

// Config returns the effective chunk budgets.
func (b *RecordBuilder) Config() ChunkConfig {
	return b.cfg
}

// BuildRecords produces the main body chunks followed by the comment chunks
// of item. Output is deterministic for identical input.
func (b *RecordBuilder) BuildRecords(item domain.RawWorkItem) ([]domain.ChunkRecord, error) {
	description := b.normalizer.Normalize(item.Description)
	acceptance := b.normalizer.Normalize(item.AcceptanceCriteria)

	base := domain.ChunkMetadata{
		Title:              item.Title,
		Description:        description,
		AcceptanceCriteria: acceptance,
		Type:               item.Type,
		State:              item.State,
		AssignedTo:         item.AssignedTo,
		Tags:               item.Tags,
	}
	if item.StoryPoints != nil {
		base.StoryPoints = *item.StoryPoints
	}

	var records []domain.ChunkRecord

	mainMeta := base
	mainMeta.Section = domain.SectionMain
	mainMeta.CreatedDate = item.CreatedDate
	mainMeta.ChangedDate = item.ChangedDate

	for i, chunk := range ChunkWords(mainBody(item.Title, description, acceptance), b.cfg.MainWords) {
		records = append(records, domain.ChunkRecord{
			ID:            item.ID,
			ChunkIndex:    domain.MainIndex(i),
			EmbeddingText: chunk,
			Metadata:      mainMeta,
		})
	}

	for i, comment := range item.Comments {
		text := b.normalizer.Normalize(comment.Text)
		if text == "" {
			continue
		}

		created, modified, err := commentDates(comment)
		if err != nil {
			return nil, fmt.Errorf("work item %d comment %d: %w", item.ID, i, err)
		}

		author := comment.Author()
		meta := base
		meta.Section = domain.SectionComment
		meta.Author = author
		meta.CreatedDate = created
		meta.ModifiedDate = modified

		prefix := fmt.Sprintf("%s commented on (%s): ", author, created)
		for j, chunk := range ChunkWords(text, b.cfg.CommentWords) {
			records = append(records, domain.ChunkRecord{
				ID:            item.ID,
				ChunkIndex:    domain.CommentIndex(i, j),
				EmbeddingText: prefix + chunk,
				Metadata:      meta,
			})
		}
	}

	return records, nil
}

// BuildAll builds records for every item. A failing item is reported in the
// failure list and does not stop the batch.
func (b *RecordBuilder) BuildAll(items []domain.RawWorkItem) ([]domain.ChunkRecord, []ItemFailure) {
	var (
		records  []domain.ChunkRecord
		failures []ItemFailure
	)
	for _, item := range items {
		built, err := b.BuildRecords(item)
		if err != nil {
			failures = append(failures, ItemFailure{WorkItemID: item.ID, Err: err})
			continue
		}
		records = append(records, built...)
	}
	return records, failures
}

// GroupByWorkItem buckets records by owning work item, keeping their order.
func GroupByWorkItem(records []domain.ChunkRecord) map[int][]domain.ChunkRecord {
	grouped := make(map[int][]domain.ChunkRecord)
	for _, r := range records {
		grouped[r.ID] = append(grouped[r.ID], r)
	}
	return grouped
}

func mainBody(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// commentDates renders the comment timestamps for display. An unparsable
// modified date falls back to the created date.
func commentDates(c domain.RawComment) (string, string, error) {
	created, ok := domain.ParseTimestamp(c.CreatedDate)
	if !ok {
		return "", "", domain.ErrInvalidTimestamp.Wrap(fmt.Errorf("createdDate %q", c.CreatedDate))
	}

	modified, ok := domain.ParseTimestamp(c.ModifiedDate)
	if !ok {
		modified = created
	}

	return domain.FormatDisplay(created), domain.FormatDisplay(modified), nil
}
