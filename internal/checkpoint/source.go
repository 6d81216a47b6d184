package checkpoint

import (
	"context"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
)

// FileSource replays a raw work item export as an upstream source.
type FileSource struct {
	items    []domain.RawWorkItem
	comments map[int][]domain.RawComment
}

// NewFileSource serves items in file order.
func NewFileSource(items []domain.RawWorkItem) *FileSource {
	comments := make(map[int][]domain.RawComment, len(items))
	for _, item := range items {
		comments[item.ID] = item.Comments
	}
	return &FileSource{items: items, comments: comments}
}

// OpenFileSource loads an export file.
func OpenFileSource(path string) (*FileSource, error) {
	items, err := ReadItems(path)
	if err != nil {
		return nil, err
	}
	return NewFileSource(items), nil
}

// FetchChangedSince returns items whose changed date is at or after since.
// Items with an unparsable changed date are always included.
func (s *FileSource) FetchChangedSince(ctx context.Context, since time.Time) ([]domain.RawWorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.RawWorkItem, 0, len(s.items))
	for _, item := range s.items {
		changed, ok := domain.ParseTimestamp(item.ChangedDate)
		if ok && changed.Before(since) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// FetchComments returns the comments exported with the item.
func (s *FileSource) FetchComments(ctx context.Context, workItemID int) ([]domain.RawComment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.comments[workItemID], nil
}
