package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIndex_String(t *testing.T) {
	assert.Equal(t, "0", ChunkIndex{}.String())
	assert.Equal(t, "3", MainIndex(3).String())
	assert.Equal(t, "c0_0", CommentIndex(0, 0).String())
	assert.Equal(t, "c2_5", CommentIndex(2, 5).String())
}

func TestChunkIndex_Accessors(t *testing.T) {
	main := MainIndex(4)
	assert.False(t, main.IsComment())
	assert.Equal(t, -1, main.Comment())
	assert.Equal(t, 4, main.Segment())

	comment := CommentIndex(1, 2)
	assert.True(t, comment.IsComment())
	assert.Equal(t, 1, comment.Comment())
	assert.Equal(t, 2, comment.Segment())
}

func TestParseChunkIndex(t *testing.T) {
	tests := []struct {
		in      string
		want    ChunkIndex
		wantErr bool
	}{
		{in: "0", want: MainIndex(0)},
		{in: "12", want: MainIndex(12)},
		{in: "c0_1", want: CommentIndex(0, 1)},
		{in: "c10_0", want: CommentIndex(10, 0)},
		{in: "", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "c1", wantErr: true},
		{in: "c_1", wantErr: true},
		{in: "cx_1", wantErr: true},
		{in: "c1_-2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChunkIndex(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestChunkIndex_JSON(t *testing.T) {
	data, err := json.Marshal([]ChunkIndex{MainIndex(2), CommentIndex(1, 0)})
	require.NoError(t, err)
	assert.JSONEq(t, `[2, "c1_0"]`, string(data))

	var decoded []ChunkIndex
	require.NoError(t, json.Unmarshal([]byte(`[0, "3", "c4_1"]`), &decoded))
	assert.Equal(t, []ChunkIndex{MainIndex(0), MainIndex(3), CommentIndex(4, 1)}, decoded)

	var bad ChunkIndex
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`-4`), &bad))
}

func TestChunkRecord_StoreID(t *testing.T) {
	assert.Equal(t, "1234_0", ChunkRecord{ID: 1234}.StoreID())
	assert.Equal(t, "1234_c0_2", ChunkRecord{ID: 1234, ChunkIndex: CommentIndex(0, 2)}.StoreID())
}

func TestChunkMetadata_Map(t *testing.T) {
	main := ChunkMetadata{Title: "t", Section: SectionMain, CreatedDate: "c", ChangedDate: "x"}.Map()
	assert.Equal(t, "x", main[MetaChangedDate])
	assert.NotContains(t, main, "author")
	assert.NotContains(t, main, MetaModifiedDate)
	assert.Equal(t, 0.0, main["storyPoints"])

	comment := ChunkMetadata{Section: SectionComment, Author: "Min Wang", ModifiedDate: "m"}.Map()
	assert.Equal(t, "Min Wang", comment["author"])
	assert.Equal(t, "m", comment[MetaModifiedDate])
	assert.NotContains(t, comment, MetaChangedDate)

	for k, v := range comment {
		assert.NotNil(t, v, "metadata key %s is nil", k)
	}
}

func TestChunkRecord_ToStoredChunk(t *testing.T) {
	rec := ChunkRecord{
		ID:            77,
		ChunkIndex:    CommentIndex(0, 1),
		EmbeddingText: "Raul Leal commented on (x): hello",
		Metadata:      ChunkMetadata{Section: SectionComment, Author: "Raul Leal"},
	}

	stored := rec.ToStoredChunk()

	assert.Equal(t, "77_c0_1", stored.StoreID)
	assert.Equal(t, 77, stored.WorkItemID)
	assert.Equal(t, "c0_1", stored.ChunkIndex)
	assert.Equal(t, rec.EmbeddingText, stored.Document)
	assert.Equal(t, 77, stored.Metadata[MetaWorkItemID])
	assert.Nil(t, stored.Embedding)
}

func TestChunkRecord_JSONRoundTrip(t *testing.T) {
	records := []ChunkRecord{
		{
			ID:            5,
			ChunkIndex:    MainIndex(0),
			EmbeddingText: "Title body",
			Metadata: ChunkMetadata{
				Title: "Title", Section: SectionMain, StoryPoints: 3.5,
				CreatedDate: "2025-01-02T03:04:05Z", ChangedDate: "2025-01-03T03:04:05Z",
			},
		},
		{
			ID:            5,
			ChunkIndex:    CommentIndex(0, 0),
			EmbeddingText: "Amy Crossan commented on (January 02, 2025 at 03:04 UTC): ok",
			Metadata: ChunkMetadata{
				Title: "Title", Section: SectionComment, Author: "Amy Crossan",
				CreatedDate: "January 02, 2025 at 03:04 UTC", ModifiedDate: "January 02, 2025 at 03:04 UTC",
			},
		},
	}

	data, err := json.Marshal(records)
	require.NoError(t, err)

	var decoded []ChunkRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, records, decoded)
}
