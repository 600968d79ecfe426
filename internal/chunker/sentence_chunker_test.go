package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanrag/internal/domain"
)

func TestSentenceChunker_Chunk(t *testing.T) {
	doc := domain.Document{ID: "doc", Content: "찬물로 헹구세요. 문지르지 마세요! 주방세제를 쓰나요? 드라이어는 금지입니다.\n마지막 문장"}

	chunks, err := NewSentenceChunker(2, 1).Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, "찬물로 헹구세요. 문지르지 마세요!", chunks[0].Text)
	assert.Equal(t, "문지르지 마세요! 주방세제를 쓰나요?", chunks[1].Text)
	assert.Equal(t, "드라이어는 금지입니다. 마지막 문장", chunks[3].Text)
	assert.Equal(t, "doc:3", chunks[3].ChunkID)
	assert.Equal(t, 3, chunks[3].Index)
	assert.Equal(t, "doc", chunks[3].DocumentID)
}

func TestSentenceChunker_EdgeCases(t *testing.T) {
	chunks, err := NewSentenceChunker(3, 0).Chunk(domain.Document{ID: "empty", Content: "  \n "})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = NewSentenceChunker(3, 0).Chunk(domain.Document{ID: "one", Content: "no punctuation at all"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "no punctuation at all", chunks[0].Text)

	// an overlap as large as the chunk must still terminate
	chunks, err = NewSentenceChunker(2, 5).Chunk(domain.Document{ID: "d", Content: "a. b. c. d."})
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}
