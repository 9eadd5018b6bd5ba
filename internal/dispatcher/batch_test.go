package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	tokens := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunk(tokens, 2))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, chunk(tokens, 5))
	assert.Nil(t, chunk(nil, 450))
	assert.Nil(t, chunk(tokens, 0))

	// Appending to a batch must not clobber the next one.
	batches := chunk(tokens, 2)
	_ = append(batches[0], "x")
	assert.Equal(t, "c", batches[1][0])
}
