package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool(t *testing.T) {
	bp := NewBufferPool(8)

	b := bp.GetBuffer(4)
	assert.Equal(t, 0, len(b))
	assert.Equal(t, 8, cap(b))
	bp.PutBuffer(b)

	big := bp.GetBuffer(32)
	assert.Equal(t, 32, cap(big))
	bp.PutBuffer(big)

	src := []byte("abc")
	c := bp.Copy(src)
	src[0] = 'x'
	assert.Equal(t, []byte("abc"), c)
}
