package pool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPoolResetsSource(t *testing.T) {
	rp := NewReaderPool(64)

	br := rp.Get(strings.NewReader("first line\n"))
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "first line\n", line)
	rp.Put(br)

	br = rp.Get(strings.NewReader("second\n"))
	line, err = br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "second\n", line)
	assert.Equal(t, 64, br.Size())
}

func TestSyncPoolCreatesWhenEmpty(t *testing.T) {
	calls := 0
	p := NewSyncPool(func() []int {
		calls++
		return make([]int, 0, 4)
	})
	s := p.Get()
	assert.Equal(t, 4, cap(s))
	assert.GreaterOrEqual(t, calls, 1)
}
