package features

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placeholderRe = regexp.MustCompile(`^\[[A-Z_0-9]+:[0-9a-f]{4}\]$`)

func TestRedactorCorrelates(t *testing.T) {
	r, err := NewRedactor(nil)
	require.NoError(t, err)

	a := r.Redact("Connection from 192.168.1.1 failed")
	b := r.Redact("Connection from 192.168.1.1 succeeded")
	c := r.Redact("Connection from 10.0.0.7 failed")

	require.True(t, strings.HasPrefix(a, "Connection from [IPV4:"), a)
	ph := strings.TrimSuffix(strings.TrimPrefix(a, "Connection from "), " failed")
	assert.Regexp(t, placeholderRe, ph)
	assert.Equal(t, "Connection from "+ph+" succeeded", b)
	assert.NotContains(t, c, ph)
	assert.Equal(t, 2, r.Len())
}

func TestRedactorDefaultPatterns(t *testing.T) {
	r, err := NewRedactor(nil)
	require.NoError(t, err)

	out := r.Redact("user Bob@Example.com from 00:1A:2b:3C:4d:5E id 550e8400-e29b-41d4-a716-446655440000")
	assert.NotContains(t, out, "Example.com")
	assert.Contains(t, out, "[EMAIL:")
	assert.Contains(t, out, "[MAC_ADDRESS:")
	assert.Contains(t, out, "[UUID:")

	// Case differences map to the same placeholder.
	assert.Equal(t, r.Redact("bob@example.com"), r.Redact("BOB@EXAMPLE.COM"))
}

func TestRedactorSelectedPatterns(t *testing.T) {
	r, err := NewRedactor([]string{"hdfs_block"})
	require.NoError(t, err)

	out := r.Redact("Receiving block blk_-1608999687919862906 src: /10.250.19.102:54106")
	assert.Contains(t, out, "[HDFS_BLOCK:")
	assert.Contains(t, out, "10.250.19.102")
}

func TestRedactorUnknownPattern(t *testing.T) {
	_, err := NewRedactor([]string{"ssn"})
	assert.True(t, errors.Is(err, ErrUnknownPattern))
}

func TestRedactorReset(t *testing.T) {
	r, err := NewRedactor([]string{"ipv4"})
	require.NoError(t, err)
	r.Redact("1.2.3.4")
	r.Reset()
	assert.Zero(t, r.Len())
}

func TestRedactorConcurrent(t *testing.T) {
	r, err := NewRedactor(nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Redact("from 172.16.0.1")
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, results[0], got)
	}
}
