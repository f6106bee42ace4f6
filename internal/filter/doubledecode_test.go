package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cc-sentinel/sentinel/internal/message"
)

func TestDoubleDecodeFilterRejectsDoubleEncodedQuery(t *testing.T) {
	f := DoubleDecodeFilter{}
	msg := message.New("1.2.3.4", "GET", "/search", "q=%2527OR1%253D1", "HTTP/1.1", nil, nil)

	reject, reason, source := f.FilterRequest(msg)
	assert.True(t, reject)
	assert.Equal(t, "Double Encoded Path Query detected", reason)
	assert.Equal(t, "Double Encoding Filter Plugin", source)
}

func TestDoubleDecodeFilterAllowsSingleEncodedQuery(t *testing.T) {
	f := DoubleDecodeFilter{}
	msg := message.New("1.2.3.4", "GET", "/search", "q=hello world", "HTTP/1.1", nil, nil)

	reject, _, _ := f.FilterRequest(msg)
	assert.False(t, reject)
}

func TestDoubleDecodeFilterIgnoresAbsentQueryAndBody(t *testing.T) {
	f := DoubleDecodeFilter{}
	msg := message.New("1.2.3.4", "GET", "/", "", "HTTP/1.1", nil, nil)

	reject, _, _ := f.FilterRequest(msg)
	assert.False(t, reject)
}
