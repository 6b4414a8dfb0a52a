package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameUsesByteLength(t *testing.T) {
	body := []byte(`{"result":"ünïcode"}`)
	framed := Frame(body)

	assert.True(t, bytes.HasPrefix(framed, []byte("Content-Length: 22\r\n\r\n")), string(framed))
	assert.True(t, bytes.HasSuffix(framed, body))
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("{}")))
	assert.Equal(t, "Content-Length: 2\r\n\r\n{}", buf.String())
}
