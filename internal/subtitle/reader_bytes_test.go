package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSRTBytes(t *testing.T) {
	data := []byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n")

	file, err := ReadSRTBytes(data, "embedded://sample")
	require.NoError(t, err)
	require.Len(t, file.Lines, 2)
	assert.Equal(t, "Hello", file.Lines[0].Text)
	assert.Equal(t, "World", file.Lines[1].Text)
	assert.Equal(t, "SRT", file.Format)
	assert.Equal(t, "embedded://sample", file.Path)
	assert.Equal(t, EncodingUTF8, file.Encoding)
	assert.Equal(t, 3*time.Second, file.Lines[1].StartTime)
}

func TestReadSRTBytesCRLFAndMultilineText(t *testing.T) {
	data := []byte("1\r\n00:00:01,000 --> 00:00:02,000\r\nFirst row\r\nSecond row\r\n\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nNext\r\n")

	file, err := ReadSRTBytes(data, "")
	require.NoError(t, err)
	require.Len(t, file.Lines, 2)
	assert.Equal(t, "First row\nSecond row", file.Lines[0].Text)
	assert.Equal(t, 2, file.Lines[1].Index)
}

func TestReadSRTBytesStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("7\n00:00:01,000 --> 00:00:02,000\nHi\n")...)

	file, err := ReadSRTBytes(data, "")
	require.NoError(t, err)
	require.Len(t, file.Lines, 1)
	assert.Equal(t, 7, file.Lines[0].Index)
	assert.Equal(t, EncodingUTF8BOM, file.Encoding)
}

func TestReadSRTBytesWindows1252Fallback(t *testing.T) {
	// "Café" with 0xE9 for é, which is invalid UTF-8
	data := []byte("1\n00:00:01,000 --> 00:00:02,000\nCaf\xe9\n")

	file, err := ReadSRTBytes(data, "")
	require.NoError(t, err)
	require.Len(t, file.Lines, 1)
	assert.Equal(t, "Café", file.Lines[0].Text)
	assert.Equal(t, EncodingWindows1252, file.Encoding)
}

func TestReadSRTBytesSkipsMalformedBlocks(t *testing.T) {
	data := []byte(
		"1\n00:00:01,000 --> 00:00:02,000\nGood one\n\n" +
			"x\n00:00:02,000 --> 00:00:03,000\nBad index\n\n" +
			"3\nnot a time\nBad time\n\n" +
			"4\n00:00:04,000 --> 00:00:05,000\n\n" +
			"5\n00:00:05,000 --> 00:00:06,000\nGood two\n")

	file, err := ReadSRTBytes(data, "")
	require.NoError(t, err)
	require.Len(t, file.Lines, 2)
	assert.Equal(t, 1, file.Lines[0].Index)
	assert.Equal(t, 5, file.Lines[1].Index)
	assert.Equal(t, []string{"Good one", "Good two"}, file.Texts())
}

func TestReadSRTBytesEmpty(t *testing.T) {
	file, err := ReadSRTBytes(nil, "")
	require.NoError(t, err)
	assert.Empty(t, file.Lines)
}

func TestParseSRTIgnoresBOMBeforeIndex(t *testing.T) {
	lines := parseSRT("\uFEFF7\n00:00:01,000 --> 00:00:02,000\nHello\n")
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Index)
	assert.Equal(t, "Hello", lines[0].Text)
}
