package subtitle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFile() *File {
	return &File{
		Format: "SRT",
		Lines: []Line{
			{Index: 1, StartTime: time.Second, EndTime: 2*time.Second + 500*time.Millisecond, Text: "Hello", TranslatedText: "你好"},
			{Index: 2, StartTime: time.Hour + 3*time.Second, EndTime: time.Hour + 4*time.Second, Text: "World"},
		},
	}
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(sampleFile())
	require.NoError(t, err)

	expected := "1\n00:00:01,000 --> 00:00:02,500\n你好\n\n2\n01:00:03,000 --> 01:00:04,000\nWorld\n"
	assert.Equal(t, expected, string(data))
}

func TestMarshalNil(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
}

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, NewWriter().Write(path, sampleFile()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, []byte{0xEF, 0xBB, 0xBF}, raw[:3])

	file, err := NewReader(path).Read()
	require.NoError(t, err)
	require.Len(t, file.Lines, 2)
	assert.Equal(t, "你好", file.Lines[0].Text)
	assert.Equal(t, 2500*time.Millisecond, file.Lines[0].EndTime)
	assert.Equal(t, "World", file.Lines[1].Text)
}
