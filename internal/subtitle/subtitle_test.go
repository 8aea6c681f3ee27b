package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:02,500
First sentence.

2
00:00:02,500 --> 00:00:06,120
Second sentence
on two lines.

3
00:01:02,000 --> 00:01:05,000
Third.
`

func TestParse(t *testing.T) {
	entries, err := Parse(sampleSRT)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(0), entries[0].StartMS)
	assert.Equal(t, int64(2500), entries[0].EndMS)
	assert.Equal(t, "First sentence.", entries[0].Text)

	assert.Equal(t, "Second sentence\non two lines.", entries[1].Text)
	assert.Equal(t, int64(6120), entries[1].EndMS)

	assert.Equal(t, int64(62000), entries[2].StartMS)
	assert.Equal(t, int64(3000), entries[2].DurationMS())
}

func TestParse_StripsByteOrderMark(t *testing.T) {
	entries, err := Parse("\uFEFF1\n00:00:00,000 --> 00:00:02,000\nmarked\n")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, "marked", entries[0].Text)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)

	_, err = Parse("1\nno timing here\ntext\n")
	require.Error(t, err)

	_, err = Parse("1\n00:00:05,000 --> 00:00:01,000\nbackwards\n")
	require.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", FormatTimestamp(0))
	assert.Equal(t, "00:01:02,345", FormatTimestamp(62345))
	assert.Equal(t, "01:00:00,001", FormatTimestamp(3600001))
}

func TestWriteAndValidateRoundTrip(t *testing.T) {
	entries, err := Parse(sampleSRT)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, Write(path, entries))
	require.NoError(t, ValidateFile(path))

	reparsed, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, reparsed, len(entries))
	assert.Equal(t, entries[1].Text, reparsed[1].Text)
}

func TestValidateFile_RejectsMissingArrows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.srt")
	require.NoError(t, os.WriteFile(path, []byte("just some text"), 0644))
	require.Error(t, ValidateFile(path))
}

func TestWeightedLength(t *testing.T) {
	assert.Equal(t, 5, WeightedLength("hello"))
	// CJK ideographs count 2 each
	assert.Equal(t, 4, WeightedLength("你好"))
	assert.Equal(t, 7, WeightedLength("hi 你好"))
	assert.Equal(t, 0, WeightedLength(""))
}

func TestToTraditional(t *testing.T) {
	assert.Equal(t, "中國", ToTraditional("中国"))
	assert.Equal(t, "說話", ToTraditional("说话"))
	// Characters shared by both scripts pass through
	assert.Equal(t, "你好", ToTraditional("你好"))
	assert.Equal(t, "hello", ToTraditional("hello"))
}

func TestColorBGR(t *testing.T) {
	assert.Equal(t, "FFFFFF", ColorBGR("white"))
	assert.Equal(t, "0000FF", ColorBGR("red"))
	// Unknown names fall back to white
	assert.Equal(t, "FFFFFF", ColorBGR("mauve"))
}
