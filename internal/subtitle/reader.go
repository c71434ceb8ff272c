package subtitle

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/pkg/log"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-sig"
	EncodingWindows1252 = "windows-1252"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	// 00:02:16,612 --> 00:02:19,376 (a '.' millisecond separator is tolerated)
	timecodePattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)
)

// DefaultReader is the default subtitle file reader
type DefaultReader struct {
	path string
}

// NewReader creates a new subtitle file reader
func NewReader(
	path string,
) Reader {
	return &DefaultReader{
		path: path,
	}
}

// Read reads and parses the SRT file at the reader's path.
func (r *DefaultReader) Read() (*File, error) {
	if !strings.HasSuffix(strings.ToLower(r.path), ".srt") {
		return nil, fmt.Errorf("only SRT format subtitle files are supported: %s", r.path)
	}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("subtitle file does not exist: %s", r.path)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	return ReadSRTBytes(data, r.path)
}

// ReadSRTBytes parses SRT content. path is only recorded on the result.
// Malformed records are skipped with a warning.
func ReadSRTBytes(data []byte, path string) (*File, error) {
	content, encoding, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	lines := parseSRT(content)

	return &File{
		Lines:    lines,
		Language: detectLanguage(lines),
		Format:   "SRT",
		Path:     path,
		Encoding: encoding,
	}, nil
}

// decodeText returns data as UTF-8. Valid UTF-8 (with or without BOM) is
// used as is; anything else is decoded as Windows-1252, which covers the
// Latin-1 range as well.
func decodeText(data []byte) (string, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		rest := data[len(utf8BOM):]
		if utf8.Valid(rest) {
			return string(rest), EncodingUTF8BOM, nil
		}
	}
	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("could not decode subtitle content as %s or %s: %w", EncodingUTF8, EncodingWindows1252, err)
	}
	log.Info("Subtitle content is not UTF-8, decoded as %s", EncodingWindows1252)
	return string(decoded), EncodingWindows1252, nil
}

func parseSRT(content string) []Line {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var lines []Line
	blockNum := 0
	for _, block := range splitBlocks(content) {
		blockNum++

		rows := strings.Split(block, "\n")
		if len(rows) < 3 {
			log.Warn("Skipping malformed block #%d (too few lines) near %q", blockNum, rows[0])
			continue
		}

		index, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(rows[0], "\uFEFF")))
		if err != nil {
			log.Warn("Skipping block #%d (invalid index %q)", blockNum, rows[0])
			continue
		}

		start, end, err := parseSRTTime(strings.TrimSpace(rows[1]))
		if err != nil {
			log.Warn("Skipping block #%d with index %d (%v)", blockNum, index, err)
			continue
		}

		textRows := make([]string, 0, len(rows)-2)
		for _, row := range rows[2:] {
			textRows = append(textRows, strings.TrimSpace(row))
		}

		lines = append(lines, Line{
			Index:     index,
			StartTime: start,
			EndTime:   end,
			Text:      strings.TrimSpace(strings.Join(textRows, "\n")),
		})
	}
	return lines
}

// splitBlocks splits on blank lines, dropping empty blocks.
func splitBlocks(content string) []string {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, row := range strings.Split(content, "\n") {
		if strings.TrimSpace(row) == "" {
			flush()
			continue
		}
		current = append(current, row)
	}
	flush()
	return blocks
}

// parseSRTTime parses SRT time format
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	matches := timecodePattern.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
	}

	parseTime := func(hours, minutes, seconds, milliseconds string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	return parseTime(matches[1], matches[2], matches[3], matches[4]),
		parseTime(matches[5], matches[6], matches[7], matches[8]),
		nil
}

// detectLanguage picks the language detected for the most lines.
func detectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, line := range lines {
		lang := whatlanggo.DetectLang(line.Text).Iso6391()
		if lang == "" {
			continue
		}
		langMap[lang]++
	}
	if len(langMap) == 0 {
		return language.Und
	}

	langs := make([]string, 0, len(langMap))
	for lang := range langMap {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if langMap[langs[i]] != langMap[langs[j]] {
			return langMap[langs[i]] > langMap[langs[j]]
		}
		return langs[i] < langs[j]
	})

	tag, err := language.Parse(langs[0])
	if err != nil {
		return language.Und
	}
	return tag
}
