package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Entry is one SRT cue: a time range in milliseconds and its text.
type Entry struct {
	Index   int
	StartMS int64
	EndMS   int64
	Text    string
}

// DurationMS returns the cue length.
func (e *Entry) DurationMS() int64 {
	return e.EndMS - e.StartMS
}

// ParseFile reads and parses an SRT file.
func ParseFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read srt file: %w", err)
	}
	return Parse(string(data))
}

// Parse parses SRT content. Cues are blank-line separated blocks of
// index, timing line and one or more text lines.
func Parse(content string) ([]Entry, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\uFEFF")

	var entries []Entry
	blocks := strings.Split(content, "\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("malformed srt block: %q", block)
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("malformed srt index %q: %w", lines[0], err)
		}

		startMS, endMS, err := parseTiming(lines[1])
		if err != nil {
			return nil, fmt.Errorf("srt cue %d: %w", index, err)
		}

		text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
		entries = append(entries, Entry{
			Index:   index,
			StartMS: startMS,
			EndMS:   endMS,
			Text:    text,
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("srt content has no cues")
	}
	return entries, nil
}

func parseTiming(line string) (int64, int64, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timing line %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("cue ends before it starts: %q", line)
	}
	return start, end, nil
}

// parseTimestamp parses "HH:MM:SS,mmm" into milliseconds.
func parseTimestamp(value string) (int64, error) {
	value = strings.ReplaceAll(value, ".", ",")
	var h, m, s, ms int64
	if _, err := fmt.Sscanf(value, "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", value, err)
	}
	return ((h*60+m)*60+s)*1000 + ms, nil
}

// FormatTimestamp renders milliseconds as "HH:MM:SS,mmm".
func FormatTimestamp(ms int64) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// Write renders entries back to SRT format.
func Write(path string, entries []Entry) error {
	var sb strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(entry.StartMS), FormatTimestamp(entry.EndMS), entry.Text)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write srt file: %w", err)
	}
	return nil
}

// ValidateFile checks that an SRT file is structurally sound: it must parse
// and contain at least one timing arrow.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read srt file: %w", err)
	}
	if !strings.Contains(string(data), "-->") {
		return fmt.Errorf("srt file %s has no timing lines", path)
	}
	if _, err := Parse(string(data)); err != nil {
		return fmt.Errorf("srt file %s is malformed: %w", path, err)
	}
	return nil
}
