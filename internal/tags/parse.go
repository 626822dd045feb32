package tags

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// ParseLine parses a single "[context:]value" line. Blank lines yield
// ok == false and no error. The first colon always separates context from
// value; there is no escaping.
func ParseLine(line string) (t Tag, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Tag{}, false, nil
	}
	context, value, found := strings.Cut(line, ":")
	if !found {
		t, err = New(line)
	} else {
		t, err = NewWithContext(context, value)
	}
	if err != nil {
		return Tag{}, false, err
	}
	return t, true, nil
}

// Parse reads tag lines from r. Malformed lines are logged and skipped; only
// read errors are returned.
func Parse(r io.Reader, source string, log *zap.Logger) (Set, error) {
	if log == nil {
		log = zap.NewNop()
	}
	set := make(Set)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		t, ok, err := ParseLine(sc.Text())
		if err != nil {
			log.Warn("skipping malformed tag line",
				zap.String("file", source),
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		if ok {
			set.Add(t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return set, nil
}

// ParseFile parses the tag file at path.
func ParseFile(path string, log *zap.Logger) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f, path, log)
}
