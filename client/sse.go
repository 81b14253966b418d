// ABOUTME: Minimal server-sent-events frame scanner for the run event stream.
// ABOUTME: Accumulates field lines into frames and dispatches on blank lines.
package client

import (
	"bufio"
	"io"
	"strings"
)

// sseFrame is one dispatched server-sent event.
type sseFrame struct {
	event string
	data  string
	id    string
}

// sseScanner reads frames from a text/event-stream body.
type sseScanner struct {
	r *bufio.Reader
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{r: bufio.NewReaderSize(r, 4096)}
}

// next returns the next frame, or io.EOF at stream end. A frame is
// dispatched on a blank line once it has an event name or data; bare blank
// lines are skipped. Comment lines (leading ':') and unknown fields are
// ignored.
func (s *sseScanner) next() (sseFrame, error) {
	var frame sseFrame
	var data []string
	pending := false

	flush := func() sseFrame {
		if frame.event == "" {
			frame.event = "message"
		}
		frame.data = strings.Join(data, "\n")
		return frame
	}

	for {
		line, err := s.readLine()
		if err != nil {
			if err == io.EOF && pending {
				return flush(), nil
			}
			return sseFrame{}, err
		}

		if line == "" {
			if !pending {
				continue
			}
			return flush(), nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			frame.event = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		case "id":
			frame.id = value
			pending = true
		}
	}
}

// readLine reads one line, stripping LF or CRLF endings.
func (s *sseScanner) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// splitField separates an SSE line into field name and value, stripping the
// single optional space after the colon.
func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field, value = line[:idx], line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
