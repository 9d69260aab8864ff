package feed

import (
	"bufio"
	"io"
	"strings"
)

// Event is one Server-Sent Event. Data lines are joined with "\n".
type Event struct {
	Name string
	Data string
}

// EventReader parses a text/event-stream body. Comment lines, id and retry
// fields are ignored; a block without data lines produces no event.
type EventReader struct {
	r   *bufio.Reader
	cur Event
	err error
}

func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next reports whether another event was read. Check Err once it returns false.
func (er *EventReader) Next() bool {
	if er.err != nil {
		return false
	}

	var (
		name    string
		data    []string
		hasData bool
	)
	flush := func() bool {
		er.cur = Event{Name: name, Data: strings.Join(data, "\n")}
		return true
	}

	for {
		line, err := er.r.ReadString('\n')
		if err != nil {
			er.err = err
			if line == "" || err != io.EOF {
				if err == io.EOF && hasData {
					return flush()
				}
				return false
			}
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				return flush()
			}
			name = ""
			if er.err != nil {
				return false
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			if er.err != nil {
				return hasData && flush()
			}
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
			hasData = true
		}

		if er.err != nil {
			return hasData && flush()
		}
	}
}

func (er *EventReader) Event() Event {
	return er.cur
}

// Err returns the read error that stopped the reader, or nil on clean EOF.
func (er *EventReader) Err() error {
	if er.err == io.EOF {
		return nil
	}
	return er.err
}
