package feed_test

import (
	"strings"
	"testing"

	"cart-recovery-service/feed"

	"github.com/stretchr/testify/assert"
)

func readAll(t *testing.T, body string) []feed.Event {
	t.Helper()
	r := feed.NewEventReader(strings.NewReader(body))
	var events []feed.Event
	for r.Next() {
		events = append(events, r.Event())
	}
	assert.NoError(t, r.Err())
	return events
}

func TestEventReader_FirebaseEvents(t *testing.T) {
	body := "event: put\n" +
		`data: {"path":"/","data":{"a":1}}` + "\n\n" +
		"event: keep-alive\n" +
		"data: null\n\n" +
		": comment\n" +
		"event: patch\r\n" +
		`data: {"path":"/a","data":{"b":2}}` + "\r\n\r\n"

	events := readAll(t, body)
	if assert.Len(t, events, 3) {
		assert.Equal(t, "put", events[0].Name)
		assert.Equal(t, `{"path":"/","data":{"a":1}}`, events[0].Data)
		assert.Equal(t, "keep-alive", events[1].Name)
		assert.Equal(t, "patch", events[2].Name)
	}
}

func TestEventReader_MultiLineDataAndTrailingEvent(t *testing.T) {
	events := readAll(t, "data: one\ndata:two\n\nevent: cancel\ndata: Permission denied")
	if assert.Len(t, events, 2) {
		assert.Equal(t, "one\ntwo", events[0].Data)
		assert.Equal(t, "", events[0].Name)
		assert.Equal(t, "cancel", events[1].Name)
		assert.Equal(t, "Permission denied", events[1].Data)
	}
}

func TestEventReader_BlockWithoutDataIsDropped(t *testing.T) {
	events := readAll(t, "event: put\n\nid: 4\nretry: 10\n\n")
	assert.Empty(t, events)
}
