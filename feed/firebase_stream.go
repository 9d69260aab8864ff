package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var errAuthRevoked = errors.New("stream auth revoked")

type streamPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// FirebaseStream follows a collection through the Realtime Database REST
// streaming protocol, mirrors it in memory and emits the full collection on
// every put or patch.
type FirebaseStream struct {
	cfg         FirebaseConfig
	client      *http.Client
	logger      *zap.Logger
	backoffStep time.Duration
	maxBackoff  time.Duration
}

type StreamOption func(*FirebaseStream)

func WithBackoff(step, max time.Duration) StreamOption {
	return func(s *FirebaseStream) {
		s.backoffStep = step
		s.maxBackoff = max
	}
}

func WithStreamClient(c *http.Client) StreamOption {
	return func(s *FirebaseStream) {
		s.client = c
	}
}

func NewFirebaseStream(cfg FirebaseConfig, logger *zap.Logger, opts ...StreamOption) *FirebaseStream {
	s := &FirebaseStream{
		cfg:         cfg,
		client:      &http.Client{},
		logger:      logger,
		backoffStep: time.Second,
		maxBackoff:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe opens the stream before returning so an unreachable database is
// reported to the caller. Later disconnects are retried with linear backoff.
func (s *FirebaseStream) Subscribe(ctx context.Context, handler Handler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	body, err := s.connect(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.run(ctx, body, handler)
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (s *FirebaseStream) connect(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.collectionURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream connect failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("stream connect error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp.Body, nil
}

func (s *FirebaseStream) run(ctx context.Context, body io.ReadCloser, handler Handler) {
	attempt := 0
	for {
		if body != nil {
			received, err := s.consume(ctx, body, handler)
			body.Close()
			if ctx.Err() != nil {
				return
			}
			if received > 0 {
				attempt = 0
			}
			switch {
			case errors.Is(err, ErrStreamCancelled):
				s.logger.Error("Session stream cancelled by server, reconnecting", zap.Error(err))
			case err != nil:
				s.logger.Warn("Session stream interrupted, reconnecting", zap.Error(err))
			default:
				s.logger.Warn("Session stream closed by server, reconnecting")
			}
		}

		attempt++
		wait := backoff(attempt, s.backoffStep, s.maxBackoff)
		if !sleepCtx(ctx, wait) {
			return
		}

		var err error
		body, err = s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Session stream reconnect failed",
				zap.Int("attempt", attempt),
				zap.Duration("next_wait", backoff(attempt+1, s.backoffStep, s.maxBackoff)),
				zap.Error(err),
			)
			body = nil
		}
	}
}

// consume reads one connection until it ends. It returns the number of
// data events applied.
func (s *FirebaseStream) consume(ctx context.Context, body io.Reader, handler Handler) (int, error) {
	tree := &sessionTree{}
	reader := NewEventReader(body)
	received := 0

	for reader.Next() {
		ev := reader.Event()
		switch ev.Name {
		case "keep-alive":
			continue
		case "cancel":
			return received, fmt.Errorf("%w: %s", ErrStreamCancelled, ev.Data)
		case "auth_revoked":
			return received, errAuthRevoked
		case "put", "patch":
		default:
			s.logger.Debug("Ignoring unknown stream event", zap.String("event", ev.Name))
			continue
		}

		var payload streamPayload
		dec := json.NewDecoder(strings.NewReader(ev.Data))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			s.logger.Warn("Skipping undecodable stream event", zap.String("event", ev.Name), zap.Error(err))
			continue
		}
		value, err := decodeValue(payload.Data)
		if err != nil {
			s.logger.Warn("Skipping undecodable stream data", zap.String("path", payload.Path), zap.Error(err))
			continue
		}
		if err := tree.apply(ev.Name, payload.Path, value); err != nil {
			s.logger.Warn("Skipping stream event", zap.String("path", payload.Path), zap.Error(err))
			continue
		}
		received++

		raw, err := tree.marshal()
		if err != nil {
			s.logger.Error("Failed to encode session tree", zap.Error(err))
			continue
		}
		snapshot, err := DecodeSnapshot(raw, s.logger)
		if err != nil {
			s.logger.Warn("Session collection has unexpected shape", zap.Error(err))
			continue
		}
		if ctx.Err() != nil {
			return received, ctx.Err()
		}
		handler(ctx, snapshot)
	}

	return received, reader.Err()
}

func decodeValue(raw json.RawMessage) (interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// sessionTree is the in-memory mirror of the streamed collection.
type sessionTree struct {
	root interface{}
}

func (t *sessionTree) apply(kind, path string, value interface{}) error {
	segs := splitPath(path)
	switch kind {
	case "put":
		t.root = setPath(t.root, segs, value)
	case "patch":
		children, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("patch data is %T, want object", value)
		}
		for key, child := range children {
			full := append(append([]string{}, segs...), splitPath(key)...)
			t.root = setPath(t.root, full, child)
		}
	default:
		return fmt.Errorf("unsupported event %q", kind)
	}
	return nil
}

func (t *sessionTree) marshal() ([]byte, error) {
	if t.root == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.root)
}

func splitPath(path string) []string {
	var segs []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// setPath writes value at segs below node and returns the new node. A nil
// value deletes, and emptied objects collapse to nil.
func setPath(node interface{}, segs []string, value interface{}) interface{} {
	if len(segs) == 0 {
		return value
	}

	var m map[string]interface{}
	switch n := node.(type) {
	case map[string]interface{}:
		m = n
	case []interface{}:
		m = make(map[string]interface{}, len(n))
		for i, v := range n {
			if v != nil {
				m[fmt.Sprint(i)] = v
			}
		}
	default:
		if value == nil {
			return node
		}
		m = map[string]interface{}{}
	}

	child := setPath(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
