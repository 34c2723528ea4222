package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stablestream/internal/metrics"
	"stablestream/internal/model"
	"stablestream/internal/pipeline"
)

var errShuttingDown = errors.New("server shutting down")

// TransportError is a failed write to the client connection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("write to client: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type errorFrame struct {
	Error string `json:"error"`
}

// session drives one subscription against one open stream.
type session struct {
	sub       *pipeline.Subscription
	w         *bufio.Writer
	keepalive time.Duration
	shutdown  <-chan struct{}
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// run writes events until the subscription terminates, the server shuts down
// or a write fails. The subscription is always closed on return.
func (s *session) run() error {
	defer s.sub.Close()

	if err := writeComment(s.w, "connected"); err != nil {
		return &TransportError{Err: err}
	}

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event := <-s.sub.Events():
			if err := s.writeEvent(event); err != nil {
				return err
			}
		case <-keepalive.C:
			if err := writeComment(s.w, "keepalive"); err != nil {
				return &TransportError{Err: err}
			}
		case <-s.sub.Done():
			if err := s.drain(); err != nil {
				return err
			}
			return s.terminate(s.sub.Err())
		case <-s.shutdown:
			return s.terminate(errShuttingDown)
		}
	}
}

// drain flushes events buffered before the subscription ended.
func (s *session) drain() error {
	for {
		select {
		case event := <-s.sub.Events():
			if err := s.writeEvent(event); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *session) writeEvent(event model.TransferEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal event", zap.Error(err), zap.String("tx_hash", event.TxHash))
		return nil
	}
	if err := writeData(s.w, payload); err != nil {
		return &TransportError{Err: err}
	}
	s.metrics.EventSent(event.Network)
	return nil
}

// terminate ends the stream with an error frame unless the consumer itself
// closed the subscription.
func (s *session) terminate(cause error) error {
	if cause == nil || errors.Is(cause, pipeline.ErrClosed) {
		return nil
	}
	s.logger.Warn("closing stream with error", zap.Error(cause))
	if err := writeSSE(s.w, "error", errorFrame{Error: cause.Error()}); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func writeSSE(w *bufio.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}

func writeData(w *bufio.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeComment(w *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.Flush()
}
