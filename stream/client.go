package stream

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ReconnectDelay is the fixed pause before re-establishing a dropped
// connection. Reconnection is silent, automatic and unbounded; the user never
// sees transient drops.
const ReconnectDelay = 5 * time.Second

// Client maintains exactly one live SSE connection to the push endpoint,
// parses inbound frames and hands them to the dispatcher. A new Connect
// replaces any existing connection.
type Client struct {
	url            string
	httpClient     *http.Client
	dispatcher     *Dispatcher
	reconnectDelay time.Duration
	log            zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a transport client. httpClient must inject the bearer
// token shared with the REST client so the connection is authenticated.
func NewClient(url string, httpClient *http.Client, dispatcher *Dispatcher, log zerolog.Logger) *Client {
	return &Client{
		url:            url,
		httpClient:     httpClient,
		dispatcher:     dispatcher,
		reconnectDelay: ReconnectDelay,
		log:            log,
	}
}

// Connect starts the connection loop in the background, replacing any
// previous connection.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(runCtx)
	}()
}

// Close tears the connection down and discards all buffered stream state.
func (c *Client) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	c.dispatcher.Reset()
}

func (c *Client) run(ctx context.Context) {
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		// Transport errors are logged, never surfaced; one reconnection
		// attempt is scheduled after the fixed delay and the loop repeats
		// without bound.
		c.log.Warn().Err(err).Dur("retry_in", c.reconnectDelay).Msg("push connection dropped")
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return errors.Wrap(err, "building stream request")
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "opening stream")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("stream endpoint returned %s", resp.Status)
	}

	c.log.Info().Str("url", c.url).Msg("push connection established")
	return c.readFrames(resp.Body)
}

// readFrames parses the text/event-stream wire format: `event:` and `data:`
// fields accumulate until a blank line terminates the frame. Comment lines
// (leading colon) and the id/retry fields are ignored; multiple data lines
// join with a newline per the format.
func (c *Client) readFrames(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder

	flush := func() {
		if data.Len() == 0 && eventName == "" {
			return
		}
		c.dispatcher.HandleFrame(eventName, []byte(data.String()))
		eventName = ""
		data.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// Comment, typically a keep-alive.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// id:, retry:, and unknown fields are not used by this client.
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading stream")
	}
	return errors.New("stream closed by server")
}
