package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// durationLimitMarker is the provider's message fragment for audio too long
// to recognize inline. It is matched case-insensitively and mapped to
// services.ErrDurationLimit so the strategy can switch to the remote path.
const durationLimitMarker = "inline audio exceeds duration limit"

// HTTPDoer describes the HTTP client used by the recognition client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the recognition provider's REST surface.
type Client struct {
	endpoint       string
	apiKey         string
	httpClient     HTTPDoer
	pollInterval   time.Duration
	longRunTimeout time.Duration
	logger         *slog.Logger
}

// NewClient constructs a recognition client from configuration.
func NewClient(cfg config.Speech, logger *slog.Logger) *Client {
	return NewClientWithDoer(cfg, http.DefaultClient, logger)
}

// NewClientWithDoer constructs a recognition client over the given HTTP doer.
func NewClientWithDoer(cfg config.Speech, doer HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		endpoint:       strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		httpClient:     doer,
		pollInterval:   time.Duration(cfg.PollInterval) * time.Second,
		longRunTimeout: time.Duration(cfg.LongRunTimeout) * time.Second,
		logger:         logging.NewComponentLogger(logger, "speech"),
	}
}

// Recognize performs synchronous inline recognition over audio bytes.
func (c *Client) Recognize(ctx context.Context, recognition RecognitionConfig, audio []byte) (*RecognizeResponse, error) {
	request := recognizeRequest{
		Config: recognition,
		Audio:  RecognitionAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	}
	var response RecognizeResponse
	if err := c.post(ctx, "/v1p1beta1/speech:recognize", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// LongRunningRecognize starts asynchronous recognition over an object-store
// URI and returns the operation name to poll.
func (c *Client) LongRunningRecognize(ctx context.Context, recognition RecognitionConfig, uri string) (string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", services.Wrap(services.ErrValidation, "recognize", "long-running", "remote URI is empty", nil)
	}
	request := recognizeRequest{
		Config: recognition,
		Audio:  RecognitionAudio{URI: uri},
	}
	var operation Operation
	if err := c.post(ctx, "/v1p1beta1/speech:longrunningrecognize", request, &operation); err != nil {
		return "", err
	}
	if operation.Name == "" {
		return "", services.Wrap(services.ErrProvider, "recognize", "long-running", "provider returned no operation name", nil)
	}
	return operation.Name, nil
}

// WaitOperation polls a long-running operation until it finishes or the
// configured timeout elapses.
func (c *Client) WaitOperation(ctx context.Context, name string) (*RecognizeResponse, error) {
	deadline := time.Now().Add(c.longRunTimeout)
	for {
		operation, err := c.getOperation(ctx, name)
		if err != nil {
			return nil, err
		}
		if operation.Done {
			if operation.Error != nil {
				return nil, classifyProviderError("recognize", "operation", operation.Error.Message, nil)
			}
			if operation.Response == nil {
				return nil, services.Wrap(services.ErrProvider, "recognize", "operation", "finished without a response", nil)
			}
			return operation.Response, nil
		}
		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrTimeout, "recognize", "operation",
				fmt.Sprintf("operation %s still running after %s", name, c.longRunTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrTimeout, "recognize", "operation", "wait canceled", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrProvider, "recognize", "encode request", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(path), bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrProvider, "recognize", "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getOperation(ctx context.Context, name string) (*Operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL("/v1p1beta1/operations/"+url.PathEscape(name)), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "recognize", "build request", "", err)
	}
	var operation Operation
	if err := c.do(req, &operation); err != nil {
		return nil, err
	}
	return &operation, nil
}

func (c *Client) requestURL(path string) string {
	endpoint := c.endpoint + path
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}
	return endpoint
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrProvider, "recognize", "call provider", "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return services.Wrap(services.ErrProvider, "recognize", "read response", "", err)
	}
	if resp.StatusCode != http.StatusOK {
		message := providerMessage(data)
		if message == "" {
			message = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		}
		return classifyProviderError("recognize", "call provider", message, nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrProvider, "recognize", "decode response", "", err)
	}
	return nil
}

func providerMessage(body []byte) string {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func classifyProviderError(stage, op, message string, err error) error {
	if strings.Contains(strings.ToLower(message), durationLimitMarker) {
		return services.Wrap(services.ErrDurationLimit, stage, op, message, err)
	}
	return services.Wrap(services.ErrProvider, stage, op, message, err)
}
