package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tableread/internal/casting"
	"tableread/internal/document"
	"tableread/internal/logging"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultReadRetries  = 2
	defaultRetryBackoff = 250 * time.Millisecond
	defaultVoicePage    = 200
	maxResponseBytes    = 16 << 20
)

// ClientOptions configures the HTTP client.
type ClientOptions struct {
	// BaseURL is the server root, e.g. http://127.0.0.1:7113.
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// ReadRetries is how many extra attempts reads get after a network
	// failure. Mutations are never retried here.
	ReadRetries int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
	// VoicePageSize bounds catalog pages fetched per request.
	VoicePageSize int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client implements Store over the HTTP API.
type Client struct {
	base          *url.URL
	httpClient    *http.Client
	token         string
	readRetries   int
	retryBackoff  time.Duration
	voicePageSize int
	logger        *slog.Logger
}

var _ Store = (*Client)(nil)

// NewClient validates options and builds a client.
func NewClient(opts ClientOptions) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}

	client := &Client{
		base:          base,
		httpClient:    opts.HTTPClient,
		token:         strings.TrimSpace(opts.Token),
		readRetries:   opts.ReadRetries,
		retryBackoff:  opts.RetryBackoff,
		voicePageSize: opts.VoicePageSize,
		logger:        opts.Logger,
	}
	if client.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client.httpClient = &http.Client{Timeout: timeout}
	}
	if client.readRetries < 0 {
		client.readRetries = 0
	} else if opts.ReadRetries == 0 {
		client.readRetries = defaultReadRetries
	}
	if client.retryBackoff <= 0 {
		client.retryBackoff = defaultRetryBackoff
	}
	if client.voicePageSize <= 0 {
		client.voicePageSize = defaultVoicePage
	}
	if client.logger == nil {
		client.logger = logging.NewNop()
	}
	return client, nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil, false)
}

// CreateSession implements Store.
func (c *Client) CreateSession(ctx context.Context, req NewSession) (*casting.Session, error) {
	var payload SessionPayload
	body := CreateSessionRequest{Title: req.Title, SourcePath: req.SourcePath}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", nil, body, &payload, false); err != nil {
		return nil, err
	}
	return payload.Session(), nil
}

// FetchSession implements Store. Reads are retried on network failure.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*casting.Session, error) {
	var payload SessionPayload
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID), nil, nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.Session(), nil
}

// ListSessions implements Store.
func (c *Client) ListSessions(ctx context.Context) ([]casting.SessionSummary, error) {
	var payload SessionListResponse
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, nil, &payload, true); err != nil {
		return nil, err
	}
	summaries := make([]casting.SessionSummary, 0, len(payload.Sessions))
	for _, summary := range payload.Sessions {
		summaries = append(summaries, summary.Summary())
	}
	return summaries, nil
}

// DeleteSession implements Store.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil, nil, false)
}

// CommitDocument implements Store.
func (c *Client) CommitDocument(ctx context.Context, sessionID, documentText string, expectedVersion int64) (*casting.Session, error) {
	var payload SessionPayload
	body := CommitDocumentRequest{DocumentText: documentText, ExpectedVersion: expectedVersion}
	err := c.do(ctx, http.MethodPut, sessionPath(sessionID)+"/document", nil, body, &payload, false)
	if err != nil {
		return nil, decorateConflict(err, sessionID, expectedVersion)
	}
	return payload.Session(), nil
}

// CommitAssignmentMetadata implements Store.
func (c *Client) CommitAssignmentMetadata(ctx context.Context, sessionID, speaker string, patch casting.AssignmentPatch, expectedVersion int64) (*casting.Session, error) {
	var payload SessionPayload
	body := NewCommitAssignmentRequest(patch, expectedVersion)
	err := c.do(ctx, http.MethodPatch, assignmentPath(sessionID, speaker), nil, body, &payload, false)
	if err != nil {
		return nil, decorateConflict(err, sessionID, expectedVersion)
	}
	return payload.Session(), nil
}

// ClearAssignment implements Store.
func (c *Client) ClearAssignment(ctx context.Context, sessionID, speaker string, expectedVersion int64) (*casting.Session, error) {
	var payload SessionPayload
	body := ClearAssignmentRequest{ExpectedVersion: expectedVersion}
	err := c.do(ctx, http.MethodPost, assignmentPath(sessionID, speaker)+"/clear-voice", nil, body, &payload, false)
	if err != nil {
		return nil, decorateConflict(err, sessionID, expectedVersion)
	}
	return payload.Session(), nil
}

// ValidateDocument implements Store.
func (c *Client) ValidateDocument(ctx context.Context, sessionID, documentText string) (*document.Report, error) {
	var payload ValidationReportPayload
	body := ValidateRequest{DocumentText: documentText}
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID)+"/validate", nil, body, &payload, false); err != nil {
		return nil, err
	}
	return payload.Report(), nil
}

// ListProviders implements Store.
func (c *Client) ListProviders(ctx context.Context) ([]string, error) {
	var payload ProvidersResponse
	if err := c.do(ctx, http.MethodGet, "/api/providers", nil, nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.Providers, nil
}

// ListLibraryVoices implements Store. The server pages the catalog; callers
// always receive the full finite listing.
func (c *Client) ListLibraryVoices(ctx context.Context, provider string) ([]casting.LibraryVoice, error) {
	var voices []casting.LibraryVoice
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("page_size", strconv.Itoa(c.voicePageSize))

		var payload VoicesResponse
		path := "/api/providers/" + url.PathEscape(provider) + "/voices"
		if err := c.do(ctx, http.MethodGet, path, query, nil, &payload, true); err != nil {
			return nil, err
		}
		for _, voice := range payload.Voices {
			voices = append(voices, voice.Voice())
		}
		if len(payload.Voices) == 0 || len(voices) >= payload.Total || payload.PageSize <= 0 {
			break
		}
	}
	return voices, nil
}

// ExtractCharacters implements Store. Extraction only reads the screenplay,
// so it is safe to retry.
func (c *Client) ExtractCharacters(ctx context.Context, sourcePath string) ([]casting.CharacterInfo, error) {
	var payload ExtractResponse
	body := ExtractRequest{SourcePath: sourcePath}
	if err := c.do(ctx, http.MethodPost, "/api/characters/extract", nil, body, &payload, true); err != nil {
		return nil, err
	}
	characters := make([]casting.CharacterInfo, 0, len(payload.Characters))
	for _, character := range payload.Characters {
		characters = append(characters, casting.CharacterInfo(character))
	}
	return characters, nil
}

func sessionPath(sessionID string) string {
	return "/api/sessions/" + url.PathEscape(sessionID)
}

func assignmentPath(sessionID, speaker string) string {
	return sessionPath(sessionID) + "/assignments/" + url.PathEscape(speaker)
}

// do issues one logical call. Idempotent reads are retried with doubling
// backoff while the failure stays in the network class; everything else gets
// exactly one attempt.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, idempotent bool) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	attempts := 1
	if idempotent {
		attempts += c.readRetries
	}

	backoff := c.retryBackoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying request after network failure",
				logging.String("method", method),
				logging.String("path", path),
				logging.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		lastErr = c.doOnce(ctx, method, path, query, payload, out)
		if lastErr == nil || !Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	target := *c.base
	target.Path = strings.TrimRight(target.Path, "/") + path
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: read response for %s %s: %v", ErrNetwork, method, path, err)
	}
	if resp.StatusCode >= 400 {
		return errorFromResponse(resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response for %s %s: %v", ErrParse, method, path, err)
		}
	}
	return nil
}

// errorFromResponse rebuilds the taxonomy error carried by an ErrorPayload,
// falling back to status-code inference for foreign error bodies.
func errorFromResponse(status int, body []byte) error {
	var payload ErrorPayload
	_ = json.Unmarshal(body, &payload)

	kind := payload.Kind
	if kind == "" {
		switch {
		case status == http.StatusNotFound:
			kind = KindNotFound
		case status == http.StatusConflict:
			kind = KindConflict
		case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
			kind = KindValidation
		default:
			kind = KindNetwork
		}
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = http.StatusText(status)
	}

	switch kind {
	case KindNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case KindConflict:
		return &ConflictError{CurrentVersion: payload.CurrentVersion}
	case KindValidation:
		if len(payload.Problems) > 0 {
			return NewValidation(payload.Problems...)
		}
		return fmt.Errorf("%w: %s", ErrValidation, message)
	case KindParse:
		return fmt.Errorf("%w: %s", ErrParse, message)
	default:
		return fmt.Errorf("%w: server returned %d: %s", ErrNetwork, status, message)
	}
}

// decorateConflict fills in the caller-side half of a conflict error.
func decorateConflict(err error, sessionID string, expectedVersion int64) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		if conflict.SessionID == "" {
			conflict.SessionID = sessionID
		}
		if conflict.ExpectedVersion == 0 {
			conflict.ExpectedVersion = expectedVersion
		}
	}
	return err
}
