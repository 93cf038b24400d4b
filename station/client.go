package station

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/memo-567/geogram-sub008/internal/chat"
)

// callTimeout bounds every station RPC. Exceeding it is treated the same
// as a connection failure: the caller flips to offline and falls back to
// cache. No unbounded hangs.
const callTimeout = 10 * time.Second

// Client talks to a station's HTTP API. It is a stateless RPC wrapper:
// no retries, no queuing, one bounded round trip per call. The station
// URL is a parameter on every method because the engine may talk to any
// previously-seen station, not just the configured one.
type Client struct {
	httpClient *http.Client
}

var _ API = (*Client)(nil)

// NewClient creates a station API client. If httpClient is nil, a
// default client with the fixed per-call timeout is used.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: callTimeout}
	}

	return &Client{httpClient: httpClient}
}

// endpoint joins a station base URL with an API path.
func endpoint(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + path
}

// getJSON sends a GET request and decodes the response into result.
func (c *Client) getJSON(ctx context.Context, rawURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, rawURL, result)
}

// postJSON sends a JSON POST request and decodes the response into result.
func (c *Client) postJSON(ctx context.Context, rawURL string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, rawURL, result)
}

// decodeResponse checks the status and unmarshals the body into result.
func decodeResponse(resp *http.Response, rawURL string, result interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("station %s (%d): %s", rawURL, resp.StatusCode, apiErr.Error)
		}

		return fmt.Errorf("station %s returned status %d", rawURL, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", rawURL, err)
		}
	}

	return nil
}

// Info fetches the station's identity. The returned callsign is the
// stable cache key for everything fetched from this station.
func (c *Client) Info(ctx context.Context, baseURL string) (Station, error) {
	var st Station
	if err := c.getJSON(ctx, endpoint(baseURL, "/api/info"), &st); err != nil {
		return Station{}, fmt.Errorf("fetching station info: %w", err)
	}

	st.URL = baseURL

	return st, nil
}

// ListRooms fetches the station's room listing. Doubles as the
// reachability health check.
func (c *Client) ListRooms(ctx context.Context, baseURL string) ([]chat.Room, error) {
	var resp roomListResponse
	if err := c.getJSON(ctx, endpoint(baseURL, "/api/chat/rooms"), &resp); err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}

	return resp.Rooms, nil
}

// ListRoomFiles fetches the per-day file listing for a room. Cheap
// metadata only; the caller sorts.
func (c *Client) ListRoomFiles(ctx context.Context, baseURL, roomID string) ([]RoomFile, error) {
	var resp fileListResponse

	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+"/files")
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("listing files for room %s: %w", roomID, err)
	}

	return resp.Files, nil
}

// FetchFileContent downloads one raw day file.
func (c *Client) FetchFileContent(ctx context.Context, baseURL, roomID, year, filename string) ([]byte, error) {
	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+
		"/files/"+url.PathEscape(year)+"/"+url.PathEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", year, filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s/%s: station returned status %d", year, filename, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", year, filename, err)
	}

	return data, nil
}

// FetchMessagesSince fetches messages for a room. A nil after means the
// most recent limit messages; otherwise messages on or after that UTC
// day, up to limit.
func (c *Client) FetchMessagesSince(ctx context.Context, baseURL, roomID string, after *time.Time, limit int) ([]chat.Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if after != nil {
		q.Set("after", chat.FormatDay(*after))
	}

	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+"/messages") + "?" + q.Encode()

	var resp messagesResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fetching messages for room %s: %w", roomID, err)
	}

	return resp.Messages, nil
}

// PostMessage posts a message and returns the server-assigned unix
// timestamp. The station composes and signs the event server-side.
func (c *Client) PostMessage(ctx context.Context, baseURL, roomID, author, content string, metadata map[string]string) (int64, error) {
	req := postMessageRequest{
		Author:   author,
		Content:  content,
		Metadata: metadata,
	}

	var resp postMessageResponse

	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+"/messages")
	if err := c.postJSON(ctx, u, req, &resp); err != nil {
		return 0, fmt.Errorf("posting message to room %s: %w", roomID, err)
	}

	if resp.Timestamp == 0 {
		return 0, fmt.Errorf("posting message to room %s: station returned no timestamp", roomID)
	}

	return resp.Timestamp, nil
}

// DeleteMessage deletes a message by its canonical timestamp.
func (c *Client) DeleteMessage(ctx context.Context, baseURL, roomID, timestamp string) error {
	q := url.Values{}
	q.Set("timestamp", timestamp)

	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+"/messages") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting message in room %s: %w", roomID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deleting message in room %s: station returned status %d", roomID, resp.StatusCode)
	}

	return nil
}

// ToggleReaction toggles the author's reaction on a message and returns
// the authoritative post-toggle reaction map, which handles races with
// other users reacting concurrently.
func (c *Client) ToggleReaction(ctx context.Context, baseURL, roomID, timestamp, reaction, author string) (map[string][]string, error) {
	req := toggleReactionRequest{
		Timestamp: timestamp,
		Reaction:  reaction,
		Author:    author,
	}

	var resp toggleReactionResponse

	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+"/reactions")
	if err := c.postJSON(ctx, u, req, &resp); err != nil {
		return nil, fmt.Errorf("toggling reaction in room %s: %w", roomID, err)
	}

	return resp.Reactions, nil
}

// UploadFile uploads a local file as a multipart form and returns the
// filename the station stored it under.
func (c *Client) UploadFile(ctx context.Context, baseURL, roomID, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("creating multipart form: %w", err)
	}

	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", localPath, err)
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalizing multipart form: %w", err)
	}

	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+"/files")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s to room %s: %w", filepath.Base(localPath), roomID, err)
	}
	defer resp.Body.Close()

	var upResp uploadResponse
	if err := decodeResponse(resp, u, &upResp); err != nil {
		return "", fmt.Errorf("uploading %s to room %s: %w", filepath.Base(localPath), roomID, err)
	}

	if upResp.Filename == "" {
		return "", fmt.Errorf("uploading %s to room %s: station returned no filename", filepath.Base(localPath), roomID)
	}

	return upResp.Filename, nil
}

// DownloadFile streams an attachment into w. Wrapping w lets the caller
// observe progress.
func (c *Client) DownloadFile(ctx context.Context, baseURL, roomID, filename string, w io.Writer) error {
	u := endpoint(baseURL, "/api/chat/rooms/"+url.PathEscape(roomID)+
		"/attachments/"+url.PathEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s from room %s: %w", filename, roomID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("downloading %s from room %s: station returned status %d", filename, roomID, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("streaming %s from room %s: %w", filename, roomID, err)
	}

	return nil
}
