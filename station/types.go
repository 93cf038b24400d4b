package station

import (
	"context"
	"io"
	"time"

	"github.com/memo-567/geogram-sub008/internal/chat"
)

// Station identifies a remote station. Callsign is the stable cache
// key: the same station may be reached via different URL forms across
// sessions, so cached data is never namespaced by URL.
type Station struct {
	URL         string `json:"url,omitempty"`
	Callsign    string `json:"callsign"`
	DisplayName string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoomFile is one entry of the per-room file listing: a raw per-day
// chat file held by the station. Cheap metadata only; content is
// fetched separately.
type RoomFile struct {
	Year     string `json:"year"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Day returns the UTC day the file covers, derived from its
// "YYYY-MM-DD"-prefixed name. Files with unparseable names sort oldest.
func (f RoomFile) Day() string {
	if len(f.Filename) < 10 {
		return ""
	}

	return f.Filename[:10]
}

// roomListResponse is returned from GET /api/chat/rooms.
type roomListResponse struct {
	Rooms []chat.Room `json:"rooms"`
}

// fileListResponse is returned from GET /api/chat/rooms/{room}/files.
type fileListResponse struct {
	Files []RoomFile `json:"files"`
}

// messagesResponse is returned from GET /api/chat/rooms/{room}/messages.
type messagesResponse struct {
	Messages []chat.Message `json:"messages"`
}

// postMessageRequest is the payload for POST /api/chat/rooms/{room}/messages.
// The station signs the resulting NOSTR-style event server-side.
type postMessageRequest struct {
	Author   string            `json:"author"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// postMessageResponse carries the server-assigned unix timestamp. The
// caller must echo it verbatim into the optimistic local message so the
// later server broadcast dedups against it.
type postMessageResponse struct {
	Timestamp int64 `json:"timestamp"`
}

// toggleReactionRequest is the payload for POST /api/chat/rooms/{room}/reactions.
type toggleReactionRequest struct {
	Timestamp string `json:"timestamp"`
	Reaction  string `json:"reaction"`
	Author    string `json:"author"`
}

// toggleReactionResponse carries the authoritative post-toggle state.
type toggleReactionResponse struct {
	Reactions map[string][]string `json:"reactions"`
}

// uploadResponse is returned from the multipart file upload endpoint.
type uploadResponse struct {
	Filename string `json:"filename"`
}

// apiError represents an error response from the station API.
type apiError struct {
	Error string `json:"error"`
}

// Notification is a realtime push frame: something under path changed
// in the named collection ("chat", "files", ...). It carries no payload;
// the receiver runs an incremental sync to pick up the change.
type Notification struct {
	CollectionType string `json:"collectionType"`
	Path           string `json:"path"`
}

// API is the station RPC surface the sync engine depends on. Implemented
// by Client; mocked in tests.
type API interface {
	Info(ctx context.Context, url string) (Station, error)
	ListRooms(ctx context.Context, url string) ([]chat.Room, error)
	ListRoomFiles(ctx context.Context, url, roomID string) ([]RoomFile, error)
	FetchFileContent(ctx context.Context, url, roomID, year, filename string) ([]byte, error)
	FetchMessagesSince(ctx context.Context, url, roomID string, after *time.Time, limit int) ([]chat.Message, error)
	PostMessage(ctx context.Context, url, roomID, author, content string, metadata map[string]string) (int64, error)
	DeleteMessage(ctx context.Context, url, roomID, timestamp string) error
	ToggleReaction(ctx context.Context, url, roomID, timestamp, reaction, author string) (map[string][]string, error)
	UploadFile(ctx context.Context, url, roomID, localPath string) (string, error)
	DownloadFile(ctx context.Context, url, roomID, filename string, w io.Writer) error
}

// Signer is the opaque signing capability. Station posts are signed
// server-side; the engine only consults a Signer opportunistically when
// composing local messages, and to verify fetched events.
type Signer interface {
	Sign(content string, metadata map[string]string) (signature string, ok bool)
	Verify(msg chat.Message) bool
}
