package station

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/memo-567/geogram-sub008/internal/cache"
	"github.com/memo-567/geogram-sub008/internal/chat"
	geoerrors "github.com/memo-567/geogram-sub008/internal/errors"
)

// RoomUpdate is a display-ready snapshot of a room's merged log, emitted
// whenever the log changed in a way the UI should react to.
type RoomUpdate struct {
	CacheKey string
	RoomID   string
	Messages []chat.Message
}

// DeviceEntry is one row of the cached-devices list shown when the
// primary station is unreachable: any previously-seen station whose
// history can be browsed offline.
type DeviceEntry struct {
	CacheKey  string
	URL       string
	LastWrite time.Time
	Online    bool
}

// EngineConfig holds the sync engine's tuning knobs.
type EngineConfig struct {
	StationURL string
	Callsign   string
	Npub       string

	// PageLimit is the fetch size without a cursor; CursorLimit with one.
	PageLimit   int
	CursorLimit int

	PollInterval time.Duration

	AutoDownloadMaxBytes int64
	AutoDownloadMaxAge   time.Duration
	MaxAttachmentBytes   int64
}

// Engine orchestrates room discovery, progressive and incremental sync,
// optimistic sends, reaction toggles and offline fallback. All station
// errors stop at its methods: they flip the reachability flag and fall
// back to cache, surfacing an error only for direct user actions.
type Engine struct {
	client   API
	cache    *cache.Store
	monitor  *Monitor
	realtime *Realtime
	signer   Signer
	cfg      EngineConfig
	logger   *slog.Logger

	updates chan RoomUpdate

	mu           sync.Mutex
	cacheKey     string
	station      Station
	rooms        []chat.Room
	selectedRoom string

	// busy serializes sync per room: duplicate triggers (realtime push,
	// poll timer, manual refresh) are dropped while one is in flight.
	busy map[string]bool

	// recentUploads maps filenames this client just uploaded to their
	// local source paths, suppressing a redundant re-download.
	recentUploads map[string]string

	downloads map[string]*Download
}

// NewEngine constructs a sync engine. realtime and signer may be nil;
// their absence degrades to polling and unverified messages.
func NewEngine(client API, store *cache.Store, monitor *Monitor, realtime *Realtime, signer Signer, cfg EngineConfig, logger *slog.Logger) *Engine {
	return &Engine{
		client:        client,
		cache:         store,
		monitor:       monitor,
		realtime:      realtime,
		signer:        signer,
		cfg:           cfg,
		logger:        logger,
		updates:       make(chan RoomUpdate, 16),
		busy:          make(map[string]bool),
		recentUploads: make(map[string]string),
		downloads:     make(map[string]*Download),
	}
}

// Updates returns the stream of room snapshots for the UI. Sends are
// non-blocking: a slow consumer misses intermediate snapshots, never
// final ones, because every emit carries the full current log.
func (e *Engine) Updates() <-chan RoomUpdate {
	return e.updates
}

// CacheKey returns the cache key currently in use for the primary
// station. Before first contact it is provisional (recovered from the
// device index, or derived from the URL host).
func (e *Engine) CacheKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.resolveCacheKeyLocked()
}

func (e *Engine) resolveCacheKeyLocked() string {
	if e.cacheKey != "" {
		return e.cacheKey
	}

	// Recover the callsign from the device index so offline restarts
	// find the right cache namespace without network contact.
	for _, d := range e.cache.KnownDevices() {
		if d.LastURL == e.cfg.StationURL {
			e.cacheKey = d.CacheKey
			return e.cacheKey
		}
	}

	if u, err := url.Parse(e.cfg.StationURL); err == nil && u.Host != "" {
		return u.Host
	}

	return e.cfg.StationURL
}

// OpenStation loads the cached room list, then attempts a live fetch.
// On success the fresh list replaces the cached one and the realtime
// channel becomes worth connecting. On failure the cached list stands,
// and the offline device list is returned so the user can browse any
// previously-seen station's history.
func (e *Engine) OpenStation(ctx context.Context) ([]chat.Room, []DeviceEntry) {
	e.mu.Lock()
	key := e.resolveCacheKeyLocked()
	e.mu.Unlock()

	cached, _ := e.cache.LoadRoomList(key)

	e.mu.Lock()
	e.rooms = cached
	e.mu.Unlock()

	st, err := e.client.Info(ctx, e.cfg.StationURL)
	if err == nil {
		e.mu.Lock()
		e.cacheKey = st.Callsign
		e.station = st
		key = st.Callsign
		e.mu.Unlock()

		rooms, listErr := e.client.ListRooms(ctx, e.cfg.StationURL)
		if listErr == nil {
			e.monitor.MarkOnline()

			if saveErr := e.cache.SaveRoomList(key, rooms, e.cfg.StationURL); saveErr != nil {
				e.logger.Warn("persisting room list",
					slog.String("error", saveErr.Error()))
			}

			e.mu.Lock()
			e.rooms = rooms
			e.mu.Unlock()

			e.logger.Info("station online",
				slog.String("callsign", st.Callsign),
				slog.Int("rooms", len(rooms)),
			)

			return rooms, nil
		}

		err = listErr
	}

	e.monitor.MarkOffline()
	e.logger.Info("station unreachable, using cache",
		slog.String("url", e.cfg.StationURL),
		slog.String("error", err.Error()),
	)

	return cached, e.offlineDevices(key)
}

// offlineDevices builds the cached-devices fallback list: online devices
// first (only the primary can be online here), then by most recent
// cache write.
func (e *Engine) offlineDevices(primaryKey string) []DeviceEntry {
	var entries []DeviceEntry

	for _, d := range e.cache.KnownDevices() {
		entries = append(entries, DeviceEntry{
			CacheKey:  d.CacheKey,
			URL:       d.LastURL,
			LastWrite: d.LastWrite,
			Online:    d.CacheKey == primaryKey && e.monitor.Reachable(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Online != entries[j].Online {
			return entries[i].Online
		}

		return entries[i].LastWrite.After(entries[j].LastWrite)
	})

	return entries
}

// Station returns the remote station's identity as of the last
// successful contact. Zero before first contact.
func (e *Engine) Station() Station {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.station
}

// Rooms returns the last known room listing (live or cached).
func (e *Engine) Rooms() []chat.Room {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.rooms
}

// SelectRoom makes roomID the displayed room and returns its cached
// messages immediately. When the station is reachable a sync runs in
// the background and lands through Updates; when it is not, the cache
// is the whole answer and no network call is attempted.
func (e *Engine) SelectRoom(ctx context.Context, roomID string) ([]chat.Message, error) {
	if !e.knownRoom(roomID) {
		return nil, geoerrors.ErrRoomNotFound
	}

	e.mu.Lock()
	e.selectedRoom = roomID
	key := e.resolveCacheKeyLocked()
	e.mu.Unlock()

	cached := e.cache.LoadMessages(key, roomID, e.cfg.CursorLimit)

	if !e.monitor.Reachable() {
		e.logger.Debug("room selected offline, cache only",
			slog.String("room", roomID),
			slog.Int("cached", len(cached)),
		)

		return cached, nil
	}

	go func() {
		if err := e.SyncRoom(ctx, roomID); err != nil {
			e.logger.Debug("background sync failed",
				slog.String("room", roomID),
				slog.String("error", err.Error()),
			)
		}
	}()

	return cached, nil
}

// ensureIdentity returns the callsign cache key, resolving it over the
// network first when it is still provisional. Cached history must never
// land under a URL-derived key: a later restart that does reach the
// station would orphan it there.
func (e *Engine) ensureIdentity(ctx context.Context) (string, error) {
	e.mu.Lock()
	key := e.resolveCacheKeyLocked()
	resolved := e.cacheKey != ""
	e.mu.Unlock()

	if resolved {
		return key, nil
	}

	st, err := e.client.Info(ctx, e.cfg.StationURL)
	if err != nil {
		e.monitor.MarkOffline()
		return "", fmt.Errorf("resolving station identity: %w", err)
	}

	e.mu.Lock()
	e.cacheKey = st.Callsign
	e.station = st
	e.mu.Unlock()

	e.logger.Info("station identity resolved",
		slog.String("callsign", st.Callsign))

	return st.Callsign, nil
}

// RefreshStation re-resolves the station identity and room list. Wired
// to the offline→online reachability edge: the initial OpenStation may
// have failed, leaving a provisional cache key and a stale room list.
func (e *Engine) RefreshStation(ctx context.Context) {
	st, err := e.client.Info(ctx, e.cfg.StationURL)
	if err != nil {
		e.monitor.MarkOffline()
		e.logger.Debug("station refresh failed", slog.String("error", err.Error()))

		return
	}

	e.mu.Lock()
	e.cacheKey = st.Callsign
	e.station = st
	e.mu.Unlock()

	rooms, err := e.client.ListRooms(ctx, e.cfg.StationURL)
	if err != nil {
		e.monitor.MarkOffline()
		return
	}

	if err := e.cache.SaveRoomList(st.Callsign, rooms, e.cfg.StationURL); err != nil {
		e.logger.Warn("persisting room list", slog.String("error", err.Error()))
	}

	e.mu.Lock()
	e.rooms = rooms
	e.mu.Unlock()
}

// SyncRoom synchronizes one room now: progressive when the room has no
// cached history, incremental otherwise. Serialized per room; a trigger
// arriving while a sync is in flight is dropped, since the in-flight
// pass picks up the latest server state anyway.
func (e *Engine) SyncRoom(ctx context.Context, roomID string) error {
	if !e.knownRoom(roomID) {
		return geoerrors.ErrRoomNotFound
	}

	e.mu.Lock()

	if e.busy[roomID] {
		e.mu.Unlock()
		e.logger.Debug("sync already in flight", slog.String("room", roomID))

		return nil
	}

	e.busy[roomID] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.busy, roomID)
		e.mu.Unlock()
	}()

	key, err := e.ensureIdentity(ctx)
	if err != nil {
		return fmt.Errorf("syncing room %s: %w", roomID, err)
	}

	if len(e.cache.LoadMessages(key, roomID, 1)) == 0 {
		return e.progressiveSync(ctx, key, roomID)
	}

	return e.incrementalSync(ctx, key, roomID)
}

// knownRoom reports whether roomID appears in the last known listing. An
// empty listing means discovery has not happened yet; any ID passes so
// offline cached history stays browsable.
func (e *Engine) knownRoom(roomID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.rooms) == 0 {
		return true
	}

	for _, r := range e.rooms {
		if r.ID == roomID {
			return true
		}
	}

	return false
}

// progressiveSync is the first-load strategy: walk the station's day
// files newest first, merging and re-emitting after every single file
// so recent messages appear within one round trip instead of after the
// entire history. Ends with one incremental fetch for same-day messages
// not yet flushed to a daily file on the server.
func (e *Engine) progressiveSync(ctx context.Context, key, roomID string) error {
	files, err := e.client.ListRoomFiles(ctx, e.cfg.StationURL, roomID)
	if err != nil {
		e.monitor.MarkOffline()
		return fmt.Errorf("progressive sync for room %s: %w", roomID, err)
	}

	e.monitor.MarkOnline()

	// Newest day first.
	sort.Slice(files, func(i, j int) bool { return files[i].Day() > files[j].Day() })

	for _, f := range files {
		if e.cache.HasFile(key, roomID, f.Year, f.Filename, f.Size) {
			continue
		}

		data, err := e.client.FetchFileContent(ctx, e.cfg.StationURL, roomID, f.Year, f.Filename)
		if err != nil {
			// Keep what we merged so far; the next sync resumes where
			// this one stopped because merged files pass HasFile.
			e.monitor.MarkOffline()
			return fmt.Errorf("fetching day file %s: %w", f.Filename, err)
		}

		if err := e.cache.SaveRawFile(key, roomID, f.Year, f.Filename, data); err != nil {
			e.logger.Warn("persisting day file",
				slog.String("file", f.Filename),
				slog.String("error", err.Error()),
			)
			continue
		}

		e.logger.Debug("merged day file",
			slog.String("room", roomID),
			slog.String("file", f.Filename),
		)

		e.emitIfSelected(key, roomID)
	}

	return e.incrementalSync(ctx, key, roomID)
}

// incrementalSync fetches messages from the UTC day of the newest cached
// message onward and merges them. The UI is notified only when the
// latest message actually changed, so empty deltas cost no re-render.
func (e *Engine) incrementalSync(ctx context.Context, key, roomID string) error {
	prev := chat.Latest(e.cache.LoadMessages(key, roomID, 1))

	var after *time.Time

	limit := e.cfg.PageLimit

	if prev.Timestamp != "" {
		if day, err := chat.ParseDay(chat.DayOf(prev.Timestamp)); err == nil {
			after = &day
			limit = e.cfg.CursorLimit
		}
	}

	msgs, err := e.client.FetchMessagesSince(ctx, e.cfg.StationURL, roomID, after, limit)
	if err != nil {
		e.monitor.MarkOffline()
		return fmt.Errorf("incremental sync for room %s: %w", roomID, err)
	}

	e.monitor.MarkOnline()
	e.verify(msgs)

	if err := e.cache.MergeMessages(key, roomID, msgs); err != nil {
		e.logger.Warn("merging fetched messages",
			slog.String("room", roomID),
			slog.String("error", err.Error()),
		)

		return nil
	}

	next := chat.Latest(e.cache.LoadMessages(key, roomID, 1))
	if next.Key() != prev.Key() {
		e.emitIfSelected(key, roomID)
	}

	return nil
}

// verify stamps the Verified flag on signed messages when a Signer is
// available.
func (e *Engine) verify(msgs []chat.Message) {
	if e.signer == nil {
		return
	}

	for i := range msgs {
		if msgs[i].HasSignature() {
			msgs[i].Verified = e.signer.Verify(msgs[i])
		}
	}
}

// Send validates, optionally uploads an attachment, posts the message,
// and applies the optimistic local echo built from the server-assigned
// timestamp so the later broadcast of the same event dedups against it.
// There is no offline queue for station rooms: an unreachable station
// rejects the send outright.
func (e *Engine) Send(ctx context.Context, roomID, content string, metadata map[string]string, attachmentPath string) (chat.Message, error) {
	if e.cfg.Callsign == "" {
		return chat.Message{}, geoerrors.ErrEmptyCallsign
	}

	if content == "" && attachmentPath == "" {
		return chat.Message{}, geoerrors.ErrEmptyMessage
	}

	if !e.monitor.Reachable() {
		return chat.Message{}, geoerrors.ErrUnreachable
	}

	if metadata == nil {
		metadata = make(map[string]string)
	}

	if attachmentPath != "" {
		info, err := os.Stat(attachmentPath)
		if err != nil {
			return chat.Message{}, fmt.Errorf("reading attachment: %w", err)
		}

		if info.Size() > e.cfg.MaxAttachmentBytes {
			return chat.Message{}, geoerrors.ErrAttachmentTooLarge
		}

		stored, err := e.client.UploadFile(ctx, e.cfg.StationURL, roomID, attachmentPath)
		if err != nil {
			e.monitor.MarkOffline()
			return chat.Message{}, fmt.Errorf("%w: %w", geoerrors.ErrUploadFailed, err)
		}

		metadata[chat.MetaFileName] = stored
		metadata[chat.MetaFileSize] = fmt.Sprintf("%d", info.Size())

		e.mu.Lock()
		e.recentUploads[stored] = attachmentPath
		e.mu.Unlock()
	}

	unix, err := e.client.PostMessage(ctx, e.cfg.StationURL, roomID, e.cfg.Callsign, content, metadata)
	if err != nil {
		e.monitor.MarkOffline()
		return chat.Message{}, fmt.Errorf("%w: %w", geoerrors.ErrSendRejected, err)
	}

	e.monitor.MarkOnline()

	// The server broadcasts the identical event later; the exact echoed
	// timestamp makes the (timestamp, author) keys collide and collapse.
	msg := chat.Message{
		Timestamp: chat.TimestampFromUnix(unix),
		Author:    e.cfg.Callsign,
		Content:   content,
		Npub:      e.cfg.Npub,
		Metadata:  metadata,
	}

	e.mu.Lock()
	key := e.resolveCacheKeyLocked()
	e.mu.Unlock()

	if err := e.cache.MergeMessages(key, roomID, []chat.Message{msg}); err != nil {
		e.logger.Warn("persisting sent message", slog.String("error", err.Error()))
	}

	e.emitIfSelected(key, roomID)

	return msg, nil
}

// ToggleReaction applies the toggle optimistically, then reconciles with
// the server. Offline, the optimistic state persists until the next
// successful sync overwrites it; online, the server's answer is
// authoritative (it sees races with other users), and a failed round
// trip reverts to the pre-toggle snapshot.
func (e *Engine) ToggleReaction(ctx context.Context, roomID string, msg chat.Message, symbol string) (map[string][]string, error) {
	if e.cfg.Callsign == "" {
		return nil, geoerrors.ErrEmptyCallsign
	}

	e.mu.Lock()
	key := e.resolveCacheKeyLocked()
	e.mu.Unlock()

	snapshot := chat.CloneReactions(msg.Reactions)

	optimistic := msg.Clone()
	optimistic.Reactions = chat.ApplyReaction(msg.Reactions, symbol, e.cfg.Callsign)

	if err := e.cache.MergeMessages(key, roomID, []chat.Message{optimistic}); err != nil {
		e.logger.Warn("persisting optimistic reaction", slog.String("error", err.Error()))
	}

	e.emitIfSelected(key, roomID)

	if !e.monitor.Reachable() {
		return optimistic.Reactions, nil
	}

	authoritative, err := e.client.ToggleReaction(ctx, e.cfg.StationURL, roomID, msg.Timestamp, symbol, e.cfg.Callsign)
	if err != nil {
		// Revert: the speculative state must not survive a failed
		// round trip.
		reverted := msg.Clone()
		reverted.Reactions = snapshot

		if mergeErr := e.cache.MergeMessages(key, roomID, []chat.Message{reverted}); mergeErr != nil {
			e.logger.Warn("reverting reaction", slog.String("error", mergeErr.Error()))
		}

		e.emitIfSelected(key, roomID)
		e.monitor.MarkOffline()

		return nil, fmt.Errorf("toggling reaction: %w", err)
	}

	e.monitor.MarkOnline()

	confirmed := msg.Clone()
	confirmed.Reactions = authoritative

	if err := e.cache.MergeMessages(key, roomID, []chat.Message{confirmed}); err != nil {
		e.logger.Warn("persisting confirmed reaction", slog.String("error", err.Error()))
	}

	e.emitIfSelected(key, roomID)

	return authoritative, nil
}

// Delete removes a message authored by this client, server first, then
// cache tombstone.
func (e *Engine) Delete(ctx context.Context, roomID string, msg chat.Message) error {
	if !msg.IsAuthoredBy(e.cfg.Callsign, e.cfg.Npub) {
		return geoerrors.ErrNotMessageAuthor
	}

	if !e.monitor.Reachable() {
		return geoerrors.ErrUnreachable
	}

	if err := e.client.DeleteMessage(ctx, e.cfg.StationURL, roomID, msg.Timestamp); err != nil {
		e.monitor.MarkOffline()
		return fmt.Errorf("deleting message: %w", err)
	}

	e.mu.Lock()
	key := e.resolveCacheKeyLocked()
	e.mu.Unlock()

	if err := e.cache.RemoveMessage(key, roomID, msg.Timestamp, msg.Author); err != nil {
		e.logger.Warn("removing message from cache", slog.String("error", err.Error()))
	}

	e.emitIfSelected(key, roomID)

	return nil
}

// Run is the coordinating scheduler: realtime notifications trigger an
// incremental sync of the selected room, and the poll timer covers the
// same ground only while the realtime channel is down, so push and poll
// never run redundantly.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	var notifCh <-chan Notification
	if e.realtime != nil {
		notifCh = e.realtime.Notifications()
	}

	for {
		select {
		case n := <-notifCh:
			if n.CollectionType != "chat" {
				continue
			}

			e.syncSelected(ctx)

		case <-ticker.C:
			if e.realtime != nil && e.realtime.Connected() {
				continue
			}

			if !e.monitor.Reachable() {
				continue
			}

			e.syncSelected(ctx)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ResyncSelected forces a sync of the selected room; wired to the
// reachability monitor's offline→online edge.
func (e *Engine) ResyncSelected(ctx context.Context) {
	e.syncSelected(ctx)
}

func (e *Engine) syncSelected(ctx context.Context) {
	e.mu.Lock()
	roomID := e.selectedRoom
	e.mu.Unlock()

	if roomID == "" {
		return
	}

	if err := e.SyncRoom(ctx, roomID); err != nil {
		e.logger.Debug("scheduled sync failed",
			slog.String("room", roomID),
			slog.String("error", err.Error()),
		)
	}
}

// emitIfSelected pushes a fresh snapshot of roomID to the UI, unless the
// user has moved on: a slow sync for a previously-selected room must not
// overwrite the newly-selected room's displayed state.
func (e *Engine) emitIfSelected(key, roomID string) {
	e.mu.Lock()
	selected := e.selectedRoom
	e.mu.Unlock()

	if selected != roomID {
		e.logger.Debug("suppressing update for unselected room",
			slog.String("room", roomID),
			slog.String("selected", selected),
		)

		return
	}

	update := RoomUpdate{
		CacheKey: key,
		RoomID:   roomID,
		Messages: e.cache.LoadMessages(key, roomID, e.cfg.CursorLimit),
	}

	select {
	case e.updates <- update:
	default:
		// Consumer is behind; it will get the next snapshot, which
		// contains everything this one does.
	}
}
