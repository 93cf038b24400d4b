package station

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memo-567/geogram-sub008/internal/chat"
	geoerrors "github.com/memo-567/geogram-sub008/internal/errors"
)

// DownloadState describes where an attachment transfer stands.
type DownloadState int

const (
	DownloadRunning DownloadState = iota
	DownloadDone
	DownloadFailed
	DownloadCancelled
)

// Download tracks one in-flight or finished attachment transfer.
type Download struct {
	Filename string
	Total    int64

	received atomic.Int64
	state    atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	mu       sync.Mutex
}

// Done closes when the transfer finishes in any state.
func (d *Download) Done() <-chan struct{} { return d.done }

// Received reports bytes written so far.
func (d *Download) Received() int64 { return d.received.Load() }

// State reports the transfer's current state.
func (d *Download) State() DownloadState { return DownloadState(d.state.Load()) }

// Err returns the failure cause once State is DownloadFailed.
func (d *Download) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.err
}

// Cancel aborts the transfer. The partial file is discarded.
func (d *Download) Cancel() {
	d.state.CompareAndSwap(int32(DownloadRunning), int32(DownloadCancelled))
	d.cancel()
}

func (d *Download) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	d.state.CompareAndSwap(int32(DownloadRunning), int32(DownloadFailed))
}

// progressWriter counts bytes as they stream to the cache file.
type progressWriter struct {
	w io.Writer
	d *Download
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.d.received.Add(int64(n))

	return n, err
}

// Attachment resolves a message's attachment to a local path. Resolution
// order: the cache, then a just-uploaded local original, then an
// automatic download when the file qualifies (small and recent) and the
// station is reachable. Anything else returns ErrDownloadDenied and the
// caller decides whether to ask for an explicit RequestDownload.
func (e *Engine) Attachment(ctx context.Context, roomID string, msg chat.Message) (string, error) {
	filename := msg.AttachmentName()
	if filename == "" {
		return "", fmt.Errorf("message %q has no attachment", msg.Key())
	}

	e.mu.Lock()
	key := e.resolveCacheKeyLocked()
	local, uploaded := e.recentUploads[filename]
	e.mu.Unlock()

	if e.cache.HasAttachment(key, roomID, filename) {
		return e.cache.AttachmentPath(key, roomID, filename), nil
	}

	if uploaded {
		return local, nil
	}

	if !e.autoDownloadable(msg) || !e.monitor.Reachable() {
		return "", geoerrors.ErrDownloadDenied
	}

	d, err := e.startDownload(ctx, key, roomID, filename, attachmentSize(msg))
	if err != nil {
		return "", err
	}

	<-d.done

	if d.State() != DownloadDone {
		if err := d.Err(); err != nil {
			return "", err
		}

		return "", geoerrors.ErrDownloadDenied
	}

	return e.cache.AttachmentPath(key, roomID, filename), nil
}

// RequestDownload starts an explicit, user-initiated transfer regardless
// of the auto-download policy. The returned Download reports progress
// and can be cancelled; a transfer already running for the same file is
// returned as-is.
func (e *Engine) RequestDownload(ctx context.Context, roomID string, msg chat.Message) (*Download, error) {
	filename := msg.AttachmentName()
	if filename == "" {
		return nil, fmt.Errorf("message %q has no attachment", msg.Key())
	}

	if !e.monitor.Reachable() {
		return nil, geoerrors.ErrUnreachable
	}

	e.mu.Lock()
	key := e.resolveCacheKeyLocked()
	e.mu.Unlock()

	return e.startDownload(ctx, key, roomID, filename, attachmentSize(msg))
}

// autoDownloadable applies the transparent-fetch policy: small enough
// and recent enough that pulling it without asking will not hurt a
// constrained link.
func (e *Engine) autoDownloadable(msg chat.Message) bool {
	size := attachmentSize(msg)
	if size < 0 || size > e.cfg.AutoDownloadMaxBytes {
		return false
	}

	sent, err := chat.ParseTimestamp(msg.Timestamp)
	if err != nil {
		return false
	}

	return time.Since(sent) <= e.cfg.AutoDownloadMaxAge
}

func attachmentSize(msg chat.Message) int64 {
	raw, ok := msg.Metadata[chat.MetaFileSize]
	if !ok {
		return -1
	}

	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}

	return size
}

// startDownload dedups by (cacheKey/roomID, filename) and spawns the
// transfer goroutine.
func (e *Engine) startDownload(ctx context.Context, key, roomID, filename string, total int64) (*Download, error) {
	id := key + "/" + roomID + "/" + filename

	e.mu.Lock()

	if running, ok := e.downloads[id]; ok && running.State() == DownloadRunning {
		e.mu.Unlock()
		return running, nil
	}

	dctx, cancel := context.WithCancel(ctx)
	d := &Download{
		Filename: filename,
		Total:    total,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	e.downloads[id] = d

	e.mu.Unlock()

	go e.runDownload(dctx, d, key, roomID, filename)

	return d, nil
}

func (e *Engine) runDownload(ctx context.Context, d *Download, key, roomID, filename string) {
	defer close(d.done)
	defer d.cancel()

	w, err := e.cache.CreateAttachment(key, roomID, filename)
	if err != nil {
		d.fail(fmt.Errorf("creating attachment file: %w", err))
		return
	}

	pw := &progressWriter{w: w, d: d}

	if err := e.client.DownloadFile(ctx, e.cfg.StationURL, roomID, filename, pw); err != nil {
		w.Abort()

		if ctx.Err() != nil {
			// Cancelled; state already set by Cancel when user-driven.
			d.state.CompareAndSwap(int32(DownloadRunning), int32(DownloadCancelled))
			return
		}

		e.monitor.MarkOffline()
		d.fail(fmt.Errorf("downloading %s: %w", filename, err))

		return
	}

	if err := w.Commit(); err != nil {
		d.fail(fmt.Errorf("finalizing %s: %w", filename, err))
		return
	}

	e.monitor.MarkOnline()
	d.state.CompareAndSwap(int32(DownloadRunning), int32(DownloadDone))

	e.logger.Debug("attachment downloaded",
		slog.String("room", roomID),
		slog.String("file", filename),
		slog.Int64("bytes", d.Received()),
	)
}
