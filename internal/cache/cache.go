package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/memo-567/geogram-sub008/internal/chat"
)

const (
	// cacheDirPerm is the permission mode for cache directories.
	cacheDirPerm = fs.FileMode(0o700)

	// cacheFilePerm is the permission mode for the cache database and blobs.
	cacheFilePerm = fs.FileMode(0o600)

	// cacheOpenTimeout is the maximum time to wait for the bolt database lock.
	cacheOpenTimeout = 5 * time.Second
)

var (
	devicesBucket = []byte("devices")

	roomListKey = []byte("rooms")
)

// Buckets are namespaced by the device cache key (station callsign),
// never by URL: the same station may be reached via different URL forms
// across sessions, and the callsign is what keeps its history findable.
func deviceMetaBucket(cacheKey string) []byte {
	return []byte("device:" + cacheKey + ":meta")
}

func roomMessagesBucket(cacheKey, roomID string) []byte {
	return []byte("device:" + cacheKey + ":room:" + roomID + ":messages")
}

// DeviceInfo describes one previously-seen station on this device.
type DeviceInfo struct {
	CacheKey  string
	LastURL   string
	LastWrite time.Time
}

// Store is the durable per-device chat cache: a bbolt database for room
// lists, merged message logs and the device index, plus an on-disk tree
// for raw day files and attachment blobs.
//
// Reads never propagate errors beyond empty results. The cache is always
// subordinate to network truth and must never block the UI; corruption
// is treated as a miss.
type Store struct {
	db  *bolt.DB
	dir string
}

// Open opens the cache under dir, creating it if needed.
func Open(dir string) (*Store, error) {
	return OpenAt(filepath.Join(dir, "cache.db"), dir)
}

// OpenAt opens a cache database at an explicit path with blobs under dir.
// Useful for tests that need an isolated database.
func OpenAt(dbPath, dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), cacheDirPerm); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	if err := os.MkdirAll(dir, cacheDirPerm); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	db, err := bolt.Open(dbPath, cacheFilePerm, &bolt.Options{Timeout: cacheOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(devicesBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache db: %w", err)
	}

	return &Store{db: db, dir: dir}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRoomList replaces the cached room listing for a device and records
// the URL it was fetched from.
func (s *Store) SaveRoomList(cacheKey string, rooms []chat.Room, stationURL string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(deviceMetaBucket(cacheKey))
		if err != nil {
			return err
		}

		rec := DBRoomList{Rooms: rooms, StationURL: stationURL}

		data, err := rec.MarshalBinary()
		if err != nil {
			return err
		}

		if err := b.Put(rec.Key(), data); err != nil {
			return err
		}

		return touchDevice(tx, cacheKey, stationURL)
	})
}

// LoadRoomList returns the cached room listing for a device and the URL
// it was last fetched from. Missing or corrupt entries yield an empty
// list, never an error.
func (s *Store) LoadRoomList(cacheKey string) ([]chat.Room, string) {
	var rec DBRoomList

	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(deviceMetaBucket(cacheKey))
		if b == nil {
			return nil
		}

		v := b.Get(roomListKey)
		if v == nil {
			return nil
		}

		_ = rec.UnmarshalBinary(v)

		return nil
	})

	return rec.Rooms, rec.StationURL
}

// MergeMessages upserts messages into a room's merged log inside a
// single transaction: no reader ever observes a partially-merged room.
// An incoming copy overwrites the stored copy for the same (timestamp,
// author) key, so reaction and metadata updates to known messages take
// effect, and re-merging the same set is a no-op.
func (s *Store) MergeMessages(cacheKey, roomID string, msgs []chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(roomMessagesBucket(cacheKey, roomID))
		if err != nil {
			return err
		}

		for _, m := range msgs {
			if m.Timestamp == "" || m.Author == "" {
				continue
			}

			rec := dbMessageFrom(m)

			data, err := rec.MarshalBinary()
			if err != nil {
				return err
			}

			if err := b.Put(rec.Key(), data); err != nil {
				return err
			}
		}

		return touchDevice(tx, cacheKey, "")
	})
}

// LoadMessages returns the most recent limit messages of a room's merged
// log, ascending by timestamp. A limit of zero or less returns the whole
// log. Never errors: an absent room or corrupt records yield an empty or
// shortened list.
func (s *Store) LoadMessages(cacheKey, roomID string, limit int) []chat.Message {
	var msgs []chat.Message

	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(roomMessagesBucket(cacheKey, roomID))
		if b == nil {
			return nil
		}

		// Bucket keys are the canonical timestamp keys, so iteration
		// order is already ascending chronological order.
		return b.ForEach(func(_, v []byte) error {
			var rec DBMessage
			if err := rec.UnmarshalBinary(v); err != nil {
				return nil
			}

			msgs = append(msgs, rec.Message())

			return nil
		})
	})

	return chat.Tail(msgs, limit)
}

// RemoveMessage deletes a message from a room's merged log (explicit
// per-message delete, the only path that ever removes a message).
func (s *Store) RemoveMessage(cacheKey, roomID, timestamp, author string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(roomMessagesBucket(cacheKey, roomID))
		if b == nil {
			return nil
		}

		key := (&DBMessage{Timestamp: timestamp, Author: author}).Key()

		return b.Delete(key)
	})
}

// rawFilePath is the on-disk location of a raw per-day chat file.
func (s *Store) rawFilePath(cacheKey, roomID, year, filename string) string {
	return filepath.Join(s.dir, cacheKey, "rooms", roomID, year, filename)
}

// HasFile reports whether a raw day file is already downloaded. When
// expectedSize is non-negative the local size must match, so a partial
// or corrupt download is not silently treated as complete.
func (s *Store) HasFile(cacheKey, roomID, year, filename string, expectedSize int64) bool {
	info, err := os.Stat(s.rawFilePath(cacheKey, roomID, year, filename))
	if err != nil || info.IsDir() {
		return false
	}

	return expectedSize < 0 || info.Size() == expectedSize
}

// SaveRawFile persists a downloaded day file and merges its messages
// into the room's log. A downloaded day file is the unit of newly
// available history for progressive sync.
func (s *Store) SaveRawFile(cacheKey, roomID, year, filename string, data []byte) error {
	path := s.rawFilePath(cacheKey, roomID, year, filename)
	if err := os.MkdirAll(filepath.Dir(path), cacheDirPerm); err != nil {
		return fmt.Errorf("creating day file directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, cacheFilePerm); err != nil {
		return fmt.Errorf("writing day file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing day file: %w", err)
	}

	// Collapse duplicated lines within the file before touching the
	// store, so a day file that repeats a message costs one write.
	msgs := chat.Merge(nil, chat.DecodeDayFile(data)...)
	if len(msgs) == 0 {
		return nil
	}

	if err := s.MergeMessages(cacheKey, roomID, msgs); err != nil {
		return fmt.Errorf("merging day file %s/%s: %w", year, filename, err)
	}

	return nil
}

// attachmentPath is the on-disk location of a downloaded attachment blob.
func (s *Store) attachmentPath(cacheKey, roomID, filename string) string {
	return filepath.Join(s.dir, cacheKey, "attachments", roomID, filepath.Base(filename))
}

// HasAttachment reports whether an attachment blob is cached locally.
func (s *Store) HasAttachment(cacheKey, roomID, filename string) bool {
	info, err := os.Stat(s.attachmentPath(cacheKey, roomID, filename))

	return err == nil && !info.IsDir()
}

// AttachmentPath returns the local path of a cached attachment, or ""
// when it is not cached.
func (s *Store) AttachmentPath(cacheKey, roomID, filename string) string {
	if !s.HasAttachment(cacheKey, roomID, filename) {
		return ""
	}

	return s.attachmentPath(cacheKey, roomID, filename)
}

// CreateAttachment opens a writer for a new attachment blob. The blob
// becomes visible to HasAttachment only when Commit is called, so an
// aborted download never looks like a cached file.
func (s *Store) CreateAttachment(cacheKey, roomID, filename string) (*AttachmentWriter, error) {
	path := s.attachmentPath(cacheKey, roomID, filename)
	if err := os.MkdirAll(filepath.Dir(path), cacheDirPerm); err != nil {
		return nil, fmt.Errorf("creating attachment directory: %w", err)
	}

	f, err := os.OpenFile(path+".part", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, cacheFilePerm)
	if err != nil {
		return nil, fmt.Errorf("creating attachment blob: %w", err)
	}

	return &AttachmentWriter{f: f, path: path}, nil
}

// SaveAttachment stores an attachment blob in one call.
func (s *Store) SaveAttachment(cacheKey, roomID, filename string, data []byte) (string, error) {
	w, err := s.CreateAttachment(cacheKey, roomID, filename)
	if err != nil {
		return "", err
	}

	if _, err := w.Write(data); err != nil {
		w.Abort()
		return "", fmt.Errorf("writing attachment blob: %w", err)
	}

	if err := w.Commit(); err != nil {
		return "", err
	}

	return s.attachmentPath(cacheKey, roomID, filename), nil
}

// AttachmentWriter streams a download into the blob store.
type AttachmentWriter struct {
	f    *os.File
	path string
}

func (w *AttachmentWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Commit finalizes the blob, making it visible to HasAttachment.
func (w *AttachmentWriter) Commit() error {
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("closing attachment blob: %w", err)
	}

	if err := os.Rename(w.f.Name(), w.path); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("committing attachment blob: %w", err)
	}

	return nil
}

// Abort discards a partially-written blob.
func (w *AttachmentWriter) Abort() {
	w.f.Close()
	os.Remove(w.f.Name())
}

// Path returns the final blob location the writer will commit to.
func (w *AttachmentWriter) Path() string {
	return w.path
}

// KnownDevices returns every cache key ever seen on this device, most
// recently written first. Used to build the offline device list when no
// station is reachable.
func (s *Store) KnownDevices() []DeviceInfo {
	var devices []DeviceInfo

	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(devicesBucket)

		return b.ForEach(func(k, v []byte) error {
			var rec DBDevice
			if err := rec.UnmarshalBinary(v); err != nil {
				return nil
			}

			devices = append(devices, DeviceInfo{
				CacheKey:  rec.CacheKey,
				LastURL:   rec.LastURL,
				LastWrite: time.UnixMilli(rec.LastWrite),
			})

			return nil
		})
	})

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastWrite.After(devices[j].LastWrite)
	})

	return devices
}

// Device returns the index entry for one cache key, or nil when the
// device has never been cached.
func (s *Store) Device(cacheKey string) *DeviceInfo {
	for _, d := range s.KnownDevices() {
		if d.CacheKey == cacheKey {
			info := d
			return &info
		}
	}

	return nil
}

// touchDevice updates the device index inside an open write transaction.
// An empty url keeps the previously recorded one.
func touchDevice(tx *bolt.Tx, cacheKey, url string) error {
	b := tx.Bucket(devicesBucket)

	rec := DBDevice{CacheKey: cacheKey}
	if v := b.Get([]byte(cacheKey)); v != nil {
		_ = rec.UnmarshalBinary(v)
		rec.CacheKey = cacheKey
	}

	if url != "" {
		rec.LastURL = url
	}

	rec.LastWrite = time.Now().UnixMilli()

	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}

	return b.Put(rec.Key(), data)
}
