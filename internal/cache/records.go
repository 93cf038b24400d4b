package cache

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/memo-567/geogram-sub008/internal/chat"
)

// Storeable is the contract for records persisted to bbolt: a stable
// key plus binary round-tripping.
type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

var (
	_ Storeable = (*DBMessage)(nil)
	_ Storeable = (*DBDevice)(nil)
	_ Storeable = (*DBRoomList)(nil)
)

// DBMessage is the on-disk form of a merged chat message.
type DBMessage struct {
	Timestamp string              `msgpack:"timestamp"`
	Author    string              `msgpack:"author"`
	Content   string              `msgpack:"content"`
	Npub      string              `msgpack:"npub,omitempty"`
	Signature string              `msgpack:"signature,omitempty"`
	Verified  bool                `msgpack:"verified,omitempty"`
	Metadata  map[string]string   `msgpack:"metadata,omitempty"`
	Reactions map[string][]string `msgpack:"reactions,omitempty"`
}

func dbMessageFrom(m chat.Message) DBMessage {
	return DBMessage{
		Timestamp: m.Timestamp,
		Author:    m.Author,
		Content:   m.Content,
		Npub:      m.Npub,
		Signature: m.Signature,
		Verified:  m.Verified,
		Metadata:  m.Metadata,
		Reactions: m.Reactions,
	}
}

func (m *DBMessage) Message() chat.Message {
	return chat.Message{
		Timestamp: m.Timestamp,
		Author:    m.Author,
		Content:   m.Content,
		Npub:      m.Npub,
		Signature: m.Signature,
		Verified:  m.Verified,
		Metadata:  m.Metadata,
		Reactions: m.Reactions,
	}
}

// Key returns the (timestamp, author) identity key. Canonical timestamps
// sort lexicographically in chronological order, so bbolt's key order is
// the message log order.
func (m *DBMessage) Key() []byte {
	return []byte(m.Timestamp + "\x00" + m.Author)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

// DBDevice is the device-index entry for one cache key.
type DBDevice struct {
	CacheKey  string `msgpack:"cacheKey"`
	LastURL   string `msgpack:"lastUrl"`
	LastWrite int64  `msgpack:"lastWrite"`
}

func (d *DBDevice) Key() []byte {
	return []byte(d.CacheKey)
}

func (d *DBDevice) MarshalBinary() (data []byte, err error) {
	type alias DBDevice
	return msgpack.Marshal((*alias)(d))
}

func (d *DBDevice) UnmarshalBinary(data []byte) error {
	type alias DBDevice
	return msgpack.Unmarshal(data, (*alias)(d))
}

// DBRoomList is the cached room listing for a device. One record per
// device meta bucket, always under the same key.
type DBRoomList struct {
	Rooms      []chat.Room `msgpack:"rooms"`
	StationURL string      `msgpack:"stationUrl"`
}

func (r *DBRoomList) Key() []byte {
	return roomListKey
}

func (r *DBRoomList) MarshalBinary() (data []byte, err error) {
	type alias DBRoomList
	return msgpack.Marshal((*alias)(r))
}

func (r *DBRoomList) UnmarshalBinary(data []byte) error {
	type alias DBRoomList
	return msgpack.Unmarshal(data, (*alias)(r))
}
