package chat

import (
	"bufio"
	"bytes"
	"encoding/json"
)

// Day files are the station's raw history unit: one file per room per
// UTC day, one JSON-encoded message per line. A downloaded day file is
// the unit of "newly available history" for progressive sync.

// DecodeDayFile parses a raw day file. Malformed lines are skipped
// rather than failing the whole file: the cache is subordinate to
// network truth and a partial parse is still useful history.
func DecodeDayFile(data []byte) []Message {
	var msgs []Message

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			continue
		}

		if m.Timestamp == "" || m.Author == "" {
			continue
		}

		msgs = append(msgs, m)
	}

	return msgs
}

// EncodeDayFile renders messages as a newline-delimited day file.
func EncodeDayFile(msgs []Message) []byte {
	var buf bytes.Buffer

	for _, m := range msgs {
		line, err := json.Marshal(m)
		if err != nil {
			continue
		}

		buf.Write(line)
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}
