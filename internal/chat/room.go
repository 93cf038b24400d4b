package chat

// Room is an immutable snapshot of a chat room from a station's room
// listing. Replaced wholesale on each successful fetch, never partially
// mutated.
type Room struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	StationURL   string `json:"station_url,omitempty"`
	StationName  string `json:"station_name,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`
}
