package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultChatTitle is used when a chat is created without a title.
const DefaultChatTitle = "Chat nuevo"

// Location tables.
const (
	TablePlace  = "place"
	TableSector = "sector"
)

type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one persisted conversation turn. Parts holds the UI message
// parts exactly as the client or the stream produced them.
type Message struct {
	ChatID    string          `json:"chatId"`
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Parts     json.RawMessage `json:"parts"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Location is a named point used for weather lookups.
type Location struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

func validLocationTable(table string) bool {
	return table == TablePlace || table == TableSector
}
