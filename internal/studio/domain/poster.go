package domain

import "time"

type Poster struct {
	ID         string
	UserID     string
	Prompt     string
	Style      string
	Size       string
	StorageKey string
	URL        string
	Width      int
	Height     int
	CreatedAt  time.Time
}
