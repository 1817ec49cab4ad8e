package domain

import "time"

// Tag is a global label ideas can be categorized with. Names are unique;
// the color is assigned once at creation from a fixed palette.
type Tag struct {
	ID        string    `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	Color     string    `json:"color"      db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IdeaTag links an idea to a tag.
type IdeaTag struct {
	IdeaID    string    `json:"idea_id"    db:"idea_id"`
	TagID     string    `json:"tag_id"     db:"tag_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Tag       Tag       `json:"tag"`
}
