package models

// IdiomEntry is one curriculum card: an English phrase, its translation and an example sentence,
// placed on a (week, day) of the course.
type IdiomEntry struct {
	ID      string `json:"id" db:"id"`
	English string `json:"english" db:"english"`
	Meaning string `json:"meaning" db:"meaning"` // target-language translation
	Example string `json:"example" db:"example"`
	Week    int    `json:"week" db:"week"`
	Day     int    `json:"day" db:"day"` // 1-6
}

// WeekInfo is display metadata for a curriculum week
type WeekInfo struct {
	Week  int    `json:"week" db:"week"`
	Title string `json:"title" db:"title"`
	Label string `json:"label" db:"label"` // e.g. "1주차"
}
