package model

// CanvasStroke 화이트보드 획 데이터. ID 순서가 재생(replay) 순서다.
type CanvasStroke struct {
	ID        int64   `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID    string  `gorm:"type:uuid;not null;index:idx_stroke_room" json:"-"`
	Phase     string  `gorm:"type:varchar(10);not null" json:"type"` // start, draw, end
	X         float64 `gorm:"not null" json:"x"`
	Y         float64 `gorm:"not null" json:"y"`
	Color     string  `gorm:"type:varchar(20);not null" json:"color"`
	BrushSize float64 `gorm:"not null" json:"brushSize"`
	Tool      string  `gorm:"type:varchar(20);not null" json:"tool"` // pen, eraser, brush
	UserID    string  `gorm:"type:uuid;not null" json:"userId"`
	Username  string  `gorm:"type:varchar(100);not null" json:"username"`
	Timestamp int64   `gorm:"not null" json:"timestamp"` // unix millis
}

func (CanvasStroke) TableName() string {
	return "canvas_strokes"
}
