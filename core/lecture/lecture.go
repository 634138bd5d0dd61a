package lecture

import "time"

// Lecture is one unit of course content. URL points at the actual material
// and is stripped from responses unless the viewer owns the course or the
// lecture is a free preview.
type Lecture struct {
	ID        int64     `json:"id" db:"lecture_id"`
	CourseID  int64     `json:"courseId" db:"course_id"`
	Index     int       `json:"index" db:"index"`
	Name      string    `json:"name" db:"name"`
	Free      bool      `json:"free" db:"free"`
	URL       string    `json:"url,omitempty" db:"url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
