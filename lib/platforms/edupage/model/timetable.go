package model

import "time"

// LessonTypeLesson marks the plan items that are taught lessons, other items are breaks,
// events and the like.
const LessonTypeLesson = "lesson"

type Lesson struct {
	ID              String   `json:"id"`
	LID             String   `json:"lid"`
	Type            String   `json:"type"`
	PeriodID        String   `json:"period"`
	SubjectID       String   `json:"subjectid"`
	ClassIDs        []String `json:"classids"`
	ClassroomIDs    []String `json:"classroomids"`
	TeacherIDs      []String `json:"teacherids"`
	OnlineLessonURL String   `json:"ol_url"`

	Period     *Period      `json:"-"`
	Subject    *Subject     `json:"-"`
	Classes    []*Class     `json:"-"`
	Classrooms []*Classroom `json:"-"`
	Teachers   []*Teacher   `json:"-"`
}

func (l *Lesson) IsOnline() bool {
	return l.OnlineLessonURL != ""
}

// TimetableDay is the raw form of one day of a timetable.
type TimetableDay struct {
	Week String   `json:"tt_week"`
	Plan []Lesson `json:"plan"`
}

// TimetableDates is what the timetable script of the portal is called with.
type TimetableDates struct {
	Dates Entries[TimetableDay] `json:"dates"`
}

type Timetable struct {
	Date    time.Time
	Week    string
	Lessons []*Lesson
}

// NewTimetable keeps the taught lessons of a day.
func NewTimetable(date time.Time, day TimetableDay) *Timetable {
	t := &Timetable{Date: date, Week: string(day.Week)}
	for i := range day.Plan {
		if day.Plan[i].Type != LessonTypeLesson {
			continue
		}
		lesson := day.Plan[i]
		t.Lessons = append(t.Lessons, &lesson)
	}
	return t
}

// SameDay compares the calendar days of two times.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
