package model

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Assignment types (the part of `typ` after the pipe).
const (
	AssignmentHomework      = "hw"
	AssignmentEtestHomework = "etesthw"
	AssignmentBigExam       = "bexam"
	AssignmentExam          = "exam"
	AssignmentSmallExam     = "sexam"
	AssignmentOralExam      = "oexam"
	AssignmentReportExam    = "rexam"
	AssignmentTesting       = "testing"
	AssignmentTest          = "test"
	AssignmentProjectExam   = "pexam"
	AssignmentEtest         = "etest"
	AssignmentEtestPrint    = "etestprint"
	AssignmentEtestLesson   = "etestlesson"
	AssignmentLesson        = "lekcia"
	AssignmentProject       = "projekt"
	AssignmentResult        = "result"
	AssignmentCurriculum    = "ucivo"
	AssignmentTimeline      = "timeline"
)

var (
	groupHomework = []string{AssignmentHomework, AssignmentEtestHomework}
	groupExam     = []string{AssignmentBigExam, AssignmentExam, AssignmentSmallExam, AssignmentOralExam, AssignmentReportExam, AssignmentTesting}
	groupTest     = []string{AssignmentTest, AssignmentEtest, AssignmentEtestPrint}
)

type AssignmentKind int

const (
	KindOther AssignmentKind = iota
	KindHomework
	KindTest
)

func (k AssignmentKind) String() string {
	switch k {
	case KindHomework:
		return "homework"
	case KindTest:
		return "test"
	}
	return "other"
}

// KindOf groups an assignment type: homework, tests and exams, everything else.
func KindOf(assignmentType string) AssignmentKind {
	switch {
	case slices.Contains(groupHomework, assignmentType):
		return KindHomework
	case slices.Contains(groupExam, assignmentType), slices.Contains(groupTest, assignmentType):
		return KindTest
	}
	return KindOther
}

type StudentState struct {
	Timestamp Time   `json:"timestamp"`
	SetBy     String `json:"nastavil_userid"`
}

type Assignment struct {
	ID               String                 `json:"homeworkid"`
	SuperID          String                 `json:"e_superid"`
	Title            String                 `json:"name"`
	Details          String                 `json:"details"`
	TestID           String                 `json:"testid"`
	RawType          String                 `json:"typ"`
	HwkID            String                 `json:"hwkid"`
	CardsCount       Int                    `json:"etestCards"`
	AnswerCardsCount Int                    `json:"etestAnswerCards"`
	State            String                 `json:"stavhodnotenia"`
	Comment          String                 `json:"komentarPridelenie"`
	Result           String                 `json:"vysledok"`
	IsFinished       Bool                   `json:"skoncil"`
	OwnerString      String                 `json:"userid"`
	SubjectID        String                 `json:"predmetid"`
	PeriodID         String                 `json:"period"`
	StudentState     Embedded[StudentState] `json:"studentStav"`

	// Resolved from the alternatives the portal uses for them.
	Created time.Time      `json:"-"`
	From    time.Time      `json:"-"`
	To      time.Time      `json:"-"`
	Type    string         `json:"-"`
	Kind    AssignmentKind `json:"-"`

	Owner          User     `json:"-"`
	Subject        *Subject `json:"-"`
	Period         *Period  `json:"-"`
	StateUpdatedBy User     `json:"-"`
	Grades         []*Grade `json:"-"`
}

type assignmentDates struct {
	DateCreated  Time `json:"datecreated"`
	Timestamp    Time `json:"timestamp"`
	DateTimeFrom Time `json:"datetimefrom"`
	DateFrom     Time `json:"datefrom"`
	DateTimeTo   Time `json:"datetimeto"`
	DateTo       Time `json:"dateto"`
}

func firstTime(times ...Time) time.Time {
	for _, t := range times {
		if !t.IsZero() {
			return t.Time
		}
	}
	return time.Time{}
}

func (a *Assignment) UnmarshalJSON(data []byte) error {
	type plain Assignment
	var p plain
	err := json.Unmarshal(data, &p)
	if err != nil {
		return err
	}
	var dates assignmentDates
	err = json.Unmarshal(data, &dates)
	if err != nil {
		return err
	}

	*a = Assignment(p)
	a.Created = firstTime(dates.DateCreated, dates.Timestamp)
	a.From = firstTime(dates.DateTimeFrom, dates.DateFrom)
	a.To = firstTime(dates.DateTimeTo, dates.DateTo)

	raw := string(a.RawType)
	if parts := strings.Split(raw, "|"); len(parts) > 1 && parts[1] != "" {
		raw = parts[1]
	}
	a.Type = raw
	a.Kind = KindOf(raw)
	return nil
}

// Duration is the time between the start and the deadline.
func (a *Assignment) Duration() time.Duration {
	if a.From.IsZero() || a.To.IsZero() {
		return 0
	}
	return a.To.Sub(a.From)
}

func (a *Assignment) IsSeen() bool {
	return a.State != "new"
}
