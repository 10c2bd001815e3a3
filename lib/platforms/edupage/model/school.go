package model

import (
	"strconv"
	"strings"
	"time"
)

type Classroom struct {
	ID       String `json:"id"`
	Name     String `json:"name"`
	Short    String `json:"short"`
	CBHidden Bool   `json:"cb_hidden"`
}

type Class struct {
	ID          String `json:"id"`
	Name        String `json:"name"`
	Short       String `json:"short"`
	Grade       Int    `json:"grade"`
	ClassroomID String `json:"classroomid"`
	TeacherID   String `json:"teacherid"`
	Teacher2ID  String `json:"teacher2id"`

	Classroom *Classroom `json:"-"`
	Teacher   *Teacher   `json:"-"`
	Teacher2  *Teacher   `json:"-"`
}

func (*Class) recipient() {}

type Subject struct {
	ID    String `json:"id"`
	Name  String `json:"name"`
	Short String `json:"short"`
}

type Period struct {
	ID        String `json:"id"`
	Name      String `json:"name"`
	Short     String `json:"short"`
	StartTime String `json:"starttime"`
	EndTime   String `json:"endtime"`
}

// Season is a grading period. Its bounds are templates with Y0 and Y1 standing for the school
// year and the one after it.
type Season struct {
	ID               String `json:"id"`
	Name             String `json:"nazov"`
	HalfYear         Int    `json:"polrok"`
	Index            Int    `json:"poradie"`
	From             String `json:"od"`
	To               String `json:"do"`
	ParentID         String `json:"nadobdobie"`
	ClassificationID String `json:"klasifikacny"`

	FromDate       time.Time `json:"-"`
	ToDate         time.Time `json:"-"`
	Parent         *Season   `json:"-"`
	Classification *Season   `json:"-"`
}

func (s *Season) IsClassification() bool {
	switch s.ClassificationID {
	case "", "0", "false":
		return false
	}
	return true
}

// ResolveSeasonDate substitutes the school year into a season bound.
func ResolveSeasonDate(template string, year int) (time.Time, error) {
	resolved := strings.NewReplacer(
		"Y0", strconv.Itoa(year),
		"Y1", strconv.Itoa(year+1),
	).Replace(template)
	return ParseTime(resolved)
}

type Plan struct {
	ID             String                   `json:"planid"`
	SubjectID      String                   `json:"predmetid"`
	CustomClassID  String                   `json:"triedaid"`
	CustomName     String                   `json:"nazov"`
	Name           String                   `json:"nazovPlanu"`
	Year           Int                      `json:"rok"`
	IsPublic       Bool                     `json:"zverejnit_studentom"`
	State          String                   `json:"stav"`
	IsValid        Bool                     `json:"valid"`
	Changed        Time                     `json:"cas_zmeny"`
	Approved       Time                     `json:"approved"`
	OtherID        String                   `json:"ineid"`
	TopicsCount    Int                      `json:"countTopics"`
	TaughtCount    Int                      `json:"countTaught"`
	StandardsCount Int                      `json:"countStandards"`
	TimetableGroup String                   `json:"rozvrhy_skupinaMeno"`
	ClassOrdering  String                   `json:"triedaOrdering"`
	EntireClass    Bool                     `json:"entireClass"`
	SeasonID       String                   `json:"obdobie"`
	TeacherID      String                   `json:"ucitelid"`
	ClassIDs       []String                 `json:"triedy"`
	TeacherIDs     []String                 `json:"ucitelids"`
	StudentIDs     []String                 `json:"students"`
	Settings       Embedded[map[string]any] `json:"settings"`

	Season   *Season    `json:"-"`
	Subject  *Subject   `json:"-"`
	Teacher  *Teacher   `json:"-"`
	Classes  []*Class   `json:"-"`
	Teachers []*Teacher `json:"-"`
	Students []*Student `json:"-"`
}

func (*Plan) recipient() {}

func (p *Plan) IsApproved() bool {
	return !p.Approved.IsZero()
}

// Application is a process type (a form a user can file, like an absence request).
type Application struct {
	ID               String          `json:"id"`
	DateFrom         Time            `json:"datefrom"`
	DateTo           Time            `json:"dateto"`
	Name             String          `json:"name"`
	Parameters       Embedded[[]any] `json:"dataColumns"`
	AvailableFor     String          `json:"user"`
	IsEnabled        Bool            `json:"enabled"`
	IsTextOptional   Bool            `json:"textOptional"`
	AdvancedWorkflow Bool            `json:"isAdvancedWorkflow"`
	SimpleWorkflow   Bool            `json:"isSimpleWorkflow"`
}
