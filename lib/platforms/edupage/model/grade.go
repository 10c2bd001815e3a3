package model

// GradeTypePoints is the event type of grades given in points.
const GradeTypePoints = "3"

// defaultMaxPoints stands in for a points event without a maximum.
const defaultMaxPoints = 100

type GradeEventMore struct {
	ElearningSuperID String `json:"elearning_superid"`
}

// GradeEvent is the test or exam a grade was given for.
type GradeEvent struct {
	ID        String                   `json:"UdalostID"`
	PlanID    String                   `json:"planid"`
	ClassID   String                   `json:"TriedaID"`
	ClassIDs  []String                 `json:"Triedy"`
	Name      String                   `json:"p_meno"`
	Short     String                   `json:"p_skratka"`
	Date      String                   `json:"p_termin"`
	Type      String                   `json:"p_typ_udalosti"`
	Weight    String                   `json:"p_vaha"`
	MaxPoints String                   `json:"p_vaha_body"`
	Average   String                   `json:"priemer"`
	MoreData  Embedded[GradeEventMore] `json:"moredata"`
}

type Grade struct {
	ID             String `json:"znamkaid"`
	Value          String `json:"data"`
	Created        Time   `json:"datum"`
	Signed         Time   `json:"podpisane"`
	SignedByParent Time   `json:"podpisane_rodic"`
	State          String `json:"stav"`
	EventID        String `json:"udalostid"`
	Provider       String `json:"provider"`
	SeasonID       String `json:"mesiac"`
	SubjectID      String `json:"predmetid"`
	StudentID      String `json:"studentid"`
	TeacherID      String `json:"ucitelid"`

	Season     *Season     `json:"-"`
	Subject    *Subject    `json:"-"`
	Student    *Student    `json:"-"`
	Teacher    *Teacher    `json:"-"`
	Event      *GradeEvent `json:"-"`
	Plan       *Plan       `json:"-"`
	Class      *Class      `json:"-"`
	Classes    []*Class    `json:"-"`
	Assignment *Assignment `json:"-"`

	// Set from the event.
	Title        string   `json:"-"`
	Short        string   `json:"-"`
	Date         string   `json:"-"`
	Type         string   `json:"-"`
	Weight       float64  `json:"-"`
	Average      string   `json:"-"`
	SuperID      string   `json:"-"`
	IsClassified bool     `json:"-"`
	MaxPoints    *float64 `json:"-"`
	Points       *float64 `json:"-"`
	Percentage   *float64 `json:"-"`
}

func (g *Grade) IsSigned() bool {
	return !g.Signed.IsZero() || !g.SignedByParent.IsZero()
}

// ApplyEvent copies the fields a grade takes from its event. Weights are stored in twentieths,
// points grades without a readable maximum or value count as 100.
func (g *Grade) ApplyEvent(event *GradeEvent) {
	g.Event = event
	g.Weight = 1
	if event == nil {
		return
	}

	g.Title = string(event.Name)
	g.Short = string(event.Short)
	g.Date = string(event.Date)
	g.Type = string(event.Type)
	g.Average = string(event.Average)
	if weight, ok := ParseFloat(event.Weight); ok {
		g.Weight = weight / 20
	}

	if event.MoreData.Present && event.MoreData.Value.ElearningSuperID != "" {
		g.SuperID = string(event.MoreData.Value.ElearningSuperID)
		g.IsClassified = true
	}

	if g.Type == GradeTypePoints {
		maxPoints, ok := ParseFloat(event.MaxPoints)
		if !ok {
			maxPoints = defaultMaxPoints
		}
		points, ok := ParseFloat(g.Value)
		if !ok {
			points = defaultMaxPoints
		}
		percentage := points / maxPoints * 100
		g.MaxPoints = &maxPoints
		g.Points = &points
		g.Percentage = &percentage
	}
}

// GradeSettings is the argument of the grade page's settings script.
type GradeSettings struct {
	Seasons Entries[Season] `json:"obdobia"`
}

// GradeData is the argument of the grade page's viewer script. Events are grouped by the
// provider that created them.
type GradeData struct {
	Grades Entries[Grade]               `json:"vsetkyZnamky"`
	Events Entries[Entries[GradeEvent]] `json:"vsetkyUdalosti"`
}

// FindEvent returns the event of a provider with the given id.
func (d *GradeData) FindEvent(provider, id string) *GradeEvent {
	events, ok := d.Events.Get(provider)
	if !ok {
		return nil
	}
	for i := range events {
		if string(events[i].Value.ID) == id {
			return &events[i].Value
		}
	}
	return nil
}
