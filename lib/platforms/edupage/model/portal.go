package model

import (
	"encoding/json"
	"fmt"

	"edupage-client/lib/fault"
)

type RequestProps struct {
	LoggedUser       String          `json:"loggedUser"`
	LoggedUserRights json.RawMessage `json:"loggedUserRights"`
	Timezone         String          `json:"timezone"`
	WeekendDays      []Int           `json:"weekendDays"`
}

// ASC is the set of `ASC.name = value;` globals of the dashboard page.
type ASC struct {
	RequestProps       RequestProps `json:"req_props"`
	Server             String       `json:"server"`
	SchoolName         String       `json:"school_name"`
	Lang               String       `json:"lang"`
	SchoolCountry      String       `json:"school_country"`
	SchoolyearTurnover String       `json:"schoolyear_turnover"`
	GsecHash           String       `json:"gsechash"`
	FirstDayOfWeek     Int          `json:"firstDayOfWeek"`
	GPID               String       `json:"gpid"`
}

// DecodeASC builds ASC out of the extracted globals.
func DecodeASC(values map[string]json.RawMessage) (ASC, error) {
	var asc ASC
	if len(values) == 0 {
		return asc, nil
	}
	object, err := json.Marshal(values)
	if err != nil {
		return asc, fault.Wrap(fault.KindContentDecode, err, "re-encode ASC globals")
	}
	err = json.Unmarshal(object, &asc)
	if err != nil {
		return asc, &fault.Error{
			Kind:    fault.KindContentDecode,
			Message: "unexpected ASC globals",
			Pattern: "asc",
			Snippet: string(object),
			Err:     err,
		}
	}
	return asc, nil
}

// Edubar is the argument of the page's edubar script.
type Edubar struct {
	AutoYear     Int    `json:"autoYear"`
	SelectedYear Int    `json:"selectedYear"`
	YearTurnover String `json:"year_turnover"`
}

// Year is the school year the portal shows.
func (e Edubar) Year() int {
	if e.AutoYear != 0 {
		return int(e.AutoYear)
	}
	return int(e.SelectedYear)
}

// YearStart is when the school year starts, as the portal wants it in request payloads.
func YearStart(edubar Edubar, asc ASC, withTime bool) string {
	start := string(edubar.YearTurnover)
	if start == "" {
		start = fmt.Sprintf("%d-%s", edubar.Year(), asc.SchoolyearTurnover)
	}
	if withTime {
		start += " 00:00:00"
	}
	return start
}

type UserRow struct {
	Email String `json:"p_mail"`
}

// DBI is the school's database dump embedded in the dashboard page.
type DBI struct {
	Classes      Entries[Class]       `json:"classes"`
	Classrooms   Entries[Classroom]   `json:"classrooms"`
	Teachers     Entries[Teacher]     `json:"teachers"`
	Parents      Entries[Parent]      `json:"parents"`
	Students     Entries[Student]     `json:"students"`
	Subjects     Entries[Subject]     `json:"subjects"`
	Periods      Entries[Period]      `json:"periods"`
	Plans        Entries[Plan]        `json:"plans"`
	ProcessTypes Entries[Application] `json:"process_types"`
}

// UserHome is the argument of the dashboard's userhome script.
type UserHome struct {
	UserID  String                   `json:"userid"`
	UserRow Embedded[UserRow]        `json:"userrow"`
	DBI     Embedded[DBI]            `json:"dbi"`
	DP      Embedded[TimetableDates] `json:"dp"`
}

// FindPerson returns the common fields of any user with the given id.
func (d *DBI) FindPerson(id string) (Person, bool) {
	for _, t := range d.Teachers {
		if string(t.Value.ID) == id {
			return t.Value.Person, true
		}
	}
	for _, s := range d.Students {
		if string(s.Value.ID) == id {
			return s.Value.Person, true
		}
	}
	for _, p := range d.Parents {
		if string(p.Value.ID) == id {
			return p.Value.Person, true
		}
	}
	return Person{}, false
}

// TimelineData is the answer of the timeline endpoint.
type TimelineData struct {
	Status        String                       `json:"status"`
	TimelineItems []TimelineItem               `json:"timelineItems"`
	Homeworks     []Assignment                 `json:"homeworks"`
	UserProps     Embedded[Entries[UserProps]] `json:"timelineUserProps"`
}

// CreatedItems is the answer of the created items endpoint.
type CreatedItems struct {
	Data struct {
		Items []TimelineItem `json:"items"`
	} `json:"data"`
}

// Status is the envelope every JSON action answers with.
type Status struct {
	Status String `json:"status"`
}

func (s Status) OK() bool {
	return s.Status == StatusOK
}
