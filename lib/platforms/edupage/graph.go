package edupage

import (
	"cmp"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/fault"
	"edupage-client/lib/platforms/edupage/model"
)

const report_graph_link = "graph.link"

// Graph is one linked snapshot of everything the portal told us. A graph is never modified
// after it is built: refreshing or acting on a message builds a new one.
type Graph struct {
	Year   int
	ASC    model.ASC
	Edubar model.Edubar
	// User is the logged in user.
	User model.User

	Seasons      []*model.Season
	Classes      []*model.Class
	Classrooms   []*model.Classroom
	Teachers     []*model.Teacher
	Parents      []*model.Parent
	Students     []*model.Student
	Subjects     []*model.Subject
	Periods      []*model.Period
	Plans        []*model.Plan
	Timetables   []*model.Timetable
	Grades       []*model.Grade
	Applications []*model.Application

	Assignments []*model.Assignment
	Homeworks   []*model.Assignment
	Tests       []*model.Assignment

	// Messages holds every timeline item newest first, Timeline the same without confirmations.
	Messages []*model.Message
	Timeline []*model.Message

	seasons      map[string]*model.Season
	classes      map[string]*model.Class
	classrooms   map[string]*model.Classroom
	teachers     map[string]*model.Teacher
	parents      map[string]*model.Parent
	students     map[string]*model.Student
	subjects     map[string]*model.Subject
	periods      map[string]*model.Period
	plans        map[string]*model.Plan
	applications map[string]*model.Application
	assignments  map[string]*model.Assignment
	messages     map[string]*model.Message
}

func arena[T any](entries model.Entries[T]) []*T {
	out := make([]*T, len(entries))
	for i := range entries {
		value := entries[i].Value
		out[i] = &value
	}
	return out
}

func indexBy[T any](items []*T, id func(*T) model.String) map[string]*T {
	out := make(map[string]*T, len(items))
	for _, item := range items {
		key := string(id(item))
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = item
	}
	return out
}

func lookupAll[T any](index map[string]*T, ids []model.String) []*T {
	var out []*T
	for _, id := range ids {
		if item, ok := index[string(id)]; ok {
			out = append(out, item)
		}
	}
	return out
}

func (g *Graph) Season(id string) *model.Season           { return g.seasons[id] }
func (g *Graph) Class(id string) *model.Class             { return g.classes[id] }
func (g *Graph) Classroom(id string) *model.Classroom     { return g.classrooms[id] }
func (g *Graph) Teacher(id string) *model.Teacher         { return g.teachers[id] }
func (g *Graph) Parent(id string) *model.Parent           { return g.parents[id] }
func (g *Graph) Student(id string) *model.Student         { return g.students[id] }
func (g *Graph) Subject(id string) *model.Subject         { return g.subjects[id] }
func (g *Graph) Period(id string) *model.Period           { return g.periods[id] }
func (g *Graph) Plan(id string) *model.Plan               { return g.plans[id] }
func (g *Graph) Application(id string) *model.Application { return g.applications[id] }
func (g *Graph) Assignment(id string) *model.Assignment   { return g.assignments[id] }
func (g *Graph) Message(id string) *model.Message         { return g.messages[id] }

// UserByID finds a user by id alone, checking the logged in user, teachers, students and
// parents in that order. Ids of different kinds of users can collide, prefer UserByUserString.
func (g *Graph) UserByID(id string) model.User {
	if id == "" {
		return nil
	}
	if g.User != nil && string(g.User.Profile().ID) == id {
		return g.User
	}
	if t, ok := g.teachers[id]; ok {
		return t
	}
	if s, ok := g.students[id]; ok {
		return s
	}
	if p, ok := g.parents[id]; ok {
		return p
	}
	return nil
}

// UserByUserString finds the user a user string like "Ucitel12" addresses. The tag picks the
// collection, strings with other tags fall back to UserByID.
func (g *Graph) UserByUserString(userString string) model.User {
	parsed := model.ParseUserString(userString)
	if parsed.ID == "" {
		return nil
	}
	switch parsed.Type {
	case model.EntityTeacher:
		if t, ok := g.teachers[parsed.ID]; ok {
			return t
		}
		return nil
	case model.EntityStudent, model.EntityStudentOnly:
		if s, ok := g.students[parsed.ID]; ok {
			return s
		}
		return nil
	case model.EntityParent:
		if p, ok := g.parents[parsed.ID]; ok {
			return p
		}
		return nil
	}
	return g.UserByID(parsed.ID)
}

// Recipient resolves the address of a message: a user, a plan or a class. Parent variants
// ("StudentOnly") resolve to the student.
func (g *Graph) Recipient(userString string) (recipient model.Recipient, wildcard bool) {
	parsed := model.ParseUserString(strings.Replace(userString, "Only", "", 1))
	wildcard = parsed.Wildcard

	switch parsed.Type {
	case model.EntityTeacher:
		if t, ok := g.teachers[parsed.ID]; ok {
			return t, wildcard
		}
	case model.EntityStudent:
		if s, ok := g.students[parsed.ID]; ok {
			return s, wildcard
		}
	case model.EntityParent:
		if p, ok := g.parents[parsed.ID]; ok {
			return p, wildcard
		}
	case model.EntityStudPlan, model.EntityCustPlan:
		if p, ok := g.plans[parsed.ID]; ok {
			return p, wildcard
		}
	case model.EntityStudClass:
		if c, ok := g.classes[parsed.ID]; ok {
			return c, wildcard
		}
	case model.EntityClass:
		for _, p := range g.Plans {
			if string(p.CustomClassID) == parsed.ID {
				return p, wildcard
			}
		}
	}
	return nil, wildcard
}

// resolveUser finds the user of a user string, or makes one up from a display name for users
// outside the school database (admins, former teachers).
func (g *Graph) resolveUser(userString, displayName string) model.User {
	if user := g.UserByUserString(userString); user != nil {
		return user
	}
	firstname, lastname := model.ParseDisplayName(displayName)
	user := model.NewUser(userString)
	user.Profile().Firstname = model.String(firstname)
	user.Profile().Lastname = model.String(lastname)
	return user
}

// TimetableFor returns the cached timetable of the day of date.
func (g *Graph) TimetableFor(date time.Time) *model.Timetable {
	for _, t := range g.Timetables {
		if model.SameDay(t.Date, date) {
			return t
		}
	}
	return nil
}

// documents are the decoded pages and answers a graph is linked from.
type documents struct {
	haveHome bool
	home     model.UserHome
	edubar   model.Edubar
	asc      model.ASC

	timeline model.TimelineData
	created  model.CreatedItems

	gradeSettings model.GradeSettings
	gradeData     model.GradeData

	// fetched timetable days by date, they win over the ones of the dashboard
	days map[string]model.TimetableDay
	// reply threads loaded per message
	details map[string]model.ItemDetail
}

// clone copies the parts the timeline actions change, so a failed relink leaves d alone.
func (d documents) clone() documents {
	d.timeline.TimelineItems = slices.Clone(d.timeline.TimelineItems)
	d.created.Data.Items = slices.Clone(d.created.Data.Items)
	d.days = maps.Clone(d.days)
	d.details = maps.Clone(d.details)
	return d
}

func (d *documents) year() int {
	return d.edubar.Year()
}

func (d *documents) yearStart(withTime bool) string {
	return model.YearStart(d.edubar, d.asc, withTime)
}

type linker struct {
	docs    *documents
	baseURL string
	tel     telemetry.API
	g       *Graph
}

// link builds a graph from docs. Everything is created from scratch so no graph handed out
// earlier changes.
func link(docs *documents, baseURL string, tel telemetry.API) (*Graph, error) {
	if !docs.haveHome {
		return nil, fault.New(fault.KindValidation, "the dashboard was never loaded, refresh it first")
	}
	l := linker{docs: docs, baseURL: baseURL, tel: tel, g: &Graph{}}
	l.collect()
	l.linkSchool()
	l.linkTimetables()
	l.linkGrades()
	l.linkAssignments()
	l.linkMessages()
	err := l.linkCurrentUser()
	if err != nil {
		return nil, err
	}
	return l.g, nil
}

func (l *linker) collect() {
	g := l.g
	dbi := l.docs.home.DBI.Value

	g.Year = l.docs.year()
	g.ASC = l.docs.asc
	g.Edubar = l.docs.edubar

	g.Seasons = arena(l.docs.gradeSettings.Seasons)
	g.Classes = arena(dbi.Classes)
	g.Classrooms = arena(dbi.Classrooms)
	g.Teachers = arena(dbi.Teachers)
	g.Parents = arena(dbi.Parents)
	g.Students = arena(dbi.Students)
	g.Subjects = arena(dbi.Subjects)
	g.Periods = arena(dbi.Periods)
	g.Plans = arena(dbi.Plans)
	g.Grades = arena(l.docs.gradeData.Grades)
	g.Applications = arena(dbi.ProcessTypes)

	g.seasons = indexBy(g.Seasons, func(s *model.Season) model.String { return s.ID })
	g.classes = indexBy(g.Classes, func(c *model.Class) model.String { return c.ID })
	g.classrooms = indexBy(g.Classrooms, func(c *model.Classroom) model.String { return c.ID })
	g.teachers = indexBy(g.Teachers, func(t *model.Teacher) model.String { return t.ID })
	g.parents = indexBy(g.Parents, func(p *model.Parent) model.String { return p.ID })
	g.students = indexBy(g.Students, func(s *model.Student) model.String { return s.ID })
	g.subjects = indexBy(g.Subjects, func(s *model.Subject) model.String { return s.ID })
	g.periods = indexBy(g.Periods, func(p *model.Period) model.String { return p.ID })
	g.plans = indexBy(g.Plans, func(p *model.Plan) model.String { return p.ID })
	g.applications = indexBy(g.Applications, func(a *model.Application) model.String { return a.ID })
}

func (l *linker) linkSchool() {
	g := l.g

	for _, s := range g.Seasons {
		from, err := model.ResolveSeasonDate(string(s.From), g.Year)
		if err != nil {
			l.tel.ReportWarning(report_graph_link, "season start", s.ID, err)
		}
		to, err := model.ResolveSeasonDate(string(s.To), g.Year)
		if err != nil {
			l.tel.ReportWarning(report_graph_link, "season end", s.ID, err)
		}
		s.FromDate = from
		s.ToDate = to
		s.Parent = g.seasons[string(s.ParentID)]
		if s.IsClassification() {
			s.Classification = g.seasons[string(s.ClassificationID)]
		}
	}

	for _, c := range g.Classes {
		c.Classroom = g.classrooms[string(c.ClassroomID)]
		c.Teacher = g.teachers[string(c.TeacherID)]
		c.Teacher2 = g.teachers[string(c.Teacher2ID)]
	}
	for _, t := range g.Teachers {
		t.Classroom = g.classrooms[string(t.ClassroomID)]
	}
	for _, s := range g.Students {
		s.Class = g.classes[string(s.ClassID)]
		for _, id := range s.ParentIDs() {
			if p, ok := g.parents[id]; ok {
				s.Parents = append(s.Parents, p)
			}
		}
	}
	for _, p := range g.Plans {
		if p.SeasonID != "" {
			p.Season = g.seasons[string(p.SeasonID)]
		}
		p.Subject = g.subjects[string(p.SubjectID)]
		p.Teacher = g.teachers[string(p.TeacherID)]
		p.Classes = lookupAll(g.classes, p.ClassIDs)
		p.Teachers = lookupAll(g.teachers, p.TeacherIDs)
		p.Students = lookupAll(g.students, p.StudentIDs)
	}
}

func (l *linker) linkTimetables() {
	g := l.g

	days := map[string]model.TimetableDay{}
	var keys []string
	for _, entry := range l.docs.home.DP.Value.Dates {
		if _, exists := days[entry.Key]; !exists {
			keys = append(keys, entry.Key)
		}
		days[entry.Key] = entry.Value
	}
	for key, day := range l.docs.days {
		if _, exists := days[key]; !exists {
			keys = append(keys, key)
		}
		days[key] = day
	}

	for _, key := range keys {
		date, err := model.ParseTime(key)
		if err != nil || date.IsZero() {
			l.tel.ReportWarning(report_graph_link, "timetable date", key, err)
			continue
		}
		t := model.NewTimetable(date, days[key])
		for _, lesson := range t.Lessons {
			lesson.Period = g.periods[string(lesson.PeriodID)]
			lesson.Subject = g.subjects[string(lesson.SubjectID)]
			lesson.Classes = lookupAll(g.classes, lesson.ClassIDs)
			lesson.Classrooms = lookupAll(g.classrooms, lesson.ClassroomIDs)
			lesson.Teachers = lookupAll(g.teachers, lesson.TeacherIDs)
		}
		g.Timetables = append(g.Timetables, t)
	}
	slices.SortFunc(g.Timetables, func(a, b *model.Timetable) int {
		return a.Date.Compare(b.Date)
	})
}

func (l *linker) linkGrades() {
	g := l.g
	for _, grade := range g.Grades {
		grade.Season = g.seasons[string(grade.SeasonID)]
		grade.Subject = g.subjects[string(grade.SubjectID)]
		grade.Student = g.students[string(grade.StudentID)]
		grade.Teacher = g.teachers[string(grade.TeacherID)]

		event := l.docs.gradeData.FindEvent(string(grade.Provider), string(grade.EventID))
		if event == nil {
			l.tel.ReportWarning(report_graph_link, "grade event missing", grade.ID, grade.Provider, grade.EventID)
			grade.ApplyEvent(nil)
			continue
		}
		eventCopy := *event
		grade.ApplyEvent(&eventCopy)
		grade.Plan = g.plans[string(event.PlanID)]
		grade.Class = g.classes[string(event.ClassID)]
		grade.Classes = lookupAll(g.classes, event.ClassIDs)
	}
}

func (l *linker) linkAssignments() {
	g := l.g
	g.assignments = map[string]*model.Assignment{}

	for i := range l.docs.timeline.Homeworks {
		a := l.docs.timeline.Homeworks[i]
		assignment := &a

		assignment.Owner = g.UserByUserString(string(a.OwnerString))
		assignment.Subject = g.subjects[string(a.SubjectID)]
		assignment.Period = g.periods[string(a.PeriodID)]
		if a.StudentState.Present && a.StudentState.Value.SetBy != "" {
			assignment.StateUpdatedBy = g.UserByUserString(string(a.StudentState.Value.SetBy))
		}
		if a.SuperID != "" {
			for _, grade := range g.Grades {
				if grade.SuperID == string(a.SuperID) {
					assignment.Grades = append(assignment.Grades, grade)
					grade.Assignment = assignment
				}
			}
		}

		g.Assignments = append(g.Assignments, assignment)
		switch assignment.Kind {
		case model.KindHomework:
			g.Homeworks = append(g.Homeworks, assignment)
		case model.KindTest:
			g.Tests = append(g.Tests, assignment)
		}
		if _, exists := g.assignments[string(a.ID)]; !exists {
			g.assignments[string(a.ID)] = assignment
		}
	}
}

// linkCurrentUser finds the logged in user in the school database. The database entry gives
// the profile, ASC.loggedUser the kind of user: a parent's dashboard can list them under
// another kind.
func (l *linker) linkCurrentUser() error {
	g := l.g
	userID := string(l.docs.home.UserID)
	found := g.UserByUserString(userID)
	if found == nil {
		return &fault.Error{
			Kind:    fault.KindPageStructure,
			Message: "logged in user " + userID + " is missing from the school database",
			Pattern: "userhome",
		}
	}

	user := found
	loggedUser := string(l.docs.asc.RequestProps.LoggedUser)
	if loggedUser != "" && model.ParseUserString(loggedUser).Type != model.ParseUserString(found.UserString(false)).Type {
		profile, err := json.Marshal(found)
		if err == nil {
			user, err = model.DecodeUser(loggedUser, profile)
		}
		if err != nil {
			l.tel.ReportWarning(report_graph_link, "current user variant", loggedUser, err)
			user = found
		}
	}

	user.Profile().Email = string(l.docs.home.UserRow.Value.Email)
	g.User = user
	return nil
}

// byCreated orders timeline items oldest first, keeping the original order of ties.
func byCreated(items []model.TimelineItem) {
	slices.SortStableFunc(items, func(a, b model.TimelineItem) int {
		return cmp.Compare(a.Created.UnixNano(), b.Created.UnixNano())
	})
}
