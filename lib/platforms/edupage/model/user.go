package model

import (
	"encoding/json"
	"regexp"
	"strings"

	"edupage-client/lib/fault"
)

// EntityType is the tag part of a user string like "Student123".
type EntityType string

const (
	EntityTeacher        EntityType = "Ucitel"
	EntityStudent        EntityType = "Student"
	EntityParent         EntityType = "Rodic"
	EntityStudentOnly    EntityType = "StudentOnly"
	EntityStudPlan       EntityType = "StudPlan"
	EntityCustPlan       EntityType = "CustPlan"
	EntityStudClass      EntityType = "StudTrieda"
	EntityClass          EntityType = "Trieda"
	EntityAdmin          EntityType = "Admin"
	EntityAll            EntityType = "*"
	EntityStudentAll     EntityType = "Student*"
	EntityStudentOnlyAll EntityType = "StudentOnly*"
	EntityTeacherAll     EntityType = "Ucitel*"
)

const onlyMarker = "Only"

var (
	userStringID   = regexp.MustCompile(`-?\d+`)
	userStringType = regexp.MustCompile(`(?i)[a-z]+`)
)

// UserString is a parsed user string. Wildcard strings address a whole group.
type UserString struct {
	Type     EntityType
	ID       string
	Wildcard bool
}

func ParseUserString(s string) UserString {
	return UserString{
		Type:     EntityType(userStringType.FindString(s)),
		ID:       userStringID.FindString(s),
		Wildcard: strings.Contains(s, "*"),
	}
}

func (u UserString) String() string {
	if u.Wildcard && u.ID == "" {
		return string(u.Type) + "*"
	}
	return string(u.Type) + u.ID
}

// Recipient is anything a timeline message can be addressed to: a user, a plan or a class.
type Recipient interface {
	recipient()
}

// User is one of *Teacher, *Student, *Parent or *UnknownUser.
type User interface {
	Recipient
	Profile() *Person
	// UserString is the address of the user in timeline requests.
	UserString(parents bool) string
}

// Person carries the fields every kind of user has.
type Person struct {
	ID        String `json:"id"`
	Firstname String `json:"firstname"`
	Lastname  String `json:"lastname"`
	Gender    String `json:"gender"`
	DateFrom  Time   `json:"datefrom"`
	DateTo    Time   `json:"dateto"`
	IsOut     Bool   `json:"isOut"`

	// Email is only known for the logged in user.
	Email string `json:"-"`
}

func (p *Person) Profile() *Person {
	return p
}

func (p *Person) FullName() string {
	return strings.TrimSpace(string(p.Firstname) + " " + string(p.Lastname))
}

type Teacher struct {
	Person
	Short       String `json:"short"`
	ClassroomID String `json:"classroomid"`
	CBHidden    Bool   `json:"cb_hidden"`

	Classroom *Classroom `json:"-"`
}

func (*Teacher) recipient() {}

func (t *Teacher) UserString(bool) string {
	return string(EntityTeacher) + string(t.ID)
}

type Student struct {
	Person
	ClassID       String `json:"classid"`
	Number        Int    `json:"number"`
	NumberInClass Int    `json:"numberinclass"`
	Parent1ID     String `json:"parent1id"`
	Parent2ID     String `json:"parent2id"`
	Parent3ID     String `json:"parent3id"`

	Class   *Class    `json:"-"`
	Parents []*Parent `json:"-"`
}

func (*Student) recipient() {}

// UserString addresses the student, or with parents set the "StudentOnly" form of the
// address, which is what the portal's own message composer sends for that option.
func (s *Student) UserString(parents bool) string {
	if parents {
		return string(EntityStudent) + onlyMarker + string(s.ID)
	}
	return string(EntityStudent) + string(s.ID)
}

// ParentIDs returns the non-empty parent ids in order.
func (s *Student) ParentIDs() []string {
	var out []string
	for _, id := range []String{s.Parent1ID, s.Parent2ID, s.Parent3ID} {
		if id != "" {
			out = append(out, string(id))
		}
	}
	return out
}

type Parent struct {
	Person
}

func (*Parent) recipient() {}

func (p *Parent) UserString(bool) string {
	return string(EntityParent) + string(p.ID)
}

// UnknownUser is a user whose tag is not one of the known kinds, for example an admin that
// wrote a message.
type UnknownUser struct {
	Person
	Address string
}

func (*UnknownUser) recipient() {}

func (u *UnknownUser) UserString(bool) string {
	return u.Address
}

// NewUser returns an empty user of the variant the tag of userString names, carrying only
// its id.
func NewUser(userString string) User {
	user := emptyUser(userString)
	if id := ParseUserString(userString).ID; id != "" {
		user.Profile().ID = String(id)
	}
	return user
}

func emptyUser(userString string) User {
	switch ParseUserString(userString).Type {
	case EntityTeacher:
		return &Teacher{}
	case EntityStudent, EntityStudentOnly:
		return &Student{}
	case EntityParent:
		return &Parent{}
	default:
		return &UnknownUser{Address: userString}
	}
}

// DecodeUser decodes raw into the variant the tag of userString names. The id in userString
// wins over an id inside raw. Empty raw is allowed.
func DecodeUser(userString string, raw json.RawMessage) (User, error) {
	user := emptyUser(userString)
	if len(raw) > 0 {
		err := json.Unmarshal(raw, user)
		if err != nil {
			return nil, fault.Wrap(fault.KindContentDecode, err, "decode user %s", userString)
		}
	}
	if id := ParseUserString(userString).ID; id != "" {
		user.Profile().ID = String(id)
	}
	return user, nil
}

var ownerName = regexp.MustCompile(`^(.*?)\s?(\S+)(?:\s\(|$)`)

// ParseDisplayName splits a display name like "Jana Nováková (3.A)" into first and last name.
func ParseDisplayName(name string) (firstname, lastname string) {
	match := ownerName.FindStringSubmatch(name)
	if match == nil {
		return "", ""
	}
	return match[1], match[2]
}
