package model

import "time"

// Timeline item types (the `typ` field).
const (
	ItemMessage           = "sprava"
	ItemConfirmation      = "confirmation"
	ItemNoticeboard       = "nastenka"
	ItemGradeAnnouncement = "znamkydoc"
	ItemGrade             = "znamka"
	ItemNote              = "vcelicka"
	ItemHomework          = "homework"
	ItemAbsenceNote       = "ospravedlnenka"
	ItemProcess           = "process"
	ItemEvent             = "event"
	ItemSubstitution      = "substitution"
	ItemTestAssignment    = "testpridelenie"
	ItemTestResult        = "testvysledok"
)

// Portal statuses of JSON answers.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

type MyConfirmations struct {
	Receipt Time `json:"receipt"`
	Like    Time `json:"like"`
}

type Confirmations struct {
	Like Int `json:"like"`
}

// MessageData is the `data` member of a timeline item, often sent string-encoded.
type MessageData struct {
	MessageContent  String                    `json:"messageContent"`
	TextReply       String                    `json:"textReply"`
	Receipt         Bool                      `json:"receipt"`
	ImportantReply  Bool                      `json:"importantReply"`
	MyConfirmations Embedded[MyConfirmations] `json:"myConfirmations"`
	Confirmations   Embedded[Confirmations]   `json:"confirmations"`
	Attachments     Embedded[Entries[String]] `json:"attachements"`
	// set on confirmation items
	Like Time `json:"like"`
}

// UserProps are the per-user flags of a timeline item.
type UserProps struct {
	DoneMaxCas Time `json:"doneMaxCas"`
	Starred    Bool `json:"starred"`
}

// TimelineItem is the raw form of a message, a reply or a confirmation.
type TimelineItem struct {
	ID              String                `json:"timelineid"`
	Type            String                `json:"typ"`
	Created         Time                  `json:"cas_pridania"`
	TimelineDate    Time                  `json:"timestamp"`
	OtherID         String                `json:"otherId"`
	RepliesCount    Int                   `json:"pocet_reakcii"`
	LastReply       Time                  `json:"posledna_reakcia"`
	Removed         Bool                  `json:"removed"`
	Text            String                `json:"text"`
	Title           String                `json:"user_meno"`
	OwnerString     String                `json:"vlastnik"`
	OwnerName       String                `json:"vlastnik_meno"`
	RecipientString String                `json:"user"`
	ReplyOf         String                `json:"reakcia_na"`
	Helper          Bool                  `json:"pomocny_zaznam"`
	Data            Embedded[MessageData] `json:"data"`
	UserProps       Embedded[UserProps]   `json:"userProps"`
}

// Attachment is a file attached to a message. Path is the portal-relative location, Src the
// absolute url.
type Attachment struct {
	Name string `json:"name"`
	Path string `json:"file"`
	Src  string `json:"-"`
}

// AttachmentMap is the form messages and replies send attachments in: path to name.
func AttachmentMap(attachments []Attachment) map[string]string {
	out := make(map[string]string, len(attachments))
	for _, a := range attachments {
		out[a.Path] = a.Name
	}
	return out
}

// Confirmation is a like or a read receipt by a user.
type Confirmation struct {
	User User
	Date time.Time
}

// Message is a linked timeline item.
type Message struct {
	TimelineItem

	Owner             User
	Recipient         Recipient
	WildcardRecipient bool
	ReplyTo           *Message
	Replies           []*Message
	Attachments       []Attachment
	LikedBy           []Confirmation
	SeenBy            []Confirmation
	Participants      []User
	ParticipantsCount int
	DoneDate          time.Time
	Starred           bool
}

func (m *Message) IsReply() bool {
	switch m.Data.Value.TextReply {
	case "", "0", "false":
		return false
	}
	return true
}

// IsImportant messages ask for a read receipt.
func (m *Message) IsImportant() bool {
	return bool(m.Data.Value.Receipt) || bool(m.Data.Value.ImportantReply)
}

// Content is the message text, falling back to the item's text.
func (m *Message) Content() string {
	if m.Data.Value.MessageContent != "" {
		return string(m.Data.Value.MessageContent)
	}
	return string(m.TimelineItem.Text)
}

// SeenDate is when the user confirmed reading an important message, or when any other message
// was created.
func (m *Message) SeenDate() time.Time {
	if !m.IsImportant() {
		return m.Created.Time
	}
	return m.Data.Value.MyConfirmations.Value.Receipt.Time
}

func (m *Message) IsSeen() bool {
	return !m.SeenDate().IsZero()
}

func (m *Message) LikedDate() time.Time {
	return m.Data.Value.MyConfirmations.Value.Like.Time
}

func (m *Message) IsLiked() bool {
	return !m.LikedDate().IsZero()
}

func (m *Message) Likes() int {
	return int(m.Data.Value.Confirmations.Value.Like)
}

func (m *Message) IsDone() bool {
	return !m.DoneDate.IsZero()
}

// ApplyUserProps sets the done and starred flags.
func (m *Message) ApplyUserProps(props UserProps) {
	m.DoneDate = props.DoneMaxCas.Time
	m.Starred = bool(props.Starred)
}

// ItemDetail is the answer of the replies endpoint for one item.
type ItemDetail struct {
	Item            TimelineItem                 `json:"item"`
	Replies         []TimelineItem               `json:"reakcie"`
	NumParticipants Int                          `json:"numParticipants"`
	Participants    Embedded[Entries[UserBrief]] `json:"participants"`
}

// UserBrief is how participant lists describe a user.
type UserBrief struct {
	Firstname String `json:"firstname"`
	Lastname  String `json:"lastname"`
	Gender    String `json:"gender"`
}
