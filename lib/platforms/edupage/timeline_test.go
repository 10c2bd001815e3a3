package edupage

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/fault"
	"edupage-client/lib/platforms/edupage/model"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const sentMessage = `{"status":"ok","changes":[{
	"timelineid": "200",
	"typ": "sprava",
	"cas_pridania": "2024-03-04 10:00:00",
	"vlastnik": "Student123",
	"vlastnik_meno": "Jana Nováková",
	"user": "Ucitel5",
	"text": "Dobrý deň",
	"data": "{\"messageContent\":\"Dobrý deň\",\"receipt\":\"1\",\"attachements\":{\"/files/ziadost.pdf\":\"ziadost.pdf\"}}"
}]}`

func TestSendMessage(t *testing.T) {
	p := newPortal()
	p.handle(routeCreate, static(sentMessage))
	e, _ := loggedIn(t, p)
	g := e.Graph()

	msg, err := e.SendMessage(context.Background(), g.Teacher("5"), MessageOptions{
		Text:                "Dobrý deň",
		Important:           true,
		RepliesToAuthorOnly: true,
		Attachments:         []model.Attachment{{Name: "ziadost.pdf", Path: "/files/ziadost.pdf"}},
		Poll: &Poll{
			Options:  []PollOption{{Text: "Yes", ID: "yes"}, {Text: "No", ID: "no"}},
			Multiple: true,
		},
	})
	require.NoError(t, err)

	form := p.form(t, routeCreate)
	require.Equal(t, "Ucitel5", form.Get("selectedUser"))
	require.Equal(t, model.ItemMessage, form.Get("typ"))
	require.Equal(t, "Dobrý deň", form.Get("text"))
	require.Equal(t, "1", form.Get("receipt"))
	require.Equal(t, "0", form.Get("repliesDisabled"))
	require.Equal(t, "1", form.Get("repliesToAllDisabled"))
	require.JSONEq(t, `{"/files/ziadost.pdf":"ziadost.pdf"}`, form.Get("attachements"))
	require.JSONEq(t, `{"answers":[{"text":"Yes","id":"yes"},{"text":"No","id":"no"}],"multiple":true}`, form.Get("votingParams"))

	after := e.Graph()
	require.NotSame(t, g, after)
	require.Same(t, after.Message("200"), msg)
	require.Equal(t, "200", string(after.Timeline[0].ID))
	require.Same(t, after.User, msg.Owner)
	require.Same(t, after.Teacher("5"), msg.Recipient)
	require.Equal(t, "https://school42.edupage.org/files/ziadost.pdf", msg.Attachments[0].Src)
	require.Nil(t, g.Message("200"))
}

func TestSendMessageToParents(t *testing.T) {
	p := newPortal()
	p.handle(routeCreate, static(sentMessage))
	e, _ := loggedIn(t, p)

	_, err := e.SendMessage(context.Background(), e.Graph().Student("123"), MessageOptions{
		Text:    "Ospravedlnenie",
		Parents: true,
		Poll:    &Poll{Options: []PollOption{{Text: "Yes"}}},
	})
	require.NoError(t, err)

	form := p.form(t, routeCreate)
	require.Equal(t, "StudentOnly123", form.Get("selectedUser"))
	require.Equal(t, "0", form.Get("receipt"))
	require.Equal(t, "0", form.Get("repliesToAllDisabled"))
	require.JSONEq(t, `{}`, form.Get("attachements"))
	require.Regexp(t, regexp.MustCompile(`^\{"answers":\[\{"text":"Yes","id":"[0-9a-f]{32}"\}\],"multiple":false\}$`), form.Get("votingParams"))
}

func TestSendMessageFailures(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   error
	}{
		{name: "status", answer: `{"status":"fail"}`, want: fault.ErrAPI},
		{name: "no changes", answer: `{"status":"ok","changes":[]}`, want: fault.ErrAPI},
		{name: "shape", answer: `{"status":"ok","changes":{"0":"x"}}`, want: fault.ErrContentDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPortal()
			p.handle(routeCreate, static(tc.answer))
			e, _ := loggedIn(t, p)
			before := e.Graph()

			_, err := e.SendMessage(context.Background(), before.Teacher("5"), MessageOptions{Text: "hi"})
			require.ErrorIs(t, err, tc.want)
			require.Same(t, before, e.Graph())
		})
	}

	t.Run("no recipient", func(t *testing.T) {
		p := newPortal()
		e, _ := loggedIn(t, p)
		_, err := e.SendMessage(context.Background(), nil, MessageOptions{Text: "hi"})
		require.ErrorIs(t, err, fault.ErrValidation)
		require.Empty(t, p.requests(routeCreate))
	})
}

const replyThread = `{"status":"ok","data":{"reakcie":[
	{"timelineid":"101","typ":"sprava","cas_pridania":"2024-03-01 09:00:00","vlastnik":"Student123","user":"Ucitel5","reakcia_na":"100","text":"Rozumiem","data":{"textReply":"1"}},
	{"timelineid":"201","typ":"sprava","cas_pridania":"2024-03-04 10:05:00","vlastnik":"Student123","user":"Ucitel5","reakcia_na":"100","text":"Ďakujem","data":{"textReply":"1"}}
]}}`

func TestReply(t *testing.T) {
	p := newPortal()
	p.handle(routeReply, static(replyThread))
	e, _ := loggedIn(t, p)
	g := e.Graph()

	reply, err := e.Reply(context.Background(), g.Message("100"), ReplyOptions{
		Text:        "Ďakujem",
		Recipient:   g.Teacher("5"),
		Attachments: []model.Attachment{{Name: "a.txt", Path: "/files/a.txt"}},
	})
	require.NoError(t, err)

	form := p.form(t, routeReply)
	require.Equal(t, "100", form.Get("groupid"))
	require.Equal(t, "Ucitel5", form.Get("recipient"))
	require.Equal(t, "Ďakujem", form.Get("text"))
	require.JSONEq(t, `{"attachements":[{"/files/a.txt":"a.txt"}]}`, form.Get("moredata"))

	require.Equal(t, model.String("201"), reply.ID)
	root := e.Graph().Message("100")
	require.Same(t, root, reply.ReplyTo)
	require.Len(t, root.Replies, 2)
	require.Equal(t, model.Int(2), root.RepliesCount)
	require.Same(t, reply, e.Graph().Message("201"))
	require.Len(t, g.Message("100").Replies, 1)
}

func TestReplyRecipient(t *testing.T) {
	cases := []struct {
		name    string
		message string
		opts    func(g *Graph) ReplyOptions
		want    string
	}{
		{name: "whole thread", message: "100", opts: func(*Graph) ReplyOptions { return ReplyOptions{} }, want: ""},
		{
			name:    "reply to a reply goes to its author",
			message: "101",
			opts:    func(g *Graph) ReplyOptions { return ReplyOptions{Recipient: g.Teacher("6")} },
			want:    "Student123",
		},
		{
			name:    "parents of a student",
			message: "100",
			opts:    func(g *Graph) ReplyOptions { return ReplyOptions{Recipient: g.Student("123"), Parents: true} },
			want:    "StudentOnly123",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPortal()
			p.handle(routeReply, static(`{"status":"fail"}`))
			e, _ := loggedIn(t, p)
			g := e.Graph()

			_, err := e.Reply(context.Background(), g.Message(tc.message), tc.opts(g))
			require.ErrorIs(t, err, fault.ErrAPI)
			require.Equal(t, tc.want, p.form(t, routeReply).Get("recipient"))
		})
	}
}

func TestReplyWithoutNewReply(t *testing.T) {
	p := newPortal()
	p.handle(routeReply, static(`{"status":"ok","data":{"reakcie":[
		{"timelineid":"101","typ":"sprava","cas_pridania":"2024-03-01 09:00:00","vlastnik":"Student123","reakcia_na":"100","data":{"textReply":"1"}}
	]}}`))
	e, _ := loggedIn(t, p)

	_, err := e.Reply(context.Background(), e.Graph().Message("100"), ReplyOptions{Text: "hi"})
	require.ErrorIs(t, err, fault.ErrAPI)
}

const likedThread = `{"status":"ok","data":{
	"item": {"timelineid":"100","typ":"sprava","cas_pridania":"2024-03-01 08:00:00","vlastnik":"Ucitel5","user":"Trieda12","pocet_reakcii":"1","posledna_reakcia":"2024-03-01 09:00:00",
		"data":"{\"messageContent\":\"Písomka\",\"receipt\":\"1\",\"confirmations\":{\"like\":1}}"},
	"reakcie": [
		{"timelineid":"100","typ":"sprava","cas_pridania":"2024-03-01 08:00:00","vlastnik":"Ucitel5","data":{"myConfirmations":{"receipt":"2024-03-04 09:59:00","like":"2024-03-04 10:00:00"}}},
		{"timelineid":"101","typ":"sprava","cas_pridania":"2024-03-01 09:00:00","vlastnik":"Student123","reakcia_na":"100","data":{"textReply":"1"}},
		{"timelineid":"300","typ":"confirmation","cas_pridania":"2024-03-04 10:00:00","vlastnik":"Student123","reakcia_na":"100","data":{"like":"2024-03-04 10:00:00"}}
	],
	"numParticipants": "3",
	"participants": {
		"Ucitel5": {"firstname":"Peter","lastname":"Horváth","gender":"M"},
		"Student123": {"firstname":"Jana","lastname":"Nováková","gender":"F"},
		"Rodic77": {"firstname":"Ján","lastname":"Starý","gender":"M"}
	}
}}`

func TestMarkLiked(t *testing.T) {
	p := newPortal()
	p.handle(routeConfirm, static(likedThread))
	e, _ := loggedIn(t, p)
	before := e.Graph().Message("100")

	msg, err := e.MarkLiked(context.Background(), before, true)
	require.NoError(t, err)

	form := p.form(t, routeConfirm)
	require.Equal(t, "100", form.Get("groupid"))
	require.Equal(t, "like", form.Get("confirmType"))
	require.Equal(t, "1", form.Get("val"))

	g := e.Graph()
	require.Same(t, g.Message("100"), msg)
	require.True(t, msg.IsLiked())
	require.True(t, msg.IsSeen())
	require.Equal(t, 1, msg.Likes())
	require.Len(t, msg.LikedBy, 1)
	require.Same(t, g.User, msg.LikedBy[0].User)
	require.Equal(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), msg.LikedBy[0].Date)
	require.Len(t, msg.SeenBy, 1)
	require.Len(t, msg.Replies, 1)
	require.Equal(t, "Písomka v <b>pondelok</b>", msg.Content())

	require.Equal(t, 3, msg.ParticipantsCount)
	require.Len(t, msg.Participants, 3)
	require.Same(t, g.Teacher("5"), msg.Participants[0])
	stranger, ok := msg.Participants[2].(*model.Parent)
	require.True(t, ok, "%T", msg.Participants[2])
	require.Equal(t, "Ján Starý", stranger.FullName())
	require.Equal(t, model.String("77"), stranger.ID)

	require.False(t, before.IsLiked())
	require.Empty(t, before.LikedBy)
}

func TestMarkSeenAndRefreshMessage(t *testing.T) {
	p := newPortal()
	p.handle(routeConfirm, static(likedThread))
	p.handle(routeReplies, static(likedThread))
	e, _ := loggedIn(t, p)

	_, err := e.MarkSeen(context.Background(), e.Graph().Message("100"))
	require.NoError(t, err)
	form := p.form(t, routeConfirm)
	require.Equal(t, "receipt", form.Get("confirmType"))
	require.Equal(t, "", form.Get("val"))

	msg, err := e.RefreshMessage(context.Background(), e.Graph().Message("100"))
	require.NoError(t, err)
	require.Equal(t, "100", p.form(t, routeReplies).Get("groupid"))
	require.True(t, msg.IsSeen())
	require.Len(t, msg.LikedBy, 1)
}

func TestConfirmFailure(t *testing.T) {
	p := newPortal()
	p.handle(routeConfirm, static(`{"status":"fail","data":{}}`))
	e, tel := loggedIn(t, p)

	_, err := e.MarkLiked(context.Background(), e.Graph().Message("100"), false)
	require.ErrorIs(t, err, fault.ErrAPI)
	require.Equal(t, "0", p.form(t, routeConfirm).Get("val"))
	require.True(t, tel.Has(telemetry.LevelBroken, report_timeline_action))
}

func TestMarkDone(t *testing.T) {
	p := newPortal()
	p.handle(routeFlag, static(`{"status":"ok","timelineUserProps":{"100":{"doneMaxCas":"2024-03-04 10:00:00","starred":"0"},"105":{"doneMaxCas":"","starred":"1"}}}`))
	e, _ := loggedIn(t, p)
	before := e.Graph().Message("100")

	msg, err := e.MarkDone(context.Background(), before, true)
	require.NoError(t, err)

	form := p.form(t, routeFlag)
	require.Equal(t, "timeline:100", form.Get("homeworkid"))
	require.Equal(t, "done", form.Get("flag"))
	require.Equal(t, "1", form.Get("value"))

	require.Equal(t, testNow, msg.DoneDate)
	require.False(t, msg.Starred)
	require.True(t, e.Graph().Message("105").Starred)
	require.Equal(t, time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC), before.DoneDate)
}

func TestMarkStarredFailure(t *testing.T) {
	p := newPortal()
	p.handle(routeFlag, static(`{"status":"fail"}`))
	e, _ := loggedIn(t, p)

	_, err := e.MarkStarred(context.Background(), e.Graph().Message("100"), false)
	require.ErrorIs(t, err, fault.ErrAPI)
	form := p.form(t, routeFlag)
	require.Equal(t, "important", form.Get("flag"))
	require.Equal(t, "0", form.Get("value"))
}

func TestMarkDoneWithoutUserProps(t *testing.T) {
	p := newPortal()
	p.handle(routeFlag, static(`{"status":"ok","timelineUserProps":null}`))
	e, _ := loggedIn(t, p)

	msg, err := e.MarkDone(context.Background(), e.Graph().Message("100"), false)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.True(t, msg.DoneDate.IsZero())
	require.False(t, e.docs.timeline.UserProps.Present)
}

// breakLink makes the next relink fail by pointing the dashboard at a user the school
// database does not have.
func breakLink(e *Edupage) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.docs.home.UserID = "Student999"
}

func TestFailedRelinkKeepsDocuments(t *testing.T) {
	t.Run("send message", func(t *testing.T) {
		p := newPortal()
		p.handle(routeCreate, static(sentMessage))
		e, tel := loggedIn(t, p)
		before := e.Graph()
		created := slices.Clone(e.docs.created.Data.Items)
		breakLink(e)

		_, err := e.SendMessage(context.Background(), before.Teacher("5"), MessageOptions{Text: "Dobrý deň"})
		require.ErrorIs(t, err, fault.ErrPageStructure)
		require.Equal(t, created, e.docs.created.Data.Items)
		require.Same(t, before, e.Graph())
		require.True(t, tel.Has(telemetry.LevelBroken, report_graph_link))
	})

	t.Run("flag", func(t *testing.T) {
		p := newPortal()
		p.handle(routeFlag, static(`{"status":"ok","timelineUserProps":{"100":{"doneMaxCas":"2024-03-04 10:00:00","starred":"1"}}}`))
		e, _ := loggedIn(t, p)
		before := e.Graph()
		props := e.docs.timeline.UserProps
		items := slices.Clone(e.docs.timeline.TimelineItems)
		breakLink(e)

		_, err := e.MarkStarred(context.Background(), before.Message("100"), true)
		require.ErrorIs(t, err, fault.ErrPageStructure)
		require.Equal(t, props, e.docs.timeline.UserProps)
		require.Equal(t, items, e.docs.timeline.TimelineItems)
		require.Same(t, before, e.Graph())
	})
}

func TestAttachmentName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{path: "/home/jana/notes.txt", want: "notes.txt"},
		{path: "report.final.pdf", want: "report.final.pdf"},
		{path: "/home/jana/README", want: "untitled.txt"},
		{path: "/home/jana/.bashrc", want: "untitled.txt"},
		{path: "/home/jana/.config.json", want: ".config.json"},
		{path: "", want: "untitled.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, tc.want, attachmentName(tc.path))
		})
	}
}

func TestUploadAttachment(t *testing.T) {
	p := newPortal()
	p.handle(routeUpload, static(`{"status":"ok","data":{"name":"notes.txt","file":"/elearning/att/notes.txt"}}`))
	e, _ := loggedIn(t, p)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/jana/notes.txt", []byte("quadratic equations"), 0o644))

	attachment, err := e.UploadAttachment(context.Background(), fs, "/home/jana/notes.txt")
	require.NoError(t, err)
	require.Equal(t, model.Attachment{
		Name: "notes.txt",
		Path: "/elearning/att/notes.txt",
		Src:  "https://school42.edupage.org/elearning/att/notes.txt",
	}, attachment)

	sent := p.requests(routeUpload)
	require.Len(t, sent, 1)
	require.True(t, strings.HasPrefix(sent[0].header.Get("Content-Type"), "multipart/form-data; boundary="))
	require.Contains(t, sent[0].body, `filename="notes.txt"`)
	require.Contains(t, sent[0].body, "quadratic equations")
}

func TestUploadAttachmentFailures(t *testing.T) {
	p := newPortal()
	p.handle(routeUpload, static(`{"status":"fail"}`))
	e, _ := loggedIn(t, p)
	fs := afero.NewMemMapFs()

	_, err := e.UploadAttachment(context.Background(), fs, "/missing.txt")
	require.ErrorIs(t, err, fault.ErrValidation)
	require.Empty(t, p.requests(routeUpload))

	require.NoError(t, afero.WriteFile(fs, "/notes.txt", []byte("x"), 0o644))
	_, err = e.UploadAttachment(context.Background(), fs, "/notes.txt")
	require.ErrorIs(t, err, fault.ErrAPI)
}
