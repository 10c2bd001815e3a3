package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"edupage-client/lib/fault"
	"edupage-client/lib/platforms/edupage/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestPassword(t *testing.T) {
	keyring.MockInit()

	secret, err := password(Config{Username: "jana", Password: "from-config"})
	require.NoError(t, err)
	require.Equal(t, "from-config", secret)

	_, err = password(Config{Username: "jana"})
	require.ErrorContains(t, err, "--save-password")

	require.NoError(t, savePassword("jana", "from-keyring"))
	secret, err = password(Config{Username: "jana"})
	require.NoError(t, err)
	require.Equal(t, "from-keyring", secret)

	_, err = password(Config{})
	require.Error(t, err)
}

func TestParseDay(t *testing.T) {
	zone := time.FixedZone("CET", 60*60)
	now := time.Date(2024, time.March, 4, 10, 0, 0, 0, zone)

	day, err := parseDay(nil, now)
	require.NoError(t, err)
	require.Equal(t, now, day)

	day, err = parseDay([]string{"2024-03-05"}, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, zone), day)

	_, err = parseDay([]string{"5.3.2024"}, now)
	require.Error(t, err)
}

func TestLessonRows(t *testing.T) {
	teacher := &model.Teacher{Person: model.Person{Firstname: "Peter", Lastname: "Horváth"}}
	tt := &model.Timetable{
		Date: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		Week: "A",
		Lessons: []*model.Lesson{
			{
				Period:     &model.Period{Short: "1", StartTime: "08:00", EndTime: "08:45"},
				Subject:    &model.Subject{Name: "Matematika"},
				Teachers:   []*model.Teacher{teacher},
				Classrooms: []*model.Classroom{{Short: "U7"}},
			},
			{OnlineLessonURL: "https://meet.example/abc"},
		},
	}

	require.Equal(t, []table.Row{
		{"1", "08:00-08:45", "Matematika", "Peter Horváth", "U7", false},
		{"", "", "", "", "", true},
	}, lessonRows(tt))
}

func TestMessageRows(t *testing.T) {
	created := time.Date(2024, time.March, 1, 8, 10, 0, 0, time.UTC)
	teacher := &model.Teacher{Person: model.Person{Firstname: "Peter", Lastname: "Horváth"}}
	messages := []*model.Message{
		{
			TimelineItem: model.TimelineItem{
				ID:      "100",
				Type:    model.ItemMessage,
				Created: model.Time{Time: created},
				Text:    "Písomka v <b>pondelok</b>",
			},
			Owner:   teacher,
			Replies: []*model.Message{{}},
		},
		{
			TimelineItem: model.TimelineItem{
				ID:        "104",
				Type:      model.ItemMessage,
				Created:   model.Time{Time: created},
				OwnerName: "Školský Admin",
				Text:      "Riaditeľské voľno",
			},
		},
	}

	rows := messageRows(context.Background(), messages, 1)
	require.Equal(t, []table.Row{
		{"100", "2024-03-01 08:10:00", model.ItemMessage, "Peter Horváth", 1, "Písomka v pondelok"},
	}, rows)

	rows = messageRows(context.Background(), messages, -1)
	require.Len(t, rows, 2)
	require.Equal(t, "Školský Admin", rows[1][3])
}

func TestDescribe(t *testing.T) {
	plain := errors.New("connection refused")
	require.Equal(t, "connection refused", describe(plain))

	err := &fault.Error{
		Kind:    fault.KindPageStructure,
		Message: "no match",
		Pattern: "userhome",
		Snippet: "<html>",
	}
	out := describe(err)
	require.Contains(t, out, "\npattern: userhome")
	require.Contains(t, out, "\nsnippet: <html>")
}
