package edupage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/fault"
	"edupage-client/lib/platforms/edupage/model"

	"github.com/stretchr/testify/require"
)

// withTimetables answers gcall loadData with page, or with no days once page is used up.
func withTimetables(p *portal, page string) *portal {
	p.handle(routeGcall, func(body string) string {
		form, _ := url.ParseQuery(body)
		if form.Get("action") != "loadData" {
			return ""
		}
		if form.Get("datefrom") == "2024-03-05" {
			return page
		}
		return `<script>classbook.fill("tt", {"dates":{}});</script>`
	})
	return p
}

func TestTimetableForDateUsesGraph(t *testing.T) {
	p := withTimetables(newPortal(), timetablePage)
	e, _ := loggedIn(t, p)

	tt, err := e.TimetableForDate(context.Background(), day(2024, time.March, 4))
	require.NoError(t, err)
	require.Equal(t, "A", tt.Week)
	require.Empty(t, p.requests(routeGcall))
	require.Empty(t, p.requests(routeClassbook))
}

func TestFetchTimetables(t *testing.T) {
	p := withTimetables(newPortal(), timetablePage)
	e, _ := loggedIn(t, p)
	ctx := context.Background()

	timetables, err := e.FetchTimetables(ctx, day(2024, time.March, 5), day(2024, time.March, 6))
	require.NoError(t, err)
	require.Len(t, timetables, 2)

	form := p.rawForm(t, routeGcall)
	require.Equal(t, "4105", form.Get("gpid"))
	require.Equal(t, "5f3a9c", form.Get("gsh"))
	require.Equal(t, "loadData", form.Get("action"))
	require.Equal(t, "2024-03-05", form.Get("datefrom"))
	require.Equal(t, "2024-03-06", form.Get("dateto"))

	g := e.Graph()
	require.Len(t, g.Timetables, 3)
	tuesday := g.TimetableFor(day(2024, time.March, 5))
	require.Same(t, timetables[0], tuesday)
	require.Equal(t, "B", tuesday.Week)
	require.Len(t, tuesday.Lessons, 2)
	require.Same(t, g.Subject("2"), tuesday.Lessons[0].Subject)
	require.Equal(t, []*model.Teacher{g.Teacher("6")}, tuesday.Lessons[0].Teachers)
	require.Empty(t, g.TimetableFor(day(2024, time.March, 6)).Lessons)

	cached, err := e.TimetableForDate(ctx, day(2024, time.March, 5))
	require.NoError(t, err)
	require.Same(t, tuesday, cached)
	require.Len(t, p.requests(routeGcall), 1)

	none, err := e.TimetableForDate(ctx, day(2024, time.March, 7))
	require.NoError(t, err)
	require.Nil(t, none)
	require.Len(t, p.requests(routeGcall), 2)
	require.Len(t, p.requests(routeClassbook), 1)
}

func TestFetchTimetablesLocalDates(t *testing.T) {
	p := withTimetables(newPortal(), timetablePage)
	e, _ := loggedIn(t, p)

	zone := time.FixedZone("CET", 60*60)
	tuesday := time.Date(2024, time.March, 5, 0, 30, 0, 0, zone)
	tt, err := e.TimetableForDate(context.Background(), tuesday)
	require.NoError(t, err)
	require.NotNil(t, tt)
	require.Equal(t, "2024-03-05", p.rawForm(t, routeGcall).Get("datefrom"))
}

func TestFetchTimetablesWithASCGpid(t *testing.T) {
	p := withTimetables(withDashboard(newPortal(), `ASC.lang = "sk";`, `ASC.lang = "sk";`+"\n"+`ASC.gpid = "9001";`), timetablePage)
	e, _ := loggedIn(t, p)

	_, err := e.FetchTimetables(context.Background(), day(2024, time.March, 5), day(2024, time.March, 5))
	require.NoError(t, err)
	require.Equal(t, "9001", p.rawForm(t, routeGcall).Get("gpid"))
	require.Empty(t, p.requests(routeClassbook))
}

func TestFetchTimetablesErrors(t *testing.T) {
	t.Run("range ends before it starts", func(t *testing.T) {
		p := withTimetables(newPortal(), timetablePage)
		e, _ := loggedIn(t, p)

		_, err := e.FetchTimetables(context.Background(), day(2024, time.March, 6), day(2024, time.March, 5))
		require.ErrorIs(t, err, fault.ErrValidation)
		require.Empty(t, p.requests(routeGcall))
	})

	t.Run("classbook without gpid", func(t *testing.T) {
		p := withTimetables(newPortal(), timetablePage)
		p.handle(routeClassbook, static(`<html><body>nothing here</body></html>`))
		e, tel := loggedIn(t, p)

		_, err := e.FetchTimetables(context.Background(), day(2024, time.March, 5), day(2024, time.March, 5))
		require.ErrorIs(t, err, fault.ErrPageStructure)
		require.True(t, tel.Has(telemetry.LevelBroken, report_timetable_gpid))
		require.Empty(t, p.requests(routeGcall))
	})

	t.Run("answer without timetable", func(t *testing.T) {
		p := withTimetables(newPortal(), `<div>Access denied</div>`)
		e, _ := loggedIn(t, p)

		_, err := e.FetchTimetables(context.Background(), day(2024, time.March, 5), day(2024, time.March, 5))
		require.ErrorIs(t, err, fault.ErrPageStructure)
		require.Len(t, e.Graph().Timetables, 1)
	})
}
