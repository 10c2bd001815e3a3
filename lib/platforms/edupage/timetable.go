package edupage

import (
	"context"
	"net/http"
	"time"

	"edupage-client/lib/fault"
	"edupage-client/lib/platforms/edupage/core"
	"edupage-client/lib/platforms/edupage/extract"
	"edupage-client/lib/platforms/edupage/model"

	"go.opentelemetry.io/otel/attribute"
)

const (
	report_timetable_gpid = "timetable.gpid"
	dateLayout            = "2006-01-02"
)

// TimetableForDate returns the timetable of a day, from the graph when it is there and from
// the portal otherwise. It is nil when the portal has none for the day.
func (e *Edupage) TimetableForDate(ctx context.Context, day time.Time) (*model.Timetable, error) {
	if g := e.Graph(); g != nil {
		if t := g.TimetableFor(day); t != nil {
			return t, nil
		}
	}
	timetables, err := e.FetchTimetables(ctx, day, day)
	if err != nil {
		return nil, err
	}
	for _, t := range timetables {
		if model.SameDay(t.Date, day) {
			return t, nil
		}
	}
	return nil, nil
}

// gpidFor returns the id gcall needs: ASC's, or the last one on the classbook page.
func (e *Edupage) gpidFor(ctx context.Context) (string, error) {
	e.mutex.Lock()
	gpid := string(e.docs.asc.GPID)
	if gpid == "" {
		gpid = e.gpid
	}
	e.mutex.Unlock()
	if gpid != "" {
		return gpid, nil
	}

	e.tel.ReportDebug("timetable: no gpid in ASC, reading the classbook")
	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointDashboardGetClassbook,
		Method:   http.MethodGet,
		Mode:     core.ModeText,
	})
	if err != nil {
		return "", err
	}
	gpid, err = e.extract.Last(extract.GPID, res.Text)
	if err != nil {
		e.tel.ReportBroken(report_timetable_gpid, err)
		return "", err
	}

	e.mutex.Lock()
	e.gpid = gpid
	e.mutex.Unlock()
	return gpid, nil
}

// FetchTimetables loads the timetables of the days from from to to (inclusive) and merges
// them into the graph, replacing cached days.
func (e *Edupage) FetchTimetables(ctx context.Context, from, to time.Time) ([]*model.Timetable, error) {
	ctx, span := tracer.Start(ctx, "Edupage.FetchTimetables")
	defer span.End()
	span.SetAttributes(
		attribute.String("edupage.from", from.Format(dateLayout)),
		attribute.String("edupage.to", to.Format(dateLayout)),
	)

	if to.Before(from) {
		return nil, fail(span, fault.New(fault.KindValidation, "timetable range ends before it starts"))
	}
	err := e.ensureHome(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	gpid, err := e.gpidFor(ctx)
	if err != nil {
		return nil, fail(span, err)
	}

	e.mutex.Lock()
	gsh := string(e.docs.asc.GsecHash)
	e.mutex.Unlock()

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointDashboardGcall,
		Encoding: core.EncodingRaw,
		Body: core.RawForm(map[string]string{
			"gpid":     gpid,
			"gsh":      gsh,
			"action":   "loadData",
			"datefrom": from.Format(dateLayout),
			"dateto":   to.Format(dateLayout),
		}),
		Mode: core.ModeText,
	})
	if err != nil {
		return nil, fail(span, err)
	}

	raw, err := e.extract.Call(extract.Timetable, res.Text)
	if err != nil {
		return nil, fail(span, err)
	}
	dates, err := extract.Decode[model.TimetableDates](raw, extract.Timetable, "")
	if err != nil {
		return nil, fail(span, err)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	next := e.docs.clone()
	for _, entry := range dates.Dates {
		next.days[entry.Key] = entry.Value
	}
	g, err := e.commitLocked(next)
	if err != nil {
		return nil, fail(span, err)
	}

	var out []*model.Timetable
	for _, entry := range dates.Dates {
		date, err := model.ParseTime(entry.Key)
		if err != nil {
			continue
		}
		if t := g.TimetableFor(date); t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}
