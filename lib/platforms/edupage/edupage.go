// Package edupage keeps a linked picture of one portal identity: the school database, the
// timeline, grades and timetables. Refreshing fetches pages through core and relinks, the
// resulting Graph is immutable and safe to share.
package edupage

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"edupage-client/internal/components/assert"
	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/platforms/edupage/core"
	"edupage-client/lib/platforms/edupage/extract"
	"edupage-client/lib/platforms/edupage/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_refresh_asc = "refresh.asc"
	report_refresh     = "refresh"
)

var tracer = otel.Tracer("edupage-client/edupage")

type Options struct {
	Telemetry telemetry.API
}

type Edupage struct {
	core    *core.Client
	tel     telemetry.API
	extract extract.Extractor

	mutex sync.Mutex
	docs  documents
	graph *Graph
	// the classbook's gpid, when the dashboard's ASC has none
	gpid string
}

func New(client *core.Client, opts Options) *Edupage {
	assert.NotNil(client, "core client")
	tel := telemetry.NewScopedAPI("edupage", telemetry.OrNoop(opts.Telemetry))
	return &Edupage{
		core:    client,
		tel:     tel,
		extract: extract.New(tel),
		docs: documents{
			days:    map[string]model.TimetableDay{},
			details: map[string]model.ItemDetail{},
		},
	}
}

func (e *Edupage) Core() *core.Client {
	return e.core
}

// Graph is the latest linked snapshot, nil until a refresh succeeded.
func (e *Edupage) Graph() *Graph {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.graph
}

// Login logs in and loads everything. A pending second factor returns before loading.
func (e *Edupage) Login(ctx context.Context, username, password string, opts core.LoginOptions) (core.LoginResult, error) {
	result, err := e.core.Login(ctx, username, password, opts)
	if err != nil || result.Pending2FA {
		return result, err
	}
	return result, e.Refresh(ctx)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Refresh reloads the dashboard, the timeline, created items and grades, then links once.
func (e *Edupage) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Edupage.Refresh")
	defer span.End()

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{name: "dashboard", run: e.fetchEdupage},
		{name: "timeline", run: e.fetchTimeline},
		{name: "created-items", run: e.fetchCreatedItems},
		{name: "grades", run: e.fetchGrades},
	}
	for _, step := range steps {
		err := step.run(ctx)
		if err != nil {
			e.tel.ReportBroken(report_refresh, step.name, err)
			return fail(span, err)
		}
	}

	_, err := e.relink()
	if err != nil {
		return fail(span, err)
	}
	return nil
}

func (e *Edupage) refreshOne(ctx context.Context, name string, fetch func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "Edupage.Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("edupage.step", name))

	err := fetch(ctx)
	if err != nil {
		e.tel.ReportBroken(report_refresh, name, err)
		return fail(span, err)
	}
	_, err = e.relink()
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// RefreshEdupage reloads the dashboard: the school database, ASC and the school year.
func (e *Edupage) RefreshEdupage(ctx context.Context) error {
	return e.refreshOne(ctx, "dashboard", e.fetchEdupage)
}

func (e *Edupage) RefreshTimeline(ctx context.Context) error {
	return e.refreshOne(ctx, "timeline", e.fetchTimeline)
}

func (e *Edupage) RefreshCreatedItems(ctx context.Context) error {
	return e.refreshOne(ctx, "created-items", e.fetchCreatedItems)
}

func (e *Edupage) RefreshGrades(ctx context.Context) error {
	return e.refreshOne(ctx, "grades", e.fetchGrades)
}

// relink builds a new graph from the current documents and publishes it.
func (e *Edupage) relink() (*Graph, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.relinkLocked()
}

func (e *Edupage) relinkLocked() (*Graph, error) {
	return e.commitLocked(e.docs)
}

// commitLocked links next and only makes it the current documents when that succeeds.
func (e *Edupage) commitLocked(next documents) (*Graph, error) {
	graph, err := link(&next, e.core.BaseURL(), e.tel)
	if err != nil {
		e.tel.ReportBroken(report_graph_link, err)
		return nil, err
	}
	e.docs = next
	e.graph = graph
	e.tel.ReportCount("graph.messages", int64(len(graph.Messages)))
	return graph, nil
}

func (e *Edupage) fetchEdupage(ctx context.Context) error {
	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointDashboardGetUser,
		Method:   http.MethodGet,
		Mode:     core.ModeText,
	})
	if err != nil {
		return err
	}

	raw, err := e.extract.Call(extract.UserHome, res.Text)
	if err != nil {
		return err
	}
	home, err := extract.Decode[model.UserHome](raw, extract.UserHome, "")
	if err != nil {
		return err
	}

	raw, err = e.extract.Call(extract.Edubar, res.Text)
	if err != nil {
		return err
	}
	edubar, err := extract.Decode[model.Edubar](raw, extract.Edubar, "")
	if err != nil {
		return err
	}

	asc := e.decodeASC(res.Text)

	e.mutex.Lock()
	e.docs.haveHome = true
	e.docs.home = home
	e.docs.edubar = edubar
	e.docs.asc = asc
	e.mutex.Unlock()
	return nil
}

// decodeASC keeps whatever part of the ASC globals decodes, every failure is a warning.
func (e *Edupage) decodeASC(doc string) model.ASC {
	result, err := e.extract.Assignments(extract.ASC, doc)
	if err != nil {
		e.tel.ReportWarning(report_refresh_asc, err)
		return model.ASC{}
	}

	asc, err := model.DecodeASC(result.Values)
	if err == nil {
		return asc
	}

	kept := make(map[string]json.RawMessage, len(result.Values))
	for key, value := range result.Values {
		_, err := model.DecodeASC(map[string]json.RawMessage{key: value})
		if err != nil {
			e.tel.ReportWarning(report_refresh_asc, key, err)
			continue
		}
		kept[key] = value
	}
	asc, err = model.DecodeASC(kept)
	if err != nil {
		e.tel.ReportWarning(report_refresh_asc, err)
		return model.ASC{}
	}
	return asc
}

// ensureHome loads the dashboard if it never was, later requests need the school year.
func (e *Edupage) ensureHome(ctx context.Context) error {
	e.mutex.Lock()
	loaded := e.docs.haveHome
	e.mutex.Unlock()
	if loaded {
		return nil
	}
	return e.fetchEdupage(ctx)
}

func (e *Edupage) yearStart(withTime bool) string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.docs.yearStart(withTime)
}

func (e *Edupage) fetchTimeline(ctx context.Context) error {
	err := e.ensureHome(ctx)
	if err != nil {
		return err
	}
	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineGetData,
		Payload:  map[string]string{"datefrom": e.yearStart(false)},
	})
	if err != nil {
		return err
	}
	timeline, err := core.Decode[model.TimelineData](res)
	if err != nil {
		return err
	}

	e.mutex.Lock()
	e.docs.timeline = timeline
	e.mutex.Unlock()
	return nil
}

func (e *Edupage) fetchCreatedItems(ctx context.Context) error {
	err := e.ensureHome(ctx)
	if err != nil {
		return err
	}
	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineGetCreatedItems,
		Payload:  map[string]string{"odkedy": e.yearStart(true)},
	})
	if err != nil {
		return err
	}
	created, err := core.Decode[model.CreatedItems](res)
	if err != nil {
		return err
	}

	e.mutex.Lock()
	e.docs.created = created
	e.mutex.Unlock()
	return nil
}

func (e *Edupage) fetchGrades(ctx context.Context) error {
	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointGradesData,
		Method:   http.MethodGet,
		Mode:     core.ModeText,
	})
	if err != nil {
		return err
	}

	raw, err := e.extract.Call(extract.GradeSettings, res.Text)
	if err != nil {
		return err
	}
	settings, err := extract.Decode[model.GradeSettings](raw, extract.GradeSettings, "")
	if err != nil {
		return err
	}
	raw, err = e.extract.Call(extract.GradeData, res.Text)
	if err != nil {
		return err
	}
	data, err := extract.Decode[model.GradeData](raw, extract.GradeData, "")
	if err != nil {
		return err
	}

	e.mutex.Lock()
	e.docs.gradeSettings = settings
	e.docs.gradeData = data
	e.mutex.Unlock()
	return nil
}
