package edupage

import (
	"context"
	"encoding/json"
	"regexp"

	"edupage-client/lib/fault"
	"edupage-client/lib/platforms/edupage/core"
	"edupage-client/lib/platforms/edupage/extract"
	"edupage-client/lib/platforms/edupage/model"

	"go.opentelemetry.io/otel/attribute"
)

// AssignmentResults loads the results and material of an e-learning assignment. The answer is
// returned undecoded, its shape depends on the kind of material.
func (e *Edupage) AssignmentResults(ctx context.Context, assignment *model.Assignment) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Edupage.AssignmentResults")
	defer span.End()
	span.SetAttributes(attribute.String("edupage.superid", string(assignment.SuperID)))

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointElearningTestResults,
		Payload:  map[string]string{"superid": string(assignment.SuperID)},
	})
	if err != nil {
		return nil, fail(span, err)
	}
	answer, err := core.Decode[struct {
		Status  model.String `json:"status"`
		SuperID model.String `json:"superid"`
	}](res)
	if err != nil {
		return nil, fail(span, err)
	}
	if answer.SuperID == "" {
		return nil, fail(span, statusError("assignment results", answer.Status, res))
	}
	return res.JSON, nil
}

func (e *Edupage) currentUser() (model.User, error) {
	g := e.Graph()
	if g == nil || g.User == nil {
		return nil, fault.New(fault.KindValidation, "no logged in user yet, refresh first")
	}
	return g.User, nil
}

// CreateApplicationDraft starts filing an application and returns the draft id.
func (e *Edupage) CreateApplicationDraft(ctx context.Context, app *model.Application) (string, error) {
	ctx, span := tracer.Start(ctx, "Edupage.CreateApplicationDraft")
	defer span.End()
	span.SetAttributes(attribute.String("edupage.application", string(app.ID)))

	user, err := e.currentUser()
	if err != nil {
		return "", fail(span, err)
	}

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineCreateItem,
		Payload: map[string]string{
			"typ":                 model.ItemProcess,
			"selectedProcessType": string(app.ID),
			"selectedUser":        user.UserString(false),
		},
	})
	if err != nil {
		return "", fail(span, err)
	}
	answer, err := core.Decode[createAnswer](res)
	if err != nil {
		return "", fail(span, err)
	}
	if answer.Status != model.StatusOK {
		return "", fail(span, statusError("create application draft", answer.Status, res))
	}

	draft, err := e.extract.Last(extract.Draft, string(answer.Redirect))
	if err != nil {
		return "", fail(span, err)
	}
	return draft, nil
}

var (
	borderErrorFalse = regexp.MustCompile(`"border_error":\s*false`)
	borderErrorTrue  = regexp.MustCompile(`"border_error":\s*true`)
)

// PostApplication files an application with the given parameters. An empty draftID creates a
// draft first. It reports whether the portal accepted the application.
func (e *Edupage) PostApplication(ctx context.Context, app *model.Application, params map[string]string, draftID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Edupage.PostApplication")
	defer span.End()
	span.SetAttributes(attribute.String("edupage.application", string(app.ID)))

	if draftID == "" {
		var err error
		draftID, err = e.CreateApplicationDraft(ctx, app)
		if err != nil {
			return false, fail(span, err)
		}
	}

	e.mutex.Lock()
	gsh := string(e.docs.asc.GsecHash)
	e.mutex.Unlock()

	form := map[string]string{
		"gpid":   draftID,
		"gsh":    gsh,
		"action": "create",
		// loaded script libraries, the portal's own form always sends this
		"_LJSL": "2052",
	}
	for k, v := range params {
		form[k] = v
	}

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointDashboardGcall,
		Encoding: core.EncodingRaw,
		Body:     core.RawForm(form),
		Mode:     core.ModeText,
	})
	if err != nil {
		return false, fail(span, err)
	}

	accepted := borderErrorFalse.MatchString(res.Text) && !borderErrorTrue.MatchString(res.Text)
	span.SetAttributes(attribute.Bool("edupage.accepted", accepted))
	if !accepted {
		e.tel.ReportWarning(report_timeline_action, "application rejected", app.ID)
	}
	return accepted, nil
}
