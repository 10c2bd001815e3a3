package edupage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"edupage-client/lib/fault"
	"edupage-client/lib/platforms/edupage/core"
	"edupage-client/lib/platforms/edupage/model"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
)

const report_timeline_action = "timeline.action"

type PollOption struct {
	Text string
	// ID is generated when empty.
	ID string
}

type Poll struct {
	Options  []PollOption
	Multiple bool
}

type MessageOptions struct {
	Text string
	// Important asks recipients for a read receipt.
	Important bool
	// Parents sends the message to the student's parents too.
	Parents             bool
	DisableReplies      bool
	RepliesToAuthorOnly bool
	Attachments         []model.Attachment
	Poll                *Poll
}

type ReplyOptions struct {
	Text string
	// Recipient narrows the reply to one user. Replies to replies always go to the author of
	// the reply.
	Recipient   model.User
	Parents     bool
	Attachments []model.Attachment
}

type createAnswer struct {
	Status   model.String         `json:"status"`
	Changes  []model.TimelineItem `json:"changes"`
	Redirect model.String         `json:"redirect"`
}

type threadAnswer struct {
	Status model.String     `json:"status"`
	Data   model.ItemDetail `json:"data"`
}

type flagAnswer struct {
	Status    model.String                                    `json:"status"`
	// present even when null, the props are only missing when the flag failed
	UserProps json.RawMessage `json:"timelineUserProps"`
}

func flag(state bool) string {
	if state {
		return "1"
	}
	return "0"
}

func statusError(action string, status model.String, res core.Response) error {
	return &fault.Error{
		Kind:     fault.KindAPI,
		Message:  action + ": portal answered with status " + `"` + string(status) + `"`,
		Snippet:  res.Text,
		Document: res.Text,
	}
}

func pollParams(poll *Poll) (string, error) {
	type answer struct {
		Text string `json:"text"`
		ID   string `json:"id"`
	}
	params := struct {
		Answers  []answer `json:"answers"`
		Multiple bool     `json:"multiple"`
	}{Multiple: poll.Multiple}
	for _, option := range poll.Options {
		id := option.ID
		if id == "" {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		params.Answers = append(params.Answers, answer{Text: option.Text, ID: id})
	}
	encoded, err := json.Marshal(params)
	return string(encoded), err
}

// SendMessage posts a message to a user and returns it linked.
func (e *Edupage) SendMessage(ctx context.Context, recipient model.User, opts MessageOptions) (*model.Message, error) {
	ctx, span := tracer.Start(ctx, "Edupage.SendMessage")
	defer span.End()

	if recipient == nil {
		return nil, fail(span, fault.New(fault.KindValidation, "a message needs a recipient"))
	}
	attachments, err := json.Marshal(model.AttachmentMap(opts.Attachments))
	if err != nil {
		return nil, fail(span, fault.Wrap(fault.KindValidation, err, "encode attachments"))
	}
	payload := map[string]string{
		"attachements":         string(attachments),
		"receipt":              flag(opts.Important),
		"repliesDisabled":      flag(opts.DisableReplies),
		"repliesToAllDisabled": flag(opts.DisableReplies || opts.RepliesToAuthorOnly),
		"selectedUser":         recipient.UserString(opts.Parents),
		"text":                 opts.Text,
		"typ":                  model.ItemMessage,
	}
	if opts.Poll != nil && len(opts.Poll.Options) > 0 {
		params, err := pollParams(opts.Poll)
		if err != nil {
			return nil, fail(span, fault.Wrap(fault.KindValidation, err, "encode poll"))
		}
		payload["votingParams"] = params
	}
	span.SetAttributes(attribute.String("edupage.recipient", payload["selectedUser"]))

	res, err := e.core.Do(ctx, core.Request{Endpoint: core.EndpointTimelineCreateItem, Payload: payload})
	if err != nil {
		return nil, fail(span, err)
	}
	answer, err := core.Decode[createAnswer](res)
	if err != nil {
		return nil, fail(span, err)
	}
	if answer.Status != model.StatusOK {
		return nil, fail(span, statusError("send message", answer.Status, res))
	}
	if len(answer.Changes) == 0 {
		return nil, fail(span, &fault.Error{
			Kind:     fault.KindAPI,
			Message:  "send message: the portal made no changes",
			Snippet:  res.Text,
			Document: res.Text,
		})
	}
	if len(answer.Changes) > 1 {
		e.tel.ReportDebug("timeline: several changes for one message", len(answer.Changes))
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	next := e.docs.clone()
	next.created.Data.Items = append(next.created.Data.Items, answer.Changes...)
	g, err := e.commitLocked(next)
	if err != nil {
		return nil, fail(span, err)
	}
	return g.Message(string(answer.Changes[0].ID)), nil
}

// Reply answers a message and returns the new reply.
func (e *Edupage) Reply(ctx context.Context, msg *model.Message, opts ReplyOptions) (*model.Message, error) {
	ctx, span := tracer.Start(ctx, "Edupage.Reply")
	defer span.End()
	id := string(msg.ID)
	span.SetAttributes(attribute.String("edupage.message", id))

	recipient := ""
	switch {
	case msg.IsReply() && msg.Owner != nil:
		recipient = msg.Owner.UserString(opts.Parents)
	case opts.Recipient != nil:
		recipient = opts.Recipient.UserString(opts.Parents)
	}

	// the reply form wants a list of single attachment objects
	attachments := make([]map[string]string, len(opts.Attachments))
	for i, a := range opts.Attachments {
		attachments[i] = map[string]string{a.Path: a.Name}
	}
	moredata, err := json.Marshal(map[string]any{"attachements": attachments})
	if err != nil {
		return nil, fail(span, fault.Wrap(fault.KindValidation, err, "encode attachments"))
	}

	before := len(msg.Replies)
	if g := e.Graph(); g != nil {
		if current := g.Message(id); current != nil {
			before = len(current.Replies)
		}
	}

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineCreateReply,
		Payload: map[string]string{
			"groupid":   id,
			"recipient": recipient,
			"text":      opts.Text,
			"moredata":  string(moredata),
		},
	})
	if err != nil {
		return nil, fail(span, err)
	}
	answer, err := core.Decode[threadAnswer](res)
	if err != nil {
		return nil, fail(span, err)
	}
	if answer.Status != model.StatusOK {
		return nil, fail(span, statusError("reply", answer.Status, res))
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	next := e.docs.clone()
	next.details[id] = mergeDetail(next.details[id], model.ItemDetail{Replies: answer.Data.Replies})
	g, err := e.commitLocked(next)
	if err != nil {
		return nil, fail(span, err)
	}

	updated := g.Message(id)
	if updated == nil || len(updated.Replies) <= before {
		return nil, fail(span, &fault.Error{
			Kind:     fault.KindAPI,
			Message:  "reply: the thread has no new reply",
			Snippet:  res.Text,
			Document: res.Text,
		})
	}
	if len(updated.Replies) > before+1 {
		e.tel.ReportDebug("timeline: several new replies", before, len(updated.Replies))
	}
	return updated.Replies[len(updated.Replies)-1], nil
}

// applyThread stores a thread answer of a message and relinks.
func (e *Edupage) applyThread(action, id string, res core.Response) (*model.Message, error) {
	answer, err := core.Decode[threadAnswer](res)
	if err != nil {
		return nil, err
	}
	if answer.Status != model.StatusOK {
		return nil, statusError(action, answer.Status, res)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	next := e.docs.clone()
	next.details[id] = mergeDetail(next.details[id], answer.Data)
	g, err := e.commitLocked(next)
	if err != nil {
		return nil, err
	}
	return g.Message(id), nil
}

func (e *Edupage) confirm(ctx context.Context, msg *model.Message, confirmType, value string) (*model.Message, error) {
	ctx, span := tracer.Start(ctx, "Edupage.Confirm")
	defer span.End()
	id := string(msg.ID)
	span.SetAttributes(
		attribute.String("edupage.message", id),
		attribute.String("edupage.confirm_type", confirmType),
	)

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineCreateConfirmation,
		Payload: map[string]string{
			"groupid":     id,
			"confirmType": confirmType,
			"val":         value,
		},
	})
	if err != nil {
		return nil, fail(span, err)
	}
	updated, err := e.applyThread("confirm "+confirmType, id, res)
	if err != nil {
		e.tel.ReportBroken(report_timeline_action, confirmType, id, err)
		return nil, fail(span, err)
	}
	return updated, nil
}

// MarkLiked likes or unlikes a message, it returns the message as linked afterwards.
func (e *Edupage) MarkLiked(ctx context.Context, msg *model.Message, state bool) (*model.Message, error) {
	return e.confirm(ctx, msg, "like", flag(state))
}

// MarkSeen sends the read receipt of an important message.
func (e *Edupage) MarkSeen(ctx context.Context, msg *model.Message) (*model.Message, error) {
	return e.confirm(ctx, msg, "receipt", "")
}

// RefreshMessage loads the reply thread, participants and confirmations of a message.
func (e *Edupage) RefreshMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	ctx, span := tracer.Start(ctx, "Edupage.RefreshMessage")
	defer span.End()
	id := string(msg.ID)
	span.SetAttributes(attribute.String("edupage.message", id))

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineGetReplies,
		Payload: map[string]string{
			"groupid":  id,
			"lastsync": "",
		},
	})
	if err != nil {
		return nil, fail(span, err)
	}
	updated, err := e.applyThread("refresh message", id, res)
	if err != nil {
		return nil, fail(span, err)
	}
	return updated, nil
}

func (e *Edupage) flagItem(ctx context.Context, msg *model.Message, name string, state bool) (*model.Message, error) {
	ctx, span := tracer.Start(ctx, "Edupage.Flag")
	defer span.End()
	id := string(msg.ID)
	span.SetAttributes(
		attribute.String("edupage.message", id),
		attribute.String("edupage.flag", name),
	)

	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineFlagHomework,
		Payload: map[string]string{
			"homeworkid": "timeline:" + id,
			"flag":       name,
			"value":      flag(state),
		},
	})
	if err != nil {
		return nil, fail(span, err)
	}
	answer, err := core.Decode[flagAnswer](res)
	if err != nil {
		return nil, fail(span, err)
	}
	if answer.UserProps == nil {
		err := statusError("flag "+name, answer.Status, res)
		e.tel.ReportBroken(report_timeline_action, name, id, err)
		return nil, fail(span, err)
	}
	var props model.Embedded[model.Entries[model.UserProps]]
	err = json.Unmarshal(answer.UserProps, &props)
	if err != nil {
		return nil, fail(span, fault.Wrap(fault.KindContentDecode, err, "decode user props"))
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	next := e.docs.clone()
	next.timeline.UserProps = props
	// the fresh per-user flags replace the ones the item was loaded with
	clearProps := func(items []model.TimelineItem) {
		for i := range items {
			if string(items[i].ID) == id {
				items[i].UserProps = model.Embedded[model.UserProps]{}
			}
		}
	}
	clearProps(next.timeline.TimelineItems)
	clearProps(next.created.Data.Items)
	if detail, ok := next.details[id]; ok {
		detail.Item.UserProps = model.Embedded[model.UserProps]{}
		next.details[id] = detail
	}

	g, err := e.commitLocked(next)
	if err != nil {
		return nil, fail(span, err)
	}
	return g.Message(id), nil
}

// MarkDone sets or clears the done flag of a message.
func (e *Edupage) MarkDone(ctx context.Context, msg *model.Message, state bool) (*model.Message, error) {
	return e.flagItem(ctx, msg, "done", state)
}

// MarkStarred sets or clears the star of a message.
func (e *Edupage) MarkStarred(ctx context.Context, msg *model.Message, state bool) (*model.Message, error) {
	return e.flagItem(ctx, msg, "important", state)
}

type uploadAnswer struct {
	Status model.String     `json:"status"`
	Data   model.Attachment `json:"data"`
}

// attachmentName is the file name the portal is told about, it insists on an extension.
func attachmentName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) || !strings.Contains(strings.TrimPrefix(name, "."), ".") {
		return "untitled.txt"
	}
	return name
}

// UploadAttachment uploads a file so it can be attached to a message or a reply.
func (e *Edupage) UploadAttachment(ctx context.Context, fs afero.Fs, path string) (model.Attachment, error) {
	ctx, span := tracer.Start(ctx, "Edupage.UploadAttachment")
	defer span.End()

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return model.Attachment{}, fail(span, fault.Wrap(fault.KindValidation, err, "read attachment %s", path))
	}
	name := attachmentName(path)
	span.SetAttributes(
		attribute.String("edupage.file", name),
		attribute.Int("edupage.size", len(content)),
	)

	body, contentType := core.MultipartFile(name, content)
	res, err := e.core.Do(ctx, core.Request{
		Endpoint: core.EndpointTimelineUploadAttachment,
		Encoding: core.EncodingRaw,
		Body:     body,
		Headers:  map[string]string{"content-type": contentType},
	})
	if err != nil {
		return model.Attachment{}, fail(span, err)
	}
	answer, err := core.Decode[uploadAnswer](res)
	if err != nil {
		return model.Attachment{}, fail(span, err)
	}
	if answer.Status != model.StatusOK {
		return model.Attachment{}, fail(span, statusError("upload attachment", answer.Status, res))
	}

	attachment := answer.Data
	attachment.Src = e.core.BaseURL() + attachment.Path
	return attachment, nil
}
