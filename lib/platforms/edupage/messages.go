package edupage

import (
	"slices"

	"edupage-client/lib/platforms/edupage/model"
)

// mergeItems joins the timeline and the created items. The first copy of an item wins, and
// helper records the portal makes for notifications are dropped when the item they point at
// is present.
func mergeItems(lists ...[]model.TimelineItem) []model.TimelineItem {
	present := map[string]bool{}
	for _, list := range lists {
		for _, item := range list {
			present[string(item.ID)] = true
		}
	}

	seen := map[string]bool{}
	var out []model.TimelineItem
	for _, list := range lists {
		for _, item := range list {
			id := string(item.ID)
			if seen[id] {
				continue
			}
			seen[id] = true
			if item.Type == model.ItemMessage && bool(item.Helper) && present[string(item.ReplyOf)] {
				continue
			}
			out = append(out, item)
		}
	}
	return out
}

func (l *linker) linkMessages() {
	g := l.g
	items := mergeItems(l.docs.timeline.TimelineItems, l.docs.created.Data.Items)
	byCreated(items)

	g.messages = make(map[string]*model.Message, len(items))
	g.Messages = make([]*model.Message, 0, len(items))
	for _, item := range items {
		m := l.newMessage(item)
		if m.ReplyOf != "" && m.Type != model.ItemConfirmation {
			// roots are older than their replies, so they are linked already
			if root, ok := g.messages[string(m.ReplyOf)]; ok {
				root.Replies = append(root.Replies, m)
				m.ReplyTo = root
			}
		}
		if _, exists := g.messages[string(m.ID)]; !exists {
			g.messages[string(m.ID)] = m
		}
		g.Messages = append(g.Messages, m)
	}

	for _, m := range g.Messages {
		if detail, ok := l.docs.details[string(m.ID)]; ok {
			l.applyDetail(m, detail)
		}
	}

	slices.Reverse(g.Messages)
	for _, m := range g.Messages {
		if m.Type != model.ItemConfirmation {
			g.Timeline = append(g.Timeline, m)
		}
	}
}

func (l *linker) newMessage(item model.TimelineItem) *model.Message {
	g := l.g
	m := &model.Message{TimelineItem: item}

	if item.OwnerString != "" {
		m.Owner = g.resolveUser(string(item.OwnerString), string(item.OwnerName))
	}
	if item.RecipientString != "" {
		m.Recipient, m.WildcardRecipient = g.Recipient(string(item.RecipientString))
	}
	for _, entry := range item.Data.Value.Attachments.Value {
		m.Attachments = append(m.Attachments, model.Attachment{
			Name: string(entry.Value),
			Path: entry.Key,
			Src:  l.baseURL + entry.Key,
		})
	}

	if item.UserProps.Present {
		m.ApplyUserProps(item.UserProps.Value)
	} else if props, ok := l.docs.timeline.UserProps.Value.Get(string(item.ID)); ok {
		m.ApplyUserProps(props)
	}
	return m
}

// applyDetail folds a loaded reply thread into its message: fresh counters, participants,
// likes and read receipts, and replies the timeline did not carry.
func (l *linker) applyDetail(m *model.Message, detail model.ItemDetail) {
	g := l.g

	if detail.Item.ID != "" {
		item := detail.Item
		m.TimelineDate = item.TimelineDate
		m.RepliesCount = item.RepliesCount
		m.LastReply = item.LastReply
		m.Removed = item.Removed
		if item.Data.Present {
			m.Data.Value.Confirmations = item.Data.Value.Confirmations
		}
		if item.UserProps.Present {
			m.ApplyUserProps(item.UserProps.Value)
		}
		// the thread's first record carries the user's own confirmations
		if len(detail.Replies) > 0 && detail.Replies[0].Data.Present {
			m.Data.Value.MyConfirmations = detail.Replies[0].Data.Value.MyConfirmations
		}
	}

	m.ParticipantsCount = int(detail.NumParticipants)
	for _, entry := range detail.Participants.Value {
		user := g.UserByUserString(entry.Key)
		if user == nil {
			user = model.NewUser(entry.Key)
			user.Profile().Firstname = entry.Value.Firstname
			user.Profile().Lastname = entry.Value.Lastname
			user.Profile().Gender = entry.Value.Gender
		}
		m.Participants = append(m.Participants, user)
	}

	if detail.Replies == nil {
		return
	}
	for _, reply := range detail.Replies {
		if reply.Helper || reply.ID == m.ID {
			continue
		}
		if !m.Created.IsZero() && reply.Created.Equal(m.Created.Time) {
			continue
		}

		if reply.Type == model.ItemConfirmation {
			user := g.resolveUser(string(reply.OwnerString), string(reply.OwnerName))
			if like := reply.Data.Value.Like; !like.IsZero() {
				m.LikedBy = append(m.LikedBy, model.Confirmation{User: user, Date: like.Time})
			}
			if m.IsImportant() {
				m.SeenBy = append(m.SeenBy, model.Confirmation{User: user, Date: reply.Created.Time})
			}
			continue
		}

		if slices.ContainsFunc(m.Replies, func(r *model.Message) bool { return r.ID == reply.ID }) {
			continue
		}
		r := l.newMessage(reply)
		r.ReplyTo = m
		m.Replies = append(m.Replies, r)
		if _, exists := g.messages[string(r.ID)]; !exists {
			g.messages[string(r.ID)] = r
		}
	}
	m.RepliesCount = model.Int(len(m.Replies))
}

// mergeDetail lays a newer thread answer over an older one, keeping parts the newer one left
// out.
func mergeDetail(old, newer model.ItemDetail) model.ItemDetail {
	out := old
	if newer.Item.ID != "" {
		out.Item = newer.Item
	}
	if newer.Replies != nil {
		out.Replies = newer.Replies
	}
	if newer.NumParticipants != 0 {
		out.NumParticipants = newer.NumParticipants
	}
	if newer.Participants.Present {
		out.Participants = newer.Participants
	}
	return out
}
