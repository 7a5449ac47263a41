package reconciler

import "github.com/dyluth/postboard/internal/model"

// Join annotates each post with its author's name, keeping posts order.
// Posts whose userId matches no user, or a user with an empty name, get
// model.UnknownUser. When users repeat an id the first one wins.
func Join(users []model.User, posts []model.Post) []model.JoinedRecord {
	names := make(map[int32]string, len(users))
	for _, u := range users {
		if _, seen := names[u.ID]; !seen {
			names[u.ID] = u.Name
		}
	}

	out := make([]model.JoinedRecord, len(posts))
	for i, p := range posts {
		name := ""
		if p.UserID != nil {
			name = names[*p.UserID]
		}
		if name == "" {
			name = model.UnknownUser
		}
		out[i] = model.JoinedRecord{
			ID:      p.ID,
			Title:   p.Title,
			Content: p.Content,
			UserID:  p.UserID,
			User:    name,
		}
	}
	return out
}

// liveRecord converts a postAdded event. Events carry no author, so the
// record is never joined.
func liveRecord(ev model.PostAdded) model.JoinedRecord {
	return model.JoinedRecord{
		ID:      ev.ID,
		Title:   ev.Title,
		Content: ev.Content,
		User:    model.UnknownUser,
	}
}
