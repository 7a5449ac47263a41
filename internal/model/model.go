// Package model holds the records shared by the Users and Posts services and
// the client that joins them.
package model

// UnknownUser is the display name given to a post whose author cannot be resolved.
const UnknownUser = "Unknown"

// User is a record owned by the Users service.
type User struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserPatch carries the fields of an update; nil fields keep their stored value.
type UserPatch struct {
	Name  *string
	Email *string
}

// Post is a record owned by the Posts service.
// UserID is only set on records read through the bulk query; live events omit it.
type Post struct {
	ID      int32  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  *int32 `json:"userId,omitempty"`
}

// PostPatch carries the fields of an update; nil fields keep their stored value.
type PostPatch struct {
	Title   *string
	Content *string
}

// PostAdded is the payload pushed to subscribers when a post is created.
type PostAdded struct {
	ID      int32  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// PostAddedFrom builds the live event for a freshly created post.
func PostAddedFrom(p Post) PostAdded {
	return PostAdded{ID: p.ID, Title: p.Title, Content: p.Content}
}

// JoinedRecord is a post annotated with its author's display name.
// User is never empty: it is either a user's name or UnknownUser.
type JoinedRecord struct {
	ID      int32  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  *int32 `json:"userId,omitempty"`
	User    string `json:"user"`
}
