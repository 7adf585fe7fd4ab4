package poll

import (
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
)

// Poll is a question attached to a post. A post has at most one poll.
type Poll struct {
	tenantdb.Model
	PostID   uuid.UUID `json:"postId" gorm:"type:uuid;not null;index"`
	Question string    `json:"question" gorm:"size:500;not null"`
}

func (Poll) TableName() string {
	return "polls"
}

// Option is one answer of a poll.
type Option struct {
	tenantdb.Model
	PollID    uuid.UUID `json:"pollId" gorm:"type:uuid;not null;index"`
	Text      string    `json:"text" gorm:"size:200;not null"`
	SortOrder int       `json:"sortOrder" gorm:"not null"`
}

func (Option) TableName() string {
	return "poll_options"
}

// Vote is a member's single, final vote on a poll.
type Vote struct {
	tenantdb.Model
	PollID   uuid.UUID `json:"pollId" gorm:"type:uuid;not null;index"`
	OptionID uuid.UUID `json:"pollOptionId" gorm:"column:poll_option_id;type:uuid;not null;index"`
	UserID   uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
}

func (Vote) TableName() string {
	return "poll_votes"
}

// OptionView is an option with its vote count.
type OptionView struct {
	ID        uuid.UUID `json:"pollOptionId"`
	Text      string    `json:"text"`
	SortOrder int       `json:"sortOrder"`
	Votes     int       `json:"voteCount"`
}

// View is a poll with results as seen by one member.
type View struct {
	ID         uuid.UUID    `json:"pollId"`
	PostID     uuid.UUID    `json:"postId"`
	Question   string       `json:"question"`
	Options    []OptionView `json:"options"`
	TotalVotes int          `json:"totalVotes"`
	MyOptionID *uuid.UUID   `json:"myVoteOptionId"`
}

// Models lists the tables of this package for migration.
func Models() []any {
	return []any{&Poll{}, &Option{}, &Vote{}}
}
