package poll

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"communityos/internal/common"
	"communityos/internal/content"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	minOptions = 2
	maxOptions = 10
)

var (
	ErrPollExists    = common.NewBusinessError(http.StatusConflict, "poll_already_exists", "")
	ErrInvalidPoll   = common.NewBusinessError(http.StatusBadRequest, "invalid_poll", "a question and 2 to 10 options are required")
	ErrInvalidOption = common.NewBusinessError(http.StatusBadRequest, "invalid_option", "")
	ErrAlreadyVoted  = common.NewBusinessError(http.StatusConflict, "already_voted", "")
)

// Posts is the view of the content service polls need.
type Posts interface {
	FindPost(ctx context.Context, id uuid.UUID) (*content.Post, error)
	CanView(ctx context.Context, actor tenant.Actor, id uuid.UUID) error
}

// CreateInput is a new poll.
type CreateInput struct {
	Question string
	Options  []string
}

// Service manages polls of the current tenant.
type Service struct {
	db      *gorm.DB
	polls   *tenantdb.Repository[Poll]
	options *tenantdb.Repository[Option]
	votes   *tenantdb.Repository[Vote]
	posts   Posts
}

// NewService creates a poll service.
func NewService(db *gorm.DB, posts Posts) *Service {
	return &Service{
		db:      db,
		polls:   tenantdb.NewRepository[Poll](db),
		options: tenantdb.NewRepository[Option](db),
		votes:   tenantdb.NewRepository[Vote](db),
		posts:   posts,
	}
}

// Create attaches a poll to the actor's own post.
func (s *Service) Create(ctx context.Context, actor tenant.Actor, postID uuid.UUID, in CreateInput) (*View, error) {
	post, err := s.posts.FindPost(ctx, postID)
	if errors.Is(err, tenantdb.ErrNotFound) {
		return nil, content.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.UserID {
		return nil, common.ErrForbidden
	}
	if _, err := s.forPost(ctx, postID); err == nil {
		return nil, ErrPollExists
	} else if !errors.Is(err, tenantdb.ErrNotFound) {
		return nil, err
	}

	question := strings.TrimSpace(in.Question)
	if question == "" || len(in.Options) < minOptions || len(in.Options) > maxOptions {
		return nil, ErrInvalidPoll
	}

	p := &Poll{PostID: postID, Question: question}
	p.ID = uuid.New()
	batch := tenantdb.NewSession(s.db)
	batch.Add(p)
	view := &View{ID: p.ID, PostID: postID, Question: question, Options: make([]OptionView, 0, len(in.Options))}
	for i, text := range in.Options {
		o := &Option{PollID: p.ID, Text: strings.TrimSpace(text), SortOrder: i}
		o.ID = uuid.New()
		batch.Add(o)
		view.Options = append(view.Options, OptionView{ID: o.ID, Text: o.Text, SortOrder: i})
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}
	return view, nil
}

// ForPost returns the poll of a post with its current results.
func (s *Service) ForPost(ctx context.Context, actor tenant.Actor, postID uuid.UUID) (*View, error) {
	if err := s.posts.CanView(ctx, actor, postID); err != nil {
		return nil, err
	}
	p, err := s.forPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.results(ctx, actor, p)
}

// Vote records actor's vote. Votes are final.
func (s *Service) Vote(ctx context.Context, actor tenant.Actor, pollID, optionID uuid.UUID) error {
	p, err := s.polls.Get(ctx, pollID)
	if err != nil {
		return err
	}
	if err := s.posts.CanView(ctx, actor, p.PostID); err != nil {
		return err
	}
	var n int64
	err = s.options.Query(ctx).Where("id = ? AND poll_id = ?", optionID, pollID).Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidOption
	}
	err = s.votes.Query(ctx).Where("poll_id = ? AND user_id = ?", pollID, actor.UserID).Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrAlreadyVoted
	}
	err = s.votes.Create(ctx, &Vote{PollID: pollID, OptionID: optionID, UserID: actor.UserID})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyVoted
	}
	return err
}

func (s *Service) forPost(ctx context.Context, postID uuid.UUID) (*Poll, error) {
	var p Poll
	err := s.polls.Query(ctx).Where("post_id = ?", postID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tenantdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) results(ctx context.Context, actor tenant.Actor, p *Poll) (*View, error) {
	var options []Option
	if err := s.options.Query(ctx).Where("poll_id = ?", p.ID).Order("sort_order").Find(&options).Error; err != nil {
		return nil, err
	}
	var votes []Vote
	if err := s.votes.Query(ctx).Where("poll_id = ?", p.ID).Find(&votes).Error; err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int, len(options))
	view := &View{ID: p.ID, PostID: p.PostID, Question: p.Question, TotalVotes: len(votes)}
	for _, v := range votes {
		counts[v.OptionID]++
		if v.UserID == actor.UserID {
			mine := v.OptionID
			view.MyOptionID = &mine
		}
	}
	view.Options = make([]OptionView, 0, len(options))
	for _, o := range options {
		view.Options = append(view.Options, OptionView{ID: o.ID, Text: o.Text, SortOrder: o.SortOrder, Votes: counts[o.ID]})
	}
	return view, nil
}
