package messaging

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"communityos/internal/common"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	previewRunes           = 80
	defaultMessagePageSize = 50
	maxMessagePageSize     = 200
)

var (
	ErrInvalidOtherUser = common.NewBusinessError(http.StatusBadRequest, "invalid_other_user", "")
	ErrUserNotFound     = common.NewBusinessError(http.StatusNotFound, "user_not_found", "")
	ErrMissingBody      = common.NewBusinessError(http.StatusBadRequest, "missing_body", "")
)

// Directory resolves member names. Ids absent from the result do not exist
// in the current tenant.
type Directory interface {
	NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service manages direct conversations of the current tenant.
type Service struct {
	db            *gorm.DB
	conversations *tenantdb.Repository[Conversation]
	participants  *tenantdb.Repository[Participant]
	messages      *tenantdb.Repository[Message]
	directory     Directory
	now           func() time.Time
}

// NewService creates a messaging service.
func NewService(db *gorm.DB, directory Directory) *Service {
	return &Service{
		db:            db,
		conversations: tenantdb.NewRepository[Conversation](db),
		participants:  tenantdb.NewRepository[Participant](db),
		messages:      tenantdb.NewRepository[Message](db),
		directory:     directory,
		now:           time.Now,
	}
}

func canonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// Start opens the direct conversation between me and other, or returns the
// existing one.
func (s *Service) Start(ctx context.Context, me, other uuid.UUID) (*ConversationView, error) {
	if other == uuid.Nil || other == me {
		return nil, ErrInvalidOtherUser
	}
	names, err := s.directory.NamesByID(ctx, []uuid.UUID{other})
	if err != nil {
		return nil, err
	}
	if _, ok := names[other]; !ok {
		return nil, ErrUserNotFound
	}

	a, b := canonicalPair(me, other)
	var existing Conversation
	err = s.conversations.Query(ctx).Where("direct_user_a_id = ? AND direct_user_b_id = ?", a, b).Take(&existing).Error
	if err == nil {
		return &ConversationView{ID: existing.ID, ParticipantIDs: []uuid.UUID{me, other}}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	conv := &Conversation{DirectUserAID: a, DirectUserBID: b}
	conv.ID = uuid.New()
	batch := tenantdb.NewSession(s.db)
	batch.Add(
		conv,
		&Participant{ConversationID: conv.ID, UserID: me, JoinedAt: now, LastReadAt: &now},
		&Participant{ConversationID: conv.ID, UserID: other, JoinedAt: now},
	)
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}
	return &ConversationView{ID: conv.ID, ParticipantIDs: []uuid.UUID{me, other}}, nil
}

// List pages me's conversations, most recently active first.
func (s *Service) List(ctx context.Context, me uuid.UUID, page common.PaginationRequest) (*common.Page[ConversationView], error) {
	size := page.GetPageSize()
	out := &common.Page[ConversationView]{Items: []ConversationView{}, Page: page.GetPage(), PageSize: size}

	var mine []Participant
	if err := s.participants.Query(ctx).Where("user_id = ?", me).Find(&mine).Error; err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(mine))
	lastRead := make(map[uuid.UUID]*time.Time, len(mine))
	for _, p := range mine {
		ids = append(ids, p.ConversationID)
		lastRead[p.ConversationID] = p.LastReadAt
	}

	var convs []Conversation
	err := s.conversations.Query(ctx).
		Where("id IN ?", ids).
		Order("last_message_at IS NULL").
		Order("last_message_at DESC").
		Offset(page.GetOffset()).
		Limit(size + 1).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	out.HasMore = len(convs) > size
	if out.HasMore {
		convs = convs[:size]
	}

	for _, c := range convs {
		view := ConversationView{ID: c.ID, LastMessageAt: c.LastMessageAt}
		err := s.participants.Query(ctx).Where("conversation_id = ?", c.ID).Pluck("user_id", &view.ParticipantIDs).Error
		if err != nil {
			return nil, err
		}
		var last Message
		err = s.messages.Query(ctx).Where("conversation_id = ?", c.ID).Order("sent_at DESC").Take(&last).Error
		switch {
		case err == nil:
			preview := truncate(last.BodyText, previewRunes)
			view.LastMessagePreview = &preview
			view.LastMessageAt = &last.SentAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
		if view.UnreadCount, err = s.unread(ctx, c.ID, me, lastRead[c.ID]); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, view)
	}
	return out, nil
}

// Get returns a conversation me participates in.
func (s *Service) Get(ctx context.Context, me, id uuid.UUID) (*ConversationView, error) {
	p, err := s.participant(ctx, me, id)
	if err != nil {
		return nil, err
	}
	view := &ConversationView{ID: id}
	if err := s.participants.Query(ctx).Where("conversation_id = ?", id).Pluck("user_id", &view.ParticipantIDs).Error; err != nil {
		return nil, err
	}
	if view.UnreadCount, err = s.unread(ctx, id, me, p.LastReadAt); err != nil {
		return nil, err
	}
	return view, nil
}

// Messages pages a conversation newest first and returns each page in
// chronological order.
func (s *Service) Messages(ctx context.Context, me, id uuid.UUID, page common.PaginationRequest) (*common.Page[MessageView], error) {
	if _, err := s.participant(ctx, me, id); err != nil {
		return nil, err
	}
	size := page.PageSize
	switch {
	case size <= 0:
		size = defaultMessagePageSize
	case size > maxMessagePageSize:
		size = maxMessagePageSize
	}
	pageNo := page.GetPage()

	var rows []Message
	err := s.messages.Query(ctx).
		Where("conversation_id = ?", id).
		Order("sent_at DESC").
		Offset((pageNo - 1) * size).
		Limit(size + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	hasMore := len(rows) > size
	if hasMore {
		rows = rows[:size]
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	senders := make([]uuid.UUID, 0, len(rows))
	for _, m := range rows {
		senders = append(senders, m.SenderID)
	}
	names, err := s.directory.NamesByID(ctx, senders)
	if err != nil {
		return nil, err
	}
	items := make([]MessageView, 0, len(rows))
	for _, m := range rows {
		items = append(items, toView(m, names))
	}
	return &common.Page[MessageView]{Items: items, Page: pageNo, PageSize: size, HasMore: hasMore}, nil
}

// Send posts a message to a conversation me participates in.
func (s *Service) Send(ctx context.Context, me, id uuid.UUID, body string) (*MessageView, error) {
	if _, err := s.participant(ctx, me, id); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrMissingBody
	}
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg := &Message{ConversationID: id, SenderID: me, BodyText: body, SentAt: now}
	conv.LastMessageAt = &now
	batch := tenantdb.NewSession(s.db)
	batch.Add(msg)
	batch.Update(conv)
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	names, err := s.directory.NamesByID(ctx, []uuid.UUID{me})
	if err != nil {
		return nil, err
	}
	view := toView(*msg, names)
	return &view, nil
}

// MarkRead moves me's read position to at, or to now when at is nil.
func (s *Service) MarkRead(ctx context.Context, me, id uuid.UUID, at *time.Time) error {
	p, err := s.participant(ctx, me, id)
	if err != nil {
		return err
	}
	readAt := s.now().UTC()
	if at != nil {
		readAt = at.UTC()
	}
	return s.participants.UpdateFields(ctx, p, map[string]any{"last_read_at": readAt})
}

// participant returns me's membership in a conversation. Conversations me is
// not part of are reported as not found.
func (s *Service) participant(ctx context.Context, me, id uuid.UUID) (*Participant, error) {
	var p Participant
	err := s.participants.Query(ctx).Where("conversation_id = ? AND user_id = ?", id, me).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tenantdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) unread(ctx context.Context, id, me uuid.UUID, lastRead *time.Time) (int, error) {
	q := s.messages.Query(ctx).Where("conversation_id = ? AND sender_id <> ?", id, me)
	if lastRead != nil {
		q = q.Where("sent_at > ?", lastRead.UTC())
	}
	var n int64
	err := q.Count(&n).Error
	return int(n), err
}

func toView(m Message, names map[uuid.UUID]string) MessageView {
	name, ok := names[m.SenderID]
	if !ok || name == "" {
		name = "Unknown"
	}
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     name,
		BodyText:       m.BodyText,
		SentAt:         m.SentAt,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
