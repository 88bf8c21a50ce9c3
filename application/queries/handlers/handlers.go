package handlers

import (
	"context"
	"fmt"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/application/queries"
	"github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
)

// MemoryQueryHandler serves memory reads.
type MemoryQueryHandler struct {
	memories *services.MemoryService
}

// NewMemoryQueryHandler creates a new memory query handler
func NewMemoryQueryHandler(memories *services.MemoryService) *MemoryQueryHandler {
	return &MemoryQueryHandler{memories: memories}
}

// Handle executes a memory query
func (h *MemoryQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	switch q := query.(type) {
	case queries.GetMemoryQuery:
		return h.memories.Get(ctx, q.UserID, q.MemoryID)
	case queries.ListMemoriesQuery:
		page := q.Pagination.Normalize()
		items, total, err := h.memories.List(ctx, q.UserID, q.Filter, page)
		if err != nil {
			return nil, err
		}
		return &queries.ListMemoriesResult{Memories: items, Total: total, Pagination: page}, nil
	case queries.GetMediaURLQuery:
		url, err := h.memories.MediaURL(ctx, q.UserID, q.MemoryID, q.Kind)
		if err != nil {
			return nil, err
		}
		return &queries.MediaURLResult{URL: url}, nil
	case queries.OpenMediaQuery:
		body, file, err := h.memories.OpenMedia(ctx, q.UserID, q.MemoryID, q.Kind)
		if err != nil {
			return nil, err
		}
		return &queries.MediaContent{Body: body, ContentType: file.ContentType}, nil
	case queries.GetMemoryTextQuery:
		return h.memories.Text(ctx, q.UserID, q.MemoryID)
	case queries.GetTranscriptQuery:
		return h.memories.Transcript(ctx, q.UserID, q.MemoryID)
	default:
		return nil, fmt.Errorf("memory query handler cannot handle %T", query)
	}
}

// TagQueryHandler serves tag reads.
type TagQueryHandler struct {
	tags *services.TagService
}

// NewTagQueryHandler creates a new tag query handler
func NewTagQueryHandler(tags *services.TagService) *TagQueryHandler {
	return &TagQueryHandler{tags: tags}
}

// Handle executes a tag query
func (h *TagQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	switch q := query.(type) {
	case queries.GetTagQuery:
		return h.tags.Get(ctx, q.UserID, q.TagID)
	case queries.ListTagsQuery:
		return h.tags.List(ctx, q.UserID)
	default:
		return nil, fmt.Errorf("tag query handler cannot handle %T", query)
	}
}

// ConversationQueryHandler serves conversation and message reads.
type ConversationQueryHandler struct {
	conversations *services.ConversationService
}

// NewConversationQueryHandler creates a new conversation query handler
func NewConversationQueryHandler(conversations *services.ConversationService) *ConversationQueryHandler {
	return &ConversationQueryHandler{conversations: conversations}
}

// Handle executes a conversation query
func (h *ConversationQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	switch q := query.(type) {
	case queries.GetConversationQuery:
		return h.conversations.Get(ctx, q.UserID, q.ConversationID)
	case queries.ListConversationsQuery:
		return h.conversations.List(ctx, q.UserID, q.Pagination)
	case queries.ListMessagesQuery:
		return h.conversations.Messages(ctx, q.UserID, q.ConversationID, q.Pagination)
	default:
		return nil, fmt.Errorf("conversation query handler cannot handle %T", query)
	}
}

// UserQueryHandler serves user reads.
type UserQueryHandler struct {
	users ports.UserRepository
}

// NewUserQueryHandler creates a new user query handler
func NewUserQueryHandler(users ports.UserRepository) *UserQueryHandler {
	return &UserQueryHandler{users: users}
}

// Handle executes a user query
func (h *UserQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetUserQuery)
	if !ok {
		return nil, fmt.Errorf("user query handler cannot handle %T", query)
	}
	return h.users.GetByID(ctx, q.UserID)
}

// SearchQueryHandler serves similarity searches.
type SearchQueryHandler struct {
	searcher ports.MemorySearcher
}

// NewSearchQueryHandler creates a new search query handler
func NewSearchQueryHandler(searcher ports.MemorySearcher) *SearchQueryHandler {
	return &SearchQueryHandler{searcher: searcher}
}

// Handle executes a search query
func (h *SearchQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.SearchMemoriesQuery)
	if !ok {
		return nil, fmt.Errorf("search query handler cannot handle %T", query)
	}
	return h.searcher.Search(ctx, q.UserID, q.Text, q.Limit)
}

// CalendarQueryHandler serves calendar views.
type CalendarQueryHandler struct {
	calendar *services.CalendarService
}

// NewCalendarQueryHandler creates a new calendar query handler
func NewCalendarQueryHandler(calendar *services.CalendarService) *CalendarQueryHandler {
	return &CalendarQueryHandler{calendar: calendar}
}

// Handle executes a calendar query
func (h *CalendarQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	switch q := query.(type) {
	case queries.CalendarDayQuery:
		return h.calendar.Day(ctx, q.UserID, q.Date)
	case queries.CalendarRangeQuery:
		return h.calendar.Range(ctx, q.UserID, q.StartDate, q.EndDate)
	default:
		return nil, fmt.Errorf("calendar query handler cannot handle %T", query)
	}
}

// AskQueryHandler answers questions from memories.
type AskQueryHandler struct {
	ask *services.AskService
}

// NewAskQueryHandler creates a new ask query handler
func NewAskQueryHandler(ask *services.AskService) *AskQueryHandler {
	return &AskQueryHandler{ask: ask}
}

// Handle executes an ask query
func (h *AskQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.AskQuery)
	if !ok {
		return nil, fmt.Errorf("ask query handler cannot handle %T", query)
	}
	return h.ask.Ask(ctx, q.UserID, q.Question)
}

// Register wires every query type to its handler.
func Register(
	b *bus.QueryBus,
	memories *MemoryQueryHandler,
	tags *TagQueryHandler,
	conversations *ConversationQueryHandler,
	users *UserQueryHandler,
	search *SearchQueryHandler,
	calendar *CalendarQueryHandler,
	ask *AskQueryHandler,
) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.GetMemoryQuery{}, memories},
		{queries.ListMemoriesQuery{}, memories},
		{queries.GetMediaURLQuery{}, memories},
		{queries.OpenMediaQuery{}, memories},
		{queries.GetMemoryTextQuery{}, memories},
		{queries.GetTranscriptQuery{}, memories},
		{queries.GetTagQuery{}, tags},
		{queries.ListTagsQuery{}, tags},
		{queries.GetConversationQuery{}, conversations},
		{queries.ListConversationsQuery{}, conversations},
		{queries.ListMessagesQuery{}, conversations},
		{queries.GetUserQuery{}, users},
		{queries.SearchMemoriesQuery{}, search},
		{queries.CalendarDayQuery{}, calendar},
		{queries.CalendarRangeQuery{}, calendar},
		{queries.AskQuery{}, ask},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}
