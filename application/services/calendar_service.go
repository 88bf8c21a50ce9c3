package services

import (
	"context"
	"sort"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CalendarDateLayout is the wire form of a calendar day.
const CalendarDateLayout = "2006-01-02"

// MaxCalendarRange is the widest range CalendarService.Range accepts.
const MaxCalendarRange = 90 * 24 * time.Hour

// CalendarDay groups what a user created on one UTC day.
type CalendarDay struct {
	Date          string
	Conversations []*conversation.Conversation
	Memories      []*memory.Memory
}

// Total is the number of items on the day.
func (d *CalendarDay) Total() int {
	return len(d.Conversations) + len(d.Memories)
}

// CalendarService answers calendar views over conversations and memories.
type CalendarService struct {
	memories      ports.MemoryRepository
	conversations ports.ConversationRepository
	logger        *zap.Logger
}

func NewCalendarService(memories ports.MemoryRepository, conversations ports.ConversationRepository, logger *zap.Logger) *CalendarService {
	return &CalendarService{memories: memories, conversations: conversations, logger: logger}
}

// ParseCalendarDate parses a YYYY-MM-DD day as UTC midnight.
func ParseCalendarDate(value string) (time.Time, error) {
	day, err := time.Parse(CalendarDateLayout, value)
	if err != nil {
		return time.Time{}, appErrors.NewValidationError("invalid date format, use YYYY-MM-DD").
			WithDetails(map[string]interface{}{"date": value})
	}
	return day, nil
}

// Day returns everything userID created on date. The day is returned even
// when it is empty.
func (s *CalendarService) Day(ctx context.Context, userID uuid.UUID, date string) (*CalendarDay, error) {
	day, err := ParseCalendarDate(date)
	if err != nil {
		return nil, err
	}
	days, err := s.collect(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return &CalendarDay{Date: date, Conversations: []*conversation.Conversation{}, Memories: []*memory.Memory{}}, nil
	}
	return days[0], nil
}

// Range returns the days between start and end, both inclusive, that have
// at least one item, oldest first.
func (s *CalendarService) Range(ctx context.Context, userID uuid.UUID, start, end string) ([]*CalendarDay, error) {
	from, err := ParseCalendarDate(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseCalendarDate(end)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, appErrors.NewValidationError("start_date must be before or equal to end_date")
	}
	if to.Sub(from) > MaxCalendarRange {
		return nil, appErrors.NewValidationError("date range cannot exceed 90 days")
	}
	return s.collect(ctx, userID, from, to.AddDate(0, 0, 1))
}

func (s *CalendarService) collect(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*CalendarDay, error) {
	var (
		convs []*conversation.Conversation
		mems  []*memory.Memory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = s.conversations.ListCreatedBetween(gctx, userID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		mems, err = s.memories.ListCreatedBetween(gctx, userID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to load calendar", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	byDate := map[string]*CalendarDay{}
	day := func(t time.Time) *CalendarDay {
		key := t.UTC().Format(CalendarDateLayout)
		d, ok := byDate[key]
		if !ok {
			d = &CalendarDay{Date: key, Conversations: []*conversation.Conversation{}, Memories: []*memory.Memory{}}
			byDate[key] = d
		}
		return d
	}
	for _, c := range convs {
		d := day(c.CreatedAt)
		d.Conversations = append(d.Conversations, c)
	}
	for _, m := range mems {
		d := day(m.CreatedAt)
		d.Memories = append(d.Memories, m)
	}

	out := make([]*CalendarDay, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
