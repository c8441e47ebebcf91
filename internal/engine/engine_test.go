package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/channels"
	"github.com/salonhq/booking-assistant/internal/conversations"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []fakeTurn
	calls     int
}

type fakeTurn struct {
	result *TurnResult
	err    error
}

func (f *fakeLLM) CompleteTurn(_ context.Context, _ Prompt) (*TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return &TurnResult{Reply: "noted"}, nil
	}
	turn := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return turn.result, turn.err
}

func (f *fakeLLM) push(turns ...fakeTurn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, turns...)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendText(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestEngine(t *testing.T, llm LLMClient) (*Engine, *MemoryDatastore, *fakeSender) {
	t.Helper()
	ds := NewMemoryDatastore()
	sender := &fakeSender{}
	senders := map[string]channels.Sender{
		channels.PlatformWhatsApp: sender,
		channels.PlatformTelegram: sender,
		channels.PlatformGeneric:  sender,
	}
	return NewEngine(ds, llm, senders, nil, nil, nil), ds, sender
}

func inboundText(id, content string) channels.InboundMessage {
	return channels.InboundMessage{
		Platform:          channels.PlatformWhatsApp,
		ProviderMessageID: id,
		SenderID:          "491701234567",
		PhoneNumber:       "+491701234567",
		DisplayName:       "Anna",
		Content:           content,
		MessageType:       "text",
		Timestamp:         time.Now().UTC(),
	}
}

func TestFirstTurnLeavesGreeting(t *testing.T) {
	llm := &fakeLLM{}
	llm.push(fakeTurn{result: &TurnResult{
		Reply:         "Hi Anna! What would you like to book?",
		ProposedState: conversations.StateCollectingInfo,
	}})
	eng, ds, sender := newTestEngine(t, llm)

	require.NoError(t, eng.ProcessInbound(context.Background(), inboundText("m1", "hello")))

	convs, err := ds.Conversations().List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, conversations.StateCollectingInfo, convs[0].State)
	assert.False(t, convs[0].IsComplete)

	history, err := ds.Conversations().History(context.Background(), convs[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsFromBot)
	assert.True(t, history[1].IsFromBot)
	assert.Equal(t, 1, sender.count())
}

func TestDuplicateProviderMessageIDProcessedOnce(t *testing.T) {
	llm := &fakeLLM{}
	eng, ds, sender := newTestEngine(t, llm)

	msg := inboundText("m1", "hello")
	require.NoError(t, eng.ProcessInbound(context.Background(), msg))

	// Same provider ID redelivered with a different timestamp, so only the
	// processed-messages guard can catch it.
	dup := msg
	dup.Timestamp = msg.Timestamp.Add(3 * time.Second)
	require.NoError(t, eng.ProcessInbound(context.Background(), dup))

	convs, _ := ds.Conversations().List(context.Background(), false)
	require.Len(t, convs, 1)
	history, err := ds.Conversations().History(context.Background(), convs[0].ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "duplicate must not append messages")
	assert.Equal(t, 1, sender.count(), "duplicate must not trigger a reply")
}

func TestDuplicateContentPreCheckSkipsModelCall(t *testing.T) {
	llm := &fakeLLM{}
	eng, ds, _ := newTestEngine(t, llm)

	// No provider message ID, as on the generic channel.
	msg := inboundText("", "hello")
	require.NoError(t, eng.ProcessInbound(context.Background(), msg))
	callsAfterFirst := llm.calls

	require.NoError(t, eng.ProcessInbound(context.Background(), msg))
	assert.Equal(t, callsAfterFirst, llm.calls, "duplicate should not reach the model")

	convs, _ := ds.Conversations().List(context.Background(), false)
	history, _ := ds.Conversations().History(context.Background(), convs[0].ID)
	assert.Len(t, history, 2)
}

func TestInvalidTransitionIsIgnored(t *testing.T) {
	llm := &fakeLLM{}
	// Model tries to jump straight from collecting_info to completed.
	llm.push(
		fakeTurn{result: &TurnResult{Reply: "hi", ProposedState: conversations.StateCollectingInfo}},
		fakeTurn{result: &TurnResult{
			Reply:         "done!",
			ProposedState: conversations.StateCompleted,
			Fields: bookings.Fields{
				ClientName:             "Anna",
				Phone:                  "+491701234567",
				PreferredContactMethod: bookings.ContactWhatsAppMessage,
				ServiceDescription:     "haircut",
				BookingDate:            "2026-09-01",
			},
		}},
	)
	eng, ds, _ := newTestEngine(t, llm)

	require.NoError(t, eng.ProcessInbound(context.Background(), inboundText("m1", "hello")))
	require.NoError(t, eng.ProcessInbound(context.Background(), inboundText("m2", "book it now")))

	convs, _ := ds.Conversations().List(context.Background(), false)
	require.Len(t, convs, 1)
	assert.Equal(t, conversations.StateCollectingInfo, convs[0].State)

	_, err := ds.Bookings().GetByConversation(context.Background(), convs[0].ID)
	assert.ErrorIs(t, err, bookings.ErrBookingNotFound, "no booking without passing through confirming")
}

func TestHaircutFlowCreatesPendingBooking(t *testing.T) {
	fields := bookings.Fields{
		ClientName:             "Anna Schmidt",
		Phone:                  "+491701234567",
		PreferredContactMethod: bookings.ContactWhatsAppMessage,
		ServiceDescription:     "haircut and blow dry",
		BookingDate:            "2026-09-01",
		BookingTime:            "14:00",
	}
	llm := &fakeLLM{}
	llm.push(
		fakeTurn{result: &TurnResult{Reply: "Hi! What can I book for you?", ProposedState: conversations.StateCollectingInfo}},
		fakeTurn{result: &TurnResult{Reply: "Here's your summary, shall I book it?", ProposedState: conversations.StateConfirming, Fields: fields}},
		fakeTurn{result: &TurnResult{Reply: "Booked! See you soon.", ProposedState: conversations.StateCompleted, Fields: fields}},
	)
	eng, ds, sender := newTestEngine(t, llm)

	ctx := context.Background()
	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m1", "hi, I need a haircut")))
	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m2", "Anna Schmidt, tomorrow at 14:00, reach me on whatsapp")))
	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m3", "yes please")))

	convs, _ := ds.Conversations().List(ctx, false)
	require.Len(t, convs, 1)
	assert.Equal(t, conversations.StateCompleted, convs[0].State)
	assert.True(t, convs[0].IsComplete)

	b, err := ds.Bookings().GetByConversation(ctx, convs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusPending, b.Status)
	assert.Equal(t, "Anna Schmidt", b.ClientName)
	assert.Equal(t, "+491701234567", b.Phone)
	assert.Equal(t, "haircut and blow dry", b.ServiceDescription)
	assert.Equal(t, "14:00", b.BookingTime)
	require.NotNil(t, b.BookingDate)
	assert.Equal(t, bookings.TimeAfternoon, b.TimeOfDay)
	assert.Equal(t, 3, sender.count())
}

func TestConfirmationKeywordOverridesModel(t *testing.T) {
	fields := bookings.Fields{
		ClientName:             "Anna",
		Phone:                  "+491701234567",
		PreferredContactMethod: bookings.ContactPhoneCall,
		ServiceDescription:     "coloring",
		TimeOfDay:              bookings.TimeMorning,
	}
	llm := &fakeLLM{}
	// Model waffles and proposes staying in confirming; the explicit "yes"
	// must finalize anyway.
	llm.push(fakeTurn{result: &TurnResult{Reply: "Anything else?", ProposedState: conversations.StateConfirming, Fields: fields}})
	eng, ds, _ := newTestEngine(t, llm)

	ctx := context.Background()
	conv := seedConversation(t, ds, conversations.StateConfirming)

	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m9", "yes")))

	got, err := ds.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversations.StateCompleted, got.State)

	_, err = ds.Bookings().GetByConversation(ctx, conv.ID)
	assert.NoError(t, err)
}

func TestRejectionReturnsToCollecting(t *testing.T) {
	llm := &fakeLLM{}
	llm.push(fakeTurn{result: &TurnResult{Reply: "What should I change?", ProposedState: conversations.StateCompleted}})
	eng, ds, _ := newTestEngine(t, llm)

	ctx := context.Background()
	conv := seedConversation(t, ds, conversations.StateConfirming)

	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m9", "no, the date is wrong")))

	got, err := ds.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversations.StateCollectingInfo, got.State)

	_, err = ds.Bookings().GetByConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, bookings.ErrBookingNotFound)
}

func TestCompletedConversationReopens(t *testing.T) {
	llm := &fakeLLM{}
	llm.push(fakeTurn{result: &TurnResult{Reply: "Of course! What would you like this time?", ProposedState: conversations.StateCollectingInfo}})
	eng, ds, _ := newTestEngine(t, llm)

	ctx := context.Background()
	conv := seedConversation(t, ds, conversations.StateCompleted)

	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m9", "I'd like another appointment")))

	got, err := ds.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversations.StateCollectingInfo, got.State)
	assert.False(t, got.IsComplete)
}

func TestModelFailThenSucceed(t *testing.T) {
	llm := &fakeLLM{}
	llm.push(
		fakeTurn{err: errors.New("rate limited")},
		fakeTurn{result: &TurnResult{Reply: "Hello!", ProposedState: conversations.StateCollectingInfo}},
	)
	eng, ds, sender := newTestEngine(t, llm)

	require.NoError(t, eng.ProcessInbound(context.Background(), inboundText("m1", "hi")))

	convs, _ := ds.Conversations().List(context.Background(), false)
	require.Len(t, convs, 1)
	assert.Equal(t, conversations.StateCollectingInfo, convs[0].State)
	assert.Equal(t, 1, sender.count())
	assert.Equal(t, 2, llm.calls)
}

func TestModelDoubleFailureDegrades(t *testing.T) {
	llm := &fakeLLM{}
	llm.push(
		fakeTurn{err: errors.New("boom")},
		fakeTurn{err: errors.New("boom again")},
		fakeTurn{result: &TurnResult{Reply: "recovered", ProposedState: conversations.StateCollectingInfo}},
	)
	eng, ds, sender := newTestEngine(t, llm)

	ctx := context.Background()
	conv := seedConversation(t, ds, conversations.StateCollectingInfo)

	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m1", "hi")))

	got, err := ds.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversations.StateCollectingInfo, got.State, "degraded turn must not change state")

	history, _ := ds.Conversations().History(ctx, conv.ID)
	require.Len(t, history, 2, "degraded turn still records both messages")
	assert.Equal(t, degradedReply, history[1].Content)
	assert.Equal(t, 1, sender.count())

	_, err = ds.Bookings().GetByConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, bookings.ErrBookingNotFound)
}

func TestSecondBookingUpdatesExistingRow(t *testing.T) {
	fields := bookings.Fields{
		ClientName:             "Anna",
		Phone:                  "+491701234567",
		PreferredContactMethod: bookings.ContactPhoneCall,
		ServiceDescription:     "trim",
		TimeOfDay:              bookings.TimeEvening,
	}
	llm := &fakeLLM{}
	llm.push(fakeTurn{result: &TurnResult{Reply: "Done", ProposedState: conversations.StateCompleted, Fields: fields}})
	eng, ds, _ := newTestEngine(t, llm)

	ctx := context.Background()
	conv := seedConversation(t, ds, conversations.StateConfirming)

	existing, err := bookings.NewService(ds.Bookings(), nil).CreateOrUpdate(ctx, conv.ID, bookings.Fields{
		ClientName:             "Anna",
		Phone:                  "+491701234567",
		PreferredContactMethod: bookings.ContactPhoneCall,
		ServiceDescription:     "old request",
		TimeOfDay:              bookings.TimeMorning,
	})
	require.NoError(t, err)

	require.NoError(t, eng.ProcessInbound(ctx, inboundText("m9", "yes confirm")))

	all, err := ds.Bookings().List(ctx, bookings.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1, "finalizing twice must not duplicate the booking")
	assert.Equal(t, existing.ID, all[0].ID)
	assert.Equal(t, "trim", all[0].ServiceDescription)
}

func seedConversation(t *testing.T, ds Datastore, state conversations.State) *conversations.Conversation {
	t.Helper()
	conv, _, err := ds.Conversations().FindOrCreate(context.Background(), &conversations.Conversation{
		PhoneNumber:    "+491701234567",
		Platform:       conversations.PlatformWhatsApp,
		PlatformUserID: "491701234567",
		State:          conversations.StateGreeting,
	})
	require.NoError(t, err)
	require.NoError(t, ds.Conversations().UpdateState(context.Background(), conv.ID, state, state == conversations.StateCompleted))
	conv.State = state
	return conv
}
