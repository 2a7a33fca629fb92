package automations

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

type stubIntegrations struct {
	integration *models.Integration
	err         error
}

func (s *stubIntegrations) Create(context.Context, *models.Integration) error { return nil }
func (s *stubIntegrations) GetByUserID(context.Context, models.IntegrationProvider) (*models.Integration, error) {
	return nil, errors.New("not used")
}
func (s *stubIntegrations) GetByID(context.Context, uuid.UUID) (*models.Integration, error) {
	return nil, errors.New("not used")
}
func (s *stubIntegrations) GetByInstagramID(context.Context, string) (*models.Integration, error) {
	return s.integration, s.err
}
func (s *stubIntegrations) UpdateToken(context.Context, uuid.UUID, string, time.Time, *string) (*models.Integration, error) {
	return nil, errors.New("not used")
}
func (s *stubIntegrations) ListExpiring(context.Context, time.Time, int) ([]models.Integration, error) {
	return nil, nil
}

type stubAutomations struct {
	active []models.Automation
}

func (s *stubAutomations) Create(context.Context, *models.Automation) error { return nil }
func (s *stubAutomations) GetByID(context.Context, uuid.UUID) (*models.Automation, error) {
	return nil, errors.New("not used")
}
func (s *stubAutomations) List(context.Context) ([]models.Automation, error) { return nil, nil }
func (s *stubAutomations) ListActiveByUser(context.Context, uuid.UUID) ([]models.Automation, error) {
	return s.active, nil
}
func (s *stubAutomations) UpdateName(context.Context, uuid.UUID, string) error { return nil }
func (s *stubAutomations) SetActive(context.Context, uuid.UUID, bool) error    { return nil }
func (s *stubAutomations) Clone(context.Context, uuid.UUID) (*models.Automation, error) {
	return nil, errors.New("not used")
}

type stubListeners struct {
	increments []models.TriggerType
}

func (s *stubListeners) Upsert(context.Context, *models.Listener) error { return nil }
func (s *stubListeners) GetByAutomation(context.Context, uuid.UUID) (*models.Listener, error) {
	return nil, errors.New("not used")
}
func (s *stubListeners) IncrementCount(_ context.Context, _ uuid.UUID, trigger models.TriggerType) error {
	s.increments = append(s.increments, trigger)
	return nil
}

type recordedSend struct {
	kind      string // "dm" or "reply"
	token     string
	accountID string
	target    string
	text      string
}

type stubDispatcher struct {
	sends []recordedSend
	err   error
}

func (s *stubDispatcher) SendDirectMessage(_ context.Context, token, accountID, recipientID, text string) error {
	s.sends = append(s.sends, recordedSend{"dm", token, accountID, recipientID, text})
	return s.err
}

func (s *stubDispatcher) SendPrivateReply(_ context.Context, token, accountID, commentID, text string) error {
	s.sends = append(s.sends, recordedSend{"reply", token, accountID, commentID, text})
	return s.err
}

type stubGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt, _ string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

type stubThrottle struct {
	err error
}

func (s *stubThrottle) AllowSend(context.Context, string) error { return s.err }

type stubPublisher struct {
	results []*kafka.DispatchResultMessage
}

func (s *stubPublisher) PublishDispatchResult(_ context.Context, msg *kafka.DispatchResultMessage) error {
	s.results = append(s.results, msg)
	return nil
}

func quietLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func messageAutomation(reply string) models.Automation {
	a := buildAutomation("welcome", true, []models.TriggerType{models.TriggerDM, models.TriggerComment}, []string{"hello"}, nil)
	a.Listener = &models.Listener{
		ID:     uuid.New(),
		Type:   models.ListenerMessage,
		Prompt: "fallback prompt",
		Reply:  &reply,
	}
	return a
}

func engineFixture(automations []models.Automation) (*Engine, *stubDispatcher, *stubPublisher, *stubListeners) {
	igID := "acct-1"
	integrations := &stubIntegrations{integration: &models.Integration{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		AccessToken: "acct-token",
		InstagramID: &igID,
	}}
	dispatcher := &stubDispatcher{}
	publisher := &stubPublisher{}
	listeners := &stubListeners{}
	engine := NewEngine(
		integrations,
		&stubAutomations{active: automations},
		listeners,
		dispatcher,
		&stubGenerator{reply: "generated reply"},
		&stubThrottle{},
		publisher,
		quietLogger(),
	)
	return engine, dispatcher, publisher, listeners
}

func TestHandleEvent_DMReply(t *testing.T) {
	engine, dispatcher, publisher, listeners := engineFixture([]models.Automation{messageAutomation("Thanks for the message!")})

	event := &models.InboundEvent{
		Type:      models.TriggerDM,
		AccountID: "acct-1",
		SenderID:  "sender-9",
		Text:      "hello there",
	}
	require.NoError(t, engine.HandleEvent(context.Background(), event))

	require.Len(t, dispatcher.sends, 1)
	send := dispatcher.sends[0]
	assert.Equal(t, "dm", send.kind)
	assert.Equal(t, "acct-token", send.token)
	assert.Equal(t, "acct-1", send.accountID)
	assert.Equal(t, "sender-9", send.target)
	assert.Equal(t, "Thanks for the message!", send.text)

	assert.Equal(t, []models.TriggerType{models.TriggerDM}, listeners.increments)

	require.Len(t, publisher.results, 1)
	assert.Equal(t, "success", publisher.results[0].Status)
	assert.Equal(t, "dm", publisher.results[0].Channel)
}

func TestHandleEvent_CommentGetsPrivateReply(t *testing.T) {
	engine, dispatcher, _, _ := engineFixture([]models.Automation{messageAutomation("Check your DMs")})

	event := &models.InboundEvent{
		Type:      models.TriggerComment,
		AccountID: "acct-1",
		SenderID:  "commenter",
		CommentID: "comment-7",
		Text:      "hello!",
	}
	require.NoError(t, engine.HandleEvent(context.Background(), event))

	require.Len(t, dispatcher.sends, 1)
	assert.Equal(t, "reply", dispatcher.sends[0].kind)
	assert.Equal(t, "comment-7", dispatcher.sends[0].target)
}

func TestHandleEvent_UnknownAccountIsDropped(t *testing.T) {
	integrations := &stubIntegrations{err: httperror.NewHTTPError(http.StatusNotFound, "integration does not exist")}
	dispatcher := &stubDispatcher{}
	engine := NewEngine(integrations, &stubAutomations{}, &stubListeners{}, dispatcher,
		&stubGenerator{}, &stubThrottle{}, nil, quietLogger())

	event := &models.InboundEvent{Type: models.TriggerDM, AccountID: "stranger", SenderID: "s", Text: "hello"}
	require.NoError(t, engine.HandleEvent(context.Background(), event))
	assert.Empty(t, dispatcher.sends)
}

func TestHandleEvent_NoMatchIsNotAnError(t *testing.T) {
	engine, dispatcher, publisher, _ := engineFixture([]models.Automation{messageAutomation("hi")})

	event := &models.InboundEvent{Type: models.TriggerDM, AccountID: "acct-1", SenderID: "s", Text: "nothing relevant"}
	require.NoError(t, engine.HandleEvent(context.Background(), event))
	assert.Empty(t, dispatcher.sends)
	assert.Empty(t, publisher.results)
}

func TestHandleEvent_SmartAIUsesGenerator(t *testing.T) {
	automation := buildAutomation("assistant", true, []models.TriggerType{models.TriggerDM}, []string{"help"}, nil)
	automation.Listener = &models.Listener{
		ID:     uuid.New(),
		Type:   models.ListenerSmartAI,
		Prompt: "You are a helpful shop assistant",
	}

	igID := "acct-1"
	integrations := &stubIntegrations{integration: &models.Integration{
		ID: uuid.New(), UserID: uuid.New(), AccessToken: "t", InstagramID: &igID,
	}}
	dispatcher := &stubDispatcher{}
	generator := &stubGenerator{reply: "Sure, here is how to order"}
	engine := NewEngine(integrations, &stubAutomations{active: []models.Automation{automation}},
		&stubListeners{}, dispatcher, generator, &stubThrottle{}, nil, quietLogger())

	event := &models.InboundEvent{Type: models.TriggerDM, AccountID: "acct-1", SenderID: "s", Text: "I need help"}
	require.NoError(t, engine.HandleEvent(context.Background(), event))

	assert.Equal(t, []string{"You are a helpful shop assistant"}, generator.prompts)
	require.Len(t, dispatcher.sends, 1)
	assert.Equal(t, "Sure, here is how to order", dispatcher.sends[0].text)
}

func TestHandleEvent_SmartAIWithoutGeneratorFails(t *testing.T) {
	automation := buildAutomation("assistant", true, []models.TriggerType{models.TriggerDM}, []string{"help"}, nil)
	automation.Listener = &models.Listener{
		ID:     uuid.New(),
		Type:   models.ListenerSmartAI,
		Prompt: "You are a helpful shop assistant",
	}

	igID := "acct-1"
	integrations := &stubIntegrations{integration: &models.Integration{
		ID: uuid.New(), UserID: uuid.New(), AccessToken: "t", InstagramID: &igID,
	}}
	dispatcher := &stubDispatcher{}
	engine := NewEngine(integrations, &stubAutomations{active: []models.Automation{automation}},
		&stubListeners{}, dispatcher, nil, &stubThrottle{}, nil, quietLogger())

	event := &models.InboundEvent{Type: models.TriggerDM, AccountID: "acct-1", SenderID: "s", Text: "I need help"}
	err := engine.HandleEvent(context.Background(), event)
	assert.ErrorIs(t, err, ErrNoGenerator)
	assert.Empty(t, dispatcher.sends)
}

func TestHandleEvent_ThrottledReturnsError(t *testing.T) {
	automation := messageAutomation("hi")

	igID := "acct-1"
	integrations := &stubIntegrations{integration: &models.Integration{
		ID: uuid.New(), UserID: uuid.New(), AccessToken: "t", InstagramID: &igID,
	}}
	dispatcher := &stubDispatcher{}
	throttleErr := errors.New("send rate limit exceeded")
	engine := NewEngine(integrations, &stubAutomations{active: []models.Automation{automation}},
		&stubListeners{}, dispatcher, &stubGenerator{}, &stubThrottle{err: throttleErr}, nil, quietLogger())

	event := &models.InboundEvent{Type: models.TriggerDM, AccountID: "acct-1", SenderID: "s", Text: "hello"}
	err := engine.HandleEvent(context.Background(), event)
	assert.ErrorIs(t, err, throttleErr)
	assert.Empty(t, dispatcher.sends, "throttled events must not dispatch")
}

func TestHandleEvent_DispatchFailurePropagates(t *testing.T) {
	engine, dispatcher, publisher, listeners := engineFixture([]models.Automation{messageAutomation("hi")})
	dispatchErr := errors.New("provider rejected the send")
	dispatcher.err = dispatchErr

	event := &models.InboundEvent{Type: models.TriggerDM, AccountID: "acct-1", SenderID: "s", Text: "hello"}
	err := engine.HandleEvent(context.Background(), event)
	assert.ErrorIs(t, err, dispatchErr)

	// Failure is still published, counters are not bumped
	require.Len(t, publisher.results, 1)
	assert.Equal(t, "failure", publisher.results[0].Status)
	assert.Equal(t, "provider rejected the send", publisher.results[0].Error)
	assert.Empty(t, listeners.increments)
}

func TestHandleEvent_MessageListenerFallsBackToPrompt(t *testing.T) {
	automation := buildAutomation("welcome", true, []models.TriggerType{models.TriggerDM}, []string{"hello"}, nil)
	automation.Listener = &models.Listener{
		ID:     uuid.New(),
		Type:   models.ListenerMessage,
		Prompt: "prompt text only",
	}

	igID := "acct-1"
	integrations := &stubIntegrations{integration: &models.Integration{
		ID: uuid.New(), UserID: uuid.New(), AccessToken: "t", InstagramID: &igID,
	}}
	dispatcher := &stubDispatcher{}
	engine := NewEngine(integrations, &stubAutomations{active: []models.Automation{automation}},
		&stubListeners{}, dispatcher, &stubGenerator{}, &stubThrottle{}, nil, quietLogger())

	event := &models.InboundEvent{Type: models.TriggerDM, AccountID: "acct-1", SenderID: "s", Text: "hello"}
	require.NoError(t, engine.HandleEvent(context.Background(), event))

	require.Len(t, dispatcher.sends, 1)
	assert.Equal(t, "prompt text only", dispatcher.sends[0].text)
}
