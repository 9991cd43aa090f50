package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-triage-be/internal/dto"
	"ai-triage-be/internal/pkg/logger"
	"ai-triage-be/internal/repository/memory"
	"ai-triage-be/pkg/llm"
	"ai-triage-be/pkg/persona"
	"ai-triage-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM replays canned replies (or errors) in call order and records the
// history passed to each call.
type scriptedLLM struct {
	replies []string
	errs    []error
	calls   [][]llm.Message
}

func (m *scriptedLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	i := len(m.calls)
	m.calls = append(m.calls, append([]llm.Message(nil), history...))
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return "ok", nil
}

func (m *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return m.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

type fakeRetriever struct {
	examples []retrieval.Example
	panics   bool
}

func (r *fakeRetriever) Retrieve(context.Context, string, int) []retrieval.Example {
	if r.panics {
		panic("store gone")
	}
	return r.examples
}

func newTestTriage(model *scriptedLLM, retriever Retriever) (ITriageService, *memory.SessionRepository) {
	sessions := memory.NewSessionRepository()
	svc := NewTriageService(sessions, persona.NewRegistry(), model, retriever, 3, nil, logger.NopLogger{})
	return svc, sessions
}

func TestSendMessageStaysWithNurseOnDialogue(t *testing.T) {
	model := &scriptedLLM{replies: []string{"How long have you felt this way?"}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	res, err := svc.SendMessage(context.Background(), "s1", "I feel off lately")
	require.NoError(t, err)

	assert.Equal(t, "How long have you felt this way?", res.Response)
	assert.Equal(t, persona.NurseID, res.Persona)

	sess, found := sessions.Get("s1")
	require.True(t, found)
	assert.Equal(t, persona.NurseID, sess.ActivePersona)
	// system instruction + user turn + assistant turn
	assert.Len(t, sess.ActiveBinding().History, 3)
}

func TestSendMessageHandoverSwitchesAndResubmits(t *testing.T) {
	model := &scriptedLLM{replies: []string{"HANDOVER:anxiety", "It sounds like racing thoughts keep you up."}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	res, err := svc.SendMessage(context.Background(), "s1", "My heart races at night")
	require.NoError(t, err)

	// Caller sees only the specialist's reply, never the signal token.
	assert.Equal(t, "It sounds like racing thoughts keep you up.", res.Response)
	assert.Equal(t, "anxiety", res.Persona)
	require.Len(t, model.calls, 2)

	// The specialist call starts from its own fresh history and receives the
	// same input the nurse saw.
	specialistCall := model.calls[1]
	require.Len(t, specialistCall, 2)
	assert.Equal(t, llm.RoleSystem, specialistCall[0].Role)
	assert.Equal(t, model.calls[0][len(model.calls[0])-1].Content, specialistCall[1].Content)

	sess, found := sessions.Get("s1")
	require.True(t, found)
	assert.Equal(t, "anxiety", sess.ActivePersona)
	// The nurse history does not record the signal turn.
	assert.Len(t, sess.Binding(persona.NurseID).History, 1)
	assert.Len(t, sess.Binding("anxiety").History, 3)
}

func TestSendMessageSpecialistIsSticky(t *testing.T) {
	model := &scriptedLLM{replies: []string{
		"HANDOVER:depression",
		"I'm here with you.",
		"What does a typical day look like?",
	}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "s1", "Everything feels heavy")
	require.NoError(t, err)

	res, err := svc.SendMessage(context.Background(), "s1", "It has been weeks")
	require.NoError(t, err)

	assert.Equal(t, "depression", res.Persona)
	require.Len(t, model.calls, 3)
	// The follow-up turn goes straight to the specialist binding.
	assert.Equal(t, llm.RoleSystem, model.calls[2][0].Role)
	assert.Len(t, model.calls[2], 4)

	sess, _ := sessions.Get("s1")
	assert.Len(t, sess.Binding("depression").History, 5)
}

func TestSendMessageUnknownTopicUsesDefaultProfile(t *testing.T) {
	model := &scriptedLLM{replies: []string{"HANDOVER:grief", "I'm sorry for your loss."}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	res, err := svc.SendMessage(context.Background(), "s1", "I lost someone close to me")
	require.NoError(t, err)

	// The binding is keyed by topic even when the profile falls back.
	assert.Equal(t, "grief", res.Persona)
	sess, _ := sessions.Get("s1")
	require.NotNil(t, sess.Binding("grief"))
	assert.Equal(t,
		persona.NewRegistry().Resolve("grief").Instructions,
		sess.Binding("grief").History[0].Content,
	)
}

func TestSendMessageMalformedSignalIsDialogue(t *testing.T) {
	model := &scriptedLLM{replies: []string{"HANDOVER:anxiety, I believe"}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	res, err := svc.SendMessage(context.Background(), "s1", "hello")
	require.NoError(t, err)

	assert.Equal(t, persona.NurseID, res.Persona)
	assert.Equal(t, "HANDOVER:anxiety, I believe", res.Response)
	require.Len(t, model.calls, 1)

	sess, _ := sessions.Get("s1")
	assert.Equal(t, persona.NurseID, sess.ActivePersona)
}

func TestSendMessageSpecialistHandoverSignalIsAbsorbed(t *testing.T) {
	model := &scriptedLLM{replies: []string{
		"HANDOVER:stress",
		"Let's talk about what's overwhelming you.",
		"HANDOVER:anxiety",
	}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "s1", "Work is crushing me")
	require.NoError(t, err)

	res, err := svc.SendMessage(context.Background(), "s1", "I can't breathe sometimes")
	require.NoError(t, err)

	// No second-level transition: the specialist stays active.
	assert.Equal(t, "stress", res.Persona)
	sess, _ := sessions.Get("s1")
	assert.Equal(t, "stress", sess.ActivePersona)
	assert.Nil(t, sess.Binding("anxiety"))
}

func TestSendMessageCompletionFailureLeavesStateUnchanged(t *testing.T) {
	boom := errors.New("deadline exceeded")
	model := &scriptedLLM{
		replies: []string{"Tell me more.", ""},
		errs:    []error{nil, boom},
	}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)
	before, _ := sessions.Get("s1")
	historyLen := len(before.ActiveBinding().History)

	_, err = svc.SendMessage(context.Background(), "s1", "are you there")
	var ce *dto.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, persona.NurseID, ce.Persona)

	after, _ := sessions.Get("s1")
	assert.Equal(t, persona.NurseID, after.ActivePersona)
	assert.Len(t, after.ActiveBinding().History, historyLen)
}

func TestSendMessageSpecialistFailureDuringHandoverKeepsNurse(t *testing.T) {
	boom := errors.New("upstream 503")
	model := &scriptedLLM{
		replies: []string{"What brings you here?", "HANDOVER:anxiety", ""},
		errs:    []error{nil, nil, boom},
	}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "s1", "hello")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), "s1", "I panic in crowds")
	var ce *dto.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "anxiety", ce.Persona)

	sess, _ := sessions.Get("s1")
	assert.Equal(t, persona.NurseID, sess.ActivePersona)
	assert.Nil(t, sess.Binding("anxiety"))
	// The failed turn is not recorded on the nurse either.
	assert.Len(t, sess.Binding(persona.NurseID).History, 3)
}

func TestSendMessageSessionsAreIsolated(t *testing.T) {
	model := &scriptedLLM{replies: []string{
		"HANDOVER:anxiety",
		"You're safe here.",
		"What's on your mind?",
	}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "alice", "I panic a lot")
	require.NoError(t, err)

	res, err := svc.SendMessage(context.Background(), "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, persona.NurseID, res.Persona)

	aliceSess, _ := sessions.Get("alice")
	bobSess, _ := sessions.Get("bob")
	assert.Equal(t, "anxiety", aliceSess.ActivePersona)
	assert.Equal(t, persona.NurseID, bobSess.ActivePersona)
}

func TestSendMessageAugmentsWithRetrievedExamples(t *testing.T) {
	model := &scriptedLLM{replies: []string{"That sounds difficult."}}
	retriever := &fakeRetriever{examples: []retrieval.Example{
		{UserInput: "I can't sleep", ExpertResponse: "How long?"},
	}}
	svc, _ := newTestTriage(model, retriever)

	_, err := svc.SendMessage(context.Background(), "s1", "I toss and turn all night")
	require.NoError(t, err)

	sent := model.calls[0][len(model.calls[0])-1].Content
	assert.Contains(t, sent, "User: I can't sleep")
	assert.Contains(t, sent, "The user's current message is: I toss and turn all night")
}

func TestSendMessageUsesRawMessageWhenRetrievalEmpty(t *testing.T) {
	model := &scriptedLLM{replies: []string{"Go on."}}
	svc, _ := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "s1", "just the message")
	require.NoError(t, err)

	sent := model.calls[0][len(model.calls[0])-1].Content
	assert.Equal(t, "just the message", sent)
}

func TestSendMessageSurvivesRetrievalPanic(t *testing.T) {
	model := &scriptedLLM{replies: []string{"I'm listening."}}
	svc, _ := newTestTriage(model, &fakeRetriever{panics: true})

	res, err := svc.SendMessage(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "I'm listening.", res.Response)

	sent := model.calls[0][len(model.calls[0])-1].Content
	assert.Equal(t, "hello", sent)
}

func TestSendMessageDefaultsSessionID(t *testing.T) {
	model := &scriptedLLM{replies: []string{"Hi there."}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "", "hello")
	require.NoError(t, err)

	_, found := sessions.Get("user_main")
	assert.True(t, found)
}

func TestInitSessionGeneratesIntro(t *testing.T) {
	model := &scriptedLLM{replies: []string{"Hello, I'm your triage nurse."}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	res, err := svc.InitSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Hello, I'm your triage nurse.", res.Intro)

	sess, found := sessions.Get("s1")
	require.True(t, found)
	assert.Equal(t, persona.NurseID, sess.ActivePersona)
	assert.Len(t, sess.ActiveBinding().History, 3)
}

func TestInitSessionServesCachedIntroOnFailure(t *testing.T) {
	model := &scriptedLLM{
		replies: []string{"Welcome back.", ""},
		errs:    []error{nil, errors.New("quota exhausted")},
	}
	svc, _ := newTestTriage(model, &fakeRetriever{})

	first, err := svc.InitSession(context.Background(), "s1")
	require.NoError(t, err)

	second, err := svc.InitSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, first.Intro, second.Intro)
}

func TestInitSessionFailsWithoutCachedIntro(t *testing.T) {
	model := &scriptedLLM{errs: []error{errors.New("quota exhausted")}}
	svc, _ := newTestTriage(model, &fakeRetriever{})

	_, err := svc.InitSession(context.Background(), "s1")
	var ce *dto.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, persona.NurseID, ce.Persona)
}

func TestInitSessionResetsToNurse(t *testing.T) {
	model := &scriptedLLM{replies: []string{
		"HANDOVER:anxiety",
		"You're in good hands.",
		"Hello again, I'm the triage nurse.",
	}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "s1", "I worry constantly")
	require.NoError(t, err)

	_, err = svc.InitSession(context.Background(), "s1")
	require.NoError(t, err)

	sess, _ := sessions.Get("s1")
	assert.Equal(t, persona.NurseID, sess.ActivePersona)
	assert.Nil(t, sess.Binding("anxiety"))
}

func TestResetSessionForgetsState(t *testing.T) {
	model := &scriptedLLM{replies: []string{"Noted."}}
	svc, sessions := newTestTriage(model, &fakeRetriever{})

	_, err := svc.SendMessage(context.Background(), "s1", "hello")
	require.NoError(t, err)

	require.NoError(t, svc.ResetSession(context.Background(), "s1"))
	_, found := sessions.Get("s1")
	assert.False(t, found)
}

func TestSendMessageTrimsReply(t *testing.T) {
	model := &scriptedLLM{replies: []string{"  a reply with padding \n"}}
	svc, _ := newTestTriage(model, &fakeRetriever{})

	res, err := svc.SendMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "a reply with padding", res.Response)
	assert.False(t, strings.HasSuffix(res.Response, " "))
}
