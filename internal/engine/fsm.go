// ABOUTME: FAQ conversation state machine: init -> category -> question, with "back".
// ABOUTME: Unknown ids degrade to the catalog's help text; the session stays usable.

package engine

import (
	"fmt"
	"strconv"

	"github.com/2389/chat-relay/internal/platform"
	"github.com/2389/chat-relay/internal/session"
)

// BackCommand returns the user to the category menu from any step.
const BackCommand = "back"

// StepHandler advances s for one normalized input and returns the reply.
// It may change s.Step and s.CurrentCategory.
type StepHandler func(s *session.Session, input string) (platform.Response, error)

// Handle registers h for step, replacing any existing handler.
func (e *Engine) Handle(step session.Step, h StepHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[step] = h
}

func (e *Engine) defaultHandlers() map[session.Step]StepHandler {
	return map[session.Step]StepHandler{
		session.StepInit:     e.handleInit,
		session.StepCategory: e.handleCategory,
		session.StepQuestion: e.handleQuestion,
	}
}

func (e *Engine) step(s *session.Session, input string) (platform.Response, error) {
	if input == BackCommand {
		s.Step = session.StepCategory
		s.CurrentCategory = ""
		return e.categoryMenu(), nil
	}

	e.mu.RLock()
	h, ok := e.handlers[s.Step]
	e.mu.RUnlock()
	if !ok {
		return platform.Response{}, fmt.Errorf("%w %q", ErrNoHandler, s.Step)
	}
	return h(s, input)
}

func (e *Engine) handleInit(s *session.Session, _ string) (platform.Response, error) {
	s.Step = session.StepCategory
	s.CurrentCategory = ""
	return e.categoryMenu(), nil
}

func (e *Engine) handleCategory(s *session.Session, input string) (platform.Response, error) {
	id := e.resolveCategory(input)
	questions := e.content.CategoryQuestions(id)
	if len(questions) == 0 {
		return e.help(e.categoryOptions()), nil
	}

	s.Step = session.StepQuestion
	s.CurrentCategory = id
	return e.questionMenu(id), nil
}

func (e *Engine) handleQuestion(s *session.Session, input string) (platform.Response, error) {
	id := e.resolveQuestion(s.CurrentCategory, input)
	ans, ok := e.content.Answer(id)
	if !ok {
		return e.help(e.questionOptions(s.CurrentCategory)), nil
	}

	return platform.Response{
		Kind:    platform.KindAnswer,
		Text:    ans.Answer,
		Options: e.questionOptions(s.CurrentCategory),
		Metadata: map[string]string{
			"question":    ans.Question,
			"category":    ans.CategoryID,
			"lastUpdated": e.content.LastUpdated(),
		},
	}, nil
}

// failure is the generic reply for a turn the state machine could not handle.
func (e *Engine) failure(s *session.Session) platform.Response {
	resp := e.help(nil)
	resp.Metadata = map[string]string{"error": "internal"}
	if s.Step == session.StepCategory {
		resp.Options = e.categoryOptions()
	}
	return resp
}

func (e *Engine) help(options []platform.Option) platform.Response {
	return platform.Response{
		Kind:    platform.KindError,
		Text:    e.content.Help(),
		Options: options,
	}
}

func (e *Engine) categoryMenu() platform.Response {
	return platform.Response{
		Kind:    platform.KindWelcome,
		Text:    e.content.Welcome(),
		Options: e.categoryOptions(),
	}
}

func (e *Engine) questionMenu(categoryID string) platform.Response {
	return platform.Response{
		Kind:     platform.KindQuestions,
		Text:     e.content.Prompt(),
		Options:  e.questionOptions(categoryID),
		Metadata: map[string]string{"category": categoryID},
	}
}

func (e *Engine) categoryOptions() []platform.Option {
	cats := e.content.Categories()
	opts := make([]platform.Option, len(cats))
	for i, c := range cats {
		opts[i] = platform.Option{ID: c.ID, Title: c.Title}
	}
	return opts
}

// questionOptions lists a category's questions followed by a back option.
func (e *Engine) questionOptions(categoryID string) []platform.Option {
	qs := e.content.CategoryQuestions(categoryID)
	opts := make([]platform.Option, 0, len(qs)+1)
	for _, q := range qs {
		opts = append(opts, platform.Option{ID: q.ID, Title: q.Question})
	}
	return append(opts, platform.Option{ID: BackCommand, Title: "Back"})
}

// resolveCategory maps a 1-based menu index to a category id; any other
// input is taken as an id.
func (e *Engine) resolveCategory(input string) string {
	if n, err := strconv.Atoi(input); err == nil {
		cats := e.content.Categories()
		if n >= 1 && n <= len(cats) {
			return cats[n-1].ID
		}
	}
	return input
}

// resolveQuestion maps a 1-based index within the current category to a
// question id; any other input is taken as an id.
func (e *Engine) resolveQuestion(categoryID, input string) string {
	if n, err := strconv.Atoi(input); err == nil {
		qs := e.content.CategoryQuestions(categoryID)
		if n >= 1 && n <= len(qs) {
			return qs[n-1].ID
		}
	}
	return input
}
