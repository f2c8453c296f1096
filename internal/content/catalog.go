// ABOUTME: FAQ catalog loaded from TOML, with an embedded default.
// ABOUTME: Provides category and question lookups for the conversation engine.

package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultCatalog []byte

// ErrInvalidCatalog indicates the catalog failed validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Question is one FAQ entry.
type Question struct {
	ID       string `toml:"id" json:"id"`
	Question string `toml:"question" json:"question"`
	Answer   string `toml:"answer" json:"answer"`
}

// Category groups related questions.
type Category struct {
	ID        string     `toml:"id" json:"id"`
	Title     string     `toml:"title" json:"title"`
	Questions []Question `toml:"questions" json:"questions"`
}

// Metadata describes the catalog revision.
type Metadata struct {
	LastUpdated string            `toml:"last_updated" json:"last_updated"`
	Version     string            `toml:"version" json:"version"`
	Contact     map[string]string `toml:"contact" json:"contact,omitempty"`
}

// QuestionRef is a question listed in a category menu.
type QuestionRef struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// Answer is a resolved question.
type Answer struct {
	CategoryID string `json:"category_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

type location struct {
	category int
	question int
}

// Catalog is a validated, read-only FAQ.
type Catalog struct {
	WelcomeText     string     `toml:"welcome"`
	QuestionsPrompt string     `toml:"questions_prompt"`
	HelpText        string     `toml:"help"`
	Metadata        Metadata   `toml:"metadata"`
	Sections        []Category `toml:"categories"`

	categories map[string]int
	questions  map[string]location
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Validate checks ids are present and unique and builds the lookup index.
// Question ids are unique across the whole catalog.
func (c *Catalog) Validate() error {
	if c.WelcomeText == "" {
		return fmt.Errorf("%w: welcome text is required", ErrInvalidCatalog)
	}
	if len(c.Sections) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidCatalog)
	}

	categories := make(map[string]int, len(c.Sections))
	questions := make(map[string]location)
	for ci, cat := range c.Sections {
		id := normalizeID(cat.ID)
		if id == "" {
			return fmt.Errorf("%w: category %d has no id", ErrInvalidCatalog, ci+1)
		}
		if _, dup := categories[id]; dup {
			return fmt.Errorf("%w: duplicate category id %q", ErrInvalidCatalog, cat.ID)
		}
		if len(cat.Questions) == 0 {
			return fmt.Errorf("%w: category %q has no questions", ErrInvalidCatalog, cat.ID)
		}
		categories[id] = ci

		for qi, q := range cat.Questions {
			qid := normalizeID(q.ID)
			if qid == "" {
				return fmt.Errorf("%w: question %d in category %q has no id", ErrInvalidCatalog, qi+1, cat.ID)
			}
			if _, dup := questions[qid]; dup {
				return fmt.Errorf("%w: duplicate question id %q", ErrInvalidCatalog, q.ID)
			}
			if strings.TrimSpace(q.Answer) == "" {
				return fmt.Errorf("%w: question %q has no answer", ErrInvalidCatalog, q.ID)
			}
			questions[qid] = location{category: ci, question: qi}
		}
	}

	if c.HelpText == "" {
		c.HelpText = "Sorry, I did not understand. Pick an option from the list or type \"back\"."
	}
	if c.QuestionsPrompt == "" {
		c.QuestionsPrompt = "Choose a question:"
	}
	c.categories = categories
	c.questions = questions
	return nil
}

// Welcome returns the greeting shown before the category menu.
func (c *Catalog) Welcome() string { return c.WelcomeText }

// Help returns the canned text for unrecognized input.
func (c *Catalog) Help() string { return c.HelpText }

// Prompt returns the heading shown above a question list.
func (c *Catalog) Prompt() string { return c.QuestionsPrompt }

// LastUpdated returns the catalog revision date.
func (c *Catalog) LastUpdated() string { return c.Metadata.LastUpdated }

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.Sections))
	copy(out, c.Sections)
	return out
}

// Category looks up a category by id, case-insensitively.
func (c *Catalog) Category(id string) (Category, bool) {
	i, ok := c.categories[normalizeID(id)]
	if !ok {
		return Category{}, false
	}
	return c.Sections[i], true
}

// CategoryQuestions lists a category's questions. Unknown ids yield nil.
func (c *Catalog) CategoryQuestions(id string) []QuestionRef {
	cat, ok := c.Category(id)
	if !ok {
		return nil
	}
	refs := make([]QuestionRef, len(cat.Questions))
	for i, q := range cat.Questions {
		refs[i] = QuestionRef{ID: q.ID, Question: q.Question}
	}
	return refs
}

// Answer resolves a question id anywhere in the catalog.
func (c *Catalog) Answer(questionID string) (Answer, bool) {
	loc, ok := c.questions[normalizeID(questionID)]
	if !ok {
		return Answer{}, false
	}
	cat := c.Sections[loc.category]
	q := cat.Questions[loc.question]
	return Answer{CategoryID: cat.ID, Question: q.Question, Answer: q.Answer}, true
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
