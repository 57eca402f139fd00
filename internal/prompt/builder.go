package prompt

import (
	"strings"

	"helpdesk/internal/domain"
)

const (
	ContextPlaceholder  = "{context}"
	QuestionPlaceholder = "{question}"

	// Separator joins chunk texts inside the context block.
	Separator = "\n\n"
)

// DefaultTemplate is the help desk prompt.
const DefaultTemplate = `Given this text extracts:
-----
{context}
-----
Please answer the following question:
Question: {question}
Helpful Answer:
`

// Builder renders retrieved context and a question into a prompt.
type Builder struct {
	template string
}

// NewBuilder validates that the template carries both placeholders.
func NewBuilder(template string) (*Builder, error) {
	if !strings.Contains(template, ContextPlaceholder) {
		return nil, domain.TemplateError("template is missing " + ContextPlaceholder)
	}
	if !strings.Contains(template, QuestionPlaceholder) {
		return nil, domain.TemplateError("template is missing " + QuestionPlaceholder)
	}
	return &Builder{template: template}, nil
}

// Template returns the raw template text.
func (b *Builder) Template() string { return b.template }

// Build joins chunk texts in retrieval order and substitutes both placeholders
// in a single pass, so placeholder-like text inside chunks or the question is
// inserted verbatim.
func (b *Builder) Build(chunks []domain.Chunk, question string) (string, error) {
	if b == nil || b.template == "" {
		return "", domain.TemplateError("no template configured")
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	r := strings.NewReplacer(
		ContextPlaceholder, strings.Join(texts, Separator),
		QuestionPlaceholder, question,
	)
	return r.Replace(b.template), nil
}
