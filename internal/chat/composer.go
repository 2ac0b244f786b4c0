// Package chat composes answers: it routes a question through the special
// cases (curriculum widget, teacher lookup), falls back to evidence when no
// model is available, and otherwise prompts the LLM once.
package chat

import (
	"context"
	"strings"

	"github.com/utsbot/uts-chatbot-go/internal/directory"
	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/genai"
	"github.com/utsbot/uts-chatbot-go/internal/intent"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// directoryQuery is the supplementary retrieval used when a teacher lookup
// arrives without directory evidence.
const directoryQuery = "directorio docentes"

// Branch names the composer path that produced an answer.
type Branch string

const (
	BranchWidget             Branch = "widget"
	BranchTeacherSingle      Branch = "teacher_single"
	BranchTeacherMultiple    Branch = "teacher_multiple"
	BranchTeacherNotFound    Branch = "teacher_not_found"
	BranchTeacherNoDirectory Branch = "teacher_no_directory"
	BranchNoEvidence         Branch = "no_evidence"
	BranchEvidence           Branch = "evidence"
	BranchLLM                Branch = "llm"
)

// Retriever is the retrieval dependency of the composer.
type Retriever interface {
	RetrieveTopK(ctx context.Context, q rag.Query) (rag.Result, error)
}

// Options configures a Composer.
type Options struct {
	TopK    int
	Budgets Budgets
	// Mock forces the deterministic evidence answer even with an LLM.
	Mock bool
}

// AnswerInput is everything AnswerLLM needs for one question.
type AnswerInput struct {
	Question string
	Evidence []rag.Chunk
	UserType knowledge.UserType
	Session  *Session
}

// Request is the request-level input of Compose.
type Request struct {
	Question string
	UserType knowledge.UserType
	Session  *Session
}

// Answer is a composed answer. Evidence holds the chunks the answer was
// built from, including supplementary directory chunks.
type Answer struct {
	Text     string
	Branch   Branch
	Evidence []rag.Chunk
	Meta     rag.Meta
}

// Composer turns a question and its evidence into an answer.
type Composer struct {
	retriever Retriever
	llm       genai.TextGenerator
	resolver  *directory.Resolver
	opts      Options
	logger    *logger.Logger
}

// NewComposer creates a composer. llm may be nil, which selects the evidence
// answer for every question that is not a special case.
func NewComposer(retriever Retriever, llm genai.TextGenerator, resolver *directory.Resolver, opts Options, log *logger.Logger) *Composer {
	return &Composer{
		retriever: retriever,
		llm:       llm,
		resolver:  resolver,
		opts:      opts,
		logger:    log.WithModule("chat"),
	}
}

// Compose answers a request end to end. A general curriculum question for a
// session that has not seen the widget is answered without retrieval.
func (c *Composer) Compose(ctx context.Context, req Request) (Answer, error) {
	in := AnswerInput{Question: req.Question, UserType: req.UserType, Session: req.Session}
	if intent.Classify(req.Question).WantsWidget() && !req.Session.WidgetShown() {
		return c.AnswerLLM(ctx, in)
	}

	res, err := c.retriever.RetrieveTopK(ctx, rag.Query{Text: req.Question, UserType: req.UserType, K: c.opts.TopK})
	if err != nil {
		return Answer{}, domerrors.NewWrapper("chat", "retrieve").Wrap(err, "no se pudo consultar la base de conocimientos")
	}
	in.Evidence = res.Chunks

	ans, err := c.AnswerLLM(ctx, in)
	if err != nil {
		return Answer{}, err
	}
	ans.Meta = res.Meta
	return ans, nil
}

// AnswerLLM picks the first applicable path:
//  1. general curriculum question, widget not shown: widget template
//  2. teacher lookup (not a curriculum question): directory templates
//  3. mock mode or no LLM: evidence bullets or the no-information text
//  4. one LLM call with the budgeted prompt; errors propagate
func (c *Composer) AnswerLLM(ctx context.Context, in AnswerInput) (Answer, error) {
	it := intent.Classify(in.Question)

	if it.WantsWidget() && !in.Session.WidgetShown() {
		return Answer{Text: WidgetAnswer, Branch: BranchWidget, Evidence: in.Evidence}, nil
	}

	if it.TeacherSearch && !it.Malla {
		ans, ok, err := c.answerTeacher(ctx, in)
		if err != nil {
			return Answer{}, err
		}
		if ok {
			return ans, nil
		}
	}

	if c.opts.Mock || c.llm == nil {
		return c.answerFromEvidence(in), nil
	}
	return c.answerWithLLM(ctx, in)
}

// answerTeacher runs the directory lookup. ok is false when the query holds
// no name and the caller should fall through.
func (c *Composer) answerTeacher(ctx context.Context, in AnswerInput) (Answer, bool, error) {
	chunks := directoryChunks(in.Evidence)
	if len(chunks) == 0 && c.retriever != nil {
		res, err := c.retriever.RetrieveTopK(ctx, rag.Query{Text: directoryQuery, UserType: in.UserType, K: c.opts.TopK})
		if err != nil {
			return Answer{}, false, domerrors.NewWrapper("chat", "retrieve_directory").Wrap(err, "no se pudo consultar el directorio")
		}
		chunks = directoryChunks(res.Chunks)
	}
	if len(chunks) == 0 {
		return Answer{Text: NoDirectoryAnswer, Branch: BranchTeacherNoDirectory}, true, nil
	}

	blobs := make([]string, len(chunks))
	for i, ch := range chunks {
		blobs[i] = ch.Text
	}
	m := c.resolver.Resolve(in.Question, blobs...)
	log := c.logger.WithField("cleaned_name", m.CleanedName).
		WithField("parsed", m.Parsed).
		WithField("strategy", m.Strategy).
		WithField("tier", m.Tier.String())

	switch {
	case m.CleanedName == "":
		log.DebugContext(ctx, "Teacher query without a name, falling through")
		return Answer{}, false, nil
	case len(m.Records) == 1:
		log.DebugContext(ctx, "Teacher resolved")
		return Answer{Text: teacherAnswer(m.Records[0]), Branch: BranchTeacherSingle, Evidence: chunks}, true, nil
	case len(m.Records) > 1:
		log.WithField("matches", len(m.Records)).DebugContext(ctx, "Teacher query is ambiguous")
		return Answer{Text: teacherChoicesAnswer(m.CleanedName, m.Records), Branch: BranchTeacherMultiple, Evidence: chunks}, true, nil
	default:
		log.DebugContext(ctx, "Teacher not found")
		return Answer{Text: teacherNotFoundAnswer(m.CleanedName), Branch: BranchTeacherNotFound, Evidence: chunks}, true, nil
	}
}

func directoryChunks(chunks []rag.Chunk) []rag.Chunk {
	var out []rag.Chunk
	for _, ch := range chunks {
		if ch.Kind == knowledge.KindDirectory {
			out = append(out, ch)
		}
	}
	return out
}

func (c *Composer) answerFromEvidence(in AnswerInput) Answer {
	if len(in.Evidence) == 0 {
		return Answer{
			Text:     stringutil.Truncate(NoInformationAnswer, c.opts.Budgets.Response),
			Branch:   BranchNoEvidence,
			Evidence: in.Evidence,
		}
	}
	text := evidenceAnswer(in.Evidence, in.Session.HasHistory())
	return Answer{
		Text:     stringutil.Truncate(text, c.opts.Budgets.Response),
		Branch:   BranchEvidence,
		Evidence: in.Evidence,
	}
}

func (c *Composer) answerWithLLM(ctx context.Context, in AnswerInput) (Answer, error) {
	prompt := BuildPrompt(in, c.opts.Budgets)
	text, err := c.llm.Generate(ctx, prompt.String())
	if err != nil {
		return Answer{}, domerrors.NewWrapper("chat", "generate").Wrap(err, "no se pudo generar la respuesta")
	}

	// A model output must never re-trigger the widget.
	text = strings.TrimSpace(strings.ReplaceAll(text, intent.WidgetSentinel, ""))
	return Answer{
		Text:     stringutil.Truncate(text, c.opts.Budgets.Response),
		Branch:   BranchLLM,
		Evidence: in.Evidence,
	}, nil
}
