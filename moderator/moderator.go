// Package moderator turns a finished discussion transcript into one final
// answer with a single call to a selectable backend.
package moderator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/internal/util"
	"github.com/hupe1980/agentpanel/logging"
	"github.com/hupe1980/agentpanel/model"
)

const (
	// DefaultBackend is used when no moderator is selected.
	DefaultBackend = "openai"
	// DefaultModel is used together with DefaultBackend.
	DefaultModel = "gpt-4o"

	// ReasoningCompleted labels a successful synthesis.
	ReasoningCompleted = "Discussion completed, final answer generated"
	// ReasoningFailed labels a failed synthesis.
	ReasoningFailed = "Moderator analysis failed"
)

// Result is the outcome of a synthesis. OK is false when no answer exists.
type Result struct {
	FinalAnswer string
	Reasoning   string
	OK          bool
	Backend     string
	Model       string
}

// Options configures a Synthesizer.
type Options struct {
	DefaultBackend string
	DefaultModel   string
	Temperature    float64
	Logger         logging.Logger
}

// Synthesizer produces final answers.
type Synthesizer struct {
	models *model.Registry
	opts   Options
}

// New creates a Synthesizer dispatching to the models in reg.
func New(reg *model.Registry, optFns ...func(o *Options)) *Synthesizer {
	opts := Options{
		DefaultBackend: DefaultBackend,
		DefaultModel:   DefaultModel,
		Temperature:    0.3,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Synthesizer{models: reg, opts: opts}
}

var synthesisTemplate = util.MustParse("synthesis", `You are an AI assistant. The user asked a question and a group of AI models debated the answer. Answer the question using the outcome of that debate.

IMPORTANT:
- Base your answer on the outcome of the debate, not on your own opinion.
- Answer as if the user asked you directly. The user never sees the debate.
- Do not mention the debate, its participants, or terms like "consensus" or "agreed arguments".
- Do not mention the models that took part.
- Be detailed and explanatory.

QUESTION:
{{.Question}}

DISCUSSION HISTORY:
{{.Digest}}

YOUR TASK:
- Analyze the history above.
- Give a comprehensive, balanced answer to the question.
- Reflect common ground and differences.
- Include practical outcomes and recommendations.
`)

// Digest renders the transcript grouped by round in ascending round order:
// "Round N:\n  name: content" blocks separated by a blank line.
func Digest(transcript []core.Message) string {
	byRound := make(map[int][]core.Message)
	for _, m := range transcript {
		byRound[m.Round] = append(byRound[m.Round], m)
	}
	rounds := make([]int, 0, len(byRound))
	for r := range byRound {
		rounds = append(rounds, r)
	}
	sort.Ints(rounds)

	blocks := make([]string, 0, len(rounds))
	for _, r := range rounds {
		var b strings.Builder
		fmt.Fprintf(&b, "Round %d:", r)
		for _, m := range byRound[r] {
			fmt.Fprintf(&b, "\n  %s: %s", m.AgentName, m.Content)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Prompt renders the synthesis prompt.
func Prompt(question string, transcript []core.Message) (string, error) {
	return util.Execute(synthesisTemplate, map[string]any{
		"Question": question,
		"Digest":   Digest(transcript),
	})
}

// Synthesize issues exactly one non-streaming call to the selected backend,
// or the default backend when selection is nil. It never returns an error;
// failures are reported through Result.OK.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, transcript []core.Message, selection *core.Participant) Result {
	backend, modelID := s.opts.DefaultBackend, s.opts.DefaultModel
	if selection != nil && selection.ID != "" {
		backend, modelID = selection.ID, selection.SelectedModel
	}
	res := Result{Reasoning: ReasoningFailed, Backend: backend, Model: modelID}

	llm, ok := s.models.Get(backend)
	if !ok {
		s.opts.Logger.Warn("moderator backend not registered", "backend", backend)
		return res
	}

	text, err := Prompt(question, transcript)
	if err != nil {
		s.opts.Logger.Error("moderator prompt failed", "error", err)
		return res
	}

	temperature := s.opts.Temperature
	resp, err := model.Collect(ctx, llm, model.Request{
		Prompt:      text,
		Model:       modelID,
		Temperature: &temperature,
	}, nil)
	if err != nil {
		s.opts.Logger.Warn("moderator call failed", "error", core.NewBackendError(backend, modelID, err))
		return res
	}

	res.FinalAnswer = resp.Text
	res.Reasoning = ReasoningCompleted
	res.OK = true
	return res
}
