// Package prompt assembles the per-agent prompt of a discussion turn. Build is
// pure: the same Input always yields the same text.
package prompt

import (
	"strings"

	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/internal/util"
)

// Section markers. They are stable across rounds so callers and tests can
// detect which parts a prompt contains.
const (
	NameMarker              = "YOUR NAME:"
	ParticipantsMarker      = "PARTICIPANTS:"
	OtherParticipantsMarker = "OTHER PARTICIPANTS:"
	ContextStartMarker      = "--- CONVERSATION CONTEXT ---"
	ContextEndMarker        = "--- END CONTEXT ---"
	PreviousAnswersMarker   = "Final answers to previous questions:"
	RecentHistoryMarker     = "Recent discussion history:"
	FollowUpMarker          = "FOLLOW-UP QUESTION:"
	OriginalMarker          = "MAIN QUESTION:"
	HistoryMarker           = "DISCUSSION HISTORY"
	OwnTurnLabel            = "YOU (your previous answer)"
	OtherTurnLabel          = "OTHER PARTICIPANT"
)

const (
	// contextWindow is the number of trailing context messages rendered.
	contextWindow = 6
	// contextExcerpt is the rune length each context message is cut to.
	contextExcerpt = 200
)

// Input carries everything needed to build one agent prompt.
type Input struct {
	Question   string
	Transcript []core.Message
	Self       core.AgentIdentity
	Round      int
	FollowUp   *core.FollowUpContext
	Roster     []core.Participant
}

var agentTemplate = util.MustParse("agent", `You are a discussion expert. You are discussing the given topic together with other experts. Your goal is not to win the debate but to reach, together with the other participants, the best possible answer to the user's question.

`+NameMarker+` {{.Self}}
{{- if .Others}}
`+ParticipantsMarker+` {{join .Participants ", "}}
`+OtherParticipantsMarker+` {{join .Others ", "}}
{{- end}}
{{- with .Context}}

`+ContextStartMarker+`
{{- if .Answers}}
`+PreviousAnswersMarker+`
{{- range $i, $a := .Answers}}
{{inc $i}}. {{$a}}
{{- end}}
{{- end}}
{{- if .History}}
`+RecentHistoryMarker+`
{{- range .History}}
{{.Name}}: {{.Excerpt}}...
{{- end}}
{{- end}}
`+ContextEndMarker+`
{{- end}}

{{if .FollowUp}}`+FollowUpMarker+`{{else}}`+OriginalMarker+`{{end}} {{.Question}}
{{- if .History}}

`+HistoryMarker+` (round {{.Round}}):
{{- range $i, $e := .History}}
{{inc $i}}. {{$e.Label}}: {{$e.Body}}
{{- end}}
---

Review the discussion history above carefully. Weigh the views presented and state your own position.
{{- end}}

Please present your answer in detail within these rules.
`)

type historyEntry struct {
	Label string
	Body  string
}

type contextEntry struct {
	Name    string
	Excerpt string
}

type contextData struct {
	Answers []string
	History []contextEntry
}

type templateData struct {
	Self         string
	Participants []string
	Others       []string
	Context      *contextData
	FollowUp     bool
	Question     string
	Round        int
	History      []historyEntry
}

// Build renders the prompt for one agent turn.
func Build(in Input) (string, error) {
	data := templateData{
		Self:     in.Self.DisplayName,
		FollowUp: in.FollowUp.IsFollowUp(),
		Question: in.Question,
		Round:    in.Round,
		History:  formatTranscript(in.Transcript, in.Self.DisplayName),
	}
	data.Participants, data.Others = formatRoster(in.Roster, in.Self.DisplayName)
	if in.FollowUp != nil {
		data.Context = formatContext(in.FollowUp)
	}
	return util.Execute(agentTemplate, data)
}

// formatTranscript renders each message as "name: content" and labels it by
// whether the leading name matches the agent's own display name. The label
// replaces the name in the output.
func formatTranscript(transcript []core.Message, self string) []historyEntry {
	entries := make([]historyEntry, 0, len(transcript))
	for _, m := range transcript {
		line := m.AgentName + ": " + m.Content
		label := OtherTurnLabel
		if self != "" && strings.HasPrefix(line, self+":") {
			label = OwnTurnLabel
		}
		body := line
		if i := strings.Index(line, ":"); i >= 0 {
			body = line[i+1:]
		}
		entries = append(entries, historyEntry{Label: label, Body: strings.TrimSpace(body)})
	}
	return entries
}

// formatRoster returns the enabled participant names and the same list
// without self. Both are empty when nobody else takes part.
func formatRoster(roster []core.Participant, self string) ([]string, []string) {
	var all, others []string
	for _, p := range core.EnabledParticipants(roster) {
		name := p.Identity().DisplayName
		all = append(all, name)
		if name != self {
			others = append(others, name)
		}
	}
	if len(others) == 0 {
		return nil, nil
	}
	return all, others
}

func formatContext(fc *core.FollowUpContext) *contextData {
	cd := &contextData{Answers: fc.PreviousAnswers}
	recent := fc.RecentMessages
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}
	for _, m := range recent {
		excerpt := []rune(m.Content)
		if len(excerpt) > contextExcerpt {
			excerpt = excerpt[:contextExcerpt]
		}
		cd.History = append(cd.History, contextEntry{Name: m.AgentName, Excerpt: string(excerpt)})
	}
	return cd
}
