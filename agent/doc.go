// Package agent implements the agent capability: one participant of a
// discussion that turns a discussion turn into text.
//
// A Capability is looked up by its stable backend id through a Registry and
// invoked once per turn. The model selection for a turn travels with the
// call (Turn.Identity.Model), so a single capability instance can serve many
// concurrent discussions.
//
// Agent is the concrete Capability wrapping a model.Model:
//
//	a := agent.New("openai", openaimodel.NewModel(), agent.WithDefaults("openai"))
//	res, err := a.Generate(ctx, agent.Turn{Identity: id, Question: "...", Round: 1})
package agent
