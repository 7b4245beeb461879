// Package agent turns participant references into runnable participants.
//
// An assistant is an agent-configured persona: a display name, an
// instruction template, a backing model and a context budget. A raw model
// participant uses the model directly with a generic instruction. The
// Registry resolves participant.Ref values to *Participant and each
// Participant builds the model.Request for its turn from the conversation
// history.
//
// Instructions are Go templates rendered with TemplateData:
//
//	agent.NewInstructionFromText("You are {{.Name}}. Others here: {{join \", \" .Others}}.")
package agent
