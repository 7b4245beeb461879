// Package participant provides the identity codec for chat participants.
//
// Tokens:
//
//	"model::gpt-4o"     -> Ref{Kind: Model, Value: "gpt-4o"}
//	"assistant::helper" -> Ref{Kind: Assistant, Value: "helper"}
//	"helper"            -> Ref{Kind: Assistant, Value: "helper"} (legacy form)
//
// Ref.Token is the inverse of Parse: Parse(ref.Token()) == ref for every
// valid ref.
package participant
