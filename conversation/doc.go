// Package conversation stores conversations: ordered groups of discussions
// whose final answers feed follow-up questions.
//
// InMemoryStore is the default core.ConversationStore. The redis subpackage
// provides a shared store for multi-instance deployments. Export and Import
// move all conversations of a store through a JSON document.
package conversation
