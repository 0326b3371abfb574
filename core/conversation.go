package core

import "slices"

// Conversation is the append-only message history of a single run.
// It is owned by the graph; every other component only sees copies
// returned by View.
type Conversation struct {
	messages []Message
}

func NewConversation(seed ...Message) *Conversation {
	return &Conversation{messages: slices.Clone(seed)}
}

// Append adds messages at the end of the history, preserving their order.
func (c *Conversation) Append(messages ...Message) {
	c.messages = append(c.messages, messages...)
}

// View returns a copy of the history in causal order.
func (c *Conversation) View() []Message {
	return slices.Clone(c.messages)
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message, if any.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
