package core

import (
	"fmt"
	"strings"
)

type Author string

const (
	AuthorUser       Author = "user"
	AuthorSystem     Author = "system"
	AuthorSupervisor Author = "supervisor"
)

// Message is one immutable entry of the shared conversation.
type Message struct {
	Author  Author `json:"author"`
	Content string `json:"content"`
}

func NewMessage(author Author, content string) Message {
	return Message{Author: author, Content: content}
}

// ToolResult is the observation of a single capability call.
type ToolResult struct {
	ToolName string
	Output   string
}

// WorkerOutput is what a worker reports back after one invocation.
type WorkerOutput struct {
	Messages []Message
	Steps    int
	Trace    []Step
	Stats    Stats
}

// ToChatContents renders the shared history for a model. Worker and
// supervisor messages are presented as attributed user turns so that
// every model sees who said what.
func ToChatContents(history []Message) []ChatContent {
	contents := make([]ChatContent, 0, len(history))
	for _, m := range history {
		switch m.Author {
		case AuthorUser:
			contents = append(contents, NewContent("user", m.Content))
		default:
			contents = append(contents, NewContent("user", fmt.Sprintf("[%s]: %s", m.Author, strings.TrimSpace(m.Content))))
		}
	}
	return contents
}
