// Package tui renders a live agent status panel for one conversation.
//
// The panel subscribes to a server's status event websocket and shows one
// card per agent (its status, current task, thought and tool calls), the
// run's progress and a scrolling event log.
package tui
