// Package assistant_tools exposes the email assistant to MCP clients.
//
// Session tools (assistant_status, assistant_login, assistant_logout) drive
// the session store. Conversation tools (assistant_chat, assistant_history,
// assistant_reset) drive the conversation store, so an agent talks to the
// assistant through the same exchange protocol as the interactive shell.
// Mailbox tools call the backend directly; the ones that send or discard mail
// are only registered when the server is started with --yolo.
package assistant_tools
