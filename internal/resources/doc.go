// Package resources provides MCP resources for exposing session and
// conversation data. Resources are read-only data sources that MCP clients
// can fetch without calling a tool:
//
//   - user://profile: who is signed in, or why nobody is
//   - conversation://transcript: the current conversation log
//   - conversation://latest-emails: emails from the most recent answer that listed any
package resources
