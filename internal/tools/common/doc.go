// Package common provides the instrumented handler wrapper and the result
// helpers shared by the MCP tool packages.
package common
