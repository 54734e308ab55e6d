// Package service is the application layer shared by the MCP server and
// the command line. It validates requests, routes them to the right store
// through the registry and feeds new content to the embedding pipeline.
package service
