// Package api groups the HTTP surface of ToolHub.
//
// The REST API manages API tool providers per tenant:
//   - Provider CRUD under /api/v1/tools/providers
//   - Tool listing per provider
//   - Live credential test previews
//   - Remote schema retrieval
//   - Health monitoring (/health, /healthz, /ready)
//
// Most endpoints require a tenant identity, carried on the request
// context by the authentication middleware. Responses use a uniform
// envelope (success + data + error + timestamp); see the handlers
// package.
package api
