// Package api defines the voxgate request and response envelopes and the
// structured error taxonomy shared by the dispatcher and the HTTP transport.
//
// Every call carries a single "input" object. The action field selects
// between synthesis (the default), health, generate_token, and list_engines.
// Every failure is returned as a structured error envelope; no unstructured
// errors cross the API boundary.
package api
