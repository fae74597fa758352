// Package client is the request gateway of the ticketdesk client: the single
// choke point for calls to the backing REST API.
//
// # Overview
//
// HTTPClient attaches the persisted bearer credential to every request and
// intercepts failed responses independently of the caller:
//
//   - 401: the credential is deleted, subscribers registered with
//     OnUnauthorized are told the session is over, the user is sent to the
//     login entry point and a single session-expired alert is shown.
//   - 403: a permission-denied alert.
//   - 5xx: a generic server-error alert.
//   - no response: a generic network-error alert.
//
// The error is always returned to the caller as well. Requests made with a
// context derived from Quiet skip interception entirely; the session layer
// uses it for credential validation and the login exchange, where it raises
// its own alerts.
//
// # Error Handling
//
// Failed responses are *StatusError values matching ErrUnauthorized,
// ErrForbidden and ErrServer via errors.Is. Transport failures wrap
// ErrUnavailable.
//
// The package also bootstraps the local SQLite database (InitDatabase,
// RunMigrations) that holds the persisted credential.
package client
