/*
Package httpserver serves the name registry over HTTP.

Mutations are POST requests whose JSON body is signed by the acting identity (see package api).
The handler recovers the signer, rejects stale or replayed requests, and calls the registry
with the signer as caller. Registry errors map to status codes:

  - interfaces.ErrUnauthorizedCaller: 403
  - interfaces.ErrNameNotExists: 404
  - interfaces.ErrNameAlreadyExists: 409
  - missing, invalid, stale or replayed signature: 401
  - malformed body: 400

# Endpoints

  - POST /api/v1/names/register
  - POST /api/v1/names/register_sub
  - POST /api/v1/names/update_resolver
  - POST /api/v1/names/update_sub_resolver
  - POST /api/v1/names/transfer
  - POST /api/v1/names/renounce
  - POST /api/v1/names/renounce_by_manager
  - POST /api/v1/roles/manager
  - GET /api/v1/names/{name}
  - GET /api/v1/names/{parent}/subs/{sub}
  - GET /api/v1/roles
  - GET /api/v1/events - websocket stream of events.Envelope messages
  - GET /livez, /readyz, /drain, /undrain
  - /debug/* - pprof, when enabled

Metrics are served by a separate listener owned by metrics.MetricsServer.
*/
package httpserver
