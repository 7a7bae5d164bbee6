// Package litterrobot talks to the Litter-Robot cloud API.
//
// The package is layered:
//
//	Client          one HTTP request per call, errors classified
//	SessionManager  login once, reuse the session from the Store
//	Source          cached device reads and command dispatch
//	Translate       Command -> dispatch wire string ("<P1", "<W7", ...)
//
// Session and device state live in one Store whose entries expire
// independently. A Store belongs to one bridge run and is injected into the
// SessionManager and Source that share it.
//
// Errors match one of ErrTransport, ErrProtocol, ErrDecode, ErrNotFound or
// ErrAuth via errors.Is. A 401/403 additionally matches ErrUnauthorized and
// causes the cached session to be dropped, so the next call logs in again.
package litterrobot
