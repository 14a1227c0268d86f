// Package session runs one client connection: authenticate, then loop
// receive, authorize, dispatch and respond until the peer leaves, the
// connection idles out, or a framing error makes the stream untrustworthy.
//
// Every request is authorized through the access manager before it touches
// the queue registry. A denial is a normal response (DENIED); a required
// level the class does not support is reported as MISCONFIGURED and logged
// at error level.
package session
