// Package broker exposes the KAS session protocol over TCP. Each accepted
// connection is framed with the packet codec and handed to a session
// handler on its own goroutine. Cancelling the serve context stops
// accepting, cancels every session and waits for them to finish.
package broker
