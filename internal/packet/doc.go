// Package packet defines the session protocol records exchanged between a
// client and the broker: one request type per operation and three response
// shapes. Registry binds their type ids for the codec package.
package packet
