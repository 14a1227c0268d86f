// Package selector compiles CEL expressions that pick messages on get.
//
// Expressions see these variables:
//
//	priority        int     message priority 0..9
//	kind            string  body kind (text, bytes, object, map, stream, empty)
//	id              string  message id
//	correlation_id  string
//	ts_ms           int     producer timestamp in Unix milliseconds
//	text            string  body of text messages, "" otherwise
//	properties      map     property name to value
//	now_ms          int     evaluation time in Unix milliseconds
//
// Example: priority >= 7 && properties.region == "eu"
package selector
