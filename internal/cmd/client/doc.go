// Package client provides the `kas` command-line client.
//
// The CLI opens an authenticated session on the broker's native TCP
// protocol for every command. It is primarily intended for operators.
//
// # Connection
//
// Every command accepts --addr, --user and --password. They default to
// KAS_ADDR (127.0.0.1:14560), KAS_USER and KAS_PASSWORD.
//
// Usage
//
//	kas queue define ORDERS --threshold 1000 --description "incoming orders"
//	kas queue define SCRATCH --disposition TEMPORARY
//
//	kas queue put ORDERS --text 'hello' --priority 7 --property region=eu
//	kas queue put ORDERS --json '{"sku":"A1","qty":2}'
//	kas queue put ORDERS --entry sku=A1 --entry qty=2
//	kas queue put ORDERS --file ./invoice.pdf
//
//	kas queue get ORDERS --timeout 5s --selector 'properties.region == "eu"'
//	kas queue get ORDERS --count 10
//
//	kas queue query 'ORD.*'
//	kas queue delete ORDERS --force
//
//	kas shutdown
//	echo -n 'secret' | kas passwd --cost 12
//
// Notes
//
//   - get prints each message as JSON. Bytes bodies are base64 encoded.
//   - query lists only the queues the user may read.
//   - non-OK replies are printed with their status, e.g. "DENIED".
package client
