package transports

import (
	"context"

	"github.com/shyifrah/kas/pkg/client"
)

// DialBroker opens an authenticated session over the native protocol.
func DialBroker(ctx context.Context, creds Credentials) (QueueTransport, error) {
	return client.Dial(ctx, creds.Addr, client.Options{
		User:     creds.User,
		Password: creds.Password,
		Client:   "kas-cli",
	})
}
