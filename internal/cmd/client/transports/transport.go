// Package transports abstracts how CLI commands reach a broker so commands
// can be exercised against a stub.
package transports

import (
	"context"

	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/pkg/client"
)

// Credentials locate and authenticate against a broker.
type Credentials struct {
	Addr     string
	User     string
	Password string
}

// QueueTransport is the set of broker operations the CLI issues.
type QueueTransport interface {
	DefineQueue(ctx context.Context, spec client.QueueSpec) error
	DeleteQueue(ctx context.Context, name string, force bool) error
	Put(ctx context.Context, queue string, m *message.Message) error
	Get(ctx context.Context, queue string, opts client.GetOptions) (*message.Message, error)
	QueryQueues(ctx context.Context, pattern string) ([]client.QueueInfo, error)
	Shutdown(ctx context.Context) error
	Close() error
}

// DialFunc opens a transport.
type DialFunc func(ctx context.Context, creds Credentials) (QueueTransport, error)
