package packet

import (
	"github.com/shyifrah/kas/internal/codec"
	"github.com/shyifrah/kas/internal/message"
)

const (
	TypeAuthRequest         uint16 = 1
	TypeAuthResponse        uint16 = 2
	TypeDefineQueueRequest  uint16 = 10
	TypeDeleteQueueRequest  uint16 = 11
	TypePutRequest          uint16 = 12
	TypeGetRequest          uint16 = 13
	TypeQueryQueuesRequest  uint16 = 14
	TypeShutdownRequest     uint16 = 15
	TypePingRequest         uint16 = 16
	TypeResponse            uint16 = 20
	TypeGetResponse         uint16 = 21
	TypeQueryQueuesResponse uint16 = 22
)

// Disposition travels as its name so both sides stay readable in dumps.
const (
	DispositionTemporary = "TEMPORARY"
	DispositionPermanent = "PERMANENT"
)

// AuthRequest opens a session. It must be the first packet on a connection.
type AuthRequest struct {
	User     string `cbor:"u"`
	Password string `cbor:"p"`
	Client   string `cbor:"c,omitempty"`
}

func (*AuthRequest) TypeID() uint16 { return TypeAuthRequest }

// AuthResponse answers AuthRequest.
type AuthResponse struct {
	Status    Status `cbor:"st"`
	Reason    string `cbor:"r,omitempty"`
	SessionID string `cbor:"sid,omitempty"`
	Server    string `cbor:"srv,omitempty"`
}

func (*AuthResponse) TypeID() uint16 { return TypeAuthResponse }

type DefineQueueRequest struct {
	Name        string `cbor:"n"`
	Description string `cbor:"d,omitempty"`
	Threshold   int    `cbor:"t,omitempty"`
	Disposition string `cbor:"disp,omitempty"`
}

func (*DefineQueueRequest) TypeID() uint16 { return TypeDefineQueueRequest }

type DeleteQueueRequest struct {
	Name  string `cbor:"n"`
	Force bool   `cbor:"f,omitempty"`
}

func (*DeleteQueueRequest) TypeID() uint16 { return TypeDeleteQueueRequest }

type PutRequest struct {
	Queue   string           `cbor:"q"`
	Message *message.Message `cbor:"m"`
}

func (*PutRequest) TypeID() uint16 { return TypePutRequest }

// GetRequest retrieves one message. TimeoutMs zero means do not wait.
// Selector is an optional filter expression.
type GetRequest struct {
	Queue     string `cbor:"q"`
	TimeoutMs int64  `cbor:"t,omitempty"`
	PollMs    int64  `cbor:"p,omitempty"`
	Selector  string `cbor:"s,omitempty"`
}

func (*GetRequest) TypeID() uint16 { return TypeGetRequest }

type QueryQueuesRequest struct {
	Pattern string `cbor:"p,omitempty"`
}

func (*QueryQueuesRequest) TypeID() uint16 { return TypeQueryQueuesRequest }

type ShutdownRequest struct{}

func (*ShutdownRequest) TypeID() uint16 { return TypeShutdownRequest }

type PingRequest struct{}

func (*PingRequest) TypeID() uint16 { return TypePingRequest }

// Response is the generic reply.
type Response struct {
	Status Status `cbor:"st"`
	Reason string `cbor:"r,omitempty"`
}

func (*Response) TypeID() uint16 { return TypeResponse }

// GetResponse carries the retrieved message when Status is OK.
type GetResponse struct {
	Status  Status           `cbor:"st"`
	Reason  string           `cbor:"r,omitempty"`
	Message *message.Message `cbor:"m,omitempty"`
}

func (*GetResponse) TypeID() uint16 { return TypeGetResponse }

// QueueInfo describes one queue in a query result.
type QueueInfo struct {
	Name        string `cbor:"n"`
	Description string `cbor:"d,omitempty"`
	Threshold   int    `cbor:"t,omitempty"`
	Disposition string `cbor:"disp"`
	Size        int    `cbor:"sz"`
	Suspended   bool   `cbor:"sus,omitempty"`
}

type QueryQueuesResponse struct {
	Status Status      `cbor:"st"`
	Reason string      `cbor:"r,omitempty"`
	Queues []QueueInfo `cbor:"qs,omitempty"`
}

func (*QueryQueuesResponse) TypeID() uint16 { return TypeQueryQueuesResponse }

// Registry returns a codec registry holding every packet type.
func Registry() *codec.Registry {
	reg := codec.NewRegistry("packet")
	reg.MustRegister(TypeAuthRequest, func() codec.Record { return &AuthRequest{} })
	reg.MustRegister(TypeAuthResponse, func() codec.Record { return &AuthResponse{} })
	reg.MustRegister(TypeDefineQueueRequest, func() codec.Record { return &DefineQueueRequest{} })
	reg.MustRegister(TypeDeleteQueueRequest, func() codec.Record { return &DeleteQueueRequest{} })
	reg.MustRegister(TypePutRequest, func() codec.Record { return &PutRequest{} })
	reg.MustRegister(TypeGetRequest, func() codec.Record { return &GetRequest{} })
	reg.MustRegister(TypeQueryQueuesRequest, func() codec.Record { return &QueryQueuesRequest{} })
	reg.MustRegister(TypeShutdownRequest, func() codec.Record { return &ShutdownRequest{} })
	reg.MustRegister(TypePingRequest, func() codec.Record { return &PingRequest{} })
	reg.MustRegister(TypeResponse, func() codec.Record { return &Response{} })
	reg.MustRegister(TypeGetResponse, func() codec.Record { return &GetResponse{} })
	reg.MustRegister(TypeQueryQueuesResponse, func() codec.Record { return &QueryQueuesResponse{} })
	return reg
}

// Codec returns a codec over Registry.
func Codec(opts ...codec.Option) *codec.Codec {
	return codec.New(Registry(), opts...)
}
