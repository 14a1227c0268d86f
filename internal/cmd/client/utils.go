package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	transports "github.com/shyifrah/kas/internal/cmd/client/transports"
	"github.com/shyifrah/kas/internal/message"
)

// dial is replaced in tests.
var dial transports.DialFunc = transports.DialBroker

// envDefault returns the environment value for key or def.
func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// addConnFlags registers the broker connection flags on cmd.
func addConnFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("addr", envDefault("KAS_ADDR", "127.0.0.1:14560"), "Broker address (KAS_ADDR)")
	cmd.PersistentFlags().StringP("user", "u", envDefault("KAS_USER", ""), "User name (KAS_USER)")
	cmd.PersistentFlags().String("password", "", "Password (default from KAS_PASSWORD)")
}

// withTransport dials with the command's connection flags, runs fn and
// closes the session.
func withTransport(cmd *cobra.Command, fn func(transports.QueueTransport) error) error {
	addr, _ := cmd.Flags().GetString("addr")
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("KAS_PASSWORD")
	}
	t, err := dial(cmd.Context(), transports.Credentials{Addr: addr, User: user, Password: password})
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()
	return fn(t)
}

// decodedMessage renders a message as a JSON-friendly map.
func decodedMessage(m *message.Message) map[string]any {
	out := map[string]any{
		"id":       m.ID.String(),
		"type":     m.Kind().String(),
		"priority": m.Priority,
	}
	if m.CorrelationID != "" {
		out["correlation_id"] = m.CorrelationID
	}
	if !m.Timestamp.IsZero() {
		out["timestamp"] = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if len(m.Properties) > 0 {
		props := make(map[string]any, len(m.Properties))
		for k, v := range m.Properties {
			props[k] = v.Interface()
		}
		out["properties"] = props
	}
	switch b := m.Body.(type) {
	case *message.TextBody:
		out["text"] = b.Text
	case *message.BytesBody:
		out["bytes_b64"] = base64.StdEncoding.EncodeToString(b.Data)
	case *message.ObjectBody:
		out["object"] = b.Value
	case *message.MapBody:
		entries := make(map[string]any, len(b.Entries))
		for _, e := range b.Entries {
			entries[e.Key] = e.Value.Interface()
		}
		out["map"] = entries
	case *message.StreamBody:
		values := make([]any, 0, len(b.Values))
		for _, v := range b.Values {
			values = append(values, v.Interface())
		}
		out["stream"] = values
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePairs splits repeated key=value flags.
func parsePairs(pairs []string) (map[string]string, []string, error) {
	out := make(map[string]string, len(pairs))
	order := make([]string, 0, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, nil, fmt.Errorf("expected key=value, got %q", p)
		}
		if _, dup := out[k]; !dup {
			order = append(order, k)
		}
		out[k] = v
	}
	return out, order, nil
}
