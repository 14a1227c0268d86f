package client

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	transports "github.com/shyifrah/kas/internal/cmd/client/transports"
	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/pkg/client"
)

// NewQueueCommand constructs the `queue` command group and subcommands.
func NewQueueCommand() *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Queue operations"}
	addConnFlags(queueCmd)
	queueCmd.AddCommand(
		newQueueDefineCommand(),
		newQueueDeleteCommand(),
		newQueuePutCommand(),
		newQueueGetCommand(),
		newQueueQueryCommand(),
	)
	return queueCmd
}

func newQueueDefineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "define NAME",
		Short: "Define a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, _ := cmd.Flags().GetString("description")
			threshold, _ := cmd.Flags().GetInt("threshold")
			disp, _ := cmd.Flags().GetString("disposition")
			return withTransport(cmd, func(t transports.QueueTransport) error {
				err := t.DefineQueue(cmd.Context(), client.QueueSpec{
					Name:        args[0],
					Description: desc,
					Threshold:   threshold,
					Disposition: disp,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue %s defined\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().String("description", "", "Free-form description")
	cmd.Flags().Int("threshold", 0, "Maximum messages before the queue suspends (0 = unlimited)")
	cmd.Flags().String("disposition", "PERMANENT", "PERMANENT or TEMPORARY")
	return cmd
}

func newQueueDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return withTransport(cmd, func(t transports.QueueTransport) error {
				if err := t.DeleteQueue(cmd.Context(), args[0], force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue %s deleted\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().Bool("force", false, "Delete even if the queue holds messages")
	return cmd
}

func newQueuePutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put QUEUE",
		Short: "Put one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := messageFromFlags(cmd)
			if err != nil {
				return err
			}
			return withTransport(cmd, func(t transports.QueueTransport) error {
				if err := t.Put(cmd.Context(), args[0], m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "status: OK id: %s\n", m.ID)
				return nil
			})
		},
	}
	cmd.Flags().String("text", "", "Text body")
	cmd.Flags().String("file", "", "Read a bytes body from this file")
	cmd.Flags().String("json", "", "Object body given as JSON")
	cmd.Flags().StringArray("entry", nil, "Map body entry key=value (repeatable)")
	cmd.Flags().StringArray("property", nil, "String property key=value (repeatable)")
	cmd.Flags().Int("priority", message.DefaultPriority, "Priority 0..9")
	cmd.Flags().String("correlation-id", "", "Correlation id")
	return cmd
}

// messageFromFlags builds the message described by the put flags. At most
// one body flag may be set; none yields an empty message.
func messageFromFlags(cmd *cobra.Command) (*message.Message, error) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")
	obj, _ := cmd.Flags().GetString("json")
	entries, _ := cmd.Flags().GetStringArray("entry")
	props, _ := cmd.Flags().GetStringArray("property")
	prio, _ := cmd.Flags().GetInt("priority")
	corr, _ := cmd.Flags().GetString("correlation-id")

	set := 0
	for _, changed := range []bool{cmd.Flags().Changed("text"), file != "", obj != "", len(entries) > 0} {
		if changed {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("use only one of --text, --file, --json, --entry")
	}

	var m *message.Message
	switch {
	case cmd.Flags().Changed("text"):
		m = message.NewText(text)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		m = message.NewBytes(b)
	case obj != "":
		var v any
		if err := json.Unmarshal([]byte(obj), &v); err != nil {
			return nil, fmt.Errorf("invalid --json: %w", err)
		}
		m = message.NewObject(v)
	case len(entries) > 0:
		kv, order, err := parsePairs(entries)
		if err != nil {
			return nil, err
		}
		m = message.NewMap()
		body := m.Body.(*message.MapBody)
		for _, k := range order {
			body.Set(k, message.String(kv[k]))
		}
	default:
		m = message.New(nil)
	}
	m.Priority = prio
	m.CorrelationID = corr
	kv, _, err := parsePairs(props)
	if err != nil {
		return nil, err
	}
	for k, v := range kv {
		m.SetProperty(k, message.String(v))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func newQueueGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get QUEUE",
		Short: "Get messages, printing each as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			poll, _ := cmd.Flags().GetDuration("poll")
			sel, _ := cmd.Flags().GetString("selector")
			count, _ := cmd.Flags().GetInt("count")
			if count <= 0 {
				count = 1
			}
			return withTransport(cmd, func(t transports.QueueTransport) error {
				for i := 0; i < count; i++ {
					m, err := t.Get(cmd.Context(), args[0], client.GetOptions{Timeout: timeout, Poll: poll, Selector: sel})
					if err != nil {
						return err
					}
					if m == nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "no message")
						return nil
					}
					if err := printJSON(cmd.OutOrStdout(), decodedMessage(m)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Duration("timeout", 0, "How long to wait for a message (0 = do not wait)")
	cmd.Flags().Duration("poll", 0, "Server-side re-check interval (0 = server default)")
	cmd.Flags().String("selector", "", "CEL selector, e.g. 'priority > 5'")
	cmd.Flags().Int("count", 1, "Number of messages to get")
	return cmd
}

func newQueueQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [PATTERN]",
		Short: "List queues matching a pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			return withTransport(cmd, func(t transports.QueueTransport) error {
				infos, err := t.QueryQueues(cmd.Context(), pattern)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), infos)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSIZE\tTHRESHOLD\tDISPOSITION\tSTATE\tDESCRIPTION")
				for _, q := range infos {
					state := "ACTIVE"
					if q.Suspended {
						state = "SUSPENDED"
					}
					fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n", q.Name, q.Size, q.Threshold, q.Disposition, state, q.Description)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}
