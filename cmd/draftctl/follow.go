package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/draftline-ai/orchestrator/internal/events"
)

var (
	followTypes       []string
	followLastEventID uint64
)

var followCmd = &cobra.Command{
	Use:   "follow [instance-id]",
	Short: "Tail the live progress stream of an instance",
	Long: `Tail the live progress stream of an instance over WebSocket.

Events already buffered by the worker are replayed first when
--last-event-id is set, then the stream continues live until the
instance publishes its terminal event or the connection drops.`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	followCmd.Flags().StringSliceVar(&followTypes, "types", nil, "event types to show (stage, progress, terminal); default all")
	followCmd.Flags().Uint64Var(&followLastEventID, "last-event-id", 0, "replay buffered events after this sequence number")
	rootCmd.AddCommand(followCmd)
}

func runFollow(cmd *cobra.Command, args []string) error {
	instanceID := args[0]

	q := url.Values{}
	q.Set("instance_id", instanceID)
	if len(followTypes) > 0 {
		q.Set("types", strings.Join(followTypes, ","))
	}
	if followLastEventID > 0 {
		q.Set("last_event_id", strconv.FormatUint(followLastEventID, 10))
	}
	u := url.URL{Scheme: "ws", Host: opsAddr, Path: "/stream/ws", RawQuery: q.Encode()}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.String(), err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		conn.Close()
	}()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}
		printEvent(cmd, ev)
		if ev.Type == events.TypeTerminal {
			return nil
		}
	}
}

func printEvent(cmd *cobra.Command, ev events.Event) {
	line := fmt.Sprintf("[%s] #%d %-8s %s",
		ev.Timestamp.Format("15:04:05"), ev.Seq, ev.Type, ev.Stage)
	if ev.Message != "" {
		line += "  " + ev.Message
	}
	cmd.Println(line)
}
