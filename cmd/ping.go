package cmd

import (
	"fmt"
	"time"

	"github.com/jzelinskie/cobrautil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/costap/threaded/internal/pkg/client"
	"github.com/costap/threaded/internal/pkg/protocol"
)

var (
	serverAddress     = "localhost:9090"
	message           = "ping"
	count             = 1
	clientMaxFrameLen = protocol.DefaultMaxFrameSize
)

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Sends framed messages to a running server and prints the replies",
	RunE:  pingRun,
}

func init() {
	rootCmd.AddCommand(pingCmd)

	pingCmd.Flags().StringVarP(&serverAddress, "server", "s", serverAddress, "server address")
	pingCmd.Flags().StringVarP(&message, "message", "m", message, "message payload to send")
	pingCmd.Flags().IntVarP(&count, "count", "c", count, "number of messages to send")
	pingCmd.Flags().IntVar(&clientMaxFrameLen, "max-frame-size", clientMaxFrameLen, "maximum frame size in bytes")
}

func pingRun(cmd *cobra.Command, args []string) error {
	log := newZapLogger(cobrautil.MustGetBool(cmd, "debug"))

	c := client.New(log, serverAddress)
	c.SetMaxFrameSize(clientMaxFrameLen)
	if err := c.Connect(10 * time.Second); err != nil {
		return fmt.Errorf("cannot connect: %w", err)
	}
	defer c.Close()

	for i := 0; i < count; i++ {
		reply, err := c.Call([]byte(message))
		if err != nil {
			return fmt.Errorf("exchange %d failed: %w", i+1, err)
		}
		log.Debug("received reply", zap.Int("bytes", len(reply)))
		fmt.Println(string(reply))
	}
	return nil
}
