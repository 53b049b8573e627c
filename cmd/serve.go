package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jzelinskie/cobrautil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/costap/threaded/internal/pkg/processor"
	"github.com/costap/threaded/internal/pkg/protocol"
	"github.com/costap/threaded/internal/pkg/server"
	"github.com/costap/threaded/internal/pkg/transport"
)

var (
	listenAddr   = ":9090"
	maxFrameSize = protocol.DefaultMaxFrameSize
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the framed echo server",
	Long: `Listens for TCP connections and services each one on a dedicated
goroutine, echoing every framed message back to the sender.`,
	Run: serveRun,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", listenAddr, "address to listen on")
	serveCmd.Flags().IntVar(&maxFrameSize, "max-frame-size", maxFrameSize, "maximum accepted frame size in bytes")
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("max-frame-size", serveCmd.Flags().Lookup("max-frame-size"))
}

func serveRun(cmd *cobra.Command, args []string) {
	logger := newZapLogger(cobrautil.MustGetBool(cmd, "debug"))
	logger.Info("Server is starting...", zap.String("Version", GetVersion(false)))

	addr := viper.GetString("listen")
	frameSize := viper.GetInt("max-frame-size")

	st := transport.NewServerSocket(addr)
	srv := server.New(logger, st, processor.NewEcho(logger),
		server.WithProtocolFactories(
			protocol.FramedFactory{MaxFrameSize: frameSize},
			protocol.FramedFactory{MaxFrameSize: frameSize},
		),
		server.WithEventHandler(&loggingEvents{logger: logger, st: st}),
	)

	done := make(chan struct{})
	go func() {
		srv.Serve()
		close(done)
	}()

	// Wait for the process to be shutdown.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("Server is stopping...")
	srv.Stop()
	<-done
	logger.Info("Server stopped")
}

type loggingEvents struct {
	logger *zap.Logger
	st     *transport.ServerSocket
}

func (e *loggingEvents) PreServe() {
	e.logger.Info("Server is running...", zap.Stringer("address", e.st.Addr()))
}

func (e *loggingEvents) ConnBegin(in, out protocol.Protocol) {
	e.logger.Debug("connection opened")
}

func (e *loggingEvents) ConnEnd(in, out protocol.Protocol) {
	e.logger.Debug("connection closed")
}
