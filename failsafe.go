package carburetor

import (
	log "github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// time for the control loops to apply neutral before the process goes away
const shutdownGrace = 10 * time.Millisecond

// to allow testing
var (
	exit  = os.Exit
	sleep = time.Sleep
)

// FailSafe drives both channels to neutral when the process is told to stop.
// It holds nothing but the queue senders.
type FailSafe struct {
	senders [channelCount]SpeedSender
}

func NewFailSafe(senders [channelCount]SpeedSender) *FailSafe {
	return &FailSafe{senders: senders}
}

// Watch installs the handler for SIGINT and SIGTERM.
func (f *FailSafe) Watch() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		f.shutdown(<-sigs)
	}()
}

func (f *FailSafe) shutdown(sig os.Signal) {
	log.WithField("signal", sig).Info("caught signal, cleaning up")
	for _, sender := range f.senders {
		sender.Send(Neutral)
	}
	sleep(shutdownGrace)
	log.Info("bye!")
	exit(0)
}
