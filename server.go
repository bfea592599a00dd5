package carburetor

import (
	"fmt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"io"
	"net"
	"time"
)

var acceptRetrySleep = 100 * time.Millisecond

// Server reads instruction frames from one connection at a time and routes
// motor commands to the channel queues.
//
// Connections are served strictly one after another and without read or
// write deadlines, so a stalled client holds off every other client until it
// disconnects.
type Server struct {
	senders [channelCount]SpeedSender
	stats   SystemStats
	battery BatteryGauge

	connections int
}

func NewServer(senders [channelCount]SpeedSender, stats SystemStats, battery BatteryGauge) *Server {
	if battery == nil {
		battery = noBattery{}
	}
	return &Server{
		senders: senders,
		stats:   stats,
		battery: battery,
	}
}

// Serve accepts connections until ln is closed.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithField("err", err).Error("unable to accept connection")
			time.Sleep(acceptRetrySleep)
			continue
		}
		s.handleConn(conn)
		log.Info("still listening")
	}
}

func (s *Server) handleConn(conn net.Conn) {
	n := s.connections
	s.connections++
	logger := log.WithField("conn", n).WithField("peer", conn.RemoteAddr())
	logger.WithField("local", conn.LocalAddr()).Info("received connection")

	err := s.serveConn(conn, logger)
	if closeErr := conn.Close(); closeErr != nil {
		logger.WithField("err", closeErr).Warn("unable to close connection")
	}
	if err != nil {
		logger.WithField("err", err).Error("connection aborted")
	}

	logger.Info("connection closed, resetting motors to neutral")
	s.neutral()
}

// serveConn returns nil when the client closes the connection.
func (s *Server) serveConn(conn io.ReadWriter, logger *log.Entry) error {
	var buf MessageBytes
	for {
		if _, err := io.ReadFull(conn, buf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return errors.Wrap(err, "unable to read frame")
		}
		logger.WithField("frame", buf).Debug("received message")

		instr, ok := Decode(buf)
		if !ok {
			logger.WithField("frame", buf).Error("invalid message")
			if _, err := fmt.Fprintf(conn, "Invalid message: %v\n", buf); err != nil {
				return errors.Wrap(err, "unable to write reply")
			}
			continue
		}

		if err := s.dispatch(conn, instr, logger); err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(w io.Writer, instr Instruction, logger *log.Entry) error {
	if instr.Kind == KindMotor {
		if int(instr.Channel) >= len(s.senders) || s.senders[instr.Channel] == nil {
			logger.WithField("channel", instr.Channel).Error("instruction channel does not exist")
			return nil
		}
		s.senders[instr.Channel].Send(instr.Speed)
		return nil
	}

	line, err := s.status(instr.Kind)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return errors.Wrap(err, "unable to write reply")
	}
	logger.WithField("kind", instr.Kind).Debug("reported status")
	return nil
}

func (s *Server) neutral() {
	for _, sender := range s.senders {
		if sender != nil {
			sender.Send(Neutral)
		}
	}
}
