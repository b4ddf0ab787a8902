package ipc

import (
	"context"
	"fmt"
	"net"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler answers one request.
type Handler func(Request) Response

// Server accepts IPC connections on a unix socket.
type Server struct {
	path    string
	handler Handler
	log     logrus.FieldLogger
	ln      net.Listener
}

// Listen creates the socket at path, replacing a stale one.
func Listen(path string, handler Handler, log logrus.FieldLogger) (*Server, error) {
	_ = os.Remove(path) // remove stale socket
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return &Server{path: path, handler: handler, log: log, ln: ln}, nil
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	defer os.Remove(s.path)

	s.log.WithField("socket", s.path).Info("listening")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		resp := Response{Error: "invalid request: " + err.Error()}
		if err := json.NewEncoder(conn).Encode(resp); err != nil {
			s.log.WithError(err).Warn("write response")
		}
		return
	}

	s.log.WithField("command", req.Command).Debug("ipc request")
	if err := json.NewEncoder(conn).Encode(s.handler(req)); err != nil {
		s.log.WithError(err).Warn("write response")
	}
}

// Call sends one request to the daemon listening at path.
func Call(path string, req Request) (Response, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Response{}, fmt.Errorf("connect to daemon: %w (is `sonyctl daemon` running?)", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
