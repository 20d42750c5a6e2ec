// Package textline accepts the plain text order protocol over TCP, one
// instruction per line ("BUY LIMIT 100 50", "CANCEL 7", ...). It is glue
// only: every line goes straight to the engine's Sequencer stage.
package textline

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"

	"vela/service"
)

type Server struct {
	engine *service.Engine
	ln     net.Listener
}

func Listen(addr string, engine *service.Engine) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{engine: engine, ln: ln}, nil
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until the listener is closed or ctx is done.
func (s *Server) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[textline] accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		s.engine.Submit(line)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("[textline] read: %v", err)
	}
}

func (s *Server) Close() error {
	return s.ln.Close()
}
