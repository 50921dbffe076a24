package docproto

import (
	"fmt"
	"strings"

	"github.com/tidwall/redcon"

	"github.com/cortexkv/crdtdoc/internal/wire"
)

// Server speaks a small redcon command set over a Hub: PUSHPULL pushes a
// wire-encoded change pack and gets one back, GET fetches a bootstrap
// snapshot pack, REMOVE tombstones a document. Grounded on the teacher's
// network/redis.go command dispatch, trading Redis's string/bulk
// commands for the three a change-pack relay actually needs.
type Server struct {
	hub *Hub
}

// NewServer wraps an existing Hub.
func NewServer(hub *Hub) *Server {
	return &Server{hub: hub}
}

// ListenAndServe blocks serving the docproto command set on addr.
func (s *Server) ListenAndServe(addr string) error {
	return redcon.ListenAndServe(addr, s.handleCommand, s.handleConnect, s.handleDisconnect)
}

func (s *Server) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		conn.WriteError("ERR empty command")
		return
	}

	switch strings.ToUpper(string(cmd.Args[0])) {
	case "PUSHPULL":
		s.handlePushPull(conn, cmd)
	case "GET":
		s.handleGet(conn, cmd)
	case "REMOVE":
		s.handleRemove(conn, cmd)
	case "PING":
		conn.WriteString("PONG")
	default:
		conn.WriteError("ERR unknown command '" + string(cmd.Args[0]) + "'")
	}
}

func (s *Server) handlePushPull(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) != 3 {
		conn.WriteError("ERR wrong number of arguments for 'pushpull' command")
		return
	}
	documentKey := string(cmd.Args[1])
	packBytes := cmd.Args[2]

	incoming, err := wire.UnmarshalChangePack(packBytes)
	if err != nil {
		conn.WriteError(fmt.Sprintf("ERR malformed pack: %v", err))
		return
	}

	resp, err := s.hub.PushPull(documentKey, incoming)
	if err != nil {
		conn.WriteError(fmt.Sprintf("ERR %v", err))
		return
	}

	out, err := wire.MarshalChangePack(resp)
	if err != nil {
		conn.WriteError(fmt.Sprintf("ERR encode response: %v", err))
		return
	}
	conn.WriteBulk(out)
}

func (s *Server) handleGet(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) != 2 {
		conn.WriteError("ERR wrong number of arguments for 'get' command")
		return
	}
	documentKey := string(cmd.Args[1])

	pack, err := s.hub.Get(documentKey)
	if err != nil {
		conn.WriteError(fmt.Sprintf("ERR %v", err))
		return
	}
	out, err := wire.MarshalChangePack(pack)
	if err != nil {
		conn.WriteError(fmt.Sprintf("ERR encode response: %v", err))
		return
	}
	conn.WriteBulk(out)
}

func (s *Server) handleRemove(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) != 2 {
		conn.WriteError("ERR wrong number of arguments for 'remove' command")
		return
	}
	documentKey := string(cmd.Args[1])

	if err := s.hub.Remove(documentKey); err != nil {
		conn.WriteError(fmt.Sprintf("ERR %v", err))
		return
	}
	conn.WriteString("OK")
}

func (s *Server) handleConnect(conn redcon.Conn) bool {
	return true
}

func (s *Server) handleDisconnect(conn redcon.Conn, err error) {}
