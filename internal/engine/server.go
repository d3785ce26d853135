package engine

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/scenectl/internal/protocol"
	"github.com/danmuck/scenectl/internal/protocol/frame"
	"github.com/danmuck/scenectl/internal/protocol/tlv"
)

type ServerConfig struct {
	ListenAddr string
	Limits     frame.Limits
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":9100",
		Limits:     frame.DefaultLimits(),
	}
}

func (c ServerConfig) WithDefaults() ServerConfig {
	def := DefaultServerConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}

// Server exposes any Engine over the wire protocol. Every connection gets
// its own request loop; the backing engine decides its own locking.
type Server struct {
	cfg ServerConfig
	eng Engine

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

func NewServer(eng Engine, cfg ServerConfig) *Server {
	return &Server{
		cfg:   cfg.WithDefaults(),
		eng:   eng,
		conns: make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("engine server listening")
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connsMu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	log.Debug().Str("remote", remote).Msg("engine client connected")
	defer log.Debug().Str("remote", remote).Msg("engine client disconnected")

	reader := bufio.NewReader(conn)
	for {
		fr, err := frame.ReadFrame(reader, s.cfg.Limits)
		if err != nil {
			return
		}
		reply := s.dispatch(fr)
		if err := frame.WriteFrame(conn, reply, s.cfg.Limits); err != nil {
			log.Warn().Str("remote", remote).Err(err).Msg("engine reply write failed")
			return
		}
	}
}

func (s *Server) dispatch(fr frame.Frame) frame.Frame {
	op := protocol.Op(fr.Header.Op)
	req, err := tlv.DecodeFields(fr.Payload)
	if err == nil {
		var resp []tlv.Field
		resp, err = s.handle(op, req)
		if err == nil {
			return responseFrame(fr, resp, 0)
		}
	}
	log.Debug().Str("op", op.String()).Err(err).Msg("engine request failed")
	errFields := []tlv.Field{
		tlv.U64Field(protocol.FieldErrorCode, uint64(CodeFor(err))),
		tlv.StringField(protocol.FieldErrorText, err.Error()),
	}
	return responseFrame(fr, errFields, frame.FlagIsError)
}

func responseFrame(req frame.Frame, fields []tlv.Field, extraFlags uint32) frame.Frame {
	return frame.Frame{
		Header: frame.Header{
			Op:        req.Header.Op,
			MessageID: req.Header.MessageID,
			Flags:     frame.FlagIsResponse | extraFlags,
		},
		Payload: tlv.EncodeFields(fields),
	}
}

func (s *Server) handle(op protocol.Op, req []tlv.Field) ([]tlv.Field, error) {
	switch op {
	case protocol.OpRootNode:
		h, err := s.eng.RootNode()
		if err != nil {
			return nil, err
		}
		return []tlv.Field{tlv.U64Field(protocol.FieldNodeHandle, uint64(h))}, nil

	case protocol.OpNodeType:
		node, err := reqNodeHandle(req)
		if err != nil {
			return nil, err
		}
		t, err := s.eng.NodeType(node)
		if err != nil {
			return nil, err
		}
		return []tlv.Field{tlv.StringField(protocol.FieldName, t)}, nil

	case protocol.OpDefName:
		node, err := reqNodeHandle(req)
		if err != nil {
			return nil, err
		}
		name, err := s.eng.DefName(node)
		if err != nil {
			return nil, err
		}
		return []tlv.Field{tlv.StringField(protocol.FieldName, name)}, nil

	case protocol.OpFieldNames:
		node, err := reqNodeHandle(req)
		if err != nil {
			return nil, err
		}
		names, err := s.eng.FieldNames(node)
		if err != nil {
			return nil, err
		}
		resp := make([]tlv.Field, 0, len(names))
		for _, name := range names {
			resp = append(resp, tlv.StringField(protocol.FieldName, name))
		}
		return resp, nil

	case protocol.OpField:
		node, err := reqNodeHandle(req)
		if err != nil {
			return nil, err
		}
		nameField, err := protocol.Require(req, protocol.FieldName)
		if err != nil {
			return nil, err
		}
		name, err := nameField.String()
		if err != nil {
			return nil, err
		}
		fh, err := s.eng.Field(node, name)
		if err != nil {
			return nil, err
		}
		return []tlv.Field{tlv.U64Field(protocol.FieldFieldHandle, uint64(fh))}, nil

	case protocol.OpFieldSpec:
		fh, err := reqFieldHandle(req)
		if err != nil {
			return nil, err
		}
		spec, err := s.eng.FieldSpec(fh)
		if err != nil {
			return nil, err
		}
		return []tlv.Field{
			tlv.I32Field(protocol.FieldValueKind, int32(spec.Kind)),
			tlv.BoolField(protocol.FieldMulti, spec.Multi),
		}, nil

	case protocol.OpValue:
		fh, err := reqFieldHandle(req)
		if err != nil {
			return nil, err
		}
		v, err := s.eng.Value(fh)
		if err != nil {
			return nil, err
		}
		return protocol.AppendValue(nil, v)

	case protocol.OpSetValue:
		fh, err := reqFieldHandle(req)
		if err != nil {
			return nil, err
		}
		v, err := protocol.DecodeValue(req)
		if err != nil {
			return nil, err
		}
		return nil, s.eng.SetValue(fh, v)

	case protocol.OpCount:
		fh, err := reqFieldHandle(req)
		if err != nil {
			return nil, err
		}
		n, err := s.eng.Count(fh)
		if err != nil {
			return nil, err
		}
		return []tlv.Field{tlv.I32Field(protocol.FieldCount, int32(n))}, nil

	case protocol.OpItem:
		fh, index, err := reqFieldIndex(req)
		if err != nil {
			return nil, err
		}
		v, err := s.eng.Item(fh, index)
		if err != nil {
			return nil, err
		}
		return protocol.AppendValue(nil, v)

	case protocol.OpSetItem:
		fh, index, err := reqFieldIndex(req)
		if err != nil {
			return nil, err
		}
		v, err := protocol.DecodeValue(req)
		if err != nil {
			return nil, err
		}
		return nil, s.eng.SetItem(fh, index, v)

	case protocol.OpInsert:
		fh, index, err := reqFieldIndex(req)
		if err != nil {
			return nil, err
		}
		v, err := protocol.DecodeValue(req)
		if err != nil {
			return nil, err
		}
		return nil, s.eng.Insert(fh, index, v)

	case protocol.OpRemove:
		fh, index, err := reqFieldIndex(req)
		if err != nil {
			return nil, err
		}
		return nil, s.eng.Remove(fh, index)

	case protocol.OpImportSubtree:
		fh, index, err := reqFieldIndex(req)
		if err != nil {
			return nil, err
		}
		subtreeField, err := protocol.Require(req, protocol.FieldSubtree)
		if err != nil {
			return nil, err
		}
		subtree, err := subtreeField.String()
		if err != nil {
			return nil, err
		}
		handles, err := s.eng.ImportSubtree(fh, index, subtree)
		if err != nil {
			return nil, err
		}
		return []tlv.Field{protocol.EncodeHandles(handles)}, nil

	case protocol.OpExportSubtree:
		node, err := reqNodeHandle(req)
		if err != nil {
			return nil, err
		}
		subtree, err := s.eng.ExportSubtree(node)
		if err != nil {
			return nil, err
		}
		return []tlv.Field{tlv.StringField(protocol.FieldSubtree, subtree)}, nil

	default:
		return nil, errors.New("engine: unknown operation")
	}
}

func reqNodeHandle(req []tlv.Field) (protocol.NodeHandle, error) {
	f, err := protocol.Require(req, protocol.FieldNodeHandle)
	if err != nil {
		return 0, err
	}
	h, err := f.U64()
	if err != nil {
		return 0, err
	}
	return protocol.NodeHandle(h), nil
}

func reqFieldHandle(req []tlv.Field) (protocol.FieldHandle, error) {
	f, err := protocol.Require(req, protocol.FieldFieldHandle)
	if err != nil {
		return 0, err
	}
	h, err := f.U64()
	if err != nil {
		return 0, err
	}
	return protocol.FieldHandle(h), nil
}

func reqFieldIndex(req []tlv.Field) (protocol.FieldHandle, int, error) {
	fh, err := reqFieldHandle(req)
	if err != nil {
		return 0, 0, err
	}
	f, err := protocol.Require(req, protocol.FieldIndex)
	if err != nil {
		return 0, 0, err
	}
	index, err := f.I32()
	if err != nil {
		return 0, 0, err
	}
	return fh, int(index), nil
}
