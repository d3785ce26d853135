package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/scenectl/internal/observability"
	"github.com/danmuck/scenectl/internal/protocol"
	"github.com/danmuck/scenectl/internal/protocol/frame"
	"github.com/danmuck/scenectl/internal/protocol/tlv"
)

var (
	ErrAddressRequired = errors.New("engine: address required")
	ErrBadReply        = errors.New("engine: mismatched reply")
)

type ClientConfig struct {
	Address        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Limits         frame.Limits
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
		Limits:         frame.DefaultLimits(),
	}
}

func (c ClientConfig) WithDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}

// Client speaks the engine protocol over one connection. It is built for
// the cache layer's single-threaded model: one request in flight at a
// time, every call a blocking round trip.
type Client struct {
	cfg    ClientConfig
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
}

// Dial connects to a remote engine.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("addr", cfg.Address).Msg("engine client connected")
	return NewClient(conn, cfg), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, cfg ClientConfig) *Client {
	return &Client{
		cfg:    cfg.WithDefaults(),
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(op protocol.Op, req []tlv.Field) ([]tlv.Field, error) {
	c.nextID++
	id := c.nextID
	out := frame.Frame{
		Header:  frame.Header{Op: uint16(op), MessageID: id},
		Payload: tlv.EncodeFields(req),
	}
	if c.cfg.RequestTimeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.cfg.RequestTimeout))
	}
	start := time.Now()
	if err := frame.WriteFrame(c.conn, out, c.cfg.Limits); err != nil {
		observability.RecordEngineCall(op.String(), time.Since(start), false)
		return nil, err
	}
	in, err := frame.ReadFrame(c.reader, c.cfg.Limits)
	if err != nil {
		observability.RecordEngineCall(op.String(), time.Since(start), false)
		return nil, err
	}
	if in.Header.MessageID != id || in.Header.Flags&frame.FlagIsResponse == 0 {
		observability.RecordEngineCall(op.String(), time.Since(start), false)
		return nil, fmt.Errorf("%w: op=%s message_id=%d", ErrBadReply, op, in.Header.MessageID)
	}
	fields, err := tlv.DecodeFields(in.Payload)
	if err != nil {
		observability.RecordEngineCall(op.String(), time.Since(start), false)
		return nil, err
	}
	if in.Header.Flags&frame.FlagIsError != 0 {
		observability.RecordEngineCall(op.String(), time.Since(start), false)
		return nil, decodeError(fields)
	}
	observability.RecordEngineCall(op.String(), time.Since(start), true)
	return fields, nil
}

func decodeError(fields []tlv.Field) error {
	codeField, err := protocol.Require(fields, protocol.FieldErrorCode)
	if err != nil {
		return fmt.Errorf("%w: unreadable error reply", ErrBadReply)
	}
	raw, err := codeField.U64()
	if err != nil {
		return fmt.Errorf("%w: unreadable error reply", ErrBadReply)
	}
	var text string
	if f, ok := tlv.GetField(fields, protocol.FieldErrorText); ok {
		text, _ = f.String()
	}
	return ErrorFor(protocol.ErrorCode(raw), text)
}

func (c *Client) RootNode() (protocol.NodeHandle, error) {
	fields, err := c.call(protocol.OpRootNode, nil)
	if err != nil {
		return 0, err
	}
	return replyNodeHandle(fields)
}

func (c *Client) NodeType(node protocol.NodeHandle) (string, error) {
	return c.nodeString(protocol.OpNodeType, node)
}

func (c *Client) DefName(node protocol.NodeHandle) (string, error) {
	return c.nodeString(protocol.OpDefName, node)
}

func (c *Client) nodeString(op protocol.Op, node protocol.NodeHandle) (string, error) {
	req := []tlv.Field{tlv.U64Field(protocol.FieldNodeHandle, uint64(node))}
	fields, err := c.call(op, req)
	if err != nil {
		return "", err
	}
	f, err := protocol.Require(fields, protocol.FieldName)
	if err != nil {
		return "", err
	}
	return f.String()
}

func (c *Client) FieldNames(node protocol.NodeHandle) ([]string, error) {
	req := []tlv.Field{tlv.U64Field(protocol.FieldNodeHandle, uint64(node))}
	fields, err := c.call(protocol.OpFieldNames, req)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range fields {
		if f.ID != protocol.FieldName {
			continue
		}
		s, err := f.String()
		if err != nil {
			return nil, err
		}
		names = append(names, s)
	}
	return names, nil
}

func (c *Client) Field(node protocol.NodeHandle, name string) (protocol.FieldHandle, error) {
	req := []tlv.Field{
		tlv.U64Field(protocol.FieldNodeHandle, uint64(node)),
		tlv.StringField(protocol.FieldName, name),
	}
	fields, err := c.call(protocol.OpField, req)
	if err != nil {
		return 0, err
	}
	f, err := protocol.Require(fields, protocol.FieldFieldHandle)
	if err != nil {
		return 0, err
	}
	h, err := f.U64()
	if err != nil {
		return 0, err
	}
	return protocol.FieldHandle(h), nil
}

func (c *Client) FieldSpec(field protocol.FieldHandle) (FieldSpec, error) {
	req := []tlv.Field{tlv.U64Field(protocol.FieldFieldHandle, uint64(field))}
	fields, err := c.call(protocol.OpFieldSpec, req)
	if err != nil {
		return FieldSpec{}, err
	}
	kindField, err := protocol.Require(fields, protocol.FieldValueKind)
	if err != nil {
		return FieldSpec{}, err
	}
	rawKind, err := kindField.I32()
	if err != nil {
		return FieldSpec{}, err
	}
	multiField, err := protocol.Require(fields, protocol.FieldMulti)
	if err != nil {
		return FieldSpec{}, err
	}
	multi, err := multiField.Bool()
	if err != nil {
		return FieldSpec{}, err
	}
	return FieldSpec{Kind: protocol.Kind(rawKind), Multi: multi}, nil
}

func (c *Client) Value(field protocol.FieldHandle) (protocol.Value, error) {
	req := []tlv.Field{tlv.U64Field(protocol.FieldFieldHandle, uint64(field))}
	fields, err := c.call(protocol.OpValue, req)
	if err != nil {
		return protocol.Value{}, err
	}
	return protocol.DecodeValue(fields)
}

func (c *Client) SetValue(field protocol.FieldHandle, v protocol.Value) error {
	req := []tlv.Field{tlv.U64Field(protocol.FieldFieldHandle, uint64(field))}
	req, err := protocol.AppendValue(req, v)
	if err != nil {
		return err
	}
	_, err = c.call(protocol.OpSetValue, req)
	return err
}

func (c *Client) Count(field protocol.FieldHandle) (int, error) {
	req := []tlv.Field{tlv.U64Field(protocol.FieldFieldHandle, uint64(field))}
	fields, err := c.call(protocol.OpCount, req)
	if err != nil {
		return 0, err
	}
	f, err := protocol.Require(fields, protocol.FieldCount)
	if err != nil {
		return 0, err
	}
	n, err := f.I32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *Client) Item(field protocol.FieldHandle, index int) (protocol.Value, error) {
	req := []tlv.Field{
		tlv.U64Field(protocol.FieldFieldHandle, uint64(field)),
		tlv.I32Field(protocol.FieldIndex, int32(index)),
	}
	fields, err := c.call(protocol.OpItem, req)
	if err != nil {
		return protocol.Value{}, err
	}
	return protocol.DecodeValue(fields)
}

func (c *Client) SetItem(field protocol.FieldHandle, index int, v protocol.Value) error {
	return c.itemWrite(protocol.OpSetItem, field, index, v)
}

func (c *Client) Insert(field protocol.FieldHandle, index int, v protocol.Value) error {
	return c.itemWrite(protocol.OpInsert, field, index, v)
}

func (c *Client) itemWrite(op protocol.Op, field protocol.FieldHandle, index int, v protocol.Value) error {
	req := []tlv.Field{
		tlv.U64Field(protocol.FieldFieldHandle, uint64(field)),
		tlv.I32Field(protocol.FieldIndex, int32(index)),
	}
	req, err := protocol.AppendValue(req, v)
	if err != nil {
		return err
	}
	_, err = c.call(op, req)
	return err
}

func (c *Client) Remove(field protocol.FieldHandle, index int) error {
	req := []tlv.Field{
		tlv.U64Field(protocol.FieldFieldHandle, uint64(field)),
		tlv.I32Field(protocol.FieldIndex, int32(index)),
	}
	_, err := c.call(protocol.OpRemove, req)
	return err
}

func (c *Client) ImportSubtree(field protocol.FieldHandle, index int, subtree string) ([]protocol.NodeHandle, error) {
	req := []tlv.Field{
		tlv.U64Field(protocol.FieldFieldHandle, uint64(field)),
		tlv.I32Field(protocol.FieldIndex, int32(index)),
		tlv.StringField(protocol.FieldSubtree, subtree),
	}
	fields, err := c.call(protocol.OpImportSubtree, req)
	if err != nil {
		return nil, err
	}
	f, err := protocol.Require(fields, protocol.FieldHandles)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeHandles(f)
}

func (c *Client) ExportSubtree(node protocol.NodeHandle) (string, error) {
	req := []tlv.Field{tlv.U64Field(protocol.FieldNodeHandle, uint64(node))}
	fields, err := c.call(protocol.OpExportSubtree, req)
	if err != nil {
		return "", err
	}
	f, err := protocol.Require(fields, protocol.FieldSubtree)
	if err != nil {
		return "", err
	}
	return f.String()
}

func replyNodeHandle(fields []tlv.Field) (protocol.NodeHandle, error) {
	f, err := protocol.Require(fields, protocol.FieldNodeHandle)
	if err != nil {
		return 0, err
	}
	h, err := f.U64()
	if err != nil {
		return 0, err
	}
	return protocol.NodeHandle(h), nil
}

var _ Engine = (*Client)(nil)
