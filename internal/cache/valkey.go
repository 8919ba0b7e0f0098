package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ValkeyProvider implements Provider against a Valkey/Redis-compatible
// server using a minimal RESP client. Connections are dialed per operation;
// instance-config lookups happen at most once per instance per cycle, so a
// pool is not worth its complexity here.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLS          bool
}

// NewValkeyProvider creates a Provider and pings the target to fail fast on
// bad credentials or connectivity.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}

	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if _, err := p.do(ctx, "PING"); err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrCacheMiss
	}
	return reply, nil
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	_, err := p.do(ctx, args...)
	return err
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "DEL", key)
	return err
}

// Close is a no-op; connections are per-operation.
func (p *ValkeyProvider) Close() error { return nil }

// do dials, authenticates, runs one command, and returns the reply payload.
// Nil reply bytes with nil error means a RESP null reply.
func (p *ValkeyProvider) do(ctx context.Context, args ...string) ([]byte, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		td := tls.Dialer{NetDialer: &dialer}
		conn, err = td.DialContext(ctx, "tcp", p.cfg.Addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial valkey: %w", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	if p.cfg.Password != "" {
		authArgs := []string{"AUTH", p.cfg.Password}
		if p.cfg.Username != "" {
			authArgs = []string{"AUTH", p.cfg.Username, p.cfg.Password}
		}
		if _, err := p.roundTrip(conn, reader, authArgs); err != nil {
			return nil, fmt.Errorf("valkey auth: %w", err)
		}
	}
	if p.cfg.DB != 0 {
		if _, err := p.roundTrip(conn, reader, []string{"SELECT", strconv.Itoa(p.cfg.DB)}); err != nil {
			return nil, fmt.Errorf("valkey select db: %w", err)
		}
	}

	return p.roundTrip(conn, reader, args)
}

func (p *ValkeyProvider) roundTrip(conn net.Conn, reader *bufio.Reader, args []string) ([]byte, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(encodeCommand(args)); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return nil, err
	}
	return readReply(reader)
}

// encodeCommand serialises a command as a RESP array of bulk strings.
func encodeCommand(args []string) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)), 10)
	buf = append(buf, '\r', '\n')
	for _, arg := range args {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(arg)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, arg...)
		buf = append(buf, '\r', '\n')
	}
	return buf
}

// readReply parses one RESP reply. Simple strings and integers return their
// textual form; null bulk strings return (nil, nil).
func readReply(reader *bufio.Reader) ([]byte, error) {
	line, err := readLine(reader)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, errors.New("empty valkey reply")
	}

	switch line[0] {
	case '+', ':':
		return line[1:], nil
	case '-':
		return nil, fmt.Errorf("valkey error: %s", line[1:])
	case '$':
		size, err := strconv.Atoi(string(line[1:]))
		if err != nil {
			return nil, fmt.Errorf("parse bulk length: %w", err)
		}
		if size < 0 {
			return nil, nil
		}
		payload := make([]byte, size+2)
		if _, err := readFull(reader, payload); err != nil {
			return nil, err
		}
		return payload[:size], nil
	default:
		return nil, fmt.Errorf("unsupported valkey reply type %q", line[0])
	}
}

func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, errors.New("malformed valkey line")
	}
	return line[:len(line)-2], nil
}

func readFull(reader *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := reader.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
