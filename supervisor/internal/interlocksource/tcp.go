package interlocksource

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// tcpSource polls a bespoke line protocol over a persistent TCP
// connection: a request "n:<key>|m:get\n" gets a reply of pipe-separated
// "field:value" pairs, one of which is "val:0" or "val:1". Implemented
// directly on net.Conn since it is a few bytes of bespoke framing, not
// a case any library in the stack addresses.
type tcpSource struct {
	addr string
	key  string
	conn net.Conn
}

func newTCPSource(u *url.URL) (Source, error) {
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return nil, fmt.Errorf("interlocksource: tcp uri %q missing key path", u.String())
	}
	return &tcpSource{addr: u.Host, key: key}, nil
}

func (s *tcpSource) ensureConn() error {
	if s.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", s.addr, 3*time.Second)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *tcpSource) GetInterlock() structures.InterlockState {
	if err := s.ensureConn(); err != nil {
		return failSafe(err)
	}

	_ = s.conn.SetDeadline(time.Now().Add(3 * time.Second))

	req := fmt.Sprintf("n:%s|m:get\n", s.key)
	if _, err := s.conn.Write([]byte(req)); err != nil {
		s.Close()
		return failSafe(err)
	}

	line, err := bufio.NewReader(s.conn).ReadString('\n')
	if err != nil {
		s.Close()
		return failSafe(err)
	}

	for _, field := range strings.Split(strings.TrimSpace(line), "|") {
		k, v, ok := strings.Cut(field, ":")
		if !ok || k != "val" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return failSafe(err)
		}
		return structures.NewInterlockState(n > 0)
	}

	return failSafe(fmt.Errorf("interlocksource: no val field in reply %q", line))
}

func (s *tcpSource) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
