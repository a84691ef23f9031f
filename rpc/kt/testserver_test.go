package kt

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tycoon-kv/tycoon/rpc/common"
)

// fakeServer is an in-process implementation of the wire dialect, backed by
// per-database maps with expiration, used to exercise the client end to end.
type fakeServer struct {
	ln net.Listener

	mu  sync.Mutex
	dbs map[uint16]map[string]fakeRecord
}

type fakeRecord struct {
	value    []byte
	deadline time.Time // zero means no expiration
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{ln: ln, dbs: make(map[uint16]map[string]fakeRecord)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeServer) config(t *testing.T) common.ClientConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	config := common.DefaultClientConfig()
	config.Host = host
	config.Port = port
	config.TimeoutSecond = 5
	return config
}

func (s *fakeServer) db(index uint16) map[string]fakeRecord {
	if _, ok := s.dbs[index]; !ok {
		s.dbs[index] = make(map[string]fakeRecord)
	}
	return s.dbs[index]
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	for {
		magic := make([]byte, 1)
		if _, err := io.ReadFull(conn, magic); err != nil {
			return
		}
		var err error
		switch magic[0] {
		case magicGetBulk:
			err = s.handleGetBulk(conn)
		case magicSetBulk:
			err = s.handleSetBulk(conn)
		case magicRemoveBulk:
			err = s.handleRemoveBulk(conn)
		case magicPlayScript:
			err = s.handlePlayScript(conn)
		default:
			return
		}
		if err != nil {
			return
		}
	}
}

func readU32(conn net.Conn) (uint32, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(conn, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func readU16(conn net.Conn) (uint16, error) {
	b := make([]byte, 2)
	if _, err := io.ReadFull(conn, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func readI64(conn net.Conn) (int64, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(conn, b); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func readN(conn net.Conn, n uint32) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(conn, b); err != nil {
		return nil, err
	}
	return b, nil
}

func appendU32(b []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(b, v) }
func appendU16(b []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(b, v) }
func appendI64(b []byte, v int64) []byte  { return binary.BigEndian.AppendUint64(b, uint64(v)) }

func (s *fakeServer) handleGetBulk(conn net.Conn) error {
	if _, err := readU32(conn); err != nil { // flags
		return err
	}
	count, err := readU32(conn)
	if err != nil {
		return err
	}

	type lookup struct {
		db  uint16
		key string
	}
	lookups := make([]lookup, 0, count)
	for i := uint32(0); i < count; i++ {
		db, err := readU16(conn)
		if err != nil {
			return err
		}
		klen, err := readU32(conn)
		if err != nil {
			return err
		}
		key, err := readN(conn, klen)
		if err != nil {
			return err
		}
		lookups = append(lookups, lookup{db, string(key)})
	}

	resp := []byte{magicGetBulk}
	found := 0
	body := []byte{}
	s.mu.Lock()
	now := time.Now()
	for _, l := range lookups {
		rec, ok := s.db(l.db)[l.key]
		if !ok || (!rec.deadline.IsZero() && now.After(rec.deadline)) {
			continue
		}
		found++
		body = appendU16(body, l.db)
		body = appendU32(body, uint32(len(l.key)))
		body = appendU32(body, uint32(len(rec.value)))
		body = appendI64(body, common.NoExpiration)
		body = append(body, l.key...)
		body = append(body, rec.value...)
	}
	s.mu.Unlock()

	resp = appendU32(resp, uint32(found))
	resp = append(resp, body...)
	_, err = conn.Write(resp)
	return err
}

func (s *fakeServer) handleSetBulk(conn net.Conn) error {
	flags, err := readU32(conn)
	if err != nil {
		return err
	}
	count, err := readU32(conn)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for i := uint32(0); i < count; i++ {
		db, err := readU16(conn)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		klen, err := readU32(conn)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		vlen, err := readU32(conn)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		xt, err := readI64(conn)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		key, err := readN(conn, klen)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		value, err := readN(conn, vlen)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		rec := fakeRecord{value: value}
		if xt != common.NoExpiration {
			rec.deadline = time.Now().Add(time.Duration(xt) * time.Second)
		}
		s.db(db)[string(key)] = rec
	}
	s.mu.Unlock()

	if flags&flagNoReply != 0 {
		return nil
	}
	resp := []byte{magicSetBulk}
	resp = appendU32(resp, count)
	_, err = conn.Write(resp)
	return err
}

func (s *fakeServer) handleRemoveBulk(conn net.Conn) error {
	flags, err := readU32(conn)
	if err != nil {
		return err
	}
	count, err := readU32(conn)
	if err != nil {
		return err
	}

	removed := uint32(0)
	s.mu.Lock()
	for i := uint32(0); i < count; i++ {
		db, err := readU16(conn)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		klen, err := readU32(conn)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		key, err := readN(conn, klen)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if _, ok := s.db(db)[string(key)]; ok {
			delete(s.db(db), string(key))
			removed++
		}
	}
	s.mu.Unlock()

	if flags&flagNoReply != 0 {
		return nil
	}
	resp := []byte{magicRemoveBulk}
	resp = appendU32(resp, removed)
	_, err = conn.Write(resp)
	return err
}

// handlePlayScript implements two scripts: "echo" returns its parameters,
// "boom" answers with the error magic.
func (s *fakeServer) handlePlayScript(conn net.Conn) error {
	flags, err := readU32(conn)
	if err != nil {
		return err
	}
	nlen, err := readU32(conn)
	if err != nil {
		return err
	}
	pcount, err := readU32(conn)
	if err != nil {
		return err
	}
	name, err := readN(conn, nlen)
	if err != nil {
		return err
	}
	params := make(map[string][]byte, pcount)
	order := make([]string, 0, pcount)
	for i := uint32(0); i < pcount; i++ {
		klen, err := readU32(conn)
		if err != nil {
			return err
		}
		vlen, err := readU32(conn)
		if err != nil {
			return err
		}
		key, err := readN(conn, klen)
		if err != nil {
			return err
		}
		value, err := readN(conn, vlen)
		if err != nil {
			return err
		}
		params[string(key)] = value
		order = append(order, string(key))
	}

	if flags&flagNoReply != 0 {
		return nil
	}
	if string(name) == "boom" {
		_, err = conn.Write([]byte{magicError})
		return err
	}

	resp := []byte{magicPlayScript}
	resp = appendU32(resp, uint32(len(params)))
	for _, key := range order {
		resp = appendU32(resp, uint32(len(key)))
		resp = appendU32(resp, uint32(len(params[key])))
		resp = append(resp, key...)
		resp = append(resp, params[key]...)
	}
	_, err = conn.Write(resp)
	return err
}
