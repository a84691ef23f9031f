package tt

import (
	"encoding/binary"
	"io"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tycoon-kv/tycoon/lib/blob"
	"github.com/tycoon-kv/tycoon/rpc/common"
)

// fakeServer is an in-process implementation of the single-database wire
// dialect, used to exercise the client end to end.
type fakeServer struct {
	ln net.Listener

	mu      sync.Mutex
	records map[string][]byte
	cursor  []string // pending iteration keys, shared by both cursor surfaces
	nextUID int64
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{ln: ln, records: make(map[string][]byte)}
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

// sortedKeys snapshots the current keys for cursor iteration
func (s *fakeServer) sortedKeys() []string {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func readU32(conn net.Conn) (uint32, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(conn, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
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

func readKV(conn net.Conn) (string, []byte, error) {
	klen, err := readU32(conn)
	if err != nil {
		return "", nil, err
	}
	vlen, err := readU32(conn)
	if err != nil {
		return "", nil, err
	}
	key, err := readN(conn, klen)
	if err != nil {
		return "", nil, err
	}
	value, err := readN(conn, vlen)
	if err != nil {
		return "", nil, err
	}
	return string(key), value, nil
}

func readKey(conn net.Conn) (string, error) {
	klen, err := readU32(conn)
	if err != nil {
		return "", err
	}
	key, err := readN(conn, klen)
	if err != nil {
		return "", err
	}
	return string(key), nil
}

func appendU32(b []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(b, v) }
func appendI64(b []byte, v int64) []byte  { return binary.BigEndian.AppendUint64(b, uint64(v)) }

func appendPrefixed(b, payload []byte) []byte {
	b = appendU32(b, uint32(len(payload)))
	return append(b, payload...)
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	for {
		header := make([]byte, 2)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		if header[0] != magicPrefix {
			return
		}
		if err := s.dispatch(conn, header[1]); err != nil {
			return
		}
	}
}

func (s *fakeServer) dispatch(conn net.Conn, op byte) error {
	switch op {
	case opPut, opPutKeep, opPutCat, opPutNR:
		return s.handlePut(conn, op)
	case opPutShl:
		return s.handlePutShl(conn)
	case opOut:
		return s.handleOut(conn)
	case opGet:
		return s.handleGet(conn)
	case opMGet:
		return s.handleMGet(conn)
	case opVSiz:
		return s.handleVSiz(conn)
	case opIterInit:
		s.mu.Lock()
		s.cursor = s.sortedKeys()
		s.mu.Unlock()
		_, err := conn.Write([]byte{statusOK})
		return err
	case opIterNext:
		return s.handleIterNext(conn)
	case opFwmKeys:
		return s.handleFwmKeys(conn)
	case opAddInt:
		return s.handleAddInt(conn)
	case opAddDbl:
		return s.handleAddDouble(conn)
	case opExt:
		return s.handleExt(conn)
	case opSync, opVanish:
		if op == opVanish {
			s.mu.Lock()
			s.records = make(map[string][]byte)
			s.mu.Unlock()
		}
		_, err := conn.Write([]byte{statusOK})
		return err
	case opOptimize, opCopy:
		if _, err := readKey(conn); err != nil {
			return err
		}
		_, err := conn.Write([]byte{statusOK})
		return err
	case opRestore:
		if _, err := readI64(conn); err != nil {
			return err
		}
		if _, err := readU32(conn); err != nil {
			return err
		}
		_, err := conn.Write([]byte{statusOK})
		return err
	case opSetMst:
		return s.handleSetMst(conn)
	case opRNum:
		s.mu.Lock()
		n := int64(len(s.records))
		s.mu.Unlock()
		_, err := conn.Write(appendI64([]byte{statusOK}, n))
		return err
	case opSize:
		s.mu.Lock()
		size := int64(0)
		for key, value := range s.records {
			size += int64(len(key) + len(value))
		}
		s.mu.Unlock()
		_, err := conn.Write(appendI64([]byte{statusOK}, size))
		return err
	case opStat:
		s.mu.Lock()
		stat := "rnum\t" + strconv.Itoa(len(s.records)) + "\ntype\ton-memory hash\n"
		s.mu.Unlock()
		_, err := conn.Write(appendPrefixed([]byte{statusOK}, []byte(stat)))
		return err
	case opMisc:
		return s.handleMisc(conn)
	default:
		return io.ErrUnexpectedEOF
	}
}

func (s *fakeServer) handlePut(conn net.Conn, op byte) error {
	key, value, err := readKV(conn)
	if err != nil {
		return err
	}
	status := byte(statusOK)
	s.mu.Lock()
	switch op {
	case opPutKeep:
		if _, exists := s.records[key]; exists {
			status = statusMiss
		} else {
			s.records[key] = value
		}
	case opPutCat:
		s.records[key] = append(s.records[key], value...)
	default:
		s.records[key] = value
	}
	s.mu.Unlock()

	if op == opPutNR {
		return nil
	}
	_, err = conn.Write([]byte{status})
	return err
}

func (s *fakeServer) handlePutShl(conn net.Conn) error {
	klen, err := readU32(conn)
	if err != nil {
		return err
	}
	vlen, err := readU32(conn)
	if err != nil {
		return err
	}
	width, err := readU32(conn)
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
	s.mu.Lock()
	grown := append(s.records[string(key)], value...)
	if uint32(len(grown)) > width {
		grown = grown[uint32(len(grown))-width:]
	}
	s.records[string(key)] = grown
	s.mu.Unlock()
	_, err = conn.Write([]byte{statusOK})
	return err
}

func (s *fakeServer) handleOut(conn net.Conn) error {
	key, err := readKey(conn)
	if err != nil {
		return err
	}
	status := byte(statusMiss)
	s.mu.Lock()
	if _, exists := s.records[key]; exists {
		delete(s.records, key)
		status = statusOK
	}
	s.mu.Unlock()
	_, err = conn.Write([]byte{status})
	return err
}

func (s *fakeServer) handleGet(conn net.Conn) error {
	key, err := readKey(conn)
	if err != nil {
		return err
	}
	s.mu.Lock()
	value, exists := s.records[key]
	s.mu.Unlock()
	if !exists {
		_, err = conn.Write([]byte{statusMiss})
		return err
	}
	_, err = conn.Write(appendPrefixed([]byte{statusOK}, value))
	return err
}

func (s *fakeServer) handleMGet(conn net.Conn) error {
	count, err := readU32(conn)
	if err != nil {
		return err
	}
	keys := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		key, err := readKey(conn)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	resp := []byte{statusOK}
	body := []byte{}
	found := uint32(0)
	s.mu.Lock()
	for _, key := range keys {
		value, exists := s.records[key]
		if !exists {
			continue
		}
		found++
		body = appendU32(body, uint32(len(key)))
		body = appendU32(body, uint32(len(value)))
		body = append(body, key...)
		body = append(body, value...)
	}
	s.mu.Unlock()
	resp = appendU32(resp, found)
	resp = append(resp, body...)
	_, err = conn.Write(resp)
	return err
}

func (s *fakeServer) handleVSiz(conn net.Conn) error {
	key, err := readKey(conn)
	if err != nil {
		return err
	}
	s.mu.Lock()
	value, exists := s.records[key]
	s.mu.Unlock()
	if !exists {
		_, err = conn.Write([]byte{statusMiss})
		return err
	}
	_, err = conn.Write(appendU32([]byte{statusOK}, uint32(len(value))))
	return err
}

func (s *fakeServer) handleIterNext(conn net.Conn) error {
	s.mu.Lock()
	var key string
	ok := len(s.cursor) > 0
	if ok {
		key = s.cursor[0]
		s.cursor = s.cursor[1:]
	}
	s.mu.Unlock()
	if !ok {
		_, err := conn.Write([]byte{statusMiss})
		return err
	}
	_, err := conn.Write(appendPrefixed([]byte{statusOK}, []byte(key)))
	return err
}

func (s *fakeServer) handleFwmKeys(conn net.Conn) error {
	plen, err := readU32(conn)
	if err != nil {
		return err
	}
	max, err := readU32(conn)
	if err != nil {
		return err
	}
	prefix, err := readN(conn, plen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var matches []string
	for _, key := range s.sortedKeys() {
		if strings.HasPrefix(key, string(prefix)) && uint32(len(matches)) < max {
			matches = append(matches, key)
		}
	}
	s.mu.Unlock()

	resp := appendU32([]byte{statusOK}, uint32(len(matches)))
	for _, key := range matches {
		resp = appendPrefixed(resp, []byte(key))
	}
	_, err = conn.Write(resp)
	return err
}

func (s *fakeServer) handleAddInt(conn net.Conn) error {
	klen, err := readU32(conn)
	if err != nil {
		return err
	}
	num, err := readU32(conn)
	if err != nil {
		return err
	}
	key, err := readN(conn, klen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	current := 0
	if existing, exists := s.records[string(key)]; exists {
		parsed, perr := strconv.Atoi(string(existing))
		if perr != nil {
			s.mu.Unlock()
			_, err = conn.Write([]byte{statusMiss})
			return err
		}
		current = parsed
	}
	current += int(int32(num))
	s.records[string(key)] = []byte(strconv.Itoa(current))
	s.mu.Unlock()

	_, err = conn.Write(appendU32([]byte{statusOK}, uint32(int32(current))))
	return err
}

func (s *fakeServer) handleAddDouble(conn net.Conn) error {
	klen, err := readU32(conn)
	if err != nil {
		return err
	}
	integ, err := readI64(conn)
	if err != nil {
		return err
	}
	fract, err := readI64(conn)
	if err != nil {
		return err
	}
	key, err := readN(conn, klen)
	if err != nil {
		return err
	}
	add := float64(integ) + float64(fract)/1e12

	s.mu.Lock()
	current := 0.0
	if existing, exists := s.records[string(key)]; exists {
		parsed, perr := strconv.ParseFloat(string(existing), 64)
		if perr != nil {
			s.mu.Unlock()
			_, err = conn.Write([]byte{statusMiss})
			return err
		}
		current = parsed
	}
	current += add
	s.records[string(key)] = []byte(strconv.FormatFloat(current, 'f', -1, 64))
	s.mu.Unlock()

	resp := []byte{statusOK}
	sumInteg := int64(current)
	sumFract := int64((current - float64(sumInteg)) * 1e12)
	resp = appendI64(resp, sumInteg)
	resp = appendI64(resp, sumFract)
	_, err = conn.Write(resp)
	return err
}

// handleExt implements one script, "echo", which returns key=value; any
// other name fails with a script status.
func (s *fakeServer) handleExt(conn net.Conn) error {
	nlen, err := readU32(conn)
	if err != nil {
		return err
	}
	if _, err := readU32(conn); err != nil { // opts
		return err
	}
	klen, err := readU32(conn)
	if err != nil {
		return err
	}
	vlen, err := readU32(conn)
	if err != nil {
		return err
	}
	name, err := readN(conn, nlen)
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

	if string(name) != "echo" {
		_, err = conn.Write([]byte{statusMiss})
		return err
	}
	result := append(append(append([]byte(nil), key...), '='), value...)
	_, err = conn.Write(appendPrefixed([]byte{statusOK}, result))
	return err
}

func (s *fakeServer) handleSetMst(conn net.Conn) error {
	hlen, err := readU32(conn)
	if err != nil {
		return err
	}
	if _, err := readU32(conn); err != nil { // port
		return err
	}
	if _, err := readI64(conn); err != nil { // ts
		return err
	}
	if _, err := readU32(conn); err != nil { // opts
		return err
	}
	if _, err := readN(conn, hlen); err != nil {
		return err
	}
	_, err = conn.Write([]byte{statusOK})
	return err
}

// --------------------------------------------------------------------------
// The misc channel
// --------------------------------------------------------------------------

func (s *fakeServer) handleMisc(conn net.Conn) error {
	nlen, err := readU32(conn)
	if err != nil {
		return err
	}
	if _, err := readU32(conn); err != nil { // opts
		return err
	}
	argc, err := readU32(conn)
	if err != nil {
		return err
	}
	name, err := readN(conn, nlen)
	if err != nil {
		return err
	}
	args := make([][]byte, 0, argc)
	for i := uint32(0); i < argc; i++ {
		alen, err := readU32(conn)
		if err != nil {
			return err
		}
		arg, err := readN(conn, alen)
		if err != nil {
			return err
		}
		args = append(args, arg)
	}

	results, ok := s.runMisc(string(name), args)
	if !ok {
		_, err = conn.Write([]byte{statusMiss})
		return err
	}
	resp := appendU32([]byte{statusOK}, uint32(len(results)))
	for _, result := range results {
		resp = appendPrefixed(resp, result)
	}
	_, err = conn.Write(resp)
	return err
}

func (s *fakeServer) runMisc(name string, args [][]byte) ([][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch name {
	case "putlist":
		for i := 0; i+1 < len(args); i += 2 {
			s.records[string(args[i])] = args[i+1]
		}
		return nil, true
	case "outlist":
		for _, arg := range args {
			delete(s.records, string(arg))
		}
		return nil, true
	case "getlist":
		var results [][]byte
		for _, arg := range args {
			if value, exists := s.records[string(arg)]; exists {
				results = append(results, arg, value)
			}
		}
		return results, true
	case "getpart":
		if len(args) < 2 {
			return nil, false
		}
		value, exists := s.records[string(args[0])]
		if !exists {
			return nil, false
		}
		start, _ := strconv.Atoi(string(args[1]))
		if start >= len(value) {
			return nil, false
		}
		part := value[start:]
		if len(args) > 2 {
			end, _ := strconv.Atoi(string(args[2]))
			if end < len(part) {
				part = part[:end]
			}
		}
		return [][]byte{part}, true
	case "range":
		if len(args) < 2 {
			return nil, false
		}
		start := string(args[0])
		max, _ := strconv.Atoi(string(args[1]))
		stop := ""
		if len(args) > 2 {
			stop = string(args[2])
		}
		var results [][]byte
		for _, key := range s.sortedKeys() {
			if key < start || (stop != "" && key >= stop) {
				continue
			}
			if max > 0 && len(results)/2 >= max {
				break
			}
			results = append(results, []byte(key), s.records[key])
		}
		return results, true
	case "regex":
		if len(args) < 1 {
			return nil, false
		}
		re, err := regexp.Compile(string(args[0]))
		if err != nil {
			return nil, false
		}
		var results [][]byte
		for _, key := range s.sortedKeys() {
			if re.MatchString(key) {
				results = append(results, []byte(key), s.records[key])
			}
		}
		return results, true
	case "cacheclear":
		return nil, true
	case "genuid":
		s.nextUID++
		return [][]byte{[]byte(strconv.FormatInt(s.nextUID, 10))}, true
	case "setindex":
		return nil, len(args) == 2
	case "iterinit":
		keys := s.sortedKeys()
		if len(args) > 0 {
			start := string(args[0])
			for len(keys) > 0 && keys[0] < start {
				keys = keys[1:]
			}
		}
		s.cursor = keys
		return nil, true
	case "iternext":
		if len(s.cursor) == 0 {
			return nil, false
		}
		key := s.cursor[0]
		s.cursor = s.cursor[1:]
		return [][]byte{[]byte(key), s.records[key]}, true
	case "search":
		return s.runSearch(args)
	default:
		return nil, false
	}
}

// runSearch supports equality conditions, setlimit and the get/out/count
// trailing commands, enough to drive the query builder end to end.
func (s *fakeServer) runSearch(args [][]byte) ([][]byte, bool) {
	limit, offset := -1, 0
	var conds [][3]string
	cmd := ""

	for _, arg := range args {
		tokens := strings.Split(string(arg), "\x00")
		switch tokens[0] {
		case "addcond":
			if len(tokens) != 4 {
				return nil, false
			}
			conds = append(conds, [3]string{tokens[1], tokens[2], tokens[3]})
		case "setorder":
			// results are in key order already
		case "setlimit":
			if len(tokens) > 1 {
				limit, _ = strconv.Atoi(tokens[1])
			}
			if len(tokens) > 2 {
				offset, _ = strconv.Atoi(tokens[2])
			}
		case "get", "out", "count":
			cmd = tokens[0]
		default:
			return nil, false
		}
	}

	var matched []string
	for _, key := range s.sortedKeys() {
		columns := blob.DecodeTable(s.records[key])
		match := true
		for _, cond := range conds {
			op, _ := strconv.Atoi(cond[1])
			if op != OpStrEq || columns[cond[0]] != cond[2] {
				match = false
				break
			}
		}
		if match {
			matched = append(matched, key)
		}
	}
	if offset > 0 {
		if offset > len(matched) {
			offset = len(matched)
		}
		matched = matched[offset:]
	}
	if limit >= 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	switch cmd {
	case "count":
		return [][]byte{[]byte(strconv.Itoa(len(matched)))}, true
	case "out":
		for _, key := range matched {
			delete(s.records, key)
		}
		return nil, true
	case "get":
		var results [][]byte
		for _, key := range matched {
			item := []byte{0}
			item = append(item, key...)
			item = append(item, 0)
			item = append(item, s.records[key]...)
			results = append(results, item)
		}
		return results, true
	default:
		var results [][]byte
		for _, key := range matched {
			results = append(results, []byte(key))
		}
		return results, true
	}
}
