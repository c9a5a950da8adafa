package fakeserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goMormot/digest"
	"github.com/MrEthical07/goMormot/internal"
	"github.com/MrEthical07/goMormot/middleware"
	"github.com/google/uuid"
)

// ServiceFunc answers a method service call. The returned value is sent
// back as {"result": value}.
type ServiceFunc func(params json.RawMessage) (any, error)

// Row is one ORM record.
type Row map[string]any

// Builder configures a Server.
type Builder struct {
	root          string
	salt          string
	seed          string
	token         string
	nextSession   uint32
	users         map[string]string
	services      map[string]ServiceFunc
	tables        map[string]bool
	timestamp     func() uint64
	timestampJSON bool
}

// New returns a Builder with root model "root" and salt "salt".
func New() *Builder {
	return &Builder{
		root:        "root",
		salt:        "salt",
		nextSession: 1,
		users:       map[string]string{},
		services:    map[string]ServiceFunc{},
		tables:      map[string]bool{},
	}
}

// Root sets the root model.
func (b *Builder) Root(root string) *Builder {
	b.root = root
	return b
}

// Salt sets the salt used to hash registered passwords.
func (b *Builder) Salt(salt string) *Builder {
	b.salt = salt
	return b
}

// User registers a user with a raw password.
func (b *Builder) User(name, password string) *Builder {
	b.users[name] = digest.SHA256(b.salt + password)
	return b
}

// Seed fixes the challenge seed. Random by default.
func (b *Builder) Seed(seed string) *Builder {
	b.seed = seed
	return b
}

// Token fixes the session token. Random by default.
func (b *Builder) Token(token string) *Builder {
	b.token = token
	return b
}

// FirstSessionID sets the id of the first session handed out.
func (b *Builder) FirstSessionID(id uint32) *Builder {
	b.nextSession = id
	return b
}

// Timestamp fixes the server time-log answer.
func (b *Builder) Timestamp(fn func() uint64) *Builder {
	b.timestamp = fn
	return b
}

// TimestampJSON answers timestamp as {"result": n} instead of plain text.
func (b *Builder) TimestampJSON() *Builder {
	b.timestampJSON = true
	return b
}

// Service registers a method service reachable with POST <root>/<name>.
func (b *Builder) Service(name string, fn ServiceFunc) *Builder {
	b.services[name] = fn
	return b
}

// Table registers an empty ORM table.
func (b *Builder) Table(name string) *Builder {
	b.tables[name] = true
	return b
}

type liveSession struct {
	user       string
	privateKey uint32
}

type pendingChallenge struct {
	seed string
}

// Server is a running fake.
type Server struct {
	*httptest.Server

	cfg Builder

	mu          sync.Mutex
	nextSession uint32
	challenges  map[string]pendingChallenge
	sessions    map[uint32]liveSession
	tables      map[string]map[int64]Row
	nextRowID   map[string]int64
	requests    []Captured
	signed      http.Handler
}

// Captured is one recorded request.
type Captured struct {
	Method     string
	RequestURI string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       []byte
}

// Start launches the server and closes it when t ends.
func (b *Builder) Start(t testing.TB) *Server {
	t.Helper()
	srv := b.build()
	srv.Server = httptest.NewServer(http.HandlerFunc(srv.serveHTTP))
	t.Cleanup(srv.Close)
	return srv
}

func (b *Builder) build() *Server {
	cfg := *b
	cfg.users = copyMap(b.users)
	cfg.services = copyMap(b.services)

	s := &Server{
		cfg:         cfg,
		nextSession: b.nextSession,
		challenges:  map[string]pendingChallenge{},
		sessions:    map[uint32]liveSession{},
		tables:      map[string]map[int64]Row{},
		nextRowID:   map[string]int64{},
	}
	for name := range b.tables {
		s.tables[name] = map[int64]Row{}
	}
	s.signed = middleware.RequireSignature(s.sessionKey)(http.HandlerFunc(s.serveSigned))
	return s
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Host returns the listener host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Listener.Addr().String())
	return host
}

// Port returns the listener port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Requests returns all captured requests.
func (s *Server) Requests() []Captured {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Captured, len(s.requests))
	copy(out, s.requests)
	return out
}

// Last returns the most recent captured request.
func (s *Server) Last() Captured {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Captured{}
	}
	return s.requests[len(s.requests)-1]
}

// ActiveSessions returns the number of live server sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// PutRow stores row in table under id.
func (s *Server) PutRow(table string, id int64, row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] == nil {
		s.tables[table] = map[int64]Row{}
	}
	row = copyRow(row)
	row["ID"] = id
	s.tables[table][id] = row
	if id > s.nextRowID[table] {
		s.nextRowID[table] = id
	}
}

// Row returns a copy of one stored row.
func (s *Server) Row(table string, id int64) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tables[table][id]
	if !ok {
		return nil, false
	}
	return copyRow(row), true
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Captured{
		Method:     r.Method,
		RequestURI: r.RequestURI,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		Header:     r.Header.Clone(),
		Body:       body,
	})
	s.mu.Unlock()

	prefix := "/" + s.cfg.root + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusNotFound, "unknown root")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	q := r.URL.Query()

	switch {
	case rest == "timestamp":
		s.handleTimestamp(w)
		return
	case rest == "Auth" && q.Get("Session") == "" && q.Get("Password") == "":
		s.handleChallenge(w, q)
		return
	case rest == "Auth" && q.Get("Password") != "":
		s.handleCredentials(w, q)
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	s.signed.ServeHTTP(w, r)
}

func (s *Server) handleTimestamp(w http.ResponseWriter) {
	var ts uint64
	if s.cfg.timestamp != nil {
		ts = s.cfg.timestamp()
	} else {
		ts = internal.TimeLog(time.Now())
	}
	if s.cfg.timestampJSON {
		writeJSON(w, http.StatusOK, map[string]any{"result": ts})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	fmt.Fprint(w, ts)
}

func (s *Server) handleChallenge(w http.ResponseWriter, q url.Values) {
	user := q.Get("UserName")
	seed := s.cfg.seed
	if seed == "" {
		seed = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	s.mu.Lock()
	s.challenges[user] = pendingChallenge{seed: seed}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"result": seed})
}

func (s *Server) handleCredentials(w http.ResponseWriter, q url.Values) {
	user := q.Get("UserName")

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[user]
	pwDigest, known := s.cfg.users[user]
	if !ok || !known {
		writeError(w, http.StatusForbidden, "Authentication Failed: Unknown user")
		return
	}
	delete(s.challenges, user)

	want := digest.SHA256(s.cfg.root + ch.seed + q.Get("ClientNonce") + user + pwDigest)
	if q.Get("Password") != want {
		writeError(w, http.StatusForbidden, "Authentication Failed: Invalid password")
		return
	}

	token := s.cfg.token
	if token == "" {
		token = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	id := s.nextSession
	s.nextSession++
	s.sessions[id] = liveSession{
		user:       user,
		privateKey: digest.CRC32Seed(pwDigest, digest.CRC32Seed(token, 0)),
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result":    strconv.FormatUint(uint64(id), 10) + "+" + token,
		"logonid":   id,
		"logonname": user,
	})
}

func (s *Server) sessionKey(id uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess.privateKey, ok
}

func (s *Server) serveSigned(w http.ResponseWriter, r *http.Request) {
	tok, _ := middleware.TokenFromContext(r.Context())
	s.mu.Lock()
	sess := s.sessions[tok.SessionID]
	s.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	rest := strings.TrimPrefix(r.URL.Path, "/"+s.cfg.root+"/")
	q := r.URL.Query()

	switch {
	case rest == "Auth":
		s.handleLogout(w, q, sess, tok.SessionID)
	case r.Method == http.MethodPost && s.hasService(rest):
		s.handleService(w, rest, body)
	default:
		s.handleORM(w, r.Method, rest, q, body)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, q url.Values, sess liveSession, sessionID uint32) {
	if q.Get("Session") != strconv.FormatUint(uint64(sessionID), 10) || q.Get("UserName") != sess.user {
		writeError(w, http.StatusBadRequest, "session mismatch")
		return
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) hasService(name string) bool {
	_, ok := s.cfg.services[name]
	return ok
}

func (s *Server) handleService(w http.ResponseWriter, name string, body []byte) {
	result, err := s.cfg.services[name](json.RawMessage(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleORM(w http.ResponseWriter, method, rest string, q url.Values, body []byte) {
	table, idPart, hasID := strings.Cut(rest, "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown table "+table)
		return
	}

	var id int64
	if hasID {
		n, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		id = n
	}

	switch method {
	case http.MethodGet:
		if hasID {
			row, ok := rows[id]
			if !ok {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeJSON(w, http.StatusOK, projectRow(row, q.Get("select")))
			return
		}
		match, err := parseWhere(q.Get("where"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out := []Row{}
		for _, rid := range sortedIDs(rows) {
			if match(rows[rid]) {
				out = append(out, projectRow(rows[rid], q.Get("select")))
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": out})

	case http.MethodPost:
		var row Row
		if err := json.Unmarshal(body, &row); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		s.nextRowID[table]++
		newID := s.nextRowID[table]
		row["ID"] = newID
		rows[newID] = row
		w.Header().Set("Location", table+"/"+strconv.FormatInt(newID, 10))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)

	case http.MethodPut:
		if hasID {
			row, ok := rows[id]
			if !ok {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			var patch Row
			if err := json.Unmarshal(body, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "invalid body")
				return
			}
			for k, v := range patch {
				row[k] = v
			}
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		setNames, setVals := q["setname"], q["set"]
		whereNames, whereVals := q["wherename"], q["where"]
		if len(setNames) == 0 || len(setNames) != len(setVals) || len(whereNames) != len(whereVals) {
			writeError(w, http.StatusBadRequest, "invalid update")
			return
		}
		for _, rid := range sortedIDs(rows) {
			row := rows[rid]
			if !matchAll(row, whereNames, whereVals) {
				continue
			}
			for i, name := range setNames {
				row[name] = setVals[i]
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{})

	case http.MethodDelete:
		if hasID {
			if _, ok := rows[id]; !ok {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			delete(rows, id)
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		match, err := parseWhere(q.Get("where"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, rid := range sortedIDs(rows) {
			if match(rows[rid]) {
				delete(rows, rid)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func sortedIDs(rows map[int64]Row) []int64 {
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func projectRow(row Row, sel string) Row {
	if sel == "" || sel == "*" {
		return copyRow(row)
	}
	out := Row{}
	for _, f := range strings.Split(sel, ",") {
		f = strings.TrimSpace(f)
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

// parseWhere understands "" and a single "Field=value" or "Field='value'".
func parseWhere(where string) (func(Row) bool, error) {
	if strings.TrimSpace(where) == "" {
		return func(Row) bool { return true }, nil
	}
	field, value, ok := strings.Cut(where, "=")
	if !ok {
		return nil, fmt.Errorf("unsupported where clause %q", where)
	}
	field = strings.TrimSpace(field)
	value = strings.Trim(strings.TrimSpace(value), "'")
	return func(r Row) bool {
		return valueEquals(r[field], value)
	}, nil
}

func matchAll(row Row, names, vals []string) bool {
	for i, name := range names {
		if !valueEquals(row[name], vals[i]) {
			return false
		}
	}
	return true
}

func valueEquals(v any, want string) bool {
	if v == nil {
		return false
	}
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64) == want
	case int64:
		return strconv.FormatInt(n, 10) == want
	default:
		return fmt.Sprint(v) == want
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, text string) {
	writeJSON(w, code, map[string]any{
		"errorCode": code,
		"errorText": text,
	})
}
