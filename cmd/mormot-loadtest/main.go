// Command mormot-loadtest measures the client-side hot paths of many
// concurrent mORMot sessions: signing, signature verification, Redis
// session loads and signed HTTP round trips through SigningTransport.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/MrEthical07/goMormot/middleware"
	"github.com/MrEthical07/goMormot/session"
	"github.com/MrEthical07/goMormot/signature"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		httpOps     = flag.Int("http-ops", 20000, "operations for the http phase, 0 skips it")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, MORMOT_REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "mormot-load", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *httpOps < 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency and ops must be > 0")
		os.Exit(2)
	}

	rdb, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()
	store := session.NewStore(rdb, *prefix, false)
	pool, err := seed(ctx, store, *sessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	phases := []phase{
		{name: "sign", ops: *ops, fn: func(r *rand.Rand, i int) error {
			st := pool.pick(r)
			signed := signature.Sign("root/People?select=ID,Name&where=ID%3D"+strconv.Itoa(i), st.Key(), pool.elapsed())
			if len(signed) == 0 {
				return fmt.Errorf("empty signed url")
			}
			return nil
		}},
		{name: "verify", ops: *ops, fn: func(r *rand.Rand, _ int) error {
			st := pool.pick(r)
			tok, err := signature.Verify(signature.Sign("root/People", st.Key(), pool.elapsed()), st.PrivateKey)
			if err != nil {
				return err
			}
			if tok.SessionID != st.SessionID {
				return fmt.Errorf("session id mismatch")
			}
			return nil
		}},
		{name: "redis-load", ops: *ops, fn: func(r *rand.Rand, _ int) error {
			idx := r.Intn(len(pool.states))
			st, err := store.Load(ctx, sessionName(idx), 0)
			if err != nil {
				return err
			}
			if st.PrivateKey != pool.states[idx].PrivateKey {
				return fmt.Errorf("private key mismatch")
			}
			return nil
		}},
	}

	if *httpOps > 0 {
		srv := httptest.NewServer(middleware.RequireSignature(pool.key)(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json; charset=UTF-8")
				_, _ = io.WriteString(w, `{"result":[]}`)
			})))
		defer srv.Close()

		phases = append(phases, phase{name: "http-signed", ops: *httpOps, fn: func(r *rand.Rand, _ int) error {
			return pool.roundTrip(srv.URL, r)
		}})
	}

	results := make([]phaseStats, len(phases))
	for i, p := range phases {
		results[i] = p.run(*concurrency)
	}
	printStats(os.Stdout, phases, results)
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("MORMOT_REDIS_ADDR")
	}
	if addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return rdb, func() { _ = rdb.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}, nil
}

// sessionPool holds the seeded sessions. All share one start time, so the
// signature nonce is the time since seeding.
type sessionPool struct {
	states  []session.State
	byID    map[uint32]uint32
	started time.Time
	client  *http.Client
}

func seed(ctx context.Context, store *session.Store, n int) (*sessionPool, error) {
	p := &sessionPool{
		states:  make([]session.State, n),
		byID:    make(map[uint32]uint32, n),
		started: time.Now(),
		client:  &http.Client{Timeout: 10 * time.Second},
	}

	fmt.Printf("seeding %d sessions...\n", n)
	for i := range p.states {
		id := uint32(i + 1)
		p.states[i] = session.State{
			SessionID:     id,
			SessionIDHex8: signature.Hex8(id),
			PrivateKey:    uint32(i)*2654435761 + 0x9e3779b9,
			StartedAt:     p.started,
			UserName:      "user" + strconv.Itoa(i),
		}
		p.byID[id] = p.states[i].PrivateKey
		if err := store.Save(ctx, sessionName(i), &p.states[i], 24*time.Hour); err != nil {
			return nil, err
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(p.started).Round(time.Millisecond))
	return p, nil
}

func (p *sessionPool) pick(r *rand.Rand) session.State {
	return p.states[r.Intn(len(p.states))]
}

func (p *sessionPool) elapsed() time.Duration {
	return time.Since(p.started)
}

func (p *sessionPool) key(id uint32) (uint32, bool) {
	k, ok := p.byID[id]
	return k, ok
}

// stateSigner lets one seeded session act as a middleware.Signer.
type stateSigner struct {
	pool  *sessionPool
	state session.State
}

func (s stateSigner) Sign(url string) string {
	return signature.Sign(url, s.state.Key(), s.pool.elapsed())
}

func (p *sessionPool) roundTrip(base string, r *rand.Rand) error {
	c := *p.client
	c.Transport = middleware.NewSigningTransport(stateSigner{pool: p, state: p.pick(r)}, nil)

	resp, err := c.Get(base + "/root/People?select=ID")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

type phase struct {
	name string
	ops  int
	fn   func(r *rand.Rand, i int) error
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

// run spreads p.ops calls over workers and collects per-call latencies.
func (p phase) run(workers int) phaseStats {
	var (
		wg        sync.WaitGroup
		next      atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, p.ops)
	)

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			local := make([]time.Duration, 0, p.ops/workers+1)
			for {
				i := int(next.Add(1)) - 1
				if i >= p.ops {
					break
				}
				t0 := time.Now()
				if err := p.fn(r, i); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(start.UnixNano() + int64(w)*7919)
	}
	wg.Wait()

	s := phaseStats{total: time.Since(start), ops: len(latencies), failures: failures.Load()}
	if len(latencies) == 0 {
		return s
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	s.p50 = percentile(latencies, 50)
	s.p95 = percentile(latencies, 95)
	s.p99 = percentile(latencies, 99)
	return s
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

func printStats(w io.Writer, phases []phase, stats []phaseStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tops\tfailures\ttotal\tops/sec\tp50\tp95\tp99\t")
	for i, s := range stats {
		var rate float64
		if s.total > 0 {
			rate = float64(s.ops) / s.total.Seconds()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.0f\t%s\t%s\t%s\t\n",
			phases[i].name,
			s.ops,
			s.failures,
			s.total.Round(time.Millisecond),
			rate,
			s.p50.Round(time.Microsecond),
			s.p95.Round(time.Microsecond),
			s.p99.Round(time.Microsecond),
		)
	}
	_ = tw.Flush()
}

func sessionName(i int) string {
	return "worker-" + strconv.Itoa(i)
}
