package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"moriportal/internal/client"
	"moriportal/internal/models"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	numWorkers   = 50
	testDuration = 10 * time.Second
	numArticles  = 500
)

var (
	baseURL = flag.String("api", "http://127.0.0.1:8090/make-server-92f3175c", "engagement API base URL")
	anonKey = flag.String("anon", "public-anon-key", "public anon key")
	token   = flag.String("token", "dev-token", "user access token for toggles")
)

type result struct {
	endpoint string
	latency  time.Duration
	limited  bool
	err      bool
}

type stats struct {
	count     int64
	limited   int64
	errors    int64
	latencies []time.Duration
}

type op func(ctx context.Context, c *client.Client, rng *rand.Rand) result

func main() {
	flag.Parse()

	c := client.New(client.Config{BaseURL: *baseURL, AnonKey: *anonKey, Timeout: 5 * time.Second}, zerolog.Nop())

	fmt.Println("=== MoriPortal Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Articles: %d\n\n", numWorkers, testDuration, numArticles)

	fmt.Print("Waiting for server... ")
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		if _, err := c.VisitCount(ctx); err == nil || !errors.Is(err, models.ErrNetwork) {
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Toggle-heavy (70% like/collect, 30% reads) ---")
	runPhase(ctx, c, testDuration, func(ctx context.Context, c *client.Client, rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.40:
			return doLike(ctx, c, rng)
		case r < 0.70:
			return doCollect(ctx, c, rng)
		case r < 0.85:
			return doCounts(ctx, c, models.KindLike)
		default:
			return doUserLikes(ctx, c)
		}
	})

	fmt.Println("\n--- Phase 2: Read-heavy (10% writes, 90% reads) ---")
	runPhase(ctx, c, testDuration, func(ctx context.Context, c *client.Client, rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.05:
			return doView(ctx, c, rng)
		case r < 0.10:
			return doLike(ctx, c, rng)
		case r < 0.40:
			return doCounts(ctx, c, models.KindView)
		case r < 0.65:
			return doCounts(ctx, c, models.KindLike)
		case r < 0.85:
			return doCounts(ctx, c, models.KindCollect)
		default:
			return doUserLikes(ctx, c)
		}
	})
}

func runPhase(ctx context.Context, c *client.Client, duration time.Duration, work op) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					results <- work(ctx, c, rng)
					totalOps.Inc()
				}
			}
		}(rand.Int63() + int64(i))
	}

	all := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := all[r.endpoint]
			if !ok {
				s = &stats{}
				all[r.endpoint] = s
			}
			s.count++
			switch {
			case r.limited:
				s.limited++
			case r.err:
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(all, duration)
}

func printResults(all map[string]*stats, duration time.Duration) {
	var totalOps, totalErrors int64

	endpoints := make([]string, 0, len(all))
	for ep := range all {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-26s %8s %6s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "429s", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 96))

	for _, ep := range endpoints {
		s := all[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-26s %8d %6d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.limited, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + strings.Repeat("-", 96))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(max(totalOps, 1))*100, rps)
}

func articleID(rng *rand.Rand) string {
	return "article-" + strconv.Itoa(rng.Intn(numArticles)+1)
}

func timed(endpoint string, fn func() error) result {
	start := time.Now()
	err := fn()
	r := result{endpoint: endpoint, latency: time.Since(start)}
	if err != nil {
		r.limited = strings.Contains(err.Error(), "429")
		r.err = !r.limited
	}
	return r
}

func doView(ctx context.Context, c *client.Client, rng *rand.Rand) result {
	return timed("POST /articles/{id}/view", func() error {
		_, err := c.RecordView(ctx, articleID(rng))
		return err
	})
}

func doLike(ctx context.Context, c *client.Client, rng *rand.Rand) result {
	return timed("POST /articles/{id}/like", func() error {
		_, err := c.ToggleLike(ctx, *token, articleID(rng))
		return err
	})
}

func doCollect(ctx context.Context, c *client.Client, rng *rand.Rand) result {
	return timed("POST /articles/{id}/collect", func() error {
		_, err := c.ToggleCollect(ctx, *token, articleID(rng))
		return err
	})
}

func doCounts(ctx context.Context, c *client.Client, kind models.Kind) result {
	return timed("GET counts "+string(kind), func() error {
		_, err := c.Counts(ctx, kind)
		return err
	})
}

func doUserLikes(ctx context.Context, c *client.Client) result {
	return timed("GET /articles/user-likes", func() error {
		_, err := c.UserToggles(ctx, *token, models.KindLike)
		return err
	})
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
