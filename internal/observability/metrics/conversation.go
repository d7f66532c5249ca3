// Package metrics collects conversation-level counters and exposes them in
// Prometheus text exposition format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type turnKey struct {
	handler string
	status  string
}

type handoffKey struct {
	from string
	to   string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu       sync.Mutex
	turns    map[turnKey]uint64
	handoffs map[handoffKey]uint64
	degraded map[string]uint64
	duration map[string]*histogram
}

var conv = &collector{
	turns:    make(map[turnKey]uint64),
	handoffs: make(map[handoffKey]uint64),
	degraded: make(map[string]uint64),
	duration: make(map[string]*histogram),
}

// ObserveTurn records a single handler invocation within a conversation turn.
func ObserveTurn(handler, status string, duration time.Duration) {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.turns[turnKey{handler: handler, status: status}]++

	hist := conv.duration[handler]
	if hist == nil {
		hist = newHistogram()
		conv.duration[handler] = hist
	}
	hist.observe(duration.Seconds())
}

// ObserveHandoff records a workflow transition between two handlers.
func ObserveHandoff(from, to string) {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.handoffs[handoffKey{from: from, to: to}]++
}

// ObserveDegraded records an inference call that fell back to the degraded reply.
func ObserveDegraded(handler string) {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.degraded[handler]++
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			return
		}
	}
	// Values greater than the last bucket are accounted for in the +Inf bucket via h.count.
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, conv.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type turnMetric struct {
		turnKey
		value uint64
	}
	type handoffMetric struct {
		handoffKey
		value uint64
	}
	type degradedMetric struct {
		handler string
		value   uint64
	}
	type durationMetric struct {
		handler string
		buckets []float64
		counts  []uint64
		sum     float64
		count   uint64
	}

	turns := make([]turnMetric, 0, len(c.turns))
	for key, value := range c.turns {
		turns = append(turns, turnMetric{turnKey: key, value: value})
	}
	handoffs := make([]handoffMetric, 0, len(c.handoffs))
	for key, value := range c.handoffs {
		handoffs = append(handoffs, handoffMetric{handoffKey: key, value: value})
	}
	degradeds := make([]degradedMetric, 0, len(c.degraded))
	for handler, value := range c.degraded {
		degradeds = append(degradeds, degradedMetric{handler: handler, value: value})
	}
	durations := make([]durationMetric, 0, len(c.duration))
	for handler, hist := range c.duration {
		durations = append(durations, durationMetric{
			handler: handler,
			buckets: append([]float64(nil), hist.buckets...),
			counts:  append([]uint64(nil), hist.counts...),
			sum:     hist.sum,
			count:   hist.count,
		})
	}

	sort.Slice(turns, func(i, j int) bool {
		if turns[i].handler == turns[j].handler {
			return turns[i].status < turns[j].status
		}
		return turns[i].handler < turns[j].handler
	})
	sort.Slice(handoffs, func(i, j int) bool {
		if handoffs[i].from == handoffs[j].from {
			return handoffs[i].to < handoffs[j].to
		}
		return handoffs[i].from < handoffs[j].from
	})
	sort.Slice(degradeds, func(i, j int) bool { return degradeds[i].handler < degradeds[j].handler })
	sort.Slice(durations, func(i, j int) bool { return durations[i].handler < durations[j].handler })

	var builder strings.Builder
	builder.Grow(1024)

	builder.WriteString("# HELP swifty_turns_total Total number of handler invocations.\n")
	builder.WriteString("# TYPE swifty_turns_total counter\n")
	for _, metric := range turns {
		builder.WriteString(fmt.Sprintf("swifty_turns_total{handler=\"%s\",status=\"%s\"} %d\n",
			escape(metric.handler), escape(metric.status), metric.value))
	}

	builder.WriteString("# HELP swifty_handoffs_total Total number of workflow transitions between handlers.\n")
	builder.WriteString("# TYPE swifty_handoffs_total counter\n")
	for _, metric := range handoffs {
		builder.WriteString(fmt.Sprintf("swifty_handoffs_total{from=\"%s\",to=\"%s\"} %d\n",
			escape(metric.from), escape(metric.to), metric.value))
	}

	builder.WriteString("# HELP swifty_inference_degraded_total Total number of inference calls that returned the degraded fallback.\n")
	builder.WriteString("# TYPE swifty_inference_degraded_total counter\n")
	for _, metric := range degradeds {
		builder.WriteString(fmt.Sprintf("swifty_inference_degraded_total{handler=\"%s\"} %d\n",
			escape(metric.handler), metric.value))
	}

	builder.WriteString("# HELP swifty_turn_duration_seconds Handler invocation duration in seconds.\n")
	builder.WriteString("# TYPE swifty_turn_duration_seconds histogram\n")
	for _, metric := range durations {
		for idx, bound := range metric.buckets {
			builder.WriteString(fmt.Sprintf("swifty_turn_duration_seconds_bucket{handler=\"%s\",le=\"%s\"} %d\n",
				escape(metric.handler), formatFloat(bound), metric.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("swifty_turn_duration_seconds_bucket{handler=\"%s\",le=\"+Inf\"} %d\n",
			escape(metric.handler), metric.count))
		builder.WriteString(fmt.Sprintf("swifty_turn_duration_seconds_sum{handler=\"%s\"} %s\n",
			escape(metric.handler), formatFloat(metric.sum)))
		builder.WriteString(fmt.Sprintf("swifty_turn_duration_seconds_count{handler=\"%s\"} %d\n",
			escape(metric.handler), metric.count))
	}

	return builder.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
