package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/Harsho-afk/RustyProtocols/internal/queue"
	"github.com/Harsho-afk/RustyProtocols/internal/sensor"
	"github.com/Harsho-afk/RustyProtocols/internal/store"
	"github.com/Harsho-afk/RustyProtocols/internal/tsdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	var mu sync.Mutex
	var lines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			lines = append(lines, string(b))
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := tsdb.New(context.Background(), tsdb.Config{URL: srv.URL, Org: "home", Bucket: "sensors"})
	require.NoError(t, err)
	defer sink.Close()

	topic := sensor.Topic("kitchen")
	r := &recorder{store: st, sink: sink, q: queue.New(queueSize)}
	var wg sync.WaitGroup
	wg.Add(1)
	go r.q.StartDispatcher(r.record, &wg)

	r.handle(model.PubMessage{Topic: topic, Payload: `{"temperature": 19.25, "humidity": 41.00}`}, true)
	time.Sleep(time.Millisecond)
	r.handle(model.PubMessage{Topic: topic, Payload: "not json"}, true)
	r.handle(model.PubMessage{Topic: "home/other/temperature_humidity", Payload: "{}"}, false)
	r.q.Close()
	wg.Wait()

	var stored []string
	require.NoError(t, st.Readings(topic, time.Now().Add(-time.Minute), func(_ time.Time, p []byte) error {
		stored = append(stored, string(p))
		return nil
	}))
	assert.Equal(t, []string{`{"temperature": 19.25, "humidity": 41.00}`, "not json"}, stored)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "sensor=kitchen")
	assert.Contains(t, lines[0], "temperature=19.25")
}
