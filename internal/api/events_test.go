package api

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/ykovtun/declsync/internal/bus"
)

func TestStreamEventsDeliversAndFilters(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/v1/events?ns=job.", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	// The handler subscribes some time after the request is sent, so keep
	// publishing until the stream yields something.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				env.bus.Publish(bus.Event{Kind: bus.KindDeclUpserted, Payload: map[string]string{"declaration_id": "d1"}})
				env.bus.Publish(bus.Event{Kind: bus.KindJobStarted, Payload: map[string]string{"job_id": "j1"}})
			}
		}
	}()

	var eventLine, dataLine string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}
	if dataLine == "" {
		t.Fatalf("no data line received: %v", sc.Err())
	}

	// decl.* is published first every tick; receiving job.started first
	// proves the namespace filter held.
	if eventLine != "event: "+bus.KindJobStarted {
		t.Errorf("event line = %q, want job.started", eventLine)
	}
	var evt struct {
		Kind      string            `json:"kind"`
		Timestamp int64             `json:"timestamp"`
		Payload   map[string]string `json:"payload"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Kind != bus.KindJobStarted {
		t.Errorf("kind = %q, want %q", evt.Kind, bus.KindJobStarted)
	}
	if evt.Payload["job_id"] != "j1" {
		t.Errorf("payload = %v, want job_id j1", evt.Payload)
	}
	if evt.Timestamp == 0 {
		t.Error("timestamp not stamped")
	}
}
