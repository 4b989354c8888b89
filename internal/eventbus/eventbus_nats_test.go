package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/Bayer-Group/phenex-go/internal/config"
)

// startEmbeddedNATS starts a single-node, JetStream-enabled NATS server for
// the duration of the test, exercising the nats event-bus path without an
// external broker.
func startEmbeddedNATS(t *testing.T) string {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1, // random free port
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("create embedded NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS server not ready within timeout")
	}
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func TestPublishNATSReachesSubject(t *testing.T) {
	url := startEmbeddedNATS(t)

	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("nats.Connect: %v", err)
	}
	defer conn.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := conn.Subscribe(Topic("NodeCompleted"), func(m *nats.Msg) {
		received <- m
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	conn.Flush()

	bus, err := New(config.EventBusConfig{Kind: "nats", NATSUrl: url})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus.Publish(ctx, NodeCompleted{RunID: "run-nats", NodeName: "entry", NodeClass: "CodelistPhenotype"})

	select {
	case msg := <-received:
		if len(msg.Data) == 0 {
			t.Error("expected a non-empty NATS message payload")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the event to reach its NATS subject")
	}
}
