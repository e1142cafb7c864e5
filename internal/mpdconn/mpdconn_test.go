package mpdconn_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"aria/internal/batcher"
	"aria/internal/config"
	"aria/internal/events"
	"aria/internal/logging"
	"aria/internal/mpdconn"
	"aria/internal/testsupport"
)

// fakeMPD speaks just enough of the MPD protocol for the adapter: greeting,
// ping, currentsong, idle/noidle, and an ACK for configured commands.
type fakeMPD struct {
	listener net.Listener

	mu         sync.Mutex
	song       map[string]string
	failPrefix string
	commands   []string
	idle       chan struct{}
}

func newFakeMPD(t *testing.T) *fakeMPD {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := &fakeMPD{
		listener: listener,
		song:     map[string]string{},
		idle:     make(chan struct{}, 8),
	}
	go server.acceptLoop()
	t.Cleanup(func() { _ = listener.Close() })
	return server
}

func (s *fakeMPD) hostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portText, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func (s *fakeMPD) setSong(attrs map[string]string) {
	s.mu.Lock()
	s.song = attrs
	s.mu.Unlock()
	select {
	case s.idle <- struct{}{}:
	default:
	}
}

func (s *fakeMPD) setFailPrefix(prefix string) {
	s.mu.Lock()
	s.failPrefix = prefix
	s.mu.Unlock()
}

func (s *fakeMPD) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *fakeMPD) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *fakeMPD) serve(conn net.Conn) {
	defer conn.Close()
	if _, err := fmt.Fprintf(conn, "OK MPD 0.23.5\n"); err != nil {
		return
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for line := range lines {
		switch {
		case line == "ping":
			fmt.Fprintf(conn, "OK\n")
		case line == "currentsong":
			s.mu.Lock()
			for key, value := range s.song {
				fmt.Fprintf(conn, "%s: %s\n", key, value)
			}
			s.mu.Unlock()
			fmt.Fprintf(conn, "OK\n")
		case strings.HasPrefix(line, "idle"):
			select {
			case <-s.idle:
				fmt.Fprintf(conn, "changed: player\nOK\n")
			case next, ok := <-lines:
				if !ok {
					return
				}
				if next == "noidle" {
					fmt.Fprintf(conn, "OK\n")
				}
			}
		case line == "noidle":
			fmt.Fprintf(conn, "OK\n")
		case line == "close":
			return
		default:
			s.mu.Lock()
			s.commands = append(s.commands, line)
			fail := s.failPrefix != "" && strings.HasPrefix(line, s.failPrefix)
			s.mu.Unlock()
			if fail {
				fmt.Fprintf(conn, "ACK [50@0] {%s} no such song\n", strings.Fields(line)[0])
			} else {
				fmt.Fprintf(conn, "OK\n")
			}
		}
	}
}

func newClient(t *testing.T, server *fakeMPD) (*mpdconn.Client, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.MPD.Host, cfg.MPD.Port = server.hostPort(t)
	client := mpdconn.NewClient(cfg, logging.NewNop())
	t.Cleanup(func() { _ = client.Close() })
	return client, cfg
}

func TestPing(t *testing.T) {
	server := newFakeMPD(t)
	client, _ := newClient(t, server)

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSubmitReportsOutcomesPositionally(t *testing.T) {
	server := newFakeMPD(t)
	server.setFailPrefix("add missing")
	client, _ := newClient(t, server)

	outcomes, err := client.Submit(context.Background(), []batcher.Command{
		{Name: "add", Args: []string{"ok.flac"}},
		{Name: "add", Args: []string{"missing.flac"}},
		{Name: "play"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Errorf("expected first command to succeed, got %v", outcomes[0].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("expected middle command to fail")
	}
	if outcomes[2].Err != nil {
		t.Errorf("expected command after the failure to run, got %v", outcomes[2].Err)
	}

	recorded := server.recorded()
	if len(recorded) != 3 || !strings.HasPrefix(recorded[0], "add") || recorded[2] != "play" {
		t.Errorf("unexpected command order %v", recorded)
	}
}

func TestSubmitThroughBatcher(t *testing.T) {
	server := newFakeMPD(t)
	client, _ := newClient(t, server)

	b := batcher.New(client, 5*time.Millisecond, logging.NewNop())
	defer b.Close()

	if err := b.Do(context.Background(), batcher.Command{Name: "play"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestSubmitFailsWhenDaemonUnreachable(t *testing.T) {
	server := newFakeMPD(t)
	client, _ := newClient(t, server)
	_ = server.listener.Close()

	_, err := client.Submit(context.Background(), []batcher.Command{{Name: "play"}})
	if err == nil {
		t.Fatal("expected transport error with the daemon down")
	}
}

func TestTrackFeedPublishesChangesAndHistory(t *testing.T) {
	server := newFakeMPD(t)
	server.mu.Lock()
	server.song = map[string]string{
		"file":   "albums/ok_computer/airbag.flac",
		"Album":  "OK Computer",
		"Artist": "Radiohead",
	}
	server.mu.Unlock()

	client, cfg := newClient(t, server)
	store := testsupport.MustOpenStore(t, cfg)
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	feed := mpdconn.NewTrackFeed(client, store, bus, logging.NewNop())
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer feed.Stop()

	waitTrack := func(want string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case event := <-ch:
				if event.Type == events.TypeTrackChanged && event.URI == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for track change to %s", want)
			}
		}
	}

	waitTrack("albums/ok_computer/airbag.flac")

	server.setSong(map[string]string{
		"file":   "albums/ok_computer/let_down.flac",
		"Album":  "OK Computer",
		"Artist": "Radiohead",
	})
	waitTrack("albums/ok_computer/let_down.flac")

	// Both transitions should be recorded in the listening history.
	deadline := time.Now().Add(3 * time.Second)
	for {
		songs, err := store.RecentSongs(context.Background(), 10)
		if err != nil {
			t.Fatalf("RecentSongs: %v", err)
		}
		if len(songs) == 2 {
			if songs[0] != "albums/ok_computer/let_down.flac" {
				t.Errorf("expected newest song first, got %v", songs)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 history rows, got %v", songs)
		}
		time.Sleep(10 * time.Millisecond)
	}

	albums, err := store.RecentAlbums(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentAlbums: %v", err)
	}
	if len(albums) != 1 || albums[0] != "OK Computer" {
		t.Errorf("unexpected recent albums %v", albums)
	}
}

func TestTrackFeedIgnoresRepeatedObservations(t *testing.T) {
	server := newFakeMPD(t)
	server.mu.Lock()
	server.song = map[string]string{"file": "song.flac"}
	server.mu.Unlock()

	client, cfg := newClient(t, server)
	store := testsupport.MustOpenStore(t, cfg)
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	feed := mpdconn.NewTrackFeed(client, store, bus, logging.NewNop())
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer feed.Stop()

	select {
	case event := <-ch:
		if event.URI != "song.flac" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected initial track event")
	}

	// Same song again: a player event without a URI change stays silent.
	server.setSong(map[string]string{"file": "song.flac"})
	select {
	case event := <-ch:
		t.Fatalf("expected no duplicate event, got %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
