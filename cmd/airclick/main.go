package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/ayusman/airclick/internal/cache"
	"github.com/ayusman/airclick/internal/config"
	"github.com/ayusman/airclick/internal/session"
	"github.com/ayusman/airclick/internal/store"
	"github.com/ayusman/airclick/internal/transport"
	"github.com/ayusman/airclick/internal/tray"
)

func main() {
	fmt.Println("AirClick - Hand Gesture Cursor Control")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".airclick")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "airclick.db")
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	cfgPath := filepath.Join(dataDir, "config.toml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var enabled atomic.Bool
	enabled.Store(true)

	sharedCache := cache.New(cache.DefaultTTL)
	t := tray.New()

	factory := func(userID, appContext string, sink session.EventSink) (*session.Session, error) {
		return session.New(userID, appContext, cfg.ToSessionConfig(), sharedCache, &traySink{inner: sink, tray: t}, st, authAlwaysTrue, 1920, 1080), nil
	}

	handler := transport.NewHandler(factory)
	handler.Enabled = enabled.Load

	mux := http.NewServeMux()
	mux.Handle("/ws/landmarks", handler)

	t.OnToggle(func(on bool) {
		enabled.Store(on)
		log.Printf("airclick: recognition %s via tray", enabledLabel(on))
	})
	t.OnSettings(func() {
		log.Printf("airclick: open settings at %s", cfgPath)
	})
	t.OnQuit(func() {
		log.Println("airclick: quit requested from tray")
		syscallSelfTerm()
	})

	addr := ":8765"
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		fmt.Printf("Listening on %s\n", addr)
		fmt.Printf("Connect a companion app to ws://localhost%s/ws/landmarks?user_id=<id>&app_context=<ctx>\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	go t.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	srv.Close()
}

// traySink forwards every session event to the real sink unchanged while
// also reflecting the pipeline's live activity on the tray icon, so the
// tray need not hold a direct reference to any particular user's Session.
type traySink struct {
	inner session.EventSink
	tray  *tray.Tray
}

func (s *traySink) EmitCursorMove(ev session.CursorMoveEvent) {
	s.inner.EmitCursorMove(ev)
	s.tray.SetCursorState("cursor")
}

func (s *traySink) EmitClick(ev session.ClickEvent) {
	s.inner.EmitClick(ev)
	s.tray.SetCursorState("click:" + ev.Kind)
}

func (s *traySink) EmitGestureMatch(ev session.GestureMatchEvent) {
	s.inner.EmitGestureMatch(ev)
	if ev.Matched {
		s.tray.SetLastGesture(ev.Name)
	}
	s.tray.SetCursorState("idle")
}

func authAlwaysTrue() bool { return true }

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func syscallSelfTerm() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	p.Signal(syscall.SIGTERM)
}
