package testutil

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
)

const DefaultStubAddr = ":9801"

// StubDirectory fakes the staff and rooms services on a fixed address so
// the reservations service under test can resolve its external guards.
// Point STAFF_SERVICE_URL and ROOMS_SERVICE_URL at it.
type StubDirectory struct {
	server *http.Server

	mu           sync.Mutex
	busySurgeons map[string]string
	downRooms    map[string]bool
}

// StartStubDirectory starts the stub in a background goroutine. Call Stop
// when the suite is done.
func StartStubDirectory(addr string) *StubDirectory {
	if addr == "" {
		addr = DefaultStubAddr
	}

	stub := &StubDirectory{
		busySurgeons: map[string]string{},
		downRooms:    map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/staff/", stub.handleStaff)
	mux.HandleFunc("/api/v1/operating-rooms/", stub.handleRooms)

	stub.server = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := stub.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("stub directory stopped: %v", err)
		}
	}()

	return stub
}

func (s *StubDirectory) Stop() {
	_ = s.server.Close()
}

// SetSurgeonBusy makes availability checks for the surgeon fail with the
// given reason. Empty reason clears the flag.
func (s *StubDirectory) SetSurgeonBusy(surgeonID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == "" {
		delete(s.busySurgeons, surgeonID)
		return
	}
	s.busySurgeons[surgeonID] = reason
}

// SetRoomDown marks the room inactive for usability checks.
func (s *StubDirectory) SetRoomDown(roomID string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !down {
		delete(s.downRooms, roomID)
		return
	}
	s.downRooms[roomID] = true
}

func (s *StubDirectory) handleStaff(w http.ResponseWriter, r *http.Request) {
	// Path shape: /api/v1/staff/<id>/availability
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/staff/"), "/")
	if len(parts) != 2 || parts[1] != "availability" {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	reason, busy := s.busySurgeons[parts[0]]
	s.mu.Unlock()

	writeStubJSON(w, map[string]any{
		"data": map[string]any{
			"available": !busy,
			"reason":    reason,
		},
	})
}

func (s *StubDirectory) handleRooms(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimPrefix(r.URL.Path, "/api/v1/operating-rooms/")
	if roomID == "" || strings.Contains(roomID, "/") {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	down := s.downRooms[roomID]
	s.mu.Unlock()

	writeStubJSON(w, map[string]any{
		"data": map[string]any{
			"is_active":      !down,
			"is_maintenance": false,
		},
	})
}

func writeStubJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
