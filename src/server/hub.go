package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *SyncServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send initial state on connect
			s.stateMutex.RLock()
			if s.latestState != nil {
				client.send <- s.filteredState(client.symbolsCopy())
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case message := <-s.broadcast:
			// Update state and broadcast
			s.stateMutex.Lock()
			s.latestState = message
			s.stateMutex.Unlock()

			for client := range s.clients {
				out := message
				if symbols := client.symbolsCopy(); len(symbols) > 0 {
					out = s.filterForSymbols(message, symbols)
				}
				select {
				case client.send <- out:
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateState replaces the cached state without waking websocket clients.
func (s *SyncServer) UpdateState(state *models.MLatestData) {
	s.stateMutex.Lock()
	state.Type = "UPDATE"
	s.latestState = state
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------

// Broadcast queues a state for the hub to cache and fan out.
func (s *SyncServer) Broadcast(state *models.MLatestData) {
	state.Type = "UPDATE"

	// Non-blocking send; the hub prunes slow clients so the queue drains,
	// but a burst beyond the buffer drops the intermediate frame.
	select {
	case s.broadcast <- state:
	default:
		s.Logger.Warning("Broadcast queue full, dropping frame")
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *SyncServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MLatestData, 256),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *SyncServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.setSymbols(cmd.Symbols)

	s.stateMutex.RLock()
	response := s.filteredState(client.symbolsCopy())
	s.stateMutex.RUnlock()

	// Use select to avoid blocking if client's send buffer is full
	select {
	case client.send <- response:
	default:
	}
}

// -----------------------------------------------------------------------------
// Response Filtering
// -----------------------------------------------------------------------------

// filteredState snapshots the cached state for one client. Callers hold the
// state mutex (read side).
func (s *SyncServer) filteredState(symbols []string) *models.MLatestData {
	out := s.filterForSymbols(s.latestState, symbols)
	out.Type = "INITIAL"
	return out
}

// -----------------------------------------------------------------------------

// filterForSymbols narrows the ticker map to the requested symbols. An empty
// filter passes everything through.
func (s *SyncServer) filterForSymbols(state *models.MLatestData, symbols []string) *models.MLatestData {
	filtered := make(map[string]models.MTicker)
	if len(symbols) == 0 {
		for k, v := range state.Tickers {
			filtered[k] = v
		}
	} else {
		for _, sym := range symbols {
			if t, ok := state.Tickers[sym]; ok {
				filtered[sym] = t
			}
		}
	}

	return &models.MLatestData{
		Type:      state.Type,
		Tickers:   filtered,
		Account:   state.Account,
		Timestamp: state.Timestamp,
		Metrics:   state.Metrics,
	}
}
