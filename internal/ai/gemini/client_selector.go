package gemini

import (
	"fmt"
	"log/slog"
	"sync"
)

// GeminiClientSelector rotates requests across multiple API keys and
// fails over to the remaining clients when one key errors or is rate
// limited.
type GeminiClientSelector struct {
	clients      []GeminiClient
	currentIndex int
	mutex        sync.Mutex
}

func NewGeminiClientSelector(clients []GeminiClient) *GeminiClientSelector {
	return &GeminiClientSelector{clients: clients}
}

// GetNextClient returns the next client in round-robin order.
func (s *GeminiClientSelector) GetNextClient() (*GeminiClient, int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.clients) == 0 {
		return nil, -1
	}

	client := &s.clients[s.currentIndex]
	index := s.currentIndex
	s.currentIndex = (s.currentIndex + 1) % len(s.clients)

	return client, index
}

func (s *GeminiClientSelector) GetClientCount() int {
	return len(s.clients)
}

// TryAllClients attempts the operation with each client until one
// succeeds. Per-client failures are logged and absorbed; the combined
// failure is returned only when every client has been exhausted.
func (s *GeminiClientSelector) TryAllClients(operation func(*GeminiClient, int) error) error {
	clientCount := s.GetClientCount()
	if clientCount == 0 {
		return fmt.Errorf("no Gemini clients available")
	}

	var lastErr error
	for attempt := 0; attempt < clientCount; attempt++ {
		client, clientIdx := s.GetNextClient()

		err := operation(client, clientIdx)
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn("Gemini API request failed, trying next client",
			"client_index", clientIdx,
			"attempt", attempt+1,
			"total_clients", clientCount,
			"error", err)
	}

	slog.Error("All Gemini clients exhausted", "total_attempts", clientCount)
	return fmt.Errorf("all %d Gemini clients failed, last error: %w", clientCount, lastErr)
}
