package workflow

import (
	"encoding/json"
	"fmt"
)

// stateVersion is bumped whenever ConversationState changes shape.
const stateVersion = 1

// Position marks where a suspended conversation resumes.
type Position string

// PositionAwaitingFeedback resumes at intent detection with the user's answer.
const PositionAwaitingFeedback Position = "awaiting_feedback"

// ConversationState is everything needed to resume a suspended conversation.
type ConversationState struct {
	Version     int      `json:"version"`
	ChatHistory []string `json:"chat_history"`
	Iterations  int      `json:"iterations"`
	Position    Position `json:"position"`
}

func newState(query string) *ConversationState {
	s := &ConversationState{Version: stateVersion}
	s.addUser(query)
	return s
}

func (s *ConversationState) addUser(msg string) {
	s.ChatHistory = append(s.ChatHistory, "User: "+msg)
}

func (s *ConversationState) addAssistant(msg string) {
	s.ChatHistory = append(s.ChatHistory, "Assistant: "+msg)
}

func encodeState(s *ConversationState) ([]byte, error) {
	return json.Marshal(s)
}

func decodeState(b []byte) (*ConversationState, error) {
	var s ConversationState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	if s.Version != stateVersion {
		return nil, fmt.Errorf("unsupported conversation state version %d", s.Version)
	}
	if s.Position != PositionAwaitingFeedback {
		return nil, fmt.Errorf("unsupported resume position %q", s.Position)
	}
	return &s, nil
}
