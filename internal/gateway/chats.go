package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Geetk172/archestra/pkg/models"
)

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	chat := &models.Chat{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if err := s.stores.Chats.Create(r.Context(), chat); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"chatId": chat.ID})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.stores.Chats.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := s.stores.Chats.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}
