package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"paper_navigator/internal/app"
	"paper_navigator/internal/chat"
	"paper_navigator/internal/loader"
)

const multipartMemory = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type sessionResponse struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
}

type uploadResponse struct {
	Saved   int    `json:"saved"`
	Message string `json:"message"`
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Status()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// handleUpload saves the multipart "files" and rebuilds the index.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.maxUpload>>20))
			return
		}
		s.writeError(w, http.StatusBadRequest, "expected multipart form with files")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	uploads := make([]app.Upload, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s", h.Filename))
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, app.Upload{Name: h.Filename, Reader: f})
	}

	s.log.Infof("Processing %d uploaded file(s)...", len(uploads))
	n, err := s.app.AddDocuments(r.Context(), uploads)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, loader.ErrUnsupportedFormat) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}

	notice := chat.UpdateNotice(n)
	s.chats.Broadcast(notice)
	s.writeJSON(w, http.StatusOK, uploadResponse{Saved: n, Message: notice})
}

// handleCreateSession starts a chat with a greeting that depends on
// whether documents exist.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.chats.Create()

	greeting := chat.EmptyMessage
	if st, err := s.app.Status(); err == nil && (st.Ready || len(st.Documents) > 0) {
		greeting = chat.WelcomeMessage
	}
	_ = s.chats.Append(id, chat.RoleAssistant, greeting)

	msgs, _ := s.chats.Messages(id)
	s.writeJSON(w, http.StatusCreated, sessionResponse{ID: id, Messages: msgs})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	msgs, err := s.chats.Messages(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: id, Messages: msgs})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.Clear(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleQuery streams the answer as server-sent events: "token" for each
// fragment, then "done" with the sources or "error".
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.chats.Messages(id); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, app.ErrEmptyQuestion.Error())
		return
	}

	if err := s.app.EnsureIndex(r.Context()); errors.Is(err, app.ErrNoIndex) {
		s.writeError(w, http.StatusConflict, chat.EmptyMessage)
		return
	} else if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stream, ok := newEventStream(w)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	_ = s.chats.Append(id, chat.RoleUser, question)

	ans, err := s.app.Query(r.Context(), question, func(tok string) error {
		return stream.send("token", map[string]string{"text": tok})
	})
	if err != nil {
		reply := fmt.Sprintf("An error occurred: %v", err)
		s.log.Errorf("❌ Query failed: %v", err)
		_ = s.chats.Append(id, chat.RoleAssistant, reply)
		_ = stream.send("error", errorResponse{Error: reply})
		return
	}

	_ = s.chats.Append(id, chat.RoleAssistant, ans.Text)
	_ = stream.send("done", ans)
}

// handleClearWorkspace deletes documents, the index and chat histories.
func (s *Server) handleClearWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		s.writeError(w, http.StatusBadRequest, "this deletes all documents and the vector database, repeat with ?confirm=true")
		return
	}
	if err := s.app.ClearWorkspace(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.chats.ClearAll()
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "All data has been deleted!"})
}

// writeJSON writes data as a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("Failed to write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
