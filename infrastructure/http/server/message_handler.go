package server

import (
	"interest-chat/auth"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type sendMessageRequest struct {
	InterestID string `json:"interestId"`
	Message    string `json:"message"`
}

type shareEntryRequest struct {
	InterestID     string `json:"interestId"`
	Message        string `json:"message"`
	MainCategoryID string `json:"mainCategoryId"`
	SubCategoryID  string `json:"subCategoryId"`
	TopicID        string `json:"topicId"`
	EntryID        string `json:"entryId"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, false, "Message sent successfully")
}

func (s *Server) handleSendImportant(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, true, "Important message sent successfully")
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, important bool, message string) {
	var req sendMessageRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	view, err := s.dispatch.SendMessage(r.Context(), chat.SendMessageCommand{
		InterestID: chat.InterestID(req.InterestID),
		UserID:     userID,
		Body:       req.Message,
		Important:  important,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, message, view)
}

func (s *Server) handleShareEntry(w http.ResponseWriter, r *http.Request) {
	var req shareEntryRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	view, err := s.dispatch.ShareEntry(r.Context(), chat.ShareEntryCommand{
		InterestID:    chat.InterestID(req.InterestID),
		UserID:        userID,
		Body:          req.Message,
		CategoryID:    req.MainCategoryID,
		SubCategoryID: req.SubCategoryID,
		TopicID:       req.TopicID,
		EntryID:       req.EntryID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Entry shared successfully", view)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	number, size, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	page, err := s.dispatch.ListMessages(r.Context(), chat.ListMessagesQuery{
		InterestID: chat.InterestID(chi.URLParam(r, "interestID")),
		UserID:     userID,
		Page:       number,
		PageSize:   size,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", page)
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	number, size, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	page, err := s.dispatch.SearchMessages(r.Context(), chat.SearchMessagesQuery{
		InterestID: chat.InterestID(chi.URLParam(r, "interestID")),
		UserID:     userID,
		Terms:      r.URL.Query().Get("q"),
		Page:       number,
		PageSize:   size,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", page)
}

func (s *Server) handleMemberCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	view, err := s.dispatch.MemberCount(r.Context(), chat.InterestID(chi.URLParam(r, "interestID")), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", view)
}

// pageParams reads page and limit. Absent values are left to the service defaults.
func pageParams(r *http.Request) (int, int, error) {
	number, err := intParam(r, "page")
	if err != nil {
		return 0, 0, err
	}
	size, err := intParam(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	return number, size, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, errors.ErrInvalidPagination
	}
	return v, nil
}
