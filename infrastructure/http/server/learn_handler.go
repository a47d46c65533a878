package server

import (
	"context"
	"interest-chat/auth"
	"interest-chat/domain/chat"
	"interest-chat/domain/learn"
	"interest-chat/errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// ContentManager edits the learn content tree.
type ContentManager interface {
	CreateCategory(ctx context.Context, name string) (learn.Category, error)
	AddSubCategory(ctx context.Context, categoryID, name string) (learn.SubCategory, error)
	AddTopic(ctx context.Context, categoryID, subCategoryID, name string) (learn.Topic, error)
	AddEntry(ctx context.Context, categoryID, subCategoryID, topicID, title, body string) (learn.Entry, error)
	DeleteEntry(ctx context.Context, ref chat.EntryRef) error
	ListCategories(ctx context.Context) ([]learn.Category, error)
}

type nameRequest struct {
	Name string `json:"name"`
}

type entryRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type entryView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type topicView struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Entries []entryView `json:"entries"`
}

type subCategoryView struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Topics []topicView `json:"topics"`
}

type categoryView struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	SubCategories []subCategoryView `json:"subCategories"`
}

func toEntryView(e learn.Entry) entryView {
	return entryView{ID: e.ID, Title: e.Title, Body: e.Body, CreatedAt: e.CreatedAt}
}

func toTopicView(t learn.Topic) topicView {
	return topicView{ID: t.ID, Name: t.Name, Entries: lo.Map(t.Entries, func(e learn.Entry, _ int) entryView {
		return toEntryView(e)
	})}
}

func toSubCategoryView(s learn.SubCategory) subCategoryView {
	return subCategoryView{ID: s.ID, Name: s.Name, Topics: lo.Map(s.Topics, func(t learn.Topic, _ int) topicView {
		return toTopicView(t)
	})}
}

func toCategoryView(c learn.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, SubCategories: lo.Map(c.SubCategories, func(s learn.SubCategory, _ int) subCategoryView {
		return toSubCategoryView(s)
	})}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.content.ListCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", lo.Map(categories, func(c learn.Category, _ int) categoryView { return toCategoryView(c) }))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !s.decodeAuthenticated(w, r, &req) {
		return
	}
	category, err := s.content.CreateCategory(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Category created successfully", toCategoryView(category))
}

func (s *Server) handleAddSubCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !s.decodeAuthenticated(w, r, &req) {
		return
	}
	sub, err := s.content.AddSubCategory(r.Context(), chi.URLParam(r, "categoryID"), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Sub category created successfully", toSubCategoryView(sub))
}

func (s *Server) handleAddTopic(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !s.decodeAuthenticated(w, r, &req) {
		return
	}
	topic, err := s.content.AddTopic(r.Context(), chi.URLParam(r, "categoryID"), chi.URLParam(r, "subCategoryID"), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Topic created successfully", toTopicView(topic))
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !s.decodeAuthenticated(w, r, &req) {
		return
	}
	entry, err := s.content.AddEntry(r.Context(),
		chi.URLParam(r, "categoryID"), chi.URLParam(r, "subCategoryID"), chi.URLParam(r, "topicID"),
		req.Title, req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Entry created successfully", toEntryView(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if _, authenticated := auth.UserIDFromContext(r.Context()); !authenticated {
		s.fail(w, r, errors.ErrUnauthenticated)
		return
	}
	err := s.content.DeleteEntry(r.Context(), chat.EntryRef{
		CategoryID:    chi.URLParam(r, "categoryID"),
		SubCategoryID: chi.URLParam(r, "subCategoryID"),
		TopicID:       chi.URLParam(r, "topicID"),
		EntryID:       chi.URLParam(r, "entryID"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Entry deleted successfully", nil)
}

// decodeAuthenticated guards the content edits: anonymous callers can read the tree but not change it.
func (s *Server) decodeAuthenticated(w http.ResponseWriter, r *http.Request, dst any) bool {
	if _, authenticated := auth.UserIDFromContext(r.Context()); !authenticated {
		s.fail(w, r, errors.ErrUnauthenticated)
		return false
	}
	if err := decode(w, r, dst); err != nil {
		s.fail(w, r, err)
		return false
	}
	return true
}
