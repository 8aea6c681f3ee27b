package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

// CatalogHandler serves CRUD for the user-owned catalog resources: languages,
// voices, topics and accounts. Every operation is scoped to the authenticated
// user; rows owned by someone else read as absent.
type CatalogHandler struct {
	catalog interfaces.CatalogStorage
	logger  arbor.ILogger
}

func NewCatalogHandler(catalog interfaces.CatalogStorage) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  common.GetLogger(),
	}
}

// ownerQuery scopes a list query to the authenticated user.
func ownerQuery(r *http.Request) interfaces.Query {
	return interfaces.Query{
		Filters: []interfaces.Filter{{Field: "user_id", Op: interfaces.OpEq, Value: UserID(r)}},
		Order:   []interfaces.Order{{Field: "created_at", Descending: true}},
		Page:    PageParams(r),
	}
}

// Languages

func (h *CatalogHandler) ListLanguagesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	query := ownerQuery(r)
	languages, err := h.catalog.ListLanguages(r.Context(), query)
	if err != nil {
		WriteStorageError(w, err, "languages")
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: languages, Page: query.Page.Number, PageSize: query.Page.Size})
}

func (h *CatalogHandler) CreateLanguageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	var language models.Language
	if !DecodeJSON(w, r, &language) {
		return
	}
	if language.Name == "" || language.Code == "" {
		WriteError(w, http.StatusBadRequest, "language name and code are required")
		return
	}
	language.ID = common.NewID()
	language.UserID = UserID(r)
	language.CreatedAt = time.Now()
	language.UpdatedAt = language.CreatedAt
	if err := h.catalog.SaveLanguage(r.Context(), &language); err != nil {
		WriteStorageError(w, err, "language")
		return
	}
	WriteJSON(w, http.StatusCreated, &language)
}

func (h *CatalogHandler) LanguageHandler(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case "GET":
		language := h.getOwnedLanguage(w, r, id)
		if language == nil {
			return
		}
		WriteJSON(w, http.StatusOK, language)
	case "PUT":
		existing := h.getOwnedLanguage(w, r, id)
		if existing == nil {
			return
		}
		var update models.Language
		if !DecodeJSON(w, r, &update) {
			return
		}
		existing.Name = update.Name
		existing.Code = update.Code
		existing.UpdatedAt = time.Now()
		if err := h.catalog.SaveLanguage(r.Context(), existing); err != nil {
			WriteStorageError(w, err, "language")
			return
		}
		WriteJSON(w, http.StatusOK, existing)
	case "DELETE":
		if h.getOwnedLanguage(w, r, id) == nil {
			return
		}
		if err := h.catalog.DeleteLanguage(r.Context(), id); err != nil {
			WriteStorageError(w, err, "language")
			return
		}
		WriteSuccess(w, "language deleted")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) getOwnedLanguage(w http.ResponseWriter, r *http.Request, id string) *models.Language {
	language, err := h.catalog.GetLanguage(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "language")
		return nil
	}
	if language.UserID != UserID(r) {
		WriteError(w, http.StatusNotFound, "language not found")
		return nil
	}
	return language
}

// Voices

func (h *CatalogHandler) ListVoicesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	query := ownerQuery(r)
	voices, err := h.catalog.ListVoices(r.Context(), query)
	if err != nil {
		WriteStorageError(w, err, "voices")
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: voices, Page: query.Page.Number, PageSize: query.Page.Size})
}

func (h *CatalogHandler) CreateVoiceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	var voice models.Voice
	if !DecodeJSON(w, r, &voice) {
		return
	}
	if voice.Name == "" || voice.Path == "" {
		WriteError(w, http.StatusBadRequest, "voice name and path are required")
		return
	}
	voice.ID = common.NewID()
	voice.UserID = UserID(r)
	voice.CreatedAt = time.Now()
	voice.UpdatedAt = voice.CreatedAt
	if err := h.catalog.SaveVoice(r.Context(), &voice); err != nil {
		WriteStorageError(w, err, "voice")
		return
	}
	WriteJSON(w, http.StatusCreated, &voice)
}

func (h *CatalogHandler) VoiceHandler(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case "GET":
		voice := h.getOwnedVoice(w, r, id)
		if voice == nil {
			return
		}
		WriteJSON(w, http.StatusOK, voice)
	case "PUT":
		existing := h.getOwnedVoice(w, r, id)
		if existing == nil {
			return
		}
		var update models.Voice
		if !DecodeJSON(w, r, &update) {
			return
		}
		existing.Name = update.Name
		existing.Path = update.Path
		existing.UpdatedAt = time.Now()
		if err := h.catalog.SaveVoice(r.Context(), existing); err != nil {
			WriteStorageError(w, err, "voice")
			return
		}
		WriteJSON(w, http.StatusOK, existing)
	case "DELETE":
		if h.getOwnedVoice(w, r, id) == nil {
			return
		}
		if err := h.catalog.DeleteVoice(r.Context(), id); err != nil {
			WriteStorageError(w, err, "voice")
			return
		}
		WriteSuccess(w, "voice deleted")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) getOwnedVoice(w http.ResponseWriter, r *http.Request, id string) *models.Voice {
	voice, err := h.catalog.GetVoice(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "voice")
		return nil
	}
	if voice.UserID != UserID(r) {
		WriteError(w, http.StatusNotFound, "voice not found")
		return nil
	}
	return voice
}

// Topics

func (h *CatalogHandler) ListTopicsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	query := ownerQuery(r)
	topics, err := h.catalog.ListTopics(r.Context(), query)
	if err != nil {
		WriteStorageError(w, err, "topics")
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: topics, Page: query.Page.Number, PageSize: query.Page.Size})
}

func (h *CatalogHandler) CreateTopicHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	var topic models.Topic
	if !DecodeJSON(w, r, &topic) {
		return
	}
	if topic.Name == "" {
		WriteError(w, http.StatusBadRequest, "topic name is required")
		return
	}
	topic.ID = common.NewID()
	topic.UserID = UserID(r)
	topic.CreatedAt = time.Now()
	topic.UpdatedAt = topic.CreatedAt
	if err := h.catalog.SaveTopic(r.Context(), &topic); err != nil {
		WriteStorageError(w, err, "topic")
		return
	}
	WriteJSON(w, http.StatusCreated, &topic)
}

func (h *CatalogHandler) TopicHandler(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case "GET":
		topic := h.getOwnedTopic(w, r, id)
		if topic == nil {
			return
		}
		WriteJSON(w, http.StatusOK, topic)
	case "PUT":
		existing := h.getOwnedTopic(w, r, id)
		if existing == nil {
			return
		}
		var update models.Topic
		if !DecodeJSON(w, r, &update) {
			return
		}
		existing.Name = update.Name
		existing.ImagePrefix = update.ImagePrefix
		existing.CoverPrompt = update.CoverPrompt
		existing.StyleName = update.StyleName
		existing.StyleWeight = update.StyleWeight
		existing.Extras = update.Extras
		existing.UpdatedAt = time.Now()
		if err := h.catalog.SaveTopic(r.Context(), existing); err != nil {
			WriteStorageError(w, err, "topic")
			return
		}
		WriteJSON(w, http.StatusOK, existing)
	case "DELETE":
		if h.getOwnedTopic(w, r, id) == nil {
			return
		}
		if err := h.catalog.DeleteTopic(r.Context(), id); err != nil {
			WriteStorageError(w, err, "topic")
			return
		}
		WriteSuccess(w, "topic deleted")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) getOwnedTopic(w http.ResponseWriter, r *http.Request, id string) *models.Topic {
	topic, err := h.catalog.GetTopic(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "topic")
		return nil
	}
	if topic.UserID != UserID(r) {
		WriteError(w, http.StatusNotFound, "topic not found")
		return nil
	}
	return topic
}

// Accounts

func (h *CatalogHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	query := ownerQuery(r)
	accounts, err := h.catalog.ListAccounts(r.Context(), query)
	if err != nil {
		WriteStorageError(w, err, "accounts")
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: accounts, Page: query.Page.Number, PageSize: query.Page.Size})
}

func (h *CatalogHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	var account models.Account
	if !DecodeJSON(w, r, &account) {
		return
	}
	if account.Name == "" {
		WriteError(w, http.StatusBadRequest, "account name is required")
		return
	}
	account.ID = common.NewID()
	account.UserID = UserID(r)
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	if err := h.catalog.SaveAccount(r.Context(), &account); err != nil {
		WriteStorageError(w, err, "account")
		return
	}
	WriteJSON(w, http.StatusCreated, &account)
}

func (h *CatalogHandler) AccountHandler(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case "GET":
		account := h.getOwnedAccount(w, r, id)
		if account == nil {
			return
		}
		WriteJSON(w, http.StatusOK, account)
	case "PUT":
		existing := h.getOwnedAccount(w, r, id)
		if existing == nil {
			return
		}
		var update models.Account
		if !DecodeJSON(w, r, &update) {
			return
		}
		existing.Name = update.Name
		existing.LogoPath = update.LogoPath
		existing.DigitalHuman = update.DigitalHuman
		existing.SubtitleStyle = update.SubtitleStyle
		existing.UpdatedAt = time.Now()
		if err := h.catalog.SaveAccount(r.Context(), existing); err != nil {
			WriteStorageError(w, err, "account")
			return
		}
		WriteJSON(w, http.StatusOK, existing)
	case "DELETE":
		if h.getOwnedAccount(w, r, id) == nil {
			return
		}
		if err := h.catalog.DeleteAccount(r.Context(), id); err != nil {
			WriteStorageError(w, err, "account")
			return
		}
		WriteSuccess(w, "account deleted")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) getOwnedAccount(w http.ResponseWriter, r *http.Request, id string) *models.Account {
	account, err := h.catalog.GetAccount(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "account")
		return nil
	}
	if account.UserID != UserID(r) {
		WriteError(w, http.StatusNotFound, "account not found")
		return nil
	}
	return account
}
