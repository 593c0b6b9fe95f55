package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jhollis/recollect/internal/engine"
	"github.com/jhollis/recollect/internal/tier"
)

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content    string          `json:"content"`
		Speaker    string          `json:"speaker"`
		Context    *engine.Context `json:"context"`
		Importance *float64        `json:"importance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	speaker := tier.Speaker(req.Speaker)
	if speaker != tier.SpeakerSubject && speaker != tier.SpeakerSystem {
		writeError(w, http.StatusBadRequest, "speaker must be subject or system")
		return
	}

	item := s.engine.AddMemory(req.Content, speaker, req.Context, req.Importance)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := searchParamsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.engine.Search(params)
	if err != nil {
		if errors.Is(err, tier.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Everything else is contained below the engine; degrade to
		// empty rather than failing the caller.
		s.log.Warn("search failed", "err", err)
		items = nil
	}
	if items == nil {
		items = []tier.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func searchParamsFromQuery(r *http.Request) (tier.SearchParams, error) {
	q := r.URL.Query()
	params := tier.SearchParams{
		Keywords: splitList(q.Get("keywords")),
		Topics:   splitList(q.Get("topics")),
		Emotions: splitList(q.Get("emotions")),
		Speaker:  tier.Speaker(q.Get("speaker")),
	}

	for name, dst := range map[string]*int64{"since": &params.Since, "until": &params.Until} {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return params, errors.New(name + " must be epoch milliseconds")
			}
			*dst = v
		}
	}

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return params, errors.New("limit must be an integer")
		}
		params.Limit = v
	}
	return params, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Profile())
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, "key required")
		return
	}

	s.engine.SetPreference(req.Key, req.Value)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConversationCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Utterance string `json:"utterance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"new_conversation": s.engine.IsNewConversation(req.Utterance),
		"state":            s.engine.State().String(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.ResetMemory()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
