package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/config"
	"github.com/MimeLyc/srt-translator/internal/persistence"
	"github.com/MimeLyc/srt-translator/internal/service"
	"github.com/MimeLyc/srt-translator/internal/subtitle"
	"github.com/MimeLyc/srt-translator/pkg/log"
)

const fallbackHeader = "X-Translation-Fallback"

type translateRequest struct {
	SRT            string `json:"srt"`
	TargetLanguage string `json:"target_language"`
}

type translateResponse struct {
	SRT            string `json:"srt"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
	Lines          int    `json:"lines"`
	Fallback       bool   `json:"fallback"`
	Error          string `json:"error,omitempty"`
	Advice         string `json:"advice,omitempty"`
}

type healthResponse struct {
	Status         string `json:"status"`
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		TargetLanguage: s.svc.TargetLanguage().String(),
	})
}

// handleTranslate accepts either a JSON translateRequest or a raw SRT body
// (target from the "target" query parameter). Raw requests get SRT back.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	raw := !isJSON(r.Header.Get("Content-Type"))

	var (
		data       []byte
		targetText string
	)
	if raw {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeBodyError(w, err)
			return
		}
		data = body
		targetText = r.URL.Query().Get("target")
	} else {
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBodyError(w, err)
			return
		}
		data = []byte(req.SRT)
		targetText = req.TargetLanguage
	}

	target := language.Und
	if strings.TrimSpace(targetText) != "" {
		tag, err := language.Parse(targetText)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target language: "+targetText)
			return
		}
		target = tag
	}

	result, err := s.svc.TranslateSRT(r.Context(), data, target, persistence.SourceHTTP)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out, err := subtitle.Marshal(&result.TranslatedFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if raw {
		w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="translated.srt"`)
		w.Header().Set(fallbackHeader, strconv.FormatBool(result.Fallback))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
		return
	}

	resp := translateResponse{
		SRT:            string(out),
		TargetLanguage: result.Metadata.TargetLanguage.String(),
		Lines:          len(result.TranslatedFile.Lines),
		Fallback:       result.Fallback,
	}
	if result.Metadata.SourceLanguage != language.Und {
		resp.SourceLanguage = result.Metadata.SourceLanguage.String()
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
		resp.Advice = service.Advice(result.Err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.svc.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings.Redacted())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	var req config.RuntimeSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	current, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// A client echoing back the masked key keeps the stored one.
	if req.LLMAPIKey == "" || req.LLMAPIKey == current.Redacted().LLMAPIKey {
		req.LLMAPIKey = current.LLMAPIKey
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.apply != nil {
		if err := s.apply(saved); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, saved.Redacted())
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		log.Warn("Translation request %s aborted: %v", r.URL.Path, err)
		writeError(w, http.StatusServiceUnavailable, "translation aborted")
	case service.IsErrorType(err, service.ErrParse) || service.IsErrorType(err, service.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"advice": service.Advice(err),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"advice": service.Advice(err),
		})
	}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
