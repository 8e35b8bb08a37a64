package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/feedback"
	"github.com/bull/docchat/internal/generation"
)

type handlers struct {
	svc            Service
	maxUploadBytes int64
	logger         *slog.Logger
}

func (h *handlers) test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API is working"})
}

func (h *handlers) upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			respondWithServiceError(c, err)
			return
		}
		RespondWithBadRequest(c, "No file provided", nil)
		return
	}
	if fh.Filename == "" {
		RespondWithBadRequest(c, "No file selected", nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		RespondWithInternalError(c, "Could not read upload", nil)
		return
	}
	defer f.Close()

	result, err := h.svc.Upload(c.Request.Context(), fh.Filename, f, nil)
	if err != nil {
		h.logger.Warn("Upload failed", "filename", fh.Filename, "error", err, "request_id", GetRequestID(c))
		respondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              result.Document.ID,
		"filename":        result.Document.OriginalName,
		"server_filename": result.Document.ServerFilename,
		"message":         "File uploaded and processed successfully",
	})
}

func (h *handlers) listDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"documents": h.svc.Documents()})
}

func (h *handlers) getDocument(c *gin.Context) {
	doc, err := h.svc.Document(c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *handlers) deleteDocument(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("Delete failed", "document_id", c.Param("id"), "error", err)
		}
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}

func (h *handlers) debug(c *gin.Context) {
	info, err := h.svc.Debug(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type chatRequest struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
}

type chatResponse struct {
	Response string `json:"response"`
	generation.Metadata
}

func (h *handlers) bindChat(c *gin.Context) (chatRequest, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(c, "Invalid request body", nil)
		return req, false
	}
	return req, true
}

func (h *handlers) chat(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}
	answer, err := h.svc.Chat(c.Request.Context(), req.DocumentID, req.Message)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{Response: answer.Text, Metadata: answer.Metadata()})
}

// stream writes chunks as they arrive. Errors before the first chunk are
// reported as JSON; after that the body already carries them in-band.
func (h *handlers) stream(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	started := false
	_, err := h.svc.Stream(c.Request.Context(), req.DocumentID, req.Message, func(chunk string) error {
		if !started {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("Cache-Control", "no-cache")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			started = true
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err == nil {
		return
	}
	if !started {
		respondWithServiceError(c, err)
		return
	}
	h.logger.Warn("Stream ended with error",
		"document_id", req.DocumentID, "error", err, "request_id", GetRequestID(c))
}

func (h *handlers) history(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": h.svc.History(c.Param("id"))})
}

func (h *handlers) clearHistory(c *gin.Context) {
	if err := h.svc.ClearHistory(c.Param("id")); err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat history cleared"})
}

func (h *handlers) submitFeedback(c *gin.Context) {
	var sub feedback.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		RespondWithBadRequest(c, "Invalid request body", nil)
		return
	}
	entry, err := h.svc.SubmitFeedback(sub)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feedback submitted successfully", "feedback_id": entry.ID})
}

func (h *handlers) serveUpload(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("filepath"), "/")
	path, ok := h.svc.UploadPath(name)
	if !ok {
		RespondWithNotFound(c, "File not found")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		RespondWithNotFound(c, "File not found")
		return
	}
	c.File(path)
}
