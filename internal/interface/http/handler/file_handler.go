package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/escrow-market/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
	"github.com/ignatzorin/escrow-market/internal/storage"
)

// FileHandler загрузка результатов работы и доказательств по спорам.
// Ссылки из ответа передаются в deliver, submit и open dispute.
type FileHandler struct {
	store *storage.FileStore
}

func NewFileHandler(store *storage.FileStore) *FileHandler {
	return &FileHandler{store: store}
}

// Upload обрабатывает POST /files (multipart, поле file).
func (h *FileHandler) Upload(c *gin.Context) {
	if _, _, ok := caller(c); !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "поле file обязательно")
		return
	}
	if header.Size == 0 {
		response.BadRequest(c, "файл не может быть пустым")
		return
	}

	src, err := header.Open()
	if err != nil {
		response.BadRequest(c, "не удалось прочитать файл")
		return
	}
	defer src.Close()

	stored, err := h.store.Save(c.Request.Context(), src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToFileResponse(stored))
}

// Download обрабатывает GET /files/:name.
func (h *FileHandler) Download(c *gin.Context) {
	ref := "files/" + c.Param("name")
	if !storage.IsRef(ref) {
		response.BadRequest(c, "некорректная ссылка на файл")
		return
	}

	f, err := h.store.Open(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(ref), ".")
	if t := filetype.GetType(ext); t != filetype.Unknown {
		c.Header("Content-Type", t.MIME.Value)
	}
	c.Header("Cache-Control", "private, max-age=31536000, immutable")
	http.ServeContent(c.Writer, c.Request, filepath.Base(ref), info.ModTime(), f)
}
