package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"fftransform/config"
	"fftransform/ffmpeg"
	"fftransform/task"
	"fftransform/transform"

	"github.com/gin-gonic/gin"
)

// multipartSlack covers the multipart framing around the video part.
const multipartSlack = 1 << 20

type Handler struct {
	svc         *transform.Service
	taskManager *task.Manager
	cfg         *config.Config
}

func NewHandler(svc *transform.Service, tm *task.Manager, cfg *config.Config) *Handler {
	return &Handler{
		svc:         svc,
		taskManager: tm,
		cfg:         cfg,
	}
}

// ValidateRequest is the body of POST /api/v1/validate. A missing directive
// resolves to the default transform.
type ValidateRequest struct {
	Directive *string `json:"directive"`
}

// upload is the parsed multipart form shared by the sync and async endpoints.
type upload struct {
	req  transform.Request
	body io.Closer
}

// bindUpload reads the "video" file plus the optional "directive" and
// "outputExt" fields. A missing directive field selects the default
// transform; an empty one is an empty directive.
func (h *Handler) bindUpload(c *gin.Context, id string) (*upload, error) {
	if h.cfg.MaxInputSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxInputSize+multipartSlack)
	}

	fh, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ffmpeg.NewError(ffmpeg.KindInvalidInput, fmt.Sprintf("input exceeds limit of %d bytes", h.cfg.MaxInputSize), err)
		}
		return nil, ffmpeg.NewError(ffmpeg.KindInvalidInput, "no video uploaded", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, ffmpeg.NewError(ffmpeg.KindResourceError, "could not read uploaded video", err)
	}

	req := transform.Request{
		ID:        id,
		Input:     f,
		Filename:  filepath.Base(fh.Filename),
		OutputExt: c.PostForm("outputExt"),
	}
	if d, ok := c.GetPostForm("directive"); ok {
		req.Directive = &d
	}
	return &upload{req: req, body: f}, nil
}

// handleProcess transforms an upload synchronously and streams the result.
// ffmpeg runs detached from the client connection: if the client goes away
// the run finishes, its output is discarded and the scope is still released.
func (h *Handler) handleProcess(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())

	up, err := h.bindUpload(c, task.NewID())
	if err != nil {
		respondError(c, err)
		return
	}
	defer up.body.Close()

	job, err := h.svc.Stage(ctx, up.req)
	if err != nil {
		respondError(c, err)
		return
	}
	defer job.Close()

	if _, err := h.svc.Execute(ctx, job); err != nil {
		respondError(c, err)
		return
	}

	c.FileAttachment(job.Scope.OutputPath, outputName(up.req.Filename, job.Scope.OutputPath))
}

// handleValidate reports whether a directive would be accepted.
func (h *Handler) handleValidate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ffmpeg.NewError(ffmpeg.KindInvalidInput, "malformed request body", err))
		return
	}

	args, err := h.svc.Validate(req.Directive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true, "args": args})
}

// handleCreateTask validates and stages an upload, then queues it.
func (h *Handler) handleCreateTask(c *gin.Context) {
	up, err := h.bindUpload(c, task.NewID())
	if err != nil {
		respondError(c, err)
		return
	}
	defer up.body.Close()

	job, err := h.svc.Stage(c.Request.Context(), up.req)
	if err != nil {
		respondError(c, err)
		return
	}

	t, err := h.taskManager.Submit(job)
	if err != nil {
		_ = job.Close()
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"taskId": t.ID})
}

// handleListTasks lists all tasks.
func (h *Handler) handleListTasks(c *gin.Context) {
	tasks := h.taskManager.List()
	for _, t := range tasks {
		h.buildDownloadURL(c, t)
	}
	c.JSON(http.StatusOK, tasks)
}

// buildDownloadURL constructs the full URL for a completed task's file.
func (h *Handler) buildDownloadURL(c *gin.Context, t *task.Task) {
	if t.Status != task.StatusCompleted || t.OutputPath == "" {
		return
	}

	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	t.DownloadURL = fmt.Sprintf("%s/api/v1/files/%s", baseURL, t.ID)
}

// handleGetTaskStatus retrieves the status of a single task.
func (h *Handler) handleGetTaskStatus(c *gin.Context) {
	t, found := h.taskManager.Get(c.Param("taskId"))
	if !found {
		respondError(c, ffmpeg.NewError(ffmpeg.KindNotFound, "task not found", nil))
		return
	}

	h.buildDownloadURL(c, t)
	c.JSON(http.StatusOK, t)
}

// handleCancelTask cancels a task.
func (h *Handler) handleCancelTask(c *gin.Context) {
	err := h.taskManager.Cancel(c.Param("taskId"))
	if errors.Is(err, task.ErrNotFound) {
		respondError(c, ffmpeg.NewError(ffmpeg.KindNotFound, "task not found", err))
		return
	}
	if err != nil {
		respondError(c, ffmpeg.NewError(ffmpeg.KindInvalidState, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task cancellation requested"})
}

// handleGetFile serves a completed task's output.
func (h *Handler) handleGetFile(c *gin.Context) {
	taskID := c.Param("taskId")
	path, err := h.taskManager.FilePath(taskID)
	if err != nil {
		respondError(c, ffmpeg.NewError(ffmpeg.KindNotFound, err.Error(), err))
		return
	}
	c.FileAttachment(path, taskID+filepath.Ext(path))
}

// outputName derives the attachment name from the upload name and the
// artifact extension, e.g. clip.mov -> processed_clip.mov.
func outputName(uploaded, outputPath string) string {
	stem := strings.TrimSuffix(uploaded, filepath.Ext(uploaded))
	if stem == "" || stem == "." || stem == "/" {
		stem = "video"
	}
	return "processed_" + stem + filepath.Ext(outputPath)
}
