package main

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"imgbed/internal/auth"
	"imgbed/internal/blobstore"
	"imgbed/internal/images"
	"imgbed/internal/proxy"
	"imgbed/pkg/types"
)

func setupRouter(gate *auth.Gate, service *images.Service, streamer *proxy.Streamer) *gin.Engine {
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "imgbed",
			"time":    time.Now().UTC(),
		})
	})

	router.POST("/auth/verify", handleVerify(gate))
	router.GET("/admin/list", handleList(service))
	router.POST("/admin/delete", handleDelete(service))
	router.GET("/image/*filepath", handleImage(streamer))
	router.POST("/upload/img", handleUpload(service))

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// respond writes the shared JSON envelope. code 0 means success.
func respond(c *gin.Context, status, code int, message string, data any) {
	c.JSON(status, types.APIResponse{Code: code, Message: message, Data: data})
}

func handleVerify(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.VerifyRequest
		// A missing or malformed body verifies the empty password, which
		// still succeeds when no secret is configured.
		_ = c.ShouldBindJSON(&req)

		token, err := gate.Verify(req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrForbidden) {
				respond(c, http.StatusForbidden, http.StatusForbidden, "password error", nil)
				return
			}
			respond(c, http.StatusInternalServerError, 1, "auth system error", nil)
			return
		}

		message := "ok"
		if token == auth.OpenToken {
			message = "open access"
		}
		respond(c, http.StatusOK, 0, message, gin.H{"token": token})
	}
}

func handleList(service *images.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, http.StatusOK, 0, "ok", service.List(c.Request.Context()))
	}
}

func handleDelete(service *images.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.DeleteRequest
		_ = c.ShouldBindJSON(&req)

		err := service.Delete(c.Request.Context(), req.ID)
		switch {
		case errors.Is(err, images.ErrMissingID):
			respond(c, http.StatusBadRequest, 1, "missing id", nil)
		case err != nil:
			respond(c, http.StatusInternalServerError, 1, "delete failed", nil)
		default:
			respond(c, http.StatusOK, 0, "ok", nil)
		}
	}
}

func handleImage(streamer *proxy.Streamer) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := streamer.Fetch(c.Request.Context(), c.Param("filepath"))
		if err != nil {
			var upstream *blobstore.UpstreamError
			switch {
			case errors.Is(err, proxy.ErrInvalidPath):
				respond(c, http.StatusBadRequest, 1, "invalid path", nil)
			case errors.Is(err, blobstore.ErrNotFound):
				c.String(http.StatusNotFound, "not found")
			case errors.As(err, &upstream):
				respond(c, http.StatusBadGateway, upstream.StatusCode, "upstream error", nil)
			default:
				respond(c, http.StatusInternalServerError, 1, "internal error", nil)
			}
			return
		}

		c.Header("Cache-Control", result.CacheControl)
		c.Data(http.StatusOK, result.ContentType, result.Body)
	}
}

func handleUpload(service *images.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		mainFile, err := formFile(c, "file")
		if err != nil {
			respond(c, http.StatusBadRequest, 1, "no file", nil)
			return
		}

		// The thumbnail part is optional.
		thumbFile, _ := formFile(c, "thumbnail")

		result, err := service.Upload(c.Request.Context(), mainFile, thumbFile)
		if err != nil {
			if errors.Is(err, images.ErrNoFile) {
				respond(c, http.StatusBadRequest, 1, "no file", nil)
				return
			}
			respond(c, http.StatusInternalServerError, 1, "upload failed: "+err.Error(), nil)
			return
		}

		respond(c, http.StatusOK, 0, "upload success", result)
	}
}

// formFile decodes one multipart part into memory.
func formFile(c *gin.Context, field string) (*images.File, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	data, err := readPart(header)
	if err != nil {
		return nil, err
	}
	return &images.File{
		Name: header.Filename,
		Type: header.Header.Get("Content-Type"),
		Size: header.Size,
		Data: data,
	}, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
