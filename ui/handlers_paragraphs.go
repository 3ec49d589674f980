package ui

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"obsnote/app"
	"obsnote/domain/core"
	"obsnote/domain/logpattern"
	apperrors "obsnote/internal/errors"
)

func paragraphID(c *gin.Context) (core.ParagraphID, bool) {
	id, err := core.ParseParagraphID(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.InvalidInput(err.Error()))
		return "", false
	}
	return id, true
}

// async reports whether the caller asked for a background run. Such runs
// answer 202 with the loading state; progress is followed on /events.
func async(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("async"))
	return v
}

func (s *Server) handleBubbleUp(c *gin.Context) {
	id, ok := paragraphID(c)
	if !ok {
		return
	}
	var req app.BubbleUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput("invalid bubble-up request: "+err.Error()))
		return
	}

	if async(c) {
		ctx := context.WithoutCancel(c.Request.Context())
		s.runs.Go(func() {
			if _, err := s.services.BubbleUp.Run(ctx, id, req); err != nil {
				logrus.WithError(err).WithField("paragraph_id", id).Debug("background bubble-up ended with error")
			}
		})
		c.JSON(http.StatusAccepted, gin.H{"paragraph_id": id, "status": "accepted"})
		return
	}

	result, err := s.services.BubbleUp.Run(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLogPatterns(c *gin.Context) {
	id, ok := paragraphID(c)
	if !ok {
		return
	}
	var req logpattern.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput("invalid log pattern request: "+err.Error()))
		return
	}

	if async(c) {
		ctx := context.WithoutCancel(c.Request.Context())
		s.runs.Go(func() {
			if _, err := s.services.LogPatterns.Analyze(ctx, id, req); err != nil {
				logrus.WithError(err).WithField("paragraph_id", id).Debug("background log pattern analysis ended with error")
			}
		})
		c.JSON(http.StatusAccepted, gin.H{"paragraph_id": id, "status": "accepted"})
		return
	}

	result, err := s.services.LogPatterns.Analyze(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleState(c *gin.Context) {
	id, ok := paragraphID(c)
	if !ok {
		return
	}
	st, err := s.services.Paragraphs.State(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleOutput(c *gin.Context) {
	id, ok := paragraphID(c)
	if !ok {
		return
	}
	output, err := s.services.Paragraphs.Output(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}

func (s *Server) handleDeleteOutput(c *gin.Context) {
	id, ok := paragraphID(c)
	if !ok {
		return
	}
	if err := s.services.Paragraphs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReport(c *gin.Context) {
	id, ok := paragraphID(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", app.FormatMarkdown)

	var buf bytes.Buffer
	contentType, err := s.services.Paragraphs.Report(c.Request.Context(), id, format, &buf)
	if err != nil {
		respondError(c, err)
		return
	}
	if format == app.FormatXLSX {
		c.Header("Content-Disposition", `attachment; filename="`+id.String()+`.xlsx"`)
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
