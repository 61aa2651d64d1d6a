package postpage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/postpage/comments"
	"github.com/eringen/postpage/content"
)

// intakeTokenHeader marks intake calls made by this server's own comment
// form. Those were already charged to the reader's IP in handleComment.
const intakeTokenHeader = "X-Intake-Token"

func (a *App) intakeToken() string {
	mac := hmac.New(sha256.New, []byte(a.Config.SessionSecret))
	mac.Write([]byte("comment-intake"))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *App) trustedIntake(c echo.Context) bool {
	got := c.Request().Header.Get(intakeTokenHeader)
	return got != "" && hmac.Equal([]byte(got), []byte(a.intakeToken()))
}

type intakeResponse struct {
	Message string               `json:"message"`
	Errors  comments.FieldErrors `json:"errors,omitempty"`
}

// handleCreateComment accepts {_id, name, email, comment} and stores an
// unapproved comment. The comment only shows once moderation approves it.
func (a *App) handleCreateComment(c echo.Context) error {
	if a.Sink == nil {
		return c.JSON(http.StatusServiceUnavailable, intakeResponse{Message: "Comments are not accepted here"})
	}
	if !a.trustedIntake(c) && !a.limiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, intakeResponse{Message: "Too many comments, please wait a minute"})
	}

	var form comments.Form
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, intakeResponse{Message: "Could not submit comment"})
	}
	if fields := comments.Validate(&form); fields != nil {
		return c.JSON(http.StatusBadRequest, intakeResponse{Message: "Could not submit comment", Errors: fields})
	}

	_, err := a.Sink.CreateComment(c.Request().Context(), content.Comment{
		PostID: form.PostID,
		Name:   form.Name,
		Email:  form.Email,
		Text:   form.Comment,
	})
	if errors.Is(err, content.ErrNotFound) {
		return c.JSON(http.StatusNotFound, intakeResponse{Message: "Post not found"})
	}
	if err != nil {
		c.Logger().Errorf("create comment: %v", err)
		return c.JSON(http.StatusInternalServerError, intakeResponse{Message: "Could not submit comment"})
	}
	return c.JSON(http.StatusOK, intakeResponse{Message: "Comment submitted"})
}
