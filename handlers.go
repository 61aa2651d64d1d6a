package postpage

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/postpage/comments"
	"github.com/eringen/postpage/content"
	"github.com/eringen/postpage/views"
)

const (
	transportNotice = "Your comment could not be sent. Please try again."
	rateLimitNotice = "Too many comments, please wait a minute."
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus renders cmp into a buffer first so a failed render still
// reaches the error handler before any bytes are sent.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	var buf bytes.Buffer
	if err := cmp.Render(c.Request().Context(), &buf); err != nil {
		return err
	}
	return c.HTMLBlob(code, buf.Bytes())
}

func (a *App) siteView() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		DateLayout:  a.Config.DateLayout,
	}
}

func (a *App) pageData(c echo.Context, post content.Post, view *comments.View, notice string) views.PageData {
	return views.PageData{
		Site:      a.siteView(),
		Post:      post,
		Body:      a.renderer,
		ImageURL:  a.imageURL,
		CSRFToken: CsrfToken(c),
		State:     view.State(),
		Form:      view.Form(),
		Errors:    view.Last().Fields,
		Notice:    notice,
	}
}

func (a *App) resolve(c echo.Context) (content.Post, bool, error) {
	post, res, err := a.Pages.Resolve(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return content.Post{}, false, err
	}
	c.Response().Header().Set("X-Page-Resolution", res.String())
	return post, res != NotFound, nil
}

func (a *App) handlePost(c echo.Context) error {
	post, ok, err := a.resolve(c)
	if err != nil {
		return err
	}
	if !ok {
		return RenderStatus(c, http.StatusNotFound, views.NotFound(a.siteView()))
	}

	view := comments.NewView(a.Logger)
	if popSubmitted(c, post.Slug) {
		view = comments.Restore(a.Logger)
	}
	return Render(c, views.PostPage(a.pageData(c, post, view, "")))
}

func (a *App) handleComment(c echo.Context) error {
	post, ok, err := a.resolve(c)
	if err != nil {
		return err
	}
	if !ok {
		return RenderStatus(c, http.StatusNotFound, views.NotFound(a.siteView()))
	}

	form := comments.Form{
		PostID:  c.FormValue("_id"),
		Name:    c.FormValue("name"),
		Email:   c.FormValue("email"),
		Comment: c.FormValue("comment"),
	}

	view := comments.NewView(a.Logger)
	poster := limitedPoster{next: a.Poster, limiter: a.limiter, ip: c.RealIP()}
	result := view.Submit(c.Request().Context(), poster, form)
	switch result.Outcome {
	case comments.Success:
		if err := flashSubmitted(c, post.Slug); err != nil {
			c.Logger().Errorf("save flash: %v", err)
			return Render(c, views.PostPage(a.pageData(c, post, view, "")))
		}
		return c.Redirect(http.StatusSeeOther, postPath(post.Slug))
	case comments.ValidationError:
		return RenderStatus(c, http.StatusUnprocessableEntity, views.PostPage(a.pageData(c, post, view, "")))
	default:
		if errors.Is(result.Err, errRateLimited) {
			return RenderStatus(c, http.StatusTooManyRequests, views.PostPage(a.pageData(c, post, view, rateLimitNotice)))
		}
		return RenderStatus(c, http.StatusBadGateway, views.PostPage(a.pageData(c, post, view, transportNotice)))
	}
}

func (a *App) handleRobots(c echo.Context) error {
	return c.String(http.StatusOK, "User-agent: *\nAllow: /\nSitemap: "+strings.TrimRight(a.Config.URL, "/")+"/sitemap.xml\n")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound(a.siteView()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, views.ServerError(a.siteView()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
