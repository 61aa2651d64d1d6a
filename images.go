package postpage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/eringen/postpage/cms"
	"github.com/eringen/postpage/views"
)

const (
	maxImageWidth = 2000
	jpegQuality   = 80
)

// newImageURLFunc resolves image references against the CMS CDN for the cms
// source and against /assets/ for the local source.
func (a *App) newImageURLFunc() views.ImageURLFunc {
	if a.Config.ContentSource == SourceCMS {
		b := cms.ImageURLBuilder{ProjectID: a.Config.CMSProjectID, Dataset: a.Config.CMSDataset}
		return b.URL
	}
	return localImageURL
}

// localImageURL maps image-<id>-<w>x<h>-<ext> to /assets/<id>-<w>x<h>.<ext>.
func localImageURL(ref string, width int) string {
	id, w, h, format, ok := cms.ParseImageRef(ref)
	if !ok {
		return ""
	}
	u := fmt.Sprintf("/assets/%s-%dx%d.%s", id, w, h, format)
	if width > 0 {
		u += "?w=" + strconv.Itoa(width)
	}
	return u
}

// resizeImage decodes src and scales it down to width, keeping the aspect
// ratio. Images already narrower than width are returned unchanged (ok false).
func resizeImage(src []byte, width int) (data []byte, contentType string, ok bool, err error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", false, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if width >= w {
		return nil, "", false, nil
	}

	newH := h * width / w
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", false, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", true, nil
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", false, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", true, nil
}

func (a *App) handleAsset(c echo.Context) error {
	name := filepath.Base(c.Param("file"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return echo.ErrNotFound
	}
	path := filepath.Join(a.Config.AssetDir, name)

	widthParam := c.QueryParam("w")
	if widthParam == "" {
		if _, err := os.Stat(path); err != nil {
			return echo.ErrNotFound
		}
		return c.File(path)
	}

	width, err := strconv.Atoi(widthParam)
	if err != nil || width <= 0 || width > maxImageWidth {
		return c.String(http.StatusBadRequest, "Invalid width")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return echo.ErrNotFound
	}
	data, contentType, resized, err := resizeImage(src, width)
	if err != nil {
		c.Logger().Errorf("resize %s: %v", name, err)
		return c.File(path)
	}
	if !resized {
		return c.File(path)
	}
	return c.Blob(http.StatusOK, contentType, data)
}
