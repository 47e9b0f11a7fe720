package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"realty/internal/app"
	"realty/internal/domain"
)

// Limits bounds what a single request may upload.
type Limits struct {
	MaxFiles int
	MaxBytes int64
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	detected := http.DetectContentType(data)
	if allowedImageTypes[detected] {
		return detected, true
	}
	return "", false
}

// isWebP checks the RIFF....WEBP container header.
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// readForm turns a multipart, urlencoded or JSON body into an app.Form.
// Multipart parts named "images" (or "images[]") become files; JSON
// bodies carry structured fields as nested values, which are re-encoded so
// the service decodes both shapes the same way.
func readForm(w http.ResponseWriter, r *http.Request, lim Limits) (app.Form, error) {
	f := app.Form{Values: map[string]string{}}
	if lim.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, lim.MaxBytes)
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		return readMultipart(r, lim)
	case "application/json":
		return readJSON(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return app.Form{}, bodyErr(err)
		}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				f.Values[k] = vs[0]
			}
		}
		return f, nil
	case "":
		return f, nil
	default:
		return app.Form{}, fmt.Errorf("%w: unsupported content type %q", domain.ErrInvalidPayload, ct)
	}
}

func readMultipart(r *http.Request, lim Limits) (app.Form, error) {
	f := app.Form{Values: map[string]string{}}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return app.Form{}, bodyErr(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			f.Values[k] = vs[0]
		}
	}
	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["images"]...)
	headers = append(headers, r.MultipartForm.File["images[]"]...)
	if lim.MaxFiles > 0 && len(headers) > lim.MaxFiles {
		return app.Form{}, fmt.Errorf("%w: at most %d images per request, got %d", domain.ErrInvalidPayload, lim.MaxFiles, len(headers))
	}
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			return app.Form{}, fmt.Errorf("%w: open %s: %v", domain.ErrInvalidPayload, fh.Filename, err)
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			return app.Form{}, bodyErr(err)
		}
		mimeType, ok := allowedImageMIME(data)
		if !ok {
			return app.Form{}, fmt.Errorf("%w: %s is not a jpg, png, gif or webp image", domain.ErrInvalidPayload, fh.Filename)
		}
		f.Files = append(f.Files, app.FilePart{Filename: fh.Filename, ContentType: mimeType, Data: data})
	}
	return f, nil
}

func readJSON(r *http.Request) (app.Form, error) {
	f := app.Form{Values: map[string]string{}}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return app.Form{}, bodyErr(err)
	}
	for k, raw := range body {
		v := strings.TrimSpace(string(raw))
		if v == "null" {
			continue
		}
		var s string
		if strings.HasPrefix(v, `"`) && json.Unmarshal(raw, &s) == nil {
			f.Values[k] = s
			continue
		}
		f.Values[k] = v
	}
	return f, nil
}

func bodyErr(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrInvalidPayload, mbe.Limit)
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
}
