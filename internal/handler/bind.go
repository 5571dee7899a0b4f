package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/storage"
)

// multipartMemory is how much of a multipart body is kept in memory before
// file parts spill to temporary files.
const multipartMemory = 1 << 20

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// bind fills dst (a pointer to a form struct) from a JSON body or from
// url-encoded / multipart form values. Form values are matched by the `form`
// struct tag; an int field that does not parse is left at zero for the
// validator to reject.
func bind(r *http.Request, dst any) error {
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			if isBodyTooLarge(err) {
				return err
			}
			return apperror.ValidationFailed("", "Invalid JSON body.")
		}
		return nil
	}
	if err := parseForm(r); err != nil {
		return err
	}
	bindValues(r.Form, dst)
	return nil
}

// parseForm parses multipart or url-encoded bodies. Parsing twice is
// harmless.
func parseForm(r *http.Request) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if r.MultipartForm != nil {
			return nil
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return fmt.Errorf("handler: parsing multipart form: %w", err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("handler: parsing form: %w", err)
	}
	return nil
}

func bindValues(values url.Values, dst any) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name := rt.Field(i).Tag.Get("form")
		if name == "" || name == "-" || !values.Has(name) {
			continue
		}
		field := rv.Field(i)
		raw := values.Get(name)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int64:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				field.SetInt(n)
			}
		}
	}
}

// limitBody caps the request body at max bytes. Reads past the cap fail
// with *http.MaxBytesError, which writeError turns into 413.
func limitBody(w http.ResponseWriter, r *http.Request, max int64) {
	r.Body = http.MaxBytesReader(w, r.Body, max)
}

// photoUpload returns the "photo" part of a parsed multipart form, or nil
// when none was sent. The caller closes the returned file.
func photoUpload(r *http.Request) (*storage.Upload, multipart.File, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("handler: reading photo: %w", err)
	}
	if header.Filename == "" {
		file.Close()
		return nil, nil, nil
	}
	return &storage.Upload{Filename: header.Filename, Content: file}, file, nil
}
