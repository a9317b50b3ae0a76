package gee

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var (
	ErrEmptyBody     = errors.New("empty body")
	ErrMultipleJSON  = errors.New("body must contain only one JSON value")
	ErrBodyTooLarge  = errors.New("body too large")
	defaultBodyLimit = int64(1 << 20)
)

// ShouldBindJSON 严格解析：拒绝未知字段、空 body 与多个 JSON 值
func (c *Context) ShouldBindJSON(dst any) error {
	body := http.MaxBytesReader(c.Writer, c.Req.Body, defaultBodyLimit)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		case errors.As(err, &tooLarge):
			return ErrBodyTooLarge
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return ErrMultipleJSON
	}
	return nil
}

// BindJSON 解析失败时直接写 400 并中止
func (c *Context) BindJSON(dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithError(http.StatusBadRequest, "invalid json: "+err.Error())
		return err
	}
	return nil
}
