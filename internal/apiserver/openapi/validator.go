// Package openapi 基于 OpenAPI 规范的请求校验中间件
//
// 只校验规范中声明过的路由（请求体结构、查询参数类型）；未声明的路径
// 原样交给后续处理器，由 ServeMux 决定 404/405。
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// Validator 请求校验器
type Validator struct {
	doc    *openapi3.T
	router routers.Router
	raw    []byte
}

// Load 从文件系统读取并校验规范
func Load(fsys fs.FS, name string) (*Validator, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return New(data)
}

// New 解析规范文本
func New(data []byte) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &Validator{doc: doc, router: router, raw: data}, nil
}

// Document 返回解析后的规范
func (v *Validator) Document() *openapi3.T {
	return v.doc
}

// ServeSpec 输出原始规范（GET /api/openapi.yaml）
func (v *Validator) ServeSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(v.raw)
}

// Middleware 校验匹配到的请求，失败返回 400
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := v.router.FindRoute(r)
		if err != nil {
			// 未在规范中声明
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			log.Printf("[openapi] %s %s rejected: %v", r.Method, r.URL.Path, err)
			writeError(w, http.StatusBadRequest, describe(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// describe 提取简短的校验失败原因
func describe(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			if field := schemaErr.JSONPointer(); len(field) > 0 {
				return fmt.Sprintf("invalid request: %s: %s", joinPointer(field), schemaErr.Reason)
			}
			return "invalid request: " + schemaErr.Reason
		}
		if reqErr.Parameter != nil {
			return fmt.Sprintf("invalid parameter %s", reqErr.Parameter.Name)
		}
		if reqErr.Reason != "" {
			return "invalid request: " + reqErr.Reason
		}
	}
	return "invalid request"
}

func joinPointer(p []string) string {
	s := p[0]
	for _, part := range p[1:] {
		s += "." + part
	}
	return s
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
