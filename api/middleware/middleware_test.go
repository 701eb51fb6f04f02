/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wacul/ptr"

	"github.com/blnkfinance/surveylink/config"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/runs/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	return r
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		configured   string
		header       string
		expectedCode int
	}{
		{name: "valid key", configured: "s3cret", header: "s3cret", expectedCode: http.StatusOK},
		{name: "missing key", configured: "s3cret", header: "", expectedCode: http.StatusUnauthorized},
		{name: "wrong key", configured: "s3cret", header: "guess", expectedCode: http.StatusUnauthorized},
		{name: "server not configured", configured: "", header: "s3cret", expectedCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(SecretKeyAuthMiddleware(tt.configured))
			req := httptest.NewRequest(http.MethodGet, "/runs/run_1", nil)
			if tt.header != "" {
				req.Header.Set(SecretKeyHeader, tt.header)
			}
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{
		RequestsPerSecond:  ptr.Float64(1),
		Burst:              ptr.Int(1),
		CleanupIntervalSec: ptr.Int(60),
	}}
	r := newRouter(RateLimitMiddleware(conf))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/runs/run_1", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	r := newRouter(RateLimitMiddleware(&config.Configuration{}))
	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/runs/run_1", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}
