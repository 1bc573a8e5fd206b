package httpevents

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// HandleAPIGateway sirve las mismas rutas detrás de un API Gateway HTTP (v2)
// para correr los eventos como lambda.
func (s *Server) HandleAPIGateway(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	s.log.Debug("api gateway hit",
		zap.String("path", req.RawPath),
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("ip", req.RequestContext.HTTP.SourceIP))

	body := req.Body
	if req.IsBase64Encoded {
		dec, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"invalid base64"}`}, nil
		}
		body = string(dec)
	}

	target := req.RawPath
	if target == "" {
		target = req.RequestContext.HTTP.Path
	}
	if req.RawQueryString != "" {
		target += "?" + req.RawQueryString
	}
	method := req.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodPost
	}
	hr, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"bad request"}`}, nil
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}

	w := &bufferedWriter{header: http.Header{}, status: http.StatusOK}
	s.mux.ServeHTTP(w, hr)

	headers := make(map[string]string, len(w.header))
	for k := range w.header {
		headers[k] = w.header.Get(k)
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: w.status,
		Headers:    headers,
		Body:       w.buf.String(),
	}, nil
}

type bufferedWriter struct {
	header      http.Header
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.buf.Write(p)
}
