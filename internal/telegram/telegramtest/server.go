// Package telegramtest provides a fake Bot API server for tests.
package telegramtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
)

// Token is the bot token accepted by the fake server.
const Token = "123456:TEST-token"

// Request is one recorded Bot API call.
type Request struct {
	Method string
	Fields map[string]string
	Files  map[string][]byte
}

// Server records Bot API calls and answers them with canned results.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	results  map[string]string
	failures map[string]string
	files    map[string][]byte
}

// NewServer starts a fake server that is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		results:  map[string]string{},
		failures: map[string]string{},
		files:    map[string][]byte{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Bot returns a client talking to the fake server. Extra options are applied
// after the server URL.
func (s *Server) Bot(t *testing.T, opts ...bot.Option) *bot.Bot {
	t.Helper()

	all := append([]bot.Option{bot.WithServerURL(s.URL), bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(Token, all...)
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}
	return b
}

// SetResult sets the JSON result returned for method.
func (s *Server) SetResult(method, resultJSON string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[method] = resultJSON
}

// Fail makes method answer with ok=false and description.
func (s *Server) Fail(method, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = description
}

// AddFile serves content at the download path of a file.
func (s *Server) AddFile(filePath string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filePath] = content
}

// Requests returns the calls made so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Calls returns the recorded calls of method.
func (s *Server) Calls(method string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if path, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+Token+"/"); ok {
		s.mu.Lock()
		content, found := s.files[path]
		s.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(content)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+Token+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	req := Request{Method: method, Fields: map[string]string{}, Files: map[string][]byte{}}
	if err := r.ParseMultipartForm(32 << 20); err == nil && r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				req.Fields[k] = v[0]
			}
		}
		for k, fhs := range r.MultipartForm.File {
			if len(fhs) == 0 {
				continue
			}
			f, err := fhs[0].Open()
			if err != nil {
				continue
			}
			data, _ := io.ReadAll(f)
			_ = f.Close()
			req.Files[k] = data
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	failure, failed := s.failures[method]
	result, hasResult := s.results[method]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failed {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"ok":false,"error_code":400,"description":%q}`, failure)
		return
	}
	if !hasResult {
		result = defaultResult(method)
	}
	fmt.Fprintf(w, `{"ok":true,"result":%s}`, result)
}

func defaultResult(method string) string {
	switch {
	case strings.HasPrefix(method, "send") && method != "sendChatAction":
		return `{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}`
	default:
		return "true"
	}
}
