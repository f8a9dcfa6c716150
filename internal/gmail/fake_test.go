package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

// fakeGmail serves the subset of the Gmail REST API the client uses.
type fakeGmail struct {
	t        *testing.T
	pageSize int

	mu       sync.Mutex
	messages map[string][]byte // id -> raw RFC 5322
	unread   []string
	sent     []*gmail.Message
	modified map[string]*gmail.ModifyMessageRequest
	queries  []string
	requests int
	failGet  bool
}

func newFakeGmail(t *testing.T) *fakeGmail {
	return &fakeGmail{
		t:        t,
		messages: make(map[string][]byte),
		modified: make(map[string]*gmail.ModifyMessageRequest),
	}
}

func (f *fakeGmail) add(id string, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = []byte(raw)
	f.unread = append(f.unread, id)
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	const prefix = "/gmail/v1/users/me/messages"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	switch {
	case r.Method == http.MethodGet && rest == "":
		f.list(w, r)
	case r.Method == http.MethodPost && rest == "send":
		f.send(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(rest, "/modify"):
		f.modify(w, r, strings.TrimSuffix(rest, "/modify"))
	case r.Method == http.MethodGet:
		f.get(w, r, rest)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGmail) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("labelIds") != LabelUnread {
		http.Error(w, "expected labelIds=UNREAD", http.StatusBadRequest)
		return
	}
	f.queries = append(f.queries, q.Get("q"))

	start := 0
	if tok := q.Get("pageToken"); tok != "" {
		for i, id := range f.unread {
			if id == tok {
				start = i
			}
		}
	}
	end := len(f.unread)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	res := gmail.ListMessagesResponse{}
	for _, id := range f.unread[start:end] {
		res.Messages = append(res.Messages, &gmail.Message{Id: id, ThreadId: "t-" + id})
	}
	if end < len(f.unread) {
		res.NextPageToken = f.unread[end]
	}
	writeJSON(w, res)
}

func (f *fakeGmail) get(w http.ResponseWriter, r *http.Request, id string) {
	if f.failGet {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}
	raw, ok := f.messages[id]
	if !ok {
		http.Error(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`, http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("format") != "raw" {
		http.Error(w, "expected format=raw", http.StatusBadRequest)
		return
	}
	writeJSON(w, gmail.Message{
		Id:       id,
		ThreadId: "t-" + id,
		LabelIds: []string{LabelUnread, "INBOX"},
		Raw:      base64.RawURLEncoding.EncodeToString(raw),
	})
}

func (f *fakeGmail) modify(w http.ResponseWriter, r *http.Request, id string) {
	var req gmail.ModifyMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.modified[id] = &req
	for _, l := range req.RemoveLabelIds {
		if l == LabelUnread {
			f.removeUnread(id)
		}
	}
	writeJSON(w, gmail.Message{Id: id})
}

func (f *fakeGmail) removeUnread(id string) {
	for i, u := range f.unread {
		if u == id {
			f.unread = append(f.unread[:i], f.unread[i+1:]...)
			return
		}
	}
}

func (f *fakeGmail) send(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var msg gmail.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.sent = append(f.sent, &msg)
	writeJSON(w, gmail.Message{Id: "sent-" + string(rune('0'+len(f.sent))), LabelIds: []string{"SENT"}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGmail) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// newTestClient starts the fake and returns an unthrottled client talking to
// it. opts are applied last.
func newTestClient(t *testing.T, f *fakeGmail, opts ...ClientOption) *Client {
	t.Helper()

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	opts = append([]ClientOption{WithEndpoint(srv.URL + "/"), WithRateLimit(0)}, opts...)
	c, err := NewClient(context.Background(), srv.Client(), opts...)
	require.NoError(t, err)
	return c
}

const plainMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Boiler service\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"The technician comes on Friday.\r\n"

const htmlMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Newsletter\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=b1\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Read more at example.com\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Read <strong>more</strong> at <a href=\"https://example.com\">example</a></p>\r\n" +
	"--b1--\r\n"
