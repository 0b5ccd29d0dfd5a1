package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/smsgate/internal/sms"
	"github.com/rs/zerolog"
)

const listFixture = `<response>
<Count>2</Count>
<Messages>
<Message>
<Smstat>0</Smstat>
<Index>40000</Index>
<Phone>+447700900123</Phone>
<Content>Your reading is due</Content>
<Date>2025-06-10 14:02:11</Date>
<Sca></Sca>
<SaveType>4</SaveType>
<Priority>0</Priority>
<SmsType>1</SmsType>
</Message>
<Message>
<Smstat>1</Smstat>
<Index>40001</Index>
<Phone>+818012345678</Phone>
<Content>予定どおり</Content>
<Date>2025-06-10 09:30:00</Date>
<Sca></Sca>
<SaveType>4</SaveType>
<Priority>2</Priority>
<SmsType>5</SmsType>
</Message>
</Messages>
</response>`

const statusFixture = `<response>
<ConnectionStatus>901</ConnectionStatus>
<SignalIcon>4</SignalIcon>
<CurrentNetworkType>19</CurrentNetworkType>
<ServiceStatus>2</ServiceStatus>
<SimStatus>1</SimStatus>
<RoamingStatus>0</RoamingStatus>
</response>`

const countFixture = `<response>
<LocalUnread>2</LocalUnread>
<LocalInbox>5</LocalInbox>
<LocalOutbox>1</LocalOutbox>
<LocalDraft>0</LocalDraft>
<LocalDeleted>0</LocalDeleted>
<SimUnread>1</SimUnread>
<SimInbox>2</SimInbox>
<SimOutbox>0</SimOutbox>
<SimDraft>0</SimDraft>
<LocalMax>500</LocalMax>
<SimMax>100</SimMax>
<SimUsed>2</SimUsed>
<NewMsg>0</NewMsg>
</response>`

// fakeModem is an httptest-backed device that issues numbered sessions and
// replays scripted send outcomes.
type fakeModem struct {
	t  *testing.T
	mu sync.Mutex

	handshakeHits     int
	handshakeFailures int    // leading 500s before the handshake succeeds
	handshakeBody     string // overrides the well-formed handshake reply

	sessionsIssued int

	sendErrors  []int // error code per send, 0 or exhausted = OK
	sendBodies  []string
	sendCookies []string
	sendTokens  []string

	listBodies   []string
	deleteBodies []string

	srv *httptest.Server
}

func newFakeModem(t *testing.T) *fakeModem {
	t.Helper()

	f := &fakeModem{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc(pathSessionToken, f.handleHandshake)
	mux.HandleFunc(pathSendSMS, f.handleSend)
	mux.HandleFunc(pathSMSList, f.handleList)
	mux.HandleFunc(pathDeleteSMS, f.handleDelete)
	mux.HandleFunc(pathStatus, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, statusFixture)
	})
	mux.HandleFunc(pathSMSCount, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, countFixture)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeModem) handleHandshake(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handshakeHits++
	if f.handshakeFailures > 0 {
		f.handshakeFailures--
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if f.handshakeBody != "" {
		io.WriteString(w, f.handshakeBody)
		return
	}
	f.sessionsIssued++
	fmt.Fprintf(w, "<response><SesInfo>SessionID=sess-%d</SesInfo><TokInfo>tok-%d</TokInfo></response>",
		f.sessionsIssued, f.sessionsIssued)
}

func (f *fakeModem) handleSend(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	f.sendBodies = append(f.sendBodies, string(body))
	f.sendCookies = append(f.sendCookies, r.Header.Get("Cookie"))
	f.sendTokens = append(f.sendTokens, r.Header.Get("__RequestVerificationToken"))

	if got := r.Header.Get("X-Requested-With"); got != "XMLHttpRequest" {
		f.t.Errorf("send missing X-Requested-With header, got %q", got)
	}
	if got := r.Header.Get("Content-Type"); got != "text/xml" {
		f.t.Errorf("send Content-Type = %q, want text/xml", got)
	}

	code := 0
	if len(f.sendErrors) > 0 {
		code = f.sendErrors[0]
		f.sendErrors = f.sendErrors[1:]
	}
	if code != 0 {
		fmt.Fprintf(w, "<error><code>%d</code><message>scripted failure</message></error>", code)
		return
	}
	io.WriteString(w, "<response>OK</response>")
}

func (f *fakeModem) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	f.listBodies = append(f.listBodies, string(body))
	io.WriteString(w, listFixture)
}

func (f *fakeModem) handleDelete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	f.deleteBodies = append(f.deleteBodies, string(body))
	io.WriteString(w, "<response>OK</response>")
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c := NewClient(Config{URL: url, Timeout: 2 * time.Second}, zerolog.Nop())
	c.loginBackoff = time.Millisecond
	return c
}

func encodeBody(t *testing.T, body string) []sms.Segment {
	t.Helper()
	segs, err := sms.NewEncoder(0).Encode(body)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return segs
}

func TestSendSingleSegment(t *testing.T) {
	f := newFakeModem(t)
	c := newTestClient(t, f.srv.URL)

	err := c.Send(context.Background(), "+44 7911 123 456", encodeBody(t, "hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if f.handshakeHits != 1 {
		t.Errorf("handshake hits = %d, want 1", f.handshakeHits)
	}
	if len(f.sendBodies) != 1 {
		t.Fatalf("send hits = %d, want 1", len(f.sendBodies))
	}

	body := f.sendBodies[0]
	for _, want := range []string{
		"<Phone>+447911123456</Phone>",
		"<Content>hello</Content>",
		"<Length>5</Length>",
		"<Reserved>1</Reserved>",
		"<Index>-1</Index>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("send body missing %s:\n%s", want, body)
		}
	}
	if strings.Contains(body, "<Concat>") {
		t.Errorf("single-part send must not carry a concat envelope:\n%s", body)
	}

	if f.sendCookies[0] != "SessionID=sess-1" {
		t.Errorf("cookie = %q, want SessionID=sess-1", f.sendCookies[0])
	}
	if f.sendTokens[0] != "tok-1" {
		t.Errorf("token = %q, want tok-1", f.sendTokens[0])
	}
}

func TestSendMultipart(t *testing.T) {
	f := newFakeModem(t)
	c := newTestClient(t, f.srv.URL)

	err := c.Send(context.Background(), "+447911123456", encodeBody(t, strings.Repeat("a", 350)))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(f.sendBodies) != 3 {
		t.Fatalf("send hits = %d, want 3", len(f.sendBodies))
	}
	for i, body := range f.sendBodies {
		if !strings.Contains(body, "<Ref>0</Ref>") {
			t.Errorf("segment %d missing shared ref:\n%s", i+1, body)
		}
		if want := fmt.Sprintf("<Seq>%d</Seq>", i+1); !strings.Contains(body, want) {
			t.Errorf("segment %d missing %s:\n%s", i+1, want, body)
		}
		if !strings.Contains(body, "<Total>3</Total>") {
			t.Errorf("segment %d missing total:\n%s", i+1, body)
		}
	}
}

func TestSendUCS2Discriminator(t *testing.T) {
	f := newFakeModem(t)
	c := newTestClient(t, f.srv.URL)

	if err := c.Send(context.Background(), "+818012345678", encodeBody(t, "予定どおり")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(f.sendBodies[0], "<Reserved>2</Reserved>") {
		t.Errorf("ucs-2 send missing discriminator:\n%s", f.sendBodies[0])
	}
	if !strings.Contains(f.sendBodies[0], "<Length>5</Length>") {
		t.Errorf("ucs-2 length should count UTF-16 units:\n%s", f.sendBodies[0])
	}
}

func TestSendEmptyRecipient(t *testing.T) {
	f := newFakeModem(t)
	c := newTestClient(t, f.srv.URL)

	if err := c.Send(context.Background(), "   ", encodeBody(t, "hi")); err == nil {
		t.Fatal("expected error for blank recipient")
	}
	if len(f.sendBodies) != 0 {
		t.Errorf("no send should reach the device, got %d", len(f.sendBodies))
	}
}

func TestSessionRenewedOnce(t *testing.T) {
	f := newFakeModem(t)
	f.sendErrors = []int{CodeWrongSession}
	c := newTestClient(t, f.srv.URL)

	err := c.Send(context.Background(), "+447911123456", encodeBody(t, "hello"))
	if err != nil {
		t.Fatalf("Send should succeed after renewal: %v", err)
	}

	if f.handshakeHits != 2 {
		t.Errorf("handshake hits = %d, want 2", f.handshakeHits)
	}
	if len(f.sendBodies) != 2 {
		t.Fatalf("send hits = %d, want 2 (original + replay)", len(f.sendBodies))
	}
	if f.sendCookies[0] != "SessionID=sess-1" || f.sendCookies[1] != "SessionID=sess-2" {
		t.Errorf("replay did not use the renewed session: %v", f.sendCookies)
	}
}

func TestSessionExpiredAfterSecondRejection(t *testing.T) {
	f := newFakeModem(t)
	f.sendErrors = []int{CodeWrongSession, CodeWrongSessionToken}
	c := newTestClient(t, f.srv.URL)

	err := c.Send(context.Background(), "+447911123456", encodeBody(t, "hello"))
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// One renewal, one replay, never a third attempt.
	if f.handshakeHits != 2 {
		t.Errorf("handshake hits = %d, want 2", f.handshakeHits)
	}
	if len(f.sendBodies) != 2 {
		t.Errorf("send hits = %d, want 2", len(f.sendBodies))
	}
}

func TestDeviceRejectionNotRetried(t *testing.T) {
	f := newFakeModem(t)
	f.sendErrors = []int{CodeSmsSystemBusy}
	c := newTestClient(t, f.srv.URL)

	err := c.Send(context.Background(), "+447911123456", encodeBody(t, "hello"))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != CodeSmsSystemBusy {
		t.Errorf("code = %d, want %d", apiErr.Code, CodeSmsSystemBusy)
	}
	if len(f.sendBodies) != 1 || f.handshakeHits != 1 {
		t.Errorf("non-session errors must not be retried: sends=%d handshakes=%d",
			len(f.sendBodies), f.handshakeHits)
	}
}

func TestHandshakeRejectsUnexpectedSessionInfo(t *testing.T) {
	f := newFakeModem(t)
	f.handshakeBody = "<response><SesInfo>sess-1</SesInfo><TokInfo>tok-1</TokInfo></response>"
	c := newTestClient(t, f.srv.URL)

	err := c.Send(context.Background(), "+447911123456", encodeBody(t, "hello"))
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if len(f.sendBodies) != 0 {
		t.Errorf("no send should reach the device without a session")
	}
}

func TestHandshakeRetriesTransientFailure(t *testing.T) {
	f := newFakeModem(t)
	f.handshakeFailures = 1
	c := newTestClient(t, f.srv.URL)

	if err := c.Send(context.Background(), "+447911123456", encodeBody(t, "hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if f.handshakeHits != 2 {
		t.Errorf("handshake hits = %d, want 2", f.handshakeHits)
	}
}

func TestListMessages(t *testing.T) {
	f := newFakeModem(t)
	c := newTestClient(t, f.srv.URL)

	list, err := c.List(context.Background(), ListParams{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if list.Count != 2 || len(list.Messages) != 2 {
		t.Fatalf("expected 2 messages, got count=%d len=%d", list.Count, len(list.Messages))
	}

	first := list.Messages[0]
	if first.Index != 40000 || first.Phone != "+447700900123" {
		t.Errorf("unexpected first message: %+v", first)
	}
	if first.Stat != StatUnread || first.Type != TypeSingle {
		t.Errorf("unexpected first message classification: %+v", first)
	}

	second := list.Messages[1]
	if second.Content != "予定どおり" || second.Type != TypeUnicode || second.Priority != PriorityUrgent {
		t.Errorf("unexpected second message: %+v", second)
	}

	// Defaults: first page of the local inbox, 20 messages.
	req := f.listBodies[0]
	for _, want := range []string{
		"<PageIndex>1</PageIndex>",
		"<ReadCount>20</ReadCount>",
		"<BoxType>1</BoxType>",
		"<SortType>0</SortType>",
		"<Ascending>0</Ascending>",
		"<UnreadPreferred>0</UnreadPreferred>",
	} {
		if !strings.Contains(req, want) {
			t.Errorf("list request missing %s:\n%s", want, req)
		}
	}
}

func TestDeleteMessage(t *testing.T) {
	f := newFakeModem(t)
	c := newTestClient(t, f.srv.URL)

	if err := c.Delete(context.Background(), 40001); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(f.deleteBodies) != 1 || !strings.Contains(f.deleteBodies[0], "<Index>40001</Index>") {
		t.Errorf("unexpected delete request: %v", f.deleteBodies)
	}
}

func TestStatusSnapshot(t *testing.T) {
	f := newFakeModem(t)
	c := newTestClient(t, f.srv.URL)

	snap, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	if snap.SignalLevel != 4 {
		t.Errorf("signal = %d, want 4", snap.SignalLevel)
	}
	if snap.NetworkType != "lte" {
		t.Errorf("network = %q, want lte", snap.NetworkType)
	}
	if !snap.Registered {
		t.Error("expected registered network")
	}
	if snap.Unread != 3 {
		t.Errorf("unread = %d, want 3", snap.Unread)
	}
	if snap.Stored != 8 {
		t.Errorf("stored = %d, want 8", snap.Stored)
	}
	if snap.StorageMax != 600 {
		t.Errorf("storage max = %d, want 600", snap.StorageMax)
	}
}

func TestUnreachableModem(t *testing.T) {
	f := newFakeModem(t)
	url := f.srv.URL
	f.srv.Close()

	c := newTestClient(t, url)
	err := c.Send(context.Background(), "+447911123456", encodeBody(t, "hello"))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}
