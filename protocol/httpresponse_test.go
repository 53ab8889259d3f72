package protocol

import (
	"bufio"
	"strings"
	"testing"
)

func TestParseStatusLine(t *testing.T) {
	version, code, msg, err := ParseStatusLine("HTTP/1.1 404 Not Found\r\n")
	if err != nil {
		t.Fatalf("ParseStatusLine: %v", err)
	}
	if version != "1.1" || code != 404 || msg != "Not Found" {
		t.Fatalf("got (%q, %d, %q)", version, code, msg)
	}
}

func TestParseStatusLineRejectsMalformed(t *testing.T) {
	if _, _, _, err := ParseStatusLine("not a status line"); err == nil {
		t.Fatal("expected error for malformed status line")
	}
	if _, _, _, err := ParseStatusLine("HTTP/1.1 not-a-code OK"); err == nil {
		t.Fatal("expected error for non-numeric status code")
	}
}

func TestReadResponseHeadMergesSetCookies(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Set-Cookie: a=1\r\n" +
		"Set-Cookie: b=2\r\n" +
		"\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	rd, err := ReadResponseHead(br)
	if err != nil {
		t.Fatalf("ReadResponseHead: %v", err)
	}
	if rd.StatusCode != 200 || rd.Headers.Get("Content-Type") != "text/plain" {
		t.Fatalf("unexpected head: %+v", rd)
	}
	if len(rd.SetCookies) != 2 || rd.SetCookies[0] != "a=1" || rd.SetCookies[1] != "b=2" {
		t.Fatalf("unexpected cookies: %v", rd.SetCookies)
	}
	if _, ok := rd.Headers["Set-Cookie"]; ok {
		t.Fatal("Set-Cookie must not also land in Headers")
	}
}

func TestRequestDataContentLength(t *testing.T) {
	rd := &RequestData{Headers: map[string][]string{"Content-Length": {"42"}}}
	n, ok := rd.ContentLength()
	if !ok || n != 42 {
		t.Fatalf("ContentLength() = (%d, %v), want (42, true)", n, ok)
	}

	rd2 := &RequestData{Headers: map[string][]string{}}
	if _, ok := rd2.ContentLength(); ok {
		t.Fatal("expected ok=false with no Content-Length header")
	}
}

func TestRequestDataIsChunkedAndUpgradeAndContinue(t *testing.T) {
	chunked := &RequestData{Headers: map[string][]string{"Transfer-Encoding": {"chunked"}}}
	if !chunked.IsChunked() {
		t.Fatal("expected IsChunked() = true")
	}

	upgrade := &RequestData{StatusCode: 101, Headers: map[string][]string{"Upgrade": {"websocket"}}}
	if !upgrade.IsWebSocketUpgrade() {
		t.Fatal("expected IsWebSocketUpgrade() = true")
	}

	cont := &RequestData{StatusCode: 100}
	if !cont.IsContinue() {
		t.Fatal("expected IsContinue() = true")
	}
}

func TestRequestDataCloneIsIndependent(t *testing.T) {
	orig := &RequestData{
		Headers:    map[string][]string{"X": {"1"}},
		SetCookies: []string{"a=1"},
		Content:    []byte("hello"),
	}
	clone := orig.Clone()

	clone.Headers.Set("X", "2")
	clone.SetCookies[0] = "b=2"
	clone.Content[0] = 'H'

	if orig.Headers.Get("X") != "1" {
		t.Fatal("mutating clone's headers affected original")
	}
	if orig.SetCookies[0] != "a=1" {
		t.Fatal("mutating clone's cookies affected original")
	}
	if orig.Content[0] != 'h' {
		t.Fatal("mutating clone's content affected original")
	}
}
