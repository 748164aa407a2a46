package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/Lllllllleong/caresync/internal/models"
)

// ErrIncompleteAnswer means the reply stream ended before the server
// finished it. The text received so far is still available.
var ErrIncompleteAnswer = errors.New("assistant reply was cut off")

// ChatStream reads a streamed assistant reply. Deltas never split a UTF-8
// character.
//
//	for s.Next() {
//		fmt.Print(s.Delta())
//	}
//	if err := s.Err(); err != nil { ... }
type ChatStream struct {
	ctx   context.Context
	body  io.ReadCloser
	buf   []byte
	carry []byte
	delta string
	err   error
	done  bool
}

// StreamChat posts the transcript and returns the reply stream. Errors the
// server reports before streaming are returned as *APIError.
func (c *Client) StreamChat(ctx context.Context, req models.ChatRequest) (*ChatStream, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: encode chat request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat", "application/json", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: POST /api/chat: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return &ChatStream{ctx: ctx, body: resp.Body, buf: make([]byte, 4096)}, nil
}

// Next advances to the next delta. It returns false at the end of the reply
// or on error.
func (s *ChatStream) Next() bool {
	for !s.done {
		n, err := s.body.Read(s.buf)
		if err != nil {
			s.finish(err)
		}
		if n == 0 {
			continue
		}
		data := append(s.carry, s.buf[:n]...)
		cut := completePrefix(data)
		s.carry = append([]byte(nil), data[cut:]...)
		if cut > 0 {
			s.delta = string(data[:cut])
			return true
		}
	}
	// A clean end with a dangling partial character still delivers the bytes.
	if len(s.carry) > 0 && s.err == nil {
		s.delta, s.carry = string(s.carry), nil
		return true
	}
	s.delta = ""
	return false
}

func (s *ChatStream) finish(err error) {
	s.done = true
	switch {
	case errors.Is(err, io.EOF):
	case s.ctx.Err() != nil:
		s.err = s.ctx.Err()
	default:
		s.err = fmt.Errorf("%w: %v", ErrIncompleteAnswer, err)
	}
}

// Delta returns the text read by the last call to Next.
func (s *ChatStream) Delta() string { return s.delta }

// Err returns the error that stopped the stream, if any.
func (s *ChatStream) Err() error { return s.err }

func (s *ChatStream) Close() error { return s.body.Close() }

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte character.
func completePrefix(b []byte) int {
	// A rune is at most utf8.UTFMax bytes, so only the tail needs checking.
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if utf8.FullRune(b[len(b)-i:]) {
			return len(b)
		}
		return len(b) - i
	}
	return len(b)
}
