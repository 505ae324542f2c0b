package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"wisdar/model"
)

// Conversations fetches the user's conversation list, newest first.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Messages fetches the full message history of one conversation, oldest
// first. History is terminal: statuses are forced to complete by the store
// when loaded.
func (c *Client) Messages(ctx context.Context, conversationID model.ID) ([]model.Message, error) {
	var messages []model.Message
	path := "/api/conversations/" + conversationID.String() + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendRequest is one outgoing user message. AttachmentPath, when set, is a
// local file uploaded as the multipart `attachment` part; OnProgress (may be
// nil) observes upload progress as sent/total bytes.
type SendRequest struct {
	Content        string
	AIModelID      string
	AttachmentPath string
	OnProgress     func(sent, total int64)
}

// InitiateResult is the backend's response to starting a new conversation.
type InitiateResult struct {
	NewConversation model.Conversation `json:"new_conversation"`
	UserMessage     model.Message      `json:"user_message"`
}

// InitiateConversation creates a conversation from its first message.
func (c *Client) InitiateConversation(ctx context.Context, send SendRequest) (*InitiateResult, error) {
	var result InitiateResult
	if err := c.postMultipart(ctx, "/api/conversations/initiate", send, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PostMessageResult is the backend's response to a follow-up message.
type PostMessageResult struct {
	UserMessage model.Message `json:"user_message"`
}

// PostMessage appends a message to an existing conversation.
func (c *Client) PostMessage(ctx context.Context, conversationID model.ID, send SendRequest) (*PostMessageResult, error) {
	var result PostMessageResult
	path := "/api/conversations/" + conversationID.String() + "/messages"
	if err := c.postMultipart(ctx, path, send, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) postMultipart(ctx context.Context, path string, send SendRequest, includeModel bool, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("content", send.Content); err != nil {
		return errors.Wrap(err, "writing content field")
	}
	if includeModel {
		if err := writer.WriteField("ai_model_id", send.AIModelID); err != nil {
			return errors.Wrap(err, "writing model field")
		}
	}
	if send.AttachmentPath != "" {
		if err := attachFile(writer, send.AttachmentPath); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "finalizing multipart body")
	}

	total := int64(buf.Len())
	var body io.Reader = &buf
	if send.OnProgress != nil {
		body = &progressReader{r: &buf, total: total, onProgress: send.OnProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = total
	return c.do(req, out)
}

func attachFile(writer *multipart.Writer, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "opening attachment")
	}
	defer func() { _ = file.Close() }()

	part, err := writer.CreateFormFile("attachment", filepath.Base(localPath))
	if err != nil {
		return errors.Wrap(err, "creating attachment part")
	}
	if _, err := io.Copy(part, file); err != nil {
		return errors.Wrap(err, "copying attachment")
	}
	return nil
}

// progressReader reports cumulative bytes handed to the HTTP transport.
type progressReader struct {
	r          io.Reader
	total      int64
	sent       int64
	onProgress func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.onProgress(p.sent, p.total)
	}
	return n, err
}
